package ai

import (
	"context"
	"errors"
	"fmt"

	"github.com/spigell/o1-screener/internal/profile"
	"github.com/spigell/o1-screener/internal/scoring"
)

// ErrAssessment marks a failed or error-tagged assessment.
var ErrAssessment = errors.New("assessment failed")

// Signals are the deterministic heuristics computed before the model is called.
type Signals struct {
	Seniority   scoring.Seniority         `json:"seniority"`
	Reach       scoring.Reach             `json:"social_reach"`
	CompanyTier scoring.CompanyTier       `json:"company_tier"`
	Suitability scoring.SuitabilityResult `json:"suitability"`
}

type Input struct {
	ProfileID      string
	Name           string
	AdditionalInfo string
	Document       *profile.Document
	Signals        Signals
}

// Assessment is the parsed verdict of an assessment model.
type Assessment struct {
	OverallScore   float64
	BaseScore      float64
	BonusPoints    float64
	CriteriaScores map[string]float64
	BonusFactors   map[string]float64
	Evidence       map[string][]string
	Strengths      []string
	Weaknesses     []string
	Likelihood     string
	Recommendation string
	Reasoning      string
	// Error is set when the model reported that it could not assess the profile.
	Error string
	Raw   string
}

// Assessor produces an eligibility assessment for one profile. Implementations make a single model call.
type Assessor interface {
	Assess(ctx context.Context, in *Input) (*Assessment, error)
}

// Err returns a non-nil ErrAssessment when the result is error-tagged.
func (a *Assessment) Err() error {
	if a == nil {
		return fmt.Errorf("%w: empty result", ErrAssessment)
	}
	if a.Error != "" {
		return fmt.Errorf("%w: %s", ErrAssessment, a.Error)
	}
	return nil
}

// Payload renders the assessment for persistence.
func (a *Assessment) Payload() map[string]any {
	if a == nil {
		return nil
	}

	payload := map[string]any{
		"overall_score":   a.OverallScore,
		"base_score":      a.BaseScore,
		"bonus_points":    a.BonusPoints,
		"criteria_scores": nonNilFloats(a.CriteriaScores),
		"bonus_factors":   nonNilFloats(a.BonusFactors),
		"evidence":        nonNilEvidence(a.Evidence),
		"strengths":       nonNilStrings(a.Strengths),
		"weaknesses":      nonNilStrings(a.Weaknesses),
		"likelihood":      a.Likelihood,
		"recommendation":  a.Recommendation,
		"reasoning":       a.Reasoning,
	}
	if a.Error != "" {
		payload["error"] = a.Error
	}

	return payload
}

func nonNilFloats(m map[string]float64) map[string]float64 {
	if m == nil {
		return map[string]float64{}
	}
	return m
}

func nonNilEvidence(m map[string][]string) map[string][]string {
	if m == nil {
		return map[string][]string{}
	}
	return m
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
