package ai

import (
	"errors"
	"strings"
	"testing"

	"github.com/spigell/o1-screener/internal/profile"
	"github.com/spigell/o1-screener/internal/scoring"
)

func TestParseAssessment(t *testing.T) {
	t.Parallel()

	raw := "Here you go:\n```json\n" + `{
		"overall_score": "7.5",
		"base_score": 6.5,
		"bonus_points": 1,
		"criteria_scores": {"professional_seniority": 9, "company_prestige": "8", "career_progression": "n/a"},
		"evidence": {"professional_seniority": ["CTO at Acme", ""], "bonus_achievements": "Patent US123"},
		"strengths": ["Leadership"],
		"weaknesses": [],
		"likelihood": "High",
		"recommendation": "Proceed",
		"reasoning": "Strong profile"
	}` + "\n```"

	a, err := ParseAssessment(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.OverallScore != 7.5 || a.BaseScore != 6.5 || a.BonusPoints != 1 {
		t.Fatalf("unexpected scores: %+v", a)
	}
	if a.CriteriaScores["company_prestige"] != 8 {
		t.Fatalf("expected numeric string to be coerced, got %v", a.CriteriaScores)
	}
	if _, ok := a.CriteriaScores["career_progression"]; ok {
		t.Fatalf("expected non-numeric criterion to be dropped")
	}
	if got := a.Evidence["professional_seniority"]; len(got) != 1 || got[0] != "CTO at Acme" {
		t.Fatalf("unexpected evidence: %v", a.Evidence)
	}
	if got := a.Evidence["bonus_achievements"]; len(got) != 1 {
		t.Fatalf("expected single string evidence to become a list, got %v", got)
	}
	if a.Likelihood != "High" || a.Err() != nil {
		t.Fatalf("unexpected assessment: %+v", a)
	}
	if a.Raw != raw {
		t.Fatalf("expected raw response to be kept")
	}
}

func TestParseAssessmentClampsScore(t *testing.T) {
	t.Parallel()

	a, err := ParseAssessment(`{"overall_score": 14}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.OverallScore != 10 {
		t.Fatalf("expected clamp to 10, got %v", a.OverallScore)
	}
}

func TestParseAssessmentErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
	}{
		{name: "not json", raw: "I cannot help with that"},
		{name: "missing score", raw: `{"reasoning": "nothing"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := ParseAssessment(tt.raw); !errors.Is(err, ErrAssessment) {
				t.Fatalf("expected ErrAssessment, got %v", err)
			}
		})
	}
}

func TestParseAssessmentErrorTagged(t *testing.T) {
	t.Parallel()

	a, err := ParseAssessment(`{"overall_score": 0, "error": "profile is empty"}`)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	if !errors.Is(a.Err(), ErrAssessment) {
		t.Fatalf("expected error-tagged result, got %v", a.Err())
	}
	if a.Payload()["error"] != "profile is empty" {
		t.Fatalf("expected error in payload, got %v", a.Payload())
	}
}

func TestPayloadHasStableShape(t *testing.T) {
	t.Parallel()

	payload := (&Assessment{OverallScore: 6}).Payload()
	for _, key := range []string{"overall_score", "criteria_scores", "evidence", "strengths", "weaknesses", "likelihood"} {
		if _, ok := payload[key]; !ok {
			t.Fatalf("expected key %q in payload", key)
		}
	}
	if _, ok := payload["error"]; ok {
		t.Fatalf("expected no error key for clean result")
	}
}

func TestBuildPrompt(t *testing.T) {
	t.Parallel()

	doc := profile.NewDocument()
	doc.BasicInfo.Name = "Jane Doe"
	doc.BasicInfo.Headline = "Founder & CTO"
	doc.BasicInfo.CurrentCompany = "Acme"
	doc.Accomplishments.Patents = []profile.Accomplishment{{Title: "Gripper", Subtitle: "US123"}}

	in := &Input{
		Document:       doc,
		AdditionalInfo: "Speaker at GopherCon",
		Signals: Signals{
			Seniority:   scoring.ClassifySeniority(doc.BasicInfo.Headline, doc.BasicInfo.CurrentCompany),
			Reach:       scoring.ScoreReach(100, 400),
			CompanyTier: scoring.ResolveCompanyTier(doc.BasicInfo.CurrentCompany),
		},
	}

	system, user, err := BuildPrompt(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(system, "overall_score") {
		t.Fatalf("expected embedded system prompt")
	}
	for _, want := range []string{"Jane Doe", "Seniority: VP (10/10)", "Company tier: D", "Gripper (US123)", "Speaker at GopherCon", "No experience listed."} {
		if !strings.Contains(user, want) {
			t.Fatalf("expected prompt to contain %q:\n%s", want, user)
		}
	}

	if _, _, err := BuildPrompt(&Input{}); !errors.Is(err, ErrAssessment) {
		t.Fatalf("expected ErrAssessment for missing document, got %v", err)
	}
}
