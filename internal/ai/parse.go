package ai

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

const maxScore = 10.0

// ParseAssessment decodes a model response. Code fences and text around the
// JSON object are ignored and numeric strings are accepted. A response
// without an overall score is rejected.
func ParseAssessment(raw string) (*Assessment, error) {
	cleaned := extractJSON(raw)

	var data map[string]any
	if err := json.Unmarshal([]byte(cleaned), &data); err != nil {
		return nil, fmt.Errorf("%w: parse response: %w", ErrAssessment, err)
	}

	a := &Assessment{
		BaseScore:      clampScore(coerceFloat(data["base_score"])),
		BonusPoints:    zeroIfNaN(coerceFloat(data["bonus_points"])),
		CriteriaScores: coerceFloatMap(data["criteria_scores"]),
		BonusFactors:   coerceFloatMap(data["bonus_factors"]),
		Evidence:       coerceEvidence(data["evidence"]),
		Strengths:      coerceStrings(data["strengths"]),
		Weaknesses:     coerceStrings(data["weaknesses"]),
		Likelihood:     coerceString(firstPresent(data, "likelihood", "o1_likelihood")),
		Recommendation: coerceString(data["recommendation"]),
		Reasoning:      coerceString(data["reasoning"]),
		Error:          coerceString(data["error"]),
		Raw:            raw,
	}

	if a.Error != "" {
		return a, nil
	}

	overall := coerceFloat(data["overall_score"])
	if math.IsNaN(overall) {
		return nil, fmt.Errorf("%w: response has no overall_score", ErrAssessment)
	}
	a.OverallScore = clampScore(overall)

	return a, nil
}

// extractJSON strips markdown fences and any prose around the outermost object.
func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}

	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start != -1 && end > start {
		raw = raw[start : end+1]
	}

	return strings.TrimSpace(raw)
}

func firstPresent(data map[string]any, keys ...string) any {
	for _, key := range keys {
		if v, ok := data[key]; ok && v != nil {
			return v
		}
	}
	return nil
}

func clampScore(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Min(maxScore, math.Max(0, v))
}

func zeroIfNaN(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return v
}

func coerceFloat(v any) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case int:
		return float64(val)
	case string:
		trimmed := strings.TrimSpace(val)
		if trimmed == "" {
			return math.NaN()
		}
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return math.NaN()
		}
		return f
	default:
		return math.NaN()
	}
}

func coerceString(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case nil:
		return ""
	default:
		bytes, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(bytes)
	}
}

func coerceStrings(v any) []string {
	out := []string{}
	switch val := v.(type) {
	case []any:
		for _, item := range val {
			if s := coerceString(item); s != "" {
				out = append(out, s)
			}
		}
	case string:
		if s := strings.TrimSpace(val); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func coerceFloatMap(v any) map[string]float64 {
	out := map[string]float64{}
	m, ok := v.(map[string]any)
	if !ok {
		return out
	}
	for key, raw := range m {
		if f := coerceFloat(raw); !math.IsNaN(f) {
			out[key] = f
		}
	}
	return out
}

func coerceEvidence(v any) map[string][]string {
	out := map[string][]string{}
	m, ok := v.(map[string]any)
	if !ok {
		return out
	}
	for key, raw := range m {
		out[key] = coerceStrings(raw)
	}
	return out
}

// EvidenceKeys returns the evidence categories in stable order.
func EvidenceKeys(evidence map[string][]string) []string {
	keys := make([]string, 0, len(evidence))
	for key := range evidence {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
