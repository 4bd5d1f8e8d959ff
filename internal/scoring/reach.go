package scoring

import (
	"fmt"
	"math"
)

// Reach is the social reach assessment of a profile.
type Reach struct {
	// Score is the floor of Continuous and is the value ranking code reads.
	Score      int            `json:"score"`
	Continuous float64        `json:"continuous"`
	Label      string         `json:"label"`
	Level      int            `json:"level"`
	Total      int            `json:"total_reach"`
	Breakdown  map[string]int `json:"breakdown"`
	Summary    string         `json:"summary"`
}

const noPresenceLabel = "No Social Presence"

var reachLevels = []struct {
	min   int
	level int
	label string
}{
	{min: 50000, level: 10, label: "Major Influencer"},
	{min: 25000, level: 9, label: "Strong Influencer"},
	{min: 10000, level: 8, label: "Notable Influence"},
	{min: 5000, level: 7, label: "Good Influence"},
	{min: 2500, level: 6, label: "Moderate Influence"},
	{min: 1000, level: 5, label: "Some Influence"},
	{min: 500, level: 4, label: "Limited Influence"},
	{min: 100, level: 3, label: "Minimal Influence"},
	{min: 1, level: 2, label: "Basic Presence"},
}

// ScoreReach scores followers plus connections on a 0-10 logarithmic scale.
// Negative counts are treated as zero.
func ScoreReach(followers, connections int) Reach {
	followers = max(followers, 0)
	connections = max(connections, 0)
	total := followers + connections

	r := Reach{
		Label:     noPresenceLabel,
		Total:     total,
		Breakdown: map[string]int{"followers": followers, "connections": connections},
	}

	if total > 0 {
		r.Continuous = reachCurve(total)
		r.Score = int(math.Floor(r.Continuous))
		for _, lvl := range reachLevels {
			if total >= lvl.min {
				r.Level = lvl.level
				r.Label = lvl.label
				break
			}
		}
	}

	r.Summary = fmt.Sprintf("%s: %d connections + %d followers = %d total reach (score %.1f/10)",
		r.Label, connections, followers, total, r.Continuous)

	return r
}

func reachCurve(total int) float64 {
	v := 1.5 + 2.5*math.Log10(float64(total)+50)
	return math.Min(10, math.Max(0, v))
}
