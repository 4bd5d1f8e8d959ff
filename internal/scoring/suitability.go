package scoring

import (
	"strings"

	"github.com/spigell/o1-screener/internal/profile"
)

const suitabilityMaxPoints = 6

// SuitabilityResult is the outcome of the quick-screen heuristic.
// A nil Score means the heuristic could not be computed.
type SuitabilityResult struct {
	Score  *float64 `json:"score"`
	Reason string   `json:"reason"`
	Points int      `json:"points"`
}

var seniorHeadlineKeywords = []string{
	"founder", "co-founder", "cofounder", "cto", "ceo", "chief", "vp", "vice president",
	"head of", "director", "principal", "staff", "senior", "lead", "architect",
}

var prestigeCompanies = []string{
	"google", "meta", "apple", "microsoft", "amazon", "netflix", "nvidia", "openai", "anthropic", "deepmind",
}

// Suitability computes a 0-1 quick-screen score from the normalized document.
// The assessment is accepted so callers can pass what they have; points come
// from the document alone.
func Suitability(doc *profile.Document, _ map[string]any) (res SuitabilityResult) {
	defer func() {
		if r := recover(); r != nil {
			res = SuitabilityResult{}
		}
	}()

	zero := 0.0
	if doc == nil {
		return SuitabilityResult{Score: &zero}
	}

	points := 0
	var reasons []string

	headline := doc.BasicInfo.Headline
	if strings.TrimSpace(headline) == "" && len(doc.Experience) > 0 {
		headline = doc.Experience[0].Title
	}
	if normalized := normalizeTitle(headline); normalized != "" {
		for _, kw := range seniorHeadlineKeywords {
			if phraseMatches(normalized, kw) {
				points++
				reasons = append(reasons, "senior headline")
				break
			}
		}
	}

	switch network := doc.NetworkSize(); {
	case network >= 7000:
		points += 2
		reasons = append(reasons, "network 7000+")
	case network >= 3000:
		points++
		reasons = append(reasons, "network 3000+")
	}

	company := strings.ToLower(doc.BasicInfo.CurrentCompany)
	if company == "" && len(doc.Experience) > 0 {
		company = strings.ToLower(doc.Experience[0].Company)
	}
	for _, name := range prestigeCompanies {
		if company != "" && strings.Contains(company, name) {
			points++
			reasons = append(reasons, "prestige company")
			break
		}
	}

	acc := doc.Accomplishments
	if len(acc.Memberships)+len(acc.Organizations)+len(acc.VolunteerExperience) > 0 {
		points++
		reasons = append(reasons, "community involvement")
	}
	if len(acc.Awards)+len(acc.Publications)+len(acc.Projects) > 0 {
		points++
		reasons = append(reasons, "visibility")
	}
	if len(doc.Recommendations) >= 5 {
		points++
		reasons = append(reasons, "recommendations 5+")
	}

	score := min(1, float64(points)/suitabilityMaxPoints)
	return SuitabilityResult{Score: &score, Reason: strings.Join(reasons, ", "), Points: points}
}
