package scoring

import (
	"fmt"
	"strings"
)

const (
	TierVP        = "VP"
	TierExecutive = "Executive"
	TierSenior    = "Senior"
	TierJunior    = "Junior"

	juniorScore = 2
)

// Seniority is the outcome of classifying a job title.
type Seniority struct {
	Tier   string `json:"tier"`
	Score  int    `json:"score"`
	Reason string `json:"reason"`
}

type seniorityTier struct {
	name     string
	keywords []string
	// oneWord lists the keywords allowed to match a single-word title.
	// A nil set means any keyword may.
	oneWord map[string]bool
	score   func(title string) int
}

// seniorityTiers is evaluated top to bottom; the first tier with a match wins.
var seniorityTiers = []seniorityTier{
	{
		name: TierVP,
		keywords: []string{
			"vp of", "vp", "vice president", "svp", "senior vice president", "evp", "executive vice president",
			"chief technology officer", "chief executive officer", "chief financial officer",
			"chief operating officer", "chief marketing officer", "cto", "ceo", "cfo", "coo", "cmo",
			"head of engineering", "head of product", "head of data", "head of ai", "head of ml",
			"founder", "co-founder", "cofounder",
		},
		oneWord: map[string]bool{"cto": true, "ceo": true, "cfo": true, "coo": true, "cmo": true, "founder": true},
		score: func(title string) int {
			if containsAny(title, "chief", "founder", "ceo", "cto") {
				return 10
			}
			return 9
		},
	},
	{
		name: TierExecutive,
		keywords: []string{
			"director", "senior director", "managing director", "executive director",
			"principal", "senior principal", "distinguished", "fellow", "architect",
			"lead", "team lead", "tech lead", "engineering manager", "senior manager",
			"group manager", "program manager", "senior program manager",
		},
		score: func(title string) int {
			if containsAny(title, "director", "principal", "distinguished") {
				return 8
			}
			return 7
		},
	},
	{
		name: TierSenior,
		keywords: []string{
			"senior", "sr.", "sr", "staff", "senior staff", "specialist", "senior specialist",
			"consultant", "senior consultant", "expert", "senior expert",
		},
		score: func(title string) int {
			switch {
			case strings.Contains(title, "staff"):
				return 6
			case strings.Contains(title, "senior"):
				return 5
			default:
				return 4
			}
		},
	},
}

// ClassifySeniority maps a free-text job title to a seniority tier and a 1-10 score.
// The company only enriches the reason.
func ClassifySeniority(title, company string) Seniority {
	normalized := normalizeTitle(title)
	if normalized == "" {
		return Seniority{Tier: TierJunior, Score: juniorScore, Reason: "no job title available"}
	}

	subject := strings.TrimSpace(title)
	if company = strings.TrimSpace(company); company != "" && !strings.EqualFold(company, "n/a") {
		subject = fmt.Sprintf("%s at %s", subject, company)
	}

	singleWord := len(strings.Fields(normalized)) == 1
	for _, tier := range seniorityTiers {
		for _, keyword := range tier.keywords {
			if singleWord && tier.oneWord != nil && !tier.oneWord[keyword] {
				continue
			}
			if !phraseMatches(normalized, keyword) {
				continue
			}
			return Seniority{
				Tier:   tier.name,
				Score:  tier.score(normalized),
				Reason: fmt.Sprintf("%s-level title: %s", tier.name, subject),
			}
		}
	}

	return Seniority{Tier: TierJunior, Score: juniorScore, Reason: fmt.Sprintf("Entry/mid-level title: %s", subject)}
}

// normalizeTitle lower-cases the title, turns separators into spaces and collapses whitespace.
// Hyphens and dots are kept so "co-founder" and "sr." survive.
func normalizeTitle(title string) string {
	replacer := strings.NewReplacer(",", " ", "|", " ", "/", " ", "(", " ", ")", " ", "@", " ", "&", " ", ";", " ", ":", " ")
	return strings.Join(strings.Fields(strings.ToLower(replacer.Replace(title))), " ")
}

// phraseMatches reports whether phrase equals the title, or appears in it bounded by spaces.
// Prefix and suffix tokens are covered by the bounded check on the padded title.
func phraseMatches(title, phrase string) bool {
	if title == phrase {
		return true
	}
	return strings.Contains(" "+title+" ", " "+phrase+" ")
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
