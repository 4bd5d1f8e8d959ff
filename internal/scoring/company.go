package scoring

import "strings"

// CompanyTier is a coarse prestige bucket for an employer.
type CompanyTier string

const (
	CompanyTierA      CompanyTier = "A"
	CompanyTierAMinus CompanyTier = "A-"
	CompanyTierB      CompanyTier = "B"
	CompanyTierC      CompanyTier = "C"
	CompanyTierD      CompanyTier = "D"
)

var companyTiers = []struct {
	tier  CompanyTier
	names []string
}{
	{tier: CompanyTierA, names: []string{"google", "apple", "meta", "facebook", "amazon", "netflix", "microsoft", "nvidia", "openai", "anthropic"}},
	{tier: CompanyTierAMinus, names: []string{"uber", "airbnb", "stripe", "spotify", "twitter", "x corp", "tesla", "spacex", "palantir"}},
	{tier: CompanyTierB, names: []string{"oracle", "salesforce", "adobe", "intel", "ibm", "cisco", "vmware", "snowflake", "databricks", "atlassian"}},
	{tier: CompanyTierC, names: []string{"consulting", "accenture", "deloitte", "pwc", "kpmg", "ernst & young"}},
}

// ResolveCompanyTier buckets a company name. Unknown, empty and "N/A" names are tier D.
func ResolveCompanyTier(name string) CompanyTier {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" || name == "n/a" {
		return CompanyTierD
	}

	for _, group := range companyTiers {
		for _, candidate := range group.names {
			if strings.Contains(name, candidate) {
				return group.tier
			}
		}
	}

	return CompanyTierD
}

// Score returns the numeric weight of the tier.
func (t CompanyTier) Score() float64 {
	switch t {
	case CompanyTierA:
		return 9.0
	case CompanyTierAMinus:
		return 8.0
	case CompanyTierB:
		return 6.5
	case CompanyTierC:
		return 5.0
	default:
		return 3.0
	}
}
