package ai

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spigell/o1-screener/internal/profile"
	"github.com/spigell/o1-screener/internal/utils"
)

//go:embed prompt.md
var systemPrompt string

const (
	maxExperience = 5
	maxSummary    = 300
)

// BuildPrompt returns the system instructions and the user message for one profile.
func BuildPrompt(in *Input) (string, string, error) {
	if in == nil || in.Document == nil {
		return "", "", fmt.Errorf("%w: profile document is required", ErrAssessment)
	}

	doc := in.Document
	info := doc.BasicInfo
	sig := in.Signals

	var b strings.Builder
	b.WriteString("Assess the following professional for O-1 eligibility.\n\n")

	b.WriteString("BASIC INFORMATION\n")
	fmt.Fprintf(&b, "- Name: %s\n", orNA(firstNonEmpty(info.Name, in.Name)))
	fmt.Fprintf(&b, "- Current title: %s\n", orNA(info.Headline))
	fmt.Fprintf(&b, "- Current company: %s\n", orNA(info.CurrentCompany))
	fmt.Fprintf(&b, "- Location: %s\n", orNA(info.Location))
	fmt.Fprintf(&b, "- Summary: %s\n", orNA(utils.TruncateForLog(info.Summary, maxSummary)))
	if extra := strings.TrimSpace(in.AdditionalInfo); extra != "" {
		fmt.Fprintf(&b, "- Additional information from the applicant: %s\n", extra)
	}

	b.WriteString("\nPRE-COMPUTED SIGNALS\n")
	fmt.Fprintf(&b, "- Seniority: %s (%d/10). %s\n", sig.Seniority.Tier, sig.Seniority.Score, sig.Seniority.Reason)
	fmt.Fprintf(&b, "- Company tier: %s (%.1f/10)\n", sig.CompanyTier, sig.CompanyTier.Score())
	fmt.Fprintf(&b, "- Social reach: %s\n", sig.Reach.Summary)
	fmt.Fprintf(&b, "- Connections: %d, followers: %d\n", info.Connections, info.Followers)

	b.WriteString("\nPROFESSIONAL EXPERIENCE\n")
	if len(doc.Experience) == 0 {
		b.WriteString("No experience listed.\n")
	}
	for i, exp := range doc.Experience {
		if i == maxExperience {
			break
		}
		fmt.Fprintf(&b, "%d. %s at %s (%s - %s)\n", i+1, orNA(exp.Title), orNA(exp.Company), orNA(exp.StartDate), orNA(exp.EndDate))
		if d := strings.TrimSpace(exp.Description); d != "" {
			fmt.Fprintf(&b, "   %s\n", utils.TruncateForLog(d, maxSummary))
		}
	}

	b.WriteString("\nEDUCATION\n")
	if len(doc.Education) == 0 {
		b.WriteString("No education listed.\n")
	}
	for _, edu := range doc.Education {
		fmt.Fprintf(&b, "- %s, %s %s\n", orNA(edu.School), edu.Degree, edu.Field)
	}

	if len(doc.Skills) > 0 {
		fmt.Fprintf(&b, "\nSKILLS\n%s\n", strings.Join(doc.Skills, ", "))
	}

	acc := doc.Accomplishments
	b.WriteString("\nACCOMPLISHMENTS\n")
	writeAccomplishments(&b, "Patents", acc.Patents)
	writeAccomplishments(&b, "Awards", acc.Awards)
	writeAccomplishments(&b, "Publications", acc.Publications)
	writeAccomplishments(&b, "Projects", acc.Projects)
	writeAccomplishments(&b, "Certifications", acc.Certifications)
	writeAccomplishments(&b, "Courses", acc.Courses)
	writeAccomplishments(&b, "Memberships", append(append([]profile.Accomplishment{}, acc.Memberships...), acc.Organizations...))
	writeAccomplishments(&b, "Volunteer experience", acc.VolunteerExperience)

	fmt.Fprintf(&b, "\nRECOMMENDATIONS: %d\n", len(doc.Recommendations))
	for i, rec := range doc.Recommendations {
		if i == 3 {
			break
		}
		fmt.Fprintf(&b, "- %s\n", utils.TruncateForLog(rec.Text, maxSummary))
	}

	signals, err := json.Marshal(sig)
	if err != nil {
		return "", "", fmt.Errorf("marshal signals: %w", err)
	}
	fmt.Fprintf(&b, "\nSIGNALS JSON\n%s\n", signals)

	return strings.TrimSpace(systemPrompt), b.String(), nil
}

func writeAccomplishments(b *strings.Builder, label string, items []profile.Accomplishment) {
	if len(items) == 0 {
		fmt.Fprintf(b, "- %s: none\n", label)
		return
	}
	titles := make([]string, 0, len(items))
	for _, item := range items {
		title := item.Title
		if item.Subtitle != "" {
			title = fmt.Sprintf("%s (%s)", title, item.Subtitle)
		}
		titles = append(titles, title)
	}
	fmt.Fprintf(b, "- %s (%d): %s\n", label, len(items), strings.Join(titles, "; "))
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "N/A"
	}
	return s
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
