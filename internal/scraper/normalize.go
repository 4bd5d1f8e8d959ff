package scraper

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/spigell/o1-screener/internal/profile"
)

type rawBasics struct {
	Name               string `mapstructure:"name"`
	Position           string `mapstructure:"position"`
	Headline           string `mapstructure:"headline"`
	City               string `mapstructure:"city"`
	Location           string `mapstructure:"location"`
	Summary            string `mapstructure:"summary"`
	About              string `mapstructure:"about"`
	URL                string `mapstructure:"url"`
	InputURL           string `mapstructure:"input_url"`
	Avatar             string `mapstructure:"avatar"`
	Connections        int    `mapstructure:"connections"`
	Followers          int    `mapstructure:"followers"`
	CurrentCompanyName string `mapstructure:"current_company_name"`
}

type rawEducation struct {
	profile.Education `mapstructure:",squash"`
	Title             string `mapstructure:"title"`
}

type rawAccomplishment struct {
	profile.Accomplishment `mapstructure:",squash"`
	Name                   string `mapstructure:"name"`
	Issuer                 string `mapstructure:"issuer"`
	Publisher              string `mapstructure:"publisher"`
	Link                   string `mapstructure:"link"`
}

type rawRecommendation struct {
	profile.Recommendation `mapstructure:",squash"`
	Name                   string `mapstructure:"name"`
}

// accomplishmentKeys lists, per category, the source keys read first from the
// nested "accomplishments" block and then from the top level.
var accomplishmentKeys = []struct {
	keys   []string
	target func(a *profile.Accomplishments) *[]profile.Accomplishment
}{
	{keys: []string{"publications"}, target: func(a *profile.Accomplishments) *[]profile.Accomplishment { return &a.Publications }},
	{keys: []string{"patents"}, target: func(a *profile.Accomplishments) *[]profile.Accomplishment { return &a.Patents }},
	{keys: []string{"awards", "honors_and_awards"}, target: func(a *profile.Accomplishments) *[]profile.Accomplishment { return &a.Awards }},
	{keys: []string{"certifications"}, target: func(a *profile.Accomplishments) *[]profile.Accomplishment { return &a.Certifications }},
	{keys: []string{"languages"}, target: func(a *profile.Accomplishments) *[]profile.Accomplishment { return &a.Languages }},
	{keys: []string{"projects"}, target: func(a *profile.Accomplishments) *[]profile.Accomplishment { return &a.Projects }},
	{keys: []string{"courses"}, target: func(a *profile.Accomplishments) *[]profile.Accomplishment { return &a.Courses }},
	{keys: []string{"memberships", "professional_memberships"}, target: func(a *profile.Accomplishments) *[]profile.Accomplishment { return &a.Memberships }},
	{keys: []string{"organizations"}, target: func(a *profile.Accomplishments) *[]profile.Accomplishment { return &a.Organizations }},
	{keys: []string{"volunteer_experience"}, target: func(a *profile.Accomplishments) *[]profile.Accomplishment { return &a.VolunteerExperience }},
	{keys: []string{"bio_links"}, target: func(a *profile.Accomplishments) *[]profile.Accomplishment { return &a.BioLinks }},
}

// Normalize maps a raw scrape record into the fixed document shape. Fields
// that cannot be decoded are left empty. A payload that is not an object is
// kept under Raw["value"] with NormalizationError set, as is a record whose
// basic info does not decode.
func Normalize(raw any) *profile.Document {
	doc := profile.NewDocument()

	src, ok := raw.(map[string]any)
	if !ok {
		doc.Raw = map[string]any{"value": raw}
		doc.NormalizationError = fmt.Sprintf("unexpected payload type %T", raw)
		return doc
	}
	doc.Raw = src

	var basics rawBasics
	if err := decode(src, &basics); err != nil {
		doc.NormalizationError = fmt.Sprintf("basic info: %v", err)
	}

	doc.BasicInfo = profile.BasicInfo{
		Name:           basics.Name,
		Headline:       firstNonEmpty(basics.Position, basics.Headline),
		Location:       firstNonEmpty(basics.City, basics.Location),
		Summary:        firstNonEmpty(basics.Summary, basics.About),
		ProfileURL:     firstNonEmpty(basics.URL, basics.InputURL),
		ProfileImage:   basics.Avatar,
		Connections:    max(basics.Connections, 0),
		Followers:      max(basics.Followers, 0),
		CurrentCompany: firstNonEmpty(basics.CurrentCompanyName, companyName(src["current_company"])),
	}

	for _, item := range listOf(src["experience"]) {
		var exp profile.Experience
		if decode(item, &exp) == nil || exp.Title != "" || exp.Company != "" {
			doc.Experience = append(doc.Experience, exp)
		}
	}
	if doc.BasicInfo.CurrentCompany == "" && len(doc.Experience) > 0 {
		doc.BasicInfo.CurrentCompany = doc.Experience[0].Company
	}

	for _, item := range listOf(src["education"]) {
		var edu rawEducation
		if decode(item, &edu) != nil && edu.Title == "" && edu.School == "" {
			continue
		}
		if edu.School == "" {
			edu.School = edu.Title
		}
		doc.Education = append(doc.Education, edu.Education)
	}

	for _, item := range listOf(src["skills"]) {
		if skill := textOf(item, "name", "title"); skill != "" {
			doc.Skills = append(doc.Skills, skill)
		}
	}

	nested, _ := src["accomplishments"].(map[string]any)
	for _, category := range accomplishmentKeys {
		target := category.target(&doc.Accomplishments)
		for _, key := range category.keys {
			items := listOf(nested[key])
			if len(items) == 0 {
				items = listOf(src[key])
			}
			for _, item := range items {
				if acc, ok := toAccomplishment(item); ok {
					*target = append(*target, acc)
				}
			}
		}
	}

	for _, item := range listOf(src["recommendations"]) {
		if rec, ok := toRecommendation(item); ok {
			doc.Recommendations = append(doc.Recommendations, rec)
		}
	}

	return doc
}

func toAccomplishment(item any) (profile.Accomplishment, bool) {
	if s, ok := item.(string); ok {
		s = strings.TrimSpace(s)
		return profile.Accomplishment{Title: s}, s != ""
	}

	var raw rawAccomplishment
	_ = decode(item, &raw)
	acc := raw.Accomplishment
	acc.Title = firstNonEmpty(acc.Title, raw.Name)
	acc.Subtitle = firstNonEmpty(acc.Subtitle, raw.Issuer, raw.Publisher)
	acc.URL = firstNonEmpty(acc.URL, raw.Link)

	return acc, acc != profile.Accomplishment{}
}

func toRecommendation(item any) (profile.Recommendation, bool) {
	if s, ok := item.(string); ok {
		s = strings.TrimSpace(s)
		return profile.Recommendation{Text: s}, s != ""
	}

	var raw rawRecommendation
	_ = decode(item, &raw)
	rec := raw.Recommendation
	rec.Recommender = firstNonEmpty(rec.Recommender, raw.Name)

	return rec, rec != profile.Recommendation{}
}

func decode(input, target any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		DecodeHook:       countHook,
		Result:           target,
	})
	if err != nil {
		return err
	}
	return dec.Decode(input)
}

// countHook lets counters arrive as display strings such as "500+" or "1,204".
func countHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String || to.Kind() != reflect.Int {
		return data, nil
	}

	var digits strings.Builder
	for _, r := range reflect.ValueOf(data).String() {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	if digits.Len() == 0 {
		return 0, nil
	}

	n, err := strconv.Atoi(digits.String())
	if err != nil {
		return 0, nil
	}
	return n, nil
}

func companyName(v any) string {
	switch c := v.(type) {
	case string:
		return strings.TrimSpace(c)
	case map[string]any:
		name, _ := c["name"].(string)
		return strings.TrimSpace(name)
	default:
		return ""
	}
}

func textOf(item any, keys ...string) string {
	switch v := item.(type) {
	case string:
		return strings.TrimSpace(v)
	case map[string]any:
		for _, key := range keys {
			if s, ok := v[key].(string); ok && strings.TrimSpace(s) != "" {
				return strings.TrimSpace(s)
			}
		}
	}
	return ""
}

func listOf(v any) []any {
	items, _ := v.([]any)
	return items
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
