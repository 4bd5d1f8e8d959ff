package profile

import "strings"

// Document is the fixed-shape representation of a scraped professional profile.
// Every list is non-nil once produced by the scraper so consumers can range over
// it without checks.
type Document struct {
	BasicInfo       BasicInfo        `json:"basic_info"`
	Experience      []Experience     `json:"experience"`
	Education       []Education      `json:"education"`
	Skills          []string         `json:"skills"`
	Accomplishments Accomplishments  `json:"accomplishments"`
	Recommendations []Recommendation `json:"recommendations"`

	Raw                map[string]any `json:"raw_data,omitempty"`
	NormalizationError string         `json:"normalization_error,omitempty"`
}

// BasicInfo holds the headline block. Connections and Followers are the
// canonical network-size fields read by every scorer.
type BasicInfo struct {
	Name           string `json:"name" mapstructure:"name"`
	Headline       string `json:"headline" mapstructure:"headline"`
	Location       string `json:"location" mapstructure:"location"`
	Summary        string `json:"summary" mapstructure:"summary"`
	ProfileURL     string `json:"profile_url" mapstructure:"profile_url"`
	ProfileImage   string `json:"profile_image" mapstructure:"profile_image"`
	Connections    int    `json:"connections" mapstructure:"connections"`
	Followers      int    `json:"followers" mapstructure:"followers"`
	CurrentCompany string `json:"current_company" mapstructure:"current_company"`
}

type Experience struct {
	Title       string `json:"title" mapstructure:"title"`
	Company     string `json:"company" mapstructure:"company"`
	Location    string `json:"location" mapstructure:"location"`
	StartDate   string `json:"start_date" mapstructure:"start_date"`
	EndDate     string `json:"end_date" mapstructure:"end_date"`
	Description string `json:"description" mapstructure:"description"`
	Duration    string `json:"duration" mapstructure:"duration"`
}

type Education struct {
	School      string `json:"school" mapstructure:"school"`
	Degree      string `json:"degree" mapstructure:"degree"`
	Field       string `json:"field" mapstructure:"field"`
	StartYear   string `json:"start_year" mapstructure:"start_year"`
	EndYear     string `json:"end_year" mapstructure:"end_year"`
	Description string `json:"description" mapstructure:"description"`
}

// Accomplishment is a generic titled record (award, patent, course, membership...).
// Plain-string source records land in Title.
type Accomplishment struct {
	Title       string `json:"title" mapstructure:"title"`
	Subtitle    string `json:"subtitle,omitempty" mapstructure:"subtitle"`
	Description string `json:"description,omitempty" mapstructure:"description"`
	Date        string `json:"date,omitempty" mapstructure:"date"`
	URL         string `json:"url,omitempty" mapstructure:"url"`
}

type Accomplishments struct {
	Publications        []Accomplishment `json:"publications"`
	Patents             []Accomplishment `json:"patents"`
	Awards              []Accomplishment `json:"awards"`
	Certifications      []Accomplishment `json:"certifications"`
	Languages           []Accomplishment `json:"languages"`
	Projects            []Accomplishment `json:"projects"`
	Courses             []Accomplishment `json:"courses"`
	Memberships         []Accomplishment `json:"memberships"`
	Organizations       []Accomplishment `json:"organizations"`
	VolunteerExperience []Accomplishment `json:"volunteer_experience"`
	BioLinks            []Accomplishment `json:"bio_links"`
}

type Recommendation struct {
	Recommender  string `json:"recommender" mapstructure:"recommender"`
	Relationship string `json:"relationship" mapstructure:"relationship"`
	Text         string `json:"text" mapstructure:"text"`
}

// NewDocument returns an empty document with every list initialised.
func NewDocument() *Document {
	return &Document{
		Experience:      []Experience{},
		Education:       []Education{},
		Skills:          []string{},
		Recommendations: []Recommendation{},
		Accomplishments: Accomplishments{
			Publications:        []Accomplishment{},
			Patents:             []Accomplishment{},
			Awards:              []Accomplishment{},
			Certifications:      []Accomplishment{},
			Languages:           []Accomplishment{},
			Projects:            []Accomplishment{},
			Courses:             []Accomplishment{},
			Memberships:         []Accomplishment{},
			Organizations:       []Accomplishment{},
			VolunteerExperience: []Accomplishment{},
			BioLinks:            []Accomplishment{},
		},
	}
}

// NetworkSize returns connections plus followers, never negative.
func (d *Document) NetworkSize() int {
	if d == nil {
		return 0
	}
	total := 0
	if d.BasicInfo.Connections > 0 {
		total += d.BasicInfo.Connections
	}
	if d.BasicInfo.Followers > 0 {
		total += d.BasicInfo.Followers
	}
	return total
}

// CurrentPosition returns the latest job title and employer. The latest
// experience entry wins; the headline block fills what it lacks.
func (d *Document) CurrentPosition() (title, company string) {
	if d == nil {
		return "", ""
	}
	if len(d.Experience) > 0 {
		title = strings.TrimSpace(d.Experience[0].Title)
		company = strings.TrimSpace(d.Experience[0].Company)
	}
	if title == "" {
		title = strings.TrimSpace(d.BasicInfo.Headline)
	}
	if c := strings.TrimSpace(d.BasicInfo.CurrentCompany); c != "" {
		company = c
	}
	return title, company
}
