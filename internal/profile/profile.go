package profile

import "time"

// Status is the processing state of a profile.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// ReviewStatus is the manual review verdict a caseworker records for a profile.
type ReviewStatus string

const (
	ReviewUnknown      ReviewStatus = "unknown"
	ReviewCandidate    ReviewStatus = "candidate"
	ReviewNotCandidate ReviewStatus = "not_candidate"
)

// ReviewStatuses lists every accepted review verdict in display order.
var ReviewStatuses = []ReviewStatus{ReviewUnknown, ReviewCandidate, ReviewNotCandidate}

// ParseReviewStatus validates a review verdict.
func ParseReviewStatus(s string) (ReviewStatus, bool) {
	for _, st := range ReviewStatuses {
		if string(st) == s {
			return st, true
		}
	}
	return "", false
}

// Profile is the unit of work: one person being assessed.
type Profile struct {
	ID             string `json:"id"`
	APIID          string `json:"api_id"`
	Name           string `json:"name"`
	Email          string `json:"email"`
	Reference      string `json:"reference,omitempty"`
	AdditionalInfo string `json:"additional_info,omitempty"`

	Document   *Document           `json:"document,omitempty"`
	Assessment map[string]any      `json:"assessment,omitempty"`
	Evidence   map[string][]string `json:"evidence,omitempty"`

	FinalScore *float64 `json:"final_score,omitempty"`
	Rank       *int     `json:"rank,omitempty"`
	Status     Status   `json:"status"`

	SuitabilityScore  *float64     `json:"suitability_score,omitempty"`
	SuitabilityReason string       `json:"suitability_reason,omitempty"`
	ReviewStatus      ReviewStatus `json:"review_status"`
	ReviewNotes       string       `json:"review_notes,omitempty"`

	// CompletedSeq orders completions; the lower value wins a score tie.
	CompletedSeq int64 `json:"completed_seq,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// LogStatus is the status of one audit row.
type LogStatus string

const (
	LogStarted   LogStatus = "started"
	LogCompleted LogStatus = "completed"
	LogFailed    LogStatus = "failed"
)

// LogEntry is an append-only audit record of a pipeline step transition.
type LogEntry struct {
	ID        string         `json:"id"`
	ProfileID string         `json:"profile_id"`
	Step      string         `json:"step"`
	Status    LogStatus      `json:"status"`
	Message   string         `json:"message"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}
