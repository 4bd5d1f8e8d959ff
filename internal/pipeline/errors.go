package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/spigell/o1-screener/internal/ai"
	"github.com/spigell/o1-screener/internal/scraper"
	"github.com/spigell/o1-screener/internal/storage"
)

// Kind tags a failed run with its error category.
type Kind string

const (
	KindMissingReference Kind = "MissingReference"
	KindUnavailable      Kind = "Unavailable"
	KindTimeout          Kind = "Timeout"
	KindFailed           Kind = "Failed"
	KindAssessment       Kind = "AssessmentError"
	KindPersistence      Kind = "PersistenceError"
	KindInternal         Kind = "Internal"
)

var ErrMissingReference = errors.New("profile has no external reference")

// Error is a classified run failure.
type Error struct {
	Kind Kind
	Step string
	Err  error
}

func (e *Error) Error() string {
	if e.Step == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s (%s): %v", e.Step, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Classify maps an error onto a Kind. Unknown errors are Internal.
func Classify(err error) Kind {
	var classified *Error
	switch {
	case err == nil:
		return ""
	case errors.As(err, &classified):
		return classified.Kind
	case errors.Is(err, ErrMissingReference):
		return KindMissingReference
	case errors.Is(err, ai.ErrAssessment):
		return KindAssessment
	case errors.Is(err, scraper.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, scraper.ErrUnavailable), errors.Is(err, scraper.ErrRateLimited):
		return KindUnavailable
	case errors.Is(err, scraper.ErrFailed):
		return KindFailed
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, storage.ErrDuplicate):
		return KindPersistence
	default:
		return KindInternal
	}
}
