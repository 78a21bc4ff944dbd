package training

import (
	"fmt"
	"time"

	"github.com/shamoevthomas/forceapp/internal/calendar"
	"github.com/shamoevthomas/forceapp/internal/errors"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.NewSentinel("not found")
	// ErrNoActiveProgram is returned by operations that need a program when the user has none active.
	ErrNoActiveProgram = errors.NewSentinel("no active program")
	// ErrRestDay is returned when committing a date without a scheduled training day.
	ErrRestDay = errors.NewSentinel("rest day")
	// ErrInvalidProgram is returned for program drafts that violate the program rules.
	ErrInvalidProgram = errors.NewSentinel("invalid program")
	// ErrInvalidEntry is returned for entered sets that cannot be stored.
	ErrInvalidEntry = errors.NewSentinel("invalid set entry")
	// ErrInvalidUser is returned when registering a user without a display name.
	ErrInvalidUser = errors.NewSentinel("invalid user")
)

// CommitStep names a step of the commit workflow. Steps run in declaration order.
type CommitStep string

const (
	StepUpsertLog     CommitStep = "upsert log"
	StepReplaceSets   CommitStep = "replace sets"
	StepUpdateWeights CommitStep = "update exercise weights"
	StepFinalize      CommitStep = "commit transaction"
	StepAggregates    CommitStep = "recompute aggregates"
)

// CommitError is a persistence failure of a commit. Steps after Step did not run.
//
// A failure in StepAggregates happens after the session data was stored.
type CommitError struct {
	Step CommitStep
	Date time.Time
	Err  error
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("commit session %s: %s: %v", calendar.ISODay(e.Date), e.Step, e.Err)
}

func (e *CommitError) Unwrap() error {
	return e.Err
}

// Durable reports whether the session data itself was stored before the failure.
func (e *CommitError) Durable() bool {
	return e.Step == StepAggregates
}
