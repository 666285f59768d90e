package core

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrUnknownPattern is returned for a pattern name outside the supported set.
	ErrUnknownPattern = errors.New("unknown pattern")
	// ErrInvalidMaxIterations is returned when max iterations is below one.
	ErrInvalidMaxIterations = errors.New("max iterations must be at least 1")
	// ErrEmptyQuery is returned when a new turn has no query text.
	ErrEmptyQuery = errors.New("query must not be empty")
	// ErrModelCallLimit is returned when a run exceeds its model call budget.
	ErrModelCallLimit = errors.New("model call limit exceeded")
)

// ErrorKind categorises errors that abort a run.
type ErrorKind string

const (
	KindInvalidRequest ErrorKind = "invalid_request"
	KindInfrastructure ErrorKind = "infrastructure"
	KindCancelled      ErrorKind = "cancelled"
)

// RunError is the single categorised error surfaced by the dispatcher.
type RunError struct {
	Kind     ErrorKind
	Pattern  Pattern
	ThreadID string
	Err      error
}

// Error implements the error interface.
func (e *RunError) Error() string {
	return fmt.Sprintf("%s run %s (%s): %v", e.Pattern, e.ThreadID, e.Kind, e.Err)
}

// Unwrap exposes the cause for errors.Is / errors.As.
func (e *RunError) Unwrap() error { return e.Err }

// NewRunError wraps err, deriving the kind from the cause.
func NewRunError(p Pattern, threadID string, err error) *RunError {
	kind := KindInfrastructure
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		kind = KindCancelled
	case errors.Is(err, ErrUnknownPattern), errors.Is(err, ErrInvalidMaxIterations), errors.Is(err, ErrEmptyQuery):
		kind = KindInvalidRequest
	}
	return &RunError{Kind: kind, Pattern: p, ThreadID: threadID, Err: err}
}

// ErrorKindOf returns the kind of a RunError in err's chain, or "" if none.
func ErrorKindOf(err error) ErrorKind {
	var re *RunError
	if errors.As(err, &re) {
		return re.Kind
	}
	return ""
}
