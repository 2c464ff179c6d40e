package intake

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrSubmissionInFlight means Submit was called while a submission is
	// already running; the call is a no-op
	ErrSubmissionInFlight = errors.New("submission already in flight")
	// ErrFormSpent means the form instance already succeeded
	ErrFormSpent = errors.New("form instance already submitted")
	// ErrUnknownField means SetField was called with a name outside the
	// draft schema
	ErrUnknownField = errors.New("unknown draft field")
	// ErrDropLocationLocked means drop location was edited directly while
	// it mirrors the pickup location
	ErrDropLocationLocked = errors.New("drop location mirrors pickup location")
	// ErrSourceConflict means SetSource was called twice with different tags
	ErrSourceConflict = errors.New("source already set to a different tag")
)

// ValidationError carries per-field messages. It never reaches the network
// layer; the visitor recovers by editing the named fields.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	parts := make([]string, 0, len(e.Fields))
	for field, msg := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", field, msg))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// SubmissionError wraps a network or backend failure on the final create
// call. Retryable: the draft is preserved.
type SubmissionError struct {
	Err error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("submission failed: %v", e.Err)
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}

// FailureKind classifies the retained error for presentation
type FailureKind string

const (
	FailureValidation FailureKind = "validation"
	FailureDuplicate  FailureKind = "duplicate"
	FailureSubmission FailureKind = "submission"
)

// Failure is the error state retained after a failed submission attempt,
// until the next edit or ClearError
type Failure struct {
	Kind    FailureKind
	Message string
	Fields  map[string]string
}
