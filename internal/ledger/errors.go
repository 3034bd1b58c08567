package ledger

import (
	"errors"
	"fmt"
)

var (
	// ErrSourceUnavailable is returned when a range cannot be read or parsed.
	// Callers degrade the source to zero rows instead of aborting the cycle.
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrEmptyLedger marks the "no data" terminal state. It is reported, never returned
	// from the pipeline as a failure.
	ErrEmptyLedger = errors.New("empty ledger")

	// ErrInvalidEntry is returned by Entry.Validate.
	ErrInvalidEntry = errors.New("invalid entry")
)

// SourceError describes a failed read of one source range.
type SourceError struct {
	Source Source
	Range  string
	Err    error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("read %s range %q: %v", e.Source, e.Range, e.Err)
}

// Unwrap exposes both ErrSourceUnavailable and the transport error.
func (e *SourceError) Unwrap() []error {
	return []error{ErrSourceUnavailable, e.Err}
}

// AppendFailure is returned when the transport rejects a write.
// Detail is the transport's message, surfaced verbatim.
type AppendFailure struct {
	Detail string
	Err    error
}

func (e *AppendFailure) Error() string {
	return "append failed: " + e.Detail
}

func (e *AppendFailure) Unwrap() error {
	return e.Err
}

// Diagnostic records a field that could not be parsed and was coerced to a default.
type Diagnostic struct {
	Field  Field  `json:"field"`
	Value  string `json:"value"`
	Reason string `json:"reason"`
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s=%q: %s", d.Field, d.Value, d.Reason)
}
