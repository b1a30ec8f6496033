// Package dosing implements the insulin dosing formulas: prandial bolus,
// ICR/ISF estimation and basal adjustment. Every function is pure; inputs are
// validated before any formula runs and failures are returned, never logged.
package dosing

import (
	"errors"
	"fmt"
)

var (
	// ErrNotInitialized is returned when a test day is recorded before the
	// initial ICR estimate exists.
	ErrNotInitialized = errors.New("initial ICR estimate has not been computed")
	// ErrNoCompletedDays is returned by Finalize when no day has a result.
	ErrNoCompletedDays = errors.New("at least one completed test day is required")
)

// ValidationError reports malformed or out-of-range input
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is (or wraps) a ValidationError
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// AdvisoryKind identifies the value an advisory is about
type AdvisoryKind string

const (
	AdvisoryInitialICR AdvisoryKind = "initial_icr"
	AdvisoryFinalICR   AdvisoryKind = "final_icr"
)

// Advisory is a non-blocking warning about an unusual but usable value
type Advisory struct {
	Kind    AdvisoryKind `json:"kind"`
	Value   float64      `json:"value"`
	Low     float64      `json:"low"`
	High    float64      `json:"high"`
	Message string       `json:"message"`
}

// NewValidationError reports that field failed validation
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}
