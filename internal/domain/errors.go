package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by repo and service functions when the requested
// resource does not exist in the database.
// Handlers should map this to HTTP 404.
var ErrNotFound = errors.New("not found")

// ErrValidation is returned by service functions when input fails business
// rule validation (e.g. missing lead name, malformed report date, start after end).
// Handlers should map this to HTTP 422 Unprocessable Entity.
var ErrValidation = errors.New("validation error")

// ErrConflict is returned when a write would break a uniqueness rule, such as
// attaching an email that an active guide already holds.
// Handlers should map this to HTTP 409.
var ErrConflict = errors.New("conflict")

// ErrDependency is returned when a delete is blocked by dependent rows.
// Use errors.As with *DependencyError to read the blocking counts.
var ErrDependency = errors.New("dependency error")

// ErrForbidden is returned when the acting account may not perform an operation,
// e.g. a guide approving their own trip.
var ErrForbidden = errors.New("forbidden")

// ErrConfiguration signals a gap in static configuration such as a missing
// rate-table row. It is never expected at runtime and maps to HTTP 500.
var ErrConfiguration = errors.New("configuration error")

// DependencyError carries the number of rows that block a delete.
// It unwraps to ErrDependency.
type DependencyError struct {
	Entity string
	Counts map[string]int
	Hint   string
}

func (e *DependencyError) Error() string {
	total := 0
	for _, n := range e.Counts {
		total += n
	}
	msg := fmt.Sprintf("cannot delete %s: %d dependent record(s)", e.Entity, total)
	if e.Hint != "" {
		msg += "; " + e.Hint
	}
	return msg
}

func (e *DependencyError) Unwrap() error { return ErrDependency }

// Validationf builds an error wrapping ErrValidation with a formatted message.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Conflictf builds an error wrapping ErrConflict with a formatted message.
func Conflictf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConflict, fmt.Sprintf(format, args...))
}
