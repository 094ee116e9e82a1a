/*
errors.go - Centralized error types for the fiscal engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Domain packages wrap these errors with additional context.

ERROR CATEGORIES:
  1. Input errors - Invalid dates, dates outside the configured range
  2. Configuration errors - Malformed calendar definitions, caught at
     construction time so that resolution is always total
  3. Store errors - Calendar/document collaborator failures and the
     duplicate-event contract

USAGE:
  Callers classify with errors.Is / errors.As:

    if errors.Is(err, generic.ErrOutOfRange) {
        return http.StatusBadRequest
    }

SEE ALSO:
  - fiscal/config.go: Raises ConfigurationError
  - fiscal/resolver.go: Raises InvalidDateError and OutOfRangeError
  - api/handlers.go: Maps these errors to HTTP status codes
*/
package generic

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidDate is returned when an input is not a usable calendar date.
	ErrInvalidDate = errors.New("invalid date")

	// ErrConfiguration is returned when a calendar definition is malformed.
	ErrConfiguration = errors.New("invalid fiscal calendar configuration")

	// ErrOutOfRange is returned for dates earlier than the calendar's base date.
	ErrOutOfRange = errors.New("date out of range")

	// ErrDuplicateEvent is returned by stores when an event with the same
	// title and start already exists.
	ErrDuplicateEvent = errors.New("duplicate event")

	// ErrInvalidPeriod is returned when a period is malformed (end before start).
	ErrInvalidPeriod = errors.New("invalid period: end before start")

	// ErrTemplateNotFound is returned when a referenced template doesn't exist.
	ErrTemplateNotFound = errors.New("template not found")

	// ErrDocumentNotFound is returned when a referenced document doesn't exist.
	ErrDocumentNotFound = errors.New("document not found")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InvalidDateError describes an input that could not be read as a date.
type InvalidDateError struct {
	Input string
	Err   error
}

func (e *InvalidDateError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid date %q: %v", e.Input, e.Err)
	}
	return fmt.Sprintf("invalid date %q", e.Input)
}

func (e *InvalidDateError) Unwrap() error {
	return ErrInvalidDate
}

// ConfigurationError names the offending field of a calendar definition.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid fiscal calendar configuration: %s: %s", e.Field, e.Reason)
}

func (e *ConfigurationError) Unwrap() error {
	return ErrConfiguration
}

// OutOfRangeError is returned when a date precedes the calendar's base date.
type OutOfRangeError struct {
	Date     TimePoint
	BaseDate TimePoint
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("date %s is before calendar base date %s", e.Date, e.BaseDate)
}

func (e *OutOfRangeError) Unwrap() error {
	return ErrOutOfRange
}

// DuplicateEventError identifies the event that already exists.
type DuplicateEventError struct {
	Title      string
	Start      string
	ExistingID EventID
}

func (e *DuplicateEventError) Error() string {
	return fmt.Sprintf("event already exists: %q at %s (id: %s)", e.Title, e.Start, e.ExistingID)
}

func (e *DuplicateEventError) Unwrap() error {
	return ErrDuplicateEvent
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidDate) ||
		errors.Is(err, ErrOutOfRange) ||
		errors.Is(err, ErrInvalidPeriod) ||
		errors.Is(err, ErrConfiguration)
}

// IsConflict returns true if the error reports an already-existing record.
func IsConflict(err error) bool {
	return errors.Is(err, ErrDuplicateEvent)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrTemplateNotFound) ||
		errors.Is(err, ErrDocumentNotFound)
}
