/*
errors.go - Centralized error types for the timesheet engine

PURPOSE:
  All error types in one place. The API layer maps them to HTTP status
  codes through the helpers at the bottom of this file.

ERROR CATEGORIES:
  1. Validation errors - malformed input, rejected before any write
  2. Not found errors - unknown employee or month
  3. Permission errors - writes outside the edit window
  4. Conflicts - a diff met a day whose status it did not expect

  Conflicts are not fatal. Reconciliation logs them and skips the day.

SEE ALSO:
  - reconcile.go: produces ConflictError
  - freeze.go: produces ErrPermissionDenied
  - api/handlers.go: maps these to status codes
*/
package timesheet

import (
	"errors"
	"fmt"
	"time"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	ErrValidation = errors.New("validation failed")

	ErrNotFound = errors.New("not found")

	// ErrPermissionDenied is returned when a day write falls outside the
	// current edit window.
	ErrPermissionDenied = errors.New("permission denied")

	ErrConflict = errors.New("status conflict")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError describes one rejected field. Row is set for file uploads
// and is 1-based over data rows.
type ValidationError struct {
	Row     int    `json:"row,omitempty"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	switch {
	case e.Row > 0 && e.Field != "":
		return fmt.Sprintf("row %d: %s: %s", e.Row, e.Field, e.Message)
	case e.Row > 0:
		return fmt.Sprintf("row %d: %s", e.Row, e.Message)
	case e.Field != "":
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NotFoundError names the missing thing.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// PermissionError explains why a write was refused.
type PermissionError struct {
	Month  Month
	Reason string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("cannot edit %s: %s", e.Month, e.Reason)
}

func (e *PermissionError) Unwrap() error { return ErrPermissionDenied }

// ConflictError records a day a diff skipped because its status was not
// the expected prior state.
type ConflictError struct {
	EmployeeID string    `json:"employee_id"`
	Date       time.Time `json:"date"`
	Found      Status    `json:"found"`
	Want       Status    `json:"want"`
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("employee %s on %s: status %q, cannot apply %q",
		e.EmployeeID, e.Date.Format(DateLayout), e.Found, e.Want)
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// =============================================================================
// ERROR HELPERS
// =============================================================================

func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

func IsPermissionDenied(err error) bool { return errors.Is(err, ErrPermissionDenied) }
