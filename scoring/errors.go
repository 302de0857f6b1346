/*
errors.go - Centralized error types for the scoring domain

PURPOSE:
  All error types in one place. Sentinel errors for errors.Is checks,
  structured errors carrying context for errors.As. Store
  implementations map database constraint violations onto the duplicate
  sentinels so callers never match on driver error strings.

SEE ALSO:
  - month.go: ParseMonth returns MalformedDateTokenError
  - store/sqlite, store/postgres: map unique violations to the sentinels
*/
package scoring

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrMalformedDateToken is returned when a delivery-date token does not
	// match "YYYY-MM". Scoring refuses to proceed because skipping the
	// record would corrupt the delay-loss sums.
	ErrMalformedDateToken = errors.New("malformed year-month token")

	// ErrDuplicateTarget is returned when a second target is written for
	// the same (KAM, month).
	ErrDuplicateTarget = errors.New("duplicate target for month")

	// ErrDuplicateSnapshot is returned when a second snapshot is written
	// for the same (project, month).
	ErrDuplicateSnapshot = errors.New("duplicate snapshot for month")

	// ErrKAMNotFound is returned when a referenced KAM doesn't exist.
	ErrKAMNotFound = errors.New("kam not found")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// MalformedDateTokenError identifies the offending token and, when known,
// the project whose snapshot carried it.
type MalformedDateTokenError struct {
	Token     string
	ProjectID int64
}

func (e *MalformedDateTokenError) Error() string {
	if e.ProjectID != 0 {
		return fmt.Sprintf("malformed year-month token %q on project %d", e.Token, e.ProjectID)
	}
	return fmt.Sprintf("malformed year-month token %q", e.Token)
}

func (e *MalformedDateTokenError) Unwrap() error {
	return ErrMalformedDateToken
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrDuplicateTarget) ||
		errors.Is(err, ErrDuplicateSnapshot)
}
