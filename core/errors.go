/*
errors.go - Centralized error taxonomy for the incentive engine

PURPOSE:
  All expected failure modes in one place. Callers branch with errors.Is
  against the sentinels and extract context with errors.As against the
  structured types. No failure path is silent: every operation returns an
  explicit error value distinguishable from success.

ERROR CATEGORIES:
  1. Validation errors  - malformed input (bad weights, percentages, period)
  2. State errors       - operation attempted in the wrong lifecycle state
  3. Duplicate errors   - incentive already exists for (user, month, year)
  4. No-data errors     - nothing to compute over
  5. Storage errors     - external store failure, passed through wrapped

PROPAGATION POLICY:
  The engine never retries automatically. Store implementations wrap their
  driver errors with WrapStorage so callers can distinguish infrastructure
  failure from business failure without special-casing drivers.
*/
package core

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is the root of all malformed-input failures.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidState is returned when an operation is attempted in the
	// wrong lifecycle state: evaluating a non-completed task, finalizing
	// twice, transitioning a non-pending incentive.
	ErrInvalidState = errors.New("invalid state for operation")

	// ErrDuplicateIncentive is returned when an incentive already exists
	// for the (user, month, year) key. No recompute, no merge.
	ErrDuplicateIncentive = errors.New("incentive already calculated for period")

	// ErrNoData is returned when a period has no qualifying tasks.
	ErrNoData = errors.New("no evaluated tasks in period")

	// ErrStorage is the root of all external store failures.
	ErrStorage = errors.New("storage failure")

	// ErrNotFound is returned when a referenced record doesn't exist.
	ErrNotFound = errors.New("record not found")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError reports malformed input with the offending field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// InvalidStateError reports a lifecycle violation: what was attempted and
// the state that forbade it.
type InvalidStateError struct {
	Op      string
	Current string
	Message string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("%s not allowed in state %q: %s", e.Op, e.Current, e.Message)
}

func (e *InvalidStateError) Unwrap() error { return ErrInvalidState }

// DuplicateIncentiveError reports a (user, month, year) key collision.
type DuplicateIncentiveError struct {
	UserID UserID
	Period Period
}

func (e *DuplicateIncentiveError) Error() string {
	return fmt.Sprintf("incentive for user %s already calculated for %s", e.UserID, e.Period)
}

func (e *DuplicateIncentiveError) Unwrap() error { return ErrDuplicateIncentive }

// NoDataError reports a period with nothing to bonus.
type NoDataError struct {
	UserID UserID
	Period Period
}

func (e *NoDataError) Error() string {
	return fmt.Sprintf("no completed and evaluated tasks for user %s in %s", e.UserID, e.Period)
}

func (e *NoDataError) Unwrap() error { return ErrNoData }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// WrapStorage ties a driver error into the taxonomy. Store implementations
// call this on every failed read/write so callers can errors.Is(err,
// ErrStorage) without knowing the backend.
func WrapStorage(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStorage, err)
}

// IsClientError reports whether the error is the caller's fault (bad input
// or a business-rule rejection) rather than an infrastructure failure.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidState) ||
		errors.Is(err, ErrDuplicateIncentive) ||
		errors.Is(err, ErrNoData)
}
