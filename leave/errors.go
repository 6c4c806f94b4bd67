/*
errors.go - Centralized error types for the leave core

PURPOSE:
  All error types in one place for consistency and discoverability.
  The transport layer maps these onto HTTP statuses; the core never
  knows about HTTP.

ERROR CATEGORIES:
  1. Validation errors - malformed input, bad ranges, missing comments
  2. Balance errors    - insufficient balance, negative adjustments
  3. Conflict errors   - overlapping requests, optimistic-lock failures
  4. Authorization     - wrong approver, wrong stage, wrong actor

USAGE:
  if errors.Is(err, leave.ErrInsufficientBalance) {
      var ib *leave.InsufficientBalanceError
      errors.As(err, &ib) // carries the remaining balance
  }

SEE ALSO:
  - ledger.go: Returns balance and concurrency errors
  - workflow.go: Returns validation and authorization errors
*/
package leave

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is the root of all malformed-input errors.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidRange is returned when a range ends before it starts.
	ErrInvalidRange = errors.New("invalid range: end before start")

	// ErrInsufficientBalance is returned when a reservation exceeds the
	// remaining balance.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrOverlapConflict is returned when a new request's range intersects an
	// existing non-cancelled, non-refused request of the same employee.
	ErrOverlapConflict = errors.New("overlapping leave request")

	// ErrForbidden is returned when the acting party is not allowed to
	// perform the action. Surfaced as forbidden, never silently ignored.
	ErrForbidden = errors.New("actor not authorized")

	// ErrConcurrencyConflict is returned when an optimistic-lock update loses
	// the race. Retryable a bounded number of times.
	ErrConcurrencyConflict = errors.New("concurrent modification detected")

	// ErrAlreadyDecided is returned on a second decision attempt for a step.
	ErrAlreadyDecided = errors.New("step already decided")

	// ErrTerminalStatus is returned when transitioning a request that has
	// already reached a terminal status.
	ErrTerminalStatus = errors.New("request in terminal status")

	// ErrNotFound is returned when a referenced record doesn't exist.
	ErrNotFound = errors.New("not found")

	// ErrBalanceExists is returned when provisioning a balance key twice.
	ErrBalanceExists = errors.New("balance already exists")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError reports a specific malformed field or rule breach.
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

// InvalidRangeError reports an end-before-start range.
type InvalidRangeError struct {
	Start Date
	End   Date
}

func (e *InvalidRangeError) Error() string {
	return fmt.Sprintf("invalid range: end %s before start %s", e.End, e.Start)
}

func (e *InvalidRangeError) Unwrap() error { return ErrInvalidRange }

// InsufficientBalanceError carries the remaining balance so the caller can
// explain the shortfall.
type InsufficientBalanceError struct {
	Key       BalanceKey
	Remaining decimal.Decimal
	Requested decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance for %s/%d/%s: remaining %s, requested %s",
		e.Key.EmployeeID, e.Key.Year, e.Key.BalanceType, e.Remaining, e.Requested)
}

func (e *InsufficientBalanceError) Unwrap() error { return ErrInsufficientBalance }

// OverlapError identifies the existing request blocking a new range.
type OverlapError struct {
	Existing RequestID
	Start    Date
	End      Date
}

func (e *OverlapError) Error() string {
	return fmt.Sprintf("range %s..%s overlaps request %s", e.Start, e.End, e.Existing)
}

func (e *OverlapError) Unwrap() error { return ErrOverlapConflict }

// AuthorizationError reports a forbidden action. Logged as a security-
// relevant event by the transport layer.
type AuthorizationError struct {
	Actor  ActorID
	Action Action
	Detail string
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("actor %s may not %s: %s", e.Actor, e.Action, e.Detail)
}

func (e *AuthorizationError) Unwrap() error { return ErrForbidden }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrencyConflict)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidRange) ||
		errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrAlreadyDecided) ||
		errors.Is(err, ErrTerminalStatus)
}

// IsConflict returns true for errors surfaced as conflicts, not retried.
func IsConflict(err error) bool {
	return errors.Is(err, ErrOverlapConflict) || errors.Is(err, ErrBalanceExists)
}

// IsForbidden returns true for authorization failures.
func IsForbidden(err error) bool { return errors.Is(err, ErrForbidden) }

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
