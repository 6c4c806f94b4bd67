/*
store.go - Persistence interfaces for the leave core

PURPOSE:
  Defines the boundary between domain logic and storage. The core never
  persists data itself; it defines the operations any storage layer must
  uphold, including the two concurrency-critical contracts:

  1. UpdateBalance is a compare-and-swap keyed on the balance version.
     Two simultaneous reservations against a near-exhausted balance must
     not both succeed; the loser gets ErrConcurrencyConflict.

  2. WithTx runs a closure against a transactional store view. DecideStep's
     read-decide-write plus the conditional balance commit/release happen
     inside one such transaction - all effects commit together or none do.

IMPLEMENTATIONS:
  - store/sqlite: production SQLite (WAL, versioned rows)
  - leave/store:  in-memory with snapshot rollback, for tests/dev

SEE ALSO:
  - ledger.go: Retry loop over the CAS contract
  - workflow.go: Uses WithTx for every transition
*/
package leave

import (
	"context"
	"time"
)

// =============================================================================
// REQUEST AND STEP PERSISTENCE
// =============================================================================

type RequestStore interface {
	// SaveRequest inserts a new request.
	SaveRequest(ctx context.Context, r *LeaveRequest) error

	// UpdateRequest persists status and bookkeeping changes.
	UpdateRequest(ctx context.Context, r *LeaveRequest) error

	// GetRequest returns ErrNotFound if missing.
	GetRequest(ctx context.Context, id RequestID) (*LeaveRequest, error)

	// RequestsByEmployee returns all requests of one employee, newest first.
	RequestsByEmployee(ctx context.Context, id EmployeeID) ([]*LeaveRequest, error)

	// FindOverlapping returns requests of the employee whose range intersects
	// [start, end] and whose status blocks overlap (not cancelled/refused).
	FindOverlapping(ctx context.Context, id EmployeeID, start, end Date) ([]*LeaveRequest, error)

	// ClaimForReminder atomically stamps RemindedAt=now on pending requests
	// last reminded before cutoff (or never) and returns the claimed set.
	// The stamp happens in the same atomic step as the eligibility read, so
	// overlapping scans never claim the same request twice.
	ClaimForReminder(ctx context.Context, cutoff, now time.Time) ([]*LeaveRequest, error)

	// PendingRequests returns all requests awaiting an approval stage.
	PendingRequests(ctx context.Context) ([]*LeaveRequest, error)
}

type StepStore interface {
	// SaveSteps inserts a request's step set atomically.
	SaveSteps(ctx context.Context, steps []*ApprovalStep) error

	// UpdateStep persists a step decision.
	UpdateStep(ctx context.Context, s *ApprovalStep) error

	// GetStep returns ErrNotFound if missing.
	GetStep(ctx context.Context, id StepID) (*ApprovalStep, error)

	// StepsByRequest returns the steps of one submission attempt of a
	// request, ordered by StepOrder.
	StepsByRequest(ctx context.Context, id RequestID, attempt int) ([]*ApprovalStep, error)
}

// =============================================================================
// BALANCE PERSISTENCE
// =============================================================================

type BalanceStore interface {
	// GetBalance returns ErrNotFound if the key was never provisioned.
	GetBalance(ctx context.Context, key BalanceKey) (*Balance, error)

	// CreateBalance provisions a new account (version 1).
	// Returns ErrBalanceExists on duplicate keys.
	CreateBalance(ctx context.Context, b Balance) error

	// UpdateBalance writes b only if the stored version equals
	// expectedVersion, bumping the version. Returns ErrConcurrencyConflict
	// when another writer got there first.
	UpdateBalance(ctx context.Context, b Balance, expectedVersion int64) error

	// AppendMutation records one ledger operation. Append-only.
	AppendMutation(ctx context.Context, m BalanceMutation) error

	// BalancesByEmployee returns all accounts of one employee for a year.
	BalancesByEmployee(ctx context.Context, id EmployeeID, year int) ([]*Balance, error)

	// Mutations returns the audit trail for a key, chronologically.
	Mutations(ctx context.Context, key BalanceKey) ([]BalanceMutation, error)
}

// =============================================================================
// COMBINED AND TRANSACTIONAL STORES
// =============================================================================

// Store is everything the leave core needs from persistence.
type Store interface {
	RequestStore
	StepStore
	BalanceStore
}

// TxStore adds the atomic-transaction contract.
type TxStore interface {
	Store

	// WithTx executes fn against a transactional view of the store.
	// If fn returns an error the transaction is rolled back.
	WithTx(ctx context.Context, fn func(Store) error) error
}
