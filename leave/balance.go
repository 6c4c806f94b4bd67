/*
balance.go - Leave balance account and its pure transitions

PURPOSE:
  A Balance is the depletable per-(employee, year, balanceType) account with
  four counters: total, carried-over, used, pending. This file defines the
  account and the pure transition functions; ledger.go wraps them with the
  atomicity/retry machinery.

CRITICAL INVARIANT:
  total + carriedOver - used - pending >= 0 after every mutation.
  Every transition checks the invariant and refuses to break it.

MUTATION TRAIL:
  Every successful mutation is paired with an immutable BalanceMutation
  record. The counters are the operational state; the mutation trail is the
  audit trail that explains how they got there.

SEE ALSO:
  - ledger.go: Atomic application with optimistic-concurrency retry
  - store.go: BalanceStore persistence contract
*/
package leave

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// BALANCE KEY AND ACCOUNT
// =============================================================================

// BalanceKey scopes every ledger operation.
type BalanceKey struct {
	EmployeeID  EmployeeID
	Year        int
	BalanceType string
}

// Balance is the per-key account. Counters are non-negative decimals with
// half-day granularity. Version backs optimistic concurrency: the store
// accepts an update only when the caller read the current version.
type Balance struct {
	Key BalanceKey

	Total       decimal.Decimal
	CarriedOver decimal.Decimal
	Used        decimal.Decimal
	Pending     decimal.Decimal

	Version   int64
	UpdatedAt time.Time
}

// Remaining is what can still be requested:
// total + carriedOver - used - pending.
func (b *Balance) Remaining() decimal.Decimal {
	return b.Total.Add(b.CarriedOver).Sub(b.Used).Sub(b.Pending)
}

// NewBalance opens a balance account with office defaults.
func NewBalance(key BalanceKey, total, carriedOver decimal.Decimal) Balance {
	return Balance{
		Key:         key,
		Total:       total,
		CarriedOver: carriedOver,
		Used:        decimal.Zero,
		Pending:     decimal.Zero,
	}
}

// =============================================================================
// PURE TRANSITIONS
// =============================================================================

// reserve increments pending after checking the invariant. Fails closed:
// on error the balance is untouched.
func (b *Balance) reserve(days decimal.Decimal) error {
	if days.IsNegative() || days.IsZero() {
		return &ValidationError{Field: "days", Message: "reservation must be positive"}
	}
	if b.Remaining().LessThan(days) {
		return &InsufficientBalanceError{Key: b.Key, Remaining: b.Remaining(), Requested: days}
	}
	b.Pending = b.Pending.Add(days)
	return nil
}

// commit converts a reservation into consumption: pending -= days, used += days.
func (b *Balance) commit(days decimal.Decimal) error {
	if b.Pending.LessThan(days) {
		return &ValidationError{Field: "days", Message: "commit exceeds pending reservation"}
	}
	b.Pending = b.Pending.Sub(days)
	b.Used = b.Used.Add(days)
	return nil
}

// release drops a reservation without touching used.
func (b *Balance) release(days decimal.Decimal) error {
	if b.Pending.LessThan(days) {
		return &ValidationError{Field: "days", Message: "release exceeds pending reservation"}
	}
	b.Pending = b.Pending.Sub(days)
	return nil
}

// adjust applies an administrative correction to total. Rejects any delta
// that would make remaining negative.
func (b *Balance) adjust(delta decimal.Decimal) error {
	if b.Remaining().Add(delta).IsNegative() {
		return &InsufficientBalanceError{Key: b.Key, Remaining: b.Remaining(), Requested: delta.Neg()}
	}
	b.Total = b.Total.Add(delta)
	return nil
}

// =============================================================================
// MUTATION RECORDS - Append-only audit trail
// =============================================================================

type MutationKind string

const (
	MutationReserve   MutationKind = "reserve"
	MutationCommit    MutationKind = "commit"
	MutationRelease   MutationKind = "release"
	MutationAdjust    MutationKind = "adjust"
	MutationCarryover MutationKind = "carryover"
)

// BalanceMutation records one applied ledger operation. Append-only: never
// updated, never deleted.
type BalanceMutation struct {
	ID        string
	Key       BalanceKey
	Kind      MutationKind
	Delta     decimal.Decimal // signed effect on remaining
	Reason    string
	RequestID RequestID // empty for manual adjustments
	ActorID   ActorID
	CreatedAt time.Time
}
