/*
ledger.go - Atomic balance operations with bounded optimistic retry

PURPOSE:
  The Ledger is the only writer of balance accounts. It applies the pure
  transitions from balance.go through the store's compare-and-swap update,
  retrying a bounded number of times when a concurrent writer wins the race.

WHY OPTIMISTIC RETRY?
  Read-then-write balance mutation is a race condition: two simultaneous
  reservations against a near-exhausted balance must not both succeed.
  Each operation re-reads the account, applies the transition, and writes
  back keyed on the version it read. A version mismatch means another
  mutation landed in between; the operation re-reads and re-validates, so
  the invariant check always runs against current state.

EXACTLY-ONCE PAIRING:
  reserve -> commit   (request approved)
  reserve -> release  (request refused/returned/cancelled)
  The workflow engine drives the pairing; the ledger refuses a commit or
  release that exceeds the pending reservation.

SEE ALSO:
  - balance.go: The pure transitions
  - workflow.go: Calls Commit/Release inside the decision transaction
*/
package leave

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// LEDGER
// =============================================================================

// DefaultMaxRetries bounds the optimistic-concurrency retry loop.
const DefaultMaxRetries = 5

// Ledger applies balance operations atomically per key.
type Ledger struct {
	store      BalanceStore
	maxRetries int
	backoff    time.Duration
	now        func() time.Time
}

// NewLedger creates a ledger over the given store.
func NewLedger(store BalanceStore) *Ledger {
	return &Ledger{
		store:      store,
		maxRetries: DefaultMaxRetries,
		backoff:    5 * time.Millisecond,
		now:        time.Now,
	}
}

// Reserve holds days against the key's remaining balance.
// Fails closed with InsufficientBalanceError and no mutation if the
// remaining balance cannot cover the reservation.
func (l *Ledger) Reserve(ctx context.Context, key BalanceKey, days decimal.Decimal, requestID RequestID, actor ActorID) (*BalanceMutation, error) {
	return l.apply(ctx, key, MutationReserve, days.Neg(), "reserved for request", requestID, actor,
		func(b *Balance) error { return b.reserve(days) })
}

// Commit converts a reservation into consumption. Called exactly once, when
// a request reaches a terminal approved state.
func (l *Ledger) Commit(ctx context.Context, key BalanceKey, days decimal.Decimal, requestID RequestID, actor ActorID) (*BalanceMutation, error) {
	return l.apply(ctx, key, MutationCommit, decimal.Zero, "committed on approval", requestID, actor,
		func(b *Balance) error { return b.commit(days) })
}

// Release drops a reservation without consuming. Called exactly once, when
// a request reaches refused/returned/cancelled or is rejected at intake.
func (l *Ledger) Release(ctx context.Context, key BalanceKey, days decimal.Decimal, requestID RequestID, actor ActorID) (*BalanceMutation, error) {
	return l.apply(ctx, key, MutationRelease, days, "reservation released", requestID, actor,
		func(b *Balance) error { return b.release(days) })
}

// Adjust applies an administrative correction to total. The reason is
// mandatory; the new total is returned for the caller's response.
func (l *Ledger) Adjust(ctx context.Context, key BalanceKey, delta decimal.Decimal, reason string, actor ActorID) (decimal.Decimal, *BalanceMutation, error) {
	if reason == "" {
		return decimal.Zero, nil, &ValidationError{Field: "reason", Message: "adjustment reason is required"}
	}
	var newTotal decimal.Decimal
	m, err := l.apply(ctx, key, MutationAdjust, delta, reason, "", actor,
		func(b *Balance) error {
			if err := b.adjust(delta); err != nil {
				return err
			}
			newTotal = b.Total
			return nil
		})
	if err != nil {
		return decimal.Zero, nil, err
	}
	return newTotal, m, nil
}

// Carryover rolls prior-year days into the key's carried-over counter,
// capped at cap (negative cap = uncapped).
func (l *Ledger) Carryover(ctx context.Context, key BalanceKey, days, cap decimal.Decimal, actor ActorID) (*BalanceMutation, error) {
	if !cap.IsNegative() && days.GreaterThan(cap) {
		days = cap
	}
	if days.IsZero() || days.IsNegative() {
		return nil, nil
	}
	return l.apply(ctx, key, MutationCarryover, days, "prior-year carryover", "", actor,
		func(b *Balance) error {
			b.CarriedOver = b.CarriedOver.Add(days)
			return nil
		})
}

// =============================================================================
// RETRY MACHINERY
// =============================================================================

// apply runs one read-transition-CAS cycle, retrying on version conflicts.
func (l *Ledger) apply(
	ctx context.Context,
	key BalanceKey,
	kind MutationKind,
	delta decimal.Decimal,
	reason string,
	requestID RequestID,
	actor ActorID,
	transition func(*Balance) error,
) (*BalanceMutation, error) {
	var lastErr error

	for attempt := 0; attempt <= l.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(l.backoff * time.Duration(attempt)):
			}
		}

		b, err := l.store.GetBalance(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("load balance %v: %w", key, err)
		}

		readVersion := b.Version
		if err := transition(b); err != nil {
			// Business rejection, not a race: surface immediately.
			return nil, err
		}

		b.UpdatedAt = l.now()
		if err := l.store.UpdateBalance(ctx, *b, readVersion); err != nil {
			if errors.Is(err, ErrConcurrencyConflict) {
				lastErr = err
				continue
			}
			return nil, fmt.Errorf("update balance %v: %w", key, err)
		}

		m := BalanceMutation{
			ID:        uuid.NewString(),
			Key:       key,
			Kind:      kind,
			Delta:     delta,
			Reason:    reason,
			RequestID: requestID,
			ActorID:   actor,
			CreatedAt: l.now(),
		}
		if err := l.store.AppendMutation(ctx, m); err != nil {
			return nil, fmt.Errorf("record mutation: %w", err)
		}
		return &m, nil
	}

	return nil, fmt.Errorf("balance %v: retries exhausted: %w", key, lastErr)
}
