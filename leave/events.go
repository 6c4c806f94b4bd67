/*
events.go - Post-commit event emission for collaborators

PURPOSE:
  The core's only outputs besides state are two event kinds: workflow
  transitions and balance mutations. They feed the notification and audit
  collaborators.

DECOUPLING CONTRACT:
  Dispatch is asynchronous relative to the transaction that produced the
  event. A failed notification or audit write is logged locally and NEVER
  rolls back or blocks the state transition - the business fact is the
  durable truth, side-channel delivery is best-effort.

SEE ALSO:
  - workflow.go: Emits one transition event per status change
  - ledger.go: Produces the mutation records these events mirror
*/
package leave

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// =============================================================================
// EVENT TYPES
// =============================================================================

// WorkflowTransitionEvent describes one status change of a request.
type WorkflowTransitionEvent struct {
	RequestID      RequestID
	EmployeeID     EmployeeID
	OldStatus      RequestStatus
	NewStatus      RequestStatus
	ActorID        ActorID
	Comment        string
	LeaveTypeLabel string
	StartDate      Date
	EndDate        Date
	OccurredAt     time.Time
}

// BalanceMutationEvent mirrors an applied ledger mutation for the audit log.
type BalanceMutationEvent struct {
	EmployeeID  EmployeeID
	Year        int
	BalanceType string
	Kind        MutationKind
	Delta       decimal.Decimal
	Reason      string
	RequestID   RequestID
	ActorID     ActorID
	OccurredAt  time.Time
}

// ReminderEvent asks an approver to look at a stale pending request.
type ReminderEvent struct {
	RequestID  RequestID
	EmployeeID EmployeeID
	Status     RequestStatus
	Approvers  []ActorID
	PendingFor time.Duration
}

// =============================================================================
// COLLABORATOR INTERFACES
// =============================================================================

// Notifier delivers events to humans (email etc.). Best-effort.
type Notifier interface {
	NotifyTransition(ctx context.Context, ev WorkflowTransitionEvent) error
	NotifyReminder(ctx context.Context, ev ReminderEvent) error
}

// AuditRecorder persists a durable trail of who did what. Best-effort from
// the core's perspective; failures are logged, never propagated.
type AuditRecorder interface {
	RecordTransition(ctx context.Context, ev WorkflowTransitionEvent) error
	RecordBalanceMutation(ctx context.Context, ev BalanceMutationEvent) error
}

// EventSink is what the core components publish into.
type EventSink interface {
	PublishTransition(ev WorkflowTransitionEvent)
	PublishBalanceMutation(ev BalanceMutationEvent)
}

// =============================================================================
// DISPATCHER - Async fan-out with local error logging
// =============================================================================

type event struct {
	transition *WorkflowTransitionEvent
	mutation   *BalanceMutationEvent
}

// Dispatcher fans events out to the notifier and audit recorder on a
// background goroutine. Publishing never blocks the transactional caller:
// when the buffer is full the event is dropped and the drop is logged.
type Dispatcher struct {
	notifier Notifier
	audit    AuditRecorder
	log      *zap.Logger

	ch   chan event
	wg   sync.WaitGroup
	once sync.Once
}

// NewDispatcher starts the dispatch goroutine. Close must be called to
// drain and stop it.
func NewDispatcher(notifier Notifier, audit AuditRecorder, log *zap.Logger, buffer int) *Dispatcher {
	if buffer <= 0 {
		buffer = 256
	}
	d := &Dispatcher{
		notifier: notifier,
		audit:    audit,
		log:      log,
		ch:       make(chan event, buffer),
	}
	d.wg.Add(1)
	go d.run()
	return d
}

func (d *Dispatcher) PublishTransition(ev WorkflowTransitionEvent) {
	select {
	case d.ch <- event{transition: &ev}:
	default:
		d.log.Warn("event buffer full, transition event dropped",
			zap.String("request_id", string(ev.RequestID)),
			zap.String("new_status", string(ev.NewStatus)))
	}
}

func (d *Dispatcher) PublishBalanceMutation(ev BalanceMutationEvent) {
	select {
	case d.ch <- event{mutation: &ev}:
	default:
		d.log.Warn("event buffer full, balance event dropped",
			zap.String("employee_id", string(ev.EmployeeID)),
			zap.String("kind", string(ev.Kind)))
	}
}

// Close drains pending events and stops the dispatch goroutine.
func (d *Dispatcher) Close() {
	d.once.Do(func() { close(d.ch) })
	d.wg.Wait()
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	ctx := context.Background()

	for ev := range d.ch {
		switch {
		case ev.transition != nil:
			if err := d.audit.RecordTransition(ctx, *ev.transition); err != nil {
				d.log.Error("audit write failed",
					zap.String("request_id", string(ev.transition.RequestID)),
					zap.Error(err))
			}
			if err := d.notifier.NotifyTransition(ctx, *ev.transition); err != nil {
				d.log.Error("transition notification failed",
					zap.String("request_id", string(ev.transition.RequestID)),
					zap.Error(err))
			}
		case ev.mutation != nil:
			if err := d.audit.RecordBalanceMutation(ctx, *ev.mutation); err != nil {
				d.log.Error("balance audit write failed",
					zap.String("employee_id", string(ev.mutation.EmployeeID)),
					zap.Error(err))
			}
		}
	}
}

var _ EventSink = (*Dispatcher)(nil)

// =============================================================================
// NO-OP AND LOGGING IMPLEMENTATIONS
// =============================================================================

// NopSink discards events. Useful in tests that don't assert on dispatch.
type NopSink struct{}

func (NopSink) PublishTransition(WorkflowTransitionEvent)   {}
func (NopSink) PublishBalanceMutation(BalanceMutationEvent) {}

// LogNotifier writes notifications to the log instead of sending email.
// Stands in for the real mail gateway in development.
type LogNotifier struct {
	Log *zap.Logger
}

func (n *LogNotifier) NotifyTransition(_ context.Context, ev WorkflowTransitionEvent) error {
	n.Log.Info("notify transition",
		zap.String("request_id", string(ev.RequestID)),
		zap.String("employee_id", string(ev.EmployeeID)),
		zap.String("old_status", string(ev.OldStatus)),
		zap.String("new_status", string(ev.NewStatus)),
		zap.String("actor_id", string(ev.ActorID)))
	return nil
}

func (n *LogNotifier) NotifyReminder(_ context.Context, ev ReminderEvent) error {
	n.Log.Info("notify reminder",
		zap.String("request_id", string(ev.RequestID)),
		zap.String("status", string(ev.Status)),
		zap.Duration("pending_for", ev.PendingFor))
	return nil
}

var _ Notifier = (*LogNotifier)(nil)
