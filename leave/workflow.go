/*
workflow.go - Approval state machine over a leave request

PURPOSE:
  Drives a request through its configured approval steps:

    DRAFT -> PENDING_MANAGER -> [PENDING_HR] -> APPROVED

  with REFUSED and RETURNED reachable from either pending state and
  CANCELLED reachable from any non-terminal state by the requester.

TRANSACTION CONTRACT:
  Every DecideStep runs inside one store transaction covering:
    (a) reading the current step/request state
    (b) writing the step decision
    (c) writing the new request status
    (d) the conditional ledger commit/release
  The new status is always computed from the full, consistent step set read
  inside the transaction - never by re-querying siblings after a write. Two
  approvers of a parallel stage racing each other therefore resolve
  deterministically, and a refusal racing an approval wins.

LEDGER PAIRING:
  The engine is the only caller of Commit/Release for workflow reasons.
  Reserved tracks whether pending days are currently held; commit and
  release flip it off, so each reservation is settled exactly once.

SEE ALSO:
  - request.go: Creates requests and their step sets
  - ledger.go: The balance operations invoked on terminal transitions
*/
package leave

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// LeaveTypeResolver supplies type configs for event enrichment.
type LeaveTypeResolver interface {
	LeaveType(ctx context.Context, id LeaveTypeID) (*LeaveTypeConfig, error)
}

// =============================================================================
// ENGINE
// =============================================================================

// Engine is the approval workflow state machine.
type Engine struct {
	store  TxStore
	access AccessPolicy
	events EventSink
	types  LeaveTypeResolver // optional, enriches events with type labels
	now    func() time.Time
}

// NewEngine creates a workflow engine. types may be nil.
func NewEngine(store TxStore, access AccessPolicy, events EventSink, types LeaveTypeResolver) *Engine {
	return &Engine{
		store:  store,
		access: access,
		events: events,
		types:  types,
		now:    time.Now,
	}
}

// =============================================================================
// DECIDE STEP
// =============================================================================

// DecideStep records one approver's decision and recomputes the request
// status. Rejected outright when the step is already decided, the request is
// not at the step's stage, the actor is not the assigned approver, or a
// required comment is missing. Double decisions fail, they never overwrite.
func (e *Engine) DecideStep(ctx context.Context, requestID RequestID, stepID StepID, actor ActorID, action StepAction, comment string) (*LeaveRequest, error) {
	if !action.Valid() {
		return nil, &ValidationError{Field: "action", Message: fmt.Sprintf("unknown action %q", action)}
	}
	if action.RequiresComment() && comment == "" {
		return nil, &ValidationError{Field: "comment", Message: fmt.Sprintf("a comment is required for %s", action)}
	}

	var (
		req       *LeaveRequest
		oldStatus RequestStatus
		mutation  *BalanceMutation
	)

	err := e.store.WithTx(ctx, func(s Store) error {
		var err error
		req, err = s.GetRequest(ctx, requestID)
		if err != nil {
			return err
		}
		steps, err := s.StepsByRequest(ctx, requestID, req.Attempt)
		if err != nil {
			return err
		}

		step := findStep(steps, stepID)
		if step == nil {
			return fmt.Errorf("step %s on request %s: %w", stepID, requestID, ErrNotFound)
		}
		if step.Decided() {
			return fmt.Errorf("step %s: %w", stepID, ErrAlreadyDecided)
		}
		if req.Status.IsTerminal() {
			return fmt.Errorf("request %s is %s: %w", requestID, req.Status, ErrTerminalStatus)
		}
		if req.Status != step.StepType.PendingStatus() {
			return &AuthorizationError{
				Actor:  actor,
				Action: ActionDecideStep,
				Detail: fmt.Sprintf("request is %s, step stage is %s", req.Status, step.StepType),
			}
		}
		if req.Mode == ModeSequential && !priorStepsApproved(steps, step) {
			return &ValidationError{Field: "step", Message: "earlier steps are still undecided"}
		}
		if !e.access.Can(actor, ActionDecideStep, req, step) {
			return &AuthorizationError{Actor: actor, Action: ActionDecideStep, Detail: "not the assigned approver"}
		}

		// Record the decision.
		decidedAt := e.now()
		step.Action = action
		step.Comment = comment
		step.DecidedAt = &decidedAt
		if err := s.UpdateStep(ctx, step); err != nil {
			return err
		}

		newStatus := computeStatus(req.Mode, steps)
		if newStatus == req.Status {
			return nil
		}

		oldStatus = req.Status
		req.Status = newStatus
		req.UpdatedAt = decidedAt

		mutation, err = e.settleReservation(ctx, s, req, actor)
		if err != nil {
			return err
		}

		return s.UpdateRequest(ctx, req)
	})
	if err != nil {
		return nil, err
	}

	if oldStatus != "" {
		e.emitTransition(ctx, req, oldStatus, actor, comment)
	}
	e.emitMutation(req, mutation)
	return req, nil
}

// =============================================================================
// CANCEL
// =============================================================================

// Cancel transitions a non-terminal request to CANCELLED, releasing any
// reserved pending days. Only the requester may cancel; an already-approved
// request is not cancellable here (withdrawal is a separate flow).
func (e *Engine) Cancel(ctx context.Context, requestID RequestID, actor ActorID) (*LeaveRequest, error) {
	var (
		req       *LeaveRequest
		oldStatus RequestStatus
		mutation  *BalanceMutation
	)

	err := e.store.WithTx(ctx, func(s Store) error {
		var err error
		req, err = s.GetRequest(ctx, requestID)
		if err != nil {
			return err
		}
		if req.Status.IsTerminal() {
			return fmt.Errorf("request %s is %s: %w", requestID, req.Status, ErrTerminalStatus)
		}
		if !e.access.Can(actor, ActionCancelRequest, req, nil) {
			return &AuthorizationError{Actor: actor, Action: ActionCancelRequest, Detail: "only the requester may cancel"}
		}

		oldStatus = req.Status
		req.Status = StatusCancelled
		req.UpdatedAt = e.now()

		mutation, err = e.settleReservation(ctx, s, req, actor)
		if err != nil {
			return err
		}
		return s.UpdateRequest(ctx, req)
	})
	if err != nil {
		return nil, err
	}

	e.emitTransition(ctx, req, oldStatus, actor, "")
	e.emitMutation(req, mutation)
	return req, nil
}

// =============================================================================
// STATUS COMPUTATION
// =============================================================================

// computeStatus derives the overall status from a consistent view of all
// steps. Refusal wins over everything; a return wins over pending approvals;
// otherwise the first stage with undecided steps determines the pending
// status, and a fully approved step set means APPROVED.
func computeStatus(mode WorkflowMode, steps []*ApprovalStep) RequestStatus {
	for _, s := range steps {
		if s.Action == ActionRefused {
			return StatusRefused
		}
	}
	for _, s := range steps {
		if s.Action == ActionReturned {
			return StatusReturned
		}
	}

	for _, stage := range stageOrder(steps) {
		cleared := true
		for _, s := range steps {
			if s.StepType != stage {
				continue
			}
			if s.Action != ActionApproved {
				cleared = false
				break
			}
		}
		if !cleared {
			return stage.PendingStatus()
		}
	}
	return StatusApproved
}

// stageOrder returns the distinct step types in ascending step order.
func stageOrder(steps []*ApprovalStep) []StepType {
	sorted := make([]*ApprovalStep, len(steps))
	copy(sorted, steps)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].StepOrder < sorted[j].StepOrder })

	var stages []StepType
	seen := make(map[StepType]bool)
	for _, s := range sorted {
		if !seen[s.StepType] {
			seen[s.StepType] = true
			stages = append(stages, s.StepType)
		}
	}
	return stages
}

// priorStepsApproved checks the sequential rule: a step is actionable only
// once every lower-order step is approved.
func priorStepsApproved(steps []*ApprovalStep, step *ApprovalStep) bool {
	for _, s := range steps {
		if s.StepOrder < step.StepOrder && s.Action != ActionApproved {
			return false
		}
	}
	return true
}

func findStep(steps []*ApprovalStep, id StepID) *ApprovalStep {
	for _, s := range steps {
		if s.ID == id {
			return s
		}
	}
	return nil
}

// =============================================================================
// RESERVATION SETTLEMENT AND EVENTS
// =============================================================================

// settleReservation commits or releases the request's reservation when its
// new status demands it. Runs inside the caller's transaction; the Reserved
// flag guarantees at-most-once settlement.
func (e *Engine) settleReservation(ctx context.Context, s Store, req *LeaveRequest, actor ActorID) (*BalanceMutation, error) {
	if !req.Reserved {
		return nil, nil
	}

	key := BalanceKey{EmployeeID: req.EmployeeID, Year: req.BalanceYear, BalanceType: req.BalanceType}
	ledger := NewLedger(s)

	switch req.Status {
	case StatusApproved:
		m, err := ledger.Commit(ctx, key, req.TotalDays, req.ID, actor)
		if err != nil {
			return nil, err
		}
		req.Reserved = false
		return m, nil
	case StatusRefused, StatusReturned, StatusCancelled:
		m, err := ledger.Release(ctx, key, req.TotalDays, req.ID, actor)
		if err != nil {
			return nil, err
		}
		req.Reserved = false
		return m, nil
	}
	return nil, nil
}

func (e *Engine) emitTransition(ctx context.Context, req *LeaveRequest, oldStatus RequestStatus, actor ActorID, comment string) {
	label := ""
	if e.types != nil {
		if cfg, err := e.types.LeaveType(ctx, req.LeaveTypeID); err == nil {
			label = cfg.Label("")
		}
	}
	e.events.PublishTransition(WorkflowTransitionEvent{
		RequestID:      req.ID,
		EmployeeID:     req.EmployeeID,
		OldStatus:      oldStatus,
		NewStatus:      req.Status,
		ActorID:        actor,
		Comment:        comment,
		LeaveTypeLabel: label,
		StartDate:      req.StartDate,
		EndDate:        req.EndDate,
		OccurredAt:     e.now(),
	})
}

func (e *Engine) emitMutation(req *LeaveRequest, m *BalanceMutation) {
	if m == nil {
		return
	}
	e.events.PublishBalanceMutation(BalanceMutationEvent{
		EmployeeID:  m.Key.EmployeeID,
		Year:        m.Key.Year,
		BalanceType: m.Key.BalanceType,
		Kind:        m.Kind,
		Delta:       m.Delta,
		Reason:      m.Reason,
		RequestID:   m.RequestID,
		ActorID:     m.ActorID,
		OccurredAt:  m.CreatedAt,
	})
}
