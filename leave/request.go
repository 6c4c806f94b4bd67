/*
request.go - Leave request intake and submission lifecycle

PURPOSE:
  Handles everything up to the first approval decision:
  1. Creation: validate dates/halves, compute the working-day count,
     check for overlaps, reserve balance, generate the step set
  2. Drafts: create without reserving, submit later
  3. Resubmission: after a RETURN, revise and submit under a fresh attempt

RESERVATION TIMING:
  Drafts hold no balance. The reservation happens when the request enters
  the approval pipeline (direct submission or SubmitDraft), and fails
  closed: if the balance cannot cover the request, nothing is persisted.

EXEMPTION:
  Whether a request touches the ledger is decided once, here, from the
  type config's explicit Deducts() - the balance-exempt "exceptional" kind
  never reserves, so the workflow engine has nothing to settle later.

SEE ALSO:
  - calendar.go: WorkingDays
  - workflow.go: Drives the request after submission
*/
package leave

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// SERVICE
// =============================================================================

// Service handles request intake.
type Service struct {
	store  TxStore
	access AccessPolicy
	events EventSink
	now    func() time.Time
	newID  func() string
}

// NewService creates an intake service.
func NewService(store TxStore, access AccessPolicy, events EventSink) *Service {
	return &Service{
		store:  store,
		access: access,
		events: events,
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// CreateInput carries a creation request plus the externally supplied facts
// the core consumes read-only: the applicable type config, workflow config,
// office working week and holiday calendar.
type CreateInput struct {
	EmployeeID EmployeeID
	LeaveType  *LeaveTypeConfig

	Start     Date
	End       Date
	StartHalf HalfDay
	EndHalf   HalfDay

	Reason            string
	ExceptionalReason string
	AttachmentRef     string
	AsDraft           bool

	Workflow WorkflowConfig
	Week     WorkingWeek
	Holidays HolidaySet
}

// RevisionInput carries the revised fields for a resubmission.
type RevisionInput struct {
	Start     Date
	End       Date
	StartHalf HalfDay
	EndHalf   HalfDay

	Reason        string
	AttachmentRef string

	Workflow WorkflowConfig
	Week     WorkingWeek
	Holidays HolidaySet
}

// =============================================================================
// CREATE
// =============================================================================

// Create validates and persists a new request. Unless AsDraft, the request
// enters PENDING_MANAGER and the balance reservation is taken atomically
// with it.
func (svc *Service) Create(ctx context.Context, in CreateInput) (*LeaveRequest, error) {
	days, err := svc.validate(in.LeaveType, in.Start, in.End, in.StartHalf, in.EndHalf, in.AttachmentRef, in.Week, in.Holidays)
	if err != nil {
		return nil, err
	}
	if err := validateWorkflow(in.Workflow); err != nil {
		return nil, err
	}

	now := svc.now()
	req := &LeaveRequest{
		ID:                RequestID(svc.newID()),
		EmployeeID:        in.EmployeeID,
		LeaveTypeID:       in.LeaveType.ID,
		StartDate:         in.Start,
		EndDate:           in.End,
		StartHalf:         in.StartHalf,
		EndHalf:           in.EndHalf,
		TotalDays:         days,
		Status:            StatusDraft,
		Mode:              in.Workflow.Mode,
		Attempt:           1,
		Reason:            in.Reason,
		ExceptionalReason: in.ExceptionalReason,
		AttachmentRef:     in.AttachmentRef,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if in.LeaveType.Deducts() {
		req.BalanceYear = in.Start.Year()
		req.BalanceType = in.LeaveType.BalanceType
	}

	var mutation *BalanceMutation
	err = svc.store.WithTx(ctx, func(s Store) error {
		if err := svc.checkOverlap(ctx, s, req); err != nil {
			return err
		}

		if !in.AsDraft {
			req.Status = StatusPendingManager
			var err error
			mutation, err = svc.reserve(ctx, s, req)
			if err != nil {
				return err
			}
		}

		if err := s.SaveRequest(ctx, req); err != nil {
			return err
		}
		return s.SaveSteps(ctx, svc.buildSteps(req, in.Workflow))
	})
	if err != nil {
		return nil, err
	}

	if req.Status == StatusPendingManager {
		svc.emitTransition(req, StatusDraft, ActorID(in.EmployeeID), in.LeaveType)
	}
	svc.emitMutation(mutation)
	return req, nil
}

// =============================================================================
// SUBMIT / RESUBMIT
// =============================================================================

// Submit moves a draft into PENDING_MANAGER, taking the balance reservation.
func (svc *Service) Submit(ctx context.Context, requestID RequestID, actor ActorID) (*LeaveRequest, error) {
	var (
		req      *LeaveRequest
		mutation *BalanceMutation
	)

	err := svc.store.WithTx(ctx, func(s Store) error {
		var err error
		req, err = s.GetRequest(ctx, requestID)
		if err != nil {
			return err
		}
		if req.Status != StatusDraft {
			return &ValidationError{Field: "status", Message: fmt.Sprintf("only drafts can be submitted, request is %s", req.Status)}
		}
		if !svc.access.Can(actor, ActionSubmitRequest, req, nil) {
			return &AuthorizationError{Actor: actor, Action: ActionSubmitRequest, Detail: "only the requester may submit"}
		}
		steps, err := s.StepsByRequest(ctx, requestID, req.Attempt)
		if err != nil {
			return err
		}
		if len(steps) == 0 {
			return &ValidationError{Field: "workflow", Message: "request has no approval steps"}
		}

		if err := svc.checkOverlap(ctx, s, req); err != nil {
			return err
		}

		req.Status = StatusPendingManager
		req.UpdatedAt = svc.now()
		mutation, err = svc.reserve(ctx, s, req)
		if err != nil {
			return err
		}
		return s.UpdateRequest(ctx, req)
	})
	if err != nil {
		return nil, err
	}

	svc.emitTransition(req, StatusDraft, actor, nil)
	svc.emitMutation(mutation)
	return req, nil
}

// Resubmit revises a returned (or draft) request and submits it under a
// fresh attempt with a fresh step set. Prior step decisions stay on record.
func (svc *Service) Resubmit(ctx context.Context, requestID RequestID, actor ActorID, lt *LeaveTypeConfig, in RevisionInput) (*LeaveRequest, error) {
	days, err := svc.validate(lt, in.Start, in.End, in.StartHalf, in.EndHalf, in.AttachmentRef, in.Week, in.Holidays)
	if err != nil {
		return nil, err
	}
	if err := validateWorkflow(in.Workflow); err != nil {
		return nil, err
	}

	var (
		req       *LeaveRequest
		oldStatus RequestStatus
		mutation  *BalanceMutation
	)

	err = svc.store.WithTx(ctx, func(s Store) error {
		var err error
		req, err = s.GetRequest(ctx, requestID)
		if err != nil {
			return err
		}
		if req.Status != StatusReturned && req.Status != StatusDraft {
			return &ValidationError{Field: "status", Message: fmt.Sprintf("only returned or draft requests can be resubmitted, request is %s", req.Status)}
		}
		if !svc.access.Can(actor, ActionSubmitRequest, req, nil) {
			return &AuthorizationError{Actor: actor, Action: ActionSubmitRequest, Detail: "only the requester may resubmit"}
		}

		oldStatus = req.Status
		req.StartDate = in.Start
		req.EndDate = in.End
		req.StartHalf = in.StartHalf
		req.EndHalf = in.EndHalf
		req.TotalDays = days
		req.Reason = in.Reason
		req.AttachmentRef = in.AttachmentRef
		req.Mode = in.Workflow.Mode
		req.Attempt++
		req.Status = StatusPendingManager
		req.UpdatedAt = svc.now()
		if lt.Deducts() {
			req.BalanceYear = in.Start.Year()
			req.BalanceType = lt.BalanceType
		}

		if err := svc.checkOverlap(ctx, s, req); err != nil {
			return err
		}

		mutation, err = svc.reserve(ctx, s, req)
		if err != nil {
			return err
		}
		if err := s.SaveSteps(ctx, svc.buildSteps(req, in.Workflow)); err != nil {
			return err
		}
		return s.UpdateRequest(ctx, req)
	})
	if err != nil {
		return nil, err
	}

	svc.emitTransition(req, oldStatus, actor, lt)
	svc.emitMutation(mutation)
	return req, nil
}

// =============================================================================
// VALIDATION AND HELPERS
// =============================================================================

func (svc *Service) validate(lt *LeaveTypeConfig, start, end Date, startHalf, endHalf HalfDay, attachmentRef string, week WorkingWeek, holidays HolidaySet) (decimal.Decimal, error) {
	if lt == nil || !lt.Active {
		return decimal.Zero, &ValidationError{Field: "leave_type", Message: "unknown or inactive leave type"}
	}
	if start.IsZero() || end.IsZero() {
		return decimal.Zero, &ValidationError{Field: "dates", Message: "start and end dates are required"}
	}
	if !startHalf.Valid() || !endHalf.Valid() {
		return decimal.Zero, &ValidationError{Field: "half_day", Message: "half-day markers must be FULL_DAY, MORNING or AFTERNOON"}
	}
	if len(week) == 0 {
		week = DefaultWorkingWeek()
	}

	total, err := WorkingDays(start, end, startHalf, endHalf, week, holidays)
	if err != nil {
		return decimal.Zero, err
	}
	if total.IsZero() {
		return decimal.Zero, &ValidationError{Field: "dates", Message: "range contains no working days"}
	}

	if lt.RequiresAttachment && attachmentRef == "" && total.GreaterThanOrEqual(lt.AttachmentFromDays) {
		return decimal.Zero, &ValidationError{
			Field:   "attachment",
			Message: fmt.Sprintf("%s requires an attachment from %s days", lt.Code, lt.AttachmentFromDays),
		}
	}
	return total, nil
}

func validateWorkflow(wf WorkflowConfig) error {
	if wf.Mode != ModeSequential && wf.Mode != ModeParallel {
		return &ValidationError{Field: "workflow", Message: fmt.Sprintf("unknown workflow mode %q", wf.Mode)}
	}
	required := 0
	for _, s := range wf.Steps {
		if s.Required {
			required++
			if s.Approver == "" {
				return &ValidationError{Field: "workflow", Message: "required step has no assigned approver"}
			}
		}
	}
	if required == 0 {
		return &ValidationError{Field: "workflow", Message: "workflow has no required steps"}
	}
	return nil
}

// checkOverlap enforces: a new range must not intersect an existing
// non-cancelled, non-refused request of the same employee.
func (svc *Service) checkOverlap(ctx context.Context, s Store, req *LeaveRequest) error {
	existing, err := s.FindOverlapping(ctx, req.EmployeeID, req.StartDate, req.EndDate)
	if err != nil {
		return err
	}
	for _, other := range existing {
		if other.ID == req.ID {
			continue
		}
		if other.BlocksOverlap() && other.Overlaps(req.StartDate, req.EndDate) {
			return &OverlapError{Existing: other.ID, Start: req.StartDate, End: req.EndDate}
		}
	}
	return nil
}

// reserve holds the request's days when its type deducts from balance.
func (svc *Service) reserve(ctx context.Context, s Store, req *LeaveRequest) (*BalanceMutation, error) {
	if req.BalanceType == "" || req.Reserved {
		return nil, nil
	}
	key := BalanceKey{EmployeeID: req.EmployeeID, Year: req.BalanceYear, BalanceType: req.BalanceType}
	m, err := NewLedger(s).Reserve(ctx, key, req.TotalDays, req.ID, ActorID(req.EmployeeID))
	if err != nil {
		return nil, err
	}
	req.Reserved = true
	return m, nil
}

// buildSteps instantiates the step set for the request's current attempt
// from the workflow configuration. Optional steps are skipped.
func (svc *Service) buildSteps(req *LeaveRequest, wf WorkflowConfig) []*ApprovalStep {
	var steps []*ApprovalStep
	for _, cfg := range wf.Steps {
		if !cfg.Required {
			continue
		}
		steps = append(steps, &ApprovalStep{
			ID:        StepID(svc.newID()),
			RequestID: req.ID,
			Attempt:   req.Attempt,
			StepOrder: cfg.StepOrder,
			StepType:  cfg.StepType,
			Approver:  cfg.Approver,
		})
	}
	return steps
}

func (svc *Service) emitTransition(req *LeaveRequest, oldStatus RequestStatus, actor ActorID, lt *LeaveTypeConfig) {
	label := ""
	if lt != nil {
		label = lt.Label("")
	}
	svc.events.PublishTransition(WorkflowTransitionEvent{
		RequestID:      req.ID,
		EmployeeID:     req.EmployeeID,
		OldStatus:      oldStatus,
		NewStatus:      req.Status,
		ActorID:        actor,
		LeaveTypeLabel: label,
		StartDate:      req.StartDate,
		EndDate:        req.EndDate,
		OccurredAt:     svc.now(),
	})
}

func (svc *Service) emitMutation(m *BalanceMutation) {
	if m == nil {
		return
	}
	svc.events.PublishBalanceMutation(BalanceMutationEvent{
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
