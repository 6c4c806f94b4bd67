/*
Package leave implements the leave lifecycle core.

PURPOSE:
  This package contains the domain types and algorithms for managing
  employee leave: the working-day calculator, the balance ledger, and
  the approval workflow engine, together with the transactional contract
  binding them.

KEY CONCEPTS IN THIS FILE (types.go):
  - LeaveRequest: An employee's request for time off with its approval state
  - ApprovalStep: One approver's slot in a request's workflow
  - LeaveTypeConfig: Per-type configuration (deduction, attachments, exemption)
  - WorkflowConfig: Externally supplied approval step layout

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal for day counts (half-day granularity)
  2. Type Safety: Strong typing for IDs prevents mixing employee/request IDs
  3. Statuses over deletion: Requests are never deleted, only transitioned
  4. External facts stay external: who may approve is supplied per call

SEE ALSO:
  - calendar.go: Working-day arithmetic
  - balance.go: Balance account and its pure transitions
  - workflow.go: Approval state machine
*/
package leave

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type EmployeeID string
type ActorID string
type LeaveTypeID string
type RequestID string
type StepID string
type OfficeID string

// =============================================================================
// HALF-DAY MARKERS
// =============================================================================

// HalfDay marks how a boundary date of a request is consumed.
type HalfDay string

const (
	FullDay   HalfDay = "FULL_DAY"
	Morning   HalfDay = "MORNING"
	Afternoon HalfDay = "AFTERNOON"
)

// Valid reports whether h is one of the known markers.
func (h HalfDay) Valid() bool {
	return h == FullDay || h == Morning || h == Afternoon
}

// =============================================================================
// REQUEST STATUS
// =============================================================================

type RequestStatus string

const (
	StatusDraft          RequestStatus = "DRAFT"
	StatusPendingManager RequestStatus = "PENDING_MANAGER"
	StatusPendingHR      RequestStatus = "PENDING_HR"
	StatusApproved       RequestStatus = "APPROVED"
	StatusRefused        RequestStatus = "REFUSED"
	StatusReturned       RequestStatus = "RETURNED"
	StatusCancelled      RequestStatus = "CANCELLED"
)

// IsTerminal reports whether no further workflow transition is possible.
// RETURNED is soft-terminal: the employee may revise and resubmit.
func (s RequestStatus) IsTerminal() bool {
	return s == StatusApproved || s == StatusRefused || s == StatusCancelled
}

// IsPending reports whether the request is awaiting an approval stage.
func (s RequestStatus) IsPending() bool {
	return s == StatusPendingManager || s == StatusPendingHR
}

// =============================================================================
// APPROVAL STEPS
// =============================================================================

type StepType string

const (
	StepManager StepType = "MANAGER"
	StepHR      StepType = "HR"
)

// PendingStatus returns the request status while this step type's stage
// is awaiting decisions.
func (t StepType) PendingStatus() RequestStatus {
	if t == StepHR {
		return StatusPendingHR
	}
	return StatusPendingManager
}

// StepAction is an approver's decision on a step. Empty while undecided.
type StepAction string

const (
	ActionApproved StepAction = "APPROVED"
	ActionRefused  StepAction = "REFUSED"
	ActionReturned StepAction = "RETURNED"
)

func (a StepAction) Valid() bool {
	return a == ActionApproved || a == ActionRefused || a == ActionReturned
}

// RequiresComment reports whether a non-empty comment must accompany the action.
func (a StepAction) RequiresComment() bool {
	return a == ActionRefused || a == ActionReturned
}

// ApprovalStep is one approver's slot in a request's workflow.
// Each step is decided at most once; a decision is never overwritten.
// Attempt ties the step to one submission of its request: resubmission after
// a return creates a fresh step set under the next attempt, and prior steps
// stay on record as closed history.
type ApprovalStep struct {
	ID        StepID
	RequestID RequestID
	Attempt   int
	StepOrder int
	StepType  StepType
	Approver  ActorID

	Action    StepAction // empty while pending
	Comment   string
	DecidedAt *time.Time
}

// Decided reports whether this step already carries a decision.
func (s *ApprovalStep) Decided() bool { return s.Action != "" }

// =============================================================================
// WORKFLOW CONFIGURATION (externally supplied, read-only to the core)
// =============================================================================

type WorkflowMode string

const (
	ModeSequential WorkflowMode = "SEQUENTIAL"
	ModeParallel   WorkflowMode = "PARALLEL"
)

// WorkflowStepConfig is one required step in a workflow configuration.
// The approver is an externally resolved assignment fact: the core does not
// decide who approves, it only enforces that the decider matches.
type WorkflowStepConfig struct {
	StepOrder int
	StepType  StepType
	Approver  ActorID
	Required  bool
}

// WorkflowConfig describes the approval layout applicable to a request,
// typically configured per office or per team.
type WorkflowConfig struct {
	ID     string
	Office OfficeID
	Mode   WorkflowMode
	Steps  []WorkflowStepConfig
}

// =============================================================================
// LEAVE TYPE CONFIGURATION
// =============================================================================

// LeaveTypeConfig governs how a category of leave behaves. Immutable during
// a request's lifetime; changes never retroactively affect existing requests.
//
// BalanceExempt is an explicit attribute rather than a magic code comparison:
// an exempt type never touches the ledger regardless of DeductsFromBalance.
type LeaveTypeConfig struct {
	ID     LeaveTypeID
	Code   string
	Labels map[string]string // locale -> label
	Color  string
	Office OfficeID
	Active bool

	DeductsFromBalance bool
	BalanceType        string // e.g. "paid", "rtt"; empty when no deduction
	BalanceExempt      bool   // exceptional leave: never touches the ledger

	RequiresAttachment bool
	AttachmentFromDays decimal.Decimal // threshold above which an attachment is required
}

// Label returns the label for locale, falling back to the type code.
func (c *LeaveTypeConfig) Label(locale string) string {
	if l, ok := c.Labels[locale]; ok && l != "" {
		return l
	}
	return c.Code
}

// Deducts reports whether requests of this type consume balance days.
func (c *LeaveTypeConfig) Deducts() bool {
	return c.DeductsFromBalance && !c.BalanceExempt && c.BalanceType != ""
}

// =============================================================================
// LEAVE REQUEST
// =============================================================================

// LeaveRequest is an employee's request for time off. Never physically
// deleted: cancellation and refusal are statuses, not deletions.
type LeaveRequest struct {
	ID          RequestID
	EmployeeID  EmployeeID
	LeaveTypeID LeaveTypeID

	StartDate Date
	EndDate   Date
	StartHalf HalfDay
	EndHalf   HalfDay
	TotalDays decimal.Decimal

	Status RequestStatus
	Mode   WorkflowMode

	// Attempt counts submissions: it starts at 1 and increments on each
	// resubmission after a return. Steps carry the attempt they belong to.
	Attempt int

	Reason            string
	ExceptionalReason string
	AttachmentRef     string

	// Ledger linkage, captured at reservation time so commit/release use the
	// exact same key even if the type config changes later.
	BalanceYear int
	BalanceType string
	Reserved    bool

	// Reminder bookkeeping for the pending-request scan.
	RemindedAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Overlaps reports whether the request's date range intersects [start, end].
// Cancelled and refused requests never block new ranges; callers filter those.
func (r *LeaveRequest) Overlaps(start, end Date) bool {
	return !r.EndDate.Before(start) && !r.StartDate.After(end)
}

// BlocksOverlap reports whether this request's status makes its date range
// unavailable to new requests of the same employee.
func (r *LeaveRequest) BlocksOverlap() bool {
	return r.Status != StatusCancelled && r.Status != StatusRefused
}
