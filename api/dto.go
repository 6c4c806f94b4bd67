/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Request bodies carry go-playground/validator struct tags; handlers run
  the validator before touching domain logic. Domain invariants (balance,
  overlap, workflow state) are still enforced inside the core - the tags
  only catch malformed input early.

SEE ALSO:
  - handlers.go: Uses these types
  - leave/types.go: The domain model these map onto
*/
package api

import (
	"time"

	"github.com/warp/leave-engine/leave"
)

// =============================================================================
// EMPLOYEES AND OFFICES
// =============================================================================

// EmployeeDTO represents an employee in API responses.
type EmployeeDTO struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	OfficeID  string `json:"office_id"`
	HireDate  string `json:"hire_date"`
	CreatedAt string `json:"created_at,omitempty"`
}

// CreateEmployeeRequest is the request to create an employee.
type CreateEmployeeRequest struct {
	ID       string `json:"id" validate:"required"`
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	OfficeID string `json:"office_id" validate:"required"`
	HireDate string `json:"hire_date" validate:"required,datetime=2006-01-02"`
}

// OfficeDTO represents an office in API responses.
type OfficeDTO struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Country          string `json:"country,omitempty"`
	WorkingWeek      []int  `json:"working_week"`
	CarryoverCap     string `json:"carryover_cap"`
	DefaultAllowance string `json:"default_allowance"`
}

// CreateOfficeRequest is the request to create or update an office.
type CreateOfficeRequest struct {
	ID               string `json:"id" validate:"required"`
	Name             string `json:"name" validate:"required"`
	Country          string `json:"country"`
	WorkingWeek      []int  `json:"working_week" validate:"omitempty,dive,min=0,max=6"`
	CarryoverCap     string `json:"carryover_cap" validate:"omitempty,numeric"`
	DefaultAllowance string `json:"default_allowance" validate:"omitempty,numeric"`
}

// =============================================================================
// LEAVE TYPES
// =============================================================================

// LeaveTypeDTO represents a leave type in API responses.
type LeaveTypeDTO struct {
	ID                 string            `json:"id"`
	Code               string            `json:"code"`
	Labels             map[string]string `json:"labels,omitempty"`
	Color              string            `json:"color,omitempty"`
	OfficeID           string            `json:"office_id,omitempty"`
	Active             bool              `json:"active"`
	DeductsFromBalance bool              `json:"deducts_from_balance"`
	BalanceType        string            `json:"balance_type,omitempty"`
	BalanceExempt      bool              `json:"balance_exempt"`
	RequiresAttachment bool              `json:"requires_attachment"`
	AttachmentFromDays string            `json:"attachment_from_days,omitempty"`
}

// CreateLeaveTypeRequest is the request to create or update a leave type.
type CreateLeaveTypeRequest struct {
	ID                 string            `json:"id" validate:"required"`
	Code               string            `json:"code" validate:"required"`
	Labels             map[string]string `json:"labels"`
	Color              string            `json:"color"`
	OfficeID           string            `json:"office_id"`
	Active             bool              `json:"active"`
	DeductsFromBalance bool              `json:"deducts_from_balance"`
	BalanceType        string            `json:"balance_type"`
	BalanceExempt      bool              `json:"balance_exempt"`
	RequiresAttachment bool              `json:"requires_attachment"`
	AttachmentFromDays string            `json:"attachment_from_days" validate:"omitempty,numeric"`
}

// =============================================================================
// WORKFLOW CONFIGURATION
// =============================================================================

// WorkflowStepDTO is one configured step of an approval workflow.
type WorkflowStepDTO struct {
	StepOrder int    `json:"step_order" validate:"min=0"`
	StepType  string `json:"step_type" validate:"required,oneof=MANAGER HR"`
	Approver  string `json:"approver" validate:"required"`
	Required  bool   `json:"required"`
}

// WorkflowConfigDTO represents a workflow configuration.
type WorkflowConfigDTO struct {
	ID       string            `json:"id"`
	OfficeID string            `json:"office_id"`
	Mode     string            `json:"mode"`
	Steps    []WorkflowStepDTO `json:"steps"`
}

// SaveWorkflowConfigRequest creates or replaces an office's workflow.
type SaveWorkflowConfigRequest struct {
	ID       string            `json:"id" validate:"required"`
	OfficeID string            `json:"office_id" validate:"required"`
	Mode     string            `json:"mode" validate:"required,oneof=SEQUENTIAL PARALLEL"`
	Steps    []WorkflowStepDTO `json:"steps" validate:"required,min=1,dive"`
}

// =============================================================================
// HOLIDAYS
// =============================================================================

// HolidayDTO represents a holiday in API responses.
type HolidayDTO struct {
	ID       string `json:"id"`
	OfficeID string `json:"office_id,omitempty"`
	Date     string `json:"date"`
	Name     string `json:"name"`
}

// CreateHolidayRequest is the request to create a holiday.
type CreateHolidayRequest struct {
	ID       string `json:"id" validate:"required"`
	OfficeID string `json:"office_id"`
	Date     string `json:"date" validate:"required,datetime=2006-01-02"`
	Name     string `json:"name" validate:"required"`
}

// =============================================================================
// LEAVE REQUESTS
// =============================================================================

// SubmitLeaveRequest is the request body for creating a leave request.
type SubmitLeaveRequest struct {
	EmployeeID        string `json:"employee_id" validate:"required"`
	LeaveTypeID       string `json:"leave_type_id" validate:"required"`
	StartDate         string `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate           string `json:"end_date" validate:"required,datetime=2006-01-02"`
	StartHalf         string `json:"start_half" validate:"omitempty,oneof=FULL_DAY MORNING AFTERNOON"`
	EndHalf           string `json:"end_half" validate:"omitempty,oneof=FULL_DAY MORNING AFTERNOON"`
	Reason            string `json:"reason"`
	ExceptionalReason string `json:"exceptional_reason"`
	AttachmentRef     string `json:"attachment_ref"`
	AsDraft           bool   `json:"as_draft"`
}

// ReviseLeaveRequest is the request body for resubmitting a returned request.
type ReviseLeaveRequest struct {
	ActorID       string `json:"actor_id" validate:"required"`
	StartDate     string `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate       string `json:"end_date" validate:"required,datetime=2006-01-02"`
	StartHalf     string `json:"start_half" validate:"omitempty,oneof=FULL_DAY MORNING AFTERNOON"`
	EndHalf       string `json:"end_half" validate:"omitempty,oneof=FULL_DAY MORNING AFTERNOON"`
	Reason        string `json:"reason"`
	AttachmentRef string `json:"attachment_ref"`
}

// ActorRequest carries the acting user for operations without other input.
type ActorRequest struct {
	ActorID string `json:"actor_id" validate:"required"`
}

// DecideStepRequest records an approver's decision on one step.
type DecideStepRequest struct {
	ActorID string `json:"actor_id" validate:"required"`
	Action  string `json:"action" validate:"required,oneof=APPROVED REFUSED RETURNED"`
	Comment string `json:"comment"`
}

// LeaveRequestDTO represents a leave request in API responses.
type LeaveRequestDTO struct {
	ID          string `json:"id"`
	EmployeeID  string `json:"employee_id"`
	LeaveTypeID string `json:"leave_type_id"`
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date"`
	StartHalf   string `json:"start_half"`
	EndHalf     string `json:"end_half"`
	TotalDays   string `json:"total_days"`
	Status      string `json:"status"`
	Mode        string `json:"mode"`
	Attempt     int    `json:"attempt"`
	Reason      string `json:"reason,omitempty"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`

	Steps []ApprovalStepDTO `json:"steps,omitempty"`
}

// ApprovalStepDTO represents one approval step in API responses.
type ApprovalStepDTO struct {
	ID        string `json:"id"`
	Attempt   int    `json:"attempt"`
	StepOrder int    `json:"step_order"`
	StepType  string `json:"step_type"`
	Approver  string `json:"approver"`
	Action    string `json:"action,omitempty"`
	Comment   string `json:"comment,omitempty"`
	DecidedAt string `json:"decided_at,omitempty"`
}

// =============================================================================
// BALANCES
// =============================================================================

// BalanceDTO represents one balance bucket in API responses.
type BalanceDTO struct {
	EmployeeID  string `json:"employee_id"`
	Year        int    `json:"year"`
	BalanceType string `json:"balance_type"`
	Total       string `json:"total"`
	CarriedOver string `json:"carried_over"`
	Used        string `json:"used"`
	Pending     string `json:"pending"`
	Remaining   string `json:"remaining"`
}

// MutationDTO represents one ledger audit entry.
type MutationDTO struct {
	ID        string `json:"id"`
	Kind      string `json:"kind"`
	Delta     string `json:"delta"`
	Reason    string `json:"reason,omitempty"`
	RequestID string `json:"request_id,omitempty"`
	ActorID   string `json:"actor_id,omitempty"`
	CreatedAt string `json:"created_at"`
}

// OpenBalanceRequest creates a balance bucket for an employee/year.
type OpenBalanceRequest struct {
	ActorID     string `json:"actor_id" validate:"required"`
	EmployeeID  string `json:"employee_id" validate:"required"`
	Year        int    `json:"year" validate:"required,min=2000"`
	BalanceType string `json:"balance_type" validate:"required"`
	Total       string `json:"total" validate:"required,numeric"`
	CarriedOver string `json:"carried_over" validate:"omitempty,numeric"`
}

// AdjustBalanceRequest is a manual HR adjustment; reason is mandatory.
type AdjustBalanceRequest struct {
	ActorID     string `json:"actor_id" validate:"required"`
	EmployeeID  string `json:"employee_id" validate:"required"`
	Year        int    `json:"year" validate:"required,min=2000"`
	BalanceType string `json:"balance_type" validate:"required"`
	Delta       string `json:"delta" validate:"required,numeric"`
	Reason      string `json:"reason" validate:"required"`
}

// CarryoverRequest moves unused days into the next year's bucket.
type CarryoverRequest struct {
	ActorID     string `json:"actor_id" validate:"required"`
	EmployeeID  string `json:"employee_id" validate:"required"`
	Year        int    `json:"year" validate:"required,min=2000"`
	BalanceType string `json:"balance_type" validate:"required"`
	Days        string `json:"days" validate:"required,numeric"`
}

// =============================================================================
// MISC
// =============================================================================

// WorkingDaysResponse is the calculator's answer for a candidate range.
type WorkingDaysResponse struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Days      string `json:"days"`
}

// ErrorResponse is the standard error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toRequestDTO(r *leave.LeaveRequest, steps []*leave.ApprovalStep) LeaveRequestDTO {
	dto := LeaveRequestDTO{
		ID:          string(r.ID),
		EmployeeID:  string(r.EmployeeID),
		LeaveTypeID: string(r.LeaveTypeID),
		StartDate:   r.StartDate.String(),
		EndDate:     r.EndDate.String(),
		StartHalf:   string(r.StartHalf),
		EndHalf:     string(r.EndHalf),
		TotalDays:   r.TotalDays.String(),
		Status:      string(r.Status),
		Mode:        string(r.Mode),
		Attempt:     r.Attempt,
		Reason:      r.Reason,
		CreatedAt:   r.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   r.UpdatedAt.Format(time.RFC3339),
	}
	for _, s := range steps {
		dto.Steps = append(dto.Steps, toStepDTO(s))
	}
	return dto
}

func toStepDTO(s *leave.ApprovalStep) ApprovalStepDTO {
	dto := ApprovalStepDTO{
		ID:        string(s.ID),
		Attempt:   s.Attempt,
		StepOrder: s.StepOrder,
		StepType:  string(s.StepType),
		Approver:  string(s.Approver),
		Action:    string(s.Action),
		Comment:   s.Comment,
	}
	if s.DecidedAt != nil {
		dto.DecidedAt = s.DecidedAt.Format(time.RFC3339)
	}
	return dto
}

func toBalanceDTO(b *leave.Balance) BalanceDTO {
	return BalanceDTO{
		EmployeeID:  string(b.Key.EmployeeID),
		Year:        b.Key.Year,
		BalanceType: b.Key.BalanceType,
		Total:       b.Total.String(),
		CarriedOver: b.CarriedOver.String(),
		Used:        b.Used.String(),
		Pending:     b.Pending.String(),
		Remaining:   b.Remaining().String(),
	}
}

func toMutationDTO(m leave.BalanceMutation) MutationDTO {
	return MutationDTO{
		ID:        m.ID,
		Kind:      string(m.Kind),
		Delta:     m.Delta.String(),
		Reason:    m.Reason,
		RequestID: string(m.RequestID),
		ActorID:   string(m.ActorID),
		CreatedAt: m.CreatedAt.Format(time.RFC3339),
	}
}

func toLeaveTypeDTO(lt *leave.LeaveTypeConfig) LeaveTypeDTO {
	return LeaveTypeDTO{
		ID:                 string(lt.ID),
		Code:               lt.Code,
		Labels:             lt.Labels,
		Color:              lt.Color,
		OfficeID:           string(lt.Office),
		Active:             lt.Active,
		DeductsFromBalance: lt.DeductsFromBalance,
		BalanceType:        lt.BalanceType,
		BalanceExempt:      lt.BalanceExempt,
		RequiresAttachment: lt.RequiresAttachment,
		AttachmentFromDays: lt.AttachmentFromDays.String(),
	}
}
