/*
presets.go - Pre-built leave type and workflow configurations

PURPOSE:
  Ready-to-use configurations for common leave categories, so a fresh
  deployment starts with sensible types instead of an empty catalogue.
  These are convenience constructors; real installations tune labels,
  balance types and attachment thresholds per office.

AVAILABLE PRESETS:
  PaidLeaveType:        Annual paid vacation, deducts from the "paid" bucket
  RTTLeaveType:         Reduced-working-time days, own "rtt" bucket
  SickLeaveType:        Deducts, requires a certificate from 3 days
  ExceptionalLeaveType: Marriage/bereavement etc, balance-exempt
  UnpaidLeaveType:      Tracked for the calendar, never touches a balance

WORKFLOW BUILDERS:
  ManagerOnlyWorkflow:  Single required manager step
  ManagerThenHRWorkflow: Sequential MANAGER -> HR, the common two-stage layout

SEE ALSO:
  - types.go: LeaveTypeConfig and WorkflowConfig definitions
  - request.go: Consumes these configs at intake
*/
package leave

import "github.com/shopspring/decimal"

// =============================================================================
// LEAVE TYPE PRESETS
// =============================================================================

// PaidLeaveType returns the standard annual paid vacation type.
func PaidLeaveType(id LeaveTypeID, office OfficeID) LeaveTypeConfig {
	return LeaveTypeConfig{
		ID:                 id,
		Code:               "paid",
		Labels:             map[string]string{"en": "Paid leave", "fr": "Congés payés"},
		Color:              "#2e7d32",
		Office:             office,
		Active:             true,
		DeductsFromBalance: true,
		BalanceType:        "paid",
	}
}

// RTTLeaveType returns the reduced-working-time day type, tracked in its own
// balance bucket so paid vacation and RTT never mix.
func RTTLeaveType(id LeaveTypeID, office OfficeID) LeaveTypeConfig {
	return LeaveTypeConfig{
		ID:                 id,
		Code:               "rtt",
		Labels:             map[string]string{"en": "RTT", "fr": "RTT"},
		Color:              "#1565c0",
		Office:             office,
		Active:             true,
		DeductsFromBalance: true,
		BalanceType:        "rtt",
	}
}

// SickLeaveType returns a sick-leave type requiring a medical certificate for
// absences of attachmentFromDays or more.
func SickLeaveType(id LeaveTypeID, office OfficeID, attachmentFromDays int) LeaveTypeConfig {
	return LeaveTypeConfig{
		ID:                 id,
		Code:               "sick",
		Labels:             map[string]string{"en": "Sick leave", "fr": "Arrêt maladie"},
		Color:              "#c62828",
		Office:             office,
		Active:             true,
		DeductsFromBalance: true,
		BalanceType:        "sick",
		RequiresAttachment: true,
		AttachmentFromDays: decimal.NewFromInt(int64(attachmentFromDays)),
	}
}

// ExceptionalLeaveType returns a balance-exempt type for events like marriage
// or bereavement: approved through the normal workflow, never metered.
func ExceptionalLeaveType(id LeaveTypeID, office OfficeID) LeaveTypeConfig {
	return LeaveTypeConfig{
		ID:            id,
		Code:          "exceptional",
		Labels:        map[string]string{"en": "Exceptional leave", "fr": "Congé exceptionnel"},
		Color:         "#6a1b9a",
		Office:        office,
		Active:        true,
		BalanceExempt: true,
	}
}

// UnpaidLeaveType returns a type that blocks the calendar without consuming
// any balance.
func UnpaidLeaveType(id LeaveTypeID, office OfficeID) LeaveTypeConfig {
	return LeaveTypeConfig{
		ID:     id,
		Code:   "unpaid",
		Labels: map[string]string{"en": "Unpaid leave", "fr": "Congé sans solde"},
		Color:  "#757575",
		Office: office,
		Active: true,
	}
}

// DefaultLeaveTypes returns the full starter catalogue for an office.
func DefaultLeaveTypes(office OfficeID) []LeaveTypeConfig {
	return []LeaveTypeConfig{
		PaidLeaveType(LeaveTypeID(string(office)+"-paid"), office),
		RTTLeaveType(LeaveTypeID(string(office)+"-rtt"), office),
		SickLeaveType(LeaveTypeID(string(office)+"-sick"), office, 3),
		ExceptionalLeaveType(LeaveTypeID(string(office)+"-exceptional"), office),
		UnpaidLeaveType(LeaveTypeID(string(office)+"-unpaid"), office),
	}
}

// =============================================================================
// WORKFLOW PRESETS
// =============================================================================

// ManagerOnlyWorkflow returns a single-step workflow where the named manager
// decides alone.
func ManagerOnlyWorkflow(id string, office OfficeID, manager ActorID) WorkflowConfig {
	return WorkflowConfig{
		ID:     id,
		Office: office,
		Mode:   ModeSequential,
		Steps: []WorkflowStepConfig{
			{StepOrder: 1, StepType: StepManager, Approver: manager, Required: true},
		},
	}
}

// ManagerThenHRWorkflow returns the common two-stage layout: the manager
// decides first, HR confirms.
func ManagerThenHRWorkflow(id string, office OfficeID, manager, hr ActorID) WorkflowConfig {
	return WorkflowConfig{
		ID:     id,
		Office: office,
		Mode:   ModeSequential,
		Steps: []WorkflowStepConfig{
			{StepOrder: 1, StepType: StepManager, Approver: manager, Required: true},
			{StepOrder: 2, StepType: StepHR, Approver: hr, Required: true},
		},
	}
}
