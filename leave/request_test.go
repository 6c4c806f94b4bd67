package leave_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/leave-engine/leave"
)

// =============================================================================
// INTAKE VALIDATION
// =============================================================================

func TestService_Create_OverlappingRange_Rejected(t *testing.T) {
	// GIVEN: A pending request for Mon-Wed
	// WHEN: A second request for Tue-Thu of the same week
	// THEN: OverlapError naming the blocking request; nothing reserved twice

	f := newWorkflowFixture(t)
	ctx := context.Background()
	key := f.openBalance(t, 25)
	existing := f.submit(t, paidType(), sequentialWorkflow())

	_, err := f.service.Create(ctx, leave.CreateInput{
		EmployeeID: "emp-1",
		LeaveType:  paidType(),
		Start:      leave.NewDate(2026, time.March, 3),
		End:        leave.NewDate(2026, time.March, 5),
		StartHalf:  leave.FullDay,
		EndHalf:    leave.FullDay,
		Workflow:   sequentialWorkflow(),
		Week:       leave.DefaultWorkingWeek(),
		Holidays:   leave.HolidaySet{},
	})

	require.Error(t, err)
	var overlapErr *leave.OverlapError
	require.ErrorAs(t, err, &overlapErr)
	assert.Equal(t, existing.ID, overlapErr.Existing)

	b, _ := f.store.GetBalance(ctx, key)
	assert.Equal(t, "3", b.Pending.String())
}

func TestService_Create_CancelledRequestDoesNotBlock(t *testing.T) {
	// GIVEN: A cancelled request for Mon-Wed
	// WHEN: A new request for the same range
	// THEN: Accepted - cancelled and refused requests never block

	f := newWorkflowFixture(t)
	ctx := context.Background()
	f.openBalance(t, 25)
	first := f.submit(t, paidType(), sequentialWorkflow())

	_, err := f.engine.Cancel(ctx, first.ID, "emp-1")
	require.NoError(t, err)

	second := f.submit(t, paidType(), sequentialWorkflow())
	assert.Equal(t, leave.StatusPendingManager, second.Status)
}

func TestService_Create_InsufficientBalance_NothingPersisted(t *testing.T) {
	// GIVEN: Only 1 day remaining
	// WHEN: A 3-day request is submitted
	// THEN: The whole intake rolls back - no request, no steps, no mutation

	f := newWorkflowFixture(t)
	ctx := context.Background()
	key := f.openBalance(t, 1)

	_, err := f.service.Create(ctx, leave.CreateInput{
		EmployeeID: "emp-1",
		LeaveType:  paidType(),
		Start:      leave.NewDate(2026, time.March, 2),
		End:        leave.NewDate(2026, time.March, 4),
		StartHalf:  leave.FullDay,
		EndHalf:    leave.FullDay,
		Workflow:   sequentialWorkflow(),
		Week:       leave.DefaultWorkingWeek(),
		Holidays:   leave.HolidaySet{},
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, leave.ErrInsufficientBalance)

	pending, err := f.store.PendingRequests(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)

	mutations, err := f.store.Mutations(ctx, key)
	require.NoError(t, err)
	assert.Empty(t, mutations)
}

func TestService_Create_RangeWithoutWorkingDays_Rejected(t *testing.T) {
	// GIVEN: A Saturday-Sunday range under a Monday-Friday week
	// WHEN: Submitting it
	// THEN: Rejected - a request must consume at least half a day

	f := newWorkflowFixture(t)
	f.openBalance(t, 25)

	_, err := f.service.Create(context.Background(), leave.CreateInput{
		EmployeeID: "emp-1",
		LeaveType:  paidType(),
		Start:      leave.NewDate(2026, time.March, 7),
		End:        leave.NewDate(2026, time.March, 8),
		StartHalf:  leave.FullDay,
		EndHalf:    leave.FullDay,
		Workflow:   sequentialWorkflow(),
		Week:       leave.DefaultWorkingWeek(),
		Holidays:   leave.HolidaySet{},
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, leave.ErrValidation)
}

func TestService_Create_AttachmentRequiredAboveThreshold(t *testing.T) {
	// GIVEN: A sick-leave type requiring an attachment from 3 days
	// WHEN: A 3-day request arrives without one, then with one
	// THEN: The first is rejected, the second accepted

	f := newWorkflowFixture(t)
	ctx := context.Background()
	f.openBalance(t, 25)

	sick := &leave.LeaveTypeConfig{
		ID:                 "lt-sick",
		Code:               "sick",
		Active:             true,
		DeductsFromBalance: true,
		BalanceType:        "paid",
		RequiresAttachment: true,
		AttachmentFromDays: decimal.NewFromInt(3),
	}
	in := leave.CreateInput{
		EmployeeID: "emp-1",
		LeaveType:  sick,
		Start:      leave.NewDate(2026, time.March, 2),
		End:        leave.NewDate(2026, time.March, 4),
		StartHalf:  leave.FullDay,
		EndHalf:    leave.FullDay,
		Workflow:   sequentialWorkflow(),
		Week:       leave.DefaultWorkingWeek(),
		Holidays:   leave.HolidaySet{},
	}

	_, err := f.service.Create(ctx, in)
	require.Error(t, err)
	assert.ErrorIs(t, err, leave.ErrValidation)

	in.AttachmentRef = "doc://certificates/123"
	req, err := f.service.Create(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, leave.StatusPendingManager, req.Status)
}

func TestService_Create_InvalidWorkflow_Rejected(t *testing.T) {
	// GIVEN: A workflow with no required steps
	// WHEN: Submitting (not drafting) a request under it
	// THEN: Rejected before anything is written

	f := newWorkflowFixture(t)
	f.openBalance(t, 25)

	_, err := f.service.Create(context.Background(), leave.CreateInput{
		EmployeeID: "emp-1",
		LeaveType:  paidType(),
		Start:      leave.NewDate(2026, time.March, 2),
		End:        leave.NewDate(2026, time.March, 4),
		StartHalf:  leave.FullDay,
		EndHalf:    leave.FullDay,
		Workflow:   leave.WorkflowConfig{Mode: leave.ModeSequential},
		Week:       leave.DefaultWorkingWeek(),
		Holidays:   leave.HolidaySet{},
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, leave.ErrValidation)
}

// =============================================================================
// DRAFTS
// =============================================================================

func TestService_Draft_InvalidWorkflow_Rejected(t *testing.T) {
	// GIVEN: A workflow with an unknown mode
	// WHEN: Saving a request as draft under it
	// THEN: Rejected at drafting, not deferred to submission

	f := newWorkflowFixture(t)
	f.openBalance(t, 25)

	_, err := f.service.Create(context.Background(), leave.CreateInput{
		EmployeeID: "emp-1",
		LeaveType:  paidType(),
		Start:      leave.NewDate(2026, time.March, 2),
		End:        leave.NewDate(2026, time.March, 4),
		StartHalf:  leave.FullDay,
		EndHalf:    leave.FullDay,
		AsDraft:    true,
		Workflow:   leave.WorkflowConfig{Mode: "ROUND_ROBIN"},
		Week:       leave.DefaultWorkingWeek(),
		Holidays:   leave.HolidaySet{},
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, leave.ErrValidation)
}

func TestService_Draft_ReservesOnlyOnSubmit(t *testing.T) {
	// GIVEN: A request saved as draft
	// WHEN: The employee later submits it
	// THEN: The reservation is taken at submission, not at drafting

	f := newWorkflowFixture(t)
	ctx := context.Background()
	key := f.openBalance(t, 25)

	req, err := f.service.Create(ctx, leave.CreateInput{
		EmployeeID: "emp-1",
		LeaveType:  paidType(),
		Start:      leave.NewDate(2026, time.March, 2),
		End:        leave.NewDate(2026, time.March, 4),
		StartHalf:  leave.FullDay,
		EndHalf:    leave.FullDay,
		AsDraft:    true,
		Workflow:   sequentialWorkflow(),
		Week:       leave.DefaultWorkingWeek(),
		Holidays:   leave.HolidaySet{},
	})
	require.NoError(t, err)
	assert.Equal(t, leave.StatusDraft, req.Status)
	assert.False(t, req.Reserved)

	b, _ := f.store.GetBalance(ctx, key)
	assert.True(t, b.Pending.IsZero())

	req, err = f.service.Submit(ctx, req.ID, "emp-1")
	require.NoError(t, err)
	assert.Equal(t, leave.StatusPendingManager, req.Status)
	assert.True(t, req.Reserved)

	b, _ = f.store.GetBalance(ctx, key)
	assert.Equal(t, "3", b.Pending.String())
}

func TestService_Submit_OnlyRequester(t *testing.T) {
	f := newWorkflowFixture(t)
	ctx := context.Background()
	f.openBalance(t, 25)

	req, err := f.service.Create(ctx, leave.CreateInput{
		EmployeeID: "emp-1",
		LeaveType:  paidType(),
		Start:      leave.NewDate(2026, time.March, 2),
		End:        leave.NewDate(2026, time.March, 4),
		StartHalf:  leave.FullDay,
		EndHalf:    leave.FullDay,
		AsDraft:    true,
		Workflow:   sequentialWorkflow(),
		Week:       leave.DefaultWorkingWeek(),
		Holidays:   leave.HolidaySet{},
	})
	require.NoError(t, err)

	_, err = f.service.Submit(ctx, req.ID, "mgr-1")

	require.Error(t, err)
	assert.True(t, leave.IsForbidden(err))
}

func TestService_Submit_NonDraft_Rejected(t *testing.T) {
	// GIVEN: A request already pending approval
	// WHEN: Submitting it again
	// THEN: Rejected - submission is a one-way door out of DRAFT

	f := newWorkflowFixture(t)
	f.openBalance(t, 25)
	req := f.submit(t, paidType(), sequentialWorkflow())

	_, err := f.service.Submit(context.Background(), req.ID, "emp-1")

	require.Error(t, err)
	assert.ErrorIs(t, err, leave.ErrValidation)
}

func TestService_Resubmit_PendingRequest_Rejected(t *testing.T) {
	// GIVEN: A request still pending its manager
	// WHEN: The employee tries to resubmit it
	// THEN: Rejected - only RETURNED (or draft) requests can be revised

	f := newWorkflowFixture(t)
	f.openBalance(t, 25)
	lt := paidType()
	req := f.submit(t, lt, sequentialWorkflow())

	_, err := f.service.Resubmit(context.Background(), req.ID, "emp-1", lt, leave.RevisionInput{
		Start:     leave.NewDate(2026, time.March, 2),
		End:       leave.NewDate(2026, time.March, 4),
		StartHalf: leave.FullDay,
		EndHalf:   leave.FullDay,
		Workflow:  sequentialWorkflow(),
		Week:      leave.DefaultWorkingWeek(),
		Holidays:  leave.HolidaySet{},
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, leave.ErrValidation)
}
