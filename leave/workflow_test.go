package leave_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/leave/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type workflowFixture struct {
	store   *store.TxMemory
	service *leave.Service
	engine  *leave.Engine
}

func newWorkflowFixture(t *testing.T) *workflowFixture {
	mem := store.NewTxMemory()
	access := leave.NewDefaultAccessPolicy()
	return &workflowFixture{
		store:   mem,
		service: leave.NewService(mem, access, leave.NopSink{}),
		engine:  leave.NewEngine(mem, access, leave.NopSink{}, nil),
	}
}

func paidType() *leave.LeaveTypeConfig {
	return &leave.LeaveTypeConfig{
		ID:                 "lt-paid",
		Code:               "paid",
		Active:             true,
		DeductsFromBalance: true,
		BalanceType:        "paid",
	}
}

func exemptType() *leave.LeaveTypeConfig {
	return &leave.LeaveTypeConfig{
		ID:            "lt-wedding",
		Code:          "wedding",
		Active:        true,
		BalanceExempt: true,
	}
}

func sequentialWorkflow() leave.WorkflowConfig {
	return leave.ManagerThenHRWorkflow("wf-seq", "paris", "mgr-1", "hr-1")
}

func parallelManagers() leave.WorkflowConfig {
	return leave.WorkflowConfig{
		ID:   "wf-par",
		Mode: leave.ModeParallel,
		Steps: []leave.WorkflowStepConfig{
			{StepOrder: 1, StepType: leave.StepManager, Approver: "mgr-1", Required: true},
			{StepOrder: 2, StepType: leave.StepManager, Approver: "mgr-2", Required: true},
		},
	}
}

func (f *workflowFixture) openBalance(t *testing.T, total float64) leave.BalanceKey {
	t.Helper()
	key := leave.BalanceKey{EmployeeID: "emp-1", Year: 2026, BalanceType: "paid"}
	b := leave.NewBalance(key, decimal.NewFromFloat(total), decimal.Zero)
	require.NoError(t, f.store.CreateBalance(context.Background(), b))
	return key
}

// submit creates a three-working-day request (Mon 2026-03-02 .. Wed 2026-03-04).
func (f *workflowFixture) submit(t *testing.T, lt *leave.LeaveTypeConfig, wf leave.WorkflowConfig) *leave.LeaveRequest {
	t.Helper()
	req, err := f.service.Create(context.Background(), leave.CreateInput{
		EmployeeID: "emp-1",
		LeaveType:  lt,
		Start:      leave.NewDate(2026, time.March, 2),
		End:        leave.NewDate(2026, time.March, 4),
		StartHalf:  leave.FullDay,
		EndHalf:    leave.FullDay,
		Reason:     "spring break",
		Workflow:   wf,
		Week:       leave.DefaultWorkingWeek(),
		Holidays:   leave.HolidaySet{},
	})
	require.NoError(t, err)
	return req
}

// stepFor finds the current-attempt step assigned to approver.
func (f *workflowFixture) stepFor(t *testing.T, req *leave.LeaveRequest, approver leave.ActorID) *leave.ApprovalStep {
	t.Helper()
	steps, err := f.store.StepsByRequest(context.Background(), req.ID, req.Attempt)
	require.NoError(t, err)
	for _, s := range steps {
		if s.Approver == approver {
			return s
		}
	}
	t.Fatalf("no step for approver %s on request %s", approver, req.ID)
	return nil
}

// =============================================================================
// SEQUENTIAL FLOW
// =============================================================================

func TestEngine_SequentialApproval_ManagerThenHR(t *testing.T) {
	// GIVEN: A submitted request under a MANAGER -> HR sequential workflow
	// WHEN: The manager approves, then HR approves
	// THEN: The request moves PENDING_MANAGER -> PENDING_HR -> APPROVED and
	//       the reservation is committed exactly once

	f := newWorkflowFixture(t)
	ctx := context.Background()
	key := f.openBalance(t, 25)
	req := f.submit(t, paidType(), sequentialWorkflow())
	require.Equal(t, leave.StatusPendingManager, req.Status)

	mgrStep := f.stepFor(t, req, "mgr-1")
	req, err := f.engine.DecideStep(ctx, req.ID, mgrStep.ID, "mgr-1", leave.ActionApproved, "")
	require.NoError(t, err)
	assert.Equal(t, leave.StatusPendingHR, req.Status)

	hrStep := f.stepFor(t, req, "hr-1")
	req, err = f.engine.DecideStep(ctx, req.ID, hrStep.ID, "hr-1", leave.ActionApproved, "")
	require.NoError(t, err)
	assert.Equal(t, leave.StatusApproved, req.Status)
	assert.False(t, req.Reserved)

	b, err := f.store.GetBalance(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "3", b.Used.String())
	assert.True(t, b.Pending.IsZero())
	assert.Equal(t, "22", b.Remaining().String())
}

func TestEngine_Sequential_SecondStepBeforeFirst_Rejected(t *testing.T) {
	// GIVEN: A sequential workflow with the manager step undecided
	// WHEN: HR tries to decide its step
	// THEN: Rejected - the request is not at the HR stage yet

	f := newWorkflowFixture(t)
	f.openBalance(t, 25)
	req := f.submit(t, paidType(), sequentialWorkflow())

	hrStep := f.stepFor(t, req, "hr-1")
	_, err := f.engine.DecideStep(context.Background(), req.ID, hrStep.ID, "hr-1", leave.ActionApproved, "")

	require.Error(t, err)
	assert.True(t, leave.IsForbidden(err))
}

// =============================================================================
// PARALLEL FLOW
// =============================================================================

func TestEngine_ParallelStage_AllApproversMustDecide(t *testing.T) {
	// GIVEN: Two managers approving in parallel
	// WHEN: Only the first has approved
	// THEN: The request stays PENDING_MANAGER until the second approves

	f := newWorkflowFixture(t)
	ctx := context.Background()
	f.openBalance(t, 25)
	req := f.submit(t, paidType(), parallelManagers())

	first := f.stepFor(t, req, "mgr-1")
	req, err := f.engine.DecideStep(ctx, req.ID, first.ID, "mgr-1", leave.ActionApproved, "")
	require.NoError(t, err)
	assert.Equal(t, leave.StatusPendingManager, req.Status)

	second := f.stepFor(t, req, "mgr-2")
	req, err = f.engine.DecideStep(ctx, req.ID, second.ID, "mgr-2", leave.ActionApproved, "")
	require.NoError(t, err)
	assert.Equal(t, leave.StatusApproved, req.Status)
}

func TestEngine_ParallelStage_RefusalWins(t *testing.T) {
	// GIVEN: One manager has approved
	// WHEN: The other refuses
	// THEN: Refusal wins over the approval and the reservation is released once

	f := newWorkflowFixture(t)
	ctx := context.Background()
	key := f.openBalance(t, 25)
	req := f.submit(t, paidType(), parallelManagers())

	first := f.stepFor(t, req, "mgr-1")
	_, err := f.engine.DecideStep(ctx, req.ID, first.ID, "mgr-1", leave.ActionApproved, "")
	require.NoError(t, err)

	second := f.stepFor(t, req, "mgr-2")
	req, err = f.engine.DecideStep(ctx, req.ID, second.ID, "mgr-2", leave.ActionRefused, "coverage gap that week")
	require.NoError(t, err)
	assert.Equal(t, leave.StatusRefused, req.Status)
	assert.False(t, req.Reserved)

	b, err := f.store.GetBalance(ctx, key)
	require.NoError(t, err)
	assert.True(t, b.Pending.IsZero())
	assert.True(t, b.Used.IsZero())
	assert.Equal(t, "25", b.Remaining().String())

	mutations, err := f.store.Mutations(ctx, key)
	require.NoError(t, err)
	releases := 0
	for _, m := range mutations {
		if m.Kind == leave.MutationRelease {
			releases++
		}
	}
	assert.Equal(t, 1, releases)
}

// =============================================================================
// DECISION GUARDS
// =============================================================================

func TestEngine_DoubleDecision_Rejected(t *testing.T) {
	// GIVEN: A step the manager already approved
	// WHEN: The same step is decided again
	// THEN: ErrAlreadyDecided - decisions are never overwritten

	f := newWorkflowFixture(t)
	ctx := context.Background()
	f.openBalance(t, 25)
	req := f.submit(t, paidType(), sequentialWorkflow())

	mgrStep := f.stepFor(t, req, "mgr-1")
	_, err := f.engine.DecideStep(ctx, req.ID, mgrStep.ID, "mgr-1", leave.ActionApproved, "")
	require.NoError(t, err)

	_, err = f.engine.DecideStep(ctx, req.ID, mgrStep.ID, "mgr-1", leave.ActionRefused, "changed my mind")
	require.Error(t, err)
	assert.ErrorIs(t, err, leave.ErrAlreadyDecided)
}

func TestEngine_RefuseWithoutComment_Rejected(t *testing.T) {
	f := newWorkflowFixture(t)
	f.openBalance(t, 25)
	req := f.submit(t, paidType(), sequentialWorkflow())

	mgrStep := f.stepFor(t, req, "mgr-1")
	_, err := f.engine.DecideStep(context.Background(), req.ID, mgrStep.ID, "mgr-1", leave.ActionRefused, "")

	require.Error(t, err)
	assert.ErrorIs(t, err, leave.ErrValidation)
}

func TestEngine_WrongActor_Rejected(t *testing.T) {
	// GIVEN: A step assigned to mgr-1
	// WHEN: Somebody else tries to decide it
	// THEN: Forbidden, and the step stays undecided

	f := newWorkflowFixture(t)
	ctx := context.Background()
	f.openBalance(t, 25)
	req := f.submit(t, paidType(), sequentialWorkflow())

	mgrStep := f.stepFor(t, req, "mgr-1")
	_, err := f.engine.DecideStep(ctx, req.ID, mgrStep.ID, "intruder", leave.ActionApproved, "")

	require.Error(t, err)
	assert.True(t, leave.IsForbidden(err))

	fresh, err := f.store.GetStep(ctx, mgrStep.ID)
	require.NoError(t, err)
	assert.False(t, fresh.Decided())
}

func TestEngine_DecideOnTerminalRequest_Rejected(t *testing.T) {
	// GIVEN: A request refused by the first of two parallel managers' refusal
	// WHEN: The remaining manager tries to decide their still-open step
	// THEN: ErrTerminalStatus

	f := newWorkflowFixture(t)
	ctx := context.Background()
	f.openBalance(t, 25)
	req := f.submit(t, paidType(), parallelManagers())

	first := f.stepFor(t, req, "mgr-1")
	_, err := f.engine.DecideStep(ctx, req.ID, first.ID, "mgr-1", leave.ActionRefused, "understaffed")
	require.NoError(t, err)

	second := f.stepFor(t, req, "mgr-2")
	_, err = f.engine.DecideStep(ctx, req.ID, second.ID, "mgr-2", leave.ActionApproved, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, leave.ErrTerminalStatus)
}

// =============================================================================
// CANCELLATION
// =============================================================================

func TestEngine_Cancel_ReleasesReservation(t *testing.T) {
	// GIVEN: A pending request holding 3 reserved days
	// WHEN: The requester cancels
	// THEN: CANCELLED and the days return to the balance

	f := newWorkflowFixture(t)
	ctx := context.Background()
	key := f.openBalance(t, 25)
	req := f.submit(t, paidType(), sequentialWorkflow())

	req, err := f.engine.Cancel(ctx, req.ID, "emp-1")
	require.NoError(t, err)
	assert.Equal(t, leave.StatusCancelled, req.Status)
	assert.False(t, req.Reserved)

	b, err := f.store.GetBalance(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "25", b.Remaining().String())
}

func TestEngine_Cancel_OnlyRequester(t *testing.T) {
	f := newWorkflowFixture(t)
	f.openBalance(t, 25)
	req := f.submit(t, paidType(), sequentialWorkflow())

	_, err := f.engine.Cancel(context.Background(), req.ID, "mgr-1")

	require.Error(t, err)
	assert.True(t, leave.IsForbidden(err))
}

func TestEngine_Cancel_ApprovedRequest_Rejected(t *testing.T) {
	// GIVEN: A fully approved request
	// WHEN: The requester tries to cancel it
	// THEN: ErrTerminalStatus - withdrawal of approved leave is out of scope here

	f := newWorkflowFixture(t)
	ctx := context.Background()
	f.openBalance(t, 25)
	req := f.submit(t, paidType(), sequentialWorkflow())

	mgrStep := f.stepFor(t, req, "mgr-1")
	_, err := f.engine.DecideStep(ctx, req.ID, mgrStep.ID, "mgr-1", leave.ActionApproved, "")
	require.NoError(t, err)
	hrStep := f.stepFor(t, req, "hr-1")
	_, err = f.engine.DecideStep(ctx, req.ID, hrStep.ID, "hr-1", leave.ActionApproved, "")
	require.NoError(t, err)

	_, err = f.engine.Cancel(ctx, req.ID, "emp-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, leave.ErrTerminalStatus)
}

// =============================================================================
// RETURN AND RESUBMIT
// =============================================================================

func TestEngine_ReturnThenResubmit_FreshAttempt(t *testing.T) {
	// GIVEN: A request the manager returned for revision
	// WHEN: The employee resubmits with corrected dates
	// THEN: A fresh attempt with a fresh step set re-enters PENDING_MANAGER,
	//       the old reservation was released and a new one taken

	f := newWorkflowFixture(t)
	ctx := context.Background()
	key := f.openBalance(t, 25)
	lt := paidType()
	req := f.submit(t, lt, sequentialWorkflow())

	mgrStep := f.stepFor(t, req, "mgr-1")
	req, err := f.engine.DecideStep(ctx, req.ID, mgrStep.ID, "mgr-1", leave.ActionReturned, "please shift by a day")
	require.NoError(t, err)
	assert.Equal(t, leave.StatusReturned, req.Status)
	assert.False(t, req.Reserved)

	b, _ := f.store.GetBalance(ctx, key)
	assert.Equal(t, "25", b.Remaining().String())

	req, err = f.service.Resubmit(ctx, req.ID, "emp-1", lt, leave.RevisionInput{
		Start:     leave.NewDate(2026, time.March, 3),
		End:       leave.NewDate(2026, time.March, 5),
		StartHalf: leave.FullDay,
		EndHalf:   leave.FullDay,
		Reason:    "spring break, shifted",
		Workflow:  sequentialWorkflow(),
		Week:      leave.DefaultWorkingWeek(),
		Holidays:  leave.HolidaySet{},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, req.Attempt)
	assert.Equal(t, leave.StatusPendingManager, req.Status)
	assert.True(t, req.Reserved)

	// The new attempt has its own undecided steps; attempt 1 stays on record.
	steps, err := f.store.StepsByRequest(ctx, req.ID, 2)
	require.NoError(t, err)
	require.Len(t, steps, 2)
	for _, s := range steps {
		assert.False(t, s.Decided())
	}
	prior, err := f.store.StepsByRequest(ctx, req.ID, 1)
	require.NoError(t, err)
	assert.True(t, prior[0].Decided())

	b, _ = f.store.GetBalance(ctx, key)
	assert.Equal(t, "3", b.Pending.String())
	assert.Equal(t, "22", b.Remaining().String())
}

// =============================================================================
// BALANCE-EXEMPT TYPES
// =============================================================================

func TestEngine_BalanceExemptType_NeverTouchesLedger(t *testing.T) {
	// GIVEN: A balance-exempt leave type and no balance account at all
	// WHEN: The request is submitted and fully approved
	// THEN: The whole flow completes without any ledger activity

	f := newWorkflowFixture(t)
	ctx := context.Background()
	req := f.submit(t, exemptType(), sequentialWorkflow())
	assert.False(t, req.Reserved)

	mgrStep := f.stepFor(t, req, "mgr-1")
	_, err := f.engine.DecideStep(ctx, req.ID, mgrStep.ID, "mgr-1", leave.ActionApproved, "")
	require.NoError(t, err)
	hrStep := f.stepFor(t, req, "hr-1")
	req, err = f.engine.DecideStep(ctx, req.ID, hrStep.ID, "hr-1", leave.ActionApproved, "")
	require.NoError(t, err)

	assert.Equal(t, leave.StatusApproved, req.Status)
	assert.False(t, req.Reserved)
}
