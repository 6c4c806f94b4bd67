package api_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/warp/leave-engine/api"
	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/leave/store"
)

// captureNotifier records reminder events for assertions.
type captureNotifier struct {
	mu        sync.Mutex
	reminders []leave.ReminderEvent
}

func (c *captureNotifier) NotifyTransition(context.Context, leave.WorkflowTransitionEvent) error {
	return nil
}

func (c *captureNotifier) NotifyReminder(_ context.Context, ev leave.ReminderEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reminders = append(c.reminders, ev)
	return nil
}

func (c *captureNotifier) events() []leave.ReminderEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]leave.ReminderEvent{}, c.reminders...)
}

func pendingRequest(id leave.RequestID, age time.Duration) *leave.LeaveRequest {
	created := time.Now().Add(-age)
	return &leave.LeaveRequest{
		ID:          id,
		EmployeeID:  "emp-1",
		LeaveTypeID: "lt-paid",
		StartDate:   leave.NewDate(2026, time.March, 2),
		EndDate:     leave.NewDate(2026, time.March, 4),
		StartHalf:   leave.FullDay,
		EndHalf:     leave.FullDay,
		TotalDays:   decimal.NewFromInt(3),
		Status:      leave.StatusPendingManager,
		Mode:        leave.ModeSequential,
		Attempt:     1,
		CreatedAt:   created,
		UpdatedAt:   created,
	}
}

func TestReminder_NudgesUndecidedApproversOnce(t *testing.T) {
	// GIVEN: A request stuck at the HR stage for three days
	// WHEN: The scan runs twice
	// THEN: One nudge naming only the undecided approver; the second scan
	//       finds the request already stamped

	mem := store.NewMemory()
	ctx := context.Background()

	req := pendingRequest("req-stale", 72*time.Hour)
	req.Status = leave.StatusPendingHR
	require.NoError(t, mem.SaveRequest(ctx, req))
	decidedAt := time.Now().Add(-71 * time.Hour)
	require.NoError(t, mem.SaveSteps(ctx, []*leave.ApprovalStep{
		{ID: "step-hr", RequestID: req.ID, Attempt: 1, StepOrder: 2,
			StepType: leave.StepHR, Approver: "hr-1"},
		{ID: "step-mgr", RequestID: req.ID, Attempt: 1, StepOrder: 1,
			StepType: leave.StepManager, Approver: "mgr-1",
			Action: leave.ActionApproved, DecidedAt: &decidedAt},
	}))

	notifier := &captureNotifier{}
	rs := api.NewReminderScheduler(mem, notifier, zap.NewNop(), 48*time.Hour)

	rs.RunNow()

	events := notifier.events()
	require.Len(t, events, 1)
	assert.Equal(t, leave.RequestID("req-stale"), events[0].RequestID)
	assert.Equal(t, []leave.ActorID{"hr-1"}, events[0].Approvers)
	assert.GreaterOrEqual(t, events[0].PendingFor, 71*time.Hour)

	rs.RunNow()
	assert.Len(t, notifier.events(), 1)
}

func TestReminder_SequentialSkipsLaterStages(t *testing.T) {
	// GIVEN: A sequential request stale at the manager stage, HR undecided
	// WHEN: The scan runs
	// THEN: Only the manager is nudged; HR's turn has not come

	mem := store.NewMemory()
	ctx := context.Background()

	req := pendingRequest("req-first-stage", 72*time.Hour)
	require.NoError(t, mem.SaveRequest(ctx, req))
	require.NoError(t, mem.SaveSteps(ctx, []*leave.ApprovalStep{
		{ID: "step-mgr", RequestID: req.ID, Attempt: 1, StepOrder: 1,
			StepType: leave.StepManager, Approver: "mgr-1"},
		{ID: "step-hr", RequestID: req.ID, Attempt: 1, StepOrder: 2,
			StepType: leave.StepHR, Approver: "hr-1"},
	}))

	notifier := &captureNotifier{}
	rs := api.NewReminderScheduler(mem, notifier, zap.NewNop(), 48*time.Hour)

	rs.RunNow()

	events := notifier.events()
	require.Len(t, events, 1)
	assert.Equal(t, []leave.ActorID{"mgr-1"}, events[0].Approvers)
}

func TestReminder_FreshRequestsLeftAlone(t *testing.T) {
	// GIVEN: A request pending for only an hour
	// WHEN: The scan runs with a 48h stale age
	// THEN: No nudge

	mem := store.NewMemory()
	ctx := context.Background()
	req := pendingRequest("req-fresh", time.Hour)
	require.NoError(t, mem.SaveRequest(ctx, req))
	require.NoError(t, mem.SaveSteps(ctx, []*leave.ApprovalStep{
		{ID: "step-1", RequestID: req.ID, Attempt: 1, StepOrder: 1,
			StepType: leave.StepManager, Approver: "mgr-1"},
	}))

	notifier := &captureNotifier{}
	rs := api.NewReminderScheduler(mem, notifier, zap.NewNop(), 48*time.Hour)

	rs.RunNow()

	assert.Empty(t, notifier.events())
}
