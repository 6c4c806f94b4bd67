/*
reminder.go - Scheduled reminder scan for stale pending requests

PURPOSE:
  Periodically finds requests that have been sitting in a pending status
  longer than the configured age and nudges the approvers whose steps are
  still undecided.

IDEMPOTENCE:
  The store's ClaimForReminder stamps RemindedAt in the same operation
  that selects the eligible rows, so two overlapping scans can never send
  a duplicate nudge for the same request.

SCHEDULING:
  Uses robfig/cron with a standard 5-field cron expression from config.
  RunNow exists for tests and manual triggering.

SEE ALSO:
  - leave/store.go: ClaimForReminder contract
  - leave/events.go: ReminderEvent and Notifier
*/
package api

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/warp/leave-engine/leave"
)

// ReminderScheduler nudges approvers about stale pending requests.
type ReminderScheduler struct {
	store    leave.Store
	notifier leave.Notifier
	logger   *zap.Logger

	staleAge time.Duration
	cron     *cron.Cron
	now      func() time.Time
}

// NewReminderScheduler creates the scheduler. Start must be called to
// activate the cron schedule.
func NewReminderScheduler(store leave.Store, notifier leave.Notifier, logger *zap.Logger, staleAge time.Duration) *ReminderScheduler {
	return &ReminderScheduler{
		store:    store,
		notifier: notifier,
		logger:   logger,
		staleAge: staleAge,
		cron:     cron.New(),
		now:      time.Now,
	}
}

// Start registers the scan under the cron expression and starts the cron
// runner.
func (rs *ReminderScheduler) Start(schedule string) error {
	if _, err := rs.cron.AddFunc(schedule, rs.RunNow); err != nil {
		return err
	}
	rs.cron.Start()
	rs.logger.Info("reminder scheduler started", zap.String("schedule", schedule))
	return nil
}

// Stop halts the cron runner and waits for a running scan to finish.
func (rs *ReminderScheduler) Stop() {
	<-rs.cron.Stop().Done()
	rs.logger.Info("reminder scheduler stopped")
}

// RunNow performs one scan immediately.
func (rs *ReminderScheduler) RunNow() {
	ctx := context.Background()
	now := rs.now()
	cutoff := now.Add(-rs.staleAge)

	claimed, err := rs.store.ClaimForReminder(ctx, cutoff, now)
	if err != nil {
		rs.logger.Error("reminder scan failed", zap.Error(err))
		return
	}
	if len(claimed) == 0 {
		return
	}

	for _, req := range claimed {
		steps, err := rs.store.StepsByRequest(ctx, req.ID, req.Attempt)
		if err != nil {
			rs.logger.Error("failed to load steps for reminder",
				zap.String("request_id", string(req.ID)), zap.Error(err))
			continue
		}

		ev := leave.ReminderEvent{
			RequestID:  req.ID,
			EmployeeID: req.EmployeeID,
			Status:     req.Status,
			Approvers:  actionableApprovers(req, steps),
			PendingFor: now.Sub(req.UpdatedAt),
		}
		if len(ev.Approvers) == 0 {
			continue
		}
		if err := rs.notifier.NotifyReminder(ctx, ev); err != nil {
			rs.logger.Error("reminder notification failed",
				zap.String("request_id", string(req.ID)), zap.Error(err))
		}
	}

	rs.logger.Info("reminder scan complete", zap.Int("claimed", len(claimed)))
}

// actionableApprovers returns the approvers who could decide right now:
// undecided steps of the request's current pending stage, and in sequential
// mode only those whose earlier steps have all been approved.
func actionableApprovers(req *leave.LeaveRequest, steps []*leave.ApprovalStep) []leave.ActorID {
	var approvers []leave.ActorID
	for _, s := range steps {
		if s.Decided() || s.StepType.PendingStatus() != req.Status {
			continue
		}
		if req.Mode == leave.ModeSequential && !earlierStepsCleared(steps, s) {
			continue
		}
		approvers = append(approvers, s.Approver)
	}
	return approvers
}

func earlierStepsCleared(steps []*leave.ApprovalStep, step *leave.ApprovalStep) bool {
	for _, s := range steps {
		if s.StepOrder < step.StepOrder && s.Action != leave.ActionApproved {
			return false
		}
	}
	return true
}
