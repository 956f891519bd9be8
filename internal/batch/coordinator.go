// Package batch orchestrates operations that touch many aggregates. Each
// target is mutated through the normal command path in its own transaction;
// one target failing never aborts the rest. The operation itself is bracketed
// by Started and Finished events on the job stream so its occurrence is
// durably recorded regardless of per-item outcomes.
package batch

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/construxio/sitehub-backend/internal/command"
	"github.com/construxio/sitehub-backend/internal/data/snapshots"
	types "github.com/construxio/sitehub-backend/internal/domain"
	"github.com/construxio/sitehub-backend/internal/eventstream"
	"github.com/construxio/sitehub-backend/internal/observability"
	"github.com/construxio/sitehub-backend/internal/platform/logger"
	"github.com/construxio/sitehub-backend/internal/snapshot"
)

// Shifter moves one aggregate's dates by a day offset. Implemented by the
// schedule and milestone services on top of the command gate.
type Shifter interface {
	Shift(ctx context.Context, id uuid.UUID, days int, actor uuid.UUID) error
}

// ShiftFunc adapts a function to the Shifter interface.
type ShiftFunc func(ctx context.Context, id uuid.UUID, days int, actor uuid.UUID) error

func (f ShiftFunc) Shift(ctx context.Context, id uuid.UUID, days int, actor uuid.UUID) error {
	return f(ctx, id, days, actor)
}

// Operation is one reschedule request: shift the schedules behind the given
// tasks and the given milestones by Days.
type Operation struct {
	ID           uuid.UUID
	ProjectID    uuid.UUID
	Days         int
	TaskIDs      []uuid.UUID
	MilestoneIDs []uuid.UUID
	Actor        uuid.UUID
}

// Result lists per-target outcomes. Schedule failures are keyed by the task
// id the caller named, milestone failures by milestone id.
type Result struct {
	Succeeded []uuid.UUID          `json:"succeeded"`
	Failed    map[uuid.UUID]string `json:"failed"`
}

type jobParameters struct {
	ProjectID    uuid.UUID   `json:"projectId"`
	Days         int         `json:"days"`
	TaskIDs      []uuid.UUID `json:"taskIds,omitempty"`
	MilestoneIDs []uuid.UUID `json:"milestoneIds,omitempty"`
}

type jobOutcome struct {
	jobParameters
	Succeeded []uuid.UUID          `json:"succeeded"`
	Failed    map[uuid.UUID]string `json:"failed"`
}

type RescheduleCoordinator struct {
	db         *gorm.DB
	schedules  *snapshots.TaskScheduleStore
	milestones *snapshots.MilestoneStore
	shiftSched Shifter
	shiftMile  Shifter
	producer   command.Publisher
	log        *logger.Logger
	metrics    *observability.Metrics
}

func NewRescheduleCoordinator(
	db *gorm.DB,
	schedules *snapshots.TaskScheduleStore,
	milestones *snapshots.MilestoneStore,
	shiftSchedule, shiftMilestone Shifter,
	producer command.Publisher,
	baseLog *logger.Logger,
	metrics *observability.Metrics,
) *RescheduleCoordinator {
	return &RescheduleCoordinator{
		db:         db,
		schedules:  schedules,
		milestones: milestones,
		shiftSched: shiftSchedule,
		shiftMile:  shiftMilestone,
		producer:   producer,
		log:        baseLog.With("service", "RescheduleCoordinator"),
		metrics:    metrics,
	}
}

type scheduleTarget struct {
	taskID     uuid.UUID
	scheduleID uuid.UUID
}

// Execute runs the operation. An error is returned only when the Started
// bracket cannot be recorded or the target pre-check cannot read storage;
// individual target failures land in the result instead.
func (c *RescheduleCoordinator) Execute(ctx context.Context, op Operation) (*Result, error) {
	if op.ID == uuid.Nil {
		op.ID = uuid.New()
	}
	params := jobParameters{
		ProjectID:    op.ProjectID,
		Days:         op.Days,
		TaskIDs:      op.TaskIDs,
		MilestoneIDs: op.MilestoneIDs,
	}
	if err := c.bracket(ctx, op, 0, types.EventJobStarted, params); err != nil {
		return nil, err
	}

	result := &Result{Succeeded: []uuid.UUID{}, Failed: map[uuid.UUID]string{}}
	targets, milestoneIDs, err := c.precheck(ctx, op, result)
	if err != nil {
		// The Started bracket is already on the stream; close it with an
		// all-failed outcome so no operation dangles half-recorded.
		for _, id := range op.TaskIDs {
			if _, seen := result.Failed[id]; !seen {
				result.Failed[id] = err.Error()
			}
		}
		for _, id := range op.MilestoneIDs {
			if _, seen := result.Failed[id]; !seen {
				result.Failed[id] = err.Error()
			}
		}
		outcome := jobOutcome{jobParameters: params, Succeeded: result.Succeeded, Failed: result.Failed}
		if berr := c.bracket(context.WithoutCancel(ctx), op, 1, types.EventJobFinished, outcome); berr != nil {
			c.log.Error("job finished event not recorded",
				"operation_id", op.ID.String(), "error", berr)
		}
		return nil, err
	}

	for _, t := range targets {
		if err := c.shiftSched.Shift(ctx, t.scheduleID, op.Days, op.Actor); err != nil {
			c.fail(result, "schedule", t.taskID, err)
			continue
		}
		result.Succeeded = append(result.Succeeded, t.taskID)
		c.metrics.IncBatchItem("schedule", "succeeded")
	}
	for _, id := range milestoneIDs {
		if err := c.shiftMile.Shift(ctx, id, op.Days, op.Actor); err != nil {
			c.fail(result, "milestone", id, err)
			continue
		}
		result.Succeeded = append(result.Succeeded, id)
		c.metrics.IncBatchItem("milestone", "succeeded")
	}

	outcome := jobOutcome{jobParameters: params, Succeeded: result.Succeeded, Failed: result.Failed}
	if err := c.bracket(context.WithoutCancel(ctx), op, 1, types.EventJobFinished, outcome); err != nil {
		// Per-target writes are already durable; only the audit trail is late.
		c.log.Error("job finished event not recorded", "operation_id", op.ID.String(), "error", err)
	}

	c.log.Info("reschedule operation finished",
		"operation_id", op.ID.String(),
		"project_id", op.ProjectID.String(),
		"days", op.Days,
		"succeeded", len(result.Succeeded),
		"failed", len(result.Failed))
	return result, nil
}

// precheck resolves tasks to their schedules and bulk-loads every target in
// two round trips per kind, recording targets that cannot move before any
// mutation starts. The per-target command re-verifies under its own
// transaction; this pass only avoids N sequential reads and obviously doomed
// writes.
func (c *RescheduleCoordinator) precheck(ctx context.Context, op Operation, result *Result) ([]scheduleTarget, []uuid.UUID, error) {
	var targets []scheduleTarget
	var milestoneIDs []uuid.UUID

	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		uow := snapshot.NewUnitOfWork(tx)

		if len(op.TaskIDs) > 0 {
			var rows []types.TaskScheduleSnapshot
			if err := tx.Select("id", "task_id").
				Find(&rows, "task_id IN ?", op.TaskIDs).Error; err != nil {
				return err
			}
			byTask := make(map[uuid.UUID]uuid.UUID, len(rows))
			scheduleIDs := make([]uuid.UUID, 0, len(rows))
			for _, row := range rows {
				byTask[row.TaskID] = row.ID
				scheduleIDs = append(scheduleIDs, row.ID)
			}
			if err := c.schedules.WarmUp(ctx, uow, scheduleIDs); err != nil {
				return err
			}
			for _, taskID := range op.TaskIDs {
				scheduleID, ok := byTask[taskID]
				if !ok {
					c.failReason(result, "schedule", taskID, "task has no schedule")
					continue
				}
				row, err := c.schedules.FindOrFail(ctx, uow, scheduleID)
				if err != nil {
					c.fail(result, "schedule", taskID, err)
					continue
				}
				if row.HasApprovedSlot() {
					c.failReason(result, "schedule", taskID, "schedule contains an approved day card")
					continue
				}
				targets = append(targets, scheduleTarget{taskID: taskID, scheduleID: scheduleID})
			}
		}

		if len(op.MilestoneIDs) > 0 {
			if err := c.milestones.WarmUp(ctx, uow, op.MilestoneIDs); err != nil {
				return err
			}
			for _, id := range op.MilestoneIDs {
				if _, err := c.milestones.FindOrFail(ctx, uow, id); err != nil {
					c.fail(result, "milestone", id, err)
					continue
				}
				milestoneIDs = append(milestoneIDs, id)
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return targets, milestoneIDs, nil
}

func (c *RescheduleCoordinator) bracket(ctx context.Context, op Operation, version int64, name string, payload any) error {
	now := time.Now().UTC()
	env, err := eventstream.New(types.KindJob, op.ID, version, name, payload, eventstream.AuditDoc{
		CreatedBy:      op.Actor,
		CreatedAt:      now,
		LastModifiedBy: op.Actor,
		LastModifiedAt: now,
	})
	if err != nil {
		return err
	}
	return c.producer.Publish(ctx, env)
}

func (c *RescheduleCoordinator) fail(result *Result, operation string, id uuid.UUID, err error) {
	c.failReason(result, operation, id, err.Error())
}

func (c *RescheduleCoordinator) failReason(result *Result, operation string, id uuid.UUID, reason string) {
	result.Failed[id] = reason
	c.metrics.IncBatchItem(operation, "failed")
	c.log.Warn("reschedule target failed", "target_id", id.String(), "reason", reason)
}
