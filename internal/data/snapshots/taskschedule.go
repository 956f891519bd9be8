package snapshots

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/construxio/sitehub-backend/internal/domain"
	"github.com/construxio/sitehub-backend/internal/eventstream"
	"github.com/construxio/sitehub-backend/internal/observability"
	"github.com/construxio/sitehub-backend/internal/platform/apierr"
	"github.com/construxio/sitehub-backend/internal/platform/logger"
	"github.com/construxio/sitehub-backend/internal/snapshot"
)

// TaskScheduleStore owns the schedule row and its day-card slots. Slots are
// strictly owned children: they are rewritten wholesale with every schedule
// event and removed in the same transaction as the schedule row.
type TaskScheduleStore struct {
	log     *logger.Logger
	metrics *observability.Metrics
}

func NewTaskScheduleStore(baseLog *logger.Logger, metrics *observability.Metrics) *TaskScheduleStore {
	return &TaskScheduleStore{log: baseLog.With("store", "TaskScheduleSnapshotStore"), metrics: metrics}
}

func (s *TaskScheduleStore) Register(d *snapshot.Dispatcher) {
	d.Register(types.KindTaskSchedule,
		[]string{
			types.EventCreated, types.EventUpdated,
			types.EventRescheduled, types.EventDeleted,
		},
		s.Apply)
}

func (s *TaskScheduleStore) loader(tx *gorm.DB) func(uuid.UUID) (*types.TaskScheduleSnapshot, error) {
	return func(id uuid.UUID) (*types.TaskScheduleSnapshot, error) {
		load := firstOrNil[types.TaskScheduleSnapshot](tx)
		row, err := load(id)
		if err != nil || row == nil {
			return row, err
		}
		if err := tx.Order("position").
			Find(&row.Slots, "task_schedule_id = ?", id).Error; err != nil {
			return nil, err
		}
		return row, nil
	}
}

func (s *TaskScheduleStore) FindOrFail(ctx context.Context, uow *snapshot.UnitOfWork, id uuid.UUID) (*types.TaskScheduleSnapshot, error) {
	row, err := uow.Schedules.Get(id, s.loader(uow.Tx.WithContext(ctx)))
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, apierr.NotFound(fmt.Errorf("task schedule %s: %w", id, apierr.ErrNotFound))
	}
	return row, nil
}

// WarmUp bulk-loads the given schedules (with slots) into the unit of work's
// cache in two round trips, ahead of batch operations that would otherwise
// issue one read per target.
func (s *TaskScheduleStore) WarmUp(ctx context.Context, uow *snapshot.UnitOfWork, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	tx := uow.Tx.WithContext(ctx)

	var rows []types.TaskScheduleSnapshot
	if err := tx.Find(&rows, "id IN ?", ids).Error; err != nil {
		return err
	}
	var slots []types.DayCardSlot
	if err := tx.Order("position").
		Find(&slots, "task_schedule_id IN ?", ids).Error; err != nil {
		return err
	}
	bySchedule := map[uuid.UUID][]types.DayCardSlot{}
	for _, slot := range slots {
		bySchedule[slot.TaskScheduleID] = append(bySchedule[slot.TaskScheduleID], slot)
	}
	for i := range rows {
		rows[i].Slots = bySchedule[rows[i].ID]
		uow.Schedules.Put(rows[i].ID, &rows[i])
	}
	return nil
}

// FindAllByIDIn loads the named schedules (with slots) through WarmUp and
// hands the rows back in request order. Unknown identifiers are skipped, not
// an error.
func (s *TaskScheduleStore) FindAllByIDIn(ctx context.Context, uow *snapshot.UnitOfWork, ids []uuid.UUID) ([]types.TaskScheduleSnapshot, error) {
	if err := s.WarmUp(ctx, uow, ids); err != nil {
		return nil, err
	}
	rows := make([]types.TaskScheduleSnapshot, 0, len(ids))
	for _, id := range ids {
		row, err := uow.Schedules.Get(id, func(uuid.UUID) (*types.TaskScheduleSnapshot, error) {
			return nil, nil
		})
		if err != nil {
			return nil, err
		}
		if row != nil {
			rows = append(rows, *row)
		}
	}
	return rows, nil
}

func (s *TaskScheduleStore) Apply(ctx context.Context, uow *snapshot.UnitOfWork, env eventstream.Envelope) error {
	tx := uow.Tx.WithContext(ctx)
	id := env.Key.ID

	current, err := uow.Schedules.Get(id, s.loader(tx))
	if err != nil {
		return err
	}
	if decide(s.log, s.metrics, env, versionOf(current)) != snapshot.Apply {
		return nil
	}

	if env.EventName() == types.EventDeleted {
		if current == nil {
			s.metrics.IncDuplicate(env.Key.Kind)
			return nil
		}
		if err := s.deleteSlots(tx, id); err != nil {
			return err
		}
		if err := tx.Delete(&types.TaskScheduleSnapshot{}, "id = ?", id).Error; err != nil {
			return err
		}
		uow.Schedules.Remove(id)
		return nil
	}

	var doc types.TaskScheduleSnapshot
	if err := env.DecodeAggregate(&doc); err != nil {
		return err
	}
	audit := env.Audit()

	if current == nil {
		row := types.TaskScheduleSnapshot{
			ID:        id,
			Version:   env.Key.Version,
			TaskID:    doc.TaskID,
			ProjectID: doc.ProjectID,
			Start:     doc.Start,
			End:       doc.End,
			Audit:     auditFrom(audit),
		}
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		if err := s.insertSlots(tx, id, doc.Slots); err != nil {
			return err
		}
		uow.Schedules.Remove(id)
		return nil
	}

	res := tx.Model(&types.TaskScheduleSnapshot{}).
		Where("id = ? AND version = ?", id, env.Key.Version-1).
		Updates(map[string]any{
			"version":          env.Key.Version,
			"start":            doc.Start,
			"end":              doc.End,
			"last_modified_by": audit.LastModifiedBy,
			"last_modified_at": audit.LastModifiedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		s.log.Warn("conditional write missed, dropping event", "key", env.Key.String())
		s.metrics.IncStaleEvent(env.Key.Kind)
		uow.Schedules.Remove(id)
		return nil
	}

	// The slot set is only rewritten when the schedule row itself advanced,
	// so a stale event can never resurrect old slots.
	if err := s.deleteSlots(tx, id); err != nil {
		return err
	}
	if err := s.insertSlots(tx, id, doc.Slots); err != nil {
		return err
	}
	uow.Schedules.Remove(id)
	return nil
}

func (s *TaskScheduleStore) deleteSlots(tx *gorm.DB, scheduleID uuid.UUID) error {
	return tx.Delete(&types.DayCardSlot{}, "task_schedule_id = ?", scheduleID).Error
}

func (s *TaskScheduleStore) insertSlots(tx *gorm.DB, scheduleID uuid.UUID, slots []types.DayCardSlot) error {
	if len(slots) == 0 {
		return nil
	}
	rows := make([]types.DayCardSlot, len(slots))
	for i, slot := range slots {
		rows[i] = types.DayCardSlot{
			TaskScheduleID: scheduleID,
			Position:       i,
			DayCardID:      slot.DayCardID,
			Date:           slot.Date,
			Status:         slot.Status,
		}
	}
	return tx.Create(&rows).Error
}
