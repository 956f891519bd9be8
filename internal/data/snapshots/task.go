package snapshots

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	types "github.com/construxio/sitehub-backend/internal/domain"
	"github.com/construxio/sitehub-backend/internal/eventstream"
	"github.com/construxio/sitehub-backend/internal/observability"
	"github.com/construxio/sitehub-backend/internal/platform/apierr"
	"github.com/construxio/sitehub-backend/internal/platform/logger"
	"github.com/construxio/sitehub-backend/internal/snapshot"
)

type TaskStore struct {
	log     *logger.Logger
	metrics *observability.Metrics
}

func NewTaskStore(baseLog *logger.Logger, metrics *observability.Metrics) *TaskStore {
	return &TaskStore{log: baseLog.With("store", "TaskSnapshotStore"), metrics: metrics}
}

func (s *TaskStore) Register(d *snapshot.Dispatcher) {
	d.Register(types.KindTask,
		[]string{
			types.EventCreated, types.EventUpdated, types.EventDeleted,
			types.EventTaskSent, types.EventTaskStarted,
			types.EventTaskClosed, types.EventTaskAccepted,
		},
		s.Apply)
}

func (s *TaskStore) FindOrFail(ctx context.Context, uow *snapshot.UnitOfWork, id uuid.UUID) (*types.TaskSnapshot, error) {
	row, err := uow.Tasks.Get(id, firstOrNil[types.TaskSnapshot](uow.Tx.WithContext(ctx)))
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, apierr.NotFound(fmt.Errorf("task %s: %w", id, apierr.ErrNotFound))
	}
	return row, nil
}

// FindAllByIDIn loads the named tasks in one read, seeding the unit of work's
// cache. Unknown identifiers are skipped, not an error.
func (s *TaskStore) FindAllByIDIn(ctx context.Context, uow *snapshot.UnitOfWork, ids []uuid.UUID) ([]types.TaskSnapshot, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []types.TaskSnapshot
	if err := uow.Tx.WithContext(ctx).Find(&rows, "id IN ?", ids).Error; err != nil {
		return nil, err
	}
	for i := range rows {
		uow.Tasks.Put(rows[i].ID, &rows[i])
	}
	return rows, nil
}

// Status transition events (SENT, STARTED, ...) carry the full aggregate
// state just like UPDATED, so every non-delete event flows through the same
// write path.
func (s *TaskStore) Apply(ctx context.Context, uow *snapshot.UnitOfWork, env eventstream.Envelope) error {
	tx := uow.Tx.WithContext(ctx)
	id := env.Key.ID

	current, err := uow.Tasks.Get(id, firstOrNil[types.TaskSnapshot](tx))
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
		// The schedule is a separate aggregate with its own tombstone; only
		// the task row itself goes here.
		if err := tx.Delete(&types.TaskSnapshot{}, "id = ?", id).Error; err != nil {
			return err
		}
		uow.Tasks.Remove(id)
		return nil
	}

	var doc types.TaskSnapshot
	if err := env.DecodeAggregate(&doc); err != nil {
		return err
	}
	audit := env.Audit()

	if current == nil {
		row := types.TaskSnapshot{
			ID:                    id,
			Version:               env.Key.Version,
			ProjectID:             doc.ProjectID,
			Name:                  doc.Name,
			Status:                doc.Status,
			Craft:                 doc.Craft,
			WorkArea:              doc.WorkArea,
			AssigneeParticipantID: doc.AssigneeParticipantID,
			Audit:                 auditFrom(audit),
		}
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		uow.Tasks.Remove(id)
		return nil
	}

	res := tx.Model(&types.TaskSnapshot{}).
		Where("id = ? AND version = ?", id, env.Key.Version-1).
		Updates(map[string]any{
			"version":                 env.Key.Version,
			"name":                    doc.Name,
			"status":                  doc.Status,
			"craft":                   doc.Craft,
			"work_area":               doc.WorkArea,
			"assignee_participant_id": doc.AssigneeParticipantID,
			"last_modified_by":        audit.LastModifiedBy,
			"last_modified_at":        audit.LastModifiedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	uow.Tasks.Remove(id)
	if res.RowsAffected == 0 {
		s.log.Warn("conditional write missed, dropping event", "key", env.Key.String())
		s.metrics.IncStaleEvent(env.Key.Kind)
	}
	return nil
}
