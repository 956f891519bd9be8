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

type MilestoneStore struct {
	log     *logger.Logger
	metrics *observability.Metrics
}

func NewMilestoneStore(baseLog *logger.Logger, metrics *observability.Metrics) *MilestoneStore {
	return &MilestoneStore{log: baseLog.With("store", "MilestoneSnapshotStore"), metrics: metrics}
}

func (s *MilestoneStore) Register(d *snapshot.Dispatcher) {
	d.Register(types.KindMilestone,
		[]string{
			types.EventCreated, types.EventUpdated,
			types.EventRescheduled, types.EventDeleted,
		},
		s.Apply)
}

func (s *MilestoneStore) FindOrFail(ctx context.Context, uow *snapshot.UnitOfWork, id uuid.UUID) (*types.MilestoneSnapshot, error) {
	row, err := uow.Milestones.Get(id, firstOrNil[types.MilestoneSnapshot](uow.Tx.WithContext(ctx)))
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, apierr.NotFound(fmt.Errorf("milestone %s: %w", id, apierr.ErrNotFound))
	}
	return row, nil
}

// WarmUp seeds the cache for the milestones a batch operation targets.
func (s *MilestoneStore) WarmUp(ctx context.Context, uow *snapshot.UnitOfWork, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	var rows []types.MilestoneSnapshot
	if err := uow.Tx.WithContext(ctx).Find(&rows, "id IN ?", ids).Error; err != nil {
		return err
	}
	for i := range rows {
		uow.Milestones.Put(rows[i].ID, &rows[i])
	}
	return nil
}

// FindAllByIDIn loads the named milestones through WarmUp and hands the rows
// back in request order. Unknown identifiers are skipped, not an error.
func (s *MilestoneStore) FindAllByIDIn(ctx context.Context, uow *snapshot.UnitOfWork, ids []uuid.UUID) ([]types.MilestoneSnapshot, error) {
	if err := s.WarmUp(ctx, uow, ids); err != nil {
		return nil, err
	}
	rows := make([]types.MilestoneSnapshot, 0, len(ids))
	for _, id := range ids {
		row, err := uow.Milestones.Get(id, func(uuid.UUID) (*types.MilestoneSnapshot, error) {
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

func (s *MilestoneStore) Apply(ctx context.Context, uow *snapshot.UnitOfWork, env eventstream.Envelope) error {
	tx := uow.Tx.WithContext(ctx)
	id := env.Key.ID

	current, err := uow.Milestones.Get(id, firstOrNil[types.MilestoneSnapshot](tx))
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
		if err := tx.Delete(&types.MilestoneSnapshot{}, "id = ?", id).Error; err != nil {
			return err
		}
		uow.Milestones.Remove(id)
		return nil
	}

	var doc types.MilestoneSnapshot
	if err := env.DecodeAggregate(&doc); err != nil {
		return err
	}
	audit := env.Audit()

	if current == nil {
		row := types.MilestoneSnapshot{
			ID:        id,
			Version:   env.Key.Version,
			ProjectID: doc.ProjectID,
			Name:      doc.Name,
			Type:      doc.Type,
			Date:      doc.Date,
			Header:    doc.Header,
			Audit:     auditFrom(audit),
		}
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		uow.Milestones.Remove(id)
		return nil
	}

	res := tx.Model(&types.MilestoneSnapshot{}).
		Where("id = ? AND version = ?", id, env.Key.Version-1).
		Updates(map[string]any{
			"version":          env.Key.Version,
			"name":             doc.Name,
			"type":             doc.Type,
			"date":             doc.Date,
			"header":           doc.Header,
			"last_modified_by": audit.LastModifiedBy,
			"last_modified_at": audit.LastModifiedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	uow.Milestones.Remove(id)
	if res.RowsAffected == 0 {
		s.log.Warn("conditional write missed, dropping event", "key", env.Key.String())
		s.metrics.IncStaleEvent(env.Key.Kind)
	}
	return nil
}
