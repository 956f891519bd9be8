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

type ProjectStore struct {
	log     *logger.Logger
	metrics *observability.Metrics
}

func NewProjectStore(baseLog *logger.Logger, metrics *observability.Metrics) *ProjectStore {
	return &ProjectStore{log: baseLog.With("store", "ProjectSnapshotStore"), metrics: metrics}
}

func (s *ProjectStore) Register(d *snapshot.Dispatcher) {
	d.Register(types.KindProject,
		[]string{types.EventCreated, types.EventUpdated, types.EventDeleted},
		s.Apply)
}

func (s *ProjectStore) FindOrFail(ctx context.Context, uow *snapshot.UnitOfWork, id uuid.UUID) (*types.ProjectSnapshot, error) {
	row, err := uow.Projects.Get(id, firstOrNil[types.ProjectSnapshot](uow.Tx.WithContext(ctx)))
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, apierr.NotFound(fmt.Errorf("project %s: %w", id, apierr.ErrNotFound))
	}
	return row, nil
}

// FindAllByIDIn loads the named projects in one read, seeding the unit of
// work's cache. Unknown identifiers are skipped, not an error.
func (s *ProjectStore) FindAllByIDIn(ctx context.Context, uow *snapshot.UnitOfWork, ids []uuid.UUID) ([]types.ProjectSnapshot, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []types.ProjectSnapshot
	if err := uow.Tx.WithContext(ctx).Find(&rows, "id IN ?", ids).Error; err != nil {
		return nil, err
	}
	for i := range rows {
		uow.Projects.Put(rows[i].ID, &rows[i])
	}
	return rows, nil
}

func (s *ProjectStore) Apply(ctx context.Context, uow *snapshot.UnitOfWork, env eventstream.Envelope) error {
	tx := uow.Tx.WithContext(ctx)
	id := env.Key.ID

	current, err := uow.Projects.Get(id, firstOrNil[types.ProjectSnapshot](tx))
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
		if err := tx.Delete(&types.ProjectSnapshot{}, "id = ?", id).Error; err != nil {
			return err
		}
		uow.Projects.Remove(id)
		return nil
	}

	var doc types.ProjectSnapshot
	if err := env.DecodeAggregate(&doc); err != nil {
		return err
	}
	audit := env.Audit()

	if current == nil {
		row := types.ProjectSnapshot{
			ID:          id,
			Version:     env.Key.Version,
			Title:       doc.Title,
			Description: doc.Description,
			Category:    doc.Category,
			Start:       doc.Start,
			End:         doc.End,
			Audit:       auditFrom(audit),
		}
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		uow.Projects.Remove(id)
		return nil
	}

	res := tx.Model(&types.ProjectSnapshot{}).
		Where("id = ? AND version = ?", id, env.Key.Version-1).
		Updates(map[string]any{
			"version":          env.Key.Version,
			"title":            doc.Title,
			"description":      doc.Description,
			"category":         doc.Category,
			"start":            doc.Start,
			"end":              doc.End,
			"last_modified_by": audit.LastModifiedBy,
			"last_modified_at": audit.LastModifiedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	uow.Projects.Remove(id)
	if res.RowsAffected == 0 {
		s.log.Warn("conditional write missed, dropping event", "key", env.Key.String())
		s.metrics.IncStaleEvent(env.Key.Kind)
	}
	return nil
}
