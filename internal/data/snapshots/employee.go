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

// EmployeeStore replicates the company service's employee stream.
type EmployeeStore struct {
	log     *logger.Logger
	metrics *observability.Metrics
}

func NewEmployeeStore(baseLog *logger.Logger, metrics *observability.Metrics) *EmployeeStore {
	return &EmployeeStore{log: baseLog.With("store", "EmployeeSnapshotStore"), metrics: metrics}
}

func (s *EmployeeStore) Register(d *snapshot.Dispatcher) {
	d.Register(types.KindEmployee,
		[]string{types.EventCreated, types.EventUpdated, types.EventDeleted},
		s.Apply)
}

func (s *EmployeeStore) FindOrFail(ctx context.Context, uow *snapshot.UnitOfWork, id uuid.UUID) (*types.EmployeeSnapshot, error) {
	row, err := uow.Employees.Get(id, firstOrNil[types.EmployeeSnapshot](uow.Tx.WithContext(ctx)))
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, apierr.NotFound(fmt.Errorf("employee %s: %w", id, apierr.ErrNotFound))
	}
	return row, nil
}

func (s *EmployeeStore) Apply(ctx context.Context, uow *snapshot.UnitOfWork, env eventstream.Envelope) error {
	tx := uow.Tx.WithContext(ctx)
	id := env.Key.ID

	current, err := uow.Employees.Get(id, firstOrNil[types.EmployeeSnapshot](tx))
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
		if err := tx.Delete(&types.EmployeeSnapshot{}, "id = ?", id).Error; err != nil {
			return err
		}
		uow.Employees.Remove(id)
		return nil
	}

	var doc types.EmployeeSnapshot
	if err := env.DecodeAggregate(&doc); err != nil {
		return err
	}
	audit := env.Audit()

	if current == nil {
		row := types.EmployeeSnapshot{
			ID:          id,
			Version:     env.Key.Version,
			UserID:      doc.UserID,
			CompanyID:   doc.CompanyID,
			CompanyName: doc.CompanyName,
			Roles:       doc.Roles,
			Audit:       auditFrom(audit),
		}
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		uow.Employees.Remove(id)
		return nil
	}

	res := tx.Model(&types.EmployeeSnapshot{}).
		Where("id = ? AND version = ?", id, env.Key.Version-1).
		Updates(map[string]any{
			"version":          env.Key.Version,
			"user_id":          doc.UserID,
			"company_id":       doc.CompanyID,
			"company_name":     doc.CompanyName,
			"roles":            doc.Roles,
			"last_modified_by": audit.LastModifiedBy,
			"last_modified_at": audit.LastModifiedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	uow.Employees.Remove(id)
	if res.RowsAffected == 0 {
		s.log.Warn("conditional write missed, dropping event", "key", env.Key.String())
		s.metrics.IncStaleEvent(env.Key.Kind)
	}
	return nil
}
