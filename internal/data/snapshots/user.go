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

// UserStore replicates the user service's stream. Read-only from this
// service's point of view: no command handler writes users.
type UserStore struct {
	log     *logger.Logger
	metrics *observability.Metrics
}

func NewUserStore(baseLog *logger.Logger, metrics *observability.Metrics) *UserStore {
	return &UserStore{log: baseLog.With("store", "UserSnapshotStore"), metrics: metrics}
}

func (s *UserStore) Register(d *snapshot.Dispatcher) {
	d.Register(types.KindUser,
		[]string{types.EventCreated, types.EventUpdated, types.EventDeleted},
		s.Apply)
}

func (s *UserStore) FindOrFail(ctx context.Context, uow *snapshot.UnitOfWork, id uuid.UUID) (*types.UserSnapshot, error) {
	row, err := uow.Users.Get(id, firstOrNil[types.UserSnapshot](uow.Tx.WithContext(ctx)))
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, apierr.NotFound(fmt.Errorf("user %s: %w", id, apierr.ErrNotFound))
	}
	return row, nil
}

func (s *UserStore) Apply(ctx context.Context, uow *snapshot.UnitOfWork, env eventstream.Envelope) error {
	tx := uow.Tx.WithContext(ctx)
	id := env.Key.ID

	current, err := uow.Users.Get(id, firstOrNil[types.UserSnapshot](tx))
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
		if err := tx.Delete(&types.UserSnapshot{}, "id = ?", id).Error; err != nil {
			return err
		}
		uow.Users.Remove(id)
		return nil
	}

	var doc types.UserSnapshot
	if err := env.DecodeAggregate(&doc); err != nil {
		return err
	}
	audit := env.Audit()

	if current == nil {
		row := types.UserSnapshot{
			ID:         id,
			Version:    env.Key.Version,
			ExternalID: doc.ExternalID,
			FirstName:  doc.FirstName,
			LastName:   doc.LastName,
			Email:      doc.Email,
			Locale:     doc.Locale,
			Audit:      auditFrom(audit),
		}
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		uow.Users.Remove(id)
		return nil
	}

	res := tx.Model(&types.UserSnapshot{}).
		Where("id = ? AND version = ?", id, env.Key.Version-1).
		Updates(map[string]any{
			"version":          env.Key.Version,
			"external_id":      doc.ExternalID,
			"first_name":       doc.FirstName,
			"last_name":        doc.LastName,
			"email":            doc.Email,
			"locale":           doc.Locale,
			"last_modified_by": audit.LastModifiedBy,
			"last_modified_at": audit.LastModifiedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	uow.Users.Remove(id)
	if res.RowsAffected == 0 {
		s.log.Warn("conditional write missed, dropping event", "key", env.Key.String())
		s.metrics.IncStaleEvent(env.Key.Kind)
	}
	return nil
}
