// Package snapshots contains the per-aggregate snapshot stores. Each store
// materializes one aggregate kind from its event stream: insert on first
// knowledge, version-guarded update on progression, delete on tombstone.
// Applying the same event twice is a no-op because the conditional write's
// WHERE clause no longer matches once the version advanced.
package snapshots

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/construxio/sitehub-backend/internal/domain"
	"github.com/construxio/sitehub-backend/internal/eventstream"
	"github.com/construxio/sitehub-backend/internal/observability"
	"github.com/construxio/sitehub-backend/internal/platform/logger"
	"github.com/construxio/sitehub-backend/internal/snapshot"
)

// decide runs the version gate over the cached row state and logs/counts the
// outcome. The conditional write remains the final authority; this avoids the
// round trip for the common duplicate case.
func decide(log *logger.Logger, metrics *observability.Metrics, env eventstream.Envelope, current *int64) snapshot.Decision {
	d := snapshot.CanApply(current, env.Key.Version)
	switch d {
	case snapshot.Duplicate:
		log.Debug("skipping duplicate event", "key", env.Key.String())
		metrics.IncDuplicate(env.Key.Kind)
	case snapshot.Gap:
		log.Warn("dropping out-of-order event",
			"key", env.Key.String(), "event", env.EventName())
		metrics.IncStaleEvent(env.Key.Kind)
	}
	return d
}

func versionOf[S interface{ AggregateVersion() int64 }](row *S) *int64 {
	if row == nil {
		return nil
	}
	v := (*row).AggregateVersion()
	return &v
}

func firstOrNil[S any](tx *gorm.DB) func(uuid.UUID) (*S, error) {
	return func(id uuid.UUID) (*S, error) {
		var row S
		err := tx.First(&row, "id = ?", id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return &row, nil
	}
}

func auditFrom(doc eventstream.AuditDoc) types.Audit {
	return types.Audit{
		CreatedBy:      doc.CreatedBy,
		CreatedAt:      doc.CreatedAt,
		LastModifiedBy: doc.LastModifiedBy,
		LastModifiedAt: doc.LastModifiedAt,
	}
}
