// Package projection maintains denormalized read models fed by several
// independent event streams. Unlike the snapshot stores it has no single
// version sequence to guard with; each contributing stream carries its own
// watermark on the row instead.
package projection

import (
	"context"
	"errors"
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

// ParticipantProjector merges the USER and EMPLOYEE streams into one row per
// user. The two streams are partitioned independently, so either side can
// arrive first or late; column-scoped writes plus per-side watermarks keep
// them from trampling each other.
type ParticipantProjector struct {
	log     *logger.Logger
	metrics *observability.Metrics
	ignore  map[uuid.UUID]struct{}
}

func NewParticipantProjector(baseLog *logger.Logger, metrics *observability.Metrics, ignore map[uuid.UUID]struct{}) *ParticipantProjector {
	if ignore == nil {
		ignore = map[uuid.UUID]struct{}{}
	}
	return &ParticipantProjector{
		log:     baseLog.With("service", "ParticipantProjector"),
		metrics: metrics,
		ignore:  ignore,
	}
}

func (p *ParticipantProjector) Register(d *snapshot.Dispatcher) {
	d.Register(types.KindUser,
		[]string{types.EventCreated, types.EventUpdated, types.EventDeleted},
		p.ApplyUser)
	d.Register(types.KindEmployee,
		[]string{types.EventCreated, types.EventUpdated, types.EventDeleted},
		p.ApplyEmployee)
}

// Find returns the projection row for a user.
func (p *ParticipantProjector) Find(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*types.ParticipantRow, error) {
	row, err := p.findByUser(tx.WithContext(ctx), userID)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, apierr.NotFound(fmt.Errorf("participant %s: %w", userID, apierr.ErrNotFound))
	}
	return row, nil
}

func (p *ParticipantProjector) ApplyUser(ctx context.Context, uow *snapshot.UnitOfWork, env eventstream.Envelope) error {
	userID := env.Key.ID
	if p.ignored(userID) {
		return nil
	}
	tx := uow.Tx.WithContext(ctx)

	row, err := p.findByUser(tx, userID)
	if err != nil {
		return err
	}

	if env.EventName() == types.EventDeleted {
		if row == nil {
			return nil
		}
		row.DisplayName = ""
		row.Email = ""
		row.Locale = ""
		row.UserEventAt = nil
		if row.Empty() {
			return tx.Delete(&types.ParticipantRow{}, "user_id = ?", userID).Error
		}
		return tx.Model(row).Updates(map[string]any{
			"display_name":  "",
			"email":         "",
			"locale":        "",
			"user_event_at": nil,
		}).Error
	}

	var doc types.UserSnapshot
	if err := env.DecodeAggregate(&doc); err != nil {
		return err
	}
	eventAt := env.Audit().LastModifiedAt

	if row == nil {
		return tx.Create(&types.ParticipantRow{
			UserID:      userID,
			DisplayName: DisplayName(doc.FirstName, doc.LastName),
			Email:       doc.Email,
			Locale:      doc.Locale,
			UserEventAt: &eventAt,
		}).Error
	}

	if !ShouldApply(row.UserEventAt, eventAt) {
		p.log.Debug("user fact not newer than row, skipping",
			"user_id", userID.String(), "event", env.EventName())
		return nil
	}
	return tx.Model(row).Updates(map[string]any{
		"display_name":  DisplayName(doc.FirstName, doc.LastName),
		"email":         doc.Email,
		"locale":        doc.Locale,
		"user_event_at": eventAt,
	}).Error
}

func (p *ParticipantProjector) ApplyEmployee(ctx context.Context, uow *snapshot.UnitOfWork, env eventstream.Envelope) error {
	tx := uow.Tx.WithContext(ctx)

	if env.EventName() == types.EventDeleted {
		// Tombstones carry no payload; the row is found through the
		// employee id recorded when the employee side was applied.
		row, err := p.findByEmployee(tx, env.Key.ID)
		if err != nil || row == nil {
			return err
		}
		row.EmployeeID = nil
		row.CompanyID = nil
		row.CompanyName = ""
		row.Roles = nil
		row.EmployeeEventAt = nil
		if row.Empty() {
			return tx.Delete(&types.ParticipantRow{}, "user_id = ?", row.UserID).Error
		}
		return tx.Model(row).Updates(map[string]any{
			"employee_id":       nil,
			"company_id":        nil,
			"company_name":      "",
			"roles":             nil,
			"employee_event_at": nil,
		}).Error
	}

	var doc types.EmployeeSnapshot
	if err := env.DecodeAggregate(&doc); err != nil {
		return err
	}
	if p.ignored(doc.UserID) {
		return nil
	}
	eventAt := env.Audit().LastModifiedAt

	row, err := p.findByUser(tx, doc.UserID)
	if err != nil {
		return err
	}
	if row == nil {
		employeeID := env.Key.ID
		return tx.Create(&types.ParticipantRow{
			UserID:          doc.UserID,
			EmployeeID:      &employeeID,
			CompanyID:       &doc.CompanyID,
			CompanyName:     doc.CompanyName,
			Roles:           doc.Roles,
			EmployeeEventAt: &eventAt,
		}).Error
	}

	if !ShouldApply(row.EmployeeEventAt, eventAt) {
		p.log.Debug("employee fact not newer than row, skipping",
			"user_id", doc.UserID.String(), "event", env.EventName())
		return nil
	}
	return tx.Model(row).Updates(map[string]any{
		"employee_id":       env.Key.ID,
		"company_id":        doc.CompanyID,
		"company_name":      doc.CompanyName,
		"roles":             doc.Roles,
		"employee_event_at": eventAt,
	}).Error
}

func (p *ParticipantProjector) ignored(userID uuid.UUID) bool {
	if _, ok := p.ignore[userID]; ok {
		p.log.Debug("identifier on ignore list, dropping event", "user_id", userID.String())
		return true
	}
	return false
}

func (p *ParticipantProjector) findByUser(tx *gorm.DB, userID uuid.UUID) (*types.ParticipantRow, error) {
	var row types.ParticipantRow
	err := tx.First(&row, "user_id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (p *ParticipantProjector) findByEmployee(tx *gorm.DB, employeeID uuid.UUID) (*types.ParticipantRow, error) {
	var row types.ParticipantRow
	err := tx.First(&row, "employee_id = ?", employeeID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}
