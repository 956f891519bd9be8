package services

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/construxio/sitehub-backend/internal/domain"
	"github.com/construxio/sitehub-backend/internal/platform/logger"
	"github.com/construxio/sitehub-backend/internal/projection"
)

// ParticipantService reads the participant projection. Writes only happen
// through the reconciler on the consumer path.
type ParticipantService interface {
	Get(ctx context.Context, userID uuid.UUID) (*types.ParticipantRow, error)
	GetMany(ctx context.Context, userIDs []uuid.UUID) ([]types.ParticipantRow, error)
}

type participantService struct {
	db        *gorm.DB
	log       *logger.Logger
	projector *projection.ParticipantProjector
}

func NewParticipantService(db *gorm.DB, baseLog *logger.Logger, projector *projection.ParticipantProjector) ParticipantService {
	return &participantService{
		db:        db,
		log:       baseLog.With("service", "ParticipantService"),
		projector: projector,
	}
}

func (s *participantService) Get(ctx context.Context, userID uuid.UUID) (*types.ParticipantRow, error) {
	return s.projector.Find(ctx, s.db, userID)
}

func (s *participantService) GetMany(ctx context.Context, userIDs []uuid.UUID) ([]types.ParticipantRow, error) {
	var rows []types.ParticipantRow
	if len(userIDs) == 0 {
		return rows, nil
	}
	err := s.db.WithContext(ctx).Find(&rows, "user_id IN ?", userIDs).Error
	return rows, err
}
