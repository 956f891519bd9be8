package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/construxio/sitehub-backend/internal/command"
	"github.com/construxio/sitehub-backend/internal/data/snapshots"
	types "github.com/construxio/sitehub-backend/internal/domain"
	"github.com/construxio/sitehub-backend/internal/platform/logger"
	"github.com/construxio/sitehub-backend/internal/snapshot"
)

type MilestoneInput struct {
	ProjectID uuid.UUID `json:"projectId" binding:"required"`
	Name      string    `json:"name" binding:"required"`
	Type      string    `json:"type" binding:"required"`
	Date      time.Time `json:"date" binding:"required"`
	Header    bool      `json:"header"`
}

type MilestoneService interface {
	Create(ctx context.Context, in MilestoneInput, actor uuid.UUID) (*command.Outcome[types.MilestoneSnapshot], error)
	Update(ctx context.Context, id uuid.UUID, in MilestoneInput, token string, actor uuid.UUID) (*command.Outcome[types.MilestoneSnapshot], error)
	Delete(ctx context.Context, id uuid.UUID, token string, actor uuid.UUID) error
	Get(ctx context.Context, id uuid.UUID) (*types.MilestoneSnapshot, string, error)
	GetMany(ctx context.Context, ids []uuid.UUID) ([]types.MilestoneSnapshot, error)

	// Shift moves the milestone date by a day offset.
	Shift(ctx context.Context, id uuid.UUID, days int, actor uuid.UUID) error
}

type milestoneService struct {
	db    *gorm.DB
	log   *logger.Logger
	gate  *command.Gate
	store *snapshots.MilestoneStore
}

func NewMilestoneService(db *gorm.DB, baseLog *logger.Logger, gate *command.Gate, store *snapshots.MilestoneStore) MilestoneService {
	return &milestoneService{
		db:    db,
		log:   baseLog.With("service", "MilestoneService"),
		gate:  gate,
		store: store,
	}
}

func (s *milestoneService) Create(ctx context.Context, in MilestoneInput, actor uuid.UUID) (*command.Outcome[types.MilestoneSnapshot], error) {
	id := uuid.New()
	return command.Execute(ctx, s.gate, command.Command[types.MilestoneSnapshot]{
		Kind:      types.KindMilestone,
		ID:        id,
		EventName: types.EventCreated,
		Actor:     actor,
		Apply: func(types.MilestoneSnapshot) (types.MilestoneSnapshot, error) {
			return types.MilestoneSnapshot{
				ID:        id,
				ProjectID: in.ProjectID,
				Name:      in.Name,
				Type:      in.Type,
				Date:      in.Date,
				Header:    in.Header,
			}, nil
		},
		Store: s.store.Apply,
	})
}

func (s *milestoneService) Update(ctx context.Context, id uuid.UUID, in MilestoneInput, token string, actor uuid.UUID) (*command.Outcome[types.MilestoneSnapshot], error) {
	return command.Execute(ctx, s.gate, command.Command[types.MilestoneSnapshot]{
		Kind:      types.KindMilestone,
		ID:        id,
		EventName: types.EventUpdated,
		Token:     token,
		Actor:     actor,
		Load:      s.load(id),
		Apply: func(current types.MilestoneSnapshot) (types.MilestoneSnapshot, error) {
			next := current
			next.Name = in.Name
			next.Type = in.Type
			next.Date = in.Date
			next.Header = in.Header
			return next, nil
		},
		Store: s.store.Apply,
	})
}

func (s *milestoneService) Delete(ctx context.Context, id uuid.UUID, token string, actor uuid.UUID) error {
	_, err := command.Execute(ctx, s.gate, command.Command[types.MilestoneSnapshot]{
		Kind:      types.KindMilestone,
		ID:        id,
		EventName: types.EventDeleted,
		Token:     token,
		Actor:     actor,
		Tombstone: true,
		Load:      s.load(id),
		Store:     s.store.Apply,
	})
	return err
}

func (s *milestoneService) Get(ctx context.Context, id uuid.UUID) (*types.MilestoneSnapshot, string, error) {
	var row *types.MilestoneSnapshot
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		uow := snapshot.NewUnitOfWork(tx)
		found, err := s.store.FindOrFail(ctx, uow, id)
		row = found
		return err
	})
	if err != nil {
		return nil, "", err
	}
	return row, snapshot.ETagOf(row.Version), nil
}

func (s *milestoneService) GetMany(ctx context.Context, ids []uuid.UUID) ([]types.MilestoneSnapshot, error) {
	var rows []types.MilestoneSnapshot
	if len(ids) == 0 {
		return rows, nil
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		rows, err = s.store.FindAllByIDIn(ctx, snapshot.NewUnitOfWork(tx), ids)
		return err
	})
	return rows, err
}

func (s *milestoneService) Shift(ctx context.Context, id uuid.UUID, days int, actor uuid.UUID) error {
	_, err := command.Execute(ctx, s.gate, command.Command[types.MilestoneSnapshot]{
		Kind:      types.KindMilestone,
		ID:        id,
		EventName: types.EventRescheduled,
		Actor:     actor,
		Load:      s.load(id),
		Apply: func(current types.MilestoneSnapshot) (types.MilestoneSnapshot, error) {
			next := current
			next.Date = current.Date.AddDate(0, 0, days)
			return next, nil
		},
		Store: s.store.Apply,
	})
	return err
}

func (s *milestoneService) load(id uuid.UUID) func(context.Context, *snapshot.UnitOfWork) (*types.MilestoneSnapshot, error) {
	return func(ctx context.Context, uow *snapshot.UnitOfWork) (*types.MilestoneSnapshot, error) {
		return s.store.FindOrFail(ctx, uow, id)
	}
}
