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

type ProjectInput struct {
	Title       string     `json:"title" binding:"required"`
	Description string     `json:"description"`
	Category    string     `json:"category"`
	Start       *time.Time `json:"start"`
	End         *time.Time `json:"end"`
}

type ProjectService interface {
	Create(ctx context.Context, in ProjectInput, actor uuid.UUID) (*command.Outcome[types.ProjectSnapshot], error)
	Update(ctx context.Context, id uuid.UUID, in ProjectInput, token string, actor uuid.UUID) (*command.Outcome[types.ProjectSnapshot], error)
	Delete(ctx context.Context, id uuid.UUID, token string, actor uuid.UUID) error
	Get(ctx context.Context, id uuid.UUID) (*types.ProjectSnapshot, string, error)
	GetMany(ctx context.Context, ids []uuid.UUID) ([]types.ProjectSnapshot, error)
}

type projectService struct {
	db    *gorm.DB
	log   *logger.Logger
	gate  *command.Gate
	store *snapshots.ProjectStore
}

func NewProjectService(db *gorm.DB, baseLog *logger.Logger, gate *command.Gate, store *snapshots.ProjectStore) ProjectService {
	return &projectService{
		db:    db,
		log:   baseLog.With("service", "ProjectService"),
		gate:  gate,
		store: store,
	}
}

func (s *projectService) Create(ctx context.Context, in ProjectInput, actor uuid.UUID) (*command.Outcome[types.ProjectSnapshot], error) {
	id := uuid.New()
	return command.Execute(ctx, s.gate, command.Command[types.ProjectSnapshot]{
		Kind:      types.KindProject,
		ID:        id,
		EventName: types.EventCreated,
		Actor:     actor,
		Apply: func(types.ProjectSnapshot) (types.ProjectSnapshot, error) {
			return types.ProjectSnapshot{
				ID:          id,
				Title:       in.Title,
				Description: in.Description,
				Category:    in.Category,
				Start:       in.Start,
				End:         in.End,
			}, nil
		},
		Store: s.store.Apply,
	})
}

func (s *projectService) Update(ctx context.Context, id uuid.UUID, in ProjectInput, token string, actor uuid.UUID) (*command.Outcome[types.ProjectSnapshot], error) {
	return command.Execute(ctx, s.gate, command.Command[types.ProjectSnapshot]{
		Kind:      types.KindProject,
		ID:        id,
		EventName: types.EventUpdated,
		Token:     token,
		Actor:     actor,
		Load: func(ctx context.Context, uow *snapshot.UnitOfWork) (*types.ProjectSnapshot, error) {
			return s.store.FindOrFail(ctx, uow, id)
		},
		Apply: func(current types.ProjectSnapshot) (types.ProjectSnapshot, error) {
			next := current
			next.Title = in.Title
			next.Description = in.Description
			next.Category = in.Category
			next.Start = in.Start
			next.End = in.End
			return next, nil
		},
		Store: s.store.Apply,
	})
}

func (s *projectService) Delete(ctx context.Context, id uuid.UUID, token string, actor uuid.UUID) error {
	_, err := command.Execute(ctx, s.gate, command.Command[types.ProjectSnapshot]{
		Kind:      types.KindProject,
		ID:        id,
		EventName: types.EventDeleted,
		Token:     token,
		Actor:     actor,
		Tombstone: true,
		Load: func(ctx context.Context, uow *snapshot.UnitOfWork) (*types.ProjectSnapshot, error) {
			return s.store.FindOrFail(ctx, uow, id)
		},
		Store: s.store.Apply,
	})
	return err
}

func (s *projectService) Get(ctx context.Context, id uuid.UUID) (*types.ProjectSnapshot, string, error) {
	var row *types.ProjectSnapshot
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

func (s *projectService) GetMany(ctx context.Context, ids []uuid.UUID) ([]types.ProjectSnapshot, error) {
	var rows []types.ProjectSnapshot
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
