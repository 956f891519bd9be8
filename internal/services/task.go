package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/construxio/sitehub-backend/internal/command"
	"github.com/construxio/sitehub-backend/internal/data/snapshots"
	types "github.com/construxio/sitehub-backend/internal/domain"
	"github.com/construxio/sitehub-backend/internal/platform/apierr"
	"github.com/construxio/sitehub-backend/internal/platform/logger"
	"github.com/construxio/sitehub-backend/internal/snapshot"
)

type TaskInput struct {
	ProjectID             uuid.UUID  `json:"projectId" binding:"required"`
	Name                  string     `json:"name" binding:"required"`
	Craft                 string     `json:"craft"`
	WorkArea              string     `json:"workArea"`
	AssigneeParticipantID *uuid.UUID `json:"assigneeParticipantId"`
}

type TaskService interface {
	Create(ctx context.Context, in TaskInput, actor uuid.UUID) (*command.Outcome[types.TaskSnapshot], error)
	Update(ctx context.Context, id uuid.UUID, in TaskInput, token string, actor uuid.UUID) (*command.Outcome[types.TaskSnapshot], error)
	Delete(ctx context.Context, id uuid.UUID, token string, actor uuid.UUID) error
	Get(ctx context.Context, id uuid.UUID) (*types.TaskSnapshot, string, error)
	GetMany(ctx context.Context, ids []uuid.UUID) ([]types.TaskSnapshot, error)

	Send(ctx context.Context, id uuid.UUID, token string, actor uuid.UUID) (*command.Outcome[types.TaskSnapshot], error)
	Start(ctx context.Context, id uuid.UUID, token string, actor uuid.UUID) (*command.Outcome[types.TaskSnapshot], error)
	Close(ctx context.Context, id uuid.UUID, token string, actor uuid.UUID) (*command.Outcome[types.TaskSnapshot], error)
	Accept(ctx context.Context, id uuid.UUID, token string, actor uuid.UUID) (*command.Outcome[types.TaskSnapshot], error)
}

type taskService struct {
	db    *gorm.DB
	log   *logger.Logger
	gate  *command.Gate
	store *snapshots.TaskStore
}

func NewTaskService(db *gorm.DB, baseLog *logger.Logger, gate *command.Gate, store *snapshots.TaskStore) TaskService {
	return &taskService{
		db:    db,
		log:   baseLog.With("service", "TaskService"),
		gate:  gate,
		store: store,
	}
}

func (s *taskService) Create(ctx context.Context, in TaskInput, actor uuid.UUID) (*command.Outcome[types.TaskSnapshot], error) {
	id := uuid.New()
	return command.Execute(ctx, s.gate, command.Command[types.TaskSnapshot]{
		Kind:      types.KindTask,
		ID:        id,
		EventName: types.EventCreated,
		Actor:     actor,
		Apply: func(types.TaskSnapshot) (types.TaskSnapshot, error) {
			return types.TaskSnapshot{
				ID:                    id,
				ProjectID:             in.ProjectID,
				Name:                  in.Name,
				Status:                types.TaskStatusDraft,
				Craft:                 in.Craft,
				WorkArea:              in.WorkArea,
				AssigneeParticipantID: in.AssigneeParticipantID,
			}, nil
		},
		Store: s.store.Apply,
	})
}

func (s *taskService) Update(ctx context.Context, id uuid.UUID, in TaskInput, token string, actor uuid.UUID) (*command.Outcome[types.TaskSnapshot], error) {
	return command.Execute(ctx, s.gate, command.Command[types.TaskSnapshot]{
		Kind:      types.KindTask,
		ID:        id,
		EventName: types.EventUpdated,
		Token:     token,
		Actor:     actor,
		Load:      s.load(id),
		Apply: func(current types.TaskSnapshot) (types.TaskSnapshot, error) {
			next := current
			next.Name = in.Name
			next.Craft = in.Craft
			next.WorkArea = in.WorkArea
			next.AssigneeParticipantID = in.AssigneeParticipantID
			return next, nil
		},
		Store: s.store.Apply,
	})
}

func (s *taskService) Delete(ctx context.Context, id uuid.UUID, token string, actor uuid.UUID) error {
	_, err := command.Execute(ctx, s.gate, command.Command[types.TaskSnapshot]{
		Kind:      types.KindTask,
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

func (s *taskService) Get(ctx context.Context, id uuid.UUID) (*types.TaskSnapshot, string, error) {
	var row *types.TaskSnapshot
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

func (s *taskService) GetMany(ctx context.Context, ids []uuid.UUID) ([]types.TaskSnapshot, error) {
	var rows []types.TaskSnapshot
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

func (s *taskService) Send(ctx context.Context, id uuid.UUID, token string, actor uuid.UUID) (*command.Outcome[types.TaskSnapshot], error) {
	return s.transition(ctx, id, token, actor, types.EventTaskSent, types.TaskStatusOpen, types.TaskStatusDraft)
}

func (s *taskService) Start(ctx context.Context, id uuid.UUID, token string, actor uuid.UUID) (*command.Outcome[types.TaskSnapshot], error) {
	return s.transition(ctx, id, token, actor, types.EventTaskStarted, types.TaskStatusStarted, types.TaskStatusOpen)
}

func (s *taskService) Close(ctx context.Context, id uuid.UUID, token string, actor uuid.UUID) (*command.Outcome[types.TaskSnapshot], error) {
	return s.transition(ctx, id, token, actor, types.EventTaskClosed, types.TaskStatusClosed, types.TaskStatusOpen, types.TaskStatusStarted)
}

func (s *taskService) Accept(ctx context.Context, id uuid.UUID, token string, actor uuid.UUID) (*command.Outcome[types.TaskSnapshot], error) {
	return s.transition(ctx, id, token, actor, types.EventTaskAccepted, types.TaskStatusAccepted, types.TaskStatusClosed)
}

func (s *taskService) transition(ctx context.Context, id uuid.UUID, token string, actor uuid.UUID, event, to string, from ...string) (*command.Outcome[types.TaskSnapshot], error) {
	return command.Execute(ctx, s.gate, command.Command[types.TaskSnapshot]{
		Kind:      types.KindTask,
		ID:        id,
		EventName: event,
		Token:     token,
		Actor:     actor,
		Load:      s.load(id),
		Apply: func(current types.TaskSnapshot) (types.TaskSnapshot, error) {
			allowed := false
			for _, status := range from {
				if current.Status == status {
					allowed = true
					break
				}
			}
			if !allowed {
				return current, apierr.Invalid(fmt.Errorf(
					"task %s cannot move from %s to %s", id, current.Status, to))
			}
			next := current
			next.Status = to
			return next, nil
		},
		Store: s.store.Apply,
	})
}

func (s *taskService) load(id uuid.UUID) func(context.Context, *snapshot.UnitOfWork) (*types.TaskSnapshot, error) {
	return func(ctx context.Context, uow *snapshot.UnitOfWork) (*types.TaskSnapshot, error) {
		return s.store.FindOrFail(ctx, uow, id)
	}
}
