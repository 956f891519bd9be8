package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/construxio/sitehub-backend/internal/command"
	"github.com/construxio/sitehub-backend/internal/data/snapshots"
	types "github.com/construxio/sitehub-backend/internal/domain"
	"github.com/construxio/sitehub-backend/internal/platform/apierr"
	"github.com/construxio/sitehub-backend/internal/platform/logger"
	"github.com/construxio/sitehub-backend/internal/snapshot"
)

type SlotInput struct {
	DayCardID uuid.UUID `json:"dayCardId" binding:"required"`
	Date      time.Time `json:"date" binding:"required"`
	Status    string    `json:"status" binding:"required"`
}

type TaskScheduleInput struct {
	TaskID    uuid.UUID   `json:"taskId" binding:"required"`
	ProjectID uuid.UUID   `json:"projectId" binding:"required"`
	Start     *time.Time  `json:"start"`
	End       *time.Time  `json:"end"`
	Slots     []SlotInput `json:"slots"`
}

type TaskScheduleService interface {
	Create(ctx context.Context, in TaskScheduleInput, actor uuid.UUID) (*command.Outcome[types.TaskScheduleSnapshot], error)
	Update(ctx context.Context, id uuid.UUID, in TaskScheduleInput, token string, actor uuid.UUID) (*command.Outcome[types.TaskScheduleSnapshot], error)
	Delete(ctx context.Context, id uuid.UUID, token string, actor uuid.UUID) error
	Get(ctx context.Context, id uuid.UUID) (*types.TaskScheduleSnapshot, string, error)
	GetMany(ctx context.Context, ids []uuid.UUID) ([]types.TaskScheduleSnapshot, error)

	// Shift moves the schedule window and every slot date by a day offset. A
	// schedule holding an approved day card refuses to move.
	Shift(ctx context.Context, id uuid.UUID, days int, actor uuid.UUID) error
}

type taskScheduleService struct {
	db    *gorm.DB
	log   *logger.Logger
	gate  *command.Gate
	store *snapshots.TaskScheduleStore
}

func NewTaskScheduleService(db *gorm.DB, baseLog *logger.Logger, gate *command.Gate, store *snapshots.TaskScheduleStore) TaskScheduleService {
	return &taskScheduleService{
		db:    db,
		log:   baseLog.With("service", "TaskScheduleService"),
		gate:  gate,
		store: store,
	}
}

func slotsFromInput(in []SlotInput) []types.DayCardSlot {
	if len(in) == 0 {
		return nil
	}
	slots := make([]types.DayCardSlot, len(in))
	for i, slot := range in {
		slots[i] = types.DayCardSlot{
			Position:  i,
			DayCardID: slot.DayCardID,
			Date:      slot.Date,
			Status:    slot.Status,
		}
	}
	return slots
}

func (s *taskScheduleService) Create(ctx context.Context, in TaskScheduleInput, actor uuid.UUID) (*command.Outcome[types.TaskScheduleSnapshot], error) {
	id := uuid.New()
	return command.Execute(ctx, s.gate, command.Command[types.TaskScheduleSnapshot]{
		Kind:      types.KindTaskSchedule,
		ID:        id,
		EventName: types.EventCreated,
		Actor:     actor,
		Apply: func(types.TaskScheduleSnapshot) (types.TaskScheduleSnapshot, error) {
			return types.TaskScheduleSnapshot{
				ID:        id,
				TaskID:    in.TaskID,
				ProjectID: in.ProjectID,
				Start:     in.Start,
				End:       in.End,
				Slots:     slotsFromInput(in.Slots),
			}, nil
		},
		Store: s.store.Apply,
	})
}

func (s *taskScheduleService) Update(ctx context.Context, id uuid.UUID, in TaskScheduleInput, token string, actor uuid.UUID) (*command.Outcome[types.TaskScheduleSnapshot], error) {
	return command.Execute(ctx, s.gate, command.Command[types.TaskScheduleSnapshot]{
		Kind:      types.KindTaskSchedule,
		ID:        id,
		EventName: types.EventUpdated,
		Token:     token,
		Actor:     actor,
		Load:      s.load(id),
		Apply: func(current types.TaskScheduleSnapshot) (types.TaskScheduleSnapshot, error) {
			next := current
			next.Start = in.Start
			next.End = in.End
			next.Slots = slotsFromInput(in.Slots)
			for i := range next.Slots {
				next.Slots[i].TaskScheduleID = id
			}
			return next, nil
		},
		Store: s.store.Apply,
	})
}

func (s *taskScheduleService) Delete(ctx context.Context, id uuid.UUID, token string, actor uuid.UUID) error {
	_, err := command.Execute(ctx, s.gate, command.Command[types.TaskScheduleSnapshot]{
		Kind:      types.KindTaskSchedule,
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

func (s *taskScheduleService) Get(ctx context.Context, id uuid.UUID) (*types.TaskScheduleSnapshot, string, error) {
	var row *types.TaskScheduleSnapshot
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

func (s *taskScheduleService) GetMany(ctx context.Context, ids []uuid.UUID) ([]types.TaskScheduleSnapshot, error) {
	var rows []types.TaskScheduleSnapshot
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

func (s *taskScheduleService) Shift(ctx context.Context, id uuid.UUID, days int, actor uuid.UUID) error {
	_, err := command.Execute(ctx, s.gate, command.Command[types.TaskScheduleSnapshot]{
		Kind:      types.KindTaskSchedule,
		ID:        id,
		EventName: types.EventRescheduled,
		Actor:     actor,
		Load:      s.load(id),
		Apply: func(current types.TaskScheduleSnapshot) (types.TaskScheduleSnapshot, error) {
			if current.HasApprovedSlot() {
				return current, apierr.Invalid(fmt.Errorf(
					"schedule %s contains an approved day card", id))
			}
			next := current
			next.Start = shiftDate(current.Start, days)
			next.End = shiftDate(current.End, days)
			next.Slots = make([]types.DayCardSlot, len(current.Slots))
			for i, slot := range current.Slots {
				slot.Date = slot.Date.AddDate(0, 0, days)
				next.Slots[i] = slot
			}
			return next, nil
		},
		Store: s.store.Apply,
	})
	return err
}

func (s *taskScheduleService) load(id uuid.UUID) func(context.Context, *snapshot.UnitOfWork) (*types.TaskScheduleSnapshot, error) {
	return func(ctx context.Context, uow *snapshot.UnitOfWork) (*types.TaskScheduleSnapshot, error) {
		return s.store.FindOrFail(ctx, uow, id)
	}
}

func shiftDate(t *time.Time, days int) *time.Time {
	if t == nil {
		return nil
	}
	shifted := t.AddDate(0, 0, days)
	return &shifted
}
