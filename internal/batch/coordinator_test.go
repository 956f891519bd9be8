package batch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/construxio/sitehub-backend/internal/data/snapshots"
	"github.com/construxio/sitehub-backend/internal/data/testutil"
	types "github.com/construxio/sitehub-backend/internal/domain"
	"github.com/construxio/sitehub-backend/internal/eventstream"
	"github.com/construxio/sitehub-backend/internal/observability"
	"github.com/construxio/sitehub-backend/internal/snapshot"
)

type capturingPublisher struct {
	published []eventstream.Envelope
}

func (p *capturingPublisher) Publish(_ context.Context, envs ...eventstream.Envelope) error {
	p.published = append(p.published, envs...)
	return nil
}

type recordingShifter struct {
	calls  []uuid.UUID
	failOn map[uuid.UUID]error
}

func (s *recordingShifter) Shift(_ context.Context, id uuid.UUID, _ int, _ uuid.UUID) error {
	s.calls = append(s.calls, id)
	if err, ok := s.failOn[id]; ok {
		return err
	}
	return nil
}

func seedSchedule(t *testing.T, uow *snapshot.UnitOfWork, store *snapshots.TaskScheduleStore, taskID uuid.UUID, status string) uuid.UUID {
	t.Helper()
	id := uuid.New()
	env, err := eventstream.New(types.KindTaskSchedule, id, 0, types.EventCreated, types.TaskScheduleSnapshot{
		TaskID:    taskID,
		ProjectID: uuid.New(),
		Slots: []types.DayCardSlot{{
			DayCardID: uuid.New(),
			Date:      time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
			Status:    status,
		}},
	}, eventstream.AuditDoc{
		CreatedBy: taskID, CreatedAt: time.Now().UTC(),
		LastModifiedBy: taskID, LastModifiedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("build schedule envelope: %v", err)
	}
	if err := store.Apply(context.Background(), uow, env); err != nil {
		t.Fatalf("seed schedule: %v", err)
	}
	return id
}

// Three targets, one in a disallowed state: the other two still go through
// and the operation finishes with a partial result.
func TestRescheduleCoordinatorPartialFailure(t *testing.T) {
	db := testutil.DB(t)
	log := testutil.Logger(t)
	metrics := observability.Init()
	scheduleStore := snapshots.NewTaskScheduleStore(log, metrics)
	milestoneStore := snapshots.NewMilestoneStore(log, metrics)

	taskA := uuid.New()
	taskB := uuid.New()
	taskPinned := uuid.New()

	uow := snapshot.NewUnitOfWork(db)
	schedA := seedSchedule(t, uow, scheduleStore, taskA, types.DayCardStatusOpen)
	schedB := seedSchedule(t, uow, scheduleStore, taskB, types.DayCardStatusOpen)
	schedPinned := seedSchedule(t, uow, scheduleStore, taskPinned, types.DayCardStatusApproved)
	t.Cleanup(func() {
		for _, id := range []uuid.UUID{schedA, schedB, schedPinned} {
			db.Delete(&types.DayCardSlot{}, "task_schedule_id = ?", id)
			db.Delete(&types.TaskScheduleSnapshot{}, "id = ?", id)
		}
	})

	pub := &capturingPublisher{}
	shifter := &recordingShifter{failOn: map[uuid.UUID]error{}}
	milestoneShifter := &recordingShifter{failOn: map[uuid.UUID]error{}}
	c := NewRescheduleCoordinator(db, scheduleStore, milestoneStore, shifter, milestoneShifter, pub, log, metrics)

	result, err := c.Execute(context.Background(), Operation{
		ProjectID: uuid.New(),
		Days:      5,
		TaskIDs:   []uuid.UUID{taskA, taskPinned, taskB},
		Actor:     uuid.New(),
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	if len(result.Succeeded) != 2 {
		t.Fatalf("succeeded %v, want tasks A and B", result.Succeeded)
	}
	if _, ok := result.Failed[taskPinned]; !ok {
		t.Fatalf("pinned task missing from failures: %+v", result.Failed)
	}
	if len(shifter.calls) != 2 {
		t.Fatalf("shifter ran for %v, the pinned schedule must not move", shifter.calls)
	}
	for _, id := range shifter.calls {
		if id == schedPinned {
			t.Fatal("pinned schedule was shifted")
		}
	}

	// The operation is bracketed by STARTED and FINISHED regardless of the
	// partial failure.
	if len(pub.published) != 2 {
		t.Fatalf("published %d job events, want 2", len(pub.published))
	}
	if pub.published[0].EventName() != types.EventJobStarted || pub.published[0].Key.Kind != types.KindJob {
		t.Fatalf("first event %+v", pub.published[0].Key)
	}
	if pub.published[1].EventName() != types.EventJobFinished {
		t.Fatalf("second event %+v", pub.published[1].Key)
	}
	var outcome struct {
		Succeeded []uuid.UUID          `json:"succeeded"`
		Failed    map[uuid.UUID]string `json:"failed"`
	}
	if err := pub.published[1].DecodeAggregate(&outcome); err != nil {
		t.Fatalf("decode finished payload: %v", err)
	}
	if len(outcome.Succeeded) != 2 || len(outcome.Failed) != 1 {
		t.Fatalf("finished payload %+v", outcome)
	}
}

func TestRescheduleCoordinatorUnknownTargets(t *testing.T) {
	db := testutil.DB(t)
	log := testutil.Logger(t)
	metrics := observability.Init()
	scheduleStore := snapshots.NewTaskScheduleStore(log, metrics)
	milestoneStore := snapshots.NewMilestoneStore(log, metrics)

	pub := &capturingPublisher{}
	shifter := &recordingShifter{}
	c := NewRescheduleCoordinator(db, scheduleStore, milestoneStore, shifter, shifter, pub, log, metrics)

	ghostTask := uuid.New()
	ghostMilestone := uuid.New()
	result, err := c.Execute(context.Background(), Operation{
		ProjectID:    uuid.New(),
		Days:         1,
		TaskIDs:      []uuid.UUID{ghostTask},
		MilestoneIDs: []uuid.UUID{ghostMilestone},
		Actor:        uuid.New(),
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if len(result.Succeeded) != 0 || len(result.Failed) != 2 {
		t.Fatalf("result %+v", result)
	}
	if len(shifter.calls) != 0 {
		t.Fatalf("shifter ran for unknown targets: %v", shifter.calls)
	}
}

// A storage failure between the brackets still closes the operation: the
// Finished event carries an all-failed outcome instead of leaving Started
// dangling on the job stream.
func TestRescheduleCoordinatorFailedPrecheckClosesBracket(t *testing.T) {
	db := testutil.DB(t)
	log := testutil.Logger(t)
	metrics := observability.Init()
	scheduleStore := snapshots.NewTaskScheduleStore(log, metrics)
	milestoneStore := snapshots.NewMilestoneStore(log, metrics)

	pub := &capturingPublisher{}
	shifter := &recordingShifter{}
	c := NewRescheduleCoordinator(db, scheduleStore, milestoneStore, shifter, shifter, pub, log, metrics)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	taskID := uuid.New()
	_, err := c.Execute(ctx, Operation{
		ProjectID: uuid.New(),
		Days:      2,
		TaskIDs:   []uuid.UUID{taskID},
		Actor:     uuid.New(),
	})
	if err == nil {
		t.Fatal("execute succeeded with a dead transaction")
	}
	if len(shifter.calls) != 0 {
		t.Fatalf("shifter ran: %v", shifter.calls)
	}
	if len(pub.published) != 2 {
		t.Fatalf("published %d job events, want Started and Finished", len(pub.published))
	}
	if pub.published[1].EventName() != types.EventJobFinished {
		t.Fatalf("second event %+v", pub.published[1].Key)
	}
	var outcome struct {
		Succeeded []uuid.UUID          `json:"succeeded"`
		Failed    map[uuid.UUID]string `json:"failed"`
	}
	if err := pub.published[1].DecodeAggregate(&outcome); err != nil {
		t.Fatalf("decode finished payload: %v", err)
	}
	if len(outcome.Succeeded) != 0 {
		t.Fatalf("succeeded %v, want none", outcome.Succeeded)
	}
	if _, ok := outcome.Failed[taskID]; !ok {
		t.Fatalf("task missing from failures: %+v", outcome.Failed)
	}
}

func TestShiftFuncAdapter(t *testing.T) {
	want := errors.New("nope")
	var got uuid.UUID
	fn := ShiftFunc(func(_ context.Context, id uuid.UUID, days int, _ uuid.UUID) error {
		got = id
		if days != 3 {
			t.Fatalf("days = %d, want 3", days)
		}
		return want
	})
	id := uuid.New()
	if err := fn.Shift(context.Background(), id, 3, uuid.New()); !errors.Is(err, want) {
		t.Fatalf("got %v", err)
	}
	if got != id {
		t.Fatalf("id %s, want %s", got, id)
	}
}
