package command

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/construxio/sitehub-backend/internal/data/snapshots"
	"github.com/construxio/sitehub-backend/internal/data/testutil"
	types "github.com/construxio/sitehub-backend/internal/domain"
	"github.com/construxio/sitehub-backend/internal/eventstream"
	"github.com/construxio/sitehub-backend/internal/platform/apierr"
	"github.com/construxio/sitehub-backend/internal/snapshot"
)

type capturingPublisher struct {
	published []eventstream.Envelope
}

func (p *capturingPublisher) Publish(_ context.Context, envs ...eventstream.Envelope) error {
	p.published = append(p.published, envs...)
	return nil
}

func TestGateLifecycle(t *testing.T) {
	db := testutil.DB(t)
	log := testutil.Logger(t)
	_, metrics := testDeps(t)
	pub := &capturingPublisher{}
	gate := NewGate(db, pub, log, metrics, 3, Backoff{Min: time.Millisecond, Max: 5 * time.Millisecond})
	store := snapshots.NewProjectStore(log, metrics)

	id := uuid.New()
	actor := uuid.New()
	t.Cleanup(func() {
		db.Delete(&types.ProjectSnapshot{}, "id = ?", id)
	})

	load := func(ctx context.Context, uow *snapshot.UnitOfWork) (*types.ProjectSnapshot, error) {
		return store.FindOrFail(ctx, uow, id)
	}
	update := func(title string) func(types.ProjectSnapshot) (types.ProjectSnapshot, error) {
		return func(current types.ProjectSnapshot) (types.ProjectSnapshot, error) {
			next := current
			next.Title = title
			return next, nil
		}
	}

	// Creation writes version 0 and publishes the event.
	out, err := Execute(context.Background(), gate, Command[types.ProjectSnapshot]{
		Kind:      types.KindProject,
		ID:        id,
		EventName: types.EventCreated,
		Actor:     actor,
		Apply: func(types.ProjectSnapshot) (types.ProjectSnapshot, error) {
			return types.ProjectSnapshot{ID: id, Title: "initial"}, nil
		},
		Store: store.Apply,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if out.Version != 0 || out.ETag != `"0"` || !out.Emitted {
		t.Fatalf("create outcome %+v", out)
	}
	if len(pub.published) != 1 || pub.published[0].Key.Version != 0 {
		t.Fatalf("published %+v", pub.published)
	}

	// A stale token is rejected without emitting anything.
	_, err = Execute(context.Background(), gate, Command[types.ProjectSnapshot]{
		Kind:      types.KindProject,
		ID:        id,
		EventName: types.EventUpdated,
		Token:     `"5"`,
		Actor:     actor,
		Load:      load,
		Apply:     update("renamed"),
		Store:     store.Apply,
	})
	if !errors.Is(err, apierr.ErrVersionConflict) {
		t.Fatalf("stale token: got %v, want version conflict", err)
	}
	if len(pub.published) != 1 {
		t.Fatalf("conflict emitted an event: %+v", pub.published)
	}

	// The matching token produces the next version.
	out, err = Execute(context.Background(), gate, Command[types.ProjectSnapshot]{
		Kind:      types.KindProject,
		ID:        id,
		EventName: types.EventUpdated,
		Token:     `"0"`,
		Actor:     actor,
		Load:      load,
		Apply:     update("renamed"),
		Store:     store.Apply,
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if out.Version != 1 || out.Snapshot.Title != "renamed" || !out.Emitted {
		t.Fatalf("update outcome %+v", out)
	}
	if len(pub.published) != 2 {
		t.Fatalf("published %d events, want 2", len(pub.published))
	}

	// A command that changes nothing emits nothing.
	out, err = Execute(context.Background(), gate, Command[types.ProjectSnapshot]{
		Kind:      types.KindProject,
		ID:        id,
		EventName: types.EventUpdated,
		Token:     `"1"`,
		Actor:     actor,
		Load:      load,
		Apply:     update("renamed"),
		Store:     store.Apply,
	})
	if err != nil {
		t.Fatalf("no-op update: %v", err)
	}
	if out.Emitted || out.Version != 1 {
		t.Fatalf("no-op outcome %+v", out)
	}
	if len(pub.published) != 2 {
		t.Fatalf("no-op emitted an event: %+v", pub.published)
	}

	// Deletion emits a tombstone and leaves the aggregate unfindable.
	out, err = Execute(context.Background(), gate, Command[types.ProjectSnapshot]{
		Kind:      types.KindProject,
		ID:        id,
		EventName: types.EventDeleted,
		Token:     `"1"`,
		Actor:     actor,
		Tombstone: true,
		Load:      load,
		Store:     store.Apply,
	})
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if out.Version != 2 {
		t.Fatalf("delete outcome %+v", out)
	}
	last := pub.published[len(pub.published)-1]
	if !last.Key.Tombstone || last.Key.Version != 2 {
		t.Fatalf("last published %+v", last.Key)
	}

	findErr := db.Transaction(func(tx *gorm.DB) error {
		_, err := store.FindOrFail(context.Background(), snapshot.NewUnitOfWork(tx), id)
		return err
	})
	if !errors.Is(findErr, apierr.ErrNotFound) {
		t.Fatalf("after delete: got %v, want not found", findErr)
	}
}
