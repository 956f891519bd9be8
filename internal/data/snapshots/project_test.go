package snapshots

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/construxio/sitehub-backend/internal/data/testutil"
	types "github.com/construxio/sitehub-backend/internal/domain"
	"github.com/construxio/sitehub-backend/internal/eventstream"
	"github.com/construxio/sitehub-backend/internal/observability"
	"github.com/construxio/sitehub-backend/internal/snapshot"
)

func projectEvent(t *testing.T, id uuid.UUID, version int64, name, title string) eventstream.Envelope {
	t.Helper()
	actor := uuid.New()
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC).Add(time.Duration(version) * time.Minute)
	env, err := eventstream.New(types.KindProject, id, version, name, types.ProjectSnapshot{
		ID:    id,
		Title: title,
	}, eventstream.AuditDoc{
		CreatedBy:      actor,
		CreatedAt:      now,
		LastModifiedBy: actor,
		LastModifiedAt: now,
	})
	if err != nil {
		t.Fatalf("build envelope: %v", err)
	}
	return env
}

// A conditional write that misses (because another writer advanced the row
// after this unit of work cached it) drops the event instead of corrupting
// the snapshot.
func TestProjectStoreStaleConditionalWrite(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	log := testutil.Logger(t)
	store := NewProjectStore(log, observability.Init())
	ctx := context.Background()

	id := uuid.New()
	writer := snapshot.NewUnitOfWork(tx)
	if err := store.Apply(ctx, writer, projectEvent(t, id, 0, types.EventCreated, "v0")); err != nil {
		t.Fatalf("apply created: %v", err)
	}
	if err := store.Apply(ctx, writer, projectEvent(t, id, 1, types.EventUpdated, "v1")); err != nil {
		t.Fatalf("apply updated: %v", err)
	}

	// A second unit of work still holding the version-0 state decides the
	// version-1 event is applicable, but the WHERE clause no longer matches.
	stale := snapshot.NewUnitOfWork(tx)
	stale.Projects.Put(id, &types.ProjectSnapshot{ID: id, Version: 0, Title: "v0"})
	if err := store.Apply(ctx, stale, projectEvent(t, id, 1, types.EventUpdated, "overwritten")); err != nil {
		t.Fatalf("apply stale: %v", err)
	}

	row, err := store.FindOrFail(ctx, snapshot.NewUnitOfWork(tx), id)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if row.Version != 1 || row.Title != "v1" {
		t.Fatalf("stale write mutated storage: %+v", row)
	}
}

func TestProjectStoreFindAllByIDIn(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	log := testutil.Logger(t)
	store := NewProjectStore(log, observability.Init())
	ctx := context.Background()

	seed := snapshot.NewUnitOfWork(tx)
	a := uuid.New()
	b := uuid.New()
	if err := store.Apply(ctx, seed, projectEvent(t, a, 0, types.EventCreated, "north")); err != nil {
		t.Fatalf("seed a: %v", err)
	}
	if err := store.Apply(ctx, seed, projectEvent(t, b, 0, types.EventCreated, "south")); err != nil {
		t.Fatalf("seed b: %v", err)
	}

	uow := snapshot.NewUnitOfWork(tx)
	rows, err := store.FindAllByIDIn(ctx, uow, []uuid.UUID{a, b, uuid.New()})
	if err != nil {
		t.Fatalf("find all: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want the two seeded projects", len(rows))
	}

	// The bulk read seeds the cache; a follow-up lookup must not hit storage.
	row, err := uow.Projects.Get(a, func(uuid.UUID) (*types.ProjectSnapshot, error) {
		t.Fatalf("project %s not seeded by bulk read", a)
		return nil, nil
	})
	if err != nil {
		t.Fatalf("cached get: %v", err)
	}
	if row.Version != 0 {
		t.Fatalf("cached row %+v", row)
	}
}

// After a store mutation, a read within the same unit of work must observe
// the new state, never the cached pre-mutation value.
func TestProjectStoreCacheCoherence(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	log := testutil.Logger(t)
	store := NewProjectStore(log, observability.Init())
	ctx := context.Background()

	id := uuid.New()
	uow := snapshot.NewUnitOfWork(tx)
	if err := store.Apply(ctx, uow, projectEvent(t, id, 0, types.EventCreated, "before")); err != nil {
		t.Fatalf("apply created: %v", err)
	}
	if _, err := store.FindOrFail(ctx, uow, id); err != nil {
		t.Fatalf("prime cache: %v", err)
	}
	if err := store.Apply(ctx, uow, projectEvent(t, id, 1, types.EventUpdated, "after")); err != nil {
		t.Fatalf("apply updated: %v", err)
	}

	row, err := store.FindOrFail(ctx, uow, id)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if row.Version != 1 || row.Title != "after" {
		t.Fatalf("cache served pre-mutation state: %+v", row)
	}
}
