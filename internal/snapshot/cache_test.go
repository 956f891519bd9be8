package snapshot

import (
	"testing"

	"github.com/google/uuid"
)

type fakeRow struct {
	ID      uuid.UUID
	Version int64
}

func TestCacheMemoizesHits(t *testing.T) {
	cache := NewCache[fakeRow]()
	id := uuid.New()
	loads := 0
	load := func(uuid.UUID) (*fakeRow, error) {
		loads++
		return &fakeRow{ID: id, Version: 1}, nil
	}

	for i := 0; i < 3; i++ {
		row, err := cache.Get(id, load)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if row == nil || row.Version != 1 {
			t.Fatalf("got %+v, want version 1", row)
		}
	}
	if loads != 1 {
		t.Fatalf("loader ran %d times, want 1", loads)
	}
}

func TestCacheMemoizesMisses(t *testing.T) {
	cache := NewCache[fakeRow]()
	id := uuid.New()
	loads := 0
	load := func(uuid.UUID) (*fakeRow, error) {
		loads++
		return nil, nil
	}

	for i := 0; i < 3; i++ {
		row, err := cache.Get(id, load)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if row != nil {
			t.Fatalf("got %+v, want nil", row)
		}
	}
	if loads != 1 {
		t.Fatalf("loader ran %d times, want 1", loads)
	}
}

func TestCacheRemoveForcesReload(t *testing.T) {
	cache := NewCache[fakeRow]()
	id := uuid.New()
	version := int64(0)
	load := func(uuid.UUID) (*fakeRow, error) {
		version++
		return &fakeRow{ID: id, Version: version}, nil
	}

	first, _ := cache.Get(id, load)
	cache.Remove(id)
	second, _ := cache.Get(id, load)

	if first.Version != 1 || second.Version != 2 {
		t.Fatalf("got versions %d then %d, want 1 then 2", first.Version, second.Version)
	}
}

func TestCachePutSeedsEntry(t *testing.T) {
	cache := NewCache[fakeRow]()
	id := uuid.New()
	cache.Put(id, &fakeRow{ID: id, Version: 9})

	row, err := cache.Get(id, func(uuid.UUID) (*fakeRow, error) {
		t.Fatal("loader must not run for a seeded entry")
		return nil, nil
	})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if row.Version != 9 {
		t.Fatalf("got version %d, want 9", row.Version)
	}
}
