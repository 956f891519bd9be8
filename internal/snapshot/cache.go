package snapshot

import (
	"github.com/google/uuid"
)

// Cache memoizes identifier → snapshot for the lifetime of one unit of work.
// Entries are never revalidated on read; correctness depends on the stores
// evicting after every mutation. A Cache must not outlive its unit of work
// and is not safe for concurrent use — each unit of work runs on one
// goroutine by construction.
type Cache[S any] struct {
	entries map[uuid.UUID]*S
}

func NewCache[S any]() *Cache[S] {
	return &Cache[S]{entries: map[uuid.UUID]*S{}}
}

// Get returns the memoized snapshot, loading and memoizing on first access.
// Both hits and misses are memoized; a miss entry is cleared by Remove when
// the store inserts the row.
func (c *Cache[S]) Get(id uuid.UUID, load func(uuid.UUID) (*S, error)) (*S, error) {
	if s, ok := c.entries[id]; ok {
		return s, nil
	}
	s, err := load(id)
	if err != nil {
		return nil, err
	}
	c.entries[id] = s
	return s, nil
}

// Put seeds an entry, used by bulk loads ahead of batch operations.
func (c *Cache[S]) Put(id uuid.UUID, s *S) {
	c.entries[id] = s
}

// Remove evicts one entry. Called by the stores after every successful
// mutation so the next read re-hydrates from storage.
func (c *Cache[S]) Remove(id uuid.UUID) {
	delete(c.entries, id)
}
