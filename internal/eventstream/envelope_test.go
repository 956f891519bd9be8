package eventstream

import (
	"testing"
	"time"

	"github.com/google/uuid"

	types "github.com/construxio/sitehub-backend/internal/domain"
)

func TestEnvelopeRedisRoundTrip(t *testing.T) {
	id := uuid.New()
	actor := uuid.New()
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	doc := types.ProjectSnapshot{ID: id, Title: "North wing"}

	env, err := New(types.KindProject, id, 2, types.EventUpdated, doc, AuditDoc{
		CreatedBy:      actor,
		CreatedAt:      now,
		LastModifiedBy: actor,
		LastModifiedAt: now,
	})
	if err != nil {
		t.Fatalf("new envelope: %v", err)
	}

	values, err := env.Values()
	if err != nil {
		t.Fatalf("values: %v", err)
	}
	decoded, err := Decode(values)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if decoded.Key != env.Key {
		t.Fatalf("key %+v, want %+v", decoded.Key, env.Key)
	}
	if decoded.EventName() != types.EventUpdated {
		t.Fatalf("event %s, want %s", decoded.EventName(), types.EventUpdated)
	}
	var got types.ProjectSnapshot
	if err := decoded.DecodeAggregate(&got); err != nil {
		t.Fatalf("decode aggregate: %v", err)
	}
	if got.ID != id || got.Title != "North wing" {
		t.Fatalf("aggregate %+v", got)
	}
	if !decoded.Audit().LastModifiedAt.Equal(now) {
		t.Fatalf("audit %+v, want lastModifiedAt %s", decoded.Audit(), now)
	}
}

func TestTombstoneEnvelope(t *testing.T) {
	id := uuid.New()
	env := NewTombstone(types.KindTask, id, 5)

	if !env.Key.Tombstone {
		t.Fatal("tombstone flag not set")
	}
	if env.EventName() != types.EventDeleted {
		t.Fatalf("event %s, want %s", env.EventName(), types.EventDeleted)
	}

	values, err := env.Values()
	if err != nil {
		t.Fatalf("values: %v", err)
	}
	decoded, err := Decode(values)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !decoded.Key.Tombstone || decoded.EventName() != types.EventDeleted {
		t.Fatalf("decoded tombstone %+v", decoded.Key)
	}
}

func TestPartitioningIsStable(t *testing.T) {
	id := uuid.New()
	first := PartitionFor(id, 8)
	for i := 0; i < 10; i++ {
		if got := PartitionFor(id, 8); got != first {
			t.Fatalf("partition changed from %d to %d", first, got)
		}
	}
	if first < 0 || first >= 8 {
		t.Fatalf("partition %d out of range", first)
	}

	if got := StreamName(types.KindTaskSchedule, 3); got != "sitehub.stream.taskschedule.3" {
		t.Fatalf("stream name %q", got)
	}
}
