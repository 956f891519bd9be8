package eventstream

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Key is the typed message key: aggregate kind, identifier and the version the
// event moves the aggregate to. Identity is (Kind, ID); Version orders the
// aggregate's own history. A tombstone key has no payload and means the
// aggregate was deleted.
type Key struct {
	Kind      string    `json:"kind"`
	ID        uuid.UUID `json:"identifier"`
	Version   int64     `json:"version"`
	Tombstone bool      `json:"tombstone,omitempty"`
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%s@%d", k.Kind, k.ID, k.Version)
}

// AuditDoc carries the actor/timestamp block of an event.
type AuditDoc struct {
	CreatedBy      uuid.UUID `json:"createdBy"`
	CreatedAt      time.Time `json:"createdAt"`
	LastModifiedBy uuid.UUID `json:"lastModifiedBy"`
	LastModifiedAt time.Time `json:"lastModifiedAt"`
}

// EventDoc is the typed payload: event name, the aggregate document (the
// snapshot state recorded by the event, JSON-encoded) and audit information.
type EventDoc struct {
	Name      string          `json:"name"`
	Aggregate json.RawMessage `json:"aggregate,omitempty"`
	Audit     AuditDoc        `json:"auditingInformation"`
}

// Envelope is one event log entry. Event is nil exactly when Key.Tombstone.
type Envelope struct {
	Key   Key
	Event *EventDoc
}

// New builds an envelope for a typed event, serializing the aggregate state.
func New(kind string, id uuid.UUID, version int64, name string, aggregate any, audit AuditDoc) (Envelope, error) {
	raw, err := json.Marshal(aggregate)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s aggregate: %w", kind, err)
	}
	return Envelope{
		Key:   Key{Kind: kind, ID: id, Version: version},
		Event: &EventDoc{Name: name, Aggregate: raw, Audit: audit},
	}, nil
}

// NewTombstone builds a deletion marker for an aggregate.
func NewTombstone(kind string, id uuid.UUID, version int64) Envelope {
	return Envelope{Key: Key{Kind: kind, ID: id, Version: version, Tombstone: true}}
}

// EventName returns the payload's event name, mapping tombstones onto DELETED
// so both deletion shapes route identically.
func (e Envelope) EventName() string {
	if e.Key.Tombstone || e.Event == nil {
		return "DELETED"
	}
	return e.Event.Name
}

// DecodeAggregate unmarshals the aggregate document into out.
func (e Envelope) DecodeAggregate(out any) error {
	if e.Event == nil || len(e.Event.Aggregate) == 0 {
		return fmt.Errorf("envelope %s has no aggregate payload", e.Key)
	}
	return json.Unmarshal(e.Event.Aggregate, out)
}

// Audit returns the payload audit block, zero for tombstones.
func (e Envelope) Audit() AuditDoc {
	if e.Event == nil {
		return AuditDoc{}
	}
	return e.Event.Audit
}

const (
	fieldKey     = "key"
	fieldPayload = "payload"
)

// Values encodes the envelope into stream entry fields.
func (e Envelope) Values() (map[string]any, error) {
	rawKey, err := json.Marshal(e.Key)
	if err != nil {
		return nil, fmt.Errorf("encode key: %w", err)
	}
	values := map[string]any{fieldKey: string(rawKey)}
	if e.Event != nil {
		rawEvent, err := json.Marshal(e.Event)
		if err != nil {
			return nil, fmt.Errorf("encode payload for %s: %w", e.Key, err)
		}
		values[fieldPayload] = string(rawEvent)
	}
	return values, nil
}

// Decode rebuilds an envelope from stream entry fields.
func Decode(values map[string]any) (Envelope, error) {
	rawKey, ok := values[fieldKey].(string)
	if !ok || rawKey == "" {
		return Envelope{}, fmt.Errorf("stream entry has no key field")
	}
	var env Envelope
	if err := json.Unmarshal([]byte(rawKey), &env.Key); err != nil {
		return Envelope{}, fmt.Errorf("decode key: %w", err)
	}
	if rawPayload, ok := values[fieldPayload].(string); ok && rawPayload != "" {
		var doc EventDoc
		if err := json.Unmarshal([]byte(rawPayload), &doc); err != nil {
			return Envelope{}, fmt.Errorf("decode payload for %s: %w", env.Key, err)
		}
		env.Event = &doc
	}
	if env.Event == nil && !env.Key.Tombstone {
		return Envelope{}, fmt.Errorf("non-tombstone entry %s has no payload", env.Key)
	}
	return env, nil
}
