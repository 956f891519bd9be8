package snapshot

// Decision is the outcome of the version gate for one incoming event.
type Decision int

const (
	// Apply: the event is the next one in the aggregate's history (or the
	// first knowledge of the aggregate) and must be applied.
	Apply Decision = iota
	// Duplicate: the event's version is already reflected in storage. Normal
	// under at-least-once delivery; dropped silently.
	Duplicate
	// Gap: the event skips ahead of storage. The transport orders events per
	// aggregate, so a gap means something upstream misbehaved; dropped with a
	// warning and a metric, never applied out of sequence.
	Gap
)

// CanApply decides whether an event at incoming version may be applied over
// the stored version (nil when no snapshot exists). The rules match the
// conditional write the stores perform, so the gate and the WHERE clause can
// never disagree for long: the write is the authority, the gate avoids the
// round trip.
func CanApply(current *int64, incoming int64) Decision {
	if current == nil {
		return Apply
	}
	switch {
	case incoming == *current+1:
		return Apply
	case incoming <= *current:
		return Duplicate
	default:
		return Gap
	}
}
