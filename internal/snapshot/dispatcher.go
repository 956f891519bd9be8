package snapshot

import (
	"context"

	"github.com/construxio/sitehub-backend/internal/eventstream"
	"github.com/construxio/sitehub-backend/internal/platform/logger"
)

// ApplyFunc applies one envelope within the given unit of work.
type ApplyFunc func(ctx context.Context, uow *UnitOfWork, env eventstream.Envelope) error

// Dispatcher routes envelopes to registered apply functions by
// (aggregate kind, event name). Stores and projectors register themselves at
// wiring time; there is no reflection and no inheritance, just this table.
type Dispatcher struct {
	routes map[string]map[string]ApplyFunc
	log    *logger.Logger
}

func NewDispatcher(log *logger.Logger) *Dispatcher {
	return &Dispatcher{
		routes: map[string]map[string]ApplyFunc{},
		log:    log.With("service", "SnapshotDispatcher"),
	}
}

// Register binds fn to every (kind, event) pair. Later registrations for the
// same pair chain after earlier ones, which is how a projector listens to a
// kind some snapshot store already handles.
func (d *Dispatcher) Register(kind string, events []string, fn ApplyFunc) {
	byEvent, ok := d.routes[kind]
	if !ok {
		byEvent = map[string]ApplyFunc{}
		d.routes[kind] = byEvent
	}
	for _, event := range events {
		if prev, ok := byEvent[event]; ok {
			byEvent[event] = chain(prev, fn)
			continue
		}
		byEvent[event] = fn
	}
}

// Dispatch routes one envelope. Unknown (kind, event) pairs are dropped at
// debug level: every service only materializes the kinds it cares about.
func (d *Dispatcher) Dispatch(ctx context.Context, uow *UnitOfWork, env eventstream.Envelope) error {
	byEvent, ok := d.routes[env.Key.Kind]
	if !ok {
		d.log.Debug("no handler for kind", "kind", env.Key.Kind)
		return nil
	}
	fn, ok := byEvent[env.EventName()]
	if !ok {
		d.log.Debug("no handler for event", "kind", env.Key.Kind, "event", env.EventName())
		return nil
	}
	return fn(ctx, uow, env)
}

func chain(a, b ApplyFunc) ApplyFunc {
	return func(ctx context.Context, uow *UnitOfWork, env eventstream.Envelope) error {
		if err := a(ctx, uow, env); err != nil {
			return err
		}
		return b(ctx, uow, env)
	}
}
