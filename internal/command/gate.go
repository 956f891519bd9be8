// Package command implements the optimistic concurrency gate every direct
// mutation passes through: load the snapshot, verify the caller's version
// token, compute the next state, skip clean no-ops, and emit the resulting
// event at version+1 while applying it to the snapshot store in the same
// transaction.
package command

import (
	"context"
	"fmt"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/construxio/sitehub-backend/internal/domain"
	"github.com/construxio/sitehub-backend/internal/eventstream"
	"github.com/construxio/sitehub-backend/internal/observability"
	"github.com/construxio/sitehub-backend/internal/platform/apierr"
	"github.com/construxio/sitehub-backend/internal/platform/logger"
	"github.com/construxio/sitehub-backend/internal/snapshot"
)

// Snapshot constrains the aggregate snapshot types the gate can handle. Both
// methods come for free from the embedded domain.Audit / Version fields.
type Snapshot interface {
	AggregateVersion() int64
	AuditInfo() types.Audit
}

// Publisher appends envelopes to the event log after the local transaction
// committed.
type Publisher interface {
	Publish(ctx context.Context, envs ...eventstream.Envelope) error
}

type Gate struct {
	db       *gorm.DB
	producer Publisher
	log      *logger.Logger
	metrics  *observability.Metrics
	attempts int
	backoff  Backoff
}

func NewGate(db *gorm.DB, producer Publisher, baseLog *logger.Logger, metrics *observability.Metrics, attempts int, backoff Backoff) *Gate {
	return &Gate{
		db:       db,
		producer: producer,
		log:      baseLog.With("service", "CommandGate"),
		metrics:  metrics,
		attempts: attempts,
		backoff:  backoff,
	}
}

// Command is one mutation intent against a single aggregate.
//
// Apply must treat its input as immutable: it gets the current state by value
// and returns the next state as a fresh value, never mutating shared slices
// in place, because the dirty check compares the two afterwards.
type Command[S Snapshot] struct {
	Kind      string
	ID        uuid.UUID
	EventName string
	// Token is the caller's raw If-Match value; empty means the caller opted
	// out of the optimistic check.
	Token string
	Actor uuid.UUID
	// Load returns the current snapshot or a NotFound error. Nil Load marks
	// a creation: the aggregate must not exist yet and Apply receives the
	// zero value.
	Load func(ctx context.Context, uow *snapshot.UnitOfWork) (*S, error)
	// Apply computes the next state. Pure; domain precondition failures are
	// returned as errors.
	Apply func(current S) (S, error)
	// Store applies the emitted envelope to the snapshot store inside the
	// command's transaction, so readers observe log and snapshot in step.
	Store func(ctx context.Context, uow *snapshot.UnitOfWork, env eventstream.Envelope) error
	// Tombstone marks a deletion: no payload is computed, a tombstone at
	// version+1 is emitted instead.
	Tombstone bool
}

// Outcome reports what the gate did. Emitted is false when the dirty check
// found nothing to change; the snapshot and token then describe the untouched
// current state.
type Outcome[S Snapshot] struct {
	Snapshot S
	Version  int64
	ETag     string
	Emitted  bool
}

// Execute runs the command under the gate's retry policy. Lock-acquisition
// conflicts rerun the whole load-check-apply cycle; everything else
// propagates immediately.
func Execute[S Snapshot](ctx context.Context, g *Gate, cmd Command[S]) (*Outcome[S], error) {
	var out *Outcome[S]
	err := WithRetry(ctx, g.log, g.metrics, cmd.Kind, g.attempts, g.backoff, func() error {
		var attemptErr error
		out, attemptErr = executeOnce(ctx, g, cmd)
		return attemptErr
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func executeOnce[S Snapshot](ctx context.Context, g *Gate, cmd Command[S]) (*Outcome[S], error) {
	var staged *eventstream.Envelope
	var out *Outcome[S]

	err := g.db.Transaction(func(tx *gorm.DB) error {
		uow := snapshot.NewUnitOfWork(tx)

		var current S
		baseVersion := int64(-1)
		if cmd.Load != nil {
			loaded, err := cmd.Load(ctx, uow)
			if err != nil {
				return err
			}
			current = *loaded
			baseVersion = current.AggregateVersion()
		}

		if cmd.Token != "" {
			tokenVersion, err := snapshot.ParseETag(cmd.Token)
			if err != nil {
				return err
			}
			if tokenVersion != baseVersion {
				g.metrics.IncConflict(cmd.Kind)
				return apierr.Conflict(fmt.Errorf(
					"token holds version %d, current is %d: %w",
					tokenVersion, baseVersion, apierr.ErrVersionConflict))
			}
		}

		if cmd.Tombstone {
			env := eventstream.NewTombstone(cmd.Kind, cmd.ID, baseVersion+1)
			if err := cmd.Store(ctx, uow, env); err != nil {
				return err
			}
			staged = &env
			out = &Outcome[S]{Snapshot: current, Version: baseVersion + 1, Emitted: true}
			return nil
		}

		next, err := cmd.Apply(current)
		if err != nil {
			return err
		}

		// Field-by-field dirty check: a command that changes nothing emits
		// nothing, making it idempotent from the caller's perspective.
		if cmd.Load != nil && cmp.Equal(current, next) {
			out = &Outcome[S]{
				Snapshot: current,
				Version:  baseVersion,
				ETag:     snapshot.ETagOf(baseVersion),
				Emitted:  false,
			}
			return nil
		}

		now := time.Now().UTC()
		audit := eventstream.AuditDoc{
			CreatedBy:      cmd.Actor,
			CreatedAt:      now,
			LastModifiedBy: cmd.Actor,
			LastModifiedAt: now,
		}
		if cmd.Load != nil {
			prev := current.AuditInfo()
			audit.CreatedBy = prev.CreatedBy
			audit.CreatedAt = prev.CreatedAt
		}

		env, err := eventstream.New(cmd.Kind, cmd.ID, baseVersion+1, cmd.EventName, next, audit)
		if err != nil {
			return err
		}
		if err := cmd.Store(ctx, uow, env); err != nil {
			return err
		}
		staged = &env
		out = &Outcome[S]{
			Snapshot: next,
			Version:  baseVersion + 1,
			ETag:     snapshot.ETagOf(baseVersion + 1),
			Emitted:  true,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if staged != nil {
		g.metrics.IncEmitted(cmd.Kind)
		// The local snapshot is already committed; a publish failure only
		// delays cross-service propagation and is repaired by the next
		// event of the same aggregate or an operational replay.
		if err := g.producer.Publish(ctx, *staged); err != nil {
			g.log.Error("post-commit publish failed",
				"key", staged.Key.String(), "error", err)
		}
	}
	return out, nil
}
