package command

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/construxio/sitehub-backend/internal/observability"
	"github.com/construxio/sitehub-backend/internal/platform/apierr"
	"github.com/construxio/sitehub-backend/internal/platform/logger"
)

// Backoff computes randomized exponential delays between retry attempts.
type Backoff struct {
	Min    time.Duration
	Max    time.Duration
	Jitter float64
}

// Delay returns the wait before retrying after the n'th failure (0-based).
func (b Backoff) Delay(n int) time.Duration {
	s := math.Pow(2, float64(n)) * b.Min.Seconds()
	if s > b.Max.Seconds() {
		s = b.Max.Seconds()
	}
	s *= 1 + (rand.Float64() * b.Jitter)
	return time.Duration(s * float64(time.Second))
}

// IsLockConflict reports whether err is a storage-level lock acquisition
// failure: serialization failure, deadlock, or lock-not-available. These are
// expected under concurrent load (a shared parent-row lock upgrading to
// exclusive while a child is created) and are the only errors worth retrying.
// Version conflicts are decidedly not here — a caller with a stale token has
// to re-read, retrying cannot help.
func IsLockConflict(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01", "55P03":
			return true
		}
	}
	return false
}

// WithRetry runs fn up to attempts times, backing off between lock-conflict
// failures. Any other error returns immediately. Exhaustion surfaces as a
// transient failure, distinct from a version conflict.
func WithRetry(ctx context.Context, log *logger.Logger, metrics *observability.Metrics, kind string, attempts int, backoff Backoff, fn func() error) error {
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			metrics.IncRetry(kind)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff.Delay(attempt - 1)):
			}
		}
		err = fn()
		if err == nil || !IsLockConflict(err) {
			return err
		}
		log.Warn("lock conflict, retrying command",
			"kind", kind, "attempt", attempt+1, "error", err)
	}
	return apierr.Transient(fmt.Errorf(
		"lock conflict persisted over %d attempts: %w (last: %v)",
		attempts, apierr.ErrTransient, err))
}
