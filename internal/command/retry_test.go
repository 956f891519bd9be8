package command

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/construxio/sitehub-backend/internal/observability"
	"github.com/construxio/sitehub-backend/internal/platform/apierr"
	"github.com/construxio/sitehub-backend/internal/platform/logger"
)

func testDeps(t *testing.T) (*logger.Logger, *observability.Metrics) {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("init logger: %v", err)
	}
	return log, observability.Init()
}

func lockConflict(code string) error {
	return fmt.Errorf("query: %w", &pgconn.PgError{Code: code})
}

func TestIsLockConflict(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"serialization_failure", lockConflict("40001"), true},
		{"deadlock_detected", lockConflict("40P01"), true},
		{"lock_not_available", lockConflict("55P03"), true},
		{"unique_violation", lockConflict("23505"), false},
		{"plain_error", errors.New("boom"), false},
		{"nil", nil, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsLockConflict(tc.err); got != tc.want {
				t.Fatalf("IsLockConflict = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestBackoffDelayBounds(t *testing.T) {
	b := Backoff{Min: 10 * time.Millisecond, Max: 80 * time.Millisecond, Jitter: 0.5}
	for n := 0; n < 8; n++ {
		d := b.Delay(n)
		if d < 10*time.Millisecond {
			t.Fatalf("delay(%d) = %s below minimum", n, d)
		}
		if d > 120*time.Millisecond {
			t.Fatalf("delay(%d) = %s above max plus jitter", n, d)
		}
	}
}

func TestWithRetryNonLockErrorReturnsImmediately(t *testing.T) {
	log, metrics := testDeps(t)
	boom := errors.New("boom")
	calls := 0

	err := WithRetry(context.Background(), log, metrics, "PROJECT", 5, Backoff{Min: time.Millisecond, Max: time.Millisecond}, func() error {
		calls++
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("got %v, want %v", err, boom)
	}
	if calls != 1 {
		t.Fatalf("fn ran %d times, want 1", calls)
	}
}

func TestWithRetryRecoversFromLockConflict(t *testing.T) {
	log, metrics := testDeps(t)
	calls := 0

	err := WithRetry(context.Background(), log, metrics, "PROJECT", 3, Backoff{Min: time.Millisecond, Max: time.Millisecond}, func() error {
		calls++
		if calls < 3 {
			return lockConflict("40001")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("got %v, want nil", err)
	}
	if calls != 3 {
		t.Fatalf("fn ran %d times, want 3", calls)
	}
}

func TestWithRetryExhaustionIsTransient(t *testing.T) {
	log, metrics := testDeps(t)
	calls := 0

	err := WithRetry(context.Background(), log, metrics, "PROJECT", 3, Backoff{Min: time.Millisecond, Max: time.Millisecond}, func() error {
		calls++
		return lockConflict("40P01")
	})
	if calls != 3 {
		t.Fatalf("fn ran %d times, want 3", calls)
	}
	if !errors.Is(err, apierr.ErrTransient) {
		t.Fatalf("got %v, want transient failure", err)
	}
	if errors.Is(err, apierr.ErrVersionConflict) {
		t.Fatal("retry exhaustion must not look like a version conflict")
	}
}
