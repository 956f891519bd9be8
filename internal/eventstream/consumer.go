package eventstream

import (
	"context"
	"errors"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/construxio/sitehub-backend/internal/observability"
	"github.com/construxio/sitehub-backend/internal/platform/logger"
)

// Handler applies one decoded envelope inside its own unit of work. A nil
// return acknowledges the entry; an error leaves it pending for redelivery.
type Handler func(ctx context.Context, env Envelope) error

type ConsumerConfig struct {
	Group      string
	Name       string
	Kinds      []string
	Partitions int
	Block      time.Duration
	ClaimIdle  time.Duration
	BatchSize  int64
}

// Consumer reads the partition streams of the configured kinds. One goroutine
// per partition stream keeps per-aggregate delivery strictly ordered; nothing
// is acknowledged before the handler's transaction committed, so a crash
// causes redelivery and the stores' version guards make reapplication a no-op.
// A failed entry blocks its partition: pending entries are retried and drained
// before any newer entry is read, because applying a newer event first would
// make it a version gap that the stores drop and the loop then acks.
type Consumer struct {
	rdb     *goredis.Client
	cfg     ConsumerConfig
	handler Handler
	log     *logger.Logger
	metrics *observability.Metrics
}

func NewConsumer(rdb *goredis.Client, cfg ConsumerConfig, handler Handler, log *logger.Logger, metrics *observability.Metrics) *Consumer {
	if cfg.Block <= 0 {
		cfg.Block = 5 * time.Second
	}
	if cfg.ClaimIdle <= 0 {
		cfg.ClaimIdle = time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 16
	}
	return &Consumer{
		rdb:     rdb,
		cfg:     cfg,
		handler: handler,
		log:     log.With("consumer", cfg.Group),
		metrics: metrics,
	}
}

// Run blocks until ctx is cancelled or a partition loop fails fatally.
func (c *Consumer) Run(ctx context.Context) error {
	streams := make([]string, 0, len(c.cfg.Kinds)*c.cfg.Partitions)
	for _, kind := range c.cfg.Kinds {
		for p := 0; p < c.cfg.Partitions; p++ {
			streams = append(streams, StreamName(kind, p))
		}
	}

	for _, stream := range streams {
		if err := c.ensureGroup(ctx, stream); err != nil {
			return err
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, stream := range streams {
		stream := stream
		g.Go(func() error {
			return c.consumePartition(ctx, stream)
		})
	}
	return g.Wait()
}

func (c *Consumer) ensureGroup(ctx context.Context, stream string) error {
	err := c.rdb.XGroupCreateMkStream(ctx, stream, c.cfg.Group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return err
	}
	return nil
}

func (c *Consumer) consumePartition(ctx context.Context, stream string) error {
	log := c.log.With("stream", stream)
	log.Info("consuming partition stream")

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		// Entries another consumer left pending (e.g. a crashed instance)
		// are taken over before reading new ones, preserving stream order.
		claimed, _, err := c.rdb.XAutoClaim(ctx, &goredis.XAutoClaimArgs{
			Stream:   stream,
			Group:    c.cfg.Group,
			Consumer: c.cfg.Name,
			MinIdle:  c.cfg.ClaimIdle,
			Start:    "0-0",
			Count:    c.cfg.BatchSize,
		}).Result()
		if err != nil && !errors.Is(err, goredis.Nil) {
			log.Error("autoclaim failed", "error", err)
		}
		if !c.processBatch(ctx, log, stream, claimed) {
			c.pause(ctx)
			continue
		}

		// Entries this consumer already read but could not apply must drain
		// before any new entry is read. Reading past an unapplied entry would
		// turn one transient failure into a permanent version gap: the newer
		// event gets dropped by the version gate and acked while the older
		// one is still pending.
		if !c.drainPending(ctx, log, stream) {
			c.pause(ctx)
			continue
		}

		res, err := c.rdb.XReadGroup(ctx, &goredis.XReadGroupArgs{
			Group:    c.cfg.Group,
			Consumer: c.cfg.Name,
			Streams:  []string{stream, ">"},
			Count:    c.cfg.BatchSize,
			Block:    c.cfg.Block,
		}).Result()
		if err != nil {
			if errors.Is(err, goredis.Nil) {
				continue
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			log.Error("read failed", "error", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Second):
			}
			continue
		}

		for _, sr := range res {
			if !c.processBatch(ctx, log, stream, sr.Messages) {
				break
			}
		}
		c.reportPending(ctx, stream)
	}
}

// drainPending reapplies the entries delivered to this consumer that are
// still unacknowledged, oldest first. Returns false while any of them keeps
// failing; only a fully drained pending list may read new entries.
func (c *Consumer) drainPending(ctx context.Context, log *logger.Logger, stream string) bool {
	for {
		res, err := c.rdb.XReadGroup(ctx, &goredis.XReadGroupArgs{
			Group:    c.cfg.Group,
			Consumer: c.cfg.Name,
			Streams:  []string{stream, "0"},
			Count:    c.cfg.BatchSize,
		}).Result()
		if err != nil {
			if errors.Is(err, goredis.Nil) {
				return true
			}
			log.Error("pending read failed", "error", err)
			return false
		}

		remaining := 0
		for _, sr := range res {
			remaining += len(sr.Messages)
			if !c.processBatch(ctx, log, stream, sr.Messages) {
				return false
			}
		}
		if remaining == 0 {
			return true
		}
	}
}

// processBatch applies entries in delivery order, acking each one after its
// transaction committed. It stops at the first failure and reports it, so the
// caller never advances past an unacknowledged entry.
func (c *Consumer) processBatch(ctx context.Context, log *logger.Logger, stream string, msgs []goredis.XMessage) bool {
	for _, msg := range msgs {
		if ctx.Err() != nil {
			return false
		}

		env, err := Decode(msg.Values)
		if err != nil {
			// A malformed entry can never become applicable; ack it so it
			// does not wedge the partition.
			log.Error("dropping undecodable stream entry", "entry", msg.ID, "error", err)
			_ = c.rdb.XAck(ctx, stream, c.cfg.Group, msg.ID).Err()
			continue
		}

		if err := c.handler(ctx, env); err != nil {
			log.Error("apply failed, leaving entry pending",
				"entry", msg.ID, "key", env.Key.String(), "error", err)
			return false
		}

		if err := c.rdb.XAck(ctx, stream, c.cfg.Group, msg.ID).Err(); err != nil {
			log.Error("ack failed", "entry", msg.ID, "error", err)
			return false
		}
		c.metrics.IncApplied(env.Key.Kind, env.EventName())
	}
	return true
}

func (c *Consumer) pause(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
	}
}

func (c *Consumer) reportPending(ctx context.Context, stream string) {
	pending, err := c.rdb.XPending(ctx, stream, c.cfg.Group).Result()
	if err != nil {
		return
	}
	c.metrics.SetPending(stream, pending.Count)
}
