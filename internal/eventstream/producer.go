package eventstream

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/construxio/sitehub-backend/internal/observability"
	"github.com/construxio/sitehub-backend/internal/platform/logger"
)

// Producer appends envelopes to the partitioned event log. Publishing happens
// after the local transaction committed; consumers tolerate replays, so a
// crash between commit and publish only delays cross-service propagation.
type Producer struct {
	rdb        *goredis.Client
	partitions int
	log        *logger.Logger
	metrics    *observability.Metrics
}

func NewProducer(rdb *goredis.Client, partitions int, log *logger.Logger, metrics *observability.Metrics) *Producer {
	return &Producer{
		rdb:        rdb,
		partitions: partitions,
		log:        log.With("service", "EventProducer"),
		metrics:    metrics,
	}
}

func (p *Producer) Publish(ctx context.Context, envs ...Envelope) error {
	for _, env := range envs {
		values, err := env.Values()
		if err != nil {
			return err
		}
		stream := StreamName(env.Key.Kind, PartitionFor(env.Key.ID, p.partitions))
		if err := p.rdb.XAdd(ctx, &goredis.XAddArgs{
			Stream: stream,
			Values: values,
		}).Err(); err != nil {
			p.metrics.IncPublishFailure(env.Key.Kind)
			p.log.Error("failed to publish event", "stream", stream, "key", env.Key.String(), "error", err)
			return fmt.Errorf("publish %s: %w", env.Key, err)
		}
		p.log.Debug("published event", "stream", stream, "key", env.Key.String(), "event", env.EventName())
	}
	return nil
}
