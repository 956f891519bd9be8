package db

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/construxio/sitehub-backend/internal/platform/envutil"
	"github.com/construxio/sitehub-backend/internal/platform/logger"
)

// NewRedisClient connects to the Redis instance backing the event streams.
func NewRedisClient(log *logger.Logger) (*goredis.Client, error) {
	addr := envutil.Str("REDIS_ADDR", "localhost:6379")

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	log.Info("Connected to Redis", "addr", addr)
	return rdb, nil
}
