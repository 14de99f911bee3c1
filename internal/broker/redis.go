// Package broker owns the single shared Redis connection pool used by the
// pub/sub subscriber and the stream consumer.
package broker

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Connect parses dsn (e.g. "redis://localhost:6379/0", the shape of
// NOTIFY_REDIS) and returns a connected client, failing fast with a single
// PING rather than deferring the error to the first real command.
func Connect(ctx context.Context, dsn string) (*redis.Client, error) {
	opts, err := redis.ParseURL(dsn)
	if err != nil {
		return nil, fmt.Errorf("broker: parse redis dsn: %w", err)
	}
	return connect(ctx, opts)
}

func connect(ctx context.Context, opts *redis.Options) (*redis.Client, error) {
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("broker: connect to redis at %s: %w", opts.Addr, err)
	}
	return client, nil
}
