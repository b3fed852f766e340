// Package redis keeps shared, short-lived state in Redis so that several
// instances enforce the same reaction cooldowns.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/pscheid92/linkorbit/internal/adapter/metrics"
	goredis "github.com/redis/go-redis/v9"
)

const (
	pingTimeout  = 5 * time.Second
	breakerDelay = 30 * time.Second
)

// NewClient connects to redisURL and verifies the connection. Commands fail
// fast with ErrCircuitOpen while Redis keeps erroring. redisMetrics may be nil.
func NewClient(ctx context.Context, redisURL string, redisMetrics *metrics.RedisMetrics) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := goredis.NewClient(opts)
	client.AddHook(newBreakerHook(breakerDelay, redisMetrics))
	if redisMetrics != nil {
		client.AddHook(&metricsHook{metrics: redisMetrics})
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}
