package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/zatekoja/visitscribe/pkg/config"
	"github.com/zatekoja/visitscribe/pkg/retry"
)

// Client holds the connection shared by the budget counters and the note job queue.
type Client struct {
	rdb *redis.Client
}

// NewClient dials Redis and waits up to 30s for the first successful ping.
func NewClient(ctx context.Context, cfg *config.RedisConfig) (*Client, error) {
	rdb := redis.NewClient(options(cfg))

	connect := retry.DefaultConfig()
	connect.MaxTotalTimeout = 30 * time.Second
	err := retry.DoWithLog(ctx, connect, "redis",
		func() error {
			pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
			defer cancel()
			return rdb.Ping(pingCtx).Err()
		},
		func(attempt int, err error, nextDelay time.Duration) {
			log.Warn().
				Err(err).
				Str("addr", cfg.RedisAddr()).
				Int("attempt", attempt).
				Dur("next_delay", nextDelay).
				Msg("redis not reachable yet")
		},
	)
	if err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("connect redis at %s: %w", cfg.RedisAddr(), err)
	}

	log.Info().Str("addr", cfg.RedisAddr()).Int("db", cfg.DB).Msg("redis ready")
	return &Client{rdb: rdb}, nil
}

func options(cfg *config.RedisConfig) *redis.Options {
	opts := &redis.Options{
		Addr:     cfg.RedisAddr(),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	}
	if cfg.DialTimeout > 0 {
		opts.DialTimeout = cfg.DialTimeout
	}
	return opts
}

// Client exposes the go-redis client to the adapters.
func (c *Client) Client() *redis.Client {
	return c.rdb
}

func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping backs the readiness check.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}
