package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/zatekoja/visitscribe/pkg/config"
	"github.com/zatekoja/visitscribe/pkg/retry"
)

// Client owns the connection pool behind the transcript and note adapters.
type Client struct {
	db *sql.DB
}

// NewClient opens the pool and waits for the server to answer a ping, backing
// off between attempts until ctx or the retry budget runs out.
func NewClient(ctx context.Context, cfg *config.DatabaseConfig) (*Client, error) {
	db, err := sql.Open("postgres", cfg.DatabaseDSN())
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	configurePool(db, cfg)

	attempts := 0
	err = retry.DoWithLog(ctx, retry.DefaultConfig(), "postgres",
		func() error {
			attempts++
			pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			return db.PingContext(pingCtx)
		},
		func(attempt int, err error, nextDelay time.Duration) {
			log.Warn().
				Err(err).
				Str("host", cfg.Host).
				Int("attempt", attempt).
				Dur("next_delay", nextDelay).
				Msg("postgres not reachable yet")
		},
	)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres unreachable after %d attempts: %w", attempts, err)
	}

	log.Info().
		Str("host", cfg.Host).
		Str("database", cfg.Database).
		Int("max_open_conns", cfg.MaxOpenConns).
		Msg("postgres ready")
	return &Client{db: db}, nil
}

// NewClientFromDB wraps an already opened pool.
func NewClientFromDB(db *sql.DB) *Client {
	return &Client{db: db}
}

func configurePool(db *sql.DB, cfg *config.DatabaseConfig) {
	maxOpen := cfg.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = 10
	}
	maxIdle := cfg.MaxIdleConns
	if maxIdle <= 0 || maxIdle > maxOpen {
		maxIdle = maxOpen / 2
	}
	lifetime := cfg.ConnMaxLifetime
	if lifetime <= 0 {
		lifetime = 5 * time.Minute
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(lifetime)
}

// DB exposes the pool to the adapters.
func (c *Client) DB() *sql.DB {
	return c.db
}

func (c *Client) Close() error {
	return c.db.Close()
}

// Ping backs the readiness check.
func (c *Client) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}
