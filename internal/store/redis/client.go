// Package redis holds the Redis-backed pieces of the system: a read-through
// cache in front of settings resolution and the cycle-event channel that
// fans trade-cycle changes out to API instances. Every call goes through a
// CircuitBreaker.
package redis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/go-redis/redis/v8"
)

// Config configures the Redis connection.
type Config struct {
	Addr     string // Redis address, e.g. "localhost:6379"
	Password string
	DB       int

	// Breaker tuning; zero values use 5 failures / 10s.
	MaxFailures  int
	ResetTimeout time.Duration
}

// Client is a go-redis client guarded by a circuit breaker.
type Client struct {
	rdb     *goredis.Client
	breaker *CircuitBreaker
}

// New connects to Redis and pings the server.
func New(cfg Config) (*Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	slog.Info("redis connected", "addr", cfg.Addr)
	return NewFromClient(rdb, cfg.MaxFailures, cfg.ResetTimeout), nil
}

// NewFromClient wraps an existing go-redis client without pinging it.
func NewFromClient(rdb *goredis.Client, maxFailures int, resetTimeout time.Duration) *Client {
	if maxFailures <= 0 {
		maxFailures = 5
	}
	if resetTimeout <= 0 {
		resetTimeout = 10 * time.Second
	}
	return &Client{rdb: rdb, breaker: NewCircuitBreaker(maxFailures, resetTimeout)}
}

// Redis returns the underlying go-redis client for health checks.
func (c *Client) Redis() *goredis.Client { return c.rdb }

// Breaker exposes the circuit breaker so callers can observe transitions.
func (c *Client) Breaker() *CircuitBreaker { return c.breaker }

// Ping checks the server through the breaker.
func (c *Client) Ping(ctx context.Context) error {
	return c.breaker.Execute(ctx, func(ctx context.Context) error {
		return c.rdb.Ping(ctx).Err()
	})
}

// Close closes the connection pool.
func (c *Client) Close() error {
	return c.rdb.Close()
}
