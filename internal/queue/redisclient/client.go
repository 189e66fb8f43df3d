package redisclient

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Client owns the process-wide Redis connection shared by the oauth2 state
// store, the audit queue and readiness checks.
type Client struct {
	rdb redis.UniversalClient
}

type Config struct {
	Addr     string
	Password string
	DB       int
	// ReadTimeout must exceed the worker's BRPOP wait.
	ReadTimeout time.Duration
}

func New(cfg Config) *Client {
	readTimeout := cfg.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = 2 * time.Second
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  readTimeout,
		WriteTimeout: 2 * time.Second,
	})

	return &Client{rdb: rdb}
}

// Connect builds the client and fails if Redis does not answer a ping.
func Connect(ctx context.Context, cfg Config) (*Client, error) {
	c := New(cfg)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	if err := c.Ping(pingCtx); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}

	return c, nil
}

func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func (c *Client) Close() error {
	return c.rdb.Close()
}

func (c *Client) Raw() redis.UniversalClient {
	return c.rdb
}
