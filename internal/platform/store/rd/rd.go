// Package rd provides a Redis client wrapper over go-redis
package rd

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config configures redis connectivity
type Config struct {
	Addr     string
	Password string
	DB       int
}

// RD is a redis client handle
type RD struct {
	rdb *redis.Client
}

// Open creates a client and verifies connectivity with a short ping
func Open(ctx context.Context, cfg Config) (*RD, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	toCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(toCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return &RD{rdb: rdb}, nil
}

// Client exposes the command surface for repos
func (r *RD) Client() redis.Cmdable { return r.rdb }

// Ping verifies redis connectivity, useful for readiness checks
func (r *RD) Ping(ctx context.Context) error { return r.rdb.Ping(ctx).Err() }

// Close closes the underlying connection
func (r *RD) Close() error { return r.rdb.Close() }
