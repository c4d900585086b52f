package store

import (
	"context"
	"fmt"
	"time"

	chx "mural/internal/platform/store/ch"
	"mural/internal/platform/store/pg"
	rdx "mural/internal/platform/store/rd"
)

// openPG opens pg and wraps it with our sql adapter
func openPG(ctx context.Context, cfg Config, s *Store) (TxRunner, error) {
	var tracer pg.QueryTracer
	if cfg.PG.LogSQL {
		tracer = pg.Tracer(s.Log)
	}

	opTimeout := cfg.PG.OpTimeout
	if opTimeout <= 0 {
		opTimeout = 5 * time.Second
	}

	p, err := pg.Open(ctx, pg.Config{
		URL:       cfg.PG.URL,
		MaxConns:  cfg.PG.MaxConns,
		SlowMs:    cfg.PG.SlowQueryMs,
		OpTimeout: opTimeout,
	}, tracer, nil)
	if err != nil {
		return nil, err
	}

	// Connection guardrails: ping with retry/backoff using the *pool* directly
	maxAttempts := cfg.PG.ConnectRetries
	if maxAttempts <= 0 {
		maxAttempts = 20
	}
	pingTimeout := cfg.PG.PingTimeout
	if pingTimeout <= 0 {
		pingTimeout = 3 * time.Second
	}
	const (
		backoffStart   = 150 * time.Millisecond
		backoffCeiling = 2 * time.Second
	)

	var lastErr error
	backoff := backoffStart
	for i := 0; i < maxAttempts; i++ {
		toCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		lastErr = p.Pool.Ping(toCtx) // no adapter, no SQL trace line
		cancel()

		if lastErr == nil {
			a := newPGAdapter(p) // publish adapter only after the pool is healthy
			s.PG = a
			return a, nil
		}
		if ctx.Err() != nil {
			p.Close() // close the pool we opened
			return nil, ctx.Err()
		}
		time.Sleep(backoff)
		if backoff < backoffCeiling {
			backoff *= 2
			if backoff > backoffCeiling {
				backoff = backoffCeiling
			}
		}
	}

	p.Close()
	return nil, fmt.Errorf("postgres ping failed after %d attempts: %w", maxAttempts, lastErr)
}

func openRD(ctx context.Context, cfg Config, _ *Store) (Redis, error) {
	r, err := rdx.Open(ctx, rdx.Config{
		Addr:     cfg.RD.Addr,
		Password: cfg.RD.Password,
		DB:       cfg.RD.DB,
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

func openCH(ctx context.Context, cfg Config, _ *Store) (Analytics, error) {
	c, err := chx.Open(ctx, chx.Config{URL: cfg.CH.URL, AppName: cfg.AppName})
	if err != nil {
		return nil, err
	}
	return c, nil
}
