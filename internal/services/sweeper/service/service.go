// Package service implements the periodic eviction scheduler
package service

import (
	"context"
	"time"

	"mural/internal/platform/logger"
	bdomain "mural/internal/services/board/domain"
)

// DefaultInterval between eviction cycles
const DefaultInterval = 5 * time.Minute

// Config controls sweep cadence
type Config struct {
	Interval time.Duration
}

// Service drives the janitor on a fixed interval
// advisory only: reads enforce TTL and capacity on their own
type Service struct {
	log      logger.Logger
	janitor  bdomain.JanitorPort
	interval time.Duration
}

// New constructs the sweeper
func New(log logger.Logger, janitor bdomain.JanitorPort, cfg Config) *Service {
	if janitor == nil {
		panic("sweeper.Service requires a non nil JanitorPort")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	return &Service{log: log, janitor: janitor, interval: cfg.Interval}
}

// Run sweeps once at startup and then on every tick until ctx is done
// a failed cycle is logged and retried next tick, never fatal
func (s *Service) Run(ctx context.Context) error {
	s.sweep(ctx)

	t := time.NewTicker(s.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			s.sweep(ctx)
		}
	}
}

// SweepOnce runs a single cycle, used by the offline maintenance binary
func (s *Service) SweepOnce(ctx context.Context) ([]string, error) {
	return s.janitor.Sweep(ctx)
}

func (s *Service) sweep(ctx context.Context) {
	start := time.Now()
	removed, err := s.janitor.Sweep(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("sweeper: cycle failed, will retry next tick")
		return
	}
	if len(removed) > 0 {
		s.log.Info().
			Int("removed", len(removed)).
			Dur("took", time.Since(start)).
			Msg("sweeper: evicted notes")
	}
}
