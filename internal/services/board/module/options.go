package module

import (
	"time"

	"mural/internal/platform/config"
	"mural/internal/services/board/domain"
)

// Options holds configuration settings for the board module
type Options struct {
	TTL             time.Duration
	MaxActive       int
	MaxPayloadBytes int64
	Backend         string
	RetryAttempts   int
	RetryBackoff    time.Duration
}

// FromConfig reads configuration settings from the config.Conf
func FromConfig(cfg config.Conf) Options {
	bf := cfg.Prefix("MURAL_BOARD_")
	return Options{
		TTL:             bf.MayDuration("TTL", domain.DefaultTTL),
		MaxActive:       bf.MayInt("MAX_ACTIVE", domain.DefaultMaxActive),
		MaxPayloadBytes: bf.MayInt64("MAX_PAYLOAD_BYTES", domain.DefaultMaxPayloadBytes),
		Backend:         bf.MayEnum("STORE", "memory", "memory", "postgres", "redis"),
		RetryAttempts:   bf.MayInt("RETRY_ATTEMPTS", 3),
		RetryBackoff:    bf.MayDuration("RETRY_BACKOFF", 100*time.Millisecond),
	}
}

// Domain converts the options to the domain invariants
func (o Options) Domain() domain.Config {
	return domain.Config{
		TTL:             o.TTL,
		MaxActive:       o.MaxActive,
		MaxPayloadBytes: o.MaxPayloadBytes,
	}
}
