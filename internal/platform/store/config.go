package store

import "time"

// Config aggregates per backend configuration
type Config struct {
	AppName string

	PG PGConfig
	RD RDConfig
	CH CHConfig
}

// PGConfig configures postgres connectivity and tracing
type PGConfig struct {
	Enabled     bool
	URL         string
	MaxConns    int32
	LogSQL      bool
	SlowQueryMs int

	// Guard/boot knobs:
	ConnectRetries int           // default 20
	PingTimeout    time.Duration // default 3s

	// OpTimeout bounds each statement so a hung postgres cannot stall
	// callers that arrive without their own deadline, default 5s
	OpTimeout time.Duration
}

// RDConfig configures redis connectivity
type RDConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

// CHConfig configures clickhouse connectivity
type CHConfig struct {
	Enabled bool
	URL     string
}
