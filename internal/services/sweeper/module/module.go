// Package module wires the sweeper as a modkit.Module
package module

import (
	"time"

	"mural/internal/modkit"
	"mural/internal/modkit/httpkit"
	"mural/internal/platform/config"

	bdomain "mural/internal/services/board/domain"
	swsvc "mural/internal/services/sweeper/service"
)

// Options holds configuration settings for the sweeper module
type Options struct {
	Interval time.Duration
}

// FromConfig reads configuration settings from the config.Conf
func FromConfig(cfg config.Conf) Options {
	sf := cfg.Prefix("MURAL_SWEEP_")
	return Options{
		Interval: sf.MayDuration("INTERVAL", swsvc.DefaultInterval),
	}
}

// Ports exposed by the sweeper module
type Ports struct {
	Runner *swsvc.Service
}

// Module implements the sweeper service module, no HTTP surface
type Module struct {
	deps  modkit.Deps
	ports Ports
}

// New constructs the sweeper around the board janitor port
func New(deps modkit.Deps, janitor bdomain.JanitorPort) *Module {
	opts := FromConfig(deps.Cfg)
	svc := swsvc.New(deps.Log, janitor, swsvc.Config{Interval: opts.Interval})

	m := &Module{deps: deps}
	m.ports = Ports{Runner: svc}
	return m
}

// Name implements modkit.Module
func (m *Module) Name() string { return "sweeper" }

// Ports implements modkit.Module
func (m *Module) Ports() any { return m.ports }

// MountRoutes is a no-op: the sweeper has no HTTP routes
func (m *Module) MountRoutes(_ httpkit.Router) {}
