// Package module wires the board service as a modkit.Module
package module

import (
	"context"
	"net/http"

	"mural/internal/modkit"
	"mural/internal/modkit/httpkit"
	"mural/internal/modkit/swaggerkit"
	str "mural/internal/platform/strings"

	"mural/internal/services/board/domain"
	boardhttp "mural/internal/services/board/http"
	"mural/internal/services/board/repo"
	"mural/internal/services/board/service"
)

// Ports exposed by the board module
type Ports struct {
	Ingest  domain.IngestPort
	Reader  domain.ReaderPort
	Janitor domain.JanitorPort
}

// InPorts are cross module dependencies injected via modkit.WithPorts
type InPorts struct {
	// Events receives the fan-out of board mutations, usually the live hub
	Events domain.EventsPort
}

// Module implements the board service module
type Module struct {
	deps   modkit.Deps
	name   string
	prefix string
	mws    []func(http.Handler) http.Handler
	ports  Ports
	opts   Options

	register func(httpkit.Router)
}

// New constructs the board module, selecting the store backend from config
func New(deps modkit.Deps, opts ...modkit.Option) *Module {
	b := modkit.Build(append([]modkit.Option{
		modkit.WithName("board"),
		modkit.WithPrefix("/board"),
	}, opts...)...)

	o := FromConfig(deps.Cfg)
	swaggerkit.Register(specLimits(o))

	var events domain.EventsPort
	if in, ok := b.Ports.(InPorts); ok {
		events = in.Events
	}

	st := openStorage(deps, o)
	svc := service.New(st, events, deps.CH, service.Config{
		Config:        o.Domain(),
		RetryAttempts: o.RetryAttempts,
		RetryBackoff:  o.RetryBackoff,
	})

	m := &Module{
		deps:   deps,
		name:   b.Name,
		prefix: b.Prefix,
		mws:    b.Mw,
		opts:   o,
	}
	m.ports = Ports{
		Ingest:  svc,
		Reader:  svc,
		Janitor: svc,
	}

	external := b.Register
	m.register = func(r httpkit.Router) {
		boardhttp.Register(r, boardhttp.Deps{
			Ingest:          m.ports.Ingest,
			Reader:          m.ports.Reader,
			MaxPayloadBytes: o.MaxPayloadBytes,
		})
		if external != nil {
			external(r)
		}
	}
	return m
}

// openStorage picks the configured backend, panicking early on missing seams
func openStorage(deps modkit.Deps, o Options) repo.Storage {
	switch o.Backend {
	case "postgres":
		if deps.PG == nil {
			panic("board: postgres backend requires SERVICE_PGSQL to be configured")
		}
		st := repo.NewPG(deps.PG, o.Domain())
		if err := st.EnsureSchema(context.Background()); err != nil {
			panic(err)
		}
		return st
	case "redis":
		if deps.RD == nil {
			panic("board: redis backend requires SERVICE_REDIS to be configured")
		}
		return repo.NewRD(deps.RD.Client(), o.Domain())
	default:
		return repo.NewMemory(o.Domain())
	}
}

// MountRoutes implements modkit.Module
func (m *Module) MountRoutes(r httpkit.Router) {
	r.Route(m.prefix, func(rr httpkit.Router) {
		for _, mw := range m.mws {
			rr.Use(mw)
		}
		if m.register != nil {
			m.register(rr)
		}
	})
}

// Name implements modkit.Module
func (m *Module) Name() string { return str.MustString(m.name, "board") }

// Prefix implements modkit.Module
func (m *Module) Prefix() string { return str.MustPrefix(m.prefix) }

// Ports implements modkit.Module
func (m *Module) Ports() any { return m.ports }
