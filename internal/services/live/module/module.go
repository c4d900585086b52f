// Package module wires the live hub as a modkit.Module
package module

import (
	"net/http"

	"mural/internal/modkit"
	"mural/internal/modkit/httpkit"
	str "mural/internal/platform/strings"

	bdomain "mural/internal/services/board/domain"
	livehttp "mural/internal/services/live/http"
	"mural/internal/services/live/service"
)

// Ports exposed by the live module
type Ports struct {
	// Events is the hub as the board sees it
	Events bdomain.EventsPort
}

// Module implements the live service module
// the hub itself is constructed by the caller so it can be injected into the
// board module before either module mounts
type Module struct {
	deps   modkit.Deps
	name   string
	prefix string
	mws    []func(http.Handler) http.Handler
	hub    *service.Hub
}

// New wraps an existing hub as a module
func New(deps modkit.Deps, hub *service.Hub, opts ...modkit.Option) *Module {
	if hub == nil {
		panic("live: nil hub")
	}
	b := modkit.Build(append([]modkit.Option{
		modkit.WithName("live"),
		modkit.WithPrefix("/live"),
	}, opts...)...)

	return &Module{
		deps:   deps,
		name:   b.Name,
		prefix: b.Prefix,
		mws:    b.Mw,
		hub:    hub,
	}
}

// Hub returns the wrapped hub
func (m *Module) Hub() *service.Hub { return m.hub }

// MountRoutes implements modkit.Module
func (m *Module) MountRoutes(r httpkit.Router) {
	r.Route(m.prefix, func(rr httpkit.Router) {
		for _, mw := range m.mws {
			rr.Use(mw)
		}
		livehttp.Register(rr, m.hub)
	})
}

// Name implements modkit.Module
func (m *Module) Name() string { return str.MustString(m.name, "live") }

// Prefix implements modkit.Module
func (m *Module) Prefix() string { return str.MustPrefix(m.prefix) }

// Ports implements modkit.Module
func (m *Module) Ports() any { return Ports{Events: m.hub} }
