package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// chiAdapter adapts any chi.Router (the top-level mux included) to Router.
// root keeps the top-level mux so Mux() is stable on subrouters too
type chiAdapter struct {
	root http.Handler
	r    chi.Router
}

// toStd wraps a platform Handler into a stdlib HandlerFunc
func toStd(h Handler) http.HandlerFunc { return http.HandlerFunc(h) }

// AdaptChi adapts a *chi.Mux to a Router
func AdaptChi(m *chi.Mux) Router { return chiAdapter{root: m, r: m} }

func (c chiAdapter) Get(p string, h Handler)     { c.r.Method(http.MethodGet, p, toStd(h)) }
func (c chiAdapter) Post(p string, h Handler)    { c.r.Method(http.MethodPost, p, toStd(h)) }
func (c chiAdapter) Put(p string, h Handler)     { c.r.Method(http.MethodPut, p, toStd(h)) }
func (c chiAdapter) Patch(p string, h Handler)   { c.r.Method(http.MethodPatch, p, toStd(h)) }
func (c chiAdapter) Delete(p string, h Handler)  { c.r.Method(http.MethodDelete, p, toStd(h)) }
func (c chiAdapter) Head(p string, h Handler)    { c.r.Method(http.MethodHead, p, toStd(h)) }
func (c chiAdapter) Options(p string, h Handler) { c.r.Method(http.MethodOptions, p, toStd(h)) }

func (c chiAdapter) Handle(p string, h http.Handler)           { c.r.Handle(p, h) }
func (c chiAdapter) Use(mw ...func(http.Handler) http.Handler) { c.r.Use(mw...) }

func (c chiAdapter) Group(fn func(Router)) {
	c.r.Group(func(sub chi.Router) { fn(chiAdapter{root: c.root, r: sub}) })
}

func (c chiAdapter) Route(pattern string, fn func(Router)) {
	c.r.Route(pattern, func(sub chi.Router) { fn(chiAdapter{root: c.root, r: sub}) })
}

func (c chiAdapter) Mux() http.Handler { return c.root }

// Param reads a chi URL parameter from the request
func Param(r *http.Request, name string) string { return chi.URLParam(r, name) }
