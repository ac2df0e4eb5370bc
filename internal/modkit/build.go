package modkit

import (
	"net/http"

	phttp "tubesense/internal/platform/net/http"
)

// Built is a plain struct with the fields modules care about
type Built struct {
	Name   string
	Prefix string
	Mw     []func(http.Handler) http.Handler
	Ports  any

	Subrouter func(phttp.Router) phttp.Router
	Register  func(phttp.Router)
}

// Build applies Option funcs and returns a plain struct with defaulted hooks
func Build(opts ...Option) Built {
	var c buildCfg
	for _, o := range opts {
		o(&c)
	}
	if c.subrouter == nil {
		c.subrouter = func(r phttp.Router) phttp.Router { return r }
	}
	if c.register == nil {
		c.register = func(phttp.Router) {}
	}
	return Built{
		Name:      c.name,
		Prefix:    c.prefix,
		Mw:        append([]func(http.Handler) http.Handler(nil), c.mw...),
		Ports:     c.ports,
		Subrouter: c.subrouter,
		Register:  c.register,
	}
}

// Mount mounts register under b.Prefix with b's middlewares and hooks applied
// an empty prefix mounts on r directly
func (b Built) Mount(r phttp.Router, register func(phttp.Router)) {
	apply := func(rr phttp.Router) {
		if len(b.Mw) > 0 {
			rr.Use(b.Mw...)
		}
		rr = b.Subrouter(rr)
		register(rr)
		b.Register(rr)
	}
	if b.Prefix == "" {
		apply(r)
		return
	}
	r.Route(b.Prefix, apply)
}
