// Package module wires meta endpoints into the API using a tiny module
package module

import (
	"time"

	"tubesense/internal/modkit"
	phttp "tubesense/internal/platform/net/http"
	metahttp "tubesense/internal/services/api/meta/http"
)

// Module implements the modkit.Module interface
type Module struct {
	b    modkit.Built
	deps metahttp.Deps
}

// New constructs a meta module. Routes mount at the router root unless
// WithPrefix is given
func New(service string, checks []metahttp.Check, opts ...modkit.Option) *Module {
	b := modkit.Build(append([]modkit.Option{modkit.WithName("meta")}, opts...)...)
	return &Module{
		b: b,
		deps: metahttp.Deps{
			ServiceName: service,
			StartedAt:   time.Now(),
			Checks:      checks,
		},
	}
}

// MountRoutes implements the modkit.Module interface
func (m *Module) MountRoutes(r phttp.Router) {
	m.b.Mount(r, func(rr phttp.Router) { metahttp.Register(rr, m.deps) })
}

// Name implements the modkit.Module interface
func (m *Module) Name() string { return m.b.Name }

// Ports implements the modkit.Module interface
func (m *Module) Ports() any { return nil }
