// Package module wires warehouse reads into the API using modkit
package module

import (
	"tubesense/internal/modkit"
	phttp "tubesense/internal/platform/net/http"
	statshttp "tubesense/internal/services/api/stats/http"
	statssvc "tubesense/internal/services/api/stats/service"
	loaddom "tubesense/internal/services/load/domain"
)

// Ports exposes the stats service to other modules
type Ports struct {
	Stats statssvc.Service
}

// Module implements the stats module
type Module struct {
	b     modkit.Built
	ports Ports
}

// New constructs the stats module over the loader's read port.
// Without WithPrefix the routes are /batches and /aggregates/daily
func New(reader loaddom.ReaderPort, opts ...modkit.Option) *Module {
	b := modkit.Build(append([]modkit.Option{modkit.WithName("stats")}, opts...)...)
	return &Module{b: b, ports: Ports{Stats: statssvc.New(reader)}}
}

// MountRoutes mounts the module routes on the given router
func (m *Module) MountRoutes(r phttp.Router) {
	m.b.Mount(r, func(rr phttp.Router) { statshttp.Register(rr, m.ports.Stats) })
}

// Name returns the module name
func (m *Module) Name() string { return m.b.Name }

// Ports returns the module ports
func (m *Module) Ports() any { return m.ports }
