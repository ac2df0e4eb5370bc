// Package module wires dry run classification into the API
package module

import (
	"tubesense/internal/core/rulepack"
	"tubesense/internal/modkit"
	phttp "tubesense/internal/platform/net/http"
	classifyhttp "tubesense/internal/services/api/classify/http"
	classifysvc "tubesense/internal/services/api/classify/service"
)

// Ports exposes the classify service
type Ports struct {
	Classifier classifysvc.Service
}

// Module implements the classify module
type Module struct {
	b     modkit.Built
	ports Ports
}

// New constructs the classify module over pack
func New(pack *rulepack.Pack, opts ...modkit.Option) *Module {
	b := modkit.Build(append([]modkit.Option{modkit.WithName("classify")}, opts...)...)
	return &Module{b: b, ports: Ports{Classifier: classifysvc.New(pack)}}
}

// MountRoutes mounts POST /classify
func (m *Module) MountRoutes(r phttp.Router) {
	m.b.Mount(r, func(rr phttp.Router) { classifyhttp.Register(rr, m.ports.Classifier) })
}

// Name returns the module name
func (m *Module) Name() string { return m.b.Name }

// Ports returns the module ports
func (m *Module) Ports() any { return m.ports }
