// Package module wires the stager into a modkit module
package module

import (
	"tubesense/internal/modkit"
	phttp "tubesense/internal/platform/net/http"
	"tubesense/internal/services/stage/domain"
	"tubesense/internal/services/stage/service"
)

// Ports defines the stage module ports
type Ports struct {
	Stager domain.StagerPort
}

// Module implements the stage module
type Module struct {
	deps  modkit.Deps
	ports Ports
}

// New constructs the stage module over sink
func New(deps modkit.Deps, sink domain.Sink) *Module {
	opts := FromConfig(deps.Cfg)
	svc := service.New(sink, service.Config{
		BatchSize: opts.BatchSize,
		MaxTries:  uint(max(opts.MaxTries, 1)),
		RetryBase: opts.RetryBase,
		RetryMax:  opts.RetryMax,
	}, deps.Metrics)
	return &Module{deps: deps, ports: Ports{Stager: svc}}
}

// Name returns the module name
func (m *Module) Name() string { return "stage" }

// Ports returns the module ports
func (m *Module) Ports() any { return m.ports }

// MountRoutes is a no-op as stage has no routes
func (m *Module) MountRoutes(_ phttp.Router) {}
