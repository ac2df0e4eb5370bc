// Package module wires the collector into a modkit module
package module

import (
	"context"

	"tubesense/internal/adapters/youtube"
	"tubesense/internal/core/rulepack"
	"tubesense/internal/core/sentiment"
	"tubesense/internal/modkit"
	phttp "tubesense/internal/platform/net/http"
	"tubesense/internal/services/collect/domain"
	"tubesense/internal/services/collect/service"
)

// Ports defines the collect module ports
type Ports struct {
	Collector domain.CollectorPort
}

// Module implements the collect module
type Module struct {
	deps  modkit.Deps
	opts  Options
	ports Ports
}

// New constructs the collect module. A nil src builds the YouTube adapter from
// SERVICE_YOUTUBE_*; nil rules load the embedded pack
func New(ctx context.Context, deps modkit.Deps, src domain.Source, rules sentiment.Rules) (*Module, error) {
	opts := FromConfig(deps.Cfg)

	if src == nil {
		yc, err := youtube.New(ctx, youtube.FromConfig(deps.Cfg))
		if err != nil {
			return nil, err
		}
		src = yc
	}
	if rules == nil {
		pack, err := rulepack.Load()
		if err != nil {
			return nil, err
		}
		rules = pack
	}

	svc := service.New(src, rules, service.Config{
		Workers:     opts.Workers,
		PageTimeout: opts.PageTimeout,
		MaxTries:    uint(max(opts.MaxTries, 1)),
		RetryBase:   opts.RetryBase,
		RetryMax:    opts.RetryMax,
	}, deps.Metrics)

	return &Module{deps: deps, opts: opts, ports: Ports{Collector: svc}}, nil
}

// Options returns the options the module was built with
func (m *Module) Options() Options { return m.opts }

// Name returns the module name
func (m *Module) Name() string { return "collect" }

// Ports returns the module ports
func (m *Module) Ports() any { return m.ports }

// MountRoutes is a no-op as collect has no routes
func (m *Module) MountRoutes(_ phttp.Router) {}
