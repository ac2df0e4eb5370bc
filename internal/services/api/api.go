// Package api mounts the read only ops API
package api

import (
	"context"
	"net/http"
	"time"

	"tubesense/internal/core/rulepack"
	"tubesense/internal/modkit"
	"tubesense/internal/modkit/httpkit"
	"tubesense/internal/modkit/module"
	"tubesense/internal/platform/config"
	phttp "tubesense/internal/platform/net/http"
	"tubesense/internal/platform/net/middleware"
	"tubesense/internal/platform/store"

	classifymod "tubesense/internal/services/api/classify/module"
	metahttp "tubesense/internal/services/api/meta/http"
	metamod "tubesense/internal/services/api/meta/module"
	statsmod "tubesense/internal/services/api/stats/module"
	loaddom "tubesense/internal/services/load/domain"
	stagedom "tubesense/internal/services/stage/domain"
)

// Options are the API options
type Options struct {
	// Config is the CORE_API_ view
	Config  config.Conf
	Deps    modkit.Deps
	Reader  loaddom.ReaderPort
	Rules   *rulepack.Pack
	Sink    stagedom.Sink
	Service string
}

// Mount mounts the API onto r: health checks and /metrics at the root, warehouse
// reads and classification under /api/v1
func Mount(r phttp.Router, opt Options) {
	if opt.Service == "" {
		opt.Service = "tubesense-api"
	}
	timeout := opt.Config.MayDuration("TIMEOUT", 15*time.Second)

	r.Use(opt.Deps.Metrics.Middleware)
	r.Use(middleware.Defaults(timeout)...)

	meta := metamod.New(opt.Service, Checks(opt.Deps, opt.Sink))
	meta.MountRoutes(r)
	module.RegisterModule(meta)
	if opt.Deps.Metrics != nil {
		r.Handle("/metrics", opt.Deps.Metrics.Handler())
	}

	mods := []modkit.Module{
		statsmod.New(opt.Reader),
		classifymod.New(opt.Rules),
	}
	cors := middleware.CORS(middleware.CORSOptions{
		AllowedOrigins: opt.Config.MayCSV("CORS_ORIGINS", nil),
		MaxAge:         300,
	})
	httpkit.MountAPIV1(r, []func(http.Handler) http.Handler{cors}, func(api httpkit.Router) {
		for _, m := range mods {
			// register each module's ports under its own name for cross module lookups
			module.Register(m.Name(), m.Ports())
			m.MountRoutes(api)
		}
	})
}

// Checks builds the readiness checks for the wired backends. An unwired
// backend is reported as skipped
func Checks(deps modkit.Deps, sink stagedom.Sink) []metahttp.Check {
	pg := metahttp.Check{Name: "pg"}
	if p, ok := deps.PG.(store.Pinger); ok {
		pg.Ping = p.Ping
	}
	ch := metahttp.Check{Name: "ch"}
	if p, ok := deps.CH.(store.Pinger); ok {
		ch.Ping = p.Ping
	}
	blob := metahttp.Check{Name: "blob"}
	if sink != nil {
		blob.Ping = func(ctx context.Context) error {
			_, err := sink.List(ctx, stagedom.ManifestPrefix)
			return err
		}
	}
	return []metahttp.Check{pg, ch, blob}
}
