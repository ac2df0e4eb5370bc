// Package module wires the warehouse loader into a modkit module
package module

import (
	"context"

	"tubesense/internal/core/rulepack"
	"tubesense/internal/modkit"
	"tubesense/internal/modkit/repokit"
	perr "tubesense/internal/platform/errors"
	"tubesense/internal/platform/logger"
	phttp "tubesense/internal/platform/net/http"
	"tubesense/internal/services/load/domain"
	"tubesense/internal/services/load/repo"
	"tubesense/internal/services/load/service"
	stagedom "tubesense/internal/services/stage/domain"
)

// Ports defines the load module ports
type Ports struct {
	Loader domain.LoaderPort
	Reader domain.ReaderPort
}

// Module implements the load module
type Module struct {
	deps  modkit.Deps
	opts  Options
	ports Ports

	// Memory is set when no postgres is wired and loads stay in process
	Memory *repo.Memory
}

// New constructs the load module. Without deps.PG the loader runs against an
// in-memory warehouse; nil pack loads the embedded rule pack
func New(ctx context.Context, deps modkit.Deps, sink stagedom.Sink, pack *rulepack.Pack) (*Module, error) {
	opts := FromConfig(deps.Cfg)
	if pack == nil {
		p, err := rulepack.Load()
		if err != nil {
			return nil, err
		}
		pack = p
	}

	m := &Module{deps: deps, opts: opts}
	var (
		db     repokit.TxRunner
		binder repokit.Binder[domain.WarehouseRepo]
	)
	if deps.HasPG() {
		if opts.Migrate {
			if _, err := repo.Migrate(ctx, deps.PG); err != nil {
				return nil, perr.FromPostgres(err, "migrate warehouse")
			}
		}
		db = repokit.WithBeginHooks(deps.PG, repokit.SetLocal("lock_timeout", opts.LockTimeout))
		binder = repo.NewPG()
	} else {
		logger.C(ctx).Warn().Msg("load: no postgres configured, using in-memory warehouse")
		m.Memory = repo.NewMemory()
		db, binder = m.Memory, m.Memory
	}

	svc := service.New(db, binder, sink, pack.Categories(), service.Config{
		MaxTries:  uint(max(opts.MaxTries, 1)),
		RetryBase: opts.RetryBase,
		RetryMax:  opts.RetryMax,
	}, deps.Metrics)

	if opts.Mirror {
		if !deps.HasCH() {
			return nil, perr.InvalidArgf("load: CORE_LOAD_CH_MIRROR set but clickhouse is not enabled")
		}
		mir := repo.NewCHMirror(deps.CH)
		if err := mir.Ensure(ctx); err != nil {
			return nil, perr.Wrap(err, perr.ErrorCodeUnavailable, "ensure clickhouse mirror")
		}
		svc.Mirror = mir
	}

	m.ports = Ports{Loader: svc, Reader: svc}
	return m, nil
}

// Options returns the options the module was built with
func (m *Module) Options() Options { return m.opts }

// Name returns the module name
func (m *Module) Name() string { return "load" }

// Ports returns the module ports
func (m *Module) Ports() any { return m.ports }

// MountRoutes is a no-op; the ops api serves warehouse reads
func (m *Module) MountRoutes(_ phttp.Router) {}
