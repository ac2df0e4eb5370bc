// Package modkit provides module wiring and core deps
package modkit

import (
	"tubesense/internal/modkit/repokit"
	"tubesense/internal/platform/config"
	"tubesense/internal/platform/logger"
	"tubesense/internal/platform/metrics"
	"tubesense/internal/platform/store"
)

// Deps holds core dependencies passed to modules
// this is wiring only and does not introduce new abstractions
type Deps struct {
	Log     logger.Logger
	Cfg     config.Conf
	PG      repokit.TxRunner
	CH      store.Clickhouse
	Metrics *metrics.Pipeline
}

// FromStore copies the opened backends of st into a Deps value
func FromStore(st *store.Store, cfg config.Conf, m *metrics.Pipeline) Deps {
	if st == nil {
		return Deps{Cfg: cfg, Metrics: m}
	}
	return Deps{Log: st.Log, Cfg: cfg, PG: st.PG, CH: st.CH, Metrics: m}
}

// HasPG reports whether a warehouse connection is wired
func (d Deps) HasPG() bool { return d.PG != nil }

// HasCH reports whether the clickhouse mirror is wired
func (d Deps) HasCH() bool { return d.CH != nil }
