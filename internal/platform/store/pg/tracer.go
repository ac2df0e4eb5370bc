package pg

import (
	"context"
	"strings"

	"tubesense/internal/platform/logger"

	"github.com/rs/zerolog"
)

// QueryEvent describes one statement round trip
type QueryEvent struct {
	SQL       string
	Args      any
	ElapsedUS int64
	Err       error
	Slow      bool
}

// QueryTracer receives QueryEvents from the store adapters
type QueryTracer interface {
	OnQuery(ctx context.Context, ev QueryEvent)
}

// Tracer logs every statement regardless of the root level; slow ones at warn
func Tracer(root logger.Logger) QueryTracer {
	ll := root.Level(zerolog.DebugLevel).With().Str("component", "pg").Logger()
	return &zlTracer{log: ll}
}

type zlTracer struct{ log logger.Logger }

func (z *zlTracer) OnQuery(ctx context.Context, ev QueryEvent) {
	evt := z.log.Info()
	if ev.Err != nil {
		evt = z.log.Error()
	} else if ev.Slow {
		evt = z.log.Warn()
	}
	if run := logger.RunID(ctx); run != "" {
		evt = evt.Str("run_id", run)
	}
	evt.Float64("elapsed_ms", float64(ev.ElapsedUS)/1000.0).
		Bool("slow", ev.Slow).
		Str("sql", compact(ev.SQL)).
		Interface("args", ev.Args).
		Err(ev.Err).
		Msg("pg query")
}

// compact collapses whitespace runs so multi-line statements log on one line
func compact(s string) string { return strings.Join(strings.Fields(s), " ") }
