// Command tubesense-load loads every staged batch the warehouse ledger has not seen
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tubesense/internal/adapters/blobsink"
	"tubesense/internal/core/rulepack"
	"tubesense/internal/modkit"
	"tubesense/internal/modkit/module"
	"tubesense/internal/platform/config"
	"tubesense/internal/platform/logger"
	"tubesense/internal/platform/metrics"
	"tubesense/internal/platform/store"
	ptime "tubesense/internal/platform/time"
	"tubesense/internal/services/pipeline"

	loadmod "tubesense/internal/services/load/module"
)

func mustSetEnv(key, val string) {
	if val != "" {
		_ = os.Setenv(key, val)
	}
}

func main() { os.Exit(run()) }

func run() int {
	var (
		fBlob   = flag.String("blob", "", "blob sink url (SERVICE_BLOB_URL)")
		fPrefix = flag.String("prefix", "", "staged key prefix to scan (CORE_LOAD_PENDING_PREFIX)")
		fDay    = flag.String("day", "", "summary day YYYY-MM-DD, default today UTC")
		fMirror = flag.Bool("ch-mirror", false, "mirror recomputed aggregates into clickhouse (CORE_LOAD_CH_MIRROR)")
	)
	flag.Parse()
	mustSetEnv("SERVICE_BLOB_URL", *fBlob)
	mustSetEnv("CORE_LOAD_PENDING_PREFIX", *fPrefix)
	if *fMirror {
		mustSetEnv("CORE_LOAD_CH_MIRROR", "1")
	}

	opt := logger.FromEnv()
	if opt.Component == "" {
		opt.Component = "load"
	}
	logger.Init(opt)
	l := logger.Get()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := config.New()
	m := metrics.New()
	defer func() {
		if err := m.WriteTextfile(root.Prefix("CORE_METRICS_").MayString("TEXTFILE", "")); err != nil {
			l.Error().Err(err).Msg("write metrics textfile")
		}
	}()

	opts := loadmod.FromConfig(root)
	st, err := store.OpenFromEnv(ctx, root, "load", opts.Mirror)
	if err != nil {
		l.Error().Err(err).Msg("store open failed")
		return pipeline.ExitLoad
	}
	defer func() {
		if err := st.Close(context.Background()); err != nil {
			l.Error().Err(err).Msg("failed to close store")
		}
	}()
	deps := modkit.FromStore(st, root, m)

	sink, err := blobsink.OpenFromConfig(ctx, root)
	if err != nil {
		l.Error().Err(err).Msg("blob sink open failed")
		return pipeline.ExitLoad
	}
	defer func() { _ = sink.Close() }()

	lm, err := loadmod.New(ctx, deps, sink, rulepack.MustLoad())
	if err != nil {
		l.Error().Err(err).Msg("load module")
		return pipeline.ExitLoad
	}
	loader := module.MustPortsOf[loadmod.Ports](lm).Loader

	results, err := loader.LoadPending(ctx, opts.PendingPrefix)
	var rows, dup int
	for _, r := range results {
		rows += r.Rows
		dup += r.RowsSkippedDuplicate
	}
	if err != nil {
		l.Error().Err(err).Int("loaded", len(results)).Msg("load: stopped on failed batch")
		return pipeline.ExitLoad
	}
	m.Finished(time.Now())

	day := *fDay
	if day == "" {
		day = ptime.DayString(time.Now())
	}
	sum, err := loader.Summary(ctx, day)
	if err != nil {
		l.Warn().Err(err).Msg("load: summary unavailable")
	}
	l.Info().
		Int("batches", len(results)).
		Int("rows", rows).
		Int("skipped_duplicate", dup).
		Int64("videos", sum.Videos).
		Int64("channels", sum.Channels).
		Int64("aggregates", sum.Aggregates).
		Int64("ledger", sum.Batches).
		Str("day", day).
		Msg("load: done")
	for _, s := range sum.Split {
		l.Info().Str("day", day).Str("region", s.Region).
			Int64("positive", s.Positive).Int64("negative", s.Negative).Int64("mixed", s.Mixed).
			Msg("load: sentiment split")
	}
	return pipeline.ExitOK
}
