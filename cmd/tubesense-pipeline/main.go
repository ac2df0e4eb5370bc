// Command tubesense-pipeline collects, stages, publishes and loads in one process
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"tubesense/internal/adapters/blobsink"
	"tubesense/internal/core/rulepack"
	"tubesense/internal/core/version"
	"tubesense/internal/modkit"
	"tubesense/internal/modkit/module"
	"tubesense/internal/platform/config"
	"tubesense/internal/platform/logger"
	"tubesense/internal/platform/metrics"
	"tubesense/internal/platform/store"
	"tubesense/internal/services/pipeline"

	collectmod "tubesense/internal/services/collect/module"
	loadmod "tubesense/internal/services/load/module"
	stagemod "tubesense/internal/services/stage/module"
)

func mustSetEnv(key, val string) {
	if val != "" {
		_ = os.Setenv(key, val)
	}
}

func main() { os.Exit(run()) }

func run() int {
	var (
		fRegions  = flag.String("regions", "", "comma separated ISO 3166 regions (CORE_COLLECT_REGIONS)")
		fKeywords = flag.String("keywords", "", "comma separated search keywords (CORE_COLLECT_SEARCH_KEYWORDS)")
		fPer      = flag.Int("per-keyword", 0, "videos per region and keyword (CORE_COLLECT_VIDEOS_PER_KEYWORD)")
		fBudget   = flag.Int("budget", -1, "quota units this run may spend (CORE_COLLECT_QUOTA_BUDGET)")
		fDryRun   = flag.Bool("dry-run", false, "cap the run at a handful of items")
		fBlob     = flag.String("blob", "", "blob sink url (SERVICE_BLOB_URL)")
		fWorkers  = flag.Int("workers", 0, "concurrent region/keyword pairs (CORE_COLLECT_WORKERS)")
		fVersion  = flag.Bool("version", false, "print version and exit")
	)
	flag.Parse()
	if *fVersion {
		fmt.Println(version.Info("tubesense-pipeline").String())
		return 0
	}

	// surface flags to modules that read FromConfig
	mustSetEnv("CORE_COLLECT_REGIONS", *fRegions)
	mustSetEnv("CORE_COLLECT_SEARCH_KEYWORDS", *fKeywords)
	if *fPer > 0 {
		mustSetEnv("CORE_COLLECT_VIDEOS_PER_KEYWORD", strconv.Itoa(*fPer))
	}
	if *fBudget >= 0 {
		mustSetEnv("CORE_COLLECT_QUOTA_BUDGET", strconv.Itoa(*fBudget))
	}
	if *fDryRun {
		mustSetEnv("CORE_COLLECT_DRY_RUN", "1")
	}
	if *fWorkers > 0 {
		mustSetEnv("CORE_COLLECT_WORKERS", strconv.Itoa(*fWorkers))
	}
	mustSetEnv("SERVICE_BLOB_URL", *fBlob)

	opt := logger.FromEnv()
	if opt.Component == "" {
		opt.Component = "pipeline"
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

	st, err := store.OpenFromEnv(ctx, root, "pipeline", loadmod.FromConfig(root).Mirror)
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
		return pipeline.ExitStageWrite
	}
	defer func() { _ = sink.Close() }()

	pack, err := rulepack.Load()
	if err != nil {
		l.Error().Err(err).Msg("rule pack invalid")
		return pipeline.ExitFailure
	}

	cm, err := collectmod.New(ctx, deps, nil, pack)
	if err != nil {
		l.Error().Err(err).Msg("collect module")
		return pipeline.ExitFailure
	}
	sm := stagemod.New(deps, sink)
	lm, err := loadmod.New(ctx, deps, sink, pack)
	if err != nil {
		l.Error().Err(err).Msg("load module")
		return pipeline.ExitLoad
	}
	for _, mod := range []module.Module{cm, sm, lm} {
		module.RegisterModule(mod)
	}

	runner := &pipeline.Runner{
		Collector: module.MustPortsOf[collectmod.Ports](cm).Collector,
		Stager:    module.MustPortsOf[stagemod.Ports](sm).Stager,
		Loader:    module.MustPortsOf[loadmod.Ports](lm).Loader,
		Rules:     pack.Ref(),
		Metrics:   m,
	}
	rep, err := runner.Run(ctx, cm.Options().Run())
	code := pipeline.ExitCode(rep, err)

	ev := l.Info()
	if err != nil {
		ev = l.Error().Err(err)
	}
	ev.Str("run_id", rep.Summary.RunID).
		Int("emitted", rep.Summary.Emitted).
		Bool("truncated", rep.Summary.Truncated).
		Int("units", rep.Summary.Units).
		Int("batches", len(rep.Batches)).
		Int("loaded", len(rep.Loaded)).
		Str("manifest", rep.ManifestKey).
		Int("exit", code).
		Msg("pipeline: run finished")
	if w := rep.Warehouse; w != nil {
		for _, s := range w.Split {
			l.Info().Str("day", w.Day).Str("region", s.Region).
				Int64("positive", s.Positive).Int64("negative", s.Negative).Int64("mixed", s.Mixed).
				Msg("pipeline: sentiment split")
		}
	}
	return code
}
