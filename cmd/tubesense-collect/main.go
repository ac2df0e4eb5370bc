// Command tubesense-collect runs the collector and stages its output without loading
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"tubesense/internal/adapters/blobsink"
	"tubesense/internal/core/rulepack"
	"tubesense/internal/modkit"
	"tubesense/internal/modkit/module"
	"tubesense/internal/platform/config"
	"tubesense/internal/platform/logger"
	"tubesense/internal/platform/metrics"
	"tubesense/internal/services/pipeline"

	collectmod "tubesense/internal/services/collect/module"
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
		fBudget   = flag.Int("budget", -1, "quota units this run may spend (CORE_COLLECT_QUOTA_BUDGET)")
		fDryRun   = flag.Bool("dry-run", false, "cap the run at a handful of items")
		fBlob     = flag.String("blob", "", "blob sink url (SERVICE_BLOB_URL)")
		fBatch    = flag.Int("batch-size", 0, "items per staged batch (CORE_STAGE_BATCH_SIZE)")
	)
	flag.Parse()

	mustSetEnv("CORE_COLLECT_REGIONS", *fRegions)
	mustSetEnv("CORE_COLLECT_SEARCH_KEYWORDS", *fKeywords)
	if *fBudget >= 0 {
		mustSetEnv("CORE_COLLECT_QUOTA_BUDGET", strconv.Itoa(*fBudget))
	}
	if *fDryRun {
		mustSetEnv("CORE_COLLECT_DRY_RUN", "1")
	}
	if *fBatch > 0 {
		mustSetEnv("CORE_STAGE_BATCH_SIZE", strconv.Itoa(*fBatch))
	}
	mustSetEnv("SERVICE_BLOB_URL", *fBlob)

	opt := logger.FromEnv()
	if opt.Component == "" {
		opt.Component = "collect"
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
	deps := modkit.FromStore(nil, root, m)

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

	runner := &pipeline.Runner{
		Collector: module.MustPortsOf[collectmod.Ports](cm).Collector,
		Stager:    module.MustPortsOf[stagemod.Ports](sm).Stager,
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
		Int("units", rep.Summary.Units).
		Bool("truncated", rep.Summary.Truncated).
		Int("batches", len(rep.Batches)).
		Str("manifest", rep.ManifestKey).
		Int("exit", code).
		Msg("collect: run staged")
	return code
}
