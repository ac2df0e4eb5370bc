// Command tubesense-api serves the read only ops API
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"tubesense/internal/adapters/blobsink"
	"tubesense/internal/core/rulepack"
	"tubesense/internal/modkit"
	"tubesense/internal/modkit/module"
	"tubesense/internal/platform/config"
	"tubesense/internal/platform/logger"
	"tubesense/internal/platform/metrics"
	phttp "tubesense/internal/platform/net/http"
	"tubesense/internal/platform/store"

	"tubesense/internal/services/api"
	loadmod "tubesense/internal/services/load/module"
)

func mustSetEnv(key, val string) {
	if val != "" {
		_ = os.Setenv(key, val)
	}
}

func main() {
	fAddr := flag.String("addr", "", "listen address (CORE_API_ADDR)")
	fBlob := flag.String("blob", "", "blob sink url checked by /readyz (SERVICE_BLOB_URL)")
	flag.Parse()
	mustSetEnv("CORE_API_ADDR", *fAddr)
	mustSetEnv("SERVICE_BLOB_URL", *fBlob)

	opt := logger.FromEnv()
	if opt.Component == "" {
		opt.Component = "api"
	}
	logger.Init(opt)
	l := logger.Get()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := config.New()
	apiCfg := root.Prefix("CORE_API_")
	m := metrics.New()

	// the api reads the warehouse; clickhouse is only opened for the mirror readiness check
	st, err := store.OpenFromEnv(ctx, root, "api", loadmod.FromConfig(root).Mirror)
	if err != nil {
		l.Panic().Err(err).Msg("store open failed")
	}
	defer func() {
		if err := st.Close(context.Background()); err != nil {
			l.Error().Err(err).Msg("failed to close store")
		}
	}()
	deps := modkit.FromStore(st, root, m)

	sink, err := blobsink.OpenFromConfig(ctx, root)
	if err != nil {
		l.Panic().Err(err).Msg("blob sink open failed")
	}
	defer func() { _ = sink.Close() }()

	pack := rulepack.MustLoad()
	lm, err := loadmod.New(ctx, deps, sink, pack)
	if err != nil {
		l.Panic().Err(err).Msg("load module")
	}

	// http server (CORE_API_ADDR, CORE_API_SHUTDOWN_GRACE)
	srv := phttp.NewServer(apiCfg)
	api.Mount(srv.Router(), api.Options{
		Config:  apiCfg,
		Deps:    deps,
		Reader:  module.MustPortsOf[loadmod.Ports](lm).Reader,
		Rules:   pack,
		Sink:    sink,
		Service: "tubesense-api",
	})

	if err := srv.Run(ctx); err != nil {
		l.Panic().Err(err).Msg("http server stopped")
	}
}
