// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/listflow/internal/api"
	"github.com/ManuGH/listflow/internal/codec"
	"github.com/ManuGH/listflow/internal/config"
	"github.com/ManuGH/listflow/internal/daemon"
	"github.com/ManuGH/listflow/internal/eventlog"
	"github.com/ManuGH/listflow/internal/health"
	"github.com/ManuGH/listflow/internal/lists"
	"github.com/ManuGH/listflow/internal/liststore"
	xglog "github.com/ManuGH/listflow/internal/log"
	"github.com/ManuGH/listflow/internal/telemetry"
	"github.com/ManuGH/listflow/internal/version"
)

// maskURL removes user info from a URL string for safe logging.
func maskURL(rawURL string) string {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return "invalid-url-redacted"
	}
	parsedURL.User = nil
	return parsedURL.String()
}

func main() {
	if len(os.Args) > 1 && os.Args[1] == "healthcheck" {
		os.Exit(runHealthcheckCLI(os.Args[2:]))
	}

	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to config file (YAML)")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		os.Exit(0)
	}

	// Safe defaults until the configuration is loaded.
	xglog.Configure(xglog.Config{
		Level:   "info",
		Service: "listflow",
		Version: version.Version,
	})
	logger := xglog.WithComponent("main")

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal().
			Err(err).
			Str(xglog.FieldEvent, "config.load_failed").
			Str("config_path", *configPath).
			Msg("failed to load configuration")
	}

	xglog.Configure(xglog.Config{
		Level:   cfg.LogLevel,
		Service: cfg.LogService,
		Version: version.Version,
	})
	logger = xglog.WithComponent("main")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal().
			Err(err).
			Str(xglog.FieldEvent, "daemon.failed").
			Msg("listflow failed")
	}
	logger.Info().Msg("listflow exiting")
}

// run performs the startup sequence and blocks until the daemon stops.
// Every step before the daemon starts is fatal on error.
func run(ctx context.Context, cfg config.Config, logger zerolog.Logger) error {
	logger.Info().
		Str(xglog.FieldEvent, "startup").
		Str("version", version.Version).
		Str("commit", version.Commit).
		Str("application_id", cfg.ApplicationID).
		Str(xglog.FieldBackend, cfg.Log.Backend).
		Str("store", cfg.Store.Backend).
		Str("addr", cfg.API.ListenAddr).
		Msg("starting listflow")

	tp, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Tracing.Enabled,
		ServiceName:    cfg.LogService,
		ServiceVersion: version.Version,
		InstanceID:     cfg.InstanceID,
		Environment:    cfg.Tracing.Environment,
		ExporterType:   cfg.Tracing.Exporter,
		Endpoint:       cfg.Tracing.Endpoint,
		SamplingRate:   cfg.Tracing.SamplingRate,
	})
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("tracer shutdown failed")
		}
	}()

	if err := health.PerformStartupChecks(ctx, cfg); err != nil {
		return fmt.Errorf("startup checks: %w", err)
	}

	backend, err := eventlog.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open event log: %w", err)
	}

	provisionCtx, cancel := context.WithTimeout(ctx, cfg.Log.ProvisionTimeout)
	err = backend.EnsureTopics(provisionCtx, eventlog.Specs(cfg))
	cancel()
	if err != nil {
		_ = backend.Close()
		return fmt.Errorf("provision topics: %w", err)
	}
	logger.Info().Str(xglog.FieldEvent, "topics.ready").Strs("topics", cfg.Topics.All()).Msg("topics provisioned")

	var reg codec.Registry
	if cfg.Log.RegistryURL != "" {
		reg = codec.NewHTTPRegistry(cfg.Log.RegistryURL, nil)
		logger.Info().Str("registry", maskURL(cfg.Log.RegistryURL)).Msg("using schema registry")
	}
	serdes := lists.NewSerdes(reg, cfg.Topics)

	store, err := liststore.Open(ctx, cfg.Store)
	if err != nil {
		_ = backend.Close()
		return fmt.Errorf("open list store: %w", err)
	}

	n, err := lists.Restore(ctx, backend, cfg.Topics.ListsTable, serdes.Table, store)
	if err != nil {
		return errors.Join(fmt.Errorf("restore list store: %w", err), store.Close(), backend.Close())
	}
	if n > 0 {
		logger.Info().Str(xglog.FieldEvent, "store.restored").Int("records", n).Msg("list store restored from table log")
	}

	svc := lists.NewService(cfg.Topics, backend, store, serdes)
	stageNames := make([]string, 0, 4)
	for _, st := range svc.Stages() {
		stageNames = append(stageNames, st.Name)
	}
	tracker := health.NewStageTracker(stageNames...)

	hm := health.NewManager(version.Version)
	hm.RegisterChecker(health.NewStoreChecker(store, 2*time.Second))
	hm.RegisterChecker(tracker)

	tracingService := ""
	if cfg.Tracing.Enabled {
		tracingService = "listflow/api"
	}
	srv := api.New(api.Config{
		ListenAddr:      cfg.API.ListenAddr,
		RateLimit:       cfg.API.RateLimit,
		RateLimitWindow: cfg.API.RateLimitEvery,
		TracingService:  tracingService,
	}, store, hm)

	app, err := daemon.NewApp(daemon.Deps{
		Config:  cfg,
		Backend: backend,
		Store:   store,
		Service: svc,
		Tracker: tracker,
		API:     srv,
	})
	if err != nil {
		return errors.Join(err, store.Close(), backend.Close())
	}
	return app.Run(ctx)
}
