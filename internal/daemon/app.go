// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package daemon owns the runtime lifecycle: one stream runner per pipeline
// stage plus the HTTP server, all stopped together.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ManuGH/listflow/internal/eventlog"
	"github.com/ManuGH/listflow/internal/lists"
	"github.com/ManuGH/listflow/internal/log"
	"github.com/ManuGH/listflow/internal/stream"
)

// ShutdownHook is a function that performs cleanup during graceful shutdown.
// Hooks are executed in reverse registration order (LIFO).
type ShutdownHook func(ctx context.Context) error

type namedHook struct {
	name string
	hook ShutdownHook
}

// App runs the pipeline stages and the HTTP server until the context is
// cancelled or any of them fails.
type App struct {
	deps   Deps
	logger zerolog.Logger

	mu            sync.Mutex
	started       bool
	shutdownHooks []namedHook
}

// NewApp validates deps and registers close hooks for the store and the
// log backend. The store is closed last.
func NewApp(deps Deps) (*App, error) {
	if err := deps.Validate(); err != nil {
		return nil, fmt.Errorf("invalid dependencies: %w", err)
	}
	a := &App{deps: deps, logger: log.WithComponent("daemon")}
	a.RegisterShutdownHook("list_store", func(context.Context) error { return deps.Store.Close() })
	a.RegisterShutdownHook("event_log", func(context.Context) error { return deps.Backend.Close() })
	return a, nil
}

// RegisterShutdownHook registers a cleanup function to be called during shutdown.
func (a *App) RegisterShutdownHook(name string, hook ShutdownHook) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.shutdownHooks = append(a.shutdownHooks, namedHook{name: name, hook: hook})
}

// Run blocks until ctx is cancelled or a stage or the server fails. A stage
// failure cancels every other stage, which then drain their in-flight
// records before Run returns the first error.
func (a *App) Run(ctx context.Context) error {
	a.mu.Lock()
	if a.started {
		a.mu.Unlock()
		return ErrAlreadyRunning
	}
	a.started = true
	a.mu.Unlock()

	cfg := a.deps.Config
	stages := a.deps.Service.Stages()
	consumers, err := a.openConsumers(stages)
	if err != nil {
		return errors.Join(err, a.shutdown(ctx))
	}

	a.logger.Info().
		Str(log.FieldEvent, "daemon.started").
		Str(log.FieldBackend, a.deps.Backend.Name()).
		Int("stages", len(stages)).
		Int("lanes", cfg.Stream.Lanes).
		Msg("starting pipeline")

	g, gctx := errgroup.WithContext(ctx)
	for i, stage := range stages {
		runner := stream.NewRunner(stream.Config{
			Stage:        stage.Name,
			Group:        cfg.GroupID(stage.Name),
			Lanes:        cfg.Stream.Lanes,
			DrainTimeout: cfg.Stream.DrainTimeout,
		}, consumers[i], stage.Handler)
		name := stage.Name
		g.Go(func() error {
			a.setRunning(name, true)
			defer a.setRunning(name, false)
			return runner.Run(gctx)
		})
	}
	if a.deps.API != nil {
		g.Go(func() error {
			if err := a.deps.API.ListenAndServe(gctx); err != nil {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
	}

	runErr := g.Wait()
	if runErr != nil {
		a.logger.Error().Err(runErr).Str(log.FieldEvent, "daemon.failed").Msg("pipeline failed, shutting down")
	} else {
		a.logger.Info().Str(log.FieldEvent, "daemon.stopping").Msg("shutdown signal received")
	}
	return errors.Join(runErr, a.shutdown(ctx))
}

// openConsumers joins every stage's group before any stage starts so a
// bad topic fails startup instead of one stage.
func (a *App) openConsumers(stages []lists.Stage) ([]eventlog.Consumer, error) {
	consumers := make([]eventlog.Consumer, 0, len(stages))
	for _, stage := range stages {
		c, err := a.deps.Backend.NewConsumer(a.deps.Config.GroupID(stage.Name), stage.Topics...)
		if err != nil {
			for _, opened := range consumers {
				_ = opened.Close()
			}
			return nil, fmt.Errorf("stage %s: open consumer: %w", stage.Name, err)
		}
		consumers = append(consumers, c)
	}
	return consumers, nil
}

func (a *App) setRunning(stage string, running bool) {
	if a.deps.Tracker != nil {
		a.deps.Tracker.Set(stage, running)
	}
}

// shutdown runs the hooks in LIFO order under a bounded context that is
// independent of the caller's cancellation.
func (a *App) shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()

	a.mu.Lock()
	hooks := append([]namedHook(nil), a.shutdownHooks...)
	a.mu.Unlock()

	var errs []error
	for i := len(hooks) - 1; i >= 0; i-- {
		h := hooks[i]
		start := time.Now()
		if err := h.hook(shutdownCtx); err != nil {
			a.logger.Error().Err(err).Str("hook", h.name).Dur("duration", time.Since(start)).Msg("shutdown hook failed")
			errs = append(errs, fmt.Errorf("hook %s: %w", h.name, err))
			continue
		}
		a.logger.Debug().Str("hook", h.name).Dur("duration", time.Since(start)).Msg("shutdown hook completed")
	}
	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %w", errors.Join(errs...))
	}
	a.logger.Info().Str(log.FieldEvent, "daemon.stopped").Msg("daemon stopped cleanly")
	return nil
}
