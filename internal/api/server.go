// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package api serves the read-only query and operations HTTP surface over
// the materialized list table.
package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ManuGH/listflow/internal/api/middleware"
	"github.com/ManuGH/listflow/internal/health"
	"github.com/ManuGH/listflow/internal/liststore"
	"github.com/ManuGH/listflow/internal/log"
)

// Config controls the HTTP server.
type Config struct {
	ListenAddr      string
	RateLimit       int
	RateLimitWindow time.Duration
	// TracingService enables request spans when non-empty.
	TracingService  string
	ShutdownTimeout time.Duration
}

// Server represents the HTTP API server.
type Server struct {
	cfg    Config
	store  liststore.Store
	health *health.Manager
	router chi.Router
}

// New wires the routes. The store is only ever read.
func New(cfg Config, store liststore.Store, hm *health.Manager) *Server {
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	s := &Server{cfg: cfg, store: store, health: hm}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := middleware.NewRouter(middleware.StackConfig{
		EnableMetrics:  true,
		EnableLogging:  true,
		TracingService: s.cfg.TracingService,
	})

	r.Get("/healthz", s.health.ServeHealth)
	r.Get("/readyz", s.health.ServeReady)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.APIRateLimit(s.cfg.RateLimit, s.cfg.RateLimitWindow))
		r.Get("/lists", s.handleListLists)
		r.Get("/lists/{name}", s.handleGetList)
		r.Get("/stats", s.handleStats)
		r.Get("/openapi.yaml", handleOpenAPI)
	})
	return r
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is ListenAndServe on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	logger := log.WithComponent("api")
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str(log.FieldEvent, "http.started").Str("addr", ln.Addr().String()).Msg("HTTP server listening")
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.ShutdownTimeout)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	<-errCh
	logger.Info().Str(log.FieldEvent, "http.stopped").Msg("HTTP server stopped")
	return err
}
