// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package stream runs a consumer group stage: one fetch loop feeding a fixed
// set of partition lanes. Each partition is always handled by the same lane,
// so records of a partition are processed and committed in log order while
// different partitions proceed in parallel.
package stream

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ManuGH/listflow/internal/eventlog"
	xglog "github.com/ManuGH/listflow/internal/log"
	"github.com/ManuGH/listflow/internal/metrics"
	"github.com/ManuGH/listflow/internal/telemetry"
)

// Handler processes one record. A returned error is fatal to the stage.
type Handler func(ctx context.Context, rec eventlog.Record) error

// Config tunes a Runner.
type Config struct {
	Stage        string
	Group        string
	Lanes        int
	DrainTimeout time.Duration
	// LaneBuffer is the number of fetched records a lane may queue.
	LaneBuffer int
	// CommitTimeout bounds a single offset commit.
	CommitTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.Lanes <= 0 {
		c.Lanes = 1
	}
	if c.DrainTimeout <= 0 {
		c.DrainTimeout = 10 * time.Second
	}
	if c.LaneBuffer <= 0 {
		c.LaneBuffer = 64
	}
	if c.CommitTimeout <= 0 {
		c.CommitTimeout = 5 * time.Second
	}
	return c
}

// Runner drives one stage. A Runner is single use.
type Runner struct {
	cfg      Config
	consumer eventlog.Consumer
	handler  Handler
	logger   zerolog.Logger
	tracer   trace.Tracer

	fatalOnce sync.Once
	fatalErr  error
	failed    atomic.Bool
}

// NewRunner returns a runner that owns consumer and closes it when Run
// returns.
func NewRunner(cfg Config, consumer eventlog.Consumer, handler Handler) *Runner {
	cfg = cfg.withDefaults()
	return &Runner{
		cfg:      cfg,
		consumer: consumer,
		handler:  handler,
		logger: xglog.WithComponent("stream").With().
			Str(xglog.FieldStage, cfg.Stage).
			Str(xglog.FieldGroup, cfg.Group).
			Logger(),
		tracer: telemetry.Tracer("listflow/stream"),
	}
}

// Run fetches and processes records until ctx is cancelled or a handler
// fails. On cancellation it stops fetching, lets queued and in-flight
// records finish within the drain timeout, commits them and returns nil.
// A handler failure stops the stage and is returned.
func (r *Runner) Run(ctx context.Context) error {
	defer func() {
		if err := r.consumer.Close(); err != nil {
			r.logger.Warn().Err(err).Msg("consumer close failed")
		}
	}()

	fetchCtx, stopFetch := context.WithCancel(ctx)
	defer stopFetch()

	// Handlers outlive ctx so in-flight work can drain; work is only
	// abandoned when the drain deadline passes.
	workCtx, abandon := context.WithCancel(context.WithoutCancel(ctx))
	defer abandon()

	lanes := make([]chan eventlog.Record, r.cfg.Lanes)
	var wg sync.WaitGroup
	for i := range lanes {
		lanes[i] = make(chan eventlog.Record, r.cfg.LaneBuffer)
		wg.Add(1)
		go func(in <-chan eventlog.Record) {
			defer wg.Done()
			r.lane(workCtx, in, stopFetch)
		}(lanes[i])
	}

	r.logger.Info().Str(xglog.FieldEvent, "stage.started").Int("lanes", r.cfg.Lanes).Msg("stage started")

	fetchErr := r.fetch(fetchCtx, lanes)
	for _, ch := range lanes {
		close(ch)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(r.cfg.DrainTimeout):
		r.logger.Warn().Str(xglog.FieldEvent, "stage.drain_timeout").
			Dur("timeout", r.cfg.DrainTimeout).
			Msg("drain timed out, abandoning in-flight records")
		abandon()
		<-done
	}

	if r.failed.Load() {
		r.logger.Error().Err(r.fatalErr).Str(xglog.FieldEvent, "stage.failed").Msg("stage stopped on handler error")
		return fmt.Errorf("stage %s: %w", r.cfg.Stage, r.fatalErr)
	}
	if fetchErr != nil {
		r.logger.Error().Err(fetchErr).Str(xglog.FieldEvent, "stage.failed").Msg("stage stopped on fetch error")
		return fmt.Errorf("stage %s: fetch: %w", r.cfg.Stage, fetchErr)
	}
	r.logger.Info().Str(xglog.FieldEvent, "stage.stopped").Msg("stage stopped")
	return nil
}

// fetch dispatches records to lanes until ctx ends. It returns an error
// only for fetch failures that are not caused by shutdown.
func (r *Runner) fetch(ctx context.Context, lanes []chan eventlog.Record) error {
	for {
		rec, err := r.consumer.Fetch(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, eventlog.ErrClosed) {
				return nil
			}
			return err
		}

		lane := lanes[rec.Partition%len(lanes)]
		select {
		case lane <- rec:
		case <-ctx.Done():
			// The record was fetched but never handed to a lane; it stays
			// uncommitted and is delivered again on restart.
			return nil
		}
	}
}

func (r *Runner) lane(ctx context.Context, in <-chan eventlog.Record, stopFetch context.CancelFunc) {
	for rec := range in {
		if r.failed.Load() || ctx.Err() != nil {
			continue
		}
		if err := r.process(ctx, rec); err != nil {
			r.fail(err)
			stopFetch()
			continue
		}
		if ctx.Err() != nil {
			// Abandoned at the drain deadline: leave it for redelivery.
			continue
		}
		r.commit(ctx, rec)
	}
}

func (r *Runner) process(ctx context.Context, rec eventlog.Record) error {
	ctx, span := r.tracer.Start(ctx, r.cfg.Stage+" process",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(telemetry.RecordAttributes(r.cfg.Stage, rec.Topic, rec.Partition, rec.Offset)...),
	)
	defer span.End()

	start := time.Now()
	err := r.handler(ctx, rec)
	metrics.RecordSeconds.WithLabelValues(r.cfg.Stage).Observe(time.Since(start).Seconds())

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		metrics.IncRecord(r.cfg.Stage, metrics.OutcomeFailed)
		return fmt.Errorf("%s/%d@%d: %w", rec.Topic, rec.Partition, rec.Offset, err)
	}
	return nil
}

func (r *Runner) commit(ctx context.Context, rec eventlog.Record) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.CommitTimeout)
	defer cancel()
	if err := r.consumer.Commit(ctx, rec); err != nil {
		metrics.CommitErrorsTotal.WithLabelValues(r.cfg.Stage).Inc()
		r.logger.Warn().Err(err).
			Str(xglog.FieldTopic, rec.Topic).
			Int(xglog.FieldPartition, rec.Partition).
			Int64(xglog.FieldOffset, rec.Offset).
			Msg("offset commit failed")
	}
}

func (r *Runner) fail(err error) {
	r.fatalOnce.Do(func() {
		r.fatalErr = err
		r.failed.Store(true)
	})
}
