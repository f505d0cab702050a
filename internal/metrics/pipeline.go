// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package metrics holds the Prometheus collectors shared across the pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Stage outcomes.
const (
	OutcomeProcessed = "processed"
	OutcomeSkipped   = "skipped"
	OutcomeDropped   = "dropped"
	OutcomeFailed    = "failed"
)

var (
	RecordsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "listflow_stage_records_total",
		Help: "Records handled by a pipeline stage, by outcome",
	}, []string{"stage", "outcome"})

	RecordSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "listflow_stage_record_seconds",
		Help:    "Time spent handling one record in a pipeline stage",
		Buckets: prometheus.DefBuckets,
	}, []string{"stage"})

	CommitErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "listflow_stage_commit_errors_total",
		Help: "Offset commits that failed, by stage",
	}, []string{"stage"})

	CommandsDroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "listflow_commands_dropped_total",
		Help: "LIST commands dropped by the interpreter, by reason",
	}, []string{"reason"})

	PublishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "listflow_published_total",
		Help: "Records produced to a log, by topic",
	}, []string{"topic"})

	SnapshotRecords = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "listflow_snapshot_records",
		Help:    "Update records emitted per refresh request",
		Buckets: []float64{0, 1, 5, 10, 50, 100, 500, 1000, 5000},
	})
)

// IncRecord records a stage outcome.
func IncRecord(stage, outcome string) {
	if stage == "" {
		stage = "unknown"
	}
	RecordsTotal.WithLabelValues(stage, outcome).Inc()
}

// IncCommandDropped records a dropped command with a concrete reason.
func IncCommandDropped(reason string) {
	if reason == "" {
		reason = "unknown"
	}
	CommandsDroppedTotal.WithLabelValues(reason).Inc()
}

// IncPublished records a produced record for the given topic.
func IncPublished(topic string, n int) {
	PublishedTotal.WithLabelValues(topic).Add(float64(n))
}
