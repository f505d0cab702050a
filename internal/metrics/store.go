// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	StoreOpsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "listflow_store_ops_total",
		Help: "Total list store operations",
	}, []string{"backend", "op", "result"}) // result=success/error

	StoreOpSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "listflow_store_op_seconds",
		Help:    "List store operation latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"backend", "op"})

	StoreEntries = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "listflow_store_entries",
		Help: "Approximate number of lists held by the store, deleted lists included",
	}, []string{"backend"})

	StoreRestoredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "listflow_store_restored_records_total",
		Help: "Change-log records replayed while rebuilding an empty store",
	})
)
