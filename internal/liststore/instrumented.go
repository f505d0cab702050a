// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package liststore

import (
	"context"
	"time"

	"github.com/ManuGH/listflow/internal/metrics"
	"github.com/ManuGH/listflow/internal/model"
)

// instrumentedStore wraps any Store to capture metrics.
type instrumentedStore struct {
	inner   Store
	backend string
}

func NewInstrumentedStore(inner Store, backend string) Store {
	return &instrumentedStore{inner: inner, backend: backend}
}

func (i *instrumentedStore) observe(op string, start time.Time, err error) {
	res := "success"
	if err != nil {
		res = "error"
	}
	metrics.StoreOpsTotal.WithLabelValues(i.backend, op, res).Inc()
	metrics.StoreOpSeconds.WithLabelValues(i.backend, op).Observe(time.Since(start).Seconds())
}

func (i *instrumentedStore) Apply(ctx context.Context, rec model.ListRecord) (err error) {
	start := time.Now()
	defer func() { i.observe("apply", start, err) }()
	return i.inner.Apply(ctx, rec)
}

func (i *instrumentedStore) Get(ctx context.Context, name string) (rec model.ListRecord, ok bool, err error) {
	start := time.Now()
	defer func() { i.observe("get", start, err) }()
	return i.inner.Get(ctx, name)
}

func (i *instrumentedStore) Scan(ctx context.Context, fn func(model.ListRecord) error) (err error) {
	start := time.Now()
	defer func() { i.observe("scan", start, err) }()
	return i.inner.Scan(ctx, fn)
}

// ApproximateCount also refreshes the entry gauge.
func (i *instrumentedStore) ApproximateCount(ctx context.Context) (n int64, err error) {
	start := time.Now()
	defer func() { i.observe("count", start, err) }()
	n, err = i.inner.ApproximateCount(ctx)
	if err == nil {
		metrics.StoreEntries.WithLabelValues(i.backend).Set(float64(n))
	}
	return n, err
}

func (i *instrumentedStore) Close() error {
	return i.inner.Close()
}
