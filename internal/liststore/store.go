// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package liststore holds the materialized name -> ListRecord table.
package liststore

import (
	"context"
	"errors"

	"github.com/ManuGH/listflow/internal/model"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("liststore: closed")

// Store is the List State Store.
//
// Apply is a last-write-wins upsert keyed by name; applying the same record
// twice leaves the table unchanged. Scan visits a consistent view taken when
// the scan starts, concurrent Applies are not reflected. ApproximateCount
// never walks the table.
type Store interface {
	Apply(ctx context.Context, rec model.ListRecord) error
	Get(ctx context.Context, name string) (model.ListRecord, bool, error)
	Scan(ctx context.Context, fn func(model.ListRecord) error) error
	ApproximateCount(ctx context.Context) (int64, error)
	Close() error
}

func validate(rec model.ListRecord) error {
	if !rec.Status.Valid() {
		return errors.New("liststore: record with unknown status " + string(rec.Status))
	}
	return nil
}
