// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package liststore

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/ManuGH/listflow/internal/config"
)

// Open creates the Store selected by cfg, wrapped with metrics.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	var (
		s   Store
		err error
	)
	switch cfg.Backend {
	case config.StoreMemory:
		s = NewMemoryStore()
	case config.StoreBadger:
		s, err = OpenBadgerStore(cfg.Path)
	case config.StoreSQLite:
		s, err = OpenSQLiteStore(ctx, sqlitePath(cfg.Path))
	default:
		return nil, fmt.Errorf("unknown store backend: %s", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}
	return NewInstrumentedStore(s, cfg.Backend), nil
}

// sqlitePath treats a path without an extension as a directory.
func sqlitePath(p string) string {
	if filepath.Ext(p) == "" {
		return filepath.Join(p, "lists.db")
	}
	return p
}
