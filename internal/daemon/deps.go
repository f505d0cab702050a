// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"github.com/ManuGH/listflow/internal/api"
	"github.com/ManuGH/listflow/internal/config"
	"github.com/ManuGH/listflow/internal/eventlog"
	"github.com/ManuGH/listflow/internal/health"
	"github.com/ManuGH/listflow/internal/lists"
	"github.com/ManuGH/listflow/internal/liststore"
)

// Deps contains the dependencies the App runs. The App takes ownership of
// Backend and Store and closes them on shutdown.
type Deps struct {
	Config  config.Config
	Backend eventlog.Backend
	Store   liststore.Store
	Service *lists.Service

	// Tracker is optional; when set it follows stage start and stop.
	Tracker *health.StageTracker

	// API is optional; nil runs the pipeline headless.
	API *api.Server
}

// Validate checks that the required dependencies are present.
func (d *Deps) Validate() error {
	if d.Backend == nil {
		return ErrMissingBackend
	}
	if d.Store == nil {
		return ErrMissingStore
	}
	if d.Service == nil {
		return ErrMissingService
	}
	return nil
}
