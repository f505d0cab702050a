// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import "errors"

var (
	// ErrMissingBackend is returned when no event log backend is provided
	ErrMissingBackend = errors.New("event log backend is required")

	// ErrMissingStore is returned when no list store is provided
	ErrMissingStore = errors.New("list store is required")

	// ErrMissingService is returned when the pipeline service is not provided
	ErrMissingService = errors.New("list service is required")

	// ErrAlreadyRunning is returned when Run is called twice
	ErrAlreadyRunning = errors.New("app already running")
)
