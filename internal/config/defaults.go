// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import "time"

// Defaults returns the configuration used when neither file nor environment
// set a value.
func Defaults() Config {
	return Config{
		ApplicationID: "todo-list-service",
		LogLevel:      "info",
		LogService:    "listflow",
		Log: LogConfig{
			Backend:           BackendKafka,
			Partitions:        12,
			ReplicationFactor: 1,
			ProvisionTimeout:  60 * time.Second,
		},
		Topics: Topics{
			Commands:          "todo-commands",
			ListUpdates:       "todo-list-updates",
			ListsTable:        "todo-lists",
			InternalUpdates:   "list-internal-updates",
			InternalRefreshes: "list-internal-refreshes",
			Updates:           "todo-updates",
		},
		Store: StoreConfig{
			Backend: StoreBadger,
			Path:    "data/lists",
		},
		Stream: StreamConfig{
			Lanes:        4,
			DrainTimeout: 10 * time.Second,
		},
		API: APIConfig{
			ListenAddr:     ":8080",
			RateLimit:      600,
			RateLimitEvery: time.Minute,
		},
		Tracing: TracingConfig{
			Exporter:     "http",
			SamplingRate: 1.0,
			Environment:  "production",
		},
	}
}
