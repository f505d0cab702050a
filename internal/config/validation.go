// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks the configuration for values the pipeline cannot run with.
// All problems are reported together.
func (c Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if strings.TrimSpace(c.ApplicationID) == "" {
		add("applicationId must not be empty")
	}

	switch c.Log.Backend {
	case BackendKafka:
		if len(c.Log.Brokers) == 0 {
			add("kafka backend requires kafka_bootstrap_servers")
		}
	case BackendRedis:
		if c.Log.RedisAddr == "" {
			add("redis backend requires LISTFLOW_REDIS_ADDR")
		}
	case BackendMemory:
	default:
		add("unknown log backend %q (supported: kafka, redis, memory)", c.Log.Backend)
	}
	if c.Log.Partitions <= 0 {
		add("partitions must be positive, got %d", c.Log.Partitions)
	}
	if c.Log.ReplicationFactor <= 0 {
		add("replication factor must be positive, got %d", c.Log.ReplicationFactor)
	}
	if c.Log.ProvisionTimeout <= 0 {
		add("provision timeout must be positive")
	}

	seen := make(map[string]struct{})
	for _, name := range c.Topics.All() {
		if strings.TrimSpace(name) == "" {
			add("topic names must not be empty")
			continue
		}
		if _, dup := seen[name]; dup {
			add("topic %q configured more than once", name)
		}
		seen[name] = struct{}{}
	}

	switch c.Store.Backend {
	case StoreBadger, StoreSQLite:
		if c.Store.Path == "" {
			add("%s store requires a path", c.Store.Backend)
		}
	case StoreMemory:
	default:
		add("unknown store backend %q (supported: badger, sqlite, memory)", c.Store.Backend)
	}

	if c.Stream.Lanes <= 0 {
		add("lanes must be positive, got %d", c.Stream.Lanes)
	}
	if c.Stream.DrainTimeout <= 0 {
		add("drain timeout must be positive")
	}

	if c.Tracing.Enabled {
		switch c.Tracing.Exporter {
		case "grpc", "http":
		default:
			add("unsupported tracing exporter %q (supported: grpc, http)", c.Tracing.Exporter)
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
}
