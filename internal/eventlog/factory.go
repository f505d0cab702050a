// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package eventlog

import (
	"context"
	"fmt"

	"github.com/ManuGH/listflow/internal/config"
)

// Open returns the backend selected by cfg.Log.Backend.
func Open(ctx context.Context, cfg config.Config) (Backend, error) {
	switch cfg.Log.Backend {
	case config.BackendKafka:
		return NewKafka(KafkaConfig{
			Brokers:  cfg.Log.Brokers,
			ClientID: cfg.ClientID(),
		})
	case config.BackendRedis:
		return NewRedis(ctx, RedisConfig{
			Addr:       cfg.Log.RedisAddr,
			Password:   cfg.Log.RedisPassword,
			DB:         cfg.Log.RedisDB,
			Partitions: cfg.Log.Partitions,
			Consumer:   cfg.InstanceID,
		})
	case config.BackendMemory:
		return NewMemory(cfg.Log.Partitions), nil
	default:
		return nil, fmt.Errorf("eventlog: unknown backend %q", cfg.Log.Backend)
	}
}

// Specs builds the provisioning request for every topic the pipeline uses.
// The lists table log is compacted: Restore rebuilds the store from it, so
// the last write of every name must outlive retention.
func Specs(cfg config.Config) []TopicSpec {
	names := cfg.Topics.All()
	specs := make([]TopicSpec, 0, len(names))
	for _, name := range names {
		spec := TopicSpec{
			Name:              name,
			Partitions:        cfg.Log.Partitions,
			ReplicationFactor: cfg.Log.ReplicationFactor,
		}
		if name == cfg.Topics.ListsTable {
			spec.Configs = map[string]string{ConfigCleanupPolicy: CleanupCompact}
		}
		specs = append(specs, spec)
	}
	return specs
}
