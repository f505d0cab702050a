// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package eventlog

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/listflow/internal/config"
)

func TestOpen(t *testing.T) {
	ctx := context.Background()
	cfg := config.Defaults()

	cfg.Log.Backend = config.BackendMemory
	b, err := Open(ctx, cfg)
	require.NoError(t, err)
	assert.Equal(t, "memory", b.Name())
	_ = b.Close()

	mr := miniredis.RunT(t)
	cfg.Log.Backend = config.BackendRedis
	cfg.Log.RedisAddr = mr.Addr()
	cfg.InstanceID = "node-1"
	b, err = Open(ctx, cfg)
	require.NoError(t, err)
	assert.Equal(t, "redis", b.Name())
	assert.Equal(t, "node-1", b.(*Redis).consumer)
	_ = b.Close()

	cfg.Log.Backend = config.BackendKafka
	cfg.Log.Brokers = []string{"localhost:9092"}
	b, err = Open(ctx, cfg)
	require.NoError(t, err)
	assert.Equal(t, "kafka", b.Name())
	_ = b.Close()

	cfg.Log.Backend = "pulsar"
	_, err = Open(ctx, cfg)
	assert.Error(t, err)
}

func TestSpecs(t *testing.T) {
	cfg := config.Defaults()
	specs := Specs(cfg)
	require.Len(t, specs, 6)
	for _, s := range specs {
		assert.Equal(t, 12, s.Partitions)
		assert.Equal(t, 1, s.ReplicationFactor)
	}
	assert.Equal(t, "todo-commands", specs[0].Name)

	for _, s := range specs {
		if s.Name == cfg.Topics.ListsTable {
			assert.Equal(t, map[string]string{"cleanup.policy": "compact"}, s.Configs, "table log is compacted")
			continue
		}
		assert.Empty(t, s.Configs, s.Name)
	}
}
