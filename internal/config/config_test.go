// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadFromMap_EnvironmentOnly(t *testing.T) {
	cfg, err := LoadFromMap("", map[string]string{
		"kafka_bootstrap_servers": "broker-1:9092,broker-2:9092",
		"schema_registry_url":     "http://registry:8081",
		"todo_commands_topic":     "cmds",
		"todo_updates_topic":      "ups",
		"LISTFLOW_INSTANCE_ID":    "worker-a",
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"broker-1:9092", "broker-2:9092"}, cfg.Log.Brokers)
	assert.Equal(t, "http://registry:8081", cfg.Log.RegistryURL)
	assert.Equal(t, "cmds", cfg.Topics.Commands)
	assert.Equal(t, "ups", cfg.Topics.Updates)
	assert.Equal(t, "todo-list-updates", cfg.Topics.ListUpdates, "unset topics keep defaults")
	assert.Equal(t, "worker-a", cfg.InstanceID)
	assert.Equal(t, "todo-list-service-commands", cfg.GroupID("commands"))
	assert.Equal(t, "todo-list-service-client", cfg.ClientID())
}

func TestLoadFromMap_FileThenEnvPrecedence(t *testing.T) {
	path := writeFile(t, `
log:
  backend: memory
  partitions: 3
store:
  backend: sqlite
  path: /var/lib/listflow/lists.sqlite
stream:
  lanes: 2
  drainTimeout: 3s
`)

	cfg, err := LoadFromMap(path, map[string]string{
		"LISTFLOW_LANES": "8",
	})
	require.NoError(t, err)

	assert.Equal(t, BackendMemory, cfg.Log.Backend)
	assert.Equal(t, 3, cfg.Log.Partitions)
	assert.Equal(t, StoreSQLite, cfg.Store.Backend)
	assert.Equal(t, 8, cfg.Stream.Lanes, "env wins over file")
	assert.Equal(t, 3*time.Second, cfg.Stream.DrainTimeout)
	assert.NotEmpty(t, cfg.InstanceID, "instance id falls back to hostname")
}

func TestLoadFromMap_UnknownFileField(t *testing.T) {
	path := writeFile(t, "log:\n  backend: memory\n  bogus: true\n")

	_, err := LoadFromMap(path, map[string]string{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownConfigField)
}

func TestLoadFromMap_EmptyFileKeepsDefaults(t *testing.T) {
	path := writeFile(t, "")

	cfg, err := LoadFromMap(path, map[string]string{"LISTFLOW_LOG_BACKEND": "memory"})
	require.NoError(t, err)
	assert.Equal(t, 12, cfg.Log.Partitions)
}

func TestValidate(t *testing.T) {
	valid := Defaults()
	valid.Log.Brokers = []string{"localhost:9092"}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"kafka without brokers", func(c *Config) { c.Log.Brokers = nil }},
		{"redis without address", func(c *Config) { c.Log.Backend = BackendRedis }},
		{"unknown log backend", func(c *Config) { c.Log.Backend = "pulsar" }},
		{"zero partitions", func(c *Config) { c.Log.Partitions = 0 }},
		{"empty topic", func(c *Config) { c.Topics.ListsTable = "" }},
		{"duplicate topic", func(c *Config) { c.Topics.Updates = c.Topics.Commands }},
		{"unknown store", func(c *Config) { c.Store.Backend = "rocksdb" }},
		{"badger without path", func(c *Config) { c.Store.Path = "" }},
		{"zero lanes", func(c *Config) { c.Stream.Lanes = 0 }},
		{"bad tracing exporter", func(c *Config) { c.Tracing.Enabled = true; c.Tracing.Exporter = "zipkin" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			cfg.Log.Brokers = append([]string(nil), valid.Log.Brokers...)
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}
