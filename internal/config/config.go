// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package config builds the single configuration value the daemon passes to
// every component. Precedence is ENV > file > defaults.
package config

import (
	"time"
)

// Log backends.
const (
	BackendKafka  = "kafka"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// Store backends.
const (
	StoreBadger = "badger"
	StoreSQLite = "sqlite"
	StoreMemory = "memory"
)

// Config is the complete runtime configuration.
type Config struct {
	ApplicationID string `yaml:"applicationId" env:"LISTFLOW_APPLICATION_ID"`
	InstanceID    string `yaml:"instanceId" env:"LISTFLOW_INSTANCE_ID"`
	LogLevel      string `yaml:"logLevel" env:"LOG_LEVEL"`
	LogService    string `yaml:"logService" env:"LOG_SERVICE"`

	Log     LogConfig     `yaml:"log"`
	Topics  Topics        `yaml:"topics"`
	Store   StoreConfig   `yaml:"store"`
	Stream  StreamConfig  `yaml:"stream"`
	API     APIConfig     `yaml:"api"`
	Tracing TracingConfig `yaml:"tracing"`
}

// LogConfig selects and addresses the partitioned log the pipeline runs on.
type LogConfig struct {
	Backend           string        `yaml:"backend" env:"LISTFLOW_LOG_BACKEND"`
	Brokers           []string      `yaml:"brokers" env:"kafka_bootstrap_servers" envSeparator:","`
	RedisAddr         string        `yaml:"redisAddr" env:"LISTFLOW_REDIS_ADDR"`
	RedisPassword     string        `yaml:"redisPassword" env:"LISTFLOW_REDIS_PASSWORD"`
	RedisDB           int           `yaml:"redisDB" env:"LISTFLOW_REDIS_DB"`
	RegistryURL       string        `yaml:"registryURL" env:"schema_registry_url"`
	Partitions        int           `yaml:"partitions" env:"LISTFLOW_PARTITIONS"`
	ReplicationFactor int           `yaml:"replicationFactor" env:"LISTFLOW_REPLICATION_FACTOR"`
	ProvisionTimeout  time.Duration `yaml:"provisionTimeout" env:"LISTFLOW_PROVISION_TIMEOUT"`
}

// Topics names every log the pipeline reads or writes.
type Topics struct {
	Commands          string `yaml:"commands" env:"todo_commands_topic"`
	ListUpdates       string `yaml:"listUpdates" env:"todo_list_updates_topic"`
	ListsTable        string `yaml:"listsTable" env:"todo_lists_table"`
	InternalUpdates   string `yaml:"internalUpdates" env:"todo_list_internal_updates_topic"`
	InternalRefreshes string `yaml:"internalRefreshes" env:"todo_list_internal_refreshes_topic"`
	Updates           string `yaml:"updates" env:"todo_updates_topic"`
}

// All returns the topic names in provisioning order.
func (t Topics) All() []string {
	return []string{
		t.Commands,
		t.ListUpdates,
		t.ListsTable,
		t.InternalUpdates,
		t.InternalRefreshes,
		t.Updates,
	}
}

// StoreConfig selects the List State Store backend.
type StoreConfig struct {
	Backend string `yaml:"backend" env:"LISTFLOW_STORE_BACKEND"`
	Path    string `yaml:"path" env:"LISTFLOW_STORE_PATH"`
}

// StreamConfig tunes the stage runners.
type StreamConfig struct {
	Lanes        int           `yaml:"lanes" env:"LISTFLOW_LANES"`
	DrainTimeout time.Duration `yaml:"drainTimeout" env:"LISTFLOW_DRAIN_TIMEOUT"`
}

// APIConfig configures the query and ops HTTP listener.
type APIConfig struct {
	ListenAddr     string        `yaml:"listenAddr" env:"LISTFLOW_LISTEN"`
	RateLimit      int           `yaml:"rateLimit" env:"LISTFLOW_API_RATE_LIMIT"`
	RateLimitEvery time.Duration `yaml:"rateLimitWindow" env:"LISTFLOW_API_RATE_WINDOW"`
}

// TracingConfig configures OpenTelemetry export.
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled" env:"LISTFLOW_TRACING_ENABLED"`
	Exporter     string  `yaml:"exporter" env:"LISTFLOW_TRACING_EXPORTER"`
	Endpoint     string  `yaml:"endpoint" env:"LISTFLOW_TRACING_ENDPOINT"`
	SamplingRate float64 `yaml:"samplingRate" env:"LISTFLOW_TRACING_SAMPLING_RATE"`
	Environment  string  `yaml:"environment" env:"LISTFLOW_ENVIRONMENT"`
}

// GroupID returns the consumer group used by a pipeline stage.
func (c Config) GroupID(stage string) string {
	return c.ApplicationID + "-" + stage
}

// ClientID is the broker client id, "<app>-client".
func (c Config) ClientID() string {
	return c.ApplicationID + "-client"
}
