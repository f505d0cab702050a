// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package eventlog abstracts the partitioned, replayable logs the pipeline
// reads and writes. Records with the same key always land in the same
// partition and are delivered in append order within it.
package eventlog

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrClosed is returned by operations on a closed producer or consumer.
	ErrClosed = errors.New("eventlog: closed")

	// ErrUnknownTopic is returned when a topic has not been provisioned.
	ErrUnknownTopic = errors.New("eventlog: unknown topic")
)

// Message is a record to append.
type Message struct {
	Key   []byte
	Value []byte
}

// Record is a record read back from a log.
type Record struct {
	Topic     string
	Partition int
	Offset    int64
	// ID is the backend-native position when it is not a plain offset
	// (Redis stream entry ids).
	ID    string
	Key   []byte
	Value []byte
	Time  time.Time
}

// TopicSpec describes a log to provision.
type TopicSpec struct {
	Name              string
	Partitions        int
	ReplicationFactor int
	// Configs are broker-side topic settings. Backends without such
	// settings ignore them.
	Configs map[string]string
}

// Topic settings used by Specs.
const (
	ConfigCleanupPolicy = "cleanup.policy"
	CleanupCompact      = "compact"
)

// Producer appends keyed messages to a topic.
type Producer interface {
	Produce(ctx context.Context, topic string, msgs ...Message) error
	Close() error
}

// Consumer reads one consumer group's share of a set of topics.
//
// Fetch blocks until a record is available or ctx is done. Commit marks
// records as processed; after a restart the group resumes after the last
// committed record of each partition.
type Consumer interface {
	Fetch(ctx context.Context) (Record, error)
	Commit(ctx context.Context, recs ...Record) error
	Close() error
}

// Provisioner creates topics. It is idempotent: a topic that already exists
// is not an error.
type Provisioner interface {
	EnsureTopics(ctx context.Context, specs []TopicSpec) error
}

// Replayer reads a topic from its earliest retained record up to the end
// observed when Replay starts, without touching any consumer group.
type Replayer interface {
	Replay(ctx context.Context, topic string, fn func(Record) error) error
}

// Backend is a complete log implementation.
type Backend interface {
	Producer
	Provisioner
	Replayer
	NewConsumer(group string, topics ...string) (Consumer, error)
	Name() string
}
