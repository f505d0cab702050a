// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package eventlog

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Memory is an in-process Backend. Topics are created on first use with the
// default partition count. Each consumer group is expected to have a single
// live consumer.
type Memory struct {
	mu         sync.Mutex
	partitions int
	part       partitioner
	topics     map[string][][]Record
	committed  map[string]int64
	wake       chan struct{}
	closed     bool
}

// NewMemory returns an empty log whose auto-created topics have the given
// number of partitions.
func NewMemory(partitions int) *Memory {
	if partitions <= 0 {
		partitions = 1
	}
	return &Memory{
		partitions: partitions,
		topics:     make(map[string][][]Record),
		committed:  make(map[string]int64),
		wake:       make(chan struct{}),
	}
}

func (m *Memory) Name() string { return "memory" }

func offsetKey(group, topic string, partition int) string {
	return fmt.Sprintf("%s\x00%s\x00%d", group, topic, partition)
}

// EnsureTopics creates missing topics. Existing topics keep their partition
// count.
func (m *Memory) EnsureTopics(_ context.Context, specs []TopicSpec) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	for _, spec := range specs {
		if _, ok := m.topics[spec.Name]; ok {
			continue
		}
		n := spec.Partitions
		if n <= 0 {
			n = m.partitions
		}
		m.topics[spec.Name] = make([][]Record, n)
	}
	return nil
}

func (m *Memory) topicLocked(name string) [][]Record {
	parts, ok := m.topics[name]
	if !ok {
		parts = make([][]Record, m.partitions)
		m.topics[name] = parts
	}
	return parts
}

func (m *Memory) Produce(ctx context.Context, topic string, msgs ...Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(msgs) == 0 {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}

	parts := m.topicLocked(topic)
	now := time.Now()
	for _, msg := range msgs {
		p := m.part.partition(msg.Key, len(parts))
		parts[p] = append(parts[p], Record{
			Topic:     topic,
			Partition: p,
			Offset:    int64(len(parts[p])),
			Key:       cloneBytes(msg.Key),
			Value:     cloneBytes(msg.Value),
			Time:      now,
		})
	}

	close(m.wake)
	m.wake = make(chan struct{})
	return nil
}

// Records returns every record of topic, ordered by partition then offset.
func (m *Memory) Records(topic string) []Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Record
	for _, part := range m.topics[topic] {
		out = append(out, part...)
	}
	return out
}

// Committed returns the next offset group will read from a partition.
func (m *Memory) Committed(group, topic string, partition int) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.committed[offsetKey(group, topic, partition)]
}

func (m *Memory) Replay(ctx context.Context, topic string, fn func(Record) error) error {
	m.mu.Lock()
	parts, ok := m.topics[topic]
	snapshot := make([][]Record, len(parts))
	for i, part := range parts {
		snapshot[i] = part[:len(part):len(part)]
	}
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTopic, topic)
	}

	for _, part := range snapshot {
		for _, rec := range part {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := fn(rec); err != nil {
				return err
			}
		}
	}
	return nil
}

func (m *Memory) NewConsumer(group string, topics ...string) (Consumer, error) {
	if group == "" {
		return nil, fmt.Errorf("eventlog: consumer group is required")
	}
	if len(topics) == 0 {
		return nil, fmt.Errorf("eventlog: at least one topic is required")
	}
	sorted := append([]string(nil), topics...)
	sort.Strings(sorted)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	for _, t := range sorted {
		m.topicLocked(t)
	}
	return &memoryConsumer{
		log:    m,
		group:  group,
		topics: sorted,
		pos:    make(map[string]int64),
	}, nil
}

// Close wakes blocked consumers and rejects further use.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	close(m.wake)
	return nil
}

type memoryConsumer struct {
	log    *Memory
	group  string
	topics []string
	pos    map[string]int64
	cursor int
	closed atomic.Bool
}

func (c *memoryConsumer) Fetch(ctx context.Context) (Record, error) {
	for {
		c.log.mu.Lock()
		if c.log.closed || c.closed.Load() {
			c.log.mu.Unlock()
			return Record{}, ErrClosed
		}
		rec, ok := c.nextLocked()
		wake := c.log.wake
		c.log.mu.Unlock()
		if ok {
			return rec, nil
		}

		select {
		case <-ctx.Done():
			return Record{}, ctx.Err()
		case <-wake:
		}
	}
}

// nextLocked scans the assigned partitions starting after the last one
// served, so one busy partition cannot starve the others.
func (c *memoryConsumer) nextLocked() (Record, bool) {
	type slot struct {
		topic string
		part  int
	}
	var slots []slot
	for _, t := range c.topics {
		for p := range c.log.topics[t] {
			slots = append(slots, slot{t, p})
		}
	}
	for i := 0; i < len(slots); i++ {
		s := slots[(c.cursor+i)%len(slots)]
		key := offsetKey(c.group, s.topic, s.part)
		next, seen := c.pos[key]
		if !seen {
			next = c.log.committed[key]
		}
		part := c.log.topics[s.topic][s.part]
		if next >= int64(len(part)) {
			continue
		}
		c.pos[key] = next + 1
		c.cursor = (c.cursor + i + 1) % len(slots)
		return part[next], true
	}
	return Record{}, false
}

func (c *memoryConsumer) Commit(_ context.Context, recs ...Record) error {
	if c.closed.Load() {
		return ErrClosed
	}
	c.log.mu.Lock()
	defer c.log.mu.Unlock()
	for _, rec := range recs {
		key := offsetKey(c.group, rec.Topic, rec.Partition)
		if rec.Offset+1 > c.log.committed[key] {
			c.log.committed[key] = rec.Offset + 1
		}
	}
	return nil
}

func (c *memoryConsumer) Close() error {
	c.closed.Store(true)
	return nil
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}

var _ Backend = (*Memory)(nil)
