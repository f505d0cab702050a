// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package eventlog

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	xglog "github.com/ManuGH/listflow/internal/log"
)

// topicsKey is the hash recording the partition count of every topic.
const topicsKey = "listflow:topics"

const (
	redisReadCount = 64
	redisBlock     = 500 * time.Millisecond
	redisPageSize  = 500
)

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	Addr       string // Redis server address (host:port)
	Password   string // Redis password (optional)
	DB         int    // Redis database number
	Partitions int    // partitions of auto-created topics
	// Consumer names this process inside every group. A stable name lets a
	// restarted process re-read the entries it had not acknowledged; empty
	// picks a random one.
	Consumer string
}

// Redis is a Backend on Redis Streams. A topic partition is the stream
// "<topic>:<partition>" and consumer groups map onto stream groups.
type Redis struct {
	client     *redis.Client
	partitions int
	consumer   string
	part       partitioner
	logger     zerolog.Logger

	mu    sync.RWMutex
	known map[string]int
}

// NewRedis connects to Redis and verifies the connection.
func NewRedis(ctx context.Context, cfg RedisConfig) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	r := NewRedisFromClient(client, cfg.Partitions)
	if cfg.Consumer != "" {
		r.consumer = cfg.Consumer
	}
	r.logger.Info().
		Str("addr", cfg.Addr).
		Int("db", cfg.DB).
		Msg("connected to Redis log")
	return r, nil
}

// NewRedisFromClient wraps an existing client. Close closes the client.
func NewRedisFromClient(client *redis.Client, partitions int) *Redis {
	if partitions <= 0 {
		partitions = 1
	}
	return &Redis{
		client:     client,
		partitions: partitions,
		consumer:   uuid.NewString(),
		logger:     xglog.WithComponent("eventlog.redis"),
		known:      make(map[string]int),
	}
}

func (r *Redis) Name() string { return "redis" }

func streamName(topic string, partition int) string {
	return topic + ":" + strconv.Itoa(partition)
}

// EnsureTopics records each topic's partition count. A topic that is
// already recorded keeps its count.
func (r *Redis) EnsureTopics(ctx context.Context, specs []TopicSpec) error {
	for _, spec := range specs {
		n := spec.Partitions
		if n <= 0 {
			n = r.partitions
		}
		created, err := r.client.HSetNX(ctx, topicsKey, spec.Name, n).Result()
		if err != nil {
			return fmt.Errorf("create topic %s: %w", spec.Name, err)
		}
		if !created {
			r.logger.Info().Str(xglog.FieldTopic, spec.Name).Msg("topic already exists")
			continue
		}
		r.logger.Info().Str(xglog.FieldTopic, spec.Name).Int("partitions", n).Msg("topic created")
	}
	return nil
}

// partitionsFor returns the partition count of topic. With create set, an
// unknown topic is registered with the default count.
func (r *Redis) partitionsFor(ctx context.Context, topic string, create bool) (int, error) {
	r.mu.RLock()
	n, ok := r.known[topic]
	r.mu.RUnlock()
	if ok {
		return n, nil
	}

	if create {
		if err := r.client.HSetNX(ctx, topicsKey, topic, r.partitions).Err(); err != nil {
			return 0, err
		}
	}
	n, err := r.client.HGet(ctx, topicsKey, topic).Int()
	if errors.Is(err, redis.Nil) {
		return 0, fmt.Errorf("%w: %s", ErrUnknownTopic, topic)
	}
	if err != nil {
		return 0, err
	}

	r.mu.Lock()
	r.known[topic] = n
	r.mu.Unlock()
	return n, nil
}

func (r *Redis) Produce(ctx context.Context, topic string, msgs ...Message) error {
	if len(msgs) == 0 {
		return nil
	}
	n, err := r.partitionsFor(ctx, topic, true)
	if err != nil {
		return fmt.Errorf("produce to %s: %w", topic, err)
	}

	pipe := r.client.Pipeline()
	for _, msg := range msgs {
		pipe.XAdd(ctx, &redis.XAddArgs{
			Stream: streamName(topic, r.part.partition(msg.Key, n)),
			Values: map[string]any{
				"key":   msg.Key,
				"value": msg.Value,
			},
		})
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("produce to %s: %w", topic, err)
	}
	return nil
}

func (r *Redis) Replay(ctx context.Context, topic string, fn func(Record) error) error {
	n, err := r.partitionsFor(ctx, topic, false)
	if err != nil {
		return err
	}
	for p := 0; p < n; p++ {
		if err := r.replayPartition(ctx, topic, p, fn); err != nil {
			return err
		}
	}
	return nil
}

func (r *Redis) replayPartition(ctx context.Context, topic string, p int, fn func(Record) error) error {
	stream := streamName(topic, p)
	tail, err := r.client.XRevRangeN(ctx, stream, "+", "-", 1).Result()
	if err != nil {
		return fmt.Errorf("replay %s: %w", stream, err)
	}
	if len(tail) == 0 {
		return nil
	}
	end := tail[0].ID

	start := "-"
	for {
		page, err := r.client.XRangeN(ctx, stream, start, end, redisPageSize).Result()
		if err != nil {
			return fmt.Errorf("replay %s: %w", stream, err)
		}
		for _, msg := range page {
			if err := fn(toRecord(topic, p, msg)); err != nil {
				return err
			}
		}
		if len(page) < redisPageSize || page[len(page)-1].ID == end {
			return nil
		}
		start, err = nextStreamID(page[len(page)-1].ID)
		if err != nil {
			return err
		}
	}
}

// NewConsumer joins group on every partition stream of topics, creating the
// group at the start of each stream when it does not exist yet.
func (r *Redis) NewConsumer(group string, topics ...string) (Consumer, error) {
	if group == "" {
		return nil, fmt.Errorf("eventlog: consumer group is required")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	c := &redisConsumer{
		client: r.client,
		group:  group,
		name:   group + "-" + r.consumer,
		parts:  make(map[string]streamRef),

		pendingFrom: make(map[string]string),
	}
	for _, topic := range topics {
		n, err := r.partitionsFor(ctx, topic, true)
		if err != nil {
			return nil, err
		}
		for p := 0; p < n; p++ {
			stream := streamName(topic, p)
			err := r.client.XGroupCreateMkStream(ctx, stream, group, "0").Err()
			if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
				return nil, fmt.Errorf("create group %s on %s: %w", group, stream, err)
			}
			c.streams = append(c.streams, stream)
			c.parts[stream] = streamRef{topic: topic, partition: p}
		}
	}
	return c, nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}

type streamRef struct {
	topic     string
	partition int
}

type redisConsumer struct {
	client  *redis.Client
	group   string
	name    string
	streams []string
	parts   map[string]streamRef

	// pendingDone is set once entries delivered to an earlier incarnation
	// of this consumer have been re-read; pendingFrom tracks that re-read
	// per stream.
	pendingDone bool
	pendingFrom map[string]string
	buf         []Record
	closed      bool
}

func (c *redisConsumer) Fetch(ctx context.Context) (Record, error) {
	for len(c.buf) == 0 {
		if c.closed {
			return Record{}, ErrClosed
		}
		if err := ctx.Err(); err != nil {
			return Record{}, err
		}
		if err := c.fill(ctx); err != nil {
			return Record{}, err
		}
	}
	rec := c.buf[0]
	c.buf = c.buf[1:]
	return rec, nil
}

func (c *redisConsumer) fill(ctx context.Context) error {
	block := redisBlock
	if !c.pendingDone {
		block = -1
	}
	args := make([]string, 0, 2*len(c.streams))
	args = append(args, c.streams...)
	for _, stream := range c.streams {
		switch {
		case c.pendingDone:
			args = append(args, ">")
		case c.pendingFrom[stream] != "":
			args = append(args, c.pendingFrom[stream])
		default:
			args = append(args, "0")
		}
	}

	res, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.group,
		Consumer: c.name,
		Streams:  args,
		Count:    redisReadCount,
		Block:    block,
	}).Result()
	if errors.Is(err, redis.Nil) {
		c.pendingDone = true
		return nil
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("read group %s: %w", c.group, err)
	}

	n := 0
	for _, stream := range res {
		ref := c.parts[stream.Stream]
		for _, msg := range stream.Messages {
			c.buf = append(c.buf, toRecord(ref.topic, ref.partition, msg))
			n++
		}
		if !c.pendingDone && len(stream.Messages) > 0 {
			c.pendingFrom[stream.Stream] = stream.Messages[len(stream.Messages)-1].ID
		}
	}
	if n == 0 {
		c.pendingDone = true
	}
	return nil
}

func (c *redisConsumer) Commit(ctx context.Context, recs ...Record) error {
	if c.closed {
		return ErrClosed
	}
	byStream := make(map[string][]string)
	for _, rec := range recs {
		s := streamName(rec.Topic, rec.Partition)
		byStream[s] = append(byStream[s], rec.ID)
	}
	for stream, ids := range byStream {
		if err := c.client.XAck(ctx, stream, c.group, ids...).Err(); err != nil {
			return fmt.Errorf("ack %s: %w", stream, err)
		}
	}
	return nil
}

func (c *redisConsumer) Close() error {
	c.closed = true
	return nil
}

func toRecord(topic string, partition int, msg redis.XMessage) Record {
	rec := Record{
		Topic:     topic,
		Partition: partition,
		ID:        msg.ID,
		Key:       fieldBytes(msg.Values["key"]),
		Value:     fieldBytes(msg.Values["value"]),
	}
	if ms, seq, err := parseStreamID(msg.ID); err == nil {
		rec.Time = time.UnixMilli(ms)
		rec.Offset = ms*1_000_000 + seq
	}
	return rec
}

func fieldBytes(v any) []byte {
	switch t := v.(type) {
	case string:
		if t == "" {
			return nil
		}
		return []byte(t)
	case []byte:
		return t
	default:
		return nil
	}
}

func parseStreamID(id string) (ms, seq int64, err error) {
	msPart, seqPart, ok := strings.Cut(id, "-")
	if !ok {
		return 0, 0, fmt.Errorf("invalid stream id %q", id)
	}
	if ms, err = strconv.ParseInt(msPart, 10, 64); err != nil {
		return 0, 0, fmt.Errorf("invalid stream id %q: %w", id, err)
	}
	if seq, err = strconv.ParseInt(seqPart, 10, 64); err != nil {
		return 0, 0, fmt.Errorf("invalid stream id %q: %w", id, err)
	}
	return ms, seq, nil
}

// nextStreamID returns the smallest id greater than id.
func nextStreamID(id string) (string, error) {
	ms, seq, err := parseStreamID(id)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d-%d", ms, seq+1), nil
}

var _ Backend = (*Redis)(nil)
