// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package eventlog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	xglog "github.com/ManuGH/listflow/internal/log"
)

// KafkaConfig configures the Kafka backend.
type KafkaConfig struct {
	Brokers  []string
	ClientID string
	// MaxWait bounds how long a fetch waits for new data.
	MaxWait time.Duration
}

// Kafka is a Backend on Apache Kafka. Keys are partitioned with murmur2 so
// records land where the Java client would put them.
type Kafka struct {
	cfg    KafkaConfig
	writer *kafka.Writer
	client *kafka.Client
	logger zerolog.Logger
}

// NewKafka returns a Kafka backend. No connection is made until first use.
func NewKafka(cfg KafkaConfig) (*Kafka, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("eventlog: kafka requires at least one broker")
	}
	if cfg.MaxWait <= 0 {
		cfg.MaxWait = 500 * time.Millisecond
	}
	addr := kafka.TCP(cfg.Brokers...)
	transport := &kafka.Transport{ClientID: cfg.ClientID}

	return &Kafka{
		cfg: cfg,
		writer: &kafka.Writer{
			Addr:         addr,
			Balancer:     &kafka.Murmur2Balancer{},
			RequiredAcks: kafka.RequireAll,
			BatchTimeout: 10 * time.Millisecond,
			Transport:    transport,
		},
		client: &kafka.Client{Addr: addr, Transport: transport},
		logger: xglog.WithComponent("eventlog.kafka"),
	}, nil
}

func (k *Kafka) Name() string { return "kafka" }

func (k *Kafka) Produce(ctx context.Context, topic string, msgs ...Message) error {
	if len(msgs) == 0 {
		return nil
	}
	if err := k.writer.WriteMessages(ctx, toKafkaMessages(topic, msgs)...); err != nil {
		return fmt.Errorf("produce to %s: %w", topic, err)
	}
	return nil
}

func toKafkaMessages(topic string, msgs []Message) []kafka.Message {
	out := make([]kafka.Message, len(msgs))
	for i, msg := range msgs {
		out[i] = kafka.Message{Topic: topic, Key: msg.Key, Value: msg.Value}
	}
	return out
}

// EnsureTopics creates the topics in one request. Topics that already exist
// are logged and skipped.
func (k *Kafka) EnsureTopics(ctx context.Context, specs []TopicSpec) error {
	req := &kafka.CreateTopicsRequest{}
	for _, spec := range specs {
		req.Topics = append(req.Topics, topicConfig(spec))
	}

	resp, err := k.client.CreateTopics(ctx, req)
	if err != nil {
		return fmt.Errorf("create topics: %w", err)
	}
	return k.topicErrors(resp.Errors)
}

func topicConfig(spec TopicSpec) kafka.TopicConfig {
	tc := kafka.TopicConfig{
		Topic:             spec.Name,
		NumPartitions:     spec.Partitions,
		ReplicationFactor: spec.ReplicationFactor,
	}
	keys := make([]string, 0, len(spec.Configs))
	for k := range spec.Configs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		tc.ConfigEntries = append(tc.ConfigEntries, kafka.ConfigEntry{ConfigName: k, ConfigValue: spec.Configs[k]})
	}
	return tc
}

func (k *Kafka) topicErrors(errs map[string]error) error {
	var failed []error
	for topic, err := range errs {
		switch {
		case err == nil:
			k.logger.Info().Str(xglog.FieldTopic, topic).Msg("topic created")
		case errors.Is(err, kafka.TopicAlreadyExists):
			k.logger.Info().Str(xglog.FieldTopic, topic).Msg("topic already exists")
		default:
			failed = append(failed, fmt.Errorf("create topic %s: %w", topic, err))
		}
	}
	return errors.Join(failed...)
}

// Replay reads every partition of topic from its first retained offset up
// to the high watermark observed at the start.
func (k *Kafka) Replay(ctx context.Context, topic string, fn func(Record) error) error {
	meta, err := k.client.Metadata(ctx, &kafka.MetadataRequest{Topics: []string{topic}})
	if err != nil {
		return fmt.Errorf("replay %s: %w", topic, err)
	}
	if len(meta.Topics) == 0 || meta.Topics[0].Error != nil {
		return fmt.Errorf("%w: %s", ErrUnknownTopic, topic)
	}

	for _, p := range meta.Topics[0].Partitions {
		if err := k.replayPartition(ctx, topic, p.ID, fn); err != nil {
			return err
		}
	}
	return nil
}

func (k *Kafka) replayPartition(ctx context.Context, topic string, partition int, fn func(Record) error) error {
	offsets, err := k.client.ListOffsets(ctx, &kafka.ListOffsetsRequest{
		Topics: map[string][]kafka.OffsetRequest{
			topic: {kafka.FirstOffsetOf(partition), kafka.LastOffsetOf(partition)},
		},
	})
	if err != nil {
		return fmt.Errorf("replay %s/%d: %w", topic, partition, err)
	}
	var first, last int64
	for _, po := range offsets.Topics[topic] {
		if po.Partition != partition {
			continue
		}
		if po.Error != nil {
			return fmt.Errorf("replay %s/%d: %w", topic, partition, po.Error)
		}
		first, last = po.FirstOffset, po.LastOffset
	}
	if last <= first {
		return nil
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:   k.cfg.Brokers,
		Topic:     topic,
		Partition: partition,
		MaxWait:   k.cfg.MaxWait,
	})
	defer func() { _ = reader.Close() }()
	if err := reader.SetOffset(first); err != nil {
		return err
	}

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			return fmt.Errorf("replay %s/%d: %w", topic, partition, err)
		}
		if err := fn(fromKafkaMessage(msg)); err != nil {
			return err
		}
		if msg.Offset >= last-1 {
			return nil
		}
	}
}

// NewConsumer joins group on topics. A group without committed offsets
// starts at the earliest record.
func (k *Kafka) NewConsumer(group string, topics ...string) (Consumer, error) {
	if group == "" {
		return nil, fmt.Errorf("eventlog: consumer group is required")
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     k.cfg.Brokers,
		GroupID:     group,
		GroupTopics: topics,
		StartOffset: kafka.FirstOffset,
		MaxWait:     k.cfg.MaxWait,
		// Synchronous commits: CommitMessages returns once the broker has
		// the offsets.
		CommitInterval: 0,
	})
	return &kafkaConsumer{reader: reader}, nil
}

func (k *Kafka) Close() error {
	return k.writer.Close()
}

type kafkaConsumer struct {
	reader *kafka.Reader
}

func (c *kafkaConsumer) Fetch(ctx context.Context) (Record, error) {
	msg, err := c.reader.FetchMessage(ctx)
	if err != nil {
		if errors.Is(err, kafka.ErrGroupClosed) {
			return Record{}, ErrClosed
		}
		return Record{}, err
	}
	return fromKafkaMessage(msg), nil
}

func (c *kafkaConsumer) Commit(ctx context.Context, recs ...Record) error {
	if len(recs) == 0 {
		return nil
	}
	msgs := make([]kafka.Message, len(recs))
	for i, rec := range recs {
		msgs[i] = kafka.Message{Topic: rec.Topic, Partition: rec.Partition, Offset: rec.Offset}
	}
	return c.reader.CommitMessages(ctx, msgs...)
}

func (c *kafkaConsumer) Close() error {
	return c.reader.Close()
}

func fromKafkaMessage(msg kafka.Message) Record {
	return Record{
		Topic:     msg.Topic,
		Partition: msg.Partition,
		Offset:    msg.Offset,
		Key:       msg.Key,
		Value:     msg.Value,
		Time:      msg.Time,
	}
}

var _ Backend = (*Kafka)(nil)
