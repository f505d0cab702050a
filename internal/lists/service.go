// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package lists implements the list lifecycle pipeline: filtering commands,
// interpreting them into list mutations, folding mutations into the list
// table, answering refresh requests from the table, and merging both update
// paths into the outbound log.
package lists

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ManuGH/listflow/internal/codec"
	"github.com/ManuGH/listflow/internal/config"
	"github.com/ManuGH/listflow/internal/eventlog"
	"github.com/ManuGH/listflow/internal/liststore"
	xglog "github.com/ManuGH/listflow/internal/log"
	"github.com/ManuGH/listflow/internal/metrics"
	"github.com/ManuGH/listflow/internal/model"
	"github.com/ManuGH/listflow/internal/stream"
	"github.com/ManuGH/listflow/internal/telemetry"
)

// Stage names. The consumer group of a stage is "<application id>-<name>".
const (
	StageCommands    = "commands"
	StageListUpdates = "list-updates"
	StageTable       = "table"
	StageMerge       = "merge"
)

// Serdes holds the value codec of every log.
type Serdes struct {
	Commands          *codec.Serde[model.Command]
	ListUpdates       *codec.Serde[model.ListRecord]
	Table             *codec.Serde[model.ListRecord]
	InternalUpdates   *codec.Serde[model.UpdateRecord]
	InternalRefreshes *codec.Serde[model.UpdateRecord]
	Updates           *codec.Serde[model.UpdateRecord]
}

// NewSerdes binds one serde per topic. A nil registry selects plain JSON.
func NewSerdes(reg codec.Registry, t config.Topics) Serdes {
	return Serdes{
		Commands:          codec.NewSerde[model.Command](reg, codec.SubjectFor(t.Commands), codec.CommandSchema),
		ListUpdates:       codec.NewSerde[model.ListRecord](reg, codec.SubjectFor(t.ListUpdates), codec.ListSchema),
		Table:             codec.NewSerde[model.ListRecord](reg, codec.SubjectFor(t.ListsTable), codec.ListSchema),
		InternalUpdates:   codec.NewSerde[model.UpdateRecord](reg, codec.SubjectFor(t.InternalUpdates), codec.UpdateSchema),
		InternalRefreshes: codec.NewSerde[model.UpdateRecord](reg, codec.SubjectFor(t.InternalRefreshes), codec.UpdateSchema),
		Updates:           codec.NewSerde[model.UpdateRecord](reg, codec.SubjectFor(t.Updates), codec.UpdateSchema),
	}
}

// Stage is one consumer group of the pipeline.
type Stage struct {
	Name    string
	Topics  []string
	Handler stream.Handler
}

// Service wires the pipeline components to a log and a store.
type Service struct {
	topics   config.Topics
	producer eventlog.Producer
	store    liststore.Store
	serdes   Serdes

	mutations *FanOut
	snapshots *Responder
}

func NewService(topics config.Topics, producer eventlog.Producer, store liststore.Store, serdes Serdes) *Service {
	return &Service{
		topics:    topics,
		producer:  producer,
		store:     store,
		serdes:    serdes,
		mutations: NewFanOut(producer, topics.InternalUpdates, serdes.InternalUpdates),
		snapshots: NewResponder(store, NewFanOut(producer, topics.InternalRefreshes, serdes.InternalRefreshes)),
	}
}

// Stages returns the four stages in data-flow order.
func (s *Service) Stages() []Stage {
	return []Stage{
		{Name: StageCommands, Topics: []string{s.topics.Commands}, Handler: s.HandleCommand},
		{Name: StageListUpdates, Topics: []string{s.topics.ListUpdates}, Handler: s.HandleListUpdate},
		{Name: StageTable, Topics: []string{s.topics.ListsTable}, Handler: s.HandleTableUpdate},
		{Name: StageMerge, Topics: []string{s.topics.InternalUpdates, s.topics.InternalRefreshes}, Handler: s.HandleMerge},
	}
}

// HandleCommand filters a command and routes it: REFRESH to the snapshot
// responder, CREATE and DELETE through the interpreter to the list updates
// log. Non-LIST commands and commands the interpreter rejects produce no
// output.
func (s *Service) HandleCommand(ctx context.Context, rec eventlog.Record) error {
	cmd, err := s.serdes.Commands.Decode(ctx, rec.Value)
	if err != nil {
		return err
	}
	session := string(rec.Key)
	ctx = xglog.ContextWithSessionKey(ctx, session)
	trace.SpanFromContext(ctx).SetAttributes(attribute.String(telemetry.SessionKey, session))

	switch {
	case !IsListCommand(cmd):
		metrics.IncRecord(StageCommands, metrics.OutcomeSkipped)
		return nil
	case IsRefreshCommand(cmd):
		if _, err := s.snapshots.Respond(ctx, session); err != nil {
			return err
		}
		metrics.IncRecord(StageCommands, metrics.OutcomeProcessed)
		return nil
	}

	m, err := Interpret(session, cmd)
	if err != nil {
		reason, drop := DropReason(err)
		if !drop {
			return err
		}
		logger := xglog.WithComponentFromContext(ctx, "lists")
		logger.Debug().Err(err).
			Str(xglog.FieldEvent, "command.dropped").
			Str(xglog.FieldCmd, cmd.Cmd).
			Str(xglog.FieldReason, reason).
			Msg("dropping list command")
		metrics.IncCommandDropped(reason)
		metrics.IncRecord(StageCommands, metrics.OutcomeDropped)
		return nil
	}

	value, err := s.serdes.ListUpdates.Encode(ctx, m.Record)
	if err != nil {
		return err
	}
	if err := s.producer.Produce(ctx, s.topics.ListUpdates, eventlog.Message{Key: []byte(m.Session), Value: value}); err != nil {
		return fmt.Errorf("publish list update: %w", err)
	}
	metrics.IncPublished(s.topics.ListUpdates, 1)
	metrics.IncRecord(StageCommands, metrics.OutcomeProcessed)
	return nil
}

// HandleListUpdate republishes a mutation as an update for its session and
// re-keys it by list name onto the table log.
func (s *Service) HandleListUpdate(ctx context.Context, rec eventlog.Record) error {
	lr, err := s.serdes.ListUpdates.Decode(ctx, rec.Value)
	if err != nil {
		return err
	}
	ctx = xglog.ContextWithSessionKey(ctx, string(rec.Key))
	trace.SpanFromContext(ctx).SetAttributes(attribute.String(telemetry.ListNameKey, lr.Name))

	if err := s.mutations.Publish(ctx, string(rec.Key), lr); err != nil {
		return err
	}

	value, err := s.serdes.Table.Encode(ctx, lr)
	if err != nil {
		return err
	}
	if err := s.producer.Produce(ctx, s.topics.ListsTable, eventlog.Message{Key: []byte(lr.Name), Value: value}); err != nil {
		return fmt.Errorf("publish table update: %w", err)
	}
	metrics.IncPublished(s.topics.ListsTable, 1)
	metrics.IncRecord(StageListUpdates, metrics.OutcomeProcessed)
	return nil
}

// HandleTableUpdate folds a table record into the store, last write wins.
func (s *Service) HandleTableUpdate(ctx context.Context, rec eventlog.Record) error {
	lr, err := s.serdes.Table.Decode(ctx, rec.Value)
	if err != nil {
		return err
	}
	if err := s.store.Apply(ctx, lr); err != nil {
		return fmt.Errorf("apply %s: %w", lr.Name, err)
	}
	metrics.IncRecord(StageTable, metrics.OutcomeProcessed)
	return nil
}

// HandleMerge forwards an update from either internal path to the outbound
// log under the same key.
func (s *Service) HandleMerge(ctx context.Context, rec eventlog.Record) error {
	ctx = xglog.ContextWithSessionKey(ctx, string(rec.Key))
	in := s.serdes.InternalUpdates
	if rec.Topic == s.topics.InternalRefreshes {
		in = s.serdes.InternalRefreshes
	}
	upd, err := in.Decode(ctx, rec.Value)
	if err != nil {
		return err
	}
	value, err := s.serdes.Updates.Encode(ctx, upd)
	if err != nil {
		return err
	}
	if err := s.producer.Produce(ctx, s.topics.Updates, eventlog.Message{Key: rec.Key, Value: value}); err != nil {
		return fmt.Errorf("publish update: %w", err)
	}
	metrics.IncPublished(s.topics.Updates, 1)
	metrics.IncRecord(StageMerge, metrics.OutcomeProcessed)
	return nil
}
