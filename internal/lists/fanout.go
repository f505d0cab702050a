// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package lists

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ManuGH/listflow/internal/codec"
	"github.com/ManuGH/listflow/internal/eventlog"
	"github.com/ManuGH/listflow/internal/metrics"
	"github.com/ManuGH/listflow/internal/model"
)

// NewUpdate builds the notification for a list record: the action mirrors
// the status and data carries the record as JSON.
func NewUpdate(rec model.ListRecord) (model.UpdateRecord, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return model.UpdateRecord{}, err
	}
	return model.UpdateRecord{
		Type:   model.TypeList,
		Action: rec.Status.String(),
		Data:   string(data),
	}, nil
}

// FanOut publishes updates for one path (mutations or snapshots) to its
// log, keyed by the session they belong to.
type FanOut struct {
	producer eventlog.Producer
	topic    string
	serde    *codec.Serde[model.UpdateRecord]
}

func NewFanOut(producer eventlog.Producer, topic string, serde *codec.Serde[model.UpdateRecord]) *FanOut {
	return &FanOut{producer: producer, topic: topic, serde: serde}
}

// Topic returns the log the fan-out writes to.
func (f *FanOut) Topic() string { return f.topic }

// Publish appends one update per record, in order, in a single produce call.
func (f *FanOut) Publish(ctx context.Context, session string, recs ...model.ListRecord) error {
	if len(recs) == 0 {
		return nil
	}
	msgs := make([]eventlog.Message, 0, len(recs))
	for _, rec := range recs {
		upd, err := NewUpdate(rec)
		if err != nil {
			return err
		}
		value, err := f.serde.Encode(ctx, upd)
		if err != nil {
			return err
		}
		msgs = append(msgs, eventlog.Message{Key: []byte(session), Value: value})
	}
	if err := f.producer.Produce(ctx, f.topic, msgs...); err != nil {
		return fmt.Errorf("publish updates: %w", err)
	}
	metrics.IncPublished(f.topic, len(msgs))
	return nil
}
