// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package lists

import (
	"context"
	"fmt"

	"github.com/ManuGH/listflow/internal/codec"
	"github.com/ManuGH/listflow/internal/eventlog"
	"github.com/ManuGH/listflow/internal/liststore"
	xglog "github.com/ManuGH/listflow/internal/log"
	"github.com/ManuGH/listflow/internal/metrics"
	"github.com/ManuGH/listflow/internal/model"
)

// Restore rebuilds an empty store from the table log. A store that already
// holds lists is left alone. It returns the number of records replayed.
func Restore(ctx context.Context, log eventlog.Replayer, topic string, serde *codec.Serde[model.ListRecord], store liststore.Store) (int, error) {
	n, err := store.ApproximateCount(ctx)
	if err != nil {
		return 0, err
	}
	logger := xglog.WithComponent("lists.restore")
	if n > 0 {
		logger.Info().Str(xglog.FieldEvent, "store.restore_skipped").Int64("lists", n).Msg("store is not empty, skipping restore")
		return 0, nil
	}

	replayed := 0
	err = log.Replay(ctx, topic, func(rec eventlog.Record) error {
		lr, err := serde.Decode(ctx, rec.Value)
		if err != nil {
			return err
		}
		if err := store.Apply(ctx, lr); err != nil {
			return err
		}
		replayed++
		metrics.StoreRestoredTotal.Inc()
		return nil
	})
	if err != nil {
		return replayed, fmt.Errorf("restore from %s: %w", topic, err)
	}

	logger.Info().
		Str(xglog.FieldEvent, "store.restored").
		Str(xglog.FieldTopic, topic).
		Int("records", replayed).
		Msg("store rebuilt from change log")
	return replayed, nil
}
