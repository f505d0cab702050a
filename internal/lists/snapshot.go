// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package lists

import (
	"context"
	"fmt"

	"github.com/ManuGH/listflow/internal/liststore"
	xglog "github.com/ManuGH/listflow/internal/log"
	"github.com/ManuGH/listflow/internal/metrics"
	"github.com/ManuGH/listflow/internal/model"
)

// snapshotBatch caps the number of updates sent in one produce call.
const snapshotBatch = 500

// Responder answers REFRESH commands with the currently active lists.
type Responder struct {
	store liststore.Store
	out   *FanOut
}

func NewResponder(store liststore.Store, out *FanOut) *Responder {
	return &Responder{store: store, out: out}
}

// Respond scans the store and publishes one ACTIVE update per active list to
// session. Deleted lists are skipped. It returns the number of updates
// published; an empty store publishes nothing.
func (r *Responder) Respond(ctx context.Context, session string) (int, error) {
	ctx = xglog.ContextWithSessionKey(ctx, session)
	total, err := r.store.ApproximateCount(ctx)
	if err != nil {
		return 0, fmt.Errorf("snapshot count: %w", err)
	}

	var active []model.ListRecord
	err = r.store.Scan(ctx, func(rec model.ListRecord) error {
		if rec.Active() {
			active = append(active, rec)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("snapshot scan: %w", err)
	}

	logger := xglog.WithComponentFromContext(ctx, "lists.snapshot")
	logger.Info().
		Str(xglog.FieldEvent, "snapshot.respond").
		Int64("approx_total", total).
		Int("active", len(active)).
		Msgf("Approximately %d total lists, and %d in update", total, len(active))

	for start := 0; start < len(active); start += snapshotBatch {
		end := min(start+snapshotBatch, len(active))
		if err := r.out.Publish(ctx, session, active[start:end]...); err != nil {
			return start, err
		}
	}
	metrics.SnapshotRecords.Observe(float64(len(active)))
	return len(active), nil
}
