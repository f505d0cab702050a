// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package liststore

import (
	"context"
	"sort"
	"sync"

	"github.com/ManuGH/listflow/internal/model"
)

// MemoryStore keeps the table in a map. Contents are lost on Close.
type MemoryStore struct {
	mu     sync.RWMutex
	lists  map[string]model.ListStatus
	closed bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{lists: make(map[string]model.ListStatus)}
}

func (s *MemoryStore) Apply(_ context.Context, rec model.ListRecord) error {
	if err := validate(rec); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.lists[rec.Name] = rec.Status
	return nil
}

func (s *MemoryStore) Get(_ context.Context, name string) (model.ListRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return model.ListRecord{}, false, ErrClosed
	}
	st, ok := s.lists[name]
	if !ok {
		return model.ListRecord{}, false, nil
	}
	return model.ListRecord{Name: name, Status: st}, true, nil
}

// Scan copies the table under the read lock and visits the copy in name
// order.
func (s *MemoryStore) Scan(ctx context.Context, fn func(model.ListRecord) error) error {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return ErrClosed
	}
	snapshot := make([]model.ListRecord, 0, len(s.lists))
	for name, st := range s.lists {
		snapshot = append(snapshot, model.ListRecord{Name: name, Status: st})
	}
	s.mu.RUnlock()

	sort.Slice(snapshot, func(i, j int) bool { return snapshot[i].Name < snapshot[j].Name })
	for _, rec := range snapshot {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	return nil
}

func (s *MemoryStore) ApproximateCount(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, ErrClosed
	}
	return int64(len(s.lists)), nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.lists = nil
	return nil
}
