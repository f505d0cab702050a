// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package liststore

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/ManuGH/listflow/internal/model"
)

// BadgerStore persists the table in Badger:
//   - lists: key = "list:<name>" (JSON ListRecord)
//   - entry count: key = "meta:count" (uint64, big endian), updated in the
//     same transaction as the list key
type BadgerStore struct {
	db *badger.DB
}

var (
	listPrefix = []byte("list:")
	countKey   = []byte("meta:count")
)

// maxConflictRetries bounds retries when two lanes update the count at once.
const maxConflictRetries = 100

func OpenBadgerStore(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("liststore: open badger at %s: %w", path, err)
	}
	return &BadgerStore{db: db}, nil
}

// OpenInMemoryBadgerStore runs Badger without touching disk.
func OpenInMemoryBadgerStore() (*BadgerStore, error) {
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	if err != nil {
		return nil, err
	}
	return &BadgerStore{db: db}, nil
}

func (s *BadgerStore) Close() error { return s.db.Close() }

func listKey(name string) []byte {
	return append(append([]byte(nil), listPrefix...), name...)
}

func (s *BadgerStore) Apply(ctx context.Context, rec model.ListRecord) error {
	if err := validate(rec); err != nil {
		return err
	}
	buf, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	key := listKey(rec.Name)

	for attempt := 0; ; attempt++ {
		err = s.db.Update(func(txn *badger.Txn) error {
			_, err := txn.Get(key)
			switch {
			case errors.Is(err, badger.ErrKeyNotFound):
				n, err := readCount(txn)
				if err != nil {
					return err
				}
				if err := txn.Set(countKey, encodeCount(n+1)); err != nil {
					return err
				}
			case err != nil:
				return err
			}
			return txn.Set(key, buf)
		})
		if !errors.Is(err, badger.ErrConflict) || attempt >= maxConflictRetries {
			return mapBadgerErr(err)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func (s *BadgerStore) Get(_ context.Context, name string) (model.ListRecord, bool, error) {
	var out model.ListRecord
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(listKey(name))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &out)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return model.ListRecord{}, false, nil
	}
	if err != nil {
		return model.ListRecord{}, false, mapBadgerErr(err)
	}
	return out, true, nil
}

// Scan iterates inside one read transaction, so it sees the table as of
// the moment the scan started.
func (s *BadgerStore) Scan(ctx context.Context, fn func(model.ListRecord) error) error {
	return mapBadgerErr(s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = listPrefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var rec model.ListRecord
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				return err
			}
			if err := fn(rec); err != nil {
				return err
			}
		}
		return nil
	}))
}

func (s *BadgerStore) ApproximateCount(_ context.Context) (int64, error) {
	var n uint64
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		n, err = readCount(txn)
		return err
	})
	return int64(n), mapBadgerErr(err)
}

func readCount(txn *badger.Txn) (uint64, error) {
	item, err := txn.Get(countKey)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	var n uint64
	err = item.Value(func(val []byte) error {
		if len(val) != 8 {
			return fmt.Errorf("liststore: corrupt entry count (%d bytes)", len(val))
		}
		n = binary.BigEndian.Uint64(val)
		return nil
	})
	return n, err
}

func encodeCount(n uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, n)
	return buf
}

func mapBadgerErr(err error) error {
	if errors.Is(err, badger.ErrDBClosed) {
		return ErrClosed
	}
	return err
}
