// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package liststore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ManuGH/listflow/internal/model"
	"github.com/ManuGH/listflow/internal/persistence/sqlite"
)

var sqliteMigrations = []string{
	`CREATE TABLE IF NOT EXISTS lists (
		name          TEXT PRIMARY KEY,
		status        TEXT NOT NULL CHECK (status IN ('ACTIVE', 'DELETED')),
		updated_at_ms INTEGER NOT NULL
	) WITHOUT ROWID`,
	`CREATE TABLE IF NOT EXISTS meta (
		key   TEXT PRIMARY KEY,
		value INTEGER NOT NULL
	) WITHOUT ROWID`,
	`INSERT INTO meta (key, value) SELECT 'count', COUNT(*) FROM lists`,
}

// SQLiteStore persists the table in a single SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLiteStore opens or creates the database at path and brings its
// schema up to date.
func OpenSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("liststore: create %s: %w", dir, err)
		}
	}
	db, err := sqlite.Open(ctx, path, sqlite.DefaultConfig())
	if err != nil {
		return nil, err
	}
	if problems, err := sqlite.VerifyIntegrity(ctx, db, false); err != nil || problems != nil {
		_ = db.Close()
		if err == nil {
			err = fmt.Errorf("integrity check failed: %v", problems)
		}
		return nil, fmt.Errorf("liststore: %s: %w", path, err)
	}
	if err := sqlite.Migrate(ctx, db, sqliteMigrations); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

// Apply inserts first so the transaction takes the write lock on its first
// statement. The meta count moves only when the insert added a row.
func (s *SQLiteStore) Apply(ctx context.Context, rec model.ListRecord) error {
	if err := validate(rec); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return mapSQLErr(err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UnixMilli()
	res, err := tx.ExecContext(ctx,
		`INSERT INTO lists (name, status, updated_at_ms) VALUES (?, ?, ?) ON CONFLICT(name) DO NOTHING`,
		rec.Name, string(rec.Status), now)
	if err != nil {
		return mapSQLErr(err)
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if inserted == 1 {
		_, err = tx.ExecContext(ctx, `UPDATE meta SET value = value + 1 WHERE key = 'count'`)
	} else {
		_, err = tx.ExecContext(ctx,
			`UPDATE lists SET status = ?, updated_at_ms = ? WHERE name = ?`,
			string(rec.Status), now, rec.Name)
	}
	if err != nil {
		return mapSQLErr(err)
	}
	return mapSQLErr(tx.Commit())
}

func (s *SQLiteStore) Get(ctx context.Context, name string) (model.ListRecord, bool, error) {
	var status string
	err := s.db.QueryRowContext(ctx, `SELECT status FROM lists WHERE name = ?`, name).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return model.ListRecord{}, false, nil
	}
	if err != nil {
		return model.ListRecord{}, false, mapSQLErr(err)
	}
	return model.ListRecord{Name: name, Status: model.ListStatus(status)}, true, nil
}

// Scan reads inside one transaction so the rows come from a single WAL
// snapshot.
func (s *SQLiteStore) Scan(ctx context.Context, fn func(model.ListRecord) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return mapSQLErr(err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, `SELECT name, status FROM lists ORDER BY name`)
	if err != nil {
		return mapSQLErr(err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var name, status string
		if err := rows.Scan(&name, &status); err != nil {
			return err
		}
		if err := fn(model.ListRecord{Name: name, Status: model.ListStatus(status)}); err != nil {
			return err
		}
	}
	return rows.Err()
}

// ApproximateCount reads the maintained meta row, a single key lookup.
func (s *SQLiteStore) ApproximateCount(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = 'count'`).Scan(&n)
	return n, mapSQLErr(err)
}

func mapSQLErr(err error) error {
	if err != nil && err.Error() == "sql: database is closed" {
		return ErrClosed
	}
	return err
}
