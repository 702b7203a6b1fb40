// Package persistence keeps the board durable across reloads and in step
// with other windows and the remote session store.
package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Durable keys.
const (
	KeyEventCode = "frc_event_code"
	KeyBoardData = "frc_alliance_data"
)

var ErrKeyNotFound = errors.New("local key not found")

// LocalStore is a durable string key/value store shared by every window of
// a workspace.
type LocalStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}

type SQLiteLocalStore struct {
	db *sql.DB
}

// OpenSQLiteLocalStore opens (creating if needed) the key/value file at path.
// ":memory:" gives a private in-process store.
func OpenSQLiteLocalStore(ctx context.Context, path string) (*SQLiteLocalStore, error) {
	db, err := sql.Open("sqlite", localDSN(path))
	if err != nil {
		return nil, fmt.Errorf("open local store %s: %w", path, err)
	}
	if path == ":memory:" {
		// every pooled connection would otherwise get its own database
		db.SetMaxOpenConns(1)
	}

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS kv (
			k TEXT PRIMARY KEY,
			v TEXT NOT NULL,
			updated_at_unixms INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS kv_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			k TEXT NOT NULL,
			v TEXT NOT NULL,
			origin TEXT NOT NULL,
			at_unixms INTEGER NOT NULL
		);`,
	}
	for _, st := range stmts {
		if _, err := db.ExecContext(ctx, st); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("prepare local store %s: %w", path, err)
		}
	}
	return &SQLiteLocalStore{db: db}, nil
}

// localDSN puts the pragmas into the DSN so that every pooled connection
// gets them, not only the first one.
func localDSN(path string) string {
	if path == ":memory:" {
		return path + "?_pragma=busy_timeout(5000)"
	}
	return path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
}

func (s *SQLiteLocalStore) Get(ctx context.Context, key string) (string, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT v FROM kv WHERE k = ?`, key).Scan(&v)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrKeyNotFound
		}
		return "", fmt.Errorf("read %s: %w", key, err)
	}
	return v, nil
}

func (s *SQLiteLocalStore) Set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kv (k, v, updated_at_unixms) VALUES (?, ?, ?)
		 ON CONFLICT(k) DO UPDATE SET v = excluded.v, updated_at_unixms = excluded.updated_at_unixms`,
		key, value, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteLocalStore) Close() error {
	return s.db.Close()
}
