package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

const (
	defaultBusPoll = 100 * time.Millisecond
	busKeepEvents  = 1000
	busWriteTimeout = 5 * time.Second
)

type SQLiteBusOption func(*SQLiteBus)

func WithPollInterval(d time.Duration) SQLiteBusOption {
	return func(b *SQLiteBus) { b.interval = d }
}

func WithBusLogger(l *slog.Logger) SQLiteBusOption {
	return func(b *SQLiteBus) {
		if l != nil {
			b.logger = l
		}
	}
}

// SQLiteBus is a Bus shared by every process that opens the same local store
// file. Published events are appended to kv_events; each subscriber polls
// for rows newer than the last one it saw.
type SQLiteBus struct {
	db       *sql.DB
	interval time.Duration
	logger   *slog.Logger
}

func NewSQLiteBus(store *SQLiteLocalStore, opts ...SQLiteBusOption) *SQLiteBus {
	b := &SQLiteBus{db: store.db, interval: defaultBusPoll, logger: slog.Default()}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *SQLiteBus) Publish(ev StorageEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), busWriteTimeout)
	defer cancel()

	res, err := b.db.ExecContext(ctx,
		`INSERT INTO kv_events (k, v, origin, at_unixms) VALUES (?, ?, ?, ?)`,
		ev.Key, ev.NewValue, ev.Origin, time.Now().UnixMilli())
	if err != nil {
		b.logger.Error("failed to publish storage event", slog.String("key", ev.Key), slog.Any("error", err))
		return
	}
	id, err := res.LastInsertId()
	if err != nil || id%100 != 0 {
		return
	}
	if _, err := b.db.ExecContext(ctx, `DELETE FROM kv_events WHERE id <= ?`, id-busKeepEvents); err != nil {
		b.logger.Warn("failed to prune storage events", slog.Any("error", err))
	}
}

// Subscribe delivers events published by other origins after the call. fn
// runs on the subscriber's polling goroutine.
func (b *SQLiteBus) Subscribe(origin string, fn func(StorageEvent)) func() {
	last, err := b.lastID()
	if err != nil {
		b.logger.Error("failed to read storage event log", slog.Any("error", err))
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(b.interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				events, newest, err := b.since(last, origin)
				if err != nil {
					b.logger.Warn("failed to poll storage events", slog.Any("error", err))
					continue
				}
				last = newest
				for _, ev := range events {
					select {
					case <-stop:
						return
					default:
					}
					fn(ev)
				}
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-done
		})
	}
}

func (b *SQLiteBus) lastID() (int64, error) {
	var id sql.NullInt64
	if err := b.db.QueryRow(`SELECT MAX(id) FROM kv_events`).Scan(&id); err != nil {
		return 0, fmt.Errorf("read last event id: %w", err)
	}
	return id.Int64, nil
}

// since returns events after id from other origins and the newest id seen.
func (b *SQLiteBus) since(id int64, origin string) ([]StorageEvent, int64, error) {
	rows, err := b.db.Query(
		`SELECT id, k, v, origin FROM kv_events WHERE id > ? ORDER BY id`, id)
	if err != nil {
		return nil, id, fmt.Errorf("poll events: %w", err)
	}
	defer rows.Close()

	var events []StorageEvent
	newest := id
	for rows.Next() {
		var ev StorageEvent
		var rowID int64
		if err := rows.Scan(&rowID, &ev.Key, &ev.NewValue, &ev.Origin); err != nil {
			return nil, id, fmt.Errorf("scan event: %w", err)
		}
		newest = rowID
		if ev.Origin != origin {
			events = append(events, ev)
		}
	}
	if err := rows.Err(); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, id, fmt.Errorf("poll events: %w", err)
	}
	return events, newest, nil
}
