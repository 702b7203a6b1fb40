package db

import (
	"context"
	"database/sql"
	"fmt"
)

// Constraint names the repositories translate into domain errors.
const (
	ConstraintSessionPKey     = "alliance_sessions_pkey"
	ConstraintSessionOwnerFK  = "alliance_sessions_owner_id_fkey"
	ConstraintSharePKey       = "alliance_shares_pkey"
	ConstraintShareSessionFK  = "alliance_shares_session_id_fkey"
	ConstraintShareUserFK     = "alliance_shares_user_email_fkey"
	ConstraintUserEmailUnique = "scout_users_email_key"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS scout_users (
		id         TEXT PRIMARY KEY,
		email      TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		CONSTRAINT scout_users_email_key UNIQUE (email)
	)`,
	`CREATE TABLE IF NOT EXISTS alliance_sessions (
		id         TEXT NOT NULL,
		owner_id   TEXT NOT NULL,
		event_code TEXT NOT NULL DEFAULT '',
		name       TEXT NOT NULL DEFAULT 'Untitled Session',
		data       JSONB NOT NULL DEFAULT '{}'::jsonb,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		CONSTRAINT alliance_sessions_pkey PRIMARY KEY (id),
		CONSTRAINT alliance_sessions_owner_id_fkey FOREIGN KEY (owner_id)
			REFERENCES scout_users (id) ON DELETE CASCADE
	)`,
	`CREATE INDEX IF NOT EXISTS idx_alliance_sessions_owner
		ON alliance_sessions (owner_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS alliance_shares (
		session_id TEXT NOT NULL,
		user_email TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		CONSTRAINT alliance_shares_pkey PRIMARY KEY (session_id, user_email),
		CONSTRAINT alliance_shares_session_id_fkey FOREIGN KEY (session_id)
			REFERENCES alliance_sessions (id) ON DELETE CASCADE,
		CONSTRAINT alliance_shares_user_email_fkey FOREIGN KEY (user_email)
			REFERENCES scout_users (email) ON UPDATE CASCADE ON DELETE CASCADE
	)`,
	`CREATE INDEX IF NOT EXISTS idx_alliance_shares_email ON alliance_shares (user_email)`,
}

// Migrate creates the session store tables when they are missing.
func Migrate(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin migration: %w", err)
	}
	defer tx.Rollback()

	for i, stmt := range schema {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration step %d failed: %w", i+1, err)
		}
	}
	return tx.Commit()
}
