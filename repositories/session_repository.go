package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Dosada05/alliance-board/db"
	"github.com/Dosada05/alliance-board/models"
)

var (
	ErrSessionNotFound     = errors.New("session not found")
	ErrSessionIDConflict   = errors.New("session id conflict")
	ErrSessionOwnerInvalid = errors.New("session owner does not exist")
)

// SessionPatch lists the columns an update may change. Nil fields keep
// their stored value.
type SessionPatch struct {
	Data models.BoardState
	Name *string
}

// SessionRepository stores alliance sessions. Reads and writes are scoped to
// what the caller may see: sessions they own or that were shared with their
// email.
type SessionRepository interface {
	Create(ctx context.Context, session *models.Session) error
	GetAccessible(ctx context.Context, id string, user models.User) (*models.Session, error)
	ListAccessible(ctx context.Context, user models.User) ([]*models.Session, error)
	UpdateAccessible(ctx context.Context, id string, user models.User, patch SessionPatch) (*models.Session, error)
	DeleteOwned(ctx context.Context, id string, ownerID string) error
}

type postgresSessionRepository struct {
	db *sql.DB
}

func NewPostgresSessionRepository(db *sql.DB) SessionRepository {
	return &postgresSessionRepository{db: db}
}

const sessionColumns = `s.id, s.owner_id, s.event_code, s.name, s.data, s.created_at, s.updated_at`

// accessClause filters alias s to rows owned by the user placeholder or
// shared with the email placeholder.
func accessClause(userParam, emailParam string) string {
	return `(s.owner_id = ` + userParam + ` OR EXISTS (
		SELECT 1 FROM alliance_shares sh
		WHERE sh.session_id = s.id AND sh.user_email = ` + emailParam + `))`
}

func scanSession(row rowScanner) (*models.Session, error) {
	session := &models.Session{}
	var raw []byte
	err := row.Scan(
		&session.ID,
		&session.OwnerID,
		&session.EventCode,
		&session.Name,
		&raw,
		&session.CreatedAt,
		&session.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &session.Data); err != nil {
			return nil, fmt.Errorf("failed to decode data of session %s: %w", session.ID, err)
		}
	}
	return session, nil
}

func (r *postgresSessionRepository) Create(ctx context.Context, session *models.Session) error {
	data, err := json.Marshal(session.Data)
	if err != nil {
		return fmt.Errorf("failed to encode session data: %w", err)
	}

	query := `
		INSERT INTO alliance_sessions (id, owner_id, event_code, name, data)
		VALUES ($1, $2, $3, $4, $5::jsonb)
		RETURNING created_at, updated_at`

	err = r.db.QueryRowContext(ctx, query,
		session.ID,
		session.OwnerID,
		session.EventCode,
		session.Name,
		string(data),
	).Scan(&session.CreatedAt, &session.UpdatedAt)
	if err != nil {
		if code, constraint, ok := constraintViolation(err); ok {
			switch {
			case code == pqUniqueViolation && constraint == db.ConstraintSessionPKey:
				return ErrSessionIDConflict
			case code == pqForeignKeyViolation && constraint == db.ConstraintSessionOwnerFK:
				return ErrSessionOwnerInvalid
			}
		}
		return err
	}
	return nil
}

func (r *postgresSessionRepository) GetAccessible(ctx context.Context, id string, user models.User) (*models.Session, error) {
	query := `SELECT ` + sessionColumns + `
		FROM alliance_sessions s
		WHERE s.id = $1 AND ` + accessClause("$2", "$3")

	session, err := scanSession(r.db.QueryRowContext(ctx, query, id, user.ID, user.Email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return session, nil
}

func (r *postgresSessionRepository) ListAccessible(ctx context.Context, user models.User) ([]*models.Session, error) {
	query := `SELECT ` + sessionColumns + `
		FROM alliance_sessions s
		WHERE ` + accessClause("$1", "$2") + `
		ORDER BY s.created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, user.ID, user.Email)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sessions := make([]*models.Session, 0)
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return sessions, nil
}

func (r *postgresSessionRepository) UpdateAccessible(ctx context.Context, id string, user models.User, patch SessionPatch) (*models.Session, error) {
	var data sql.NullString
	if patch.Data != nil {
		raw, err := json.Marshal(patch.Data)
		if err != nil {
			return nil, fmt.Errorf("failed to encode session data: %w", err)
		}
		data = sql.NullString{String: string(raw), Valid: true}
	}

	query := `
		UPDATE alliance_sessions s
		SET data = COALESCE($4::jsonb, s.data),
		    name = COALESCE($5, s.name),
		    updated_at = now()
		WHERE s.id = $1 AND ` + accessClause("$2", "$3") + `
		RETURNING ` + sessionColumns

	session, err := scanSession(r.db.QueryRowContext(ctx, query, id, user.ID, user.Email, data, patch.Name))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return session, nil
}

func (r *postgresSessionRepository) DeleteOwned(ctx context.Context, id string, ownerID string) error {
	query := `DELETE FROM alliance_sessions WHERE id = $1 AND owner_id = $2`

	result, err := r.db.ExecContext(ctx, query, id, ownerID)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrSessionNotFound)
}
