package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/Dosada05/alliance-board/db"
	"github.com/Dosada05/alliance-board/models"
)

var (
	ErrShareConflict         = errors.New("session is already shared with this user")
	ErrShareRecipientUnknown = errors.New("share recipient is not a registered user")
)

// ShareRepository stores email grants on sessions. Grants are never revoked.
type ShareRepository interface {
	Create(ctx context.Context, share *models.Share) error
	ListBySession(ctx context.Context, sessionID string) ([]*models.Share, error)
}

type postgresShareRepository struct {
	db *sql.DB
}

func NewPostgresShareRepository(db *sql.DB) ShareRepository {
	return &postgresShareRepository{db: db}
}

func (r *postgresShareRepository) Create(ctx context.Context, share *models.Share) error {
	query := `
		INSERT INTO alliance_shares (session_id, user_email)
		VALUES ($1, $2)
		RETURNING created_at`

	err := r.db.QueryRowContext(ctx, query, share.SessionID, share.UserEmail).Scan(&share.CreatedAt)
	if err != nil {
		if code, constraint, ok := constraintViolation(err); ok {
			switch code {
			case pqUniqueViolation:
				if constraint == db.ConstraintSharePKey {
					return ErrShareConflict
				}
			case pqForeignKeyViolation:
				switch constraint {
				case db.ConstraintShareUserFK:
					return ErrShareRecipientUnknown
				case db.ConstraintShareSessionFK:
					return ErrSessionNotFound
				}
			}
		}
		return err
	}
	return nil
}

func (r *postgresShareRepository) ListBySession(ctx context.Context, sessionID string) ([]*models.Share, error) {
	query := `
		SELECT session_id, user_email, created_at
		FROM alliance_shares
		WHERE session_id = $1
		ORDER BY created_at ASC`

	rows, err := r.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	shares := make([]*models.Share, 0)
	for rows.Next() {
		share := &models.Share{}
		if err := rows.Scan(&share.SessionID, &share.UserEmail, &share.CreatedAt); err != nil {
			return nil, err
		}
		shares = append(shares, share)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return shares, nil
}
