package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/Dosada05/alliance-board/db"
	"github.com/Dosada05/alliance-board/models"
)

var (
	ErrUserNotFound      = errors.New("user not found")
	ErrUserEmailConflict = errors.New("email already belongs to another user")
)

// UserRepository records the identities seen in access tokens so that shares
// can reference them by email.
type UserRepository interface {
	Upsert(ctx context.Context, user *models.User) error
	GetByEmail(ctx context.Context, email string) (*models.User, error)
}

type postgresUserRepository struct {
	db *sql.DB
}

func NewPostgresUserRepository(db *sql.DB) UserRepository {
	return &postgresUserRepository{db: db}
}

func (r *postgresUserRepository) Upsert(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO scout_users (id, email)
		VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET email = EXCLUDED.email
		RETURNING created_at`

	err := r.db.QueryRowContext(ctx, query, user.ID, user.Email).Scan(&user.CreatedAt)
	if err != nil {
		if code, constraint, ok := constraintViolation(err); ok &&
			code == pqUniqueViolation && constraint == db.ConstraintUserEmailUnique {
			return ErrUserEmailConflict
		}
		return err
	}
	return nil
}

func (r *postgresUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT id, email, created_at FROM scout_users WHERE email = $1`

	user := &models.User{}
	err := r.db.QueryRowContext(ctx, query, email).Scan(&user.ID, &user.Email, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}
