package middleware

import (
	"context"
	"errors"

	"github.com/Dosada05/alliance-board/models"
)

type contextKey string

const userContextKey contextKey = "user"

var ErrNoUser = errors.New("user not found in context")

func WithUser(ctx context.Context, user models.User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

func UserFromContext(ctx context.Context) (models.User, error) {
	user, ok := ctx.Value(userContextKey).(models.User)
	if !ok || user.ID == "" {
		return models.User{}, ErrNoUser
	}
	return user, nil
}
