package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Dosada05/alliance-board/models"
	"github.com/Dosada05/alliance-board/repositories"
)

type UserService interface {
	// Touch records the identity of an authenticated request.
	Touch(ctx context.Context, user *models.User) error
}

type userService struct {
	userRepo repositories.UserRepository
}

func NewUserService(userRepo repositories.UserRepository) UserService {
	return &userService{userRepo: userRepo}
}

func (s *userService) Touch(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		return ErrAuthenticationFailed
	}
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))

	if err := s.userRepo.Upsert(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrUserEmailConflict) {
			return ErrUserEmailConflict
		}
		return fmt.Errorf("failed to record user %s: %w", user.ID, err)
	}
	return nil
}
