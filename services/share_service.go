package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Dosada05/alliance-board/models"
	"github.com/Dosada05/alliance-board/repositories"
	"github.com/Dosada05/alliance-board/utils"
)

type ShareService interface {
	ShareSession(ctx context.Context, user models.User, sessionID, email string) (*models.Share, error)
	ListShares(ctx context.Context, user models.User, sessionID string) ([]*models.Share, error)
}

type shareService struct {
	shareRepo   repositories.ShareRepository
	sessionRepo repositories.SessionRepository
}

func NewShareService(shareRepo repositories.ShareRepository, sessionRepo repositories.SessionRepository) ShareService {
	return &shareService{
		shareRepo:   shareRepo,
		sessionRepo: sessionRepo,
	}
}

// ShareSession grants email access to a session owned by user.
func (s *shareService) ShareSession(ctx context.Context, user models.User, sessionID, email string) (*models.Share, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if !utils.IsValidEmail(email) {
		return nil, ErrInvalidEmail
	}

	session, err := s.sessionRepo.GetAccessible(ctx, sessionID, user)
	if err != nil {
		if errors.Is(err, repositories.ErrSessionNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session %s: %w", sessionID, err)
	}
	if !session.IsOwnedBy(user.ID) {
		return nil, ErrForbiddenOperation
	}

	share := &models.Share{SessionID: sessionID, UserEmail: email}
	if err := s.shareRepo.Create(ctx, share); err != nil {
		switch {
		case errors.Is(err, repositories.ErrShareConflict):
			return nil, ErrShareConflict
		case errors.Is(err, repositories.ErrShareRecipientUnknown):
			return nil, ErrShareRecipientUnknown
		case errors.Is(err, repositories.ErrSessionNotFound):
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to share session %s: %w", sessionID, err)
	}
	return share, nil
}

func (s *shareService) ListShares(ctx context.Context, user models.User, sessionID string) ([]*models.Share, error) {
	if _, err := s.sessionRepo.GetAccessible(ctx, sessionID, user); err != nil {
		if errors.Is(err, repositories.ErrSessionNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session %s: %w", sessionID, err)
	}

	shares, err := s.shareRepo.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list shares of session %s: %w", sessionID, err)
	}
	return shares, nil
}
