package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Dosada05/alliance-board/board"
	"github.com/Dosada05/alliance-board/models"
	"github.com/Dosada05/alliance-board/repositories"
	"github.com/Dosada05/alliance-board/utils"
)

// SessionNotifier is told about every persisted change so that joined
// clients can refresh.
type SessionNotifier interface {
	NotifySessionUpdated(session *models.Session, origin string)
}

type CreateSessionInput struct {
	ID        string            `json:"id"`
	EventCode string            `json:"event_code"`
	Name      string            `json:"name"`
	Data      models.BoardState `json:"data"`
}

type UpdateSessionInput struct {
	Data models.BoardState `json:"data,omitempty"`
	Name *string           `json:"name,omitempty"`
}

type SessionService interface {
	CreateSession(ctx context.Context, user models.User, input CreateSessionInput) (*models.Session, error)
	GetSession(ctx context.Context, user models.User, id string) (*models.Session, error)
	ListSessions(ctx context.Context, user models.User) ([]*models.Session, error)
	UpdateSession(ctx context.Context, user models.User, id string, input UpdateSessionInput, origin string) (*models.Session, error)
	DeleteSession(ctx context.Context, user models.User, id string) error
}

type sessionService struct {
	sessionRepo repositories.SessionRepository
	notifier    SessionNotifier
	logger      *slog.Logger
}

func NewSessionService(sessionRepo repositories.SessionRepository, notifier SessionNotifier, logger *slog.Logger) SessionService {
	if logger == nil {
		logger = slog.Default()
	}
	return &sessionService{
		sessionRepo: sessionRepo,
		notifier:    notifier,
		logger:      logger,
	}
}

func (s *sessionService) CreateSession(ctx context.Context, user models.User, input CreateSessionInput) (*models.Session, error) {
	if !utils.IsValidSessionID(input.ID) {
		return nil, ErrInvalidSessionID
	}

	data := input.Data
	if data == nil {
		data = models.DefaultBoard()
	}
	if err := board.Validate(data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBoard, err)
	}

	name := strings.TrimSpace(input.Name)
	if name == "" {
		name = models.DefaultSessionName
	}

	session := &models.Session{
		ID:        input.ID,
		OwnerID:   user.ID,
		EventCode: strings.TrimSpace(input.EventCode),
		Name:      name,
		Data:      data,
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		switch {
		case errors.Is(err, repositories.ErrSessionIDConflict):
			return nil, ErrSessionIDConflict
		case errors.Is(err, repositories.ErrSessionOwnerInvalid):
			return nil, ErrAuthenticationFailed
		}
		return nil, fmt.Errorf("failed to create session %s: %w", input.ID, err)
	}

	s.logger.Info("session created", slog.String("session_id", session.ID), slog.String("owner_id", user.ID))
	return session, nil
}

func (s *sessionService) GetSession(ctx context.Context, user models.User, id string) (*models.Session, error) {
	session, err := s.sessionRepo.GetAccessible(ctx, id, user)
	if err != nil {
		if errors.Is(err, repositories.ErrSessionNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session %s: %w", id, err)
	}
	return session, nil
}

func (s *sessionService) ListSessions(ctx context.Context, user models.User) ([]*models.Session, error) {
	sessions, err := s.sessionRepo.ListAccessible(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return sessions, nil
}

func (s *sessionService) UpdateSession(ctx context.Context, user models.User, id string, input UpdateSessionInput, origin string) (*models.Session, error) {
	if input.Data == nil && input.Name == nil {
		return nil, ErrEmptyUpdate
	}
	if input.Data != nil {
		if err := board.Validate(input.Data); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidBoard, err)
		}
	}
	patch := repositories.SessionPatch{Data: input.Data}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			name = models.DefaultSessionName
		}
		patch.Name = &name
	}

	session, err := s.sessionRepo.UpdateAccessible(ctx, id, user, patch)
	if err != nil {
		if errors.Is(err, repositories.ErrSessionNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to update session %s: %w", id, err)
	}

	if s.notifier != nil {
		s.notifier.NotifySessionUpdated(session, origin)
	}
	return session, nil
}

func (s *sessionService) DeleteSession(ctx context.Context, user models.User, id string) error {
	session, err := s.GetSession(ctx, user, id)
	if err != nil {
		return err
	}
	if !session.IsOwnedBy(user.ID) {
		return ErrForbiddenOperation
	}

	if err := s.sessionRepo.DeleteOwned(ctx, id, user.ID); err != nil {
		if errors.Is(err, repositories.ErrSessionNotFound) {
			return ErrSessionNotFound
		}
		return fmt.Errorf("failed to delete session %s: %w", id, err)
	}
	s.logger.Info("session deleted", slog.String("session_id", id))
	return nil
}
