package services_test

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Dosada05/alliance-board/models"
	"github.com/Dosada05/alliance-board/repositories"
)

// memoryStore implements the repositories against maps, applying the same
// visibility rule as the SQL: owner or shared by email.
type memoryStore struct {
	mu       sync.Mutex
	sessions map[string]*models.Session
	shares   map[string][]*models.Share
	users    map[string]*models.User
	clock    time.Time
	failWith error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		sessions: map[string]*models.Session{},
		shares:   map[string][]*models.Share{},
		users:    map[string]*models.User{},
		clock:    time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (m *memoryStore) tick() time.Time {
	m.clock = m.clock.Add(time.Minute)
	return m.clock
}

func (m *memoryStore) visible(s *models.Session, user models.User) bool {
	if s.OwnerID == user.ID {
		return true
	}
	for _, sh := range m.shares[s.ID] {
		if sh.UserEmail == user.Email {
			return true
		}
	}
	return false
}

func (m *memoryStore) Create(_ context.Context, session *models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	if _, exists := m.sessions[session.ID]; exists {
		return repositories.ErrSessionIDConflict
	}
	session.CreatedAt = m.tick()
	session.UpdatedAt = session.CreatedAt
	cp := *session
	m.sessions[session.ID] = &cp
	return nil
}

func (m *memoryStore) GetAccessible(_ context.Context, id string, user models.User) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok || !m.visible(s, user) {
		return nil, repositories.ErrSessionNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memoryStore) ListAccessible(_ context.Context, user models.User) ([]*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.Session, 0)
	for _, s := range m.sessions {
		if m.visible(s, user) {
			cp := *s
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memoryStore) UpdateAccessible(_ context.Context, id string, user models.User, patch repositories.SessionPatch) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok || !m.visible(s, user) {
		return nil, repositories.ErrSessionNotFound
	}
	if patch.Data != nil {
		s.Data = patch.Data.Clone()
	}
	if patch.Name != nil {
		s.Name = *patch.Name
	}
	s.UpdatedAt = m.tick()
	cp := *s
	return &cp, nil
}

func (m *memoryStore) DeleteOwned(_ context.Context, id string, ownerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok || s.OwnerID != ownerID {
		return repositories.ErrSessionNotFound
	}
	delete(m.sessions, id)
	delete(m.shares, id)
	return nil
}

type memoryShares struct{ *memoryStore }

func (m memoryShares) Create(_ context.Context, share *models.Share) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[share.SessionID]; !ok {
		return repositories.ErrSessionNotFound
	}
	known := false
	for _, u := range m.users {
		if u.Email == share.UserEmail {
			known = true
		}
	}
	if !known {
		return repositories.ErrShareRecipientUnknown
	}
	for _, existing := range m.shares[share.SessionID] {
		if existing.UserEmail == share.UserEmail {
			return repositories.ErrShareConflict
		}
	}
	share.CreatedAt = m.tick()
	cp := *share
	m.shares[share.SessionID] = append(m.shares[share.SessionID], &cp)
	return nil
}

func (m memoryShares) ListBySession(_ context.Context, sessionID string) ([]*models.Share, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.Share, 0, len(m.shares[sessionID]))
	for _, sh := range m.shares[sessionID] {
		cp := *sh
		out = append(out, &cp)
	}
	return out, nil
}

type memoryUsers struct{ *memoryStore }

func (m memoryUsers) Upsert(_ context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, u := range m.users {
		if id != user.ID && u.Email == user.Email {
			return repositories.ErrUserEmailConflict
		}
	}
	if existing, ok := m.users[user.ID]; ok {
		existing.Email = user.Email
		user.CreatedAt = existing.CreatedAt
		return nil
	}
	user.CreatedAt = m.tick()
	cp := *user
	m.users[user.ID] = &cp
	return nil
}

func (m memoryUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repositories.ErrUserNotFound
}

type notification struct {
	session *models.Session
	origin  string
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notification
}

func (n *recordingNotifier) NotifySessionUpdated(session *models.Session, origin string) {
	n.mu.Lock()
	n.sent = append(n.sent, notification{session: session, origin: origin})
	n.mu.Unlock()
}
