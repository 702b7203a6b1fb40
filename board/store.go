// Package board holds the alliance board state, its pure mutation rules and
// the drag-reorder state machine that drives them.
package board

import (
	"reflect"
	"sync"

	"github.com/Dosada05/alliance-board/models"
)

// Cause tells observers where a change came from.
type Cause string

const (
	CauseLocal     Cause = "local"      // edits made in this window
	CauseRemote    Cause = "remote"     // snapshot received from the session store
	CauseLocalSync Cause = "local_sync" // snapshot merged from another window
	CauseRestore   Cause = "restore"    // loaded from the local durable copy
)

// Change is delivered to observers after every state transition.
type Change struct {
	State   models.BoardState
	Version uint64
	Cause   Cause
}

// Observer is called synchronously after a change is applied.
type Observer func(Change)

// Store is the single owner of the in-memory board. All writes replace the
// whole mapping, so a failed operation never leaves a half-applied state.
type Store struct {
	mu        sync.RWMutex
	state     models.BoardState
	version   uint64
	observers map[int]Observer
	nextObsID int
}

// NewStore creates a store seeded with initial, or the default board when nil.
func NewStore(initial models.BoardState) *Store {
	if initial == nil {
		initial = models.DefaultBoard()
	}
	return &Store{
		state:     initial.Clone(),
		observers: make(map[int]Observer),
	}
}

// Snapshot returns a deep copy of the current board.
func (s *Store) Snapshot() models.BoardState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Clone()
}

// Version increases by one on every applied change.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Subscribe registers an observer and returns a function removing it.
func (s *Store) Subscribe(fn Observer) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextObsID
	s.nextObsID++
	s.observers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.observers, id)
		s.mu.Unlock()
	}
}

func (s *Store) ReplaceAll(newState models.BoardState) {
	s.ReplaceAllFrom(newState, CauseLocal)
}

// ReplaceAllFrom swaps the whole board and tags the change with cause.
func (s *Store) ReplaceAllFrom(newState models.BoardState, cause Cause) {
	if newState == nil {
		newState = models.DefaultBoard()
	}
	s.apply(cause, func(models.BoardState) (models.BoardState, error) {
		return newState.Clone(), nil
	})
}

func (s *Store) UpdateTierMeta(tierID models.TierKey, name, description string) error {
	return s.apply(CauseLocal, func(cur models.BoardState) (models.BoardState, error) {
		return UpdateTierMeta(cur, tierID, name, description)
	})
}

func (s *Store) AddItem(item models.Item, tierID models.TierKey) error {
	return s.apply(CauseLocal, func(cur models.BoardState) (models.BoardState, error) {
		return AddItem(cur, item, tierID)
	})
}

func (s *Store) MoveWithinTier(tierID models.TierKey, from, to int) error {
	return s.apply(CauseLocal, func(cur models.BoardState) (models.BoardState, error) {
		return MoveWithinTier(cur, tierID, from, to)
	})
}

func (s *Store) MoveAcrossTiers(fromTier, toTier models.TierKey, itemID string, destIndex int) error {
	return s.apply(CauseLocal, func(cur models.BoardState) (models.BoardState, error) {
		return MoveAcrossTiers(cur, fromTier, toTier, itemID, destIndex)
	})
}

// ResetWithPool empties every tier and puts items into POOL.
func (s *Store) ResetWithPool(items []models.Item) {
	s.apply(CauseLocal, func(cur models.BoardState) (models.BoardState, error) {
		return ResetWithPool(cur, items), nil
	})
}

// apply runs op against the current state. A result identical (same map) to
// the input is treated as a no-op: no version bump, no notification.
func (s *Store) apply(cause Cause, op func(models.BoardState) (models.BoardState, error)) error {
	s.mu.Lock()
	next, err := op(s.state)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if sameMap(next, s.state) {
		s.mu.Unlock()
		return nil
	}
	s.state = next
	s.version++
	change := Change{State: next.Clone(), Version: s.version, Cause: cause}
	observers := make([]Observer, 0, len(s.observers))
	for _, fn := range s.observers {
		observers = append(observers, fn)
	}
	s.mu.Unlock()

	for _, fn := range observers {
		fn(change)
	}
	return nil
}

func sameMap(a, b models.BoardState) bool {
	if a == nil || b == nil {
		return false
	}
	// Pure mutations return their input untouched for no-ops.
	return reflect.ValueOf(a).Pointer() == reflect.ValueOf(b).Pointer()
}
