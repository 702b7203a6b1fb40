package board

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Dosada05/alliance-board/models"
)

// DragPhase is the state of a drag gesture.
type DragPhase int

const (
	DragIdle DragPhase = iota
	DragDragging
	DragCancelled
)

func (p DragPhase) String() string {
	switch p {
	case DragIdle:
		return "idle"
	case DragDragging:
		return "dragging"
	case DragCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("DragPhase(%d)", int(p))
	}
}

var (
	ErrDragInProgress = errors.New("a drag gesture is already in progress")
	ErrNotDragging    = errors.New("no drag gesture in progress")
)

// Rect is an element's box in viewport coordinates.
type Rect struct {
	Top    float64
	Height float64
}

// CenterY is the vertical center of the box.
func (r Rect) CenterY() float64 { return r.Top + r.Height/2 }

// DragTarget is what the pointer is over: a tier (ID is a tier key) or an
// item (ID is an item id). Rect is the hovered element's box.
type DragTarget struct {
	ID   string
	Rect Rect
}

// PresenceNotifier receives the "item is being moved" signal for peers.
type PresenceNotifier interface {
	BroadcastDrag(itemID string, dragging bool)
}

// DropOutcome describes how a gesture ended.
type DropOutcome struct {
	ItemID    string
	FromTier  models.TierKey
	ToTier    models.TierKey
	Reordered bool
	// Detached is set when the item was released outside every drop target;
	// the UI may open the team in its own view.
	Detached bool
}

// DragEngine turns pointer gestures into board mutations. Cross-tier moves
// are committed when the hovered tier changes, so the board reflects the
// gesture live; same-tier reorders are committed on drop.
type DragEngine struct {
	store    *Store
	presence PresenceNotifier

	mu        sync.Mutex
	phase     DragPhase
	activeID   string
	startTier  models.TierKey
	startIndex int
	relocated  bool
}

func NewDragEngine(store *Store, presence PresenceNotifier) *DragEngine {
	return &DragEngine{store: store, presence: presence}
}

// Phase returns the current gesture phase.
func (e *DragEngine) Phase() DragPhase {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.phase
}

// ActiveID returns the id of the item being dragged, if any.
func (e *DragEngine) ActiveID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.activeID
}

// Start begins dragging itemID.
func (e *DragEngine) Start(itemID string) error {
	e.mu.Lock()
	if e.phase == DragDragging {
		e.mu.Unlock()
		return ErrDragInProgress
	}
	state := e.store.Snapshot()
	tier, ok := FindContainer(state, itemID)
	if !ok || models.TierKey(itemID) == tier {
		e.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrItemNotFound, itemID)
	}
	e.phase = DragDragging
	e.activeID = itemID
	e.startTier = tier
	e.startIndex = IndexOf(state[tier].Items, itemID)
	e.relocated = false
	e.mu.Unlock()

	e.notify(itemID, true)
	return nil
}

// Over handles the pointer hovering target while the dragged item's box,
// moved by the pointer translation, is active. It relocates the item when
// target belongs to another tier and reports whether the board changed.
func (e *DragEngine) Over(target DragTarget, active Rect) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.phase != DragDragging {
		return false, ErrNotDragging
	}
	if target.ID == "" || target.ID == e.activeID {
		return false, nil
	}

	state := e.store.Snapshot()
	activeTier, ok := FindContainer(state, e.activeID)
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrItemNotFound, e.activeID)
	}
	overTier, ok := FindContainer(state, target.ID)
	if !ok || overTier == activeTier {
		return false, nil
	}

	index := InsertionIndex(state[overTier].Items, target, active)
	if err := e.store.MoveAcrossTiers(activeTier, overTier, e.activeID, index); err != nil {
		return false, err
	}
	e.relocated = true
	return true, nil
}

// InsertionIndex picks where the dragged item lands in items when hovering
// target. Hovering the tier itself appends (len+1, clamped by the move).
// Hovering an item inserts after it when the dragged box's center is below
// the hovered item's center, otherwise before it.
func InsertionIndex(items []models.Item, target DragTarget, active Rect) int {
	overIndex := IndexOf(items, target.ID)
	if overIndex < 0 {
		return len(items) + 1
	}
	if active.CenterY() > target.Rect.CenterY() {
		return overIndex + 1
	}
	return overIndex
}

// Drop ends the gesture over overID (empty when released outside any target).
// The presence signal is cleared whatever the result.
func (e *DragEngine) Drop(overID string) (DropOutcome, error) {
	e.mu.Lock()
	if e.phase != DragDragging {
		e.mu.Unlock()
		return DropOutcome{}, ErrNotDragging
	}
	itemID := e.activeID
	outcome := DropOutcome{ItemID: itemID, FromTier: e.startTier}
	defer func() {
		e.reset(DragIdle)
		e.mu.Unlock()
		e.notify(itemID, false)
	}()

	state := e.store.Snapshot()
	activeTier, ok := FindContainer(state, itemID)
	if !ok {
		return outcome, fmt.Errorf("%w: %s", ErrItemNotFound, itemID)
	}
	outcome.ToTier = activeTier

	if overID == "" {
		outcome.Detached = true
		return outcome, nil
	}

	overTier, ok := FindContainer(state, overID)
	if !ok || overTier != activeTier {
		return outcome, nil
	}

	items := state[activeTier].Items
	from := IndexOf(items, itemID)
	to := IndexOf(items, overID)
	if to < 0 || from == to {
		return outcome, nil
	}
	if err := e.store.MoveWithinTier(activeTier, from, to); err != nil {
		return outcome, err
	}
	outcome.Reordered = true
	return outcome, nil
}

// Cancel aborts the gesture. A relocated item goes back to its starting tier
// and index; the rest of the board, including changes from peers that
// arrived during the gesture, is left alone.
func (e *DragEngine) Cancel() error {
	e.mu.Lock()
	if e.phase != DragDragging {
		e.mu.Unlock()
		return ErrNotDragging
	}
	itemID := e.activeID
	startTier, startIndex, relocated := e.startTier, e.startIndex, e.relocated
	e.reset(DragCancelled)
	e.mu.Unlock()

	var err error
	if relocated {
		err = e.undoRelocation(itemID, startTier, startIndex)
	}
	e.notify(itemID, false)
	return err
}

func (e *DragEngine) undoRelocation(itemID string, tier models.TierKey, index int) error {
	state := e.store.Snapshot()
	current, ok := FindContainer(state, itemID)
	if !ok {
		// a peer removed the item meanwhile
		return nil
	}
	if _, ok := state[tier]; !ok {
		return nil
	}
	return e.store.MoveAcrossTiers(current, tier, itemID, index)
}

// reset must be called with e.mu held.
func (e *DragEngine) reset(phase DragPhase) {
	e.phase = phase
	e.activeID = ""
	e.startTier = ""
	e.startIndex = 0
	e.relocated = false
}

func (e *DragEngine) notify(itemID string, dragging bool) {
	if e.presence != nil {
		e.presence.BroadcastDrag(itemID, dragging)
	}
}
