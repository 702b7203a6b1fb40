package board

import (
	"errors"
	"fmt"

	"github.com/Dosada05/alliance-board/models"
)

var (
	ErrUnknownTier     = errors.New("unknown tier")
	ErrItemNotFound    = errors.New("item not found on board")
	ErrIndexOutOfRange = errors.New("item index out of range")
	ErrInvalidItem     = errors.New("item must have a positive team number")
)

// The functions below never modify their input: they return a new BoardState
// sharing untouched tiers with the old one.

// UpdateTierMeta renames a tier and replaces its description.
func UpdateTierMeta(state models.BoardState, tierID models.TierKey, name, description string) (models.BoardState, error) {
	tier, ok := state[tierID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTier, tierID)
	}
	next := shallowCopy(state)
	tier.Name = name
	tier.Description = description
	next[tierID] = tier
	return next, nil
}

// AddItem removes every occurrence of item.Team from the board and appends
// the item, with its id re-derived from the team number, to tierID.
func AddItem(state models.BoardState, item models.Item, tierID models.TierKey) (models.BoardState, error) {
	if item.Team <= 0 {
		return nil, ErrInvalidItem
	}
	if _, ok := state[tierID]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTier, tierID)
	}

	next := make(models.BoardState, len(state))
	for key, tier := range state {
		kept := make([]models.Item, 0, len(tier.Items))
		for _, existing := range tier.Items {
			if existing.Team != item.Team {
				kept = append(kept, existing)
			}
		}
		tier.Items = kept
		next[key] = tier
	}

	item.ID = models.ItemID(item.Team)
	dest := next[tierID]
	dest.Items = append(dest.Items, item)
	next[tierID] = dest
	return next, nil
}

// MoveWithinTier moves the item at index from to index to inside one tier.
// Moving an item onto its own index returns the input unchanged.
func MoveWithinTier(state models.BoardState, tierID models.TierKey, from, to int) (models.BoardState, error) {
	tier, ok := state[tierID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTier, tierID)
	}
	n := len(tier.Items)
	if from < 0 || from >= n || to < 0 || to >= n {
		return nil, fmt.Errorf("%w: %s[%d -> %d] of %d", ErrIndexOutOfRange, tierID, from, to, n)
	}
	if from == to {
		return state, nil
	}

	next := shallowCopy(state)
	tier.Items = arrayMove(tier.Items, from, to)
	next[tierID] = tier
	return next, nil
}

// MoveAcrossTiers takes itemID out of fromTier and inserts it into toTier at
// destIndex. destIndex is clamped to [0, len(toTier.Items)], so len+1 appends.
// When both tiers are the same the item is reordered in place.
func MoveAcrossTiers(state models.BoardState, fromTier, toTier models.TierKey, itemID string, destIndex int) (models.BoardState, error) {
	src, ok := state[fromTier]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTier, fromTier)
	}
	dst, ok := state[toTier]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTier, toTier)
	}
	srcIndex := IndexOf(src.Items, itemID)
	if srcIndex < 0 {
		return nil, fmt.Errorf("%w: %s in %s", ErrItemNotFound, itemID, fromTier)
	}

	if fromTier == toTier {
		return MoveWithinTier(state, fromTier, srcIndex, clamp(destIndex, 0, len(src.Items)-1))
	}

	moved := src.Items[srcIndex]
	next := shallowCopy(state)

	remaining := make([]models.Item, 0, len(src.Items)-1)
	remaining = append(remaining, src.Items[:srcIndex]...)
	remaining = append(remaining, src.Items[srcIndex+1:]...)
	src.Items = remaining
	next[fromTier] = src

	at := clamp(destIndex, 0, len(dst.Items))
	inserted := make([]models.Item, 0, len(dst.Items)+1)
	inserted = append(inserted, dst.Items[:at]...)
	inserted = append(inserted, moved)
	inserted = append(inserted, dst.Items[at:]...)
	dst.Items = inserted
	next[toTier] = dst

	return next, nil
}

// ResetWithPool clears every tier and fills POOL with items, keeping tier
// names and descriptions. Used when a new event is loaded.
func ResetWithPool(state models.BoardState, items []models.Item) models.BoardState {
	next := make(models.BoardState, len(state))
	for key, tier := range state {
		tier.Items = []models.Item{}
		next[key] = tier
	}
	pool, ok := next[models.TierPool]
	if !ok {
		pool = models.DefaultBoard()[models.TierPool]
	}
	seen := make(map[int]bool, len(items))
	pool.Items = make([]models.Item, 0, len(items))
	for _, item := range items {
		if item.Team <= 0 || seen[item.Team] {
			continue
		}
		seen[item.Team] = true
		item.ID = models.ItemID(item.Team)
		pool.Items = append(pool.Items, item)
	}
	next[models.TierPool] = pool
	return next
}

// FindContainer returns the tier holding itemID. An id that names a tier
// resolves to that tier.
func FindContainer(state models.BoardState, id string) (models.TierKey, bool) {
	if _, ok := state[models.TierKey(id)]; ok {
		return models.TierKey(id), true
	}
	for _, key := range state.Keys() {
		if IndexOf(state[key].Items, id) >= 0 {
			return key, true
		}
	}
	return "", false
}

// IndexOf returns the position of itemID in items, or -1.
func IndexOf(items []models.Item, itemID string) int {
	for i, item := range items {
		if item.ID == itemID {
			return i
		}
	}
	return -1
}

func arrayMove(items []models.Item, from, to int) []models.Item {
	out := make([]models.Item, 0, len(items))
	out = append(out, items[:from]...)
	out = append(out, items[from+1:]...)
	moved := items[from]
	out = append(out[:to], append([]models.Item{moved}, out[to:]...)...)
	return out
}

func shallowCopy(state models.BoardState) models.BoardState {
	next := make(models.BoardState, len(state))
	for key, tier := range state {
		next[key] = tier
	}
	return next
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
