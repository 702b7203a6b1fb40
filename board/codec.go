package board

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/Dosada05/alliance-board/models"
)

const maxDocumentBytes = 4 << 20

var ErrMalformedBoard = errors.New("malformed board document")

// Export writes state as an indented JSON document.
func Export(w io.Writer, state models.BoardState) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode board: %w", err)
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}

// Import reads a document produced by Export (or the browser dashboard) and
// validates it completely. Any problem rejects the whole document.
func Import(r io.Reader) (models.BoardState, error) {
	raw, err := io.ReadAll(io.LimitReader(r, maxDocumentBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedBoard, err)
	}
	if len(raw) > maxDocumentBytes {
		return nil, fmt.Errorf("%w: document larger than %d bytes", ErrMalformedBoard, maxDocumentBytes)
	}
	return Decode(raw)
}

// Decode parses and validates a serialized board. Tiers missing from the
// document are filled from the default board.
func Decode(raw []byte) (models.BoardState, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()

	var parsed models.BoardState
	if err := dec.Decode(&parsed); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedBoard, err)
	}
	if dec.More() {
		return nil, fmt.Errorf("%w: trailing data after document", ErrMalformedBoard)
	}
	if parsed == nil {
		return nil, fmt.Errorf("%w: document is empty", ErrMalformedBoard)
	}
	if err := Validate(parsed); err != nil {
		return nil, err
	}

	state := models.DefaultBoard()
	for key, tier := range parsed {
		if tier.ID == "" {
			tier.ID = key
		}
		if tier.Items == nil {
			tier.Items = []models.Item{}
		}
		state[key] = tier
	}
	return state, nil
}

// Validate checks the closed tier set and the one-tier-per-item invariant.
func Validate(state models.BoardState) error {
	ids := make(map[string]models.TierKey)
	teams := make(map[int]models.TierKey)
	for key, tier := range state {
		if !key.Valid() {
			return fmt.Errorf("%w: unknown tier %q", ErrMalformedBoard, key)
		}
		if tier.ID != "" && tier.ID != key {
			return fmt.Errorf("%w: tier %q has id %q", ErrMalformedBoard, key, tier.ID)
		}
		for i, item := range tier.Items {
			if item.ID == "" {
				return fmt.Errorf("%w: item %d of tier %s has no id", ErrMalformedBoard, i, key)
			}
			if item.Team <= 0 {
				return fmt.Errorf("%w: item %s has no team number", ErrMalformedBoard, item.ID)
			}
			if prev, dup := ids[item.ID]; dup {
				return fmt.Errorf("%w: item %s appears in %s and %s", ErrMalformedBoard, item.ID, prev, key)
			}
			if prev, dup := teams[item.Team]; dup {
				return fmt.Errorf("%w: team %d appears in %s and %s", ErrMalformedBoard, item.Team, prev, key)
			}
			ids[item.ID] = key
			teams[item.Team] = key
		}
	}
	return nil
}

// Equal compares two boards by their canonical serialization.
func Equal(a, b models.BoardState) bool {
	ab, errA := json.Marshal(a)
	bb, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return false
	}
	return bytes.Equal(ab, bb)
}

// Sanitize drops unknown tiers and items without an identity. It is used on
// snapshots from other windows, which are merged rather than validated.
func Sanitize(state models.BoardState) models.BoardState {
	out := make(models.BoardState, len(state))
	for key, tier := range state {
		if !key.Valid() {
			continue
		}
		items := make([]models.Item, 0, len(tier.Items))
		for _, item := range tier.Items {
			if item.ID != "" {
				items = append(items, item)
			}
		}
		tier.Items = items
		if tier.ID == "" {
			tier.ID = key
		}
		out[key] = tier
	}
	return out
}

// Merge overlays incoming tiers onto prev. Tiers absent from incoming keep
// their previous contents.
func Merge(prev, incoming models.BoardState) models.BoardState {
	out := prev.Clone()
	if out == nil {
		out = models.DefaultBoard()
	}
	for key, tier := range incoming {
		out[key] = tier
	}
	return out
}
