package models

import (
	"bytes"
	"encoding/json"
	"sort"
)

// TierKey identifies a board tier. The set is closed.
type TierKey string

const (
	TierS    TierKey = "S"
	TierA    TierKey = "A"
	TierB    TierKey = "B"
	TierC    TierKey = "C"
	TierDNP  TierKey = "DNP"
	TierPool TierKey = "POOL" // every unplaced team
)

// TierOrder is the fixed tier order used for serialization and rendering.
var TierOrder = []TierKey{TierS, TierA, TierB, TierC, TierDNP, TierPool}

// Valid reports whether k belongs to the fixed tier set.
func (k TierKey) Valid() bool {
	for _, known := range TierOrder {
		if k == known {
			return true
		}
	}
	return false
}

type Tier struct {
	ID          TierKey `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Color       string  `json:"color"` // CSS color token, e.g. "var(--success)"
	Items       []Item  `json:"items"`
}

// BoardState maps every tier key to its tier. Treat values as immutable:
// mutations build a new map (see package board).
type BoardState map[TierKey]Tier

// DefaultBoard returns an empty board with the stock tier names.
func DefaultBoard() BoardState {
	return BoardState{
		TierS:    {ID: TierS, Name: "S Tier", Description: "Top picks", Color: "var(--accent-secondary)", Items: []Item{}},
		TierA:    {ID: TierA, Name: "A Tier", Description: "Strong contenders", Color: "var(--success)", Items: []Item{}},
		TierB:    {ID: TierB, Name: "B Tier", Description: "Solid picks", Color: "var(--accent-primary)", Items: []Item{}},
		TierC:    {ID: TierC, Name: "C Tier", Description: "Backups", Color: "var(--warning)", Items: []Item{}},
		TierDNP:  {ID: TierDNP, Name: "DNP", Description: "Do Not Pick", Color: "var(--danger)", Items: []Item{}},
		TierPool: {ID: TierPool, Name: "Pool", Description: "All Teams", Color: "var(--bg-secondary)", Items: []Item{}},
	}
}

// Clone returns a deep copy: item slices are not shared with b.
func (b BoardState) Clone() BoardState {
	if b == nil {
		return nil
	}
	out := make(BoardState, len(b))
	for key, tier := range b {
		items := make([]Item, len(tier.Items))
		copy(items, tier.Items)
		tier.Items = items
		out[key] = tier
	}
	return out
}

// ItemCount returns the number of items across all tiers.
func (b BoardState) ItemCount() int {
	total := 0
	for _, tier := range b {
		total += len(tier.Items)
	}
	return total
}

// Keys returns the tier keys present in b, fixed tiers first.
func (b BoardState) Keys() []TierKey {
	keys := make([]TierKey, 0, len(b))
	for _, key := range TierOrder {
		if _, ok := b[key]; ok {
			keys = append(keys, key)
		}
	}
	var extra []TierKey
	for key := range b {
		if !key.Valid() {
			extra = append(extra, key)
		}
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i] < extra[j] })
	return append(keys, extra...)
}

// MarshalJSON writes tiers in TierOrder so that two equal boards always
// produce identical bytes. Nil item slices are written as [].
func (b BoardState) MarshalJSON() ([]byte, error) {
	if b == nil {
		return []byte("null"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range b.Keys() {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(string(key))
		if err != nil {
			return nil, err
		}
		tier := b[key]
		if tier.Items == nil {
			tier.Items = []Item{}
		}
		v, err := json.Marshal(tier)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
