package models

// DragPresence is the ephemeral "peer is moving this item" signal.
type DragPresence struct {
	ItemID     string `json:"item_id"`
	IsDragging bool   `json:"is_dragging"`
}

// RemoteDragState maps item ids to whether a remote peer is dragging them.
// Never persisted.
type RemoteDragState map[string]bool
