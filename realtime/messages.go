package realtime

import (
	"encoding/json"
	"fmt"
)

// Message types exchanged on a session room.
const (
	TypeSessionUpdated = "session_updated" // server -> clients: persisted row changed
	TypeDrag           = "drag"            // client -> peers: ephemeral drag presence
)

// WebSocketMessage is the envelope for every frame on the wire.
type WebSocketMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
	RoomID  string          `json:"room_id,omitempty"`
	// Origin identifies the client window that caused the message.
	Origin string `json:"origin,omitempty"`
}

// NewMessage encodes payload into an envelope.
func NewMessage(msgType string, payload interface{}, origin string) (WebSocketMessage, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return WebSocketMessage{}, fmt.Errorf("failed to encode %s payload: %w", msgType, err)
	}
	return WebSocketMessage{Type: msgType, Payload: raw, Origin: origin}, nil
}

// RoomForSession returns the hub room name of a session.
func RoomForSession(sessionID string) string {
	return "session_" + sessionID
}

// Origin travels with writes so that the writer's own window can skip the
// resulting session_updated.
const (
	OriginHeader     = "X-Scout-Origin"
	OriginQueryParam = "origin"
)
