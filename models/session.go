package models

import "time"

const DefaultSessionName = "Untitled Session"

// Session is a stored board bound to one event.
type Session struct {
	ID        string     `json:"id" db:"id"`
	OwnerID   string     `json:"owner_id" db:"owner_id"`
	EventCode string     `json:"event_code" db:"event_code"`
	Name      string     `json:"name" db:"name"`
	Data      BoardState `json:"data" db:"data"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
}

// IsOwnedBy reports whether userID owns the session.
func (s Session) IsOwnedBy(userID string) bool {
	return s.OwnerID != "" && s.OwnerID == userID
}
