package models

import "time"

// Share grants a user (by email) access to a session.
type Share struct {
	SessionID string    `json:"session_id" db:"session_id"`
	UserEmail string    `json:"user_email" db:"user_email"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
