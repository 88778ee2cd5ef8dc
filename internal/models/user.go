package models

import "time"

// User represents a chat user. Identity comes from the external auth
// provider; this service never issues or deletes user ids.
type User struct {
	ExternalID string    `json:"external_id"`
	Name       string    `json:"name,omitempty"`
	Email      string    `json:"email,omitempty"`
	Avatar     string    `json:"avatar,omitempty"`
	IsOnline   bool      `json:"is_online"`
	LastSeen   int64     `json:"last_seen"` // Unix ms
	CreatedAt  time.Time `json:"created_at"`
}
