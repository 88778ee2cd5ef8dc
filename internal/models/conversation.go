package models

import (
	"time"

	"github.com/google/uuid"
)

// Conversation represents a two-party conversation. Participants hold
// the canonical (sorted) external ids; exactly one record exists per
// unordered pair. Unread maps each participant to the number of
// messages received since their last mark-read.
type Conversation struct {
	ID            uuid.UUID      `json:"id"`
	Participants  [2]string      `json:"participants"`
	LastMessage   string         `json:"last_message"`
	LastMessageAt int64          `json:"last_message_at"` // Unix ms
	Typing        string         `json:"typing,omitempty"` // external id of composing participant, or empty
	Unread        map[string]int `json:"unread"`
	CreatedAt     time.Time      `json:"created_at"`
}
