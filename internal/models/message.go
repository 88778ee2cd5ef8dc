package models

// Message represents one immutable message in a conversation's
// append-only log.
type Message struct {
	ID             string `json:"id"` // ULID
	ConversationID string `json:"conversation_id"`
	SenderID       string `json:"sender_id"`
	Text           string `json:"text"`
	CreatedAt      int64  `json:"created_at"` // Unix ms, non-decreasing per conversation
}
