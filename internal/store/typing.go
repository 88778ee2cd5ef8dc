package store

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemoryTypingStore is the in-process typing slot store used when
// Redis is not configured (single-instance development mode). One
// atomically replaced value per conversation, last writer wins.
type MemoryTypingStore struct {
	mu    sync.RWMutex
	slots map[uuid.UUID]string
}

// NewMemoryTypingStore creates an empty in-memory typing store.
func NewMemoryTypingStore() *MemoryTypingStore {
	return &MemoryTypingStore{slots: make(map[uuid.UUID]string)}
}

// SetTyping replaces a conversation's typing slot. The empty string
// clears the slot.
func (s *MemoryTypingStore) SetTyping(_ context.Context, conversationID uuid.UUID, externalID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if externalID == "" {
		delete(s.slots, conversationID)
		return nil
	}
	s.slots[conversationID] = externalID
	return nil
}

// GetTyping reads a conversation's typing slot.
func (s *MemoryTypingStore) GetTyping(_ context.Context, conversationID uuid.UUID) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.slots[conversationID], nil
}
