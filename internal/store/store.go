package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/parley-chat/parley/internal/chat"
	"github.com/parley-chat/parley/internal/models"
)

// DataStore defines the interface for persistent storage of users,
// conversations and messages. Both PostgresStore and SQLiteStore
// implement this interface.
//
// Mutations against a missing conversation are no-ops so stale client
// retries stay harmless. Lookups return (nil, nil) when the record
// does not exist.
type DataStore interface {
	// Connection management
	Close()
	Ping(ctx context.Context) error

	// User operations
	CreateUser(ctx context.Context, externalID, name, email, avatar string, now time.Time) (*models.User, error)
	GetUser(ctx context.Context, externalID string) (*models.User, error)
	ListUsersExcept(ctx context.Context, externalID string) ([]models.User, error)
	SetUserPresence(ctx context.Context, externalID string, online bool, now time.Time) error

	// Conversation operations
	CreateOrGetConversation(ctx context.Context, pair chat.Pair, now time.Time) (uuid.UUID, error)
	GetConversation(ctx context.Context, id uuid.UUID) (*models.Conversation, error)
	ListConversationsForUser(ctx context.Context, externalID string) ([]models.Conversation, error)
	ClearUnread(ctx context.Context, conversationID uuid.UUID, externalID string) error

	// Message operations
	RecordMessage(ctx context.Context, conversationID uuid.UUID, senderID, text string, now time.Time) (*models.Message, error)
	ListMessages(ctx context.Context, conversationID uuid.UUID) ([]models.Message, error)
}

// TypingStore holds the single-slot typing signal per conversation:
// at most one external id, last writer wins. Setting the empty string
// clears the slot.
type TypingStore interface {
	SetTyping(ctx context.Context, conversationID uuid.UUID, externalID string) error
	GetTyping(ctx context.Context, conversationID uuid.UUID) (string, error)
}
