package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"

	"github.com/parley-chat/parley/internal/chat"
	"github.com/parley-chat/parley/internal/models"
)

// PostgresStore handles PostgreSQL database operations.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL store with a connection pool.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, err
	}

	store := &PostgresStore{pool: pool}

	if err := store.initSchema(ctx); err != nil {
		return nil, err
	}

	return store, nil
}

// initSchema creates tables if they don't exist.
func (s *PostgresStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		external_id TEXT PRIMARY KEY,
		name TEXT DEFAULT '',
		email TEXT DEFAULT '',
		avatar TEXT DEFAULT '',
		is_online BOOLEAN DEFAULT FALSE,
		last_seen BIGINT DEFAULT 0,
		created_at TIMESTAMPTZ DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS conversations (
		id UUID PRIMARY KEY,
		participant_low TEXT NOT NULL,
		participant_high TEXT NOT NULL,
		last_message TEXT DEFAULT '',
		last_message_at BIGINT NOT NULL,
		unread_low INTEGER DEFAULT 0,
		unread_high INTEGER DEFAULT 0,
		created_at TIMESTAMPTZ DEFAULT NOW(),
		UNIQUE(participant_low, participant_high)
	);

	CREATE TABLE IF NOT EXISTS messages (
		seq BIGSERIAL PRIMARY KEY,
		id TEXT UNIQUE NOT NULL,
		conversation_id UUID NOT NULL REFERENCES conversations(id),
		sender_id TEXT NOT NULL,
		body TEXT NOT NULL,
		created_at BIGINT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_conversations_low ON conversations(participant_low);
	CREATE INDEX IF NOT EXISTS idx_conversations_high ON conversations(participant_high);
	CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, seq);
	`

	_, err := s.pool.Exec(ctx, schema)
	return err
}

// Close closes the database connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// CreateUser creates a user record if the external id is not yet
// known. Repeated calls for the same id return the existing record.
func (s *PostgresStore) CreateUser(ctx context.Context, externalID, name, email, avatar string, now time.Time) (*models.User, error) {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (external_id, name, email, avatar, is_online, last_seen)
		VALUES ($1, $2, $3, $4, TRUE, $5)
		ON CONFLICT (external_id) DO NOTHING
	`, externalID, name, email, avatar, now.UnixMilli())
	if err != nil {
		return nil, err
	}

	return s.GetUser(ctx, externalID)
}

// GetUser retrieves a user by external id.
func (s *PostgresStore) GetUser(ctx context.Context, externalID string) (*models.User, error) {
	user := &models.User{}
	err := s.pool.QueryRow(ctx, `
		SELECT external_id, name, email, avatar, is_online, last_seen, created_at
		FROM users WHERE external_id = $1
	`, externalID).Scan(
		&user.ExternalID,
		&user.Name,
		&user.Email,
		&user.Avatar,
		&user.IsOnline,
		&user.LastSeen,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return user, nil
}

// ListUsersExcept retrieves all users other than the given one.
func (s *PostgresStore) ListUsersExcept(ctx context.Context, externalID string) ([]models.User, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT external_id, name, email, avatar, is_online, last_seen, created_at
		FROM users
		WHERE external_id != $1
		ORDER BY name, external_id
	`, externalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var user models.User
		err := rows.Scan(
			&user.ExternalID,
			&user.Name,
			&user.Email,
			&user.Avatar,
			&user.IsOnline,
			&user.LastSeen,
			&user.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}

	return users, rows.Err()
}

// SetUserPresence updates the online flag and last-seen timestamp.
// Unknown users are a no-op.
func (s *PostgresStore) SetUserPresence(ctx context.Context, externalID string, online bool, now time.Time) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE users SET is_online = $1, last_seen = $2 WHERE external_id = $3
	`, online, now.UnixMilli(), externalID)
	return err
}

// CreateOrGetConversation looks up the conversation for a canonical
// pair, inserting an empty one if absent. Concurrent calls converge on
// one record via the unique constraint.
func (s *PostgresStore) CreateOrGetConversation(ctx context.Context, pair chat.Pair, now time.Time) (uuid.UUID, error) {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO conversations (id, participant_low, participant_high, last_message, last_message_at)
		VALUES ($1, $2, $3, '', $4)
		ON CONFLICT (participant_low, participant_high) DO NOTHING
	`, uuid.New(), pair.Low, pair.High, now.UnixMilli())
	if err != nil {
		return uuid.Nil, err
	}

	var id uuid.UUID
	err = s.pool.QueryRow(ctx, `
		SELECT id FROM conversations WHERE participant_low = $1 AND participant_high = $2
	`, pair.Low, pair.High).Scan(&id)
	if err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

// GetConversation retrieves a conversation by id.
func (s *PostgresStore) GetConversation(ctx context.Context, id uuid.UUID) (*models.Conversation, error) {
	conv, err := scanPgConversation(s.pool.QueryRow(ctx, `
		SELECT id, participant_low, participant_high, last_message, last_message_at,
		       unread_low, unread_high, created_at
		FROM conversations WHERE id = $1
	`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return conv, nil
}

// ListConversationsForUser retrieves a user's conversations, most
// recently modified first.
func (s *PostgresStore) ListConversationsForUser(ctx context.Context, externalID string) ([]models.Conversation, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, participant_low, participant_high, last_message, last_message_at,
		       unread_low, unread_high, created_at
		FROM conversations
		WHERE participant_low = $1 OR participant_high = $1
		ORDER BY last_message_at DESC, id
	`, externalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var conversations []models.Conversation
	for rows.Next() {
		conv, err := scanPgConversation(rows)
		if err != nil {
			return nil, err
		}
		conversations = append(conversations, *conv)
	}

	return conversations, rows.Err()
}

// ClearUnread zeroes the unread counter of one participant. Missing
// conversations and non-participants are no-ops.
func (s *PostgresStore) ClearUnread(ctx context.Context, conversationID uuid.UUID, externalID string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE conversations SET
			unread_low  = CASE WHEN participant_low  = $1 THEN 0 ELSE unread_low  END,
			unread_high = CASE WHEN participant_high = $1 THEN 0 ELSE unread_high END
		WHERE id = $2
	`, externalID, conversationID)
	return err
}

// RecordMessage appends a message and patches the conversation's
// preview and unread counters in one transaction. Returns (nil, nil)
// when the conversation does not exist.
func (s *PostgresStore) RecordMessage(ctx context.Context, conversationID uuid.UUID, senderID, text string, now time.Time) (*models.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, chat.ErrInvalidArgument
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var pair chat.Pair
	err = tx.QueryRow(ctx, `
		SELECT participant_low, participant_high FROM conversations WHERE id = $1 FOR UPDATE
	`, conversationID).Scan(&pair.Low, &pair.High)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	if !pair.Contains(senderID) {
		return nil, chat.ErrInvalidArgument
	}

	var lastTS int64
	err = tx.QueryRow(ctx, `
		SELECT COALESCE(MAX(created_at), 0) FROM messages WHERE conversation_id = $1
	`, conversationID).Scan(&lastTS)
	if err != nil {
		return nil, err
	}
	createdAt := now.UnixMilli()
	if createdAt < lastTS {
		createdAt = lastTS
	}

	msg := &models.Message{
		ID:             ulid.Make().String(),
		ConversationID: conversationID.String(),
		SenderID:       senderID,
		Text:           text,
		CreatedAt:      createdAt,
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO messages (id, conversation_id, sender_id, body, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, msg.ID, conversationID, msg.SenderID, msg.Text, msg.CreatedAt)
	if err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx, `
		UPDATE conversations SET
			last_message = $1,
			last_message_at = $2,
			unread_low  = unread_low  + CASE WHEN participant_low  != $3 THEN 1 ELSE 0 END,
			unread_high = unread_high + CASE WHEN participant_high != $3 THEN 1 ELSE 0 END
		WHERE id = $4
	`, msg.Text, msg.CreatedAt, senderID, conversationID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return msg, nil
}

// ListMessages retrieves a conversation's messages in creation order.
func (s *PostgresStore) ListMessages(ctx context.Context, conversationID uuid.UUID) ([]models.Message, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, conversation_id, sender_id, body, created_at
		FROM messages
		WHERE conversation_id = $1
		ORDER BY seq
	`, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		var msg models.Message
		var convID uuid.UUID
		err := rows.Scan(
			&msg.ID,
			&convID,
			&msg.SenderID,
			&msg.Text,
			&msg.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		msg.ConversationID = convID.String()
		messages = append(messages, msg)
	}

	return messages, rows.Err()
}

func scanPgConversation(row pgx.Row) (*models.Conversation, error) {
	conv := &models.Conversation{}
	var unreadLow, unreadHigh int

	err := row.Scan(
		&conv.ID,
		&conv.Participants[0],
		&conv.Participants[1],
		&conv.LastMessage,
		&conv.LastMessageAt,
		&unreadLow,
		&unreadHigh,
		&conv.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	conv.Unread = map[string]int{
		conv.Participants[0]: unreadLow,
		conv.Participants[1]: unreadHigh,
	}
	return conv, nil
}
