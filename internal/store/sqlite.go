package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/oklog/ulid/v2"

	"github.com/parley-chat/parley/internal/chat"
	"github.com/parley-chat/parley/internal/models"
)

// SQLiteStore handles SQLite database operations.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store.
// If dbPath is empty, defaults to "./data/parley.db"
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		dbPath = "./data/parley.db"
	}

	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	// _txlock=immediate takes the write lock at BEGIN so concurrent
	// read-modify-write transactions on a conversation serialize
	// instead of failing on lock upgrade.
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000&_txlock=immediate")
	if err != nil {
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}

	// Initialize schema
	if err := store.initSchema(ctx); err != nil {
		return nil, err
	}

	return store, nil
}

// initSchema creates tables if they don't exist.
func (s *SQLiteStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		external_id TEXT PRIMARY KEY,
		name TEXT DEFAULT '',
		email TEXT DEFAULT '',
		avatar TEXT DEFAULT '',
		is_online INTEGER DEFAULT 0,
		last_seen INTEGER DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS conversations (
		id TEXT PRIMARY KEY,
		participant_low TEXT NOT NULL,
		participant_high TEXT NOT NULL,
		last_message TEXT DEFAULT '',
		last_message_at INTEGER NOT NULL,
		unread_low INTEGER DEFAULT 0,
		unread_high INTEGER DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(participant_low, participant_high)
	);

	CREATE TABLE IF NOT EXISTS messages (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT UNIQUE NOT NULL,
		conversation_id TEXT NOT NULL REFERENCES conversations(id),
		sender_id TEXT NOT NULL,
		body TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_conversations_low ON conversations(participant_low);
	CREATE INDEX IF NOT EXISTS idx_conversations_high ON conversations(participant_high);
	CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, seq);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() {
	s.db.Close()
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// CreateUser creates a user record if the external id is not yet
// known. Repeated calls for the same id are no-ops returning the
// existing record. New users start online with a fresh last-seen.
func (s *SQLiteStore) CreateUser(ctx context.Context, externalID, name, email, avatar string, now time.Time) (*models.User, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (external_id, name, email, avatar, is_online, last_seen)
		VALUES (?, ?, ?, ?, 1, ?)
		ON CONFLICT(external_id) DO NOTHING
	`, externalID, name, email, avatar, now.UnixMilli())
	if err != nil {
		return nil, err
	}

	return s.GetUser(ctx, externalID)
}

// GetUser retrieves a user by external id.
func (s *SQLiteStore) GetUser(ctx context.Context, externalID string) (*models.User, error) {
	user := &models.User{}
	var onlineInt int
	err := s.db.QueryRowContext(ctx, `
		SELECT external_id, name, email, avatar, is_online, last_seen, created_at
		FROM users WHERE external_id = ?
	`, externalID).Scan(
		&user.ExternalID,
		&user.Name,
		&user.Email,
		&user.Avatar,
		&onlineInt,
		&user.LastSeen,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	user.IsOnline = onlineInt == 1
	return user, nil
}

// ListUsersExcept retrieves all users other than the given one.
func (s *SQLiteStore) ListUsersExcept(ctx context.Context, externalID string) ([]models.User, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT external_id, name, email, avatar, is_online, last_seen, created_at
		FROM users
		WHERE external_id != ?
		ORDER BY name, external_id
	`, externalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var user models.User
		var onlineInt int
		err := rows.Scan(
			&user.ExternalID,
			&user.Name,
			&user.Email,
			&user.Avatar,
			&onlineInt,
			&user.LastSeen,
			&user.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		user.IsOnline = onlineInt == 1
		users = append(users, user)
	}

	return users, rows.Err()
}

// SetUserPresence updates the online flag and last-seen timestamp.
// Unknown users are a no-op.
func (s *SQLiteStore) SetUserPresence(ctx context.Context, externalID string, online bool, now time.Time) error {
	onlineInt := 0
	if online {
		onlineInt = 1
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE users SET is_online = ?, last_seen = ? WHERE external_id = ?
	`, onlineInt, now.UnixMilli(), externalID)
	return err
}

// CreateOrGetConversation looks up the conversation for a canonical
// pair, inserting an empty one if absent. The unique constraint on the
// pair makes concurrent calls converge on a single record; the loser
// of the insert race reads back the winner's id.
func (s *SQLiteStore) CreateOrGetConversation(ctx context.Context, pair chat.Pair, now time.Time) (uuid.UUID, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO conversations (id, participant_low, participant_high, last_message, last_message_at)
		VALUES (?, ?, ?, '', ?)
		ON CONFLICT(participant_low, participant_high) DO NOTHING
	`, uuid.New().String(), pair.Low, pair.High, now.UnixMilli())
	if err != nil {
		return uuid.Nil, err
	}

	var idStr string
	err = s.db.QueryRowContext(ctx, `
		SELECT id FROM conversations WHERE participant_low = ? AND participant_high = ?
	`, pair.Low, pair.High).Scan(&idStr)
	if err != nil {
		return uuid.Nil, err
	}
	return uuid.MustParse(idStr), nil
}

// GetConversation retrieves a conversation by id.
func (s *SQLiteStore) GetConversation(ctx context.Context, id uuid.UUID) (*models.Conversation, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, participant_low, participant_high, last_message, last_message_at,
		       unread_low, unread_high, created_at
		FROM conversations WHERE id = ?
	`, id.String())

	conv, err := scanConversation(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return conv, nil
}

// ListConversationsForUser retrieves a user's conversations, most
// recently modified first.
func (s *SQLiteStore) ListConversationsForUser(ctx context.Context, externalID string) ([]models.Conversation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, participant_low, participant_high, last_message, last_message_at,
		       unread_low, unread_high, created_at
		FROM conversations
		WHERE participant_low = ? OR participant_high = ?
		ORDER BY last_message_at DESC, id
	`, externalID, externalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var conversations []models.Conversation
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		conversations = append(conversations, *conv)
	}

	return conversations, rows.Err()
}

// ClearUnread zeroes the unread counter of one participant. Missing
// conversations and non-participants are no-ops.
func (s *SQLiteStore) ClearUnread(ctx context.Context, conversationID uuid.UUID, externalID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE conversations SET
			unread_low  = CASE WHEN participant_low  = ? THEN 0 ELSE unread_low  END,
			unread_high = CASE WHEN participant_high = ? THEN 0 ELSE unread_high END
		WHERE id = ?
	`, externalID, externalID, conversationID.String())
	return err
}

// RecordMessage appends a message and patches the conversation's
// preview and unread counters in one transaction, so concurrent sends
// and clears cannot lose an increment. Returns (nil, nil) when the
// conversation does not exist.
func (s *SQLiteStore) RecordMessage(ctx context.Context, conversationID uuid.UUID, senderID, text string, now time.Time) (*models.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, chat.ErrInvalidArgument
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var pair chat.Pair
	err = tx.QueryRowContext(ctx, `
		SELECT participant_low, participant_high FROM conversations WHERE id = ?
	`, conversationID.String()).Scan(&pair.Low, &pair.High)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	if !pair.Contains(senderID) {
		return nil, chat.ErrInvalidArgument
	}

	// Message timestamps never go backwards within a conversation,
	// whatever the wall clock does; ties fall back to insertion order
	// via the seq column.
	var lastTS int64
	err = tx.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(created_at), 0) FROM messages WHERE conversation_id = ?
	`, conversationID.String()).Scan(&lastTS)
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

	_, err = tx.ExecContext(ctx, `
		INSERT INTO messages (id, conversation_id, sender_id, body, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, msg.ID, msg.ConversationID, msg.SenderID, msg.Text, msg.CreatedAt)
	if err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE conversations SET
			last_message = ?,
			last_message_at = ?,
			unread_low  = unread_low  + CASE WHEN participant_low  != ? THEN 1 ELSE 0 END,
			unread_high = unread_high + CASE WHEN participant_high != ? THEN 1 ELSE 0 END
		WHERE id = ?
	`, msg.Text, msg.CreatedAt, senderID, senderID, conversationID.String())
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return msg, nil
}

// ListMessages retrieves a conversation's messages in creation order.
func (s *SQLiteStore) ListMessages(ctx context.Context, conversationID uuid.UUID) ([]models.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, conversation_id, sender_id, body, created_at
		FROM messages
		WHERE conversation_id = ?
		ORDER BY seq
	`, conversationID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		var msg models.Message
		err := rows.Scan(
			&msg.ID,
			&msg.ConversationID,
			&msg.SenderID,
			&msg.Text,
			&msg.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}

	return messages, rows.Err()
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanConversation(row scanner) (*models.Conversation, error) {
	conv := &models.Conversation{}
	var idStr string
	var unreadLow, unreadHigh int

	err := row.Scan(
		&idStr,
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

	conv.ID = uuid.MustParse(idStr)
	conv.Unread = map[string]int{
		conv.Participants[0]: unreadLow,
		conv.Participants[1]: unreadHigh,
	}
	return conv, nil
}
