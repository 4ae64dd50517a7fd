// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Provides session/conversation persistence with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS telegram_sessions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			chat_id INTEGER NOT NULL,
			user_id INTEGER NOT NULL,
			conversation_id TEXT NOT NULL,
			agent_name TEXT NOT NULL,
			is_active INTEGER NOT NULL DEFAULT 1,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,

			UNIQUE(chat_id, user_id, agent_name)
		);

		CREATE INDEX IF NOT EXISTS idx_sessions_chat_user
			ON telegram_sessions(chat_id, user_id);

		CREATE INDEX IF NOT EXISTS idx_sessions_active
			ON telegram_sessions(chat_id, user_id, is_active);

		CREATE TABLE IF NOT EXISTS conversations (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			agent_name TEXT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_conversations_user
			ON conversations(user_id);

		CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			conversation_id TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at TEXT NOT NULL,

			FOREIGN KEY (conversation_id) REFERENCES conversations(id),
			CHECK (role IN ('user', 'assistant'))
		);

		CREATE INDEX IF NOT EXISTS idx_messages_conversation
			ON messages(conversation_id, created_at);

		CREATE TABLE IF NOT EXISTS agents (
			name TEXT PRIMARY KEY,
			display_name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			enabled INTEGER NOT NULL DEFAULT 1
		);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing SQLite store")
	return s.db.Close()
}

// UpsertSession creates or reactivates the session row for the given key and
// deactivates every other agent's row for the same chat/user. Both statements
// run in one transaction, so readers never observe two active rows.
func (s *SQLiteStore) UpsertSession(ctx context.Context, chatID, userID int64, conversationID, agentName string) (*Session, error) {
	now := time.Now().UTC().Format(time.RFC3339)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO telegram_sessions (chat_id, user_id, conversation_id, agent_name, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, 1, ?, ?)
		ON CONFLICT(chat_id, user_id, agent_name) DO UPDATE SET
			conversation_id = excluded.conversation_id,
			is_active = 1,
			updated_at = excluded.updated_at
	`, chatID, userID, conversationID, agentName, now, now)
	if err != nil {
		return nil, fmt.Errorf("upserting session: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE telegram_sessions
		SET is_active = 0, updated_at = ?
		WHERE chat_id = ? AND user_id = ? AND agent_name != ? AND is_active = 1
	`, now, chatID, userID, agentName)
	if err != nil {
		return nil, fmt.Errorf("deactivating other sessions: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing session upsert: %w", err)
	}

	s.logger.Debug("upserted session",
		"chat_id", chatID,
		"user_id", userID,
		"agent", agentName,
	)
	return s.GetSession(ctx, chatID, userID, agentName)
}

// GetSession retrieves a session by its unique (chat, user, agent) key.
// Returns ErrNotFound if no such session exists.
func (s *SQLiteStore) GetSession(ctx context.Context, chatID, userID int64, agentName string) (*Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, chat_id, user_id, conversation_id, agent_name, is_active, created_at, updated_at
		FROM telegram_sessions
		WHERE chat_id = ? AND user_id = ? AND agent_name = ?
	`, chatID, userID, agentName)
	return scanSession(row)
}

// GetActiveSession returns the active session for the chat/user, if any.
// When the brief mid-transaction state ever leaks more than one active row,
// the most recently updated one wins.
func (s *SQLiteStore) GetActiveSession(ctx context.Context, chatID, userID int64) (*Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, chat_id, user_id, conversation_id, agent_name, is_active, created_at, updated_at
		FROM telegram_sessions
		WHERE chat_id = ? AND user_id = ? AND is_active = 1
		ORDER BY updated_at DESC
		LIMIT 1
	`, chatID, userID)
	return scanSession(row)
}

// ListSessions returns all session rows for a chat/user, active first.
func (s *SQLiteStore) ListSessions(ctx context.Context, chatID, userID int64) ([]*Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, chat_id, user_id, conversation_id, agent_name, is_active, created_at, updated_at
		FROM telegram_sessions
		WHERE chat_id = ? AND user_id = ?
		ORDER BY is_active DESC, updated_at DESC
	`, chatID, userID)
	if err != nil {
		return nil, fmt.Errorf("querying sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		var sess Session
		var active int
		var createdAtStr, updatedAtStr string

		if err := rows.Scan(&sess.ID, &sess.ChatID, &sess.UserID, &sess.ConversationID,
			&sess.AgentName, &active, &createdAtStr, &updatedAtStr); err != nil {
			return nil, fmt.Errorf("scanning session row: %w", err)
		}
		sess.IsActive = active != 0
		if sess.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr); err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		if sess.UpdatedAt, err = time.Parse(time.RFC3339, updatedAtStr); err != nil {
			return nil, fmt.Errorf("parsing updated_at: %w", err)
		}
		sessions = append(sessions, &sess)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating session rows: %w", err)
	}
	return sessions, nil
}

func scanSession(row *sql.Row) (*Session, error) {
	var sess Session
	var active int
	var createdAtStr, updatedAtStr string

	err := row.Scan(&sess.ID, &sess.ChatID, &sess.UserID, &sess.ConversationID,
		&sess.AgentName, &active, &createdAtStr, &updatedAtStr)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning session: %w", err)
	}

	sess.IsActive = active != 0
	if sess.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if sess.UpdatedAt, err = time.Parse(time.RFC3339, updatedAtStr); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	return &sess, nil
}

// CreateConversation inserts a new conversation record.
func (s *SQLiteStore) CreateConversation(ctx context.Context, conv *Conversation) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO conversations (id, user_id, agent_name, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`,
		conv.ID,
		conv.UserID,
		conv.AgentName,
		conv.CreatedAt.UTC().Format(time.RFC3339),
		conv.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting conversation: %w", err)
	}

	s.logger.Debug("created conversation", "id", conv.ID, "agent", conv.AgentName)
	return nil
}

// GetConversation retrieves a conversation by ID.
// Returns ErrNotFound if the conversation doesn't exist.
func (s *SQLiteStore) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	var conv Conversation
	var createdAtStr, updatedAtStr string

	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, agent_name, created_at, updated_at
		FROM conversations
		WHERE id = ?
	`, id).Scan(&conv.ID, &conv.UserID, &conv.AgentName, &createdAtStr, &updatedAtStr)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying conversation: %w", err)
	}

	if conv.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if conv.UpdatedAt, err = time.Parse(time.RFC3339, updatedAtStr); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	return &conv, nil
}

// TouchConversation bumps a conversation's updated_at timestamp.
// Returns ErrNotFound if the conversation doesn't exist.
func (s *SQLiteStore) TouchConversation(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE conversations SET updated_at = ? WHERE id = ?
	`, time.Now().UTC().Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("touching conversation: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// SaveMessage saves a message to conversation history.
func (s *SQLiteStore) SaveMessage(ctx context.Context, msg *Message) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (id, conversation_id, role, content, created_at)
		VALUES (?, ?, ?, ?, ?)
	`,
		msg.ID,
		msg.ConversationID,
		msg.Role,
		msg.Content,
		msg.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting message: %w", err)
	}

	s.logger.Debug("saved message", "id", msg.ID, "conversation_id", msg.ConversationID, "role", msg.Role)
	return nil
}

// GetConversationMessages retrieves the most recent `limit` messages for a
// conversation, returned in chronological order (oldest first).
// If limit is 0 or negative, all messages are returned.
func (s *SQLiteStore) GetConversationMessages(ctx context.Context, conversationID string, limit int) ([]*Message, error) {
	var query string
	var args []any

	if limit > 0 {
		// Fetch the N most recent, then flip back to chronological order.
		query = `
			SELECT id, conversation_id, role, content, created_at
			FROM (
				SELECT id, conversation_id, role, content, created_at
				FROM messages
				WHERE conversation_id = ?
				ORDER BY created_at DESC, id DESC
				LIMIT ?
			)
			ORDER BY created_at ASC, id ASC
		`
		args = []any{conversationID, limit}
	} else {
		query = `
			SELECT id, conversation_id, role, content, created_at
			FROM messages
			WHERE conversation_id = ?
			ORDER BY created_at ASC, id ASC
		`
		args = []any{conversationID}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer rows.Close()

	var messages []*Message
	for rows.Next() {
		var msg Message
		var createdAtStr string

		if err := rows.Scan(&msg.ID, &msg.ConversationID, &msg.Role, &msg.Content, &createdAtStr); err != nil {
			return nil, fmt.Errorf("scanning message row: %w", err)
		}
		if msg.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr); err != nil {
			return nil, fmt.Errorf("parsing message created_at: %w", err)
		}
		messages = append(messages, &msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating message rows: %w", err)
	}
	return messages, nil
}

// UpsertAgent inserts or replaces an agent catalog entry.
func (s *SQLiteStore) UpsertAgent(ctx context.Context, agent *Agent) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO agents (name, display_name, description, enabled)
		VALUES (?, ?, ?, ?)
	`, agent.Name, agent.DisplayName, agent.Description, boolToInt(agent.Enabled))
	if err != nil {
		return fmt.Errorf("upserting agent: %w", err)
	}
	return nil
}

// GetAgent retrieves a catalog entry by agent name.
// Returns ErrNotFound if the agent is not in the catalog.
func (s *SQLiteStore) GetAgent(ctx context.Context, name string) (*Agent, error) {
	var agent Agent
	var enabled int

	err := s.db.QueryRowContext(ctx, `
		SELECT name, display_name, description, enabled
		FROM agents
		WHERE name = ?
	`, name).Scan(&agent.Name, &agent.DisplayName, &agent.Description, &enabled)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying agent: %w", err)
	}

	agent.Enabled = enabled != 0
	return &agent, nil
}

// ListAgents returns catalog entries ordered by name.
func (s *SQLiteStore) ListAgents(ctx context.Context, enabledOnly bool) ([]*Agent, error) {
	query := `SELECT name, display_name, description, enabled FROM agents ORDER BY name`
	if enabledOnly {
		query = `SELECT name, display_name, description, enabled FROM agents WHERE enabled = 1 ORDER BY name`
	}

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying agents: %w", err)
	}
	defer rows.Close()

	var agents []*Agent
	for rows.Next() {
		var agent Agent
		var enabled int
		if err := rows.Scan(&agent.Name, &agent.DisplayName, &agent.Description, &enabled); err != nil {
			return nil, fmt.Errorf("scanning agent row: %w", err)
		}
		agent.Enabled = enabled != 0
		agents = append(agents, &agent)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating agent rows: %w", err)
	}
	return agents, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Ensure SQLiteStore implements Store interface
var _ Store = (*SQLiteStore)(nil)
