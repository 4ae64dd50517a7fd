// ABOUTME: Store interface and data types for coven-telegram persistence.
// ABOUTME: Defines Session, Conversation, Message, Agent and the Store interface.

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// Session binds a Telegram chat participant to one agent's conversation.
// At most one row per (chat_id, user_id, agent_name); at most one active row
// per (chat_id, user_id). Rows are deactivated on agent switch, never deleted.
type Session struct {
	ID             int64
	ChatID         int64
	UserID         int64
	ConversationID string
	AgentName      string
	IsActive       bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Conversation is one logical conversation between a user and an agent.
// The ID is derived deterministically from chat, user and agent so that
// re-resolution is idempotent.
type Conversation struct {
	ID        string
	UserID    string
	AgentName string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Message roles recorded in conversation history.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single exchange entry within a conversation.
type Message struct {
	ID             string
	ConversationID string
	Role           string
	Content        string
	CreatedAt      time.Time
}

// Agent is a catalog entry describing a selectable agent.
type Agent struct {
	Name        string
	DisplayName string
	Description string
	Enabled     bool
}

// Store defines the persistence operations for sessions, conversations,
// message history, and the agent catalog.
type Store interface {
	// Sessions. UpsertSession creates or reactivates the row for
	// (chatID, userID, agentName), refreshes its conversation ID, and
	// deactivates every other agent's row for the same chat/user — all in
	// one transaction so a reader never observes two active rows.
	UpsertSession(ctx context.Context, chatID, userID int64, conversationID, agentName string) (*Session, error)
	GetSession(ctx context.Context, chatID, userID int64, agentName string) (*Session, error)
	GetActiveSession(ctx context.Context, chatID, userID int64) (*Session, error)
	ListSessions(ctx context.Context, chatID, userID int64) ([]*Session, error)

	// Conversations
	CreateConversation(ctx context.Context, conv *Conversation) error
	GetConversation(ctx context.Context, id string) (*Conversation, error)
	TouchConversation(ctx context.Context, id string) error

	// Messages (conversation history)
	SaveMessage(ctx context.Context, msg *Message) error
	GetConversationMessages(ctx context.Context, conversationID string, limit int) ([]*Message, error)

	// Agent catalog
	UpsertAgent(ctx context.Context, agent *Agent) error
	GetAgent(ctx context.Context, name string) (*Agent, error)
	ListAgents(ctx context.Context, enabledOnly bool) ([]*Agent, error)

	// Close releases any resources held by the store
	Close() error
}
