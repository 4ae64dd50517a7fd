// ABOUTME: Session router: resolves chat identity + agent to an active conversation.
// ABOUTME: Adopts existing active sessions, falls back to the default agent.

package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/2389/coven-telegram/internal/store"
)

// ChatIdentity identifies one participant in one Telegram chat. In private
// chats ChatID and UserID coincide; in groups they differ, and sessions are
// tracked per participant.
type ChatIdentity struct {
	ChatID int64
	UserID int64
}

// Key returns a stable string form usable as a map key or log field.
func (c ChatIdentity) Key() string {
	return fmt.Sprintf("%d:%d", c.ChatID, c.UserID)
}

// Handle is the routing result: where a message should go.
type Handle struct {
	ConversationID string
	AgentName      string
}

// ConversationID derives the deterministic conversation ID for an
// identity/agent pair. Same inputs always produce the same ID.
func ConversationID(identity ChatIdentity, agentName string) string {
	return fmt.Sprintf("tg-%d-%d-%s", identity.ChatID, identity.UserID, agentName)
}

// sessionStore is the subset of store operations the router needs.
type sessionStore interface {
	UpsertSession(ctx context.Context, chatID, userID int64, conversationID, agentName string) (*store.Session, error)
	GetActiveSession(ctx context.Context, chatID, userID int64) (*store.Session, error)
}

// conversationEnsurer guarantees a conversation record exists before routing
// messages into it.
type conversationEnsurer interface {
	EnsureConversation(ctx context.Context, userID, conversationID, agentName string) (*store.Conversation, bool, error)
}

// Router resolves chat identities to agent conversations.
type Router struct {
	store         sessionStore
	conversations conversationEnsurer
	defaultAgent  string
	logger        *slog.Logger
}

// NewRouter creates a session router. defaultAgent is used when the identity
// has no active session and no agent was requested.
func NewRouter(st sessionStore, conversations conversationEnsurer, defaultAgent string, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		store:         st,
		conversations: conversations,
		defaultAgent:  defaultAgent,
		logger:        logger.With("component", "session"),
	}
}

// Resolve returns the conversation handle for an incoming message.
//
// Agent selection order: the explicitly requested agent, then the identity's
// active session's agent, then the configured default. The resolved session
// is upserted as active, which deactivates any other agent's session for the
// same identity.
func (r *Router) Resolve(ctx context.Context, identity ChatIdentity, requestedAgent string) (*Handle, error) {
	agentName := requestedAgent
	if agentName == "" {
		active, err := r.store.GetActiveSession(ctx, identity.ChatID, identity.UserID)
		switch {
		case err == nil:
			agentName = active.AgentName
		case errors.Is(err, store.ErrNotFound):
			agentName = r.defaultAgent
		default:
			return nil, fmt.Errorf("looking up active session: %w", err)
		}
	}
	if agentName == "" {
		return nil, errors.New("no agent requested and no default agent configured")
	}

	conversationID := ConversationID(identity, agentName)

	if _, _, err := r.conversations.EnsureConversation(ctx, fmt.Sprintf("%d", identity.UserID), conversationID, agentName); err != nil {
		return nil, fmt.Errorf("ensuring conversation: %w", err)
	}

	if _, err := r.store.UpsertSession(ctx, identity.ChatID, identity.UserID, conversationID, agentName); err != nil {
		return nil, fmt.Errorf("upserting session: %w", err)
	}

	r.logger.Debug("resolved session",
		"identity", identity.Key(),
		"agent", agentName,
		"conversation_id", conversationID,
	)
	return &Handle{ConversationID: conversationID, AgentName: agentName}, nil
}

// SwitchAgent activates the named agent for the identity, deactivating any
// other agent's session. The returned handle points at the (possibly
// pre-existing) conversation for that agent.
func (r *Router) SwitchAgent(ctx context.Context, identity ChatIdentity, agentName string) (*Handle, error) {
	if agentName == "" {
		return nil, errors.New("agent name is required")
	}
	return r.Resolve(ctx, identity, agentName)
}
