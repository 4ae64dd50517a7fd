// ABOUTME: Conversation service: record-first conversation management.
// ABOUTME: Ensures conversations exist, records messages, serves history and agents.

package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/2389/coven-telegram/internal/store"
)

// conversationStore is the subset of store operations the service needs.
type conversationStore interface {
	CreateConversation(ctx context.Context, conv *store.Conversation) error
	GetConversation(ctx context.Context, id string) (*store.Conversation, error)
	TouchConversation(ctx context.Context, id string) error
	SaveMessage(ctx context.Context, msg *store.Message) error
	GetConversationMessages(ctx context.Context, conversationID string, limit int) ([]*store.Message, error)
	UpsertAgent(ctx context.Context, agent *store.Agent) error
	GetAgent(ctx context.Context, name string) (*store.Agent, error)
	ListAgents(ctx context.Context, enabledOnly bool) ([]*store.Agent, error)
}

// Service manages conversation records and message history.
type Service struct {
	store  conversationStore
	logger *slog.Logger
}

// NewService creates a conversation service backed by the given store.
func NewService(st conversationStore, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  st,
		logger: logger.With("component", "conversation"),
	}
}

// EnsureConversation returns the conversation with the given ID, creating it
// if it does not exist yet. The second return value reports whether a new
// record was created.
func (s *Service) EnsureConversation(ctx context.Context, userID, conversationID, agentName string) (*store.Conversation, bool, error) {
	conv, err := s.store.GetConversation(ctx, conversationID)
	if err == nil {
		return conv, false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, false, fmt.Errorf("looking up conversation: %w", err)
	}

	now := time.Now().UTC()
	conv = &store.Conversation{
		ID:        conversationID,
		UserID:    userID,
		AgentName: agentName,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateConversation(ctx, conv); err != nil {
		return nil, false, fmt.Errorf("creating conversation: %w", err)
	}

	s.logger.Info("created conversation", "id", conversationID, "agent", agentName)
	return conv, true, nil
}

// RecordMessage appends one message to a conversation's history and bumps
// the conversation's updated_at.
func (s *Service) RecordMessage(ctx context.Context, conversationID, role, content string) error {
	msg := &store.Message{
		ID:             uuid.New().String(),
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.store.SaveMessage(ctx, msg); err != nil {
		return fmt.Errorf("saving message: %w", err)
	}
	if err := s.store.TouchConversation(ctx, conversationID); err != nil {
		// History is already recorded; a stale timestamp is not worth failing for.
		s.logger.Warn("failed to touch conversation", "id", conversationID, "error", err)
	}
	return nil
}

// History returns the most recent `limit` messages in chronological order.
func (s *Service) History(ctx context.Context, conversationID string, limit int) ([]*store.Message, error) {
	msgs, err := s.store.GetConversationMessages(ctx, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("loading history: %w", err)
	}
	return msgs, nil
}

// SeedAgents upserts the configured agents into the catalog at startup.
func (s *Service) SeedAgents(ctx context.Context, agents []*store.Agent) error {
	for _, agent := range agents {
		if err := s.store.UpsertAgent(ctx, agent); err != nil {
			return fmt.Errorf("seeding agent %q: %w", agent.Name, err)
		}
	}
	s.logger.Info("seeded agent catalog", "count", len(agents))
	return nil
}

// GetAgent returns the catalog entry for the named agent.
func (s *Service) GetAgent(ctx context.Context, name string) (*store.Agent, error) {
	return s.store.GetAgent(ctx, name)
}

// ListAgents returns the enabled agents in the catalog.
func (s *Service) ListAgents(ctx context.Context) ([]*store.Agent, error) {
	return s.store.ListAgents(ctx, true)
}

// ListAllAgents returns the whole catalog, disabled entries included.
func (s *Service) ListAllAgents(ctx context.Context) ([]*store.Agent, error) {
	return s.store.ListAgents(ctx, false)
}
