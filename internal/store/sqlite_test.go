// ABOUTME: Tests for the SQLite store implementation.
// ABOUTME: Covers session upsert invariants, conversation history, and the agent catalog.

package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestUpsertSession_CreatesAndReactivates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sess, err := s.UpsertSession(ctx, 100, 200, "tg-100-200-travel", "travel")
	require.NoError(t, err)
	assert.True(t, sess.IsActive)
	assert.Equal(t, "tg-100-200-travel", sess.ConversationID)
	assert.Equal(t, "travel", sess.AgentName)

	// Upserting again reuses the same row.
	again, err := s.UpsertSession(ctx, 100, 200, "tg-100-200-travel", "travel")
	require.NoError(t, err)
	assert.Equal(t, sess.ID, again.ID)
	assert.True(t, again.IsActive)
}

func TestUpsertSession_SingleActivePerChatUser(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.UpsertSession(ctx, 100, 200, "tg-100-200-travel", "travel")
	require.NoError(t, err)

	finance, err := s.UpsertSession(ctx, 100, 200, "tg-100-200-finance", "finance")
	require.NoError(t, err)
	assert.True(t, finance.IsActive)

	// The travel row survives but is deactivated.
	travel, err := s.GetSession(ctx, 100, 200, "travel")
	require.NoError(t, err)
	assert.False(t, travel.IsActive)

	sessions, err := s.ListSessions(ctx, 100, 200)
	require.NoError(t, err)
	require.Len(t, sessions, 2)

	activeCount := 0
	for _, sess := range sessions {
		if sess.IsActive {
			activeCount++
		}
	}
	assert.Equal(t, 1, activeCount)

	active, err := s.GetActiveSession(ctx, 100, 200)
	require.NoError(t, err)
	assert.Equal(t, "finance", active.AgentName)
}

func TestUpsertSession_SwitchBackReactivatesOldRow(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, err := s.UpsertSession(ctx, 100, 200, "tg-100-200-travel", "travel")
	require.NoError(t, err)

	_, err = s.UpsertSession(ctx, 100, 200, "tg-100-200-finance", "finance")
	require.NoError(t, err)

	back, err := s.UpsertSession(ctx, 100, 200, "tg-100-200-travel", "travel")
	require.NoError(t, err)
	assert.Equal(t, first.ID, back.ID)
	assert.True(t, back.IsActive)

	active, err := s.GetActiveSession(ctx, 100, 200)
	require.NoError(t, err)
	assert.Equal(t, "travel", active.AgentName)
}

func TestUpsertSession_IsolatedPerChatUser(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.UpsertSession(ctx, 100, 200, "tg-100-200-travel", "travel")
	require.NoError(t, err)
	_, err = s.UpsertSession(ctx, 100, 999, "tg-100-999-finance", "finance")
	require.NoError(t, err)

	// Another user in the same chat doesn't deactivate the first user's session.
	active, err := s.GetActiveSession(ctx, 100, 200)
	require.NoError(t, err)
	assert.Equal(t, "travel", active.AgentName)
}

func TestGetSession_NotFound(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.GetSession(ctx, 1, 2, "nope")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.GetActiveSession(ctx, 1, 2)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestConversationLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	conv := &Conversation{
		ID:        "tg-100-200-travel",
		UserID:    "200",
		AgentName: "travel",
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, s.CreateConversation(ctx, conv))

	got, err := s.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, "travel", got.AgentName)
	assert.Equal(t, "200", got.UserID)

	require.NoError(t, s.TouchConversation(ctx, conv.ID))

	touched, err := s.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	assert.False(t, touched.UpdatedAt.Before(got.UpdatedAt))

	_, err = s.GetConversation(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.TouchConversation(ctx, "missing"), ErrNotFound)
}

func TestMessageHistory_RecentChronological(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	conv := &Conversation{ID: "tg-1-2-a", UserID: "2", AgentName: "a", CreatedAt: now, UpdatedAt: now}
	require.NoError(t, s.CreateConversation(ctx, conv))

	for i := 0; i < 10; i++ {
		role := RoleUser
		if i%2 == 1 {
			role = RoleAssistant
		}
		msg := &Message{
			ID:             fmt.Sprintf("msg-%02d", i),
			ConversationID: conv.ID,
			Role:           role,
			Content:        fmt.Sprintf("message %d", i),
			CreatedAt:      now.Add(time.Duration(i) * time.Second),
		}
		require.NoError(t, s.SaveMessage(ctx, msg))
	}

	// Limit returns the most recent N, oldest first.
	recent, err := s.GetConversationMessages(ctx, conv.ID, 3)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, "message 7", recent[0].Content)
	assert.Equal(t, "message 9", recent[2].Content)

	all, err := s.GetConversationMessages(ctx, conv.ID, 0)
	require.NoError(t, err)
	require.Len(t, all, 10)
	assert.Equal(t, "message 0", all[0].Content)
	assert.Equal(t, RoleAssistant, all[1].Role)
}

func TestMessageHistory_EmptyConversation(t *testing.T) {
	s := newTestStore(t)

	msgs, err := s.GetConversationMessages(context.Background(), "nothing-here", 5)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestAgentCatalog(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertAgent(ctx, &Agent{Name: "travel", DisplayName: "Travel Agent", Description: "Books trips", Enabled: true}))
	require.NoError(t, s.UpsertAgent(ctx, &Agent{Name: "finance", DisplayName: "Finance Agent", Enabled: false}))

	got, err := s.GetAgent(ctx, "travel")
	require.NoError(t, err)
	assert.Equal(t, "Travel Agent", got.DisplayName)
	assert.True(t, got.Enabled)

	_, err = s.GetAgent(ctx, "unknown")
	assert.ErrorIs(t, err, ErrNotFound)

	all, err := s.ListAgents(ctx, false)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "finance", all[0].Name)

	enabled, err := s.ListAgents(ctx, true)
	require.NoError(t, err)
	require.Len(t, enabled, 1)
	assert.Equal(t, "travel", enabled[0].Name)

	// Upsert replaces the existing entry.
	require.NoError(t, s.UpsertAgent(ctx, &Agent{Name: "finance", DisplayName: "Finance", Enabled: true}))
	updated, err := s.GetAgent(ctx, "finance")
	require.NoError(t, err)
	assert.True(t, updated.Enabled)
}
