// ABOUTME: Tests for the session router.
// ABOUTME: Covers deterministic IDs, idempotent resolution, adoption, and switching.

package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/coven-telegram/internal/conversation"
	"github.com/2389/coven-telegram/internal/store"
)

func newTestRouter(t *testing.T, defaultAgent string) (*Router, *store.SQLiteStore) {
	t.Helper()
	st, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	svc := conversation.NewService(st, nil)
	return NewRouter(st, svc, defaultAgent, nil), st
}

func TestConversationID_Deterministic(t *testing.T) {
	id := ChatIdentity{ChatID: 100, UserID: 200}
	assert.Equal(t, "tg-100-200-travel", ConversationID(id, "travel"))
	assert.Equal(t, ConversationID(id, "travel"), ConversationID(id, "travel"))
	assert.NotEqual(t, ConversationID(id, "travel"), ConversationID(id, "finance"))
}

func TestResolve_DefaultAgentForNewIdentity(t *testing.T) {
	r, _ := newTestRouter(t, "travel")
	identity := ChatIdentity{ChatID: 100, UserID: 200}

	handle, err := r.Resolve(context.Background(), identity, "")
	require.NoError(t, err)
	assert.Equal(t, "travel", handle.AgentName)
	assert.Equal(t, "tg-100-200-travel", handle.ConversationID)
}

func TestResolve_Idempotent(t *testing.T) {
	r, st := newTestRouter(t, "travel")
	identity := ChatIdentity{ChatID: 100, UserID: 200}
	ctx := context.Background()

	first, err := r.Resolve(ctx, identity, "")
	require.NoError(t, err)
	second, err := r.Resolve(ctx, identity, "")
	require.NoError(t, err)

	assert.Equal(t, first, second)

	sessions, err := st.ListSessions(ctx, 100, 200)
	require.NoError(t, err)
	assert.Len(t, sessions, 1)

	// The conversation record exists exactly once.
	conv, err := st.GetConversation(ctx, first.ConversationID)
	require.NoError(t, err)
	assert.Equal(t, "travel", conv.AgentName)
}

func TestResolve_AdoptsActiveSessionAgent(t *testing.T) {
	r, _ := newTestRouter(t, "travel")
	identity := ChatIdentity{ChatID: 100, UserID: 200}
	ctx := context.Background()

	_, err := r.SwitchAgent(ctx, identity, "finance")
	require.NoError(t, err)

	// A message with no explicit agent follows the active session, not the default.
	handle, err := r.Resolve(ctx, identity, "")
	require.NoError(t, err)
	assert.Equal(t, "finance", handle.AgentName)
	assert.Equal(t, "tg-100-200-finance", handle.ConversationID)
}

func TestSwitchAgent_DeactivatesPrevious(t *testing.T) {
	r, st := newTestRouter(t, "travel")
	identity := ChatIdentity{ChatID: 100, UserID: 200}
	ctx := context.Background()

	_, err := r.Resolve(ctx, identity, "")
	require.NoError(t, err)

	handle, err := r.SwitchAgent(ctx, identity, "finance")
	require.NoError(t, err)
	assert.Equal(t, "finance", handle.AgentName)

	active, err := st.GetActiveSession(ctx, 100, 200)
	require.NoError(t, err)
	assert.Equal(t, "finance", active.AgentName)

	travel, err := st.GetSession(ctx, 100, 200, "travel")
	require.NoError(t, err)
	assert.False(t, travel.IsActive)
}

func TestSwitchAgent_BackToPreviousKeepsConversation(t *testing.T) {
	r, _ := newTestRouter(t, "travel")
	identity := ChatIdentity{ChatID: 100, UserID: 200}
	ctx := context.Background()

	first, err := r.Resolve(ctx, identity, "")
	require.NoError(t, err)

	_, err = r.SwitchAgent(ctx, identity, "finance")
	require.NoError(t, err)

	back, err := r.SwitchAgent(ctx, identity, "travel")
	require.NoError(t, err)
	assert.Equal(t, first.ConversationID, back.ConversationID)
}

func TestSwitchAgent_RequiresName(t *testing.T) {
	r, _ := newTestRouter(t, "travel")

	_, err := r.SwitchAgent(context.Background(), ChatIdentity{ChatID: 1, UserID: 2}, "")
	assert.Error(t, err)
}

func TestResolve_NoDefaultConfigured(t *testing.T) {
	r, _ := newTestRouter(t, "")

	_, err := r.Resolve(context.Background(), ChatIdentity{ChatID: 1, UserID: 2}, "")
	assert.Error(t, err)
}

func TestResolve_GroupMembersIsolated(t *testing.T) {
	r, _ := newTestRouter(t, "travel")
	ctx := context.Background()

	a, err := r.Resolve(ctx, ChatIdentity{ChatID: 100, UserID: 200}, "")
	require.NoError(t, err)
	b, err := r.Resolve(ctx, ChatIdentity{ChatID: 100, UserID: 300}, "finance")
	require.NoError(t, err)

	assert.NotEqual(t, a.ConversationID, b.ConversationID)

	// The second member's resolution must not disturb the first member's session.
	again, err := r.Resolve(ctx, ChatIdentity{ChatID: 100, UserID: 200}, "")
	require.NoError(t, err)
	assert.Equal(t, a, again)
}
