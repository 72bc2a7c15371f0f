package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docuchat/backend/internal/apperr"
	"github.com/docuchat/backend/internal/storage/models"
	"github.com/docuchat/backend/internal/storage/sqlite"
)

func newTestClient(t *testing.T) *sqlite.Client {
	t.Helper()

	c, err := sqlite.NewClient(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })

	require.NoError(t, c.InitSchema())
	return c
}

func TestCreateConversation(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	id, err := c.CreateConversation(ctx, "refund questions")
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	exists, err := c.ConversationExists(ctx, id)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestConversationExists_Unknown(t *testing.T) {
	c := newTestClient(t)

	exists, err := c.ConversationExists(context.Background(), "missing-id")

	require.NoError(t, err)
	assert.False(t, exists)
}

func TestAppendMessage_UnknownConversation(t *testing.T) {
	c := newTestClient(t)

	err := c.AppendMessage(context.Background(), "missing-id", models.RoleUser, "hello")

	assert.ErrorIs(t, err, apperr.ErrConversationNotFound)
}

func TestAppendMessage_InvalidRole(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	id, err := c.CreateConversation(ctx, "")
	require.NoError(t, err)

	err = c.AppendMessage(ctx, id, models.Role("llm"), "hello")

	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestHistory_ChronologicalOrder(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	id, err := c.CreateConversation(ctx, "")
	require.NoError(t, err)

	require.NoError(t, c.AppendMessage(ctx, id, models.RoleUser, "m1"))
	require.NoError(t, c.AppendMessage(ctx, id, models.RoleAssistant, "m2"))
	require.NoError(t, c.AppendMessage(ctx, id, models.RoleUser, "m3"))

	history, err := c.History(ctx, id, 10)
	require.NoError(t, err)
	require.Len(t, history, 3)

	assert.Equal(t, "m1", history[0].Content)
	assert.Equal(t, "m2", history[1].Content)
	assert.Equal(t, "m3", history[2].Content)
	assert.Equal(t, models.RoleUser, history[0].Role)
	assert.Equal(t, models.RoleAssistant, history[1].Role)
}

func TestHistory_LimitKeepsMostRecent(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	id, err := c.CreateConversation(ctx, "")
	require.NoError(t, err)

	for _, content := range []string{"m1", "m2", "m3", "m4"} {
		require.NoError(t, c.AppendMessage(ctx, id, models.RoleUser, content))
	}

	history, err := c.History(ctx, id, 2)
	require.NoError(t, err)
	require.Len(t, history, 2)

	// The window keeps the newest messages but reports them oldest first.
	assert.Equal(t, "m3", history[0].Content)
	assert.Equal(t, "m4", history[1].Content)
}

func TestHistory_EmptyConversation(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	id, err := c.CreateConversation(ctx, "")
	require.NoError(t, err)

	history, err := c.History(ctx, id, 10)

	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestAppendTurn(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	id, err := c.CreateConversation(ctx, "")
	require.NoError(t, err)

	require.NoError(t, c.AppendTurn(ctx, id, "what is X?", "X is Y."))

	history, err := c.History(ctx, id, 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, models.RoleUser, history[0].Role)
	assert.Equal(t, "what is X?", history[0].Content)
	assert.Equal(t, models.RoleAssistant, history[1].Role)
	assert.Equal(t, "X is Y.", history[1].Content)
}

func TestAppendTurn_UnknownConversationWritesNothing(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	err := c.AppendTurn(ctx, "missing-id", "question", "answer")

	assert.ErrorIs(t, err, apperr.ErrConversationNotFound)
}

func TestDeleteConversation(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	id, err := c.CreateConversation(ctx, "")
	require.NoError(t, err)
	require.NoError(t, c.AppendTurn(ctx, id, "q", "a"))

	require.NoError(t, c.DeleteConversation(ctx, id))

	exists, err := c.ConversationExists(ctx, id)
	require.NoError(t, err)
	assert.False(t, exists)

	history, err := c.History(ctx, id, 10)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestDeleteConversation_Unknown(t *testing.T) {
	c := newTestClient(t)

	err := c.DeleteConversation(context.Background(), "missing-id")

	assert.ErrorIs(t, err, apperr.ErrConversationNotFound)
}
