package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/voxhall/voxhall/internal/domain"
	"github.com/voxhall/voxhall/internal/logging"
)

func openTestStore(t *testing.T) *ConversationStore {
	t.Helper()
	db, err := Open(":memory:", logging.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewConversationStore(db)
}

func TestCreateAndFindConversation(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	internalID, err := s.CreateConversation(ctx, "ext-1")
	require.NoError(t, err)
	require.NotEmpty(t, internalID)

	found, err := s.FindConversationByExternalID(ctx, "ext-1")
	require.NoError(t, err)
	assert.Equal(t, internalID, found)
}

func TestCreateConversation_IdempotentPerExternalID(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	first, err := s.CreateConversation(ctx, "ext-1")
	require.NoError(t, err)

	second, err := s.CreateConversation(ctx, "ext-1")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestFindConversation_NotFound(t *testing.T) {
	s := openTestStore(t)

	_, err := s.FindConversationByExternalID(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrConversationNotFound)

	_, err = s.FindConversationByExternalID(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrConversationNotFound)
}

func TestSaveMessage_RoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	internalID, err := s.CreateConversation(ctx, "ext-1")
	require.NoError(t, err)

	stopped := time.Now().Truncate(time.Second)
	msg := domain.Message{
		ID:                 "m1",
		Role:               domain.RoleAssistant,
		Text:               "Partial respon",
		WasManuallyStopped: true,
		StoppedAt:          &stopped,
		Attachments:        []domain.Attachment{{ID: "f1", Name: "notes.txt", Size: 12, MimeType: "text/plain"}},
		CreatedAt:          time.Now(),
	}
	require.NoError(t, s.SaveMessage(ctx, msg, internalID))

	msgs, err := s.Messages(ctx, internalID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	got := msgs[0]
	assert.Equal(t, "Partial respon", got.Text)
	assert.Equal(t, domain.RoleAssistant, got.Role)
	assert.True(t, got.WasManuallyStopped)
	require.NotNil(t, got.StoppedAt)
	require.Len(t, got.Attachments, 1)
	assert.Equal(t, "notes.txt", got.Attachments[0].Name)
	assert.Equal(t, domain.PersistenceSaved, got.PersistenceStatus)
}

func TestSaveMessage_UpsertByID(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	internalID, err := s.CreateConversation(ctx, "ext-1")
	require.NoError(t, err)

	msg := domain.Message{ID: "m1", Role: domain.RoleUser, Text: "first"}
	require.NoError(t, s.SaveMessage(ctx, msg, internalID))

	msg.Text = "second"
	require.NoError(t, s.SaveMessage(ctx, msg, internalID))

	msgs, err := s.Messages(ctx, internalID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "second", msgs[0].Text)
}

func TestSaveMessage_RequiresInternalID(t *testing.T) {
	s := openTestStore(t)

	err := s.SaveMessage(context.Background(), domain.Message{ID: "m1", Role: domain.RoleUser}, "")
	require.Error(t, err)
}
