package chat

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/voxhall/voxhall/internal/domain"
	"github.com/voxhall/voxhall/internal/logging"
)

func TestResolver_ResolveCachesLookup(t *testing.T) {
	store := newFakeStore()
	store.pair("ext-1", "int-1")
	r := NewResolver(store, logging.Discard())

	id, err := r.Resolve(context.Background(), "ext-1")
	require.NoError(t, err)
	assert.Equal(t, "int-1", id)

	// second resolve hits the cache, no store query
	id, err = r.Resolve(context.Background(), "ext-1")
	require.NoError(t, err)
	assert.Equal(t, "int-1", id)
	assert.Equal(t, 1, store.finds)
}

func TestResolver_ResolveEmptyExternalID(t *testing.T) {
	r := NewResolver(newFakeStore(), logging.Discard())

	_, err := r.Resolve(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrConversationNotFound)
}

func TestResolver_ReportPairingShortCircuitsStore(t *testing.T) {
	store := newFakeStore()
	r := NewResolver(store, logging.Discard())

	r.ReportPairing(domain.ConversationIdentity{ExternalID: "ext-1", InternalID: "int-1"})

	id, err := r.Resolve(context.Background(), "ext-1")
	require.NoError(t, err)
	assert.Equal(t, "int-1", id)
	assert.Zero(t, store.finds)
}

func TestResolver_ReportPairingFirstWriterWins(t *testing.T) {
	r := NewResolver(newFakeStore(), logging.Discard())

	r.ReportPairing(domain.ConversationIdentity{ExternalID: "ext-1", InternalID: "int-1"})
	r.ReportPairing(domain.ConversationIdentity{ExternalID: "ext-1", InternalID: "int-other"})

	id, ok := r.Cached("ext-1")
	require.True(t, ok)
	assert.Equal(t, "int-1", id)
}

func TestResolver_ReportPairingIgnoresIncomplete(t *testing.T) {
	r := NewResolver(newFakeStore(), logging.Discard())

	r.ReportPairing(domain.ConversationIdentity{ExternalID: "ext-1"})
	r.ReportPairing(domain.ConversationIdentity{InternalID: "int-1"})

	_, ok := r.Cached("ext-1")
	assert.False(t, ok)
}

func TestResolver_EnsureConversationCreatesOnce(t *testing.T) {
	store := newFakeStore()
	r := NewResolver(store, logging.Discard())

	first, err := r.EnsureConversation(context.Background(), "ext-1")
	require.NoError(t, err)
	require.NotEmpty(t, first)
	assert.Equal(t, 1, store.creates)

	second, err := r.EnsureConversation(context.Background(), "ext-1")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, store.creates)
}

func TestResolver_EnsureConversationFindsExisting(t *testing.T) {
	store := newFakeStore()
	store.pair("ext-1", "int-1")
	r := NewResolver(store, logging.Discard())

	id, err := r.EnsureConversation(context.Background(), "ext-1")
	require.NoError(t, err)
	assert.Equal(t, "int-1", id)
	assert.Zero(t, store.creates)
}
