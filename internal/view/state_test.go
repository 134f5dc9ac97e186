package view

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/voxhall/voxhall/internal/domain"
	"github.com/voxhall/voxhall/internal/logging"
)

func newState() *State {
	return NewState(logging.Discard())
}

func TestAddMessage_AssignsIDAndDefaults(t *testing.T) {
	s := newState()

	msg := s.AddMessage(domain.Message{Role: domain.RoleUser, Text: "hi"})
	assert.NotEmpty(t, msg.ID)
	assert.False(t, msg.CreatedAt.IsZero())
	assert.Equal(t, domain.PersistencePending, msg.PersistenceStatus)

	got, ok := s.Get(msg.ID)
	require.True(t, ok)
	assert.Equal(t, "hi", got.Text)
}

func TestAddMessage_AtMostOneStreaming(t *testing.T) {
	s := newState()

	first := s.AddMessage(domain.Message{Role: domain.RoleAssistant, IsStreaming: true})
	second := s.AddMessage(domain.Message{Role: domain.RoleAssistant, IsStreaming: true})

	got, _ := s.Get(first.ID)
	assert.False(t, got.IsStreaming)
	assert.Equal(t, second.ID, s.StreamingID())

	streaming := 0
	for _, m := range s.Messages() {
		if m.IsStreaming {
			streaming++
		}
	}
	assert.Equal(t, 1, streaming)
}

func TestAppendChunk_Atomic(t *testing.T) {
	s := newState()
	msg := s.AddMessage(domain.Message{Role: domain.RoleAssistant, IsStreaming: true})

	s.AppendChunk(msg.ID, "Hi")
	s.AppendChunk(msg.ID, " there")
	s.AppendChunk(msg.ID, "") // no-op

	got, _ := s.Get(msg.ID)
	assert.Equal(t, "Hi there", got.Text)
}

func TestMarkManuallyStopped(t *testing.T) {
	s := newState()
	msg := s.AddMessage(domain.Message{Role: domain.RoleAssistant, IsStreaming: true})

	s.MarkManuallyStopped(msg.ID)

	got, _ := s.Get(msg.ID)
	assert.True(t, got.WasManuallyStopped)
	assert.False(t, got.IsStreaming)
	require.NotNil(t, got.StoppedAt)
}

func TestSetPersistenceStatus_Monotonic(t *testing.T) {
	s := newState()
	msg := s.AddMessage(domain.Message{Role: domain.RoleUser})

	s.SetPersistenceStatus(msg.ID, domain.PersistenceSaved)
	s.SetPersistenceStatus(msg.ID, domain.PersistenceError)

	got, _ := s.Get(msg.ID)
	assert.Equal(t, domain.PersistenceSaved, got.PersistenceStatus)
}

func TestSubscribe_OrderedEvents(t *testing.T) {
	s := newState()
	ch, cancel := s.Subscribe()
	defer cancel()

	msg := s.AddMessage(domain.Message{Role: domain.RoleAssistant, IsStreaming: true})
	s.AppendChunk(msg.ID, "partial")
	s.FinalizeStreaming(msg.ID)

	var types []EventType
	var lastSeq int64
	for i := 0; i < 3; i++ {
		ev := <-ch
		types = append(types, ev.Type)
		assert.Greater(t, ev.Seq, lastSeq)
		lastSeq = ev.Seq
	}
	assert.Equal(t, []EventType{EventMessageAdded, EventChunk, EventFinalized}, types)
}

func TestSubscribe_CancelIsIdempotent(t *testing.T) {
	s := newState()
	_, cancel := s.Subscribe()
	cancel()
	cancel()
}

func TestAddMessage_DemotedStreamingPublishesFinalized(t *testing.T) {
	s := newState()
	ch, cancel := s.Subscribe()
	defer cancel()

	first := s.AddMessage(domain.Message{Role: domain.RoleAssistant, IsStreaming: true})
	second := s.AddMessage(domain.Message{Role: domain.RoleAssistant, IsStreaming: true})

	var got []Event
	for i := 0; i < 3; i++ {
		got = append(got, <-ch)
	}

	// the stale message's demotion must reach subscribers before the new one
	require.Equal(t, EventMessageAdded, got[0].Type)
	assert.Equal(t, first.ID, got[0].MessageID)
	require.Equal(t, EventFinalized, got[1].Type)
	assert.Equal(t, first.ID, got[1].MessageID)
	require.Equal(t, EventMessageAdded, got[2].Type)
	assert.Equal(t, second.ID, got[2].MessageID)
}
