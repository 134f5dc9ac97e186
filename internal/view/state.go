// Package view holds the observable message state the UI renders from. It is
// the produced-to side of the streaming pipeline: components mutate messages
// through the operations here and subscribers (the websocket gateway) receive
// ordered change events.
package view

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/voxhall/voxhall/internal/domain"
	"github.com/voxhall/voxhall/internal/logging"
)

// State is the message state container. All mutation goes through its
// methods; reads return copies so callers never alias internal state.
type State struct {
	log *logging.Logger

	mu    sync.RWMutex
	order []string
	byID  map[string]*domain.Message

	seq     atomic.Int64
	subMu   sync.Mutex
	subs    map[int]chan Event
	nextSub int
}

// NewState creates an empty message state container.
func NewState(log *logging.Logger) *State {
	return &State{
		log:  log.Sub("view"),
		byID: make(map[string]*domain.Message),
		subs: make(map[int]chan Event),
	}
}

// AddMessage inserts a draft message, assigning an id and creation time if
// unset, and returns the stored copy. At most one message may be streaming
// at a time; if the draft streams while another message still does, the
// older one is finalized first.
func (s *State) AddMessage(draft domain.Message) domain.Message {
	s.mu.Lock()
	if draft.ID == "" {
		draft.ID = uuid.New().String()
	}
	if draft.CreatedAt.IsZero() {
		draft.CreatedAt = time.Now()
	}
	if draft.PersistenceStatus == "" {
		draft.PersistenceStatus = domain.PersistencePending
	}

	var demoted []string
	if draft.IsStreaming {
		for _, id := range s.order {
			if m := s.byID[id]; m.IsStreaming {
				s.log.Warn().Str("messageId", id).Msg("finalizing stale streaming message")
				m.IsStreaming = false
				demoted = append(demoted, id)
			}
		}
	}

	msg := draft
	s.byID[msg.ID] = &msg
	s.order = append(s.order, msg.ID)
	snapshot := msg
	s.mu.Unlock()

	// Subscribers must see the demotion too, or they keep rendering the
	// stale message as streaming.
	for _, id := range demoted {
		s.publish(Event{Type: EventFinalized, MessageID: id})
	}
	s.publish(Event{Type: EventMessageAdded, MessageID: snapshot.ID, Message: &snapshot})
	return snapshot
}

// AppendChunk appends flushed text to a message in one atomic operation.
func (s *State) AppendChunk(messageID, text string) {
	if text == "" {
		return
	}
	s.mu.Lock()
	m, ok := s.byID[messageID]
	if ok {
		m.Text += text
	}
	s.mu.Unlock()
	if !ok {
		return
	}
	s.publish(Event{Type: EventChunk, MessageID: messageID, Text: text})
}

// FinalizeStreaming marks natural stream completion.
func (s *State) FinalizeStreaming(messageID string) {
	if s.mutate(messageID, func(m *domain.Message) { m.IsStreaming = false }) {
		s.publish(Event{Type: EventFinalized, MessageID: messageID})
	}
}

// MarkManuallyStopped records user-initiated cancellation: the message stops
// streaming and carries a stop timestamp.
func (s *State) MarkManuallyStopped(messageID string) {
	now := time.Now()
	if s.mutate(messageID, func(m *domain.Message) {
		m.WasManuallyStopped = true
		m.IsStreaming = false
		m.StoppedAt = &now
	}) {
		s.publish(Event{Type: EventStopped, MessageID: messageID})
	}
}

// SetError attaches a failure description and ends streaming.
func (s *State) SetError(messageID, errMsg string) {
	if s.mutate(messageID, func(m *domain.Message) {
		m.Error = errMsg
		m.IsStreaming = false
	}) {
		s.publish(Event{Type: EventError, MessageID: messageID, Text: errMsg})
	}
}

// SetPersistenceStatus transitions a message's persistence status. The
// transition is monotonic: a saved message never changes again.
func (s *State) SetPersistenceStatus(messageID string, status domain.PersistenceStatus) {
	changed := false
	ok := s.mutate(messageID, func(m *domain.Message) {
		if m.PersistenceStatus == domain.PersistenceSaved || m.PersistenceStatus == status {
			return
		}
		m.PersistenceStatus = status
		changed = true
	})
	if ok && changed {
		s.publishUpdated(messageID)
	}
}

// UpdateMessage applies an arbitrary patch to a message.
func (s *State) UpdateMessage(messageID string, patch func(*domain.Message)) {
	if s.mutate(messageID, patch) {
		s.publishUpdated(messageID)
	}
}

// Get returns a copy of the message, if present.
func (s *State) Get(messageID string) (domain.Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.byID[messageID]
	if !ok {
		return domain.Message{}, false
	}
	return *m, true
}

// Messages returns copies of all messages in insertion order.
func (s *State) Messages() []domain.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Message, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.byID[id])
	}
	return out
}

// StreamingID returns the id of the currently streaming message, or "".
func (s *State) StreamingID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, id := range s.order {
		if s.byID[id].IsStreaming {
			return id
		}
	}
	return ""
}

func (s *State) mutate(messageID string, patch func(*domain.Message)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.byID[messageID]
	if !ok {
		return false
	}
	patch(m)
	return true
}

func (s *State) publishUpdated(messageID string) {
	if msg, ok := s.Get(messageID); ok {
		s.publish(Event{Type: EventMessageUpdated, MessageID: messageID, Message: &msg})
	}
}
