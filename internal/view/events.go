package view

import "github.com/voxhall/voxhall/internal/domain"

// EventType discriminates state change events.
type EventType string

const (
	EventMessageAdded   EventType = "message.added"
	EventChunk          EventType = "message.chunk"
	EventFinalized      EventType = "message.finalized"
	EventStopped        EventType = "message.stopped"
	EventError          EventType = "message.error"
	EventMessageUpdated EventType = "message.updated"
)

// Event is one state change, sequenced for ordered delivery to clients.
type Event struct {
	Type      EventType       `json:"type"`
	Seq       int64           `json:"seq"`
	MessageID string          `json:"messageId"`
	Text      string          `json:"text,omitempty"`
	Message   *domain.Message `json:"message,omitempty"`
}

// Subscribe registers an event feed. The returned cancel func must be called
// to release the subscription. Slow subscribers drop events rather than
// blocking the pipeline.
func (s *State) Subscribe() (<-chan Event, func()) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	id := s.nextSub
	s.nextSub++
	ch := make(chan Event, 64)
	s.subs[id] = ch

	cancel := func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		if _, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(ch)
		}
	}
	return ch, cancel
}

func (s *State) publish(ev Event) {
	ev.Seq = s.seq.Add(1)

	s.subMu.Lock()
	defer s.subMu.Unlock()
	for id, ch := range s.subs {
		select {
		case ch <- ev:
		default:
			s.log.Warn().Int("subscriber", id).Int64("seq", ev.Seq).Msg("dropping event for slow subscriber")
		}
	}
}
