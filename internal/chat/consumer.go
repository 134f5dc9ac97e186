package chat

import (
	"context"
	"sync"

	"github.com/voxhall/voxhall/internal/domain"
	"github.com/voxhall/voxhall/internal/logging"
	"github.com/voxhall/voxhall/internal/transport"
	"github.com/voxhall/voxhall/internal/view"
)

// submission is the per-Submit mutable state shared between the consumer
// and the canceller.
type submission struct {
	stream *transport.Stream

	mu          sync.Mutex
	assistantID string
	buffer      *Buffer
	stopped     bool
}

func (s *submission) setTurn(id string, buf *Buffer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assistantID = id
	s.buffer = buf
}

func (s *submission) turn() (string, *Buffer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.assistantID, s.buffer
}

// markStopped flips the stop flag; only the first caller gets true.
func (s *submission) markStopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return false
	}
	s.stopped = true
	return true
}

// Consumer drives consumption of one lazy fragment sequence, feeding the
// buffer and watching for external cancellation between fragments.
type Consumer struct {
	buffer BufferConfig
	state  *view.State
	log    *logging.Logger
}

// NewConsumer creates a stream consumer writing into the given view state.
func NewConsumer(buffer BufferConfig, state *view.State, log *logging.Logger) *Consumer {
	return &Consumer{buffer: buffer, state: state, log: log.Sub("consumer")}
}

// Consume reads fragments until the sequence ends or the message stops being
// the current streaming one. The assistant message is created on the first
// fragment; Consume returns its id, or "" when the stream yielded nothing.
func (c *Consumer) Consume(ctx context.Context, sub *submission) string {
	var (
		assistantID string
		buf         *Buffer
	)

	for frag := range sub.stream.Fragments() {
		if ctx.Err() != nil {
			go drain(sub.stream)
			break
		}
		if assistantID == "" {
			msg := c.state.AddMessage(domain.Message{Role: domain.RoleAssistant, IsStreaming: true})
			assistantID = msg.ID
			id := msg.ID
			buf = NewBuffer(c.buffer, func(text string) { c.state.AppendChunk(id, text) })
			sub.setTurn(assistantID, buf)
		} else if m, ok := c.state.Get(assistantID); !ok || !m.IsStreaming {
			c.log.Debug().Str("messageId", assistantID).Msg("message no longer streaming; dropping remaining fragments")
			go drain(sub.stream)
			break
		}
		buf.Append(frag)
	}

	if buf != nil {
		buf.Flush()
	}
	if assistantID == "" {
		return ""
	}

	if m, ok := c.state.Get(assistantID); ok && m.IsStreaming {
		if err := sub.stream.Err(); err != nil {
			c.state.SetError(assistantID, transport.Normalize(err).Message)
		} else {
			c.state.FinalizeStreaming(assistantID)
		}
	}
	return assistantID
}

// drain keeps the producer from blocking on a stream nobody reads anymore.
func drain(s *transport.Stream) {
	for range s.Fragments() {
	}
}
