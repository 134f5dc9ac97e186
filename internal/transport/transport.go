// Package transport talks to the remote chat service. It exposes start,
// continue and stop-task operations; streaming responses arrive as a lazy
// fragment sequence on a Stream handle. Errors crossing this boundary are
// normalized so callers never branch on vendor-specific response shapes.
package transport

import (
	"context"
	"sync"

	"github.com/voxhall/voxhall/internal/domain"
)

// Streamer is the remote chat service as the orchestrator consumes it.
type Streamer interface {
	// Start opens a new conversation and begins streaming the reply.
	Start(ctx context.Context, req StartRequest) (*Stream, error)

	// Continue sends a follow-up message in an existing conversation.
	Continue(ctx context.Context, req ContinueRequest) (*Stream, error)

	// StopTask asks the remote service to cancel an in-flight task.
	// Best-effort: local cancellation state does not depend on it.
	StopTask(ctx context.Context, taskID string) error
}

// StartRequest opens a new conversation. Construct via NewStartRequest.
type StartRequest struct {
	Query       string
	Attachments []domain.Attachment
	UserID      string
}

// NewStartRequest validates and builds a new-conversation request.
func NewStartRequest(query, userID string, attachments []domain.Attachment) (StartRequest, error) {
	if query == "" {
		return StartRequest{}, &Error{Kind: KindBadRequest, Message: "empty query"}
	}
	if userID == "" {
		return StartRequest{}, &Error{Kind: KindBadRequest, Message: "missing user id"}
	}
	return StartRequest{Query: query, UserID: userID, Attachments: attachments}, nil
}

// ContinueRequest sends a message into an existing conversation.
// Construct via NewContinueRequest.
type ContinueRequest struct {
	Query       string
	ExternalID  string
	Attachments []domain.Attachment
	UserID      string
}

// NewContinueRequest validates and builds a continuing-conversation request.
func NewContinueRequest(query, externalID, userID string, attachments []domain.Attachment) (ContinueRequest, error) {
	if query == "" {
		return ContinueRequest{}, &Error{Kind: KindBadRequest, Message: "empty query"}
	}
	if externalID == "" {
		return ContinueRequest{}, &Error{Kind: KindBadRequest, Message: "missing external conversation id"}
	}
	if userID == "" {
		return ContinueRequest{}, &Error{Kind: KindBadRequest, Message: "missing user id"}
	}
	return ContinueRequest{Query: query, ExternalID: externalID, UserID: userID, Attachments: attachments}, nil
}

// Stream is a lazy token sequence plus resolution handles for the external
// conversation id and the remote task id. The external id of a brand-new
// conversation may only become known after the first response event; callers
// register callbacks instead of polling.
//
// The producer side (HTTP client or test fake) feeds it via Emit, the Set*
// methods and Close.
type Stream struct {
	frags chan string

	mu         sync.Mutex
	externalID string
	taskID     string
	err        error
	identity   *domain.ConversationIdentity
	extCBs     []func(externalID string)
	idCBs      []func(domain.ConversationIdentity)
}

// NewStream creates a stream handle with a small fragment buffer.
func NewStream() *Stream {
	return &Stream{frags: make(chan string, 32)}
}

// Fragments returns the channel of text fragments. It is closed when the
// stream ends; check Err afterwards.
func (s *Stream) Fragments() <-chan string { return s.frags }

// Err returns the terminal stream error, if any. Only meaningful after the
// fragment channel has closed.
func (s *Stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// ExternalID returns the remote conversation id, or "" if not yet known.
func (s *Stream) ExternalID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.externalID
}

// TaskID returns the remote task id for cancellation, or "" if not yet known.
func (s *Stream) TaskID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.taskID
}

// OnExternalID registers a callback fired once the external conversation id
// is known. Fires immediately if it already is.
func (s *Stream) OnExternalID(cb func(externalID string)) {
	s.mu.Lock()
	known := s.externalID
	if known == "" {
		s.extCBs = append(s.extCBs, cb)
	}
	s.mu.Unlock()
	if known != "" {
		cb(known)
	}
}

// OnIdentityResolved registers a callback fired when the remote service
// reports the external↔internal id pairing. Fires immediately if the pairing
// already arrived.
func (s *Stream) OnIdentityResolved(cb func(domain.ConversationIdentity)) {
	s.mu.Lock()
	known := s.identity
	if known == nil {
		s.idCBs = append(s.idCBs, cb)
	}
	s.mu.Unlock()
	if known != nil {
		cb(*known)
	}
}

// Emit delivers one text fragment to the consumer. Producer side only.
func (s *Stream) Emit(text string) { s.frags <- text }

// SetExternalID records the remote conversation id and fires registered
// callbacks exactly once.
func (s *Stream) SetExternalID(id string) {
	s.mu.Lock()
	if s.externalID != "" || id == "" {
		s.mu.Unlock()
		return
	}
	s.externalID = id
	cbs := s.extCBs
	s.extCBs = nil
	s.mu.Unlock()
	for _, cb := range cbs {
		cb(id)
	}
}

// SetTaskID records the remote task id.
func (s *Stream) SetTaskID(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.taskID == "" {
		s.taskID = id
	}
}

// ResolveIdentity records the external↔internal pairing and fires registered
// callbacks exactly once.
func (s *Stream) ResolveIdentity(pair domain.ConversationIdentity) {
	s.mu.Lock()
	if s.identity != nil {
		s.mu.Unlock()
		return
	}
	s.identity = &pair
	cbs := s.idCBs
	s.idCBs = nil
	s.mu.Unlock()
	for _, cb := range cbs {
		cb(pair)
	}
}

// Close ends the fragment sequence. A nil err means natural completion.
func (s *Stream) Close(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
	close(s.frags)
}
