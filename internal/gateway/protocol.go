package gateway

import (
	"encoding/json"

	"github.com/voxhall/voxhall/internal/domain"
)

// Frame types for the WebSocket protocol. The server only pushes events;
// mutations go through the HTTP API.
const (
	FrameTypeEvent = "event"
)

// Frame is the envelope for all WebSocket messages.
type Frame struct {
	Type    string          `json:"type"`
	Event   string          `json:"event"`
	Seq     int64           `json:"seq,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Event names pushed over the WebSocket. State change events reuse the
// view package's type names verbatim.
const (
	EventSnapshot = "snapshot"
)

// Snapshot is the first event on every WebSocket connection: the full
// message list and the session's conversation identity.
type Snapshot struct {
	Conversation domain.ConversationIdentity `json:"conversation"`
	Messages     []domain.Message            `json:"messages"`
}

// SubmitRequest is the body of POST /api/submit.
type SubmitRequest struct {
	Text        string              `json:"text"`
	Attachments []domain.Attachment `json:"attachments,omitempty"`
}

// SubmitResponse acknowledges an accepted submission.
type SubmitResponse struct {
	Accepted bool `json:"accepted"`
}

// ErrorResponse is the standard HTTP error body.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Clients int    `json:"clients,omitempty"`
}

// NewEvent creates an event frame.
func NewEvent(event string, payload any, seq int64) (Frame, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Frame{}, err
	}
	return Frame{
		Type:    FrameTypeEvent,
		Event:   event,
		Seq:     seq,
		Payload: raw,
	}, nil
}
