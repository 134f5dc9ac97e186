package domain

import "time"

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// PersistenceStatus tracks whether a message has reached the durable store.
// Transitions are monotonic: pending → saved or pending → error. A message
// never leaves saved.
type PersistenceStatus string

const (
	PersistencePending PersistenceStatus = "pending"
	PersistenceSaved   PersistenceStatus = "saved"
	PersistenceError   PersistenceStatus = "error"
)

// Attachment is a file reference carried on a message. Immutable once set.
type Attachment struct {
	ID       string `json:"id,omitempty"`
	Name     string `json:"name,omitempty"`
	Size     int64  `json:"size,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
}

// Message is a single turn in a conversation as the UI observes it.
// Text is mutable only by the streaming pipeline until the message is
// finalized; PersistenceStatus is mutated only by the persistence gateway.
type Message struct {
	ID                 string            `json:"id"`
	Role               Role              `json:"role"`
	Text               string            `json:"text"`
	Attachments        []Attachment      `json:"attachments,omitempty"`
	IsStreaming        bool              `json:"isStreaming,omitempty"`
	WasManuallyStopped bool              `json:"wasManuallyStopped,omitempty"`
	PersistenceStatus  PersistenceStatus `json:"persistenceStatus"`
	Error              string            `json:"error,omitempty"`
	CreatedAt          time.Time         `json:"createdAt"`
	StoppedAt          *time.Time        `json:"stoppedAt,omitempty"`
}
