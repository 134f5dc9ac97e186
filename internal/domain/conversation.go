package domain

import "errors"

// ErrConversationNotFound is returned by store lookups when no conversation
// matches the given external id.
var ErrConversationNotFound = errors.New("conversation not found")

// ConversationIdentity pairs the two independently issued ids of a
// conversation. ExternalID is assigned by the remote chat service and may be
// unknown until the first response arrives. InternalID is assigned by the
// durable store and is the only valid key for persistence calls.
type ConversationIdentity struct {
	ExternalID string `json:"externalId,omitempty"`
	InternalID string `json:"internalId,omitempty"`
}

// Resolved reports whether the internal id is known.
func (c ConversationIdentity) Resolved() bool {
	return c.InternalID != ""
}
