package chat

import (
	"context"
	"errors"
	"sync"

	"github.com/voxhall/voxhall/internal/domain"
	"github.com/voxhall/voxhall/internal/logging"
)

// ConversationStore is the durable store as the chat core consumes it.
type ConversationStore interface {
	// CreateConversation creates (or finds) the record paired with the
	// external id and returns the store-issued internal id.
	CreateConversation(ctx context.Context, externalID string) (string, error)

	// FindConversationByExternalID returns the internal id for an external
	// id, or domain.ErrConversationNotFound.
	FindConversationByExternalID(ctx context.Context, externalID string) (string, error)

	// SaveMessage persists a message under an internal conversation id.
	SaveMessage(ctx context.Context, msg domain.Message, internalID string) error
}

// Resolver reconciles external (remote-issued) and internal (store-issued)
// conversation ids. The pairing cache is append-only: mappings are added but
// never removed or rewritten within a session, so cached reads stay safe
// under concurrency.
type Resolver struct {
	store ConversationStore
	log   *logging.Logger

	mu         sync.RWMutex
	byExternal map[string]string
}

// NewResolver creates a resolver over the given store.
func NewResolver(store ConversationStore, log *logging.Logger) *Resolver {
	return &Resolver{
		store:      store,
		log:        log.Sub("identity"),
		byExternal: make(map[string]string),
	}
}

// Cached returns the internal id for an external id from the cache only.
func (r *Resolver) Cached(externalID string) (string, bool) {
	if externalID == "" {
		return "", false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byExternal[externalID]
	return id, ok
}

// ReportPairing records an externally reported id pairing, typically from
// the transport's identity callback. First writer wins.
func (r *Resolver) ReportPairing(pair domain.ConversationIdentity) {
	if pair.ExternalID == "" || pair.InternalID == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byExternal[pair.ExternalID]; !ok {
		r.byExternal[pair.ExternalID] = pair.InternalID
		r.log.Debug().Str("externalId", pair.ExternalID).Str("internalId", pair.InternalID).Msg("identity pairing recorded")
	}
}

// Resolve returns the internal id for an external id: cache hit first, store
// lookup on miss. Idempotent; once resolved, repeated calls return the
// cached id without re-querying.
func (r *Resolver) Resolve(ctx context.Context, externalID string) (string, error) {
	if externalID == "" {
		return "", domain.ErrConversationNotFound
	}
	if id, ok := r.Cached(externalID); ok {
		return id, nil
	}

	id, err := r.store.FindConversationByExternalID(ctx, externalID)
	if err != nil {
		return "", err
	}
	r.ReportPairing(domain.ConversationIdentity{ExternalID: externalID, InternalID: id})
	return id, nil
}

// EnsureConversation finds or creates the store record for an external id
// and caches the pairing. Used when a new conversation's external id first
// becomes known.
func (r *Resolver) EnsureConversation(ctx context.Context, externalID string) (string, error) {
	if id, ok := r.Cached(externalID); ok {
		return id, nil
	}

	id, err := r.store.FindConversationByExternalID(ctx, externalID)
	if errors.Is(err, domain.ErrConversationNotFound) {
		id, err = r.store.CreateConversation(ctx, externalID)
	}
	if err != nil {
		return "", err
	}
	r.ReportPairing(domain.ConversationIdentity{ExternalID: externalID, InternalID: id})
	return id, nil
}
