package chat

import (
	"context"
	"time"

	"github.com/voxhall/voxhall/internal/domain"
	"github.com/voxhall/voxhall/internal/logging"
	"github.com/voxhall/voxhall/internal/view"
)

// PersisterConfig bounds how long a save waits for prerequisites.
type PersisterConfig struct {
	// PollInterval and PollAttempts bound the wait for identity resolution.
	// Defaults: 100ms × 10, so at most about a second.
	PollInterval time.Duration
	PollAttempts int

	// StreamingWaits are successive delays granted to a message that is
	// still streaming when its save is requested. Defaults: 300ms, 500ms.
	StreamingWaits []time.Duration
}

// Persister saves messages to the durable store once an internal
// conversation id is known. Failures never propagate to callers; they are
// normalized into the message's persistence status.
type Persister struct {
	cfg      PersisterConfig
	store    ConversationStore
	resolver *Resolver
	state    *view.State
	log      *logging.Logger
}

// NewPersister creates a persistence gateway.
func NewPersister(cfg PersisterConfig, store ConversationStore, resolver *Resolver, state *view.State, log *logging.Logger) *Persister {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 100 * time.Millisecond
	}
	if cfg.PollAttempts <= 0 {
		cfg.PollAttempts = 10
	}
	if cfg.StreamingWaits == nil {
		cfg.StreamingWaits = []time.Duration{300 * time.Millisecond, 500 * time.Millisecond}
	}
	return &Persister{
		cfg:      cfg,
		store:    store,
		resolver: resolver,
		state:    state,
		log:      log.Sub("persist"),
	}
}

// Save persists one message. externalID returns the best-known external
// conversation id at each check, so a late-arriving id is still picked up
// during the bounded wait. A message whose internal id never resolves stays
// pending; that is a terminal, non-fatal outcome.
func (p *Persister) Save(ctx context.Context, messageID string, externalID func() string) {
	msg, ok := p.state.Get(messageID)
	if !ok {
		p.log.Warn().Str("messageId", messageID).Msg("save requested for unknown message")
		return
	}

	// Never save mid-stream content as final. Grant the stream a short
	// grace period to finish, then give up.
	for _, wait := range p.cfg.StreamingWaits {
		if !msg.IsStreaming {
			break
		}
		if !sleep(ctx, wait) {
			return
		}
		if msg, ok = p.state.Get(messageID); !ok {
			return
		}
	}
	if msg.IsStreaming {
		p.log.Warn().Str("messageId", messageID).Msg("message still streaming after grace period; not persisting")
		return
	}

	internalID := p.waitForInternalID(ctx, externalID)
	if internalID == "" {
		p.log.Warn().
			Str("messageId", messageID).
			Str("externalId", externalID()).
			Msg("internal conversation id never resolved; message stays pending")
		return
	}

	// Re-read so the final flushed text is what gets stored.
	if msg, ok = p.state.Get(messageID); !ok {
		return
	}

	if err := p.store.SaveMessage(ctx, msg, internalID); err != nil {
		p.log.Error().Err(err).Str("messageId", messageID).Msg("saving message failed")
		p.state.SetPersistenceStatus(messageID, domain.PersistenceError)
		return
	}
	p.state.SetPersistenceStatus(messageID, domain.PersistenceSaved)
	p.log.Debug().Str("messageId", messageID).Str("internalId", internalID).Msg("message saved")
}

// waitForInternalID polls the resolver cache on the bounded schedule, then
// falls back to one active lookup. Returns "" if resolution failed.
func (p *Persister) waitForInternalID(ctx context.Context, externalID func() string) string {
	var internalID string
	resolved := Backoff{Attempts: p.cfg.PollAttempts, Interval: p.cfg.PollInterval}.Run(ctx, func() bool {
		id, ok := p.resolver.Cached(externalID())
		if ok {
			internalID = id
		}
		return ok
	})
	if resolved {
		return internalID
	}

	id, err := p.resolver.Resolve(ctx, externalID())
	if err != nil {
		return ""
	}
	return id
}
