// Package chat is the streaming conversation orchestrator: it submits user
// messages to the remote chat service, consumes the streamed reply, keeps
// the observable message state current, reconciles the two conversation ids
// and persists messages once the durable store's id is known.
package chat

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/voxhall/voxhall/internal/domain"
	"github.com/voxhall/voxhall/internal/logging"
	"github.com/voxhall/voxhall/internal/transport"
	"github.com/voxhall/voxhall/internal/view"
)

var (
	// ErrBusy is returned when a submission is already in flight. The new
	// submission is rejected, not queued.
	ErrBusy = errors.New("a submission is already in flight")

	// ErrNotReady is returned when required context (user id, transport)
	// is missing.
	ErrNotReady = errors.New("submission context is not ready")
)

// Params configures an Orchestrator.
type Params struct {
	Transport transport.Streamer
	Store     ConversationStore
	State     *view.State
	UserID    string

	// OnExternalID is invoked once when a new conversation's external id
	// first resolves; the web layer uses it for URL/route updates.
	OnExternalID func(externalID string)

	Buffer    BufferConfig
	Persister PersisterConfig
	Log       *logging.Logger
}

// Orchestrator is the top-level submission entry point. It enforces the
// single-flight guard, freezes the new-vs-continuing decision per
// submission, and sequences streaming, cancellation and persistence.
type Orchestrator struct {
	transport  transport.Streamer
	resolver   *Resolver
	persister  *Persister
	consumer   *Consumer
	state      *view.State
	log        *logging.Logger
	userID     string
	onExternal func(string)

	inFlight atomic.Bool
	active   atomic.Pointer[Canceller]

	mu      sync.Mutex
	current domain.ConversationIdentity
}

// NewOrchestrator wires the orchestrator and its collaborators.
func NewOrchestrator(p Params) *Orchestrator {
	resolver := NewResolver(p.Store, p.Log)
	return &Orchestrator{
		transport:  p.Transport,
		resolver:   resolver,
		persister:  NewPersister(p.Persister, p.Store, resolver, p.State, p.Log),
		consumer:   NewConsumer(p.Buffer, p.State, p.Log),
		state:      p.State,
		log:        p.Log.Sub("chat"),
		userID:     p.UserID,
		onExternal: p.OnExternalID,
	}
}

// SetConversation seeds the session identity, e.g. when the UI opens an
// existing conversation from a route.
func (o *Orchestrator) SetConversation(id domain.ConversationIdentity) {
	o.mu.Lock()
	o.current = id
	o.mu.Unlock()
	o.resolver.ReportPairing(id)
}

// Identity returns the current session identity, filling in the internal id
// from the resolver cache when known.
func (o *Orchestrator) Identity() domain.ConversationIdentity {
	o.mu.Lock()
	cur := o.current
	o.mu.Unlock()
	if cur.InternalID == "" {
		if id, ok := o.resolver.Cached(cur.ExternalID); ok {
			cur.InternalID = id
		}
	}
	return cur
}

// Busy reports whether a submission is in flight.
func (o *Orchestrator) Busy() bool { return o.inFlight.Load() }

// Submit runs one submission end to end: user message, transport call,
// stream consumption, persistence. It blocks until the stream finishes or is
// stopped. Only transport-acquisition failures are returned; everything
// after a stream exists is normalized into message state.
func (o *Orchestrator) Submit(ctx context.Context, text string, attachments []domain.Attachment) error {
	if o.userID == "" || o.transport == nil {
		o.log.Warn().Msg("submission rejected: required context not ready")
		return ErrNotReady
	}
	if !o.inFlight.CompareAndSwap(false, true) {
		o.log.Info().Msg("submission rejected: another is in flight")
		return ErrBusy
	}
	defer func() {
		o.active.Store(nil)
		o.inFlight.Store(false)
	}()

	userMsg := o.state.AddMessage(domain.Message{
		Role:        domain.RoleUser,
		Text:        text,
		Attachments: attachments,
	})

	// Freeze the flow decision here. Ambient session state may change while
	// the stream is open (navigation races); this submission must not care.
	externalID := o.externalID()
	continuing := externalID != ""

	stream, err := o.openStream(ctx, continuing, externalID, text, attachments)
	if err != nil {
		return o.failBeforeStream(ctx, userMsg.ID, err)
	}

	sub := &submission{stream: stream}
	o.active.Store(&Canceller{
		sub:       sub,
		transport: o.transport,
		persister: o.persister,
		state:     o.state,
		external:  o.externalID,
		log:       o.log,
	})

	stream.OnExternalID(func(id string) {
		o.setExternalID(id)
		if !continuing {
			if o.onExternal != nil {
				o.onExternal(id)
			}
			// Conversation record creation runs on its own timeline; the
			// persister's bounded poll covers the gap.
			go func() {
				if _, err := o.resolver.EnsureConversation(context.WithoutCancel(ctx), id); err != nil {
					o.log.Warn().Err(err).Str("externalId", id).Msg("ensuring conversation record failed")
				}
			}()
		}
	})
	stream.OnIdentityResolved(o.resolver.ReportPairing)

	assistantID := o.consumer.Consume(ctx, sub)

	o.persister.Save(ctx, userMsg.ID, o.externalID)

	switch {
	case assistantID == "":
		if err := stream.Err(); err != nil {
			o.placeholder(ctx, err)
		}
	default:
		if m, ok := o.state.Get(assistantID); ok && !m.WasManuallyStopped {
			o.persister.Save(ctx, assistantID, o.externalID)
		}
	}
	return nil
}

// Stop cancels the in-flight submission's streaming response, if any.
func (o *Orchestrator) Stop() {
	if c := o.active.Load(); c != nil {
		c.Stop()
		return
	}
	o.log.Debug().Msg("stop requested with no active submission")
}

func (o *Orchestrator) openStream(ctx context.Context, continuing bool, externalID, text string, attachments []domain.Attachment) (*transport.Stream, error) {
	if continuing {
		req, err := transport.NewContinueRequest(text, externalID, o.userID, attachments)
		if err != nil {
			return nil, err
		}
		return o.transport.Continue(ctx, req)
	}
	req, err := transport.NewStartRequest(text, o.userID, attachments)
	if err != nil {
		return nil, err
	}
	return o.transport.Start(ctx, req)
}

// failBeforeStream handles transport-acquisition failure: the one error
// class that surfaces to the caller, always alongside a visible assistant
// error placeholder.
func (o *Orchestrator) failBeforeStream(ctx context.Context, userMsgID string, err error) error {
	te := transport.Normalize(err)
	o.log.Error().Err(te).Str("kind", string(te.Kind)).Msg("transport call failed before streaming")

	ph := o.state.AddMessage(domain.Message{
		Role:  domain.RoleAssistant,
		Text:  "Something went wrong before a reply could start.",
		Error: te.Message,
	})

	o.persister.Save(ctx, userMsgID, o.externalID)
	o.persister.Save(ctx, ph.ID, o.externalID)
	return te
}

// placeholder covers a stream that failed before yielding any fragment.
func (o *Orchestrator) placeholder(ctx context.Context, err error) {
	te := transport.Normalize(err)
	ph := o.state.AddMessage(domain.Message{
		Role:  domain.RoleAssistant,
		Text:  "The reply stream failed before any output arrived.",
		Error: te.Message,
	})
	o.persister.Save(ctx, ph.ID, o.externalID)
}

func (o *Orchestrator) setExternalID(id string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.current.ExternalID == "" {
		o.current.ExternalID = id
	}
}

func (o *Orchestrator) externalID() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.current.ExternalID
}
