package chat

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/voxhall/voxhall/internal/domain"
	"github.com/voxhall/voxhall/internal/transport"
)

// fakeStore is an in-memory ConversationStore recording every save.
type fakeStore struct {
	mu         sync.Mutex
	byExternal map[string]string
	saves      []savedMessage
	finds      int
	creates    int
	saveErr    error
}

type savedMessage struct {
	msg        domain.Message
	internalID string
}

func newFakeStore() *fakeStore {
	return &fakeStore{byExternal: make(map[string]string)}
}

func (f *fakeStore) CreateConversation(_ context.Context, externalID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates++
	if id, ok := f.byExternal[externalID]; ok {
		return id, nil
	}
	id := uuid.New().String()
	f.byExternal[externalID] = id
	return id, nil
}

func (f *fakeStore) FindConversationByExternalID(_ context.Context, externalID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finds++
	if id, ok := f.byExternal[externalID]; ok {
		return id, nil
	}
	return "", domain.ErrConversationNotFound
}

func (f *fakeStore) SaveMessage(_ context.Context, msg domain.Message, internalID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saves = append(f.saves, savedMessage{msg: msg, internalID: internalID})
	return nil
}

func (f *fakeStore) pair(externalID, internalID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byExternal[externalID] = internalID
}

func (f *fakeStore) saved() []savedMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]savedMessage, len(f.saves))
	copy(out, f.saves)
	return out
}

func (f *fakeStore) savedByID(messageID string) (savedMessage, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.saves) - 1; i >= 0; i-- {
		if f.saves[i].msg.ID == messageID {
			return f.saves[i], true
		}
	}
	return savedMessage{}, false
}

func (f *fakeStore) saveCount(messageID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, s := range f.saves {
		if s.msg.ID == messageID {
			n++
		}
	}
	return n
}

// fakeTransport scripts streams for the orchestrator.
type fakeTransport struct {
	mu           sync.Mutex
	script       func(s *transport.Stream)
	startErr     error
	starts       int
	continues    int
	lastContinue transport.ContinueRequest
	stops        []string
}

func (f *fakeTransport) Start(_ context.Context, _ transport.StartRequest) (*transport.Stream, error) {
	f.mu.Lock()
	f.starts++
	script, err := f.script, f.startErr
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	s := transport.NewStream()
	go script(s)
	return s, nil
}

func (f *fakeTransport) Continue(_ context.Context, req transport.ContinueRequest) (*transport.Stream, error) {
	f.mu.Lock()
	f.continues++
	f.lastContinue = req
	script, err := f.script, f.startErr
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	s := transport.NewStream()
	go script(s)
	return s, nil
}

func (f *fakeTransport) StopTask(_ context.Context, taskID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops = append(f.stops, taskID)
	return nil
}

func (f *fakeTransport) stopped() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.stops))
	copy(out, f.stops)
	return out
}

// fastPersister keeps bounded waits short in tests.
func fastPersister() PersisterConfig {
	return PersisterConfig{
		PollInterval:   time.Millisecond,
		PollAttempts:   10,
		StreamingWaits: []time.Duration{5 * time.Millisecond, 5 * time.Millisecond},
	}
}
