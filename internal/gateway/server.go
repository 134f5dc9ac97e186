// Package gateway exposes the conversation session over HTTP and WebSocket.
// Mutations (submit, stop) are plain HTTP endpoints; state flows out through
// a WebSocket event feed backed by the view package.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/voxhall/voxhall/internal/config"
	"github.com/voxhall/voxhall/internal/domain"
	"github.com/voxhall/voxhall/internal/logging"
	"github.com/voxhall/voxhall/internal/version"
	"github.com/voxhall/voxhall/internal/view"
)

// Conversations is the orchestrator surface the gateway drives.
type Conversations interface {
	Submit(ctx context.Context, text string, attachments []domain.Attachment) error
	Stop()
	Busy() bool
	Identity() domain.ConversationIdentity
	SetConversation(id domain.ConversationIdentity)
}

// History reads persisted conversation data.
type History interface {
	FindConversationByExternalID(ctx context.Context, externalID string) (string, error)
	Messages(ctx context.Context, internalID string) ([]domain.Message, error)
}

// Server is the Voxhall HTTP + WebSocket server.
type Server struct {
	cfg     config.Config
	log     *logging.Logger
	orch    Conversations
	state   *view.State
	history History
	clients *ClientRegistry
	version string

	startedAt  time.Time
	httpServer *http.Server
	upgrader   websocket.Upgrader
}

// New creates a gateway server around an orchestrator and its view state.
func New(cfg config.Config, orch Conversations, state *view.State, history History, log *logging.Logger) *Server {
	return &Server{
		cfg:     cfg,
		log:     log.Sub("gateway"),
		orch:    orch,
		state:   state,
		history: history,
		clients: NewClientRegistry(log.Sub("clients")),
		version: version.Version,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     checkWebSocketOrigin(cfg.Server.AllowedOrigins),
		},
	}
}

// checkWebSocketOrigin returns a function that validates WebSocket Origin
// headers. Requests without an Origin header (non-browser clients) are always
// allowed; browser origins must match the configured list.
func checkWebSocketOrigin(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, a := range allowed {
			if a == "*" || a == origin {
				return true
			}
		}
		return false
	}
}

// Handler returns the fully wired HTTP handler, including middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.registerRoutes(mux)
	return withMiddleware(mux, s.log, s.cfg.Server.AllowedOrigins)
}

func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /api/submit", s.handleSubmit)
	mux.HandleFunc("POST /api/stop", s.handleStop)
	mux.HandleFunc("GET /api/messages", s.handleMessages)
	mux.HandleFunc("GET /api/conversation", s.handleConversation)
	mux.HandleFunc("GET /api/history", s.handleHistory)
	mux.HandleFunc("GET /ws", s.handleWebSocket)
	mux.HandleFunc("/", handleNotFound)
}

// Start begins listening for HTTP and WebSocket connections.
// It blocks until the context is cancelled or an error occurs.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", config.BindHost(s.cfg.Server.Bind), s.cfg.Server.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // streaming websockets must not be write-limited
		IdleTimeout:  120 * time.Second,
		BaseContext:  func(l net.Listener) context.Context { return ctx },
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s.startedAt = time.Now()
	s.log.Info().
		Str("addr", ln.Addr().String()).
		Str("bind", s.cfg.Server.Bind).
		Msg("server starting")

	go func() {
		<-ctx.Done()
		s.log.Info().Msg("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.clients.CloseAll()
		s.httpServer.Shutdown(shutdownCtx)
	}()

	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Addr returns the server's listen address, or empty string if not started.
func (s *Server) Addr() string {
	if s.httpServer != nil {
		return s.httpServer.Addr
	}
	return ""
}

// handleWebSocket upgrades the connection and streams view events. The feed
// is subscribed before the snapshot is taken so no event can fall in the gap;
// clients de-duplicate on seq.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error().Err(err).Msg("websocket upgrade failed")
		return
	}
	conn.SetReadLimit(1 << 20)

	client := NewClient(conn, s.log.Sub("ws"))
	s.clients.Add(client)

	events, cancel := s.state.Subscribe()
	defer func() {
		cancel()
		s.clients.Remove(client.ConnID)
		client.Close()
	}()

	snap := Snapshot{
		Conversation: s.orch.Identity(),
		Messages:     s.state.Messages(),
	}
	if err := client.SendEvent(EventSnapshot, snap, 0); err != nil {
		s.log.Warn().Err(err).Str("connId", client.ConnID).Msg("snapshot send failed")
		return
	}

	// Reader goroutine: the client sends nothing meaningful, but reading is
	// required to process control frames and detect disconnects.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := client.SendEvent(string(ev.Type), ev, ev.Seq); err != nil {
				if !errors.Is(err, ErrClientClosed) {
					s.log.Debug().Err(err).Str("connId", client.ConnID).Msg("event send failed")
				}
				return
			}
		case <-done:
			return
		case <-r.Context().Done():
			return
		}
	}
}
