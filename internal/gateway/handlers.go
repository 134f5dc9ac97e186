package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/voxhall/voxhall/internal/chat"
	"github.com/voxhall/voxhall/internal/domain"
)

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "ok",
		Version: s.version,
		Clients: s.clients.Count(),
	})
}

// handleSubmit accepts a user message for the session. The submission runs
// asynchronously; progress arrives over the WebSocket feed.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "could not parse request body")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "invalid_params", "text is required")
		return
	}
	if s.orch.Busy() {
		writeError(w, http.StatusConflict, "busy", "a submission is already in flight")
		return
	}

	go func() {
		err := s.orch.Submit(context.Background(), req.Text, req.Attachments)
		switch {
		case err == nil:
		case errors.Is(err, chat.ErrBusy):
			// Lost the race with a concurrent submit; the guard already
			// rejected it and state was untouched.
			s.log.Info().Msg("submission rejected after accept: already in flight")
		default:
			s.log.Warn().Err(err).Msg("submission failed")
		}
	}()

	writeJSON(w, http.StatusAccepted, SubmitResponse{Accepted: true})
}

// handleStop cancels the in-flight streaming response, if any.
func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.orch.Stop()
	w.WriteHeader(http.StatusNoContent)
}

// handleMessages returns the current session's message snapshot.
func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, Snapshot{
		Conversation: s.orch.Identity(),
		Messages:     s.state.Messages(),
	})
}

// handleConversation returns the session's conversation identity.
func (s *Server) handleConversation(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.orch.Identity())
}

// handleHistory returns persisted messages for a conversation by external id.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	externalID := r.URL.Query().Get("externalId")
	if externalID == "" {
		writeError(w, http.StatusBadRequest, "invalid_params", "externalId is required")
		return
	}

	internalID, err := s.history.FindConversationByExternalID(r.Context(), externalID)
	if err != nil {
		if errors.Is(err, domain.ErrConversationNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "no conversation with external id "+externalID)
			return
		}
		s.log.Error().Err(err).Str("externalId", externalID).Msg("history lookup failed")
		writeError(w, http.StatusInternalServerError, "store_error", "could not look up conversation")
		return
	}

	msgs, err := s.history.Messages(r.Context(), internalID)
	if err != nil {
		s.log.Error().Err(err).Str("conversationId", internalID).Msg("history read failed")
		writeError(w, http.StatusInternalServerError, "store_error", "could not read messages")
		return
	}

	writeJSON(w, http.StatusOK, Snapshot{
		Conversation: domain.ConversationIdentity{ExternalID: externalID, InternalID: internalID},
		Messages:     msgs,
	})
}

// handleNotFound returns a 404 for unknown routes.
func handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, map[string]string{
		"error": "not found",
		"path":  r.URL.Path,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}
