package server

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/54b3r/helpdesk-rag/internal/access"
	"github.com/54b3r/helpdesk-rag/internal/logging"
)

// maxSessionList bounds the limit query parameter.
const maxSessionList = 1000

// handleListSessions handles GET /api/sessions. Admin only.
func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	if roleFromContext(r.Context()) != access.RoleAdmin {
		writeError(w, r, http.StatusForbidden, "admin role required")
		return
	}
	if !s.sessionsEnabled(w, r) {
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxSessionList {
			writeError(w, r, http.StatusBadRequest, "limit must be between 1 and 1000")
			return
		}
		limit = n
	}

	ids, err := s.sessions.List(r.Context(), limit)
	if err != nil {
		logging.FromContext(r.Context()).Error("list sessions failed", slog.Any("error", err))
		writeError(w, r, http.StatusInternalServerError, "failed to list sessions")
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, r, http.StatusOK, sessionListResponse{Sessions: ids, Total: len(ids)})
}

// handleSessionInfo handles GET /api/sessions/{id}. A missing session is
// reported with exists=false rather than 404.
func (s *Server) handleSessionInfo(w http.ResponseWriter, r *http.Request) {
	if !s.sessionsEnabled(w, r) {
		return
	}
	id := r.PathValue("id")
	info, err := s.sessions.Info(r.Context(), id)
	if err != nil {
		logging.FromContext(r.Context()).Error("session info failed", slog.String("session_id", id), slog.Any("error", err))
		writeError(w, r, http.StatusInternalServerError, "failed to read session")
		return
	}
	writeJSON(w, r, http.StatusOK, sessionInfoResponse{
		SessionID:    id,
		Exists:       info.Exists,
		MessageCount: info.MessageCount,
		TTL:          info.TTLSeconds(),
	})
}

// handleSessionHistory handles GET /api/sessions/{id}/history.
func (s *Server) handleSessionHistory(w http.ResponseWriter, r *http.Request) {
	if !s.sessionsEnabled(w, r) {
		return
	}
	log := logging.FromContext(r.Context())
	id := r.PathValue("id")

	info, err := s.sessions.Info(r.Context(), id)
	if err != nil {
		log.Error("session info failed", slog.String("session_id", id), slog.Any("error", err))
		writeError(w, r, http.StatusInternalServerError, "failed to read session")
		return
	}
	if !info.Exists {
		writeError(w, r, http.StatusNotFound, "session "+id+" not found or expired")
		return
	}

	msgs, err := s.sessions.History(r.Context(), id)
	if err != nil {
		log.Error("session history failed", slog.String("session_id", id), slog.Any("error", err))
		writeError(w, r, http.StatusInternalServerError, "failed to read session")
		return
	}
	writeJSON(w, r, http.StatusOK, historyResponse{
		SessionID:    id,
		Messages:     msgs,
		MessageCount: len(msgs),
		TTL:          info.TTLSeconds(),
	})
}

// handleClearSession handles DELETE /api/sessions/{id}. It clears both the
// session memory and the checkpointed thread.
func (s *Server) handleClearSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	existed, err := s.answerer.ClearSession(r.Context(), id)
	if err != nil {
		logging.FromContext(r.Context()).Error("clear session failed", slog.String("session_id", id), slog.Any("error", err))
		writeError(w, r, http.StatusInternalServerError, "failed to clear session")
		return
	}
	msg := "session cleared"
	if !existed {
		msg = "session not found"
	}
	writeJSON(w, r, http.StatusOK, clearResponse{SessionID: id, Success: existed, Message: msg})
}

// sessionsEnabled writes 503 and returns false when no session memory is
// configured.
func (s *Server) sessionsEnabled(w http.ResponseWriter, r *http.Request) bool {
	if s.sessions == nil {
		writeError(w, r, http.StatusServiceUnavailable, "session memory is disabled")
		return false
	}
	return true
}
