package api

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/chatterbox-server/chatterbox/internal/api/middleware"
	"github.com/chatterbox-server/chatterbox/internal/database/models"
)

type historyResponse struct {
	Success  bool             `json:"success"`
	Messages []models.Message `json:"messages"`
}

// handleHistory returns the transcript between the authenticated user and
// the peer named in the "with" query parameter, oldest first. The "limit"
// parameter caps the result; it defaults to and is bounded by the
// configured history limit.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	username := middleware.UsernameFromContext(r.Context())

	peer := r.URL.Query().Get("with")
	if peer == "" {
		writeError(w, http.StatusBadRequest, "missing 'with' query parameter")
		return
	}

	limit := s.historyLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		if v < limit {
			limit = v
		}
	}

	messages, err := s.messages.History(r.Context(), username, peer, limit)
	if err != nil {
		slog.Error("history query failed", "user", username, "peer", peer, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load history")
		return
	}
	if messages == nil {
		messages = []models.Message{}
	}

	writeJSON(w, http.StatusOK, historyResponse{Success: true, Messages: messages})
}
