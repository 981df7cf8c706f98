package handler

import (
	"net/http"

	"raibridge/internal/domain/model"
	"raibridge/internal/infrastructure/cache"
	"raibridge/internal/usecase"
)

// SessionStatsResponse is the debug view of session and cache state.
type SessionStatsResponse struct {
	Sessions usecase.SessionStats   `json:"sessions"`
	Active   []model.SessionSummary `json:"active"`
	Cache    cache.Stats            `json:"cache"`
}

// SessionHandler serves the operational session/cache stats endpoint.
type SessionHandler struct {
	sessions SessionGate
	cache    *cache.Cache
}

// NewSessionHandler creates a SessionHandler.
func NewSessionHandler(sessions SessionGate, c *cache.Cache) *SessionHandler {
	return &SessionHandler{sessions: sessions, cache: c}
}

// Stats handles GET /api/sessions.
func (h *SessionHandler) Stats(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, SessionStatsResponse{
		Sessions: h.sessions.Stats(),
		Active:   h.sessions.ListActiveSessions(),
		Cache:    h.cache.Stats(),
	})
}
