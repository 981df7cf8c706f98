package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"raibridge/internal/domain/model"
	"raibridge/internal/usecase"
)

// CatalogProvider serves catalog pages.
type CatalogProvider interface {
	GetCatalog(ctx context.Context, contentType, catalogID string, extra map[string]string, userID string) []model.Meta
}

// MetaProvider serves per-content metadata.
type MetaProvider interface {
	GetMeta(ctx context.Context, contentType, contentID, userID string) *model.Meta
}

// StreamProvider resolves playable streams.
type StreamProvider interface {
	Resolve(ctx context.Context, contentID, userID string, opts usecase.ResolveOptions) []model.Stream
}

// Authenticator performs upstream login for configured users.
type Authenticator interface {
	IsAuthenticated(userID string) bool
	Login(ctx context.Context, email, password, userID string) model.AuthResult
}

// SessionGate exposes the per-session rate limiting bookkeeping.
type SessionGate interface {
	CanMakeRequest(userID string, maxRequests int, window time.Duration) bool
	RecordRequest(userID string)
	RecordError(userID string)
	Stats() usecase.SessionStats
	ListActiveSessions() []model.SessionSummary
}

// Response envelopes. A failed lookup is an empty envelope, never an error
// payload: the client treats anything else as an addon fault.

type CatalogResponse struct {
	Metas []model.Meta `json:"metas"`
}

type MetaResponse struct {
	Meta *model.Meta `json:"meta"`
}

type StreamResponse struct {
	Streams []model.Stream `json:"streams"`
}

// AddonHandlerConfig holds the handler-level rate limit knobs.
type AddonHandlerConfig struct {
	RateMaxRequests int
	RateWindow      time.Duration
}

// AddonHandler serves the catalog, meta and stream endpoints.
type AddonHandler struct {
	catalog  CatalogProvider
	meta     MetaProvider
	streams  StreamProvider
	auth     Authenticator
	sessions SessionGate

	cfg    AddonHandlerConfig
	logger *slog.Logger
}

// NewAddonHandler creates an AddonHandler.
func NewAddonHandler(
	catalog CatalogProvider,
	meta MetaProvider,
	streams StreamProvider,
	auth Authenticator,
	sessions SessionGate,
	cfg AddonHandlerConfig,
	logger *slog.Logger,
) *AddonHandler {
	if cfg.RateMaxRequests <= 0 {
		cfg.RateMaxRequests = 100
	}
	if cfg.RateWindow <= 0 {
		cfg.RateWindow = time.Minute
	}
	return &AddonHandler{
		catalog:  catalog,
		meta:     meta,
		streams:  streams,
		auth:     auth,
		sessions: sessions,
		cfg:      cfg,
		logger:   logger,
	}
}

// Catalog handles GET /catalog/{type}/{id}.json and the {extra} variant.
func (h *AddonHandler) Catalog(w http.ResponseWriter, r *http.Request) {
	userConfig := parseUserConfig(r)
	userID := h.ensureLogin(r.Context(), userConfig)

	contentType := chi.URLParam(r, "type")
	catalogID := trimJSONSuffix(chi.URLParam(r, "id"))
	extra := parseExtra(chi.URLParam(r, "extra"))

	metas := h.catalog.GetCatalog(r.Context(), contentType, catalogID, extra, userID)
	JSON(w, http.StatusOK, CatalogResponse{Metas: metas})
}

// Meta handles GET /meta/{type}/{id}.json.
func (h *AddonHandler) Meta(w http.ResponseWriter, r *http.Request) {
	userConfig := parseUserConfig(r)
	userID := h.ensureLogin(r.Context(), userConfig)

	contentType := chi.URLParam(r, "type")
	contentID := trimJSONSuffix(chi.URLParam(r, "id"))

	meta := h.meta.GetMeta(r.Context(), contentType, contentID, userID)
	JSON(w, http.StatusOK, MetaResponse{Meta: meta})
}

// Stream handles GET /stream/{type}/{id}.json.
func (h *AddonHandler) Stream(w http.ResponseWriter, r *http.Request) {
	userConfig := parseUserConfig(r)
	userID := h.ensureLogin(r.Context(), userConfig)

	contentID := trimJSONSuffix(chi.URLParam(r, "id"))

	if !h.sessions.CanMakeRequest(userID, h.cfg.RateMaxRequests, h.cfg.RateWindow) {
		h.logger.Warn("rate limit exceeded", slog.String("user_id", userID))
		JSON(w, http.StatusOK, StreamResponse{Streams: []model.Stream{}})
		return
	}
	h.sessions.RecordRequest(userID)

	streams := h.streams.Resolve(r.Context(), contentID, userID, usecase.ResolveOptions{
		QualityPreference: userConfig.QualityPreference,
		EnableSubtitles:   userConfig.EnableSubtitles,
	})
	if len(streams) == 0 {
		h.sessions.RecordError(userID)
		streams = []model.Stream{}
	}
	JSON(w, http.StatusOK, StreamResponse{Streams: streams})
}

// ensureLogin attempts an automatic login when the config carries
// credentials and no live session exists. Failures downgrade to anonymous
// access instead of failing the request.
func (h *AddonHandler) ensureLogin(ctx context.Context, cfg UserConfig) string {
	userID := cfg.UserID()
	if cfg.Email == "" || cfg.Password == "" || h.auth.IsAuthenticated(userID) {
		return userID
	}

	result := h.auth.Login(ctx, cfg.Email, cfg.Password, userID)
	if !result.Success {
		h.logger.Warn("auto-login failed",
			slog.String("user_id", userID),
			slog.String("reason", result.Reason),
		)
	}
	return userID
}

// trimJSONSuffix strips the client protocol's .json suffix when the route
// pattern did not already consume it.
func trimJSONSuffix(segment string) string {
	return strings.TrimSuffix(segment, ".json")
}

// parseExtra decodes the extra path segment ("search=foo&skip=20").
func parseExtra(segment string) map[string]string {
	segment = trimJSONSuffix(segment)
	extra := make(map[string]string)
	if segment == "" {
		return extra
	}
	for _, pair := range strings.Split(segment, "&") {
		key, value, found := strings.Cut(pair, "=")
		if found && key != "" {
			extra[key] = value
		}
	}
	return extra
}
