// Package usecase holds the business logic of the bridge: session
// management, stream resolution, and the catalog/meta aggregation on top of
// the expiring cache and the upstream client.
package usecase

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"raibridge/internal/domain/model"
	"raibridge/internal/infrastructure/cache"
	"raibridge/internal/infrastructure/metrics"
)

// SessionStoreConfig holds configuration for SessionStore.
type SessionStoreConfig struct {
	// MaxSessions is the global cap; least-recently-accessed sessions are
	// evicted beyond it.
	MaxSessions int
	// Timeout is the absolute session lifetime, measured from creation.
	Timeout         time.Duration
	CleanupInterval time.Duration
}

// DefaultSessionStoreConfig returns the production defaults.
func DefaultSessionStoreConfig() SessionStoreConfig {
	return SessionStoreConfig{
		MaxSessions:     100,
		Timeout:         24 * time.Hour,
		CleanupInterval: 5 * time.Minute,
	}
}

// SessionStats is a point-in-time summary of all sessions.
type SessionStats struct {
	Total         int `json:"total"`
	Active        int `json:"active"`
	Expired       int `json:"expired"`
	TotalRequests int `json:"total_requests"`
	TotalErrors   int `json:"total_errors"`
}

// SessionStore owns the per-user authentication sessions. Sessions live in
// memory and are mirrored into the expiring cache under auth: keys, so a
// cleared in-memory map can be rebuilt within the process lifetime. All
// operations on one user's session are serialized behind the store mutex.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]*model.Session

	cache  *cache.Cache
	cfg    SessionStoreConfig
	logger *slog.Logger
	now    func() time.Time
}

// NewSessionStore creates a SessionStore backed by the given cache.
func NewSessionStore(c *cache.Cache, cfg SessionStoreConfig, logger *slog.Logger) *SessionStore {
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = 100
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 24 * time.Hour
	}
	return &SessionStore{
		sessions: make(map[string]*model.Session),
		cache:    c,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

func authKey(userID string) string {
	return cache.NamespaceAuth + userID
}

// CreateSession creates a fresh session for the user, replacing any existing
// one. The global cap is enforced afterwards by evicting the
// least-recently-accessed sessions.
func (s *SessionStore) CreateSession(userID string, data model.AuthData) *model.Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[userID]; exists {
		s.destroyLocked(userID)
	}

	now := s.now()
	session := &model.Session{
		UserID:          userID,
		Token:           uuid.New().String(),
		CreatedAt:       now,
		LastAccessedAt:  now,
		AuthData:        data,
		RateWindowStart: now,
	}
	s.sessions[userID] = session
	s.persistLocked(session)
	s.enforceCapLocked()

	metrics.ActiveSessions.Set(float64(len(s.sessions)))
	s.logger.Info("session created", slog.String("user_id", userID))
	return session
}

// GetSession returns the user's session, consulting the cache if the
// in-memory map has no entry. Expired sessions are destroyed on sight. A hit
// refreshes the last-access timestamp and re-persists.
func (s *SessionStore) GetSession(userID string) (*model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, err := s.getLocked(userID)
	if err != nil {
		return nil, err
	}
	// Hand out a snapshot so callers cannot race the store's own copy.
	snapshot := *session
	return &snapshot, nil
}

func (s *SessionStore) getLocked(userID string) (*model.Session, error) {
	session, ok := s.sessions[userID]
	if !ok {
		if cached, found := s.cache.Get(authKey(userID)); found {
			if restored, valid := cached.(model.Session); valid {
				session = &restored
				s.sessions[userID] = session
				ok = true
			}
		}
	}
	if !ok {
		return nil, model.ErrSessionNotFound
	}

	if session.ExpiredAt(s.now(), s.cfg.Timeout) {
		s.destroyLocked(userID)
		return nil, model.ErrSessionNotFound
	}

	session.LastAccessedAt = s.now()
	s.persistLocked(session)
	return session, nil
}

// UpdateSession applies a mutation to the user's session under the store
// lock. Returns false if no live session exists.
func (s *SessionStore) UpdateSession(userID string, update func(*model.Session)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, err := s.getLocked(userID)
	if err != nil {
		return false
	}
	update(session)
	session.LastAccessedAt = s.now()
	s.persistLocked(session)
	return true
}

// UpdateAuthData replaces the session's auth material.
func (s *SessionStore) UpdateAuthData(userID string, data model.AuthData) bool {
	return s.UpdateSession(userID, func(session *model.Session) {
		session.AuthData = data
	})
}

// DestroySession removes the user's session from memory and cache.
// Idempotent: destroying an absent session is not an error.
func (s *SessionStore) DestroySession(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.destroyLocked(userID)
	metrics.ActiveSessions.Set(float64(len(s.sessions)))
}

func (s *SessionStore) destroyLocked(userID string) {
	if session, ok := s.sessions[userID]; ok {
		s.logger.Info("session destroyed",
			slog.String("user_id", userID),
			slog.Duration("lifetime", s.now().Sub(session.CreatedAt)),
			slog.Int("requests", session.RequestCount),
			slog.Int("errors", session.ErrorCount),
		)
	}
	delete(s.sessions, userID)
	s.cache.Delete(authKey(userID))
}

// IsExpired reports whether the session has outlived its absolute lifetime.
// Access time does not extend the expiry window.
func (s *SessionStore) IsExpired(session *model.Session) bool {
	return session.ExpiredAt(s.now(), s.cfg.Timeout)
}

// CanMakeRequest implements a per-session sliding request window. Once the
// window has elapsed the counter resets. A user without a session is always
// allowed; authentication gating is the caller's concern.
func (s *SessionStore) CanMakeRequest(userID string, maxRequests int, window time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, err := s.getLocked(userID)
	if err != nil {
		return true
	}

	now := s.now()
	if now.Sub(session.RateWindowStart) >= window {
		session.RateWindowStart = now
		session.RateCount = 0
		s.persistLocked(session)
	}
	return session.RateCount < maxRequests
}

// RecordRequest bumps the session's request counters. No-op without a session.
func (s *SessionStore) RecordRequest(userID string) {
	s.UpdateSession(userID, func(session *model.Session) {
		session.RequestCount++
		session.RateCount++
	})
}

// RecordError bumps the session's error counter. No-op without a session.
func (s *SessionStore) RecordError(userID string) {
	s.UpdateSession(userID, func(session *model.Session) {
		session.ErrorCount++
	})
}

// ListActiveSessions returns summaries of all non-expired sessions.
func (s *SessionStore) ListActiveSessions() []model.SessionSummary {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	summaries := make([]model.SessionSummary, 0, len(s.sessions))
	for userID, session := range s.sessions {
		if session.ExpiredAt(now, s.cfg.Timeout) {
			continue
		}
		summaries = append(summaries, model.SessionSummary{
			UserID:       userID,
			Age:          now.Sub(session.CreatedAt),
			IdleFor:      now.Sub(session.LastAccessedAt),
			RequestCount: session.RequestCount,
			ErrorCount:   session.ErrorCount,
		})
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].UserID < summaries[j].UserID
	})
	return summaries
}

// Stats returns aggregate session counters.
func (s *SessionStore) Stats() SessionStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	var stats SessionStats
	now := s.now()
	for _, session := range s.sessions {
		stats.Total++
		stats.TotalRequests += session.RequestCount
		stats.TotalErrors += session.ErrorCount
		if session.ExpiredAt(now, s.cfg.Timeout) {
			stats.Expired++
		} else {
			stats.Active++
		}
	}
	return stats
}

// CleanupExpired purges expired sessions and returns how many were removed.
func (s *SessionStore) CleanupExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for userID, session := range s.sessions {
		if session.ExpiredAt(now, s.cfg.Timeout) {
			s.destroyLocked(userID)
			removed++
		}
	}
	if removed > 0 {
		s.logger.Info("session cleanup", slog.Int("removed", removed))
	}
	metrics.ActiveSessions.Set(float64(len(s.sessions)))
	return removed
}

// StartCleanup runs the periodic expiry purge until ctx is cancelled.
func (s *SessionStore) StartCleanup(ctx context.Context) {
	interval := s.cfg.CleanupInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.CleanupExpired()
			}
		}
	}()
}

// persistLocked mirrors a session snapshot into the cache under its auth key.
func (s *SessionStore) persistLocked(session *model.Session) {
	s.cache.Set(authKey(session.UserID), *session)
}

// enforceCapLocked evicts least-recently-accessed sessions beyond the cap.
func (s *SessionStore) enforceCapLocked() {
	if len(s.sessions) <= s.cfg.MaxSessions {
		return
	}

	type accessed struct {
		userID string
		at     time.Time
	}
	entries := make([]accessed, 0, len(s.sessions))
	for userID, session := range s.sessions {
		entries = append(entries, accessed{userID, session.LastAccessedAt})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].at.Before(entries[j].at)
	})

	excess := len(s.sessions) - s.cfg.MaxSessions
	for _, e := range entries[:excess] {
		s.destroyLocked(e.userID)
	}
	s.logger.Info("session cap enforced", slog.Int("evicted", excess))
}
