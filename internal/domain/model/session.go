package model

import (
	"errors"
	"time"
)

var (
	// ErrSessionNotFound is returned when no session exists for a user.
	ErrSessionNotFound = errors.New("session not found")
)

// AuthData holds the upstream credentials material attached to a session.
type AuthData struct {
	Cookies   string    `json:"cookies"`
	UserAgent string    `json:"user_agent"`
	Email     string    `json:"email,omitempty"`
	LoginTime time.Time `json:"login_time"`
}

// Session represents an authenticated user session against the upstream portal.
// At most one session exists per user ID.
type Session struct {
	UserID         string    `json:"user_id"`
	Token          string    `json:"token"`
	CreatedAt      time.Time `json:"created_at"`
	LastAccessedAt time.Time `json:"last_accessed_at"`
	AuthData       AuthData  `json:"auth_data"`

	RequestCount    int       `json:"request_count"`
	ErrorCount      int       `json:"error_count"`
	RateWindowStart time.Time `json:"rate_window_start"`
	RateCount       int       `json:"rate_count"`
}

// ExpiredAt reports whether the session has passed its absolute lifetime at
// the given instant. The window runs from CreatedAt; access time never
// extends it.
func (s *Session) ExpiredAt(now time.Time, timeout time.Duration) bool {
	if s == nil || s.CreatedAt.IsZero() {
		return true
	}
	return now.Sub(s.CreatedAt) > timeout
}

// SessionSummary is the external view of a session, without auth material.
type SessionSummary struct {
	UserID       string        `json:"user_id"`
	Age          time.Duration `json:"age"`
	IdleFor      time.Duration `json:"idle_for"`
	RequestCount int           `json:"request_count"`
	ErrorCount   int           `json:"error_count"`
}

// AuthResult is the outcome of a login attempt against the upstream portal.
type AuthResult struct {
	Success   bool
	Cookies   string
	UserAgent string
	LoginTime time.Time
	Reason    string
}
