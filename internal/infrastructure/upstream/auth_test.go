package upstream

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"raibridge/internal/domain/model"
)

// fakeSessionStore is a map-backed stand-in for the real session store.
type fakeSessionStore struct {
	sessions  map[string]*model.Session
	destroyed []string
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{sessions: make(map[string]*model.Session)}
}

func (f *fakeSessionStore) CreateSession(userID string, data model.AuthData) *model.Session {
	s := &model.Session{
		UserID:    userID,
		Token:     "token-" + userID,
		CreatedAt: time.Now(),
		AuthData:  data,
	}
	f.sessions[userID] = s
	return s
}

func (f *fakeSessionStore) GetSession(userID string) (*model.Session, error) {
	s, ok := f.sessions[userID]
	if !ok {
		return nil, model.ErrSessionNotFound
	}
	return s, nil
}

func (f *fakeSessionStore) UpdateAuthData(userID string, data model.AuthData) bool {
	s, ok := f.sessions[userID]
	if !ok {
		return false
	}
	s.AuthData = data
	return true
}

func (f *fakeSessionStore) DestroySession(userID string) {
	delete(f.sessions, userID)
	f.destroyed = append(f.destroyed, userID)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const loginPage = `<html><head><meta name="csrf-token" content="tok-123"></head><body></body></html>`

// newLoginServer serves the two-step login flow and records what the second
// step received.
func newLoginServer(t *testing.T, loginStatus int) (*httptest.Server, *http.Request, *[]byte) {
	t.Helper()
	var captured http.Request
	var capturedBody []byte

	mux := http.NewServeMux()
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Add("Set-Cookie", "XSRF-TOKEN=abc; Path=/")
		w.Header().Add("Set-Cookie", "laravel_session=xyz; HttpOnly")
		w.Write([]byte(loginPage))
	})
	mux.HandleFunc("/api/login", func(w http.ResponseWriter, r *http.Request) {
		captured = *r
		captured.Header = r.Header.Clone()
		capturedBody, _ = io.ReadAll(r.Body)
		w.Header().Add("Set-Cookie", "auth=yes; Path=/")
		w.WriteHeader(loginStatus)
	})
	return httptest.NewServer(mux), &captured, &capturedBody
}

func TestAuthClient_LoginSuccess(t *testing.T) {
	srv, captured, capturedBody := newLoginServer(t, http.StatusOK)
	defer srv.Close()

	store := newFakeSessionStore()
	auth := NewAuthClient(newTestClient(srv.URL), store, testLogger())

	result := auth.Login(context.Background(), "user@example.com", "secret", "u1")

	require.True(t, result.Success)
	assert.Equal(t, "XSRF-TOKEN=abc; laravel_session=xyz; auth=yes", result.Cookies)
	assert.Equal(t, defaultUserAgent, result.UserAgent)

	assert.Equal(t, "tok-123", captured.Header.Get("X-CSRF-TOKEN"))
	assert.Equal(t, "XMLHttpRequest", captured.Header.Get("X-Requested-With"))
	assert.Equal(t, "application/json", captured.Header.Get("Content-Type"))
	assert.Equal(t, "XSRF-TOKEN=abc; laravel_session=xyz", captured.Header.Get("Cookie"))

	var body loginRequest
	require.NoError(t, json.Unmarshal(*capturedBody, &body))
	assert.Equal(t, "user@example.com", body.Email)
	assert.Equal(t, "secret", body.Password)
	assert.Equal(t, "tok-123", body.Token)

	session, err := store.GetSession("u1")
	require.NoError(t, err)
	assert.Equal(t, result.Cookies, session.AuthData.Cookies)
	assert.Equal(t, "user@example.com", session.AuthData.Email)
}

func TestAuthClient_LoginRedirectCountsAsSuccess(t *testing.T) {
	srv, _, _ := newLoginServer(t, http.StatusFound)
	defer srv.Close()

	auth := NewAuthClient(newTestClient(srv.URL), newFakeSessionStore(), testLogger())

	result := auth.Login(context.Background(), "user@example.com", "secret", "u1")

	assert.True(t, result.Success)
}

func TestAuthClient_LoginRejected(t *testing.T) {
	srv, _, _ := newLoginServer(t, http.StatusUnauthorized)
	defer srv.Close()

	store := newFakeSessionStore()
	auth := NewAuthClient(newTestClient(srv.URL), store, testLogger())

	result := auth.Login(context.Background(), "user@example.com", "wrong", "u1")

	assert.False(t, result.Success)
	assert.Contains(t, result.Reason, "401")
	_, err := store.GetSession("u1")
	assert.ErrorIs(t, err, model.ErrSessionNotFound)
}

func TestAuthClient_LoginPageUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	auth := NewAuthClient(newTestClient(srv.URL), newFakeSessionStore(), testLogger())

	result := auth.Login(context.Background(), "user@example.com", "secret", "u1")

	assert.False(t, result.Success)
	assert.Contains(t, result.Reason, "login page unreachable")
}

func TestAuthClient_LoginWithoutCSRFToken(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><body>no token here</body></html>"))
	})
	var sawCSRFHeader bool
	mux.HandleFunc("/api/login", func(w http.ResponseWriter, r *http.Request) {
		_, sawCSRFHeader = r.Header[http.CanonicalHeaderKey("X-CSRF-TOKEN")]
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	auth := NewAuthClient(newTestClient(srv.URL), newFakeSessionStore(), testLogger())

	result := auth.Login(context.Background(), "user@example.com", "secret", "u1")

	assert.True(t, result.Success, "a tokenless login page must not block login")
	assert.False(t, sawCSRFHeader)
}

func TestAuthClient_IsAuthenticated(t *testing.T) {
	store := newFakeSessionStore()
	auth := NewAuthClient(newTestClient("http://unused"), store, testLogger())

	assert.False(t, auth.IsAuthenticated("u1"))
	store.CreateSession("u1", model.AuthData{Cookies: "a=1"})
	assert.True(t, auth.IsAuthenticated("u1"))
}

func TestAuthClient_AuthenticatedHeaders(t *testing.T) {
	store := newFakeSessionStore()
	store.CreateSession("u1", model.AuthData{Cookies: "auth=yes", UserAgent: "CustomAgent/1.0"})
	auth := NewAuthClient(newTestClient("http://portal"), store, testLogger())

	headers := auth.AuthenticatedHeaders("u1")
	assert.Equal(t, "auth=yes", headers.Get("Cookie"))
	assert.Equal(t, "CustomAgent/1.0", headers.Get("User-Agent"))

	fallback := auth.AuthenticatedHeaders("nobody")
	assert.Empty(t, fallback.Get("Cookie"))
	assert.Equal(t, defaultUserAgent, fallback.Get("User-Agent"))
}

func TestAuthClient_RefreshSession(t *testing.T) {
	status := http.StatusOK
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))
	defer srv.Close()

	store := newFakeSessionStore()
	store.CreateSession("u1", model.AuthData{Cookies: "auth=yes", LoginTime: time.Now().Add(-time.Hour)})
	auth := NewAuthClient(newTestClient(srv.URL), store, testLogger())

	assert.True(t, auth.RefreshSession(context.Background(), "u1"))
	session, err := store.GetSession("u1")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), session.AuthData.LoginTime, time.Minute)

	status = http.StatusUnauthorized
	assert.False(t, auth.RefreshSession(context.Background(), "u1"))
	_, err = store.GetSession("u1")
	assert.ErrorIs(t, err, model.ErrSessionNotFound)

	assert.False(t, auth.RefreshSession(context.Background(), "nobody"))
}

func TestAuthClient_Logout(t *testing.T) {
	var upstreamCalled bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upstreamCalled = true
	}))
	defer srv.Close()

	store := newFakeSessionStore()
	store.CreateSession("u1", model.AuthData{Cookies: "auth=yes"})
	auth := NewAuthClient(newTestClient(srv.URL), store, testLogger())

	auth.Logout(context.Background(), "u1")

	assert.True(t, upstreamCalled)
	assert.Equal(t, []string{"u1"}, store.destroyed)

	// without a session, logout is still a safe no-op
	auth.Logout(context.Background(), "nobody")
	assert.Equal(t, []string{"u1", "nobody"}, store.destroyed)
}

func TestExtractCSRFToken(t *testing.T) {
	assert.Equal(t, "tok-123", extractCSRFToken([]byte(loginPage)))
	assert.Equal(t, "", extractCSRFToken([]byte("<html></html>")))
	assert.Equal(t, "", extractCSRFToken(nil))
}
