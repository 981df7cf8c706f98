package usecase

import (
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"raibridge/internal/domain/model"
	"raibridge/internal/infrastructure/cache"
)

type sessionClock struct {
	now time.Time
}

func newSessionClock() *sessionClock {
	return &sessionClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *sessionClock) Now() time.Time {
	return c.now
}

func (c *sessionClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestSessionStore(t *testing.T, cfg SessionStoreConfig) (*SessionStore, *sessionClock, *cache.Cache) {
	t.Helper()
	clock := newSessionClock()
	c := cache.New(cache.DefaultConfig())
	store := NewSessionStore(c, cfg, discardLogger())
	store.now = clock.Now
	return store, clock, c
}

func testAuthData() model.AuthData {
	return model.AuthData{
		Cookies:   "sid=abc; token=def",
		UserAgent: "test-agent",
		Email:     "user@example.com",
	}
}

func TestSessionStore_CreateAndGet(t *testing.T) {
	store, _, _ := newTestSessionStore(t, DefaultSessionStoreConfig())

	created := store.CreateSession("alice", testAuthData())
	require.NotNil(t, created)
	assert.NotEmpty(t, created.Token)

	got, err := store.GetSession("alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", got.UserID)
	assert.Equal(t, "sid=abc; token=def", got.AuthData.Cookies)
}

func TestSessionStore_GetAbsent(t *testing.T) {
	store, _, _ := newTestSessionStore(t, DefaultSessionStoreConfig())

	_, err := store.GetSession("nobody")
	assert.ErrorIs(t, err, model.ErrSessionNotFound)
}

func TestSessionStore_CreateReplacesExisting(t *testing.T) {
	store, _, _ := newTestSessionStore(t, DefaultSessionStoreConfig())

	first := store.CreateSession("alice", testAuthData())
	second := store.CreateSession("alice", testAuthData())

	assert.NotEqual(t, first.Token, second.Token, "recreate must produce a fresh session")
	assert.Equal(t, 1, store.Stats().Total)
}

func TestSessionStore_ExpiryBoundary(t *testing.T) {
	store, clock, _ := newTestSessionStore(t, DefaultSessionStoreConfig())

	store.CreateSession("alice", testAuthData())

	clock.Advance(23*time.Hour + 59*time.Minute)
	_, err := store.GetSession("alice")
	assert.NoError(t, err, "session under 24h must be live")

	clock.Advance(time.Minute + time.Millisecond)
	_, err = store.GetSession("alice")
	assert.ErrorIs(t, err, model.ErrSessionNotFound, "session past 24h must be expired and purged")

	assert.Equal(t, 0, store.Stats().Total)
}

func TestSessionStore_AccessDoesNotExtendExpiry(t *testing.T) {
	store, clock, _ := newTestSessionStore(t, DefaultSessionStoreConfig())

	store.CreateSession("alice", testAuthData())

	// keep touching the session; the absolute window must still close
	for i := 0; i < 24; i++ {
		clock.Advance(time.Hour)
		store.GetSession("alice")
	}
	clock.Advance(time.Millisecond)

	_, err := store.GetSession("alice")
	assert.ErrorIs(t, err, model.ErrSessionNotFound)
}

func TestSessionStore_CacheFallbackReconstruction(t *testing.T) {
	store, _, _ := newTestSessionStore(t, DefaultSessionStoreConfig())

	store.CreateSession("alice", testAuthData())

	// drop the in-memory entry, leaving only the cache mirror
	store.mu.Lock()
	delete(store.sessions, "alice")
	store.mu.Unlock()

	got, err := store.GetSession("alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", got.UserID)
	assert.Equal(t, testAuthData().Cookies, got.AuthData.Cookies)
}

func TestSessionStore_CapEvictsLeastRecentlyAccessed(t *testing.T) {
	cfg := DefaultSessionStoreConfig()
	cfg.MaxSessions = 3
	store, clock, _ := newTestSessionStore(t, cfg)

	for i := 0; i < 3; i++ {
		store.CreateSession(fmt.Sprintf("user%d", i), testAuthData())
		clock.Advance(time.Second)
	}

	// touch user0 so user1 becomes the least recently accessed
	_, err := store.GetSession("user0")
	require.NoError(t, err)
	clock.Advance(time.Second)

	store.CreateSession("user3", testAuthData())

	_, err = store.GetSession("user1")
	assert.ErrorIs(t, err, model.ErrSessionNotFound, "least-recently-accessed session must be evicted")
	for _, userID := range []string{"user0", "user2", "user3"} {
		_, err := store.GetSession(userID)
		assert.NoError(t, err, "session %s must survive eviction", userID)
	}
}

func TestSessionStore_UpdateSession(t *testing.T) {
	store, _, _ := newTestSessionStore(t, DefaultSessionStoreConfig())

	assert.False(t, store.UpdateSession("alice", func(s *model.Session) {}), "update without session must fail")

	store.CreateSession("alice", testAuthData())
	ok := store.UpdateSession("alice", func(s *model.Session) {
		s.AuthData.Cookies = "sid=new"
	})
	require.True(t, ok)

	got, err := store.GetSession("alice")
	require.NoError(t, err)
	assert.Equal(t, "sid=new", got.AuthData.Cookies)
}

func TestSessionStore_DestroyIdempotent(t *testing.T) {
	store, _, c := newTestSessionStore(t, DefaultSessionStoreConfig())

	store.CreateSession("alice", testAuthData())
	assert.True(t, c.Has("auth:alice"))

	store.DestroySession("alice")
	assert.False(t, c.Has("auth:alice"), "cache mirror must be removed")

	// destroying again must not panic or error
	store.DestroySession("alice")
	assert.Equal(t, 0, store.Stats().Total)
}

func TestSessionStore_RateWindow(t *testing.T) {
	store, clock, _ := newTestSessionStore(t, DefaultSessionStoreConfig())
	store.CreateSession("alice", testAuthData())

	window := time.Second
	for i := 0; i < 5; i++ {
		assert.True(t, store.CanMakeRequest("alice", 5, window), "request %d within window", i+1)
		store.RecordRequest("alice")
	}
	assert.False(t, store.CanMakeRequest("alice", 5, window), "6th request must be rejected")

	clock.Advance(window + time.Millisecond)
	assert.True(t, store.CanMakeRequest("alice", 5, window), "window reset must re-allow requests")

	got, err := store.GetSession("alice")
	require.NoError(t, err)
	assert.Equal(t, 0, got.RateCount, "window reset must zero the counter")
	assert.Equal(t, 5, got.RequestCount, "total request count is unaffected by the window")
}

func TestSessionStore_RateLimitFailOpen(t *testing.T) {
	store, _, _ := newTestSessionStore(t, DefaultSessionStoreConfig())

	assert.True(t, store.CanMakeRequest("ghost", 1, time.Second), "no session means allowed")
}

func TestSessionStore_Counters(t *testing.T) {
	store, _, _ := newTestSessionStore(t, DefaultSessionStoreConfig())

	// no-ops without a session
	store.RecordRequest("ghost")
	store.RecordError("ghost")

	store.CreateSession("alice", testAuthData())
	store.RecordRequest("alice")
	store.RecordRequest("alice")
	store.RecordError("alice")

	stats := store.Stats()
	assert.Equal(t, 2, stats.TotalRequests)
	assert.Equal(t, 1, stats.TotalErrors)
}

func TestSessionStore_ListActiveSessions(t *testing.T) {
	store, clock, _ := newTestSessionStore(t, DefaultSessionStoreConfig())

	store.CreateSession("alice", testAuthData())
	clock.Advance(time.Hour)
	store.CreateSession("bob", testAuthData())
	clock.Advance(23*time.Hour + time.Second)

	// alice is now past 24h, bob is not
	active := store.ListActiveSessions()
	require.Len(t, active, 1)
	assert.Equal(t, "bob", active[0].UserID)
}

func TestSessionStore_CleanupExpired(t *testing.T) {
	store, clock, c := newTestSessionStore(t, DefaultSessionStoreConfig())

	store.CreateSession("old", testAuthData())
	clock.Advance(25 * time.Hour)
	store.CreateSession("fresh", testAuthData())

	removed := store.CleanupExpired()
	assert.Equal(t, 1, removed)
	assert.False(t, c.Has("auth:old"))

	_, err := store.GetSession("fresh")
	assert.NoError(t, err)
}
