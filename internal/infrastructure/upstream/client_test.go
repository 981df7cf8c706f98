package upstream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestClient builds a Client pointed at a test server, with the rate
// limiter opened wide so tests are not throttled.
func newTestClient(baseURL string) *Client {
	return NewClient(ClientConfig{
		BaseURL:           baseURL,
		RelinkerURL:       baseURL + "/relinker/relinkerServlet.htm",
		RequestTimeout:    5 * time.Second,
		AuthTimeout:       5 * time.Second,
		StreamTimeout:     5 * time.Second,
		RequestsPerSecond: 1000,
		RequestBurst:      100,
	})
}

func TestClient_GetFollowsRedirects(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/start", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/final.m3u8", http.StatusFound)
	})
	mux.HandleFunc("/final.m3u8", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("#EXTM3U"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := newTestClient(srv.URL)
	resp, err := c.get(context.Background(), srv.URL+"/start", nil, 0)

	require.NoError(t, err)
	assert.True(t, resp.ok())
	assert.Equal(t, srv.URL+"/final.m3u8", resp.finalURL)
	assert.Equal(t, []byte("#EXTM3U"), resp.body)
}

func TestClient_GetNoRedirectStopsAtFirstHop(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/elsewhere", http.StatusFound)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	resp, err := c.getNoRedirect(context.Background(), srv.URL+"/start", nil, 0)

	require.NoError(t, err)
	assert.Equal(t, http.StatusFound, resp.status)
	assert.Equal(t, "/elsewhere", resp.header.Get("Location"))
}

func TestClient_PostDoesNotFollowRedirects(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		http.Redirect(w, r, "/home", http.StatusFound)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	resp, err := c.post(context.Background(), srv.URL+"/api/login", nil, []byte(`{}`), 0)

	require.NoError(t, err)
	assert.Equal(t, http.StatusFound, resp.status)
}

func TestClient_HeadersForwarded(t *testing.T) {
	var got http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.get(context.Background(), srv.URL+"/", c.baseHeaders("session=abc"), 0)

	require.NoError(t, err)
	assert.Equal(t, defaultUserAgent, got.Get("User-Agent"))
	assert.Equal(t, "session=abc", got.Get("Cookie"))
	assert.Equal(t, srv.URL+"/", got.Get("Referer"))
}

func TestClient_TimeoutEnforced(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.get(context.Background(), srv.URL+"/", nil, 50*time.Millisecond)

	assert.Error(t, err)
}

func TestMergeCookies(t *testing.T) {
	tests := []struct {
		name string
		sets [][]string
		want string
	}{
		{
			name: "attributes stripped",
			sets: [][]string{{"a=1; Path=/; HttpOnly", "b=2; Secure"}},
			want: "a=1; b=2",
		},
		{
			name: "multiple sets merged in order",
			sets: [][]string{{"a=1"}, {"b=2", "c=3"}},
			want: "a=1; b=2; c=3",
		},
		{
			name: "empty input",
			sets: nil,
			want: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, mergeCookies(tt.sets...))
		})
	}
}
