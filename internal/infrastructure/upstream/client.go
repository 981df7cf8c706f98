// Package upstream talks to the RaiPlay portal: login, page fetches, API
// probes and the mediapolis relinker. Every outbound call carries a
// browser-like header set, honors a per-call timeout and goes through a
// shared rate limiter so the portal is never hammered.
package upstream

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// maxBodySize bounds how much of an upstream response is read.
const maxBodySize = 10 << 20

// ClientConfig holds the upstream endpoints and timeouts.
type ClientConfig struct {
	BaseURL     string
	RelinkerURL string

	RequestTimeout time.Duration
	AuthTimeout    time.Duration
	StreamTimeout  time.Duration

	RequestsPerSecond float64
	RequestBurst      int
}

// DefaultClientConfig returns the production defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		BaseURL:           "https://www.raiplay.it",
		RelinkerURL:       "https://mediapolis.rai.it/relinker/relinkerServlet.htm",
		RequestTimeout:    10 * time.Second,
		AuthTimeout:       15 * time.Second,
		StreamTimeout:     15 * time.Second,
		RequestsPerSecond: 10,
		RequestBurst:      5,
	}
}

// Client is the shared HTTP transport to the portal.
type Client struct {
	cfg     ClientConfig
	limiter *rate.Limiter

	// follow chases redirects (content pages, relinker); noFollow stops at
	// the first response so login redirects can be inspected.
	follow   *http.Client
	noFollow *http.Client
}

// NewClient creates a Client with its own transports and rate limiter.
func NewClient(cfg ClientConfig) *Client {
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 10
	}
	if cfg.RequestBurst <= 0 {
		cfg.RequestBurst = 1
	}
	return &Client{
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.RequestBurst),
		follow:  &http.Client{},
		noFollow: &http.Client{
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// baseURL returns the configured portal base URL.
func (c *Client) baseURL() string {
	return c.cfg.BaseURL
}

// relinkerURL returns the configured relinker endpoint.
func (c *Client) relinkerURL() string {
	return c.cfg.RelinkerURL
}

// baseHeaders returns the unauthenticated browser-like header set, with the
// given cookie string attached when non-empty.
func (c *Client) baseHeaders(cookies string) http.Header {
	h := http.Header{}
	h.Set("User-Agent", defaultUserAgent)
	h.Set("Accept", "application/json, text/plain, */*")
	h.Set("Accept-Language", "it-IT,it;q=0.9,en;q=0.8")
	h.Set("DNT", "1")
	h.Set("Connection", "keep-alive")
	h.Set("Upgrade-Insecure-Requests", "1")
	h.Set("Cache-Control", "max-age=0")
	h.Set("Referer", c.cfg.BaseURL+"/")
	h.Set("Origin", c.cfg.BaseURL)
	if cookies != "" {
		h.Set("Cookie", cookies)
	}
	return h
}

// response is a fully-read upstream response.
type response struct {
	status   int
	header   http.Header
	body     []byte
	finalURL string
}

func (r *response) ok() bool {
	return r.status >= 200 && r.status < 300
}

// do performs one rate-limited request with the given timeout. followRedirects
// selects which transport is used.
func (c *Client) do(ctx context.Context, method, rawURL string, headers http.Header, body []byte, timeout time.Duration, followRedirects bool) (*response, error) {
	if timeout <= 0 {
		timeout = c.cfg.RequestTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for key, values := range headers {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}

	client := c.follow
	if !followRedirects {
		client = c.noFollow
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, rawURL, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	finalURL := rawURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}
	return &response{
		status:   resp.StatusCode,
		header:   resp.Header,
		body:     data,
		finalURL: finalURL,
	}, nil
}

// get fetches a URL following redirects.
func (c *Client) get(ctx context.Context, rawURL string, headers http.Header, timeout time.Duration) (*response, error) {
	return c.do(ctx, http.MethodGet, rawURL, headers, nil, timeout, true)
}

// getNoRedirect fetches a URL without following redirects.
func (c *Client) getNoRedirect(ctx context.Context, rawURL string, headers http.Header, timeout time.Duration) (*response, error) {
	return c.do(ctx, http.MethodGet, rawURL, headers, nil, timeout, false)
}

// post sends a body without following redirects, so a 3xx login answer is
// returned as-is.
func (c *Client) post(ctx context.Context, rawURL string, headers http.Header, body []byte, timeout time.Duration) (*response, error) {
	return c.do(ctx, http.MethodPost, rawURL, headers, body, timeout, false)
}

// mergeCookies flattens Set-Cookie header values into a single cookie-jar
// string, keeping only the name=value pair of each cookie.
func mergeCookies(sets ...[]string) string {
	var pairs []string
	for _, set := range sets {
		for _, raw := range set {
			pair := strings.TrimSpace(strings.SplitN(raw, ";", 2)[0])
			if pair != "" {
				pairs = append(pairs, pair)
			}
		}
	}
	return strings.Join(pairs, "; ")
}
