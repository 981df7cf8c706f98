package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/PuerkitoBio/goquery"

	"raibridge/internal/domain/model"
)

// SessionStore is the session persistence the auth client works against.
// Implemented by usecase.SessionStore.
type SessionStore interface {
	CreateSession(userID string, data model.AuthData) *model.Session
	GetSession(userID string) (*model.Session, error)
	UpdateAuthData(userID string, data model.AuthData) bool
	DestroySession(userID string)
}

// AuthClient performs login against the portal and produces authenticated
// request headers. Upstream I/O failures never escape as errors; they are
// folded into failure results.
type AuthClient struct {
	client   *Client
	sessions SessionStore
	logger   *slog.Logger
}

// NewAuthClient creates an AuthClient backed by the given transport and
// session store.
func NewAuthClient(client *Client, sessions SessionStore, logger *slog.Logger) *AuthClient {
	return &AuthClient{
		client:   client,
		sessions: sessions,
		logger:   logger,
	}
}

// loginRequest is the JSON body submitted to the portal's login API.
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Token    string `json:"_token,omitempty"`
}

// Login performs the two-step portal login: fetch the login page for the
// anti-forgery token and initial cookies, then submit credentials. HTTP
// success and redirect responses both count as a successful login.
func (a *AuthClient) Login(ctx context.Context, email, password, userID string) model.AuthResult {
	a.logger.Info("login attempt", slog.String("user_id", userID))

	pageResp, err := a.client.get(ctx, a.client.baseURL()+"/login", a.client.baseHeaders(""), a.client.cfg.RequestTimeout)
	if err != nil {
		return a.loginFailure(userID, fmt.Sprintf("login page unreachable: %v", err))
	}
	if !pageResp.ok() {
		return a.loginFailure(userID, fmt.Sprintf("login page returned status %d", pageResp.status))
	}

	csrfToken := extractCSRFToken(pageResp.body)
	pageCookies := pageResp.header.Values("Set-Cookie")

	body, err := json.Marshal(loginRequest{
		Email:    email,
		Password: password,
		Token:    csrfToken,
	})
	if err != nil {
		return a.loginFailure(userID, fmt.Sprintf("encode credentials: %v", err))
	}

	headers := a.client.baseHeaders(mergeCookies(pageCookies))
	headers.Set("Content-Type", "application/json")
	headers.Set("X-Requested-With", "XMLHttpRequest")
	if csrfToken != "" {
		headers.Set("X-CSRF-TOKEN", csrfToken)
	}

	loginResp, err := a.client.post(ctx, a.client.baseURL()+"/api/login", headers, body, a.client.cfg.AuthTimeout)
	if err != nil {
		return a.loginFailure(userID, fmt.Sprintf("login request failed: %v", err))
	}
	if loginResp.status >= http.StatusBadRequest {
		return a.loginFailure(userID, fmt.Sprintf("login rejected with status %d", loginResp.status))
	}

	cookies := mergeCookies(pageCookies, loginResp.header.Values("Set-Cookie"))
	now := time.Now()
	data := model.AuthData{
		Cookies:   cookies,
		UserAgent: defaultUserAgent,
		Email:     email,
		LoginTime: now,
	}
	a.sessions.CreateSession(userID, data)
	a.logger.Info("login successful", slog.String("user_id", userID))

	return model.AuthResult{
		Success:   true,
		Cookies:   cookies,
		UserAgent: defaultUserAgent,
		LoginTime: now,
	}
}

func (a *AuthClient) loginFailure(userID, reason string) model.AuthResult {
	a.logger.Warn("login failed",
		slog.String("user_id", userID),
		slog.String("reason", reason),
	)
	return model.AuthResult{Success: false, Reason: reason}
}

// IsAuthenticated reports whether the user holds a live session. Expired
// sessions are purged by the session store on lookup.
func (a *AuthClient) IsAuthenticated(userID string) bool {
	_, err := a.sessions.GetSession(userID)
	return err == nil
}

// AuthenticatedHeaders returns the baseline header set merged with the
// user's session cookies. Without a session it falls back to the
// unauthenticated baseline; it never fails.
func (a *AuthClient) AuthenticatedHeaders(userID string) http.Header {
	session, err := a.sessions.GetSession(userID)
	if err != nil {
		return a.client.baseHeaders("")
	}
	headers := a.client.baseHeaders(session.AuthData.Cookies)
	if session.AuthData.UserAgent != "" {
		headers.Set("User-Agent", session.AuthData.UserAgent)
	}
	return headers
}

// RefreshSession probes the portal with the session's credentials. On
// success the session's login timestamp is bumped; on any failure the
// session is destroyed and false returned.
func (a *AuthClient) RefreshSession(ctx context.Context, userID string) bool {
	session, err := a.sessions.GetSession(userID)
	if err != nil {
		return false
	}

	resp, err := a.client.get(ctx, a.client.baseURL()+"/api/user", a.AuthenticatedHeaders(userID), a.client.cfg.RequestTimeout)
	if err != nil || !resp.ok() {
		a.logger.Warn("session refresh failed, destroying session", slog.String("user_id", userID))
		a.sessions.DestroySession(userID)
		return false
	}

	data := session.AuthData
	data.LoginTime = time.Now()
	return a.sessions.UpdateAuthData(userID, data)
}

// Logout issues a best-effort upstream logout, then removes the local
// session. Upstream failures are swallowed.
func (a *AuthClient) Logout(ctx context.Context, userID string) {
	if _, err := a.sessions.GetSession(userID); err == nil {
		if _, err := a.client.post(ctx, a.client.baseURL()+"/api/logout", a.AuthenticatedHeaders(userID), nil, a.client.cfg.RequestTimeout); err != nil {
			a.logger.Debug("upstream logout failed", slog.String("user_id", userID), slog.Any("error", err))
		}
	}
	a.sessions.DestroySession(userID)
	a.logger.Info("logout", slog.String("user_id", userID))
}

// extractCSRFToken pulls the anti-forgery token out of the login page, if
// the portal serves one.
func extractCSRFToken(page []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return ""
	}
	token, _ := doc.Find(`meta[name="csrf-token"]`).Attr("content")
	return token
}
