package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	slogctx "github.com/veqryn/slog-context"

	"github.com/truid-app/client-integration/internal/config"
	"github.com/truid-app/client-integration/internal/pkce"
	"github.com/truid-app/client-integration/internal/serviceerr"
	"github.com/truid-app/client-integration/pkg/csrf"
)

// Manager resolves the browser session from the request cookie,
// creating one on first touch, and issues the session and CSRF
// cookies.
type Manager struct {
	sessions Repository
	source   pkce.Source

	duration       time.Duration
	cookieTemplate config.CookieTemplate
	csrfTemplate   config.CookieTemplate
	csrfSecret     []byte
}

func NewManager(cfg *config.Session, sessions Repository) *Manager {
	return &Manager{
		sessions:       sessions,
		duration:       cfg.Duration,
		cookieTemplate: cfg.Cookie,
		csrfTemplate:   cfg.CSRFCookie,
		csrfSecret:     []byte(cfg.CSRFSecret),
	}
}

// Resolve returns the session identified by the request cookie. When
// the cookie is missing or names an unknown or expired session, a fresh
// session is created and its cookie set on the response.
func (m *Manager) Resolve(ctx context.Context, w http.ResponseWriter, r *http.Request) (Session, error) {
	if cookie, err := r.Cookie(m.cookieTemplate.Name); err == nil {
		s, err := m.sessions.LoadSession(ctx, cookie.Value)
		if err == nil && time.Now().Before(s.Expiry) {
			return s, nil
		}
		if err != nil && !errors.Is(err, serviceerr.ErrNotFound) {
			return Session{}, fmt.Errorf("loading session: %w", err)
		}
	}

	s := Session{
		ID:     m.source.SessionID(),
		Expiry: time.Now().Add(m.duration),
	}
	if err := m.sessions.StoreSession(ctx, s); err != nil {
		return Session{}, fmt.Errorf("storing new session: %w", err)
	}

	http.SetCookie(w, m.cookieTemplate.ToCookie(s.ID))
	slogctx.Debug(ctx, "Created a new session", "session_id", s.ID)

	return s, nil
}

// Destroy removes the session and expires its cookie.
func (m *Manager) Destroy(ctx context.Context, w http.ResponseWriter, sessionID string) error {
	if err := m.sessions.DeleteSession(ctx, sessionID); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}

	expired := m.cookieTemplate.ToCookie("")
	expired.MaxAge = -1
	http.SetCookie(w, expired)

	return nil
}

// IssueCSRFCookie sets a CSRF token cookie bound to the session. The
// cookie is deliberately not HttpOnly: the front end reads it and
// echoes the token in the X-CSRF-Token header.
func (m *Manager) IssueCSRFCookie(ctx context.Context, w http.ResponseWriter, sessionID string) string {
	token := csrf.NewToken(sessionID, m.csrfSecret)
	http.SetCookie(w, m.csrfTemplate.ToCookie(token))

	if m.csrfTemplate.HTTPOnly {
		slogctx.Warn(ctx, "CSRF cookie is marked as HttpOnly; the CSRF token needs to be accessible from JavaScript")
	}

	return token
}

func (m *Manager) ValidateCSRFToken(token, sessionID string) bool {
	return csrf.Validate(token, sessionID, m.csrfSecret)
}
