package flow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	slogctx "github.com/veqryn/slog-context"

	"github.com/truid-app/client-integration/internal/serviceerr"
	"github.com/truid-app/client-integration/internal/session"
	"github.com/truid-app/client-integration/internal/truid"
)

// EnsureFresh returns the session with a usable access token,
// refreshing the token pair first when it is past its expiry. A session
// without tokens, or one whose refresh is rejected by the provider,
// yields an Unauthorized error.
func (m *Manager) EnsureFresh(ctx context.Context, sessionID string) (session.Session, error) {
	s, err := m.loadAuthenticated(ctx, sessionID)
	if err != nil {
		return session.Session{}, err
	}

	if !s.Token.Stale(time.Now()) {
		return s, nil
	}

	return m.refresh(ctx, sessionID)
}

func (m *Manager) loadAuthenticated(ctx context.Context, sessionID string) (session.Session, error) {
	s, err := m.sessions.LoadSession(ctx, sessionID)
	if errors.Is(err, serviceerr.ErrNotFound) {
		return session.Session{}, serviceerr.AuthenticationRequired("unknown session")
	}
	if err != nil {
		return session.Session{}, fmt.Errorf("loading session: %w", err)
	}

	if !s.Authenticated() {
		return session.Session{}, serviceerr.AuthenticationRequired("session has no tokens")
	}

	return s, nil
}

// refresh redeems the refresh token, serialized per session. The
// provider revokes the whole grant when the same refresh token is
// redeemed twice, so concurrent callers queue up here and all but the
// first find the record already fresh.
func (m *Manager) refresh(ctx context.Context, sessionID string) (session.Session, error) {
	unlock := m.refreshLocks.lock(sessionID)
	defer unlock()

	// Re-check under the lock: a queued caller usually finds the token
	// already replaced by whoever held the lock before it.
	s, err := m.loadAuthenticated(ctx, sessionID)
	if err != nil {
		return session.Session{}, err
	}
	if !s.Token.Stale(time.Now()) {
		return s, nil
	}

	if s.Token.RefreshToken == "" {
		return session.Session{}, m.clearTokens(ctx, s, "no refresh token")
	}

	// The redemption must run to completion even if the browser request
	// that triggered it goes away: aborting mid-redemption leaves the
	// old refresh token spent and nothing stored in its place.
	outboundCtx := context.WithoutCancel(ctx)

	tokens, err := m.truid.Refresh(outboundCtx, s.Token.RefreshToken)
	if err != nil {
		var forbidden *serviceerr.Forbidden
		if errors.As(err, &forbidden) {
			slogctx.Warn(ctx, "Provider rejected the refresh token", "session_id", s.ID)

			return session.Session{}, m.clearTokens(outboundCtx, s, "refresh token rejected")
		}

		return session.Session{}, fmt.Errorf("refreshing session tokens: %w", err)
	}

	s.Token = newTokenRecord(tokens, time.Now())
	if err := m.sessions.StoreSession(outboundCtx, s); err != nil {
		return session.Session{}, fmt.Errorf("storing refreshed tokens: %w", err)
	}

	return s, nil
}

// clearTokens drops the credentials but keeps the session itself, so
// the browser keeps its cookie and can start a fresh authorization.
func (m *Manager) clearTokens(ctx context.Context, s session.Session, reason string) error {
	s.Token = nil
	if err := m.sessions.StoreSession(ctx, s); err != nil {
		return fmt.Errorf("clearing session tokens: %w", err)
	}

	return serviceerr.AuthenticationRequired(reason)
}

// newTokenRecord converts a provider token response into the stored
// record. The record is replaced whole on every exchange and refresh.
func newTokenRecord(tokens truid.TokenResponse, now time.Time) *session.TokenRecord {
	return &session.TokenRecord{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		ExpiresAt:    now.Add(time.Duration(tokens.ExpiresIn) * time.Second),
	}
}

// keyedMutex hands out one mutex per key and reaps entries once the
// last holder releases, keeping the map bounded by in-flight refreshes.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refLock
}

type refLock struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() keyedMutex {
	return keyedMutex{locks: make(map[string]*refLock)}
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &refLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()

	return func() {
		l.mu.Unlock()

		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
