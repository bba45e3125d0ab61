// Package sessionmock provides an in-memory session.Repository for
// tests, with options to pre-seed state and inject errors.
package sessionmock

import (
	"context"
	"sync"

	"github.com/truid-app/client-integration/internal/serviceerr"
	"github.com/truid-app/client-integration/internal/session"
)

type RepositoryOption func(*Repository)

type Repository struct {
	mu             sync.Mutex
	sessions       map[string]session.Session
	authorizations map[string]session.AuthorizationContext

	loadSessionErr, storeSessionErr, deleteSessionErr error
	storeAuthErr, consumeAuthErr                      error
}

func WithSession(s session.Session) RepositoryOption {
	return func(r *Repository) { r.sessions[s.ID] = s }
}

func WithAuthorization(authCtx session.AuthorizationContext) RepositoryOption {
	return func(r *Repository) { r.authorizations[authCtx.SessionID] = authCtx }
}

func WithLoadSessionError(err error) RepositoryOption {
	return func(r *Repository) { r.loadSessionErr = err }
}

func WithStoreSessionError(err error) RepositoryOption {
	return func(r *Repository) { r.storeSessionErr = err }
}

func WithDeleteSessionError(err error) RepositoryOption {
	return func(r *Repository) { r.deleteSessionErr = err }
}

func WithStoreAuthorizationError(err error) RepositoryOption {
	return func(r *Repository) { r.storeAuthErr = err }
}

func WithConsumeAuthorizationError(err error) RepositoryOption {
	return func(r *Repository) { r.consumeAuthErr = err }
}

var _ session.Repository = (*Repository)(nil)

func NewRepository(opts ...RepositoryOption) *Repository {
	r := &Repository{
		sessions:       make(map[string]session.Session),
		authorizations: make(map[string]session.AuthorizationContext),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

func (r *Repository) LoadSession(_ context.Context, sessionID string) (session.Session, error) {
	if r.loadSessionErr != nil {
		return session.Session{}, r.loadSessionErr
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[sessionID]
	if !ok {
		return session.Session{}, serviceerr.ErrNotFound
	}

	return s, nil
}

func (r *Repository) StoreSession(_ context.Context, s session.Session) error {
	if r.storeSessionErr != nil {
		return r.storeSessionErr
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessions[s.ID] = s

	return nil
}

func (r *Repository) DeleteSession(_ context.Context, sessionID string) error {
	if r.deleteSessionErr != nil {
		return r.deleteSessionErr
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sessions, sessionID)

	return nil
}

func (r *Repository) StoreAuthorization(_ context.Context, authCtx session.AuthorizationContext) error {
	if r.storeAuthErr != nil {
		return r.storeAuthErr
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.authorizations[authCtx.SessionID] = authCtx

	return nil
}

func (r *Repository) ConsumeAuthorization(_ context.Context, sessionID string) (session.AuthorizationContext, error) {
	if r.consumeAuthErr != nil {
		return session.AuthorizationContext{}, r.consumeAuthErr
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	authCtx, ok := r.authorizations[sessionID]
	if !ok {
		return session.AuthorizationContext{}, serviceerr.ErrNotFound
	}
	delete(r.authorizations, sessionID)

	return authCtx, nil
}

// Sessions exposes the stored sessions for assertions.
func (r *Repository) Sessions() map[string]session.Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]session.Session, len(r.sessions))
	for k, v := range r.sessions {
		out[k] = v
	}

	return out
}
