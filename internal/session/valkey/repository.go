// Package sessionvalkey provides the valkey-backed session repository.
// It is the substitution point for deployments with more than one
// replica: sessions and pending authorization contexts are shared, and
// authorization consumption stays atomic via GETDEL.
package sessionvalkey

import (
	"context"
	"errors"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/truid-app/client-integration/internal/session"
)

const (
	objectTypeSession       ObjectType = "session"
	objectTypeAuthorization ObjectType = "authorization"
)

var (
	ErrGetSession    = errors.New("getting session from store")
	ErrStoreSession  = errors.New("setting session into storage")
	ErrDeleteSession = errors.New("deleting session from storage")
	ErrStoreAuth     = errors.New("setting authorization context into storage")
	ErrConsumeAuth   = errors.New("consuming authorization context from store")
)

type Repository struct {
	store *store
}

var _ session.Repository = (*Repository)(nil)

func NewRepository(valkeyClient valkey.Client, prefix string) *Repository {
	return &Repository{
		store: newStore(valkeyClient, prefix),
	}
}

func (r *Repository) LoadSession(ctx context.Context, sessionID string) (session.Session, error) {
	var s session.Session
	if err := r.store.Get(ctx, objectTypeSession, sessionID, &s); err != nil {
		return session.Session{}, errors.Join(ErrGetSession, err)
	}

	return s, nil
}

func (r *Repository) StoreSession(ctx context.Context, s session.Session) error {
	if err := r.store.Set(ctx, objectTypeSession, s.ID, s, time.Until(s.Expiry)); err != nil {
		return errors.Join(ErrStoreSession, err)
	}

	return nil
}

func (r *Repository) DeleteSession(ctx context.Context, sessionID string) error {
	if err := r.store.Destroy(ctx, objectTypeSession, sessionID); err != nil {
		return errors.Join(ErrDeleteSession, err)
	}

	return nil
}

func (r *Repository) StoreAuthorization(ctx context.Context, authCtx session.AuthorizationContext) error {
	if err := r.store.Set(ctx, objectTypeAuthorization, authCtx.SessionID, authCtx, time.Until(authCtx.Expiry)); err != nil {
		return errors.Join(ErrStoreAuth, err)
	}

	return nil
}

func (r *Repository) ConsumeAuthorization(ctx context.Context, sessionID string) (session.AuthorizationContext, error) {
	var authCtx session.AuthorizationContext
	if err := r.store.GetDel(ctx, objectTypeAuthorization, sessionID, &authCtx); err != nil {
		return session.AuthorizationContext{}, errors.Join(ErrConsumeAuth, err)
	}

	return authCtx, nil
}
