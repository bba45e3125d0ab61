// Package sessionmemory provides the in-process session repository used
// by the reference deployment. State lives in a TTL-evicting cache and
// does not survive a restart; a production deployment with more than
// one replica must use the valkey repository instead so that all
// replicas observe the same token record.
package sessionmemory

import (
	"context"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/truid-app/client-integration/internal/serviceerr"
	"github.com/truid-app/client-integration/internal/session"
)

const (
	sessionKeyPrefix = "session:"
	authKeyPrefix    = "authorization:"
)

type Repository struct {
	cache *gocache.Cache

	// consumeMu makes ConsumeAuthorization a single atomic
	// read-and-remove with respect to concurrent callbacks.
	consumeMu sync.Mutex
}

var _ session.Repository = (*Repository)(nil)

func NewRepository(defaultTTL time.Duration) *Repository {
	return &Repository{
		cache: gocache.New(defaultTTL, 10*time.Minute),
	}
}

func (r *Repository) LoadSession(_ context.Context, sessionID string) (session.Session, error) {
	v, ok := r.cache.Get(sessionKeyPrefix + sessionID)
	if !ok {
		return session.Session{}, serviceerr.ErrNotFound
	}

	return v.(session.Session), nil
}

func (r *Repository) StoreSession(_ context.Context, s session.Session) error {
	r.cache.Set(sessionKeyPrefix+s.ID, s, time.Until(s.Expiry))

	return nil
}

func (r *Repository) DeleteSession(_ context.Context, sessionID string) error {
	r.cache.Delete(sessionKeyPrefix + sessionID)

	return nil
}

func (r *Repository) StoreAuthorization(_ context.Context, authCtx session.AuthorizationContext) error {
	r.cache.Set(authKeyPrefix+authCtx.SessionID, authCtx, time.Until(authCtx.Expiry))

	return nil
}

func (r *Repository) ConsumeAuthorization(_ context.Context, sessionID string) (session.AuthorizationContext, error) {
	r.consumeMu.Lock()
	defer r.consumeMu.Unlock()

	key := authKeyPrefix + sessionID
	v, ok := r.cache.Get(key)
	if !ok {
		return session.AuthorizationContext{}, serviceerr.ErrNotFound
	}
	r.cache.Delete(key)

	return v.(session.AuthorizationContext), nil
}
