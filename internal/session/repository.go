package session

import "context"

// Repository is the narrow persistence seam. The reference deployment
// uses the in-process implementation; multi-replica deployments
// substitute the valkey one. Lookups of unknown IDs return
// serviceerr.ErrNotFound.
type Repository interface {
	LoadSession(ctx context.Context, sessionID string) (Session, error)
	StoreSession(ctx context.Context, session Session) error
	DeleteSession(ctx context.Context, sessionID string) error

	StoreAuthorization(ctx context.Context, authCtx AuthorizationContext) error
	// ConsumeAuthorization atomically removes and returns the pending
	// authorization context for a session. At most one call per stored
	// context succeeds; this is what makes callback replay fail.
	ConsumeAuthorization(ctx context.Context, sessionID string) (AuthorizationContext, error)
}
