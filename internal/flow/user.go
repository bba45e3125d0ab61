package flow

import (
	"context"

	"github.com/truid-app/client-integration/internal/session"
	"github.com/truid-app/client-integration/internal/truid"
)

// UserInfo returns the stored user data for an authenticated session,
// refreshing the token pair first when needed. The data itself comes
// from the session record, not from a live provider call.
func (m *Manager) UserInfo(ctx context.Context, sessionID string) (*session.UserInfo, error) {
	s, err := m.EnsureFresh(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	return s.UserInfo, nil
}

// ConfirmAuthenticated checks that the session holds usable
// credentials, refreshing them when stale. It is the guard in front of
// state-changing endpoints.
func (m *Manager) ConfirmAuthenticated(ctx context.Context, sessionID string) error {
	_, err := m.EnsureFresh(ctx, sessionID)

	return err
}

// Presentation fetches the user data live from the provider with the
// session's access token.
func (m *Manager) Presentation(ctx context.Context, sessionID string) (truid.PresentationResponse, error) {
	s, err := m.EnsureFresh(ctx, sessionID)
	if err != nil {
		return truid.PresentationResponse{}, err
	}

	return m.truid.Presentation(ctx, s.Token.AccessToken, EmailClaim)
}

func newUserInfo(presentation truid.PresentationResponse) *session.UserInfo {
	claims := make([]session.Claim, 0, len(presentation.Claims))
	for _, claim := range presentation.Claims {
		claims = append(claims, session.Claim{Type: claim.Type, Value: claim.Value})
	}

	return &session.UserInfo{Subject: presentation.Sub, Claims: claims}
}
