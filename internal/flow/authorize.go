package flow

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	slogctx "github.com/veqryn/slog-context"

	"github.com/truid-app/client-integration/internal/serviceerr"
	"github.com/truid-app/client-integration/internal/session"
)

// Start begins an authorization flow for the session and returns the
// provider URL to send the user agent to. Credentials from a previous
// run are dropped first; the pending state/verifier pair is stored
// keyed by session and bound to the caller's fingerprint.
func (m *Manager) Start(ctx context.Context, s session.Session, kind Kind, fingerprint string) (string, error) {
	if s.Token != nil || s.UserInfo != nil {
		s.Token = nil
		s.UserInfo = nil
		if err := m.sessions.StoreSession(ctx, s); err != nil {
			return "", fmt.Errorf("clearing previous credentials: %w", err)
		}
	}

	p := m.pkce.PKCE()
	state := m.pkce.State()

	err := m.sessions.StoreAuthorization(ctx, session.AuthorizationContext{
		SessionID:    s.ID,
		State:        state,
		CodeVerifier: p.Verifier,
		Fingerprint:  fingerprint,
		Expiry:       time.Now().Add(m.flowDuration),
	})
	if err != nil {
		return "", fmt.Errorf("storing authorization context: %w", err)
	}

	params := m.authorizationParams(kind, state, p)

	if m.truid.SupportsPAR() {
		par, err := m.truid.PushAuthorizationRequest(ctx, params)
		if err != nil {
			return "", err
		}

		pushed := url.Values{}
		pushed.Set("client_id", m.clientID)
		pushed.Set("request_uri", par.RequestURI)

		return m.endpoint(kind) + "?" + pushed.Encode(), nil
	}

	return m.endpoint(kind) + "?" + params.Encode(), nil
}

// Callback carries the query parameters the provider redirects back
// with. Either Code or Error is set.
type Callback struct {
	Code  string
	State string
	Error string
}

// consumeCallback validates the callback against the pending
// authorization context and removes it. The context is consumed before
// any comparison, so a second delivery of the same callback always
// fails regardless of its parameters.
func (m *Manager) consumeCallback(ctx context.Context, s session.Session, cb Callback, fingerprint string) (session.AuthorizationContext, error) {
	if cb.Error != "" {
		// The provider already rejected the flow; there is nothing to
		// redeem and the pending context expires on its own.
		return session.AuthorizationContext{}, serviceerr.NewForbidden(cb.Error, "authorization rejected upstream", nil)
	}

	authCtx, err := m.sessions.ConsumeAuthorization(ctx, s.ID)
	if errors.Is(err, serviceerr.ErrNotFound) {
		return session.AuthorizationContext{}, serviceerr.AccessDenied("no pending authorization for this session")
	}
	if err != nil {
		return session.AuthorizationContext{}, fmt.Errorf("consuming authorization context: %w", err)
	}

	if cb.State == "" || cb.State != authCtx.State {
		return session.AuthorizationContext{}, serviceerr.AccessDenied("state does not match the expected value")
	}

	if fingerprint != authCtx.Fingerprint {
		slogctx.Warn(ctx, "Client fingerprint changed during the authorization flow", "session_id", s.ID)

		return session.AuthorizationContext{}, serviceerr.AccessDenied("fingerprint does not match the one the flow started with")
	}

	return authCtx, nil
}

// CompleteAuthentication finishes a signup or login flow: it redeems
// the authorization code, fetches the user presentation, and stores the
// token record and user info on the session.
func (m *Manager) CompleteAuthentication(ctx context.Context, s session.Session, kind Kind, cb Callback, fingerprint string) error {
	authCtx, err := m.consumeCallback(ctx, s, cb, fingerprint)
	if err != nil {
		return err
	}

	tokens, err := m.truid.ExchangeCode(ctx, cb.Code, m.redirectURI(kind), authCtx.CodeVerifier)
	if err != nil {
		return err
	}

	presentation, err := m.truid.Presentation(ctx, tokens.AccessToken, EmailClaim)
	if err != nil {
		return err
	}

	s.Token = newTokenRecord(tokens, time.Now())
	s.UserInfo = newUserInfo(presentation)
	if err := m.sessions.StoreSession(ctx, s); err != nil {
		return fmt.Errorf("storing authenticated session: %w", err)
	}

	slogctx.Info(ctx, "Authorization flow completed", "session_id", s.ID)

	return nil
}

// CompleteSign finishes a signing flow: it redeems the authorization
// code, fetches the detached signature, and verifies it against the
// served document. The short-lived sign tokens are used once and not
// persisted.
func (m *Manager) CompleteSign(ctx context.Context, s session.Session, cb Callback, fingerprint string) error {
	if m.verifier == nil {
		return serviceerr.AccessDenied("signing is not configured")
	}

	authCtx, err := m.consumeCallback(ctx, s, cb, fingerprint)
	if err != nil {
		return err
	}

	tokens, err := m.truid.ExchangeCode(ctx, cb.Code, m.redirectURI(KindSign), authCtx.CodeVerifier)
	if err != nil {
		return err
	}

	jws, err := m.truid.Signature(ctx, tokens.AccessToken)
	if err != nil {
		return err
	}

	if err := m.verifier.Verify(jws, m.document, time.Now()); err != nil {
		return err
	}

	slogctx.Info(ctx, "Document signature verified", "session_id", s.ID)

	return nil
}
