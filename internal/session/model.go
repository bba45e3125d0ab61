package session

import "time"

// Session is the per-browser state. A session with a nil Token is
// unauthenticated.
type Session struct {
	ID       string       `json:"id"`
	Token    *TokenRecord `json:"token,omitempty"`
	UserInfo *UserInfo    `json:"userInfo,omitempty"`
	Expiry   time.Time    `json:"expiry"`
}

func (s *Session) Authenticated() bool {
	return s.Token != nil && s.Token.AccessToken != ""
}

// TokenRecord holds the provider credentials. It is always replaced as
// a whole, never mutated field by field.
type TokenRecord struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

func (t *TokenRecord) Stale(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// AuthorizationContext is the pending flow state between "authorization
// started" and "callback consumed". It is stored keyed by session ID
// and removed atomically on the first callback, so a replayed callback
// finds nothing.
type AuthorizationContext struct {
	SessionID    string    `json:"sessionId"`
	State        string    `json:"state"`
	CodeVerifier string    `json:"codeVerifier"`
	Fingerprint  string    `json:"fingerprint"`
	Expiry       time.Time `json:"expiry"`
}

// UserInfo mirrors the provider presentation response. It is written on
// a successful full authorization and never touched by a refresh.
type UserInfo struct {
	Subject string  `json:"sub"`
	Claims  []Claim `json:"claims"`
}

type Claim struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}
