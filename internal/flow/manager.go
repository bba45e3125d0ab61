// Package flow implements the Truid authorization flows: signup, login
// session, and document signing. It owns the protocol state machine —
// PKCE/state issuance, one-time callback validation, token exchange and
// refresh — while the server package only maps results to HTTP.
package flow

import (
	"crypto/sha256"
	"encoding/base64"
	"net/url"
	"time"

	"github.com/truid-app/client-integration/internal/config"
	"github.com/truid-app/client-integration/internal/pkce"
	"github.com/truid-app/client-integration/internal/session"
	"github.com/truid-app/client-integration/internal/signature"
	"github.com/truid-app/client-integration/internal/truid"
)

const (
	// Scope requested from Truid for all flows.
	scope = "truid.app/data-point/email"

	// EmailClaim is the claim type fetched from the presentation
	// endpoint after signup and login.
	EmailClaim = "truid.app/claim/email/v1"

	// DocumentPath is where this backend serves the signable document.
	DocumentPath = "/documents/Agreement.pdf"
)

// Kind selects which Truid authorization flow to run. Each kind has its
// own provider endpoint and callback.
type Kind int

const (
	KindSignup Kind = iota
	KindLogin
	KindSign
)

func (k Kind) CallbackPath() string {
	switch k {
	case KindSignup:
		return "/truid/v1/complete-signup"
	case KindLogin:
		return "/truid/v1/complete-login"
	default:
		return "/truid/v1/complete-sign"
	}
}

type Manager struct {
	sessions session.Repository
	truid    *truid.Client
	verifier *signature.Verifier
	pkce     pkce.Source

	clientID      string
	publicBaseURL string

	signupEndpoint string
	loginEndpoint  string
	signEndpoint   string

	flowDuration time.Duration

	document            []byte
	documentDigest      string
	documentContentType string
	userMessage         string

	refreshLocks keyedMutex
}

// NewManager wires the flow manager. The document bytes are fixed at
// startup; their digest is what gets bound into sign requests.
func NewManager(
	cfg *config.Config,
	sessions session.Repository,
	client *truid.Client,
	verifier *signature.Verifier,
	document []byte,
) *Manager {
	digest := sha256.Sum256(document)

	return &Manager{
		sessions:            sessions,
		truid:               client,
		verifier:            verifier,
		clientID:            cfg.Truid.ClientID,
		publicBaseURL:       cfg.Web.PublicBaseURL,
		signupEndpoint:      cfg.Truid.SignupEndpoint,
		loginEndpoint:       cfg.Truid.LoginEndpoint,
		signEndpoint:        cfg.Truid.SignEndpoint,
		flowDuration:        cfg.Session.Duration,
		document:            document,
		documentDigest:      base64.RawURLEncoding.EncodeToString(digest[:]),
		documentContentType: cfg.Document.ContentType,
		userMessage:         cfg.Document.UserMessage,
		refreshLocks:        newKeyedMutex(),
	}
}

// Document returns the signable document and its content type.
func (m *Manager) Document() ([]byte, string) {
	return m.document, m.documentContentType
}

// DocumentURI is the public URI the sign request and the signature's
// sigD descriptor reference.
func (m *Manager) DocumentURI() string {
	return m.publicBaseURL + DocumentPath
}

func (m *Manager) UserMessage() string {
	return m.userMessage
}

func (m *Manager) endpoint(kind Kind) string {
	switch kind {
	case KindSignup:
		return m.signupEndpoint
	case KindLogin:
		return m.loginEndpoint
	default:
		return m.signEndpoint
	}
}

func (m *Manager) redirectURI(kind Kind) string {
	return m.publicBaseURL + kind.CallbackPath()
}

// authorizationParams assembles the front-channel parameters for a
// flow. The client secret is never among them; it only travels in
// back-channel POST bodies.
func (m *Manager) authorizationParams(kind Kind, state string, p pkce.PKCE) url.Values {
	params := url.Values{}
	params.Set("response_type", "code")
	params.Set("client_id", m.clientID)
	params.Set("scope", scope)
	params.Set("redirect_uri", m.redirectURI(kind))
	params.Set("state", state)
	params.Set("code_challenge", p.Challenge)
	params.Set("code_challenge_method", p.Method)

	if kind == KindSign {
		params.Set("user_message", m.userMessage)
		params.Set("data_object_id", m.DocumentURI())
		params.Set("data_object_digest", m.documentDigest)
		params.Set("data_object_digest_algorithm", "S256")
		params.Set("data_object_b64", "false")
		params.Set("data_object_content_type", m.documentContentType)
		params.Set("signature_profile", "aes_jades_baseline_b-b")
		params.Set("jws_packaging", "detached")
		params.Set("jws_serialization", "compact")
	}

	return params
}
