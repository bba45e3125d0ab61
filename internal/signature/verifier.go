// Package signature verifies detached JAdES baseline-B signatures as
// issued by the Truid signature endpoint: a compact JWS whose payload
// is absent and whose protected header binds the signed document by
// URI and digest (ETSI TS 119 182-1, ObjectIdByURIHash mechanism).
package signature

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/go-jose/go-jose/v4"

	"github.com/truid-app/client-integration/internal/serviceerr"
	"github.com/truid-app/client-integration/internal/trust"
)

// mechanismObjectIdByURIHash identifies the sigD mechanism where the
// detached object is referenced by URI plus digest.
const mechanismObjectIdByURIHash = "http://uri.etsi.org/19182/ObjectIdByURIHash"

// userMessageHeader is the Truid header claim carrying the text shown
// to the user when they approved the signature.
const userMessageHeader = "truid.app/user_message/v1"

// maxSignatureAge bounds the provider's signing-session lifetime. It is
// not a clock-skew tolerance: a signature older than this indicates a
// replayed or stockpiled token.
const maxSignatureAge = time.Hour

type Verifier struct {
	anchors     *trust.AnchorSet
	documentURI string
	userMessage string
}

// NewVerifier binds the verifier to the document URI the signature must
// reference and the user message it must carry.
func NewVerifier(anchors *trust.AnchorSet, documentURI, userMessage string) *Verifier {
	return &Verifier{
		anchors:     anchors,
		documentURI: documentURI,
		userMessage: userMessage,
	}
}

// protectedHeader is the subset of the JWS protected header the
// verifier inspects beyond what go-jose exposes. sigD and sigT are
// JAdES extensions; go-jose treats them as opaque.
type protectedHeader struct {
	Algorithm   string          `json:"alg"`
	Critical    []string        `json:"crit"`
	SigT        string          `json:"sigT"`
	SigD        *sigDescriptor  `json:"sigD"`
	UserMessage json.RawMessage `json:"truid.app/user_message/v1"`
}

// sigDescriptor is the JAdES detached-signature descriptor.
type sigDescriptor struct {
	MechanismID string   `json:"mId"`
	Pars        []string `json:"pars"`
	HashM       string   `json:"hashM"`
	HashV       []string `json:"hashV"`
}

// Verify checks the detached JWS against the document bytes, the trust
// anchors, and the expected user message, evaluated at now. Every
// failure returns a Forbidden error with code invalid_signature; the
// reasons are distinct per failing step and intended for logs.
func (v *Verifier) Verify(jws string, document []byte, now time.Time) error {
	parsed, err := jose.ParseSigned(jws, []jose.SignatureAlgorithm{jose.ES256})
	if err != nil {
		return serviceerr.InvalidSignature("JWS is not a signed compact JWS", err)
	}
	if len(parsed.Signatures) != 1 {
		return serviceerr.InvalidSignature("JWS must carry exactly one signature", nil)
	}

	// Path validation runs at verification time, not signing time.
	// Revocation is disabled: the provider does not publish CRL/OCSP
	// endpoints yet.
	chains, err := parsed.Signatures[0].Header.Certificates(x509.VerifyOptions{
		Roots:       v.anchors.Pool(),
		CurrentTime: now,
		KeyUsages:   []x509.ExtKeyUsage{x509.ExtKeyUsageAny},
	})
	if err != nil || len(chains) == 0 || len(chains[0]) == 0 {
		return serviceerr.InvalidSignature("invalid certificate chain", err)
	}
	leaf := chains[0][0]

	publicKey, ok := leaf.PublicKey.(*ecdsa.PublicKey)
	if !ok {
		return serviceerr.InvalidSignature("expected EC key", nil)
	}

	header, err := decodeProtectedHeader(jws)
	if err != nil {
		return serviceerr.InvalidSignature("malformed protected header", err)
	}

	// Mirror of the restricted verifier in the reference setup: only
	// the JAdES extensions (and b64, RFC 7797) may be critical.
	for _, name := range header.Critical {
		switch name {
		case "sigD", "sigT", "b64":
		default:
			return serviceerr.InvalidSignature(fmt.Sprintf("unsupported critical header %q", name), nil)
		}
	}

	if err := verifyES256(jws, publicKey); err != nil {
		return err
	}

	if err := v.verifySigD(header.SigD, document); err != nil {
		return err
	}

	var userMessage string
	if header.UserMessage != nil {
		if err := json.Unmarshal(header.UserMessage, &userMessage); err != nil {
			return serviceerr.InvalidSignature("user message is not a string", err)
		}
	}
	if userMessage != v.userMessage {
		return serviceerr.InvalidSignature("user message does not match", nil)
	}

	return verifySigT(header.SigT, now)
}

func decodeProtectedHeader(jws string) (*protectedHeader, error) {
	headerPart, _, _ := strings.Cut(jws, ".")

	raw, err := base64.RawURLEncoding.DecodeString(headerPart)
	if err != nil {
		return nil, fmt.Errorf("decoding protected header: %w", err)
	}

	var header protectedHeader
	if err := json.Unmarshal(raw, &header); err != nil {
		return nil, fmt.Errorf("parsing protected header: %w", err)
	}

	return &header, nil
}

// verifyES256 checks the raw R||S signature over the JWS signing input.
// go-jose cannot do this step itself: it refuses any critical header
// other than b64, and sigD/sigT must be critical in a JAdES signature.
func verifyES256(jws string, publicKey *ecdsa.PublicKey) error {
	parts := strings.Split(jws, ".")
	if len(parts) != 3 {
		return serviceerr.InvalidSignature("JWS is not in compact serialization", nil)
	}

	sig, err := base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil {
		return serviceerr.InvalidSignature("decoding signature", err)
	}
	if len(sig) != 64 {
		return serviceerr.InvalidSignature("unexpected ES256 signature length", nil)
	}

	signingInput := parts[0] + "." + parts[1]
	digest := sha256.Sum256([]byte(signingInput))

	r := new(big.Int).SetBytes(sig[:32])
	s := new(big.Int).SetBytes(sig[32:])
	if !ecdsa.Verify(publicKey, digest[:], r, s) {
		return serviceerr.InvalidSignature("signature mismatch", nil)
	}

	return nil
}

func (v *Verifier) verifySigD(sigD *sigDescriptor, document []byte) error {
	if sigD == nil {
		return serviceerr.InvalidSignature("missing sigD descriptor", nil)
	}
	if sigD.MechanismID != mechanismObjectIdByURIHash {
		return serviceerr.InvalidSignature("mId does not match", nil)
	}
	if len(sigD.Pars) == 0 || sigD.Pars[0] != v.documentURI {
		return serviceerr.InvalidSignature("referenced object does not match", nil)
	}
	if sigD.HashM != "S256" {
		return serviceerr.InvalidSignature("hashM does not match", nil)
	}

	digest := sha256.Sum256(document)
	expected := base64.RawURLEncoding.EncodeToString(digest[:])
	if len(sigD.HashV) == 0 || sigD.HashV[0] != expected {
		return serviceerr.InvalidSignature("payload digest does not match", nil)
	}

	return nil
}

func verifySigT(value string, now time.Time) error {
	if value == "" {
		return serviceerr.InvalidSignature("missing sigT", nil)
	}

	sigT, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return serviceerr.InvalidSignature("sigT is not a valid timestamp", err)
	}

	if sigT.After(now) {
		return serviceerr.InvalidSignature("sigT is in the future", nil)
	}
	if sigT.Before(now.Add(-maxSignatureAge)) {
		return serviceerr.InvalidSignature("sigT is too old", nil)
	}

	return nil
}
