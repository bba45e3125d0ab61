// Package sigtest mints certificate chains and detached JAdES
// signatures for tests.
package sigtest

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type CA struct {
	Cert *x509.Certificate
	Key  *ecdsa.PrivateKey
}

func NewCA(t *testing.T, notBefore, notAfter time.Time) *CA {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	template := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "Test Root CA"},
		NotBefore:             notBefore,
		NotAfter:              notAfter,
		IsCA:                  true,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature,
		BasicConstraintsValid: true,
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	require.NoError(t, err)

	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)

	return &CA{Cert: cert, Key: key}
}

// IssueLeaf issues an EC signing certificate from the CA.
func (ca *CA) IssueLeaf(t *testing.T, notBefore, notAfter time.Time) (*x509.Certificate, *ecdsa.PrivateKey) {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	template := &x509.Certificate{
		SerialNumber: big.NewInt(2),
		Subject:      pkix.Name{CommonName: "Test Signer"},
		NotBefore:    notBefore,
		NotAfter:     notAfter,
		KeyUsage:     x509.KeyUsageDigitalSignature,
	}

	der, err := x509.CreateCertificate(rand.Reader, template, ca.Cert, &key.PublicKey, ca.Key)
	require.NoError(t, err)

	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)

	return cert, key
}

func CertPEM(cert *x509.Certificate) string {
	return string(pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: cert.Raw}))
}

// Template describes the JAdES signature to mint. Zero values are
// filled with the correct ones; override a field to build a negative
// fixture.
type Template struct {
	DocumentURI string
	Document    []byte
	UserMessage string
	SignedAt    time.Time

	MechanismID string
	HashM       string
	Digest      string
	Critical    []string
}

// Sign builds a detached compact JAdES JWS (empty payload, ES256, x5c
// chain in the protected header).
func Sign(t *testing.T, tmpl Template, key *ecdsa.PrivateKey, chain ...*x509.Certificate) string {
	t.Helper()

	if tmpl.MechanismID == "" {
		tmpl.MechanismID = "http://uri.etsi.org/19182/ObjectIdByURIHash"
	}
	if tmpl.HashM == "" {
		tmpl.HashM = "S256"
	}
	if tmpl.Digest == "" {
		digest := sha256.Sum256(tmpl.Document)
		tmpl.Digest = base64.RawURLEncoding.EncodeToString(digest[:])
	}
	if tmpl.Critical == nil {
		tmpl.Critical = []string{"sigT", "sigD"}
	}

	x5c := make([]string, 0, len(chain))
	for _, cert := range chain {
		x5c = append(x5c, base64.StdEncoding.EncodeToString(cert.Raw))
	}

	header := map[string]any{
		"alg":  "ES256",
		"crit": tmpl.Critical,
		"x5c":  x5c,
		"sigT": tmpl.SignedAt.UTC().Format(time.RFC3339),
		"sigD": map[string]any{
			"mId":   tmpl.MechanismID,
			"pars":  []string{tmpl.DocumentURI},
			"hashM": tmpl.HashM,
			"hashV": []string{tmpl.Digest},
		},
		"truid.app/user_message/v1": tmpl.UserMessage,
	}

	headerJSON, err := json.Marshal(header)
	require.NoError(t, err)

	headerPart := base64.RawURLEncoding.EncodeToString(headerJSON)
	signingInput := headerPart + "."

	digest := sha256.Sum256([]byte(signingInput))
	r, s, err := ecdsa.Sign(rand.Reader, key, digest[:])
	require.NoError(t, err)

	sig := make([]byte, 64)
	r.FillBytes(sig[:32])
	s.FillBytes(sig[32:])

	return signingInput + "." + base64.RawURLEncoding.EncodeToString(sig)
}
