package signature_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/truid-app/client-integration/internal/serviceerr"
	"github.com/truid-app/client-integration/internal/signature"
	"github.com/truid-app/client-integration/internal/sigtest"
	"github.com/truid-app/client-integration/internal/trust"
)

const (
	documentURI = "https://example.com/documents/Agreement.pdf"
	userMessage = "Please sign this document"
)

var document = []byte("%PDF-1.4 test agreement")

type fixture struct {
	verifier *signature.Verifier
	jws      string
	now      time.Time
	sign     func(tmpl sigtest.Template) string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	now := time.Now()
	ca := sigtest.NewCA(t, now.Add(-24*time.Hour), now.Add(365*24*time.Hour))
	leaf, key := ca.IssueLeaf(t, now.Add(-time.Hour), now.Add(30*24*time.Hour))

	anchors, err := trust.NewAnchorSet([]string{sigtest.CertPEM(ca.Cert)})
	require.NoError(t, err)

	sign := func(tmpl sigtest.Template) string {
		return sigtest.Sign(t, tmpl, key, leaf, ca.Cert)
	}

	return &fixture{
		verifier: signature.NewVerifier(anchors, documentURI, userMessage),
		now:      now,
		sign:     sign,
		jws: sign(sigtest.Template{
			DocumentURI: documentURI,
			Document:    document,
			UserMessage: userMessage,
			SignedAt:    now.Add(-5 * time.Minute),
		}),
	}
}

func requireInvalidSignature(t *testing.T, err error) {
	t.Helper()

	require.Error(t, err)
	assert.Equal(t, serviceerr.CodeInvalidSignature, serviceerr.CodeOf(err))
}

func TestVerifier_Verify(t *testing.T) {
	f := newFixture(t)

	assert.NoError(t, f.verifier.Verify(f.jws, document, f.now))
}

func TestVerifier_Verify_ExpiredCertificate(t *testing.T) {
	f := newFixture(t)

	// Leaf validity is 30 days; at +40 days path validation must fail.
	err := f.verifier.Verify(f.jws, document, f.now.Add(40*24*time.Hour))
	requireInvalidSignature(t, err)
	assert.Contains(t, err.Error(), "invalid certificate chain")
}

func TestVerifier_Verify_UntrustedRoot(t *testing.T) {
	f := newFixture(t)

	otherCA := sigtest.NewCA(t, f.now.Add(-24*time.Hour), f.now.Add(365*24*time.Hour))
	anchors, err := trust.NewAnchorSet([]string{sigtest.CertPEM(otherCA.Cert)})
	require.NoError(t, err)

	verifier := signature.NewVerifier(anchors, documentURI, userMessage)
	err = verifier.Verify(f.jws, document, f.now)
	requireInvalidSignature(t, err)
	assert.Contains(t, err.Error(), "invalid certificate chain")
}

func TestVerifier_Verify_DocumentMutated(t *testing.T) {
	f := newFixture(t)

	mutated := append([]byte(nil), document...)
	mutated[0] ^= 0x01

	err := f.verifier.Verify(f.jws, mutated, f.now)
	requireInvalidSignature(t, err)
	assert.Contains(t, err.Error(), "payload digest does not match")
}

func TestVerifier_Verify_SigDMismatches(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name   string
		tmpl   sigtest.Template
		reason string
	}{
		{
			name: "wrong mechanism id",
			tmpl: sigtest.Template{
				DocumentURI: documentURI,
				Document:    document,
				UserMessage: userMessage,
				SignedAt:    f.now.Add(-5 * time.Minute),
				MechanismID: "http://uri.etsi.org/19182/ObjectIdByURI",
			},
			reason: "mId does not match",
		},
		{
			name: "wrong referenced object",
			tmpl: sigtest.Template{
				DocumentURI: "https://example.com/documents/Other.pdf",
				Document:    document,
				UserMessage: userMessage,
				SignedAt:    f.now.Add(-5 * time.Minute),
			},
			reason: "referenced object does not match",
		},
		{
			name: "wrong hash algorithm",
			tmpl: sigtest.Template{
				DocumentURI: documentURI,
				Document:    document,
				UserMessage: userMessage,
				SignedAt:    f.now.Add(-5 * time.Minute),
				HashM:       "S384",
			},
			reason: "hashM does not match",
		},
		{
			name: "wrong user message",
			tmpl: sigtest.Template{
				DocumentURI: documentURI,
				Document:    document,
				UserMessage: "Please sign something else",
				SignedAt:    f.now.Add(-5 * time.Minute),
			},
			reason: "user message does not match",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.verifier.Verify(f.sign(tt.tmpl), document, f.now)
			requireInvalidSignature(t, err)
			assert.Contains(t, err.Error(), tt.reason)
		})
	}
}

func TestVerifier_Verify_SigTWindow(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name     string
		signedAt time.Time
		reason   string
	}{
		{
			name:     "future timestamp",
			signedAt: f.now.Add(10 * time.Minute),
			reason:   "sigT is in the future",
		},
		{
			name:     "stale timestamp",
			signedAt: f.now.Add(-2 * time.Hour),
			reason:   "sigT is too old",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			jws := f.sign(sigtest.Template{
				DocumentURI: documentURI,
				Document:    document,
				UserMessage: userMessage,
				SignedAt:    tt.signedAt,
			})

			err := f.verifier.Verify(jws, document, f.now)
			requireInvalidSignature(t, err)
			assert.Contains(t, err.Error(), tt.reason)
		})
	}
}

func TestVerifier_Verify_UnsupportedCriticalHeader(t *testing.T) {
	f := newFixture(t)

	jws := f.sign(sigtest.Template{
		DocumentURI: documentURI,
		Document:    document,
		UserMessage: userMessage,
		SignedAt:    f.now.Add(-5 * time.Minute),
		Critical:    []string{"sigT", "sigD", "exp"},
	})

	err := f.verifier.Verify(jws, document, f.now)
	requireInvalidSignature(t, err)
	assert.Contains(t, err.Error(), "unsupported critical header")
}

func TestVerifier_Verify_TamperedSignature(t *testing.T) {
	f := newFixture(t)

	tampered := f.jws[:len(f.jws)-2] + "AA"

	err := f.verifier.Verify(tampered, document, f.now)
	requireInvalidSignature(t, err)
}

func TestVerifier_Verify_Garbage(t *testing.T) {
	f := newFixture(t)

	for _, jws := range []string{"", "not-a-jws", "a.b", "a.b.c.d"} {
		err := f.verifier.Verify(jws, document, f.now)
		requireInvalidSignature(t, err)
	}
}
