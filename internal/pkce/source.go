package pkce

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"math/big"
)

const MethodS256 = "S256"

// Byte lengths before encoding, per RFC 6749 section 10.12 (state)
// and RFC 7636 section 4.1 (code verifier).
const (
	stateEntropyBytes    = 20
	verifierEntropyBytes = 32
)

type PKCE struct {
	Verifier  string
	Challenge string
	Method    string
}

type Source struct{}

func (p Source) randBytes(n int) []byte {
	b := make([]byte, n)
	_, _ = rand.Read(b)

	return b
}

func (p Source) randString(n int) string {
	const letters = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz-"

	ret := make([]byte, n)
	for i := 0; i < n; i++ {
		num, _ := rand.Int(rand.Reader, big.NewInt(int64(len(letters))))
		ret[i] = letters[num.Int64()]
	}

	return string(ret)
}

// PKCE generates a fresh verifier/challenge pair. The challenge is
// computed over the encoded verifier string, as that is the exact value
// sent back to the token endpoint (RFC 7636 section 4.2).
func (p Source) PKCE() PKCE {
	verifier := base64.RawURLEncoding.EncodeToString(p.randBytes(verifierEntropyBytes))

	return PKCE{
		Verifier:  verifier,
		Challenge: Challenge(verifier),
		Method:    MethodS256,
	}
}

// Challenge derives the S256 code challenge for a verifier.
func Challenge(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))

	return base64.RawURLEncoding.EncodeToString(sum[:])
}

func (p Source) State() string {
	return base64.RawURLEncoding.EncodeToString(p.randBytes(stateEntropyBytes))
}

func (p Source) SessionID() string {
	return p.randString(32) // Entropy E = L * log2(63) = 32 * log2(63) = 191.3 bits
}
