package pkce

import (
	"crypto/sha256"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSource_PKCE(t *testing.T) {
	p := Source{}
	pkce := p.PKCE()
	assert.NotEmpty(t, pkce.Verifier, "Empty pkce verifier")
	assert.NotEmpty(t, pkce.Challenge, "Empty pkce challenge")
	assert.Equal(t, MethodS256, pkce.Method, "Unexpected PKCE method")

	t.Run("challenge is base64url(SHA-256(verifier))", func(t *testing.T) {
		sum := sha256.Sum256([]byte(pkce.Verifier))
		assert.Equal(t, base64.RawURLEncoding.EncodeToString(sum[:]), pkce.Challenge)
	})

	t.Run("challenge is exactly 43 characters", func(t *testing.T) {
		assert.Len(t, pkce.Challenge, 43)
	})

	t.Run("verifier encodes 32 bytes of entropy", func(t *testing.T) {
		raw, err := base64.RawURLEncoding.DecodeString(pkce.Verifier)
		assert.NoError(t, err)
		assert.Len(t, raw, 32)
	})

	t.Run("challenge reproduces deterministically", func(t *testing.T) {
		assert.Equal(t, pkce.Challenge, Challenge(pkce.Verifier))
	})
}

func TestSource_State(t *testing.T) {
	p := Source{}
	state := p.State()
	assert.NotEmpty(t, state, "Empty state generated")

	t.Run("state encodes 20 bytes of entropy", func(t *testing.T) {
		raw, err := base64.RawURLEncoding.DecodeString(state)
		assert.NoError(t, err)
		assert.Len(t, raw, 20)
	})

	t.Run("states are unique", func(t *testing.T) {
		assert.NotEqual(t, state, p.State())
	})
}

func TestSource_SessionID(t *testing.T) {
	p := Source{}
	id := p.SessionID()
	assert.Len(t, id, 32)
	assert.NotEqual(t, id, p.SessionID())
}
