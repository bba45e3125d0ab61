package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfig = `
application:
  name: truid-backend
http:
  address: ":9090"
truid:
  clientID: client-1
  clientSecret: secret-1
  signupEndpoint: https://api.truid.app/oauth2/v1/authorize/confirm-signup
  loginEndpoint: https://api.truid.app/oauth2/v1/authorize/login-session
  signEndpoint: https://api.truid.app/oauth2/v1/authorize/sign
  tokenEndpoint: https://api.truid.app/oauth2/v1/token
  presentationEndpoint: https://api.truid.app/exchange/v1/presentation
  signatureEndpoint: https://api.truid.app/exchange/v1/signature
  trustAnchors: ["-----BEGIN CERTIFICATE-----\nMIIBhTCCASugAwIBAgIBATAKBggqhkjO\n-----END CERTIFICATE-----\n"]
session:
  csrfSecret: 0123456789abcdef0123456789abcdef
web:
  publicBaseURL: https://example.com
  signFailure: https://example.com/sign/failure.html
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, testConfig))
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTP.Address)
	assert.Equal(t, "client-1", cfg.Truid.ClientID)
	assert.Equal(t, "https://api.truid.app/oauth2/v1/token", cfg.Truid.TokenEndpoint)

	t.Run("defaults are applied", func(t *testing.T) {
		assert.Equal(t, 5*time.Second, cfg.HTTP.ShutdownTimeout)
		assert.Equal(t, 12*time.Hour, cfg.Session.Duration)
		assert.Equal(t, "application/pdf", cfg.Document.ContentType)
		assert.Equal(t, "Please sign this document", cfg.Document.UserMessage)
		assert.True(t, cfg.Session.Cookie.Secure)
		assert.True(t, cfg.Session.Cookie.HTTPOnly)
		assert.Equal(t, CookieSameSiteLax, cfg.Session.Cookie.SameSite)
	})
}

func TestLoad_HTTPBaseURLDisablesSecureCookies(t *testing.T) {
	httpCfg := strings.ReplaceAll(testConfig, "publicBaseURL: https://example.com", "publicBaseURL: http://localhost:8080")

	cfg, err := Load(writeConfig(t, httpCfg))
	require.NoError(t, err)
	assert.False(t, cfg.Session.Cookie.Secure)
	assert.False(t, cfg.Session.CSRFCookie.Secure)
}

func TestLoad_EnvOverridesSecret(t *testing.T) {
	t.Setenv("TRUID_CLIENT_SECRET", "from-env")

	cfg, err := Load(writeConfig(t, testConfig))
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Truid.ClientSecret)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		old  string
		new  string
	}{
		{
			name: "missing client id",
			old:  "clientID: client-1",
			new:  `clientID: ""`,
		},
		{
			name: "missing token endpoint",
			old:  "tokenEndpoint: https://api.truid.app/oauth2/v1/token",
			new:  `tokenEndpoint: ""`,
		},
		{
			name: "short csrf secret",
			old:  "csrfSecret: 0123456789abcdef0123456789abcdef",
			new:  "csrfSecret: short",
		},
		{
			name: "missing public base url",
			old:  "publicBaseURL: https://example.com",
			new:  `publicBaseURL: ""`,
		},
		{
			name: "sign flow without trust anchors",
			old:  `trustAnchors: ["-----BEGIN CERTIFICATE-----\nMIIBhTCCASugAwIBAgIBATAKBggqhkjO\n-----END CERTIFICATE-----\n"]`,
			new:  "trustAnchors: []",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, strings.ReplaceAll(testConfig, tt.old, tt.new)))
			assert.Error(t, err)
		})
	}
}
