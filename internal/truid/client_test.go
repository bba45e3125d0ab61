package truid_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/truid-app/client-integration/internal/config"
	"github.com/truid-app/client-integration/internal/serviceerr"
	"github.com/truid-app/client-integration/internal/truid"
)

func newClient(t *testing.T, handler http.Handler) *truid.Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return truid.NewClient(&config.Truid{
		ClientID:             "client-1",
		ClientSecret:         "secret-1",
		TokenEndpoint:        srv.URL + "/oauth2/v1/token",
		PAREndpoint:          srv.URL + "/oauth2/v1/par",
		PresentationEndpoint: srv.URL + "/exchange/v1/presentation",
		SignatureEndpoint:    srv.URL + "/exchange/v1/signature",
	}, srv.Client())
}

func TestClient_ExchangeCode(t *testing.T) {
	ctx := context.Background()

	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/oauth2/v1/token", r.URL.Path)
		require.NoError(t, r.ParseForm())

		assert.Empty(t, r.URL.RawQuery, "credentials must never travel in the URL")
		assert.Equal(t, "authorization_code", r.PostForm.Get("grant_type"))
		assert.Equal(t, "code-1", r.PostForm.Get("code"))
		assert.Equal(t, "https://example.com/truid/v1/complete-login", r.PostForm.Get("redirect_uri"))
		assert.Equal(t, "client-1", r.PostForm.Get("client_id"))
		assert.Equal(t, "secret-1", r.PostForm.Get("client_secret"))
		assert.Equal(t, "verifier-1", r.PostForm.Get("code_verifier"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"access-1","refresh_token":"refresh-1","expires_in":300,"token_type":"bearer","scope":"truid.app/data-point/email"}`))
	}))

	tokens, err := client.ExchangeCode(ctx, "code-1", "https://example.com/truid/v1/complete-login", "verifier-1")
	require.NoError(t, err)

	assert.Equal(t, "access-1", tokens.AccessToken)
	assert.Equal(t, "refresh-1", tokens.RefreshToken)
	assert.Equal(t, int64(300), tokens.ExpiresIn)
}

func TestClient_ExchangeCode_ProviderRejection(t *testing.T) {
	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":"invalid_grant"}`, http.StatusForbidden)
	}))

	_, err := client.ExchangeCode(context.Background(), "code-1", "https://example.com/cb", "verifier-1")
	require.Error(t, err)
	assert.Equal(t, serviceerr.CodeAccessDenied, serviceerr.CodeOf(err))
}

func TestClient_Refresh(t *testing.T) {
	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())

		assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
		assert.Equal(t, "refresh-1", r.PostForm.Get("refresh_token"))
		assert.Equal(t, "client-1", r.PostForm.Get("client_id"))
		assert.Equal(t, "secret-1", r.PostForm.Get("client_secret"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"access-2","refresh_token":"refresh-2","expires_in":300,"token_type":"bearer","scope":"truid.app/data-point/email"}`))
	}))

	tokens, err := client.Refresh(context.Background(), "refresh-1")
	require.NoError(t, err)
	assert.Equal(t, "access-2", tokens.AccessToken)
	assert.Equal(t, "refresh-2", tokens.RefreshToken)
}

func TestClient_PushAuthorizationRequest(t *testing.T) {
	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/oauth2/v1/par", r.URL.Path)
		require.NoError(t, r.ParseForm())

		assert.Equal(t, "code", r.PostForm.Get("response_type"))
		assert.Equal(t, "state-1", r.PostForm.Get("state"))
		assert.Equal(t, "client-1", r.PostForm.Get("client_id"))
		assert.Equal(t, "secret-1", r.PostForm.Get("client_secret"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"request_uri":"urn:ietf:params:oauth:request_uri:abc","expires_in":60}`))
	}))

	par, err := client.PushAuthorizationRequest(context.Background(), map[string][]string{
		"response_type": {"code"},
		"state":         {"state-1"},
	})
	require.NoError(t, err)
	assert.Equal(t, "urn:ietf:params:oauth:request_uri:abc", par.RequestURI)
	assert.Equal(t, int64(60), par.ExpiresIn)
}

func TestClient_Presentation(t *testing.T) {
	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/exchange/v1/presentation", r.URL.Path)

		assert.Equal(t, "truid.app/claim/email/v1", r.URL.Query().Get("claims"))
		assert.Equal(t, "Bearer access-1", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"sub":"user-1","claims":[{"type":"truid.app/claim/email/v1","value":"user@example.com"}]}`))
	}))

	presentation, err := client.Presentation(context.Background(), "access-1", "truid.app/claim/email/v1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", presentation.Sub)
	require.Len(t, presentation.Claims, 1)
	assert.Equal(t, "user@example.com", presentation.Claims[0].Value)
}

func TestClient_Signature(t *testing.T) {
	const jws = "eyJhbGciOiJFUzI1NiJ9..c2lnbmF0dXJl"

	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/exchange/v1/signature", r.URL.Path)

		assert.Equal(t, "application/jose", r.Header.Get("Accept"))
		assert.Equal(t, "Bearer access-1", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/jose")
		_, _ = w.Write([]byte(jws + "\n"))
	}))

	got, err := client.Signature(context.Background(), "access-1")
	require.NoError(t, err)
	assert.Equal(t, jws, got)
}

func TestClient_Signature_ProviderRejection(t *testing.T) {
	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusUnauthorized)
	}))

	_, err := client.Signature(context.Background(), "expired-token")
	require.Error(t, err)
	assert.Equal(t, serviceerr.CodeAccessDenied, serviceerr.CodeOf(err))
}
