// Package truid is the outbound client for the Truid identity and
// signing provider: token exchange, pushed authorization requests, the
// presentation endpoint, and signature retrieval.
//
// Provider-side HTTP failures are collapsed into a Forbidden
// access_denied domain error; the transport-level detail is preserved
// in the error for logs but is not a category the flows care about.
package truid

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	slogctx "github.com/veqryn/slog-context"

	"github.com/truid-app/client-integration/internal/config"
	"github.com/truid-app/client-integration/internal/serviceerr"
)

const contentTypeJOSE = "application/jose"

type Client struct {
	http *http.Client

	clientID     string
	clientSecret string

	tokenEndpoint        string
	parEndpoint          string
	presentationEndpoint string
	signatureEndpoint    string
}

func NewClient(cfg *config.Truid, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Client{
		http:                 httpClient,
		clientID:             cfg.ClientID,
		clientSecret:         cfg.ClientSecret,
		tokenEndpoint:        cfg.TokenEndpoint,
		parEndpoint:          cfg.PAREndpoint,
		presentationEndpoint: cfg.PresentationEndpoint,
		signatureEndpoint:    cfg.SignatureEndpoint,
	}
}

// SupportsPAR reports whether a pushed-authorization-request endpoint
// is configured.
func (c *Client) SupportsPAR() bool {
	return c.parEndpoint != ""
}

// ExchangeCode redeems an authorization code for tokens. The PKCE
// verifier proves this client initiated the flow.
func (c *Client) ExchangeCode(ctx context.Context, code, redirectURI, codeVerifier string) (TokenResponse, error) {
	data := url.Values{}
	data.Set("grant_type", "authorization_code")
	data.Set("code", code)
	data.Set("redirect_uri", redirectURI)
	data.Set("client_id", c.clientID)
	data.Set("client_secret", c.clientSecret)
	data.Set("code_verifier", codeVerifier)

	var tokens TokenResponse
	if err := c.postForm(ctx, c.tokenEndpoint, data, &tokens); err != nil {
		return TokenResponse{}, fmt.Errorf("exchanging code for tokens: %w", err)
	}

	return tokens, nil
}

// Refresh redeems a refresh token for a fresh token pair. Callers must
// serialize calls per refresh token: redeeming the same token twice
// concurrently makes the provider revoke the whole grant.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (TokenResponse, error) {
	data := url.Values{}
	data.Set("grant_type", "refresh_token")
	data.Set("refresh_token", refreshToken)
	data.Set("client_id", c.clientID)
	data.Set("client_secret", c.clientSecret)

	var tokens TokenResponse
	if err := c.postForm(ctx, c.tokenEndpoint, data, &tokens); err != nil {
		return TokenResponse{}, fmt.Errorf("refreshing tokens: %w", err)
	}

	return tokens, nil
}

// PushAuthorizationRequest POSTs the authorization parameters plus
// client credentials to the PAR endpoint. The returned request_uri is
// what gets embedded in the front-channel URL, keeping the parameters
// off the user agent.
func (c *Client) PushAuthorizationRequest(ctx context.Context, params url.Values) (PARResponse, error) {
	data := url.Values{}
	for key, values := range params {
		data[key] = values
	}
	data.Set("client_id", c.clientID)
	data.Set("client_secret", c.clientSecret)

	var par PARResponse
	if err := c.postForm(ctx, c.parEndpoint, data, &par); err != nil {
		return PARResponse{}, fmt.Errorf("pushing authorization request: %w", err)
	}

	return par, nil
}

// Presentation fetches the user data for the given claim types.
func (c *Client) Presentation(ctx context.Context, accessToken, claims string) (PresentationResponse, error) {
	u, err := url.Parse(c.presentationEndpoint)
	if err != nil {
		return PresentationResponse{}, fmt.Errorf("parsing presentation endpoint: %w", err)
	}

	q := u.Query()
	q.Set("claims", claims)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return PresentationResponse{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return PresentationResponse{}, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(ctx, resp); err != nil {
		return PresentationResponse{}, err
	}

	var presentation PresentationResponse
	if err := json.NewDecoder(resp.Body).Decode(&presentation); err != nil {
		return PresentationResponse{}, fmt.Errorf("decoding presentation response: %w", err)
	}

	return presentation, nil
}

// Signature fetches the detached compact JWS for the signature the
// access token was issued for.
func (c *Client) Signature(ctx context.Context, accessToken string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.signatureEndpoint, nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", contentTypeJOSE)
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(ctx, resp); err != nil {
		return "", err
	}

	jws, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading signature response: %w", err)
	}

	return strings.TrimSpace(string(jws)), nil
}

func (c *Client) postForm(ctx context.Context, endpoint string, data url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(data.Encode()))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(ctx, resp); err != nil {
		return err
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}

	return nil
}

func checkStatus(ctx context.Context, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	slogctx.Warn(ctx, "Provider call failed",
		"url", resp.Request.URL.Redacted(),
		"status", resp.StatusCode,
		"body", string(body),
	)

	return serviceerr.NewForbidden(
		serviceerr.CodeAccessDenied,
		fmt.Sprintf("provider returned status %d", resp.StatusCode),
		nil,
	)
}
