package truid

// TokenResponse is the JSON body of a successful token-endpoint call,
// for both the authorization_code and refresh_token grants.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	TokenType    string `json:"token_type"`
	Scope        string `json:"scope"`
}

// PARResponse is the JSON body returned by the pushed-authorization-
// request endpoint. The request_uri replaces the raw authorization
// parameters in the front-channel URL.
type PARResponse struct {
	RequestURI string `json:"request_uri"`
	ExpiresIn  int64  `json:"expires_in"`
}

// PresentationResponse carries the subject and the claims the user
// agreed to share.
type PresentationResponse struct {
	Sub    string              `json:"sub"`
	Claims []PresentationClaim `json:"claims"`
}

type PresentationClaim struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}
