// Package config defines the necessary types to configure the application.
// An example config file config.yaml is provided in the repository.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/goccy/go-yaml"
)

type Config struct {
	Application Application `yaml:"application"`
	Logger      Logger      `yaml:"logger"`
	HTTP        HTTPServer  `yaml:"http"`
	ValKey      ValKey      `yaml:"valkey"`
	Truid       Truid       `yaml:"truid"`
	Session     Session     `yaml:"session"`
	Web         Web         `yaml:"web"`
	Document    Document    `yaml:"document"`
}

type Application struct {
	Name string `yaml:"name"`
}

type Logger struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type HTTPServer struct {
	Address         string        `yaml:"address"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// ValKey configures the session store. An empty host selects the
// in-process store, which does not survive a restart and must not be
// used with more than one replica.
type ValKey struct {
	Host     string `yaml:"host"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Prefix   string `yaml:"prefix"`
}

// Truid holds the OAuth2 client registration and the provider
// endpoints. The client secret is only ever sent in the body of
// back-channel POSTs, never in a URL.
type Truid struct {
	ClientID     string `yaml:"clientID"`
	ClientSecret string `yaml:"clientSecret"`

	SignupEndpoint       string `yaml:"signupEndpoint"`
	LoginEndpoint        string `yaml:"loginEndpoint"`
	SignEndpoint         string `yaml:"signEndpoint"`
	TokenEndpoint        string `yaml:"tokenEndpoint"`
	PAREndpoint          string `yaml:"parEndpoint"`
	PresentationEndpoint string `yaml:"presentationEndpoint"`
	SignatureEndpoint    string `yaml:"signatureEndpoint"`

	// TrustAnchors is a list of PEM-encoded root certificates used for
	// signature certificate-chain validation.
	TrustAnchors []string `yaml:"trustAnchors"`
}

type Session struct {
	Duration   time.Duration  `yaml:"duration"`
	CSRFSecret string         `yaml:"csrfSecret"`
	Cookie     CookieTemplate `yaml:"cookie"`
	CSRFCookie CookieTemplate `yaml:"csrfCookie"`
}

// Web holds the public base URL of this backend and the front-end pages
// the completion endpoints redirect browsers to.
type Web struct {
	PublicBaseURL string `yaml:"publicBaseURL"`

	SignupSuccess string `yaml:"signupSuccess"`
	SignupFailure string `yaml:"signupFailure"`
	LoginSuccess  string `yaml:"loginSuccess"`
	LoginFailure  string `yaml:"loginFailure"`
	SignSuccess   string `yaml:"signSuccess"`
	SignFailure   string `yaml:"signFailure"`
}

// Document describes the single document offered for signing.
type Document struct {
	Path        string `yaml:"path"`
	ContentType string `yaml:"contentType"`
	UserMessage string `yaml:"userMessage"`
}

// Load reads the YAML config file, applies defaults and environment
// overrides for secrets, and validates the result.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyDefaults()
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Application.Name == "" {
		c.Application.Name = "truid-backend"
	}
	if c.Logger.Level == "" {
		c.Logger.Level = "info"
	}
	if c.Logger.Format == "" {
		c.Logger.Format = "json"
	}
	if c.HTTP.Address == "" {
		c.HTTP.Address = ":8080"
	}
	if c.HTTP.ShutdownTimeout == 0 {
		c.HTTP.ShutdownTimeout = 5 * time.Second
	}
	if c.Session.Duration == 0 {
		c.Session.Duration = 12 * time.Hour
	}
	if c.Session.Cookie.Name == "" {
		c.Session.Cookie = CookieTemplate{
			Name:     "truid-session",
			Path:     "/",
			Secure:   true,
			HTTPOnly: true,
			SameSite: CookieSameSiteLax,
		}
	}
	if c.Session.CSRFCookie.Name == "" {
		c.Session.CSRFCookie = CookieTemplate{
			Name:     "truid-csrf",
			Path:     "/",
			Secure:   true,
			SameSite: CookieSameSiteStrict,
		}
	}
	if c.Document.ContentType == "" {
		c.Document.ContentType = "application/pdf"
	}
	if c.Document.UserMessage == "" {
		c.Document.UserMessage = "Please sign this document"
	}

	// Cookies cannot be Secure on a plain-http deployment or the
	// browser will drop them. Test deployments only; Truid does not
	// accept http redirect URIs in production.
	if u, err := url.Parse(c.Web.PublicBaseURL); err == nil && u.Scheme == "http" {
		c.Session.Cookie.Secure = false
		c.Session.CSRFCookie.Secure = false
	}
}

func (c *Config) applyEnv() {
	if v := os.Getenv("TRUID_CLIENT_SECRET"); v != "" {
		c.Truid.ClientSecret = v
	}
	if v := os.Getenv("TRUID_CSRF_SECRET"); v != "" {
		c.Session.CSRFSecret = v
	}
}

func (c *Config) Validate() error {
	if c.Truid.ClientID == "" {
		return errors.New("truid.clientID is required")
	}
	if c.Truid.ClientSecret == "" {
		return errors.New("truid.clientSecret is required (or TRUID_CLIENT_SECRET)")
	}
	if c.Truid.TokenEndpoint == "" {
		return errors.New("truid.tokenEndpoint is required")
	}
	if c.Web.PublicBaseURL == "" {
		return errors.New("web.publicBaseURL is required")
	}
	if c.Truid.SignEndpoint != "" && len(c.Truid.TrustAnchors) == 0 {
		return errors.New("truid.trustAnchors is required when the sign flow is configured")
	}
	if _, err := url.Parse(c.Web.PublicBaseURL); err != nil {
		return fmt.Errorf("parsing web.publicBaseURL: %w", err)
	}
	if len(c.Session.CSRFSecret) < 32 {
		return errors.New("session.csrfSecret must be at least 32 bytes")
	}

	return nil
}
