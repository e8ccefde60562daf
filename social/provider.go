package social

import (
	"context"
	"time"

	"github.com/goliatone/flaresync"
)

// PlatformAdapter captures one platform's OAuth and metrics quirks.
type PlatformAdapter interface {
	// Platform returns the platform identifier.
	Platform() flaresync.Platform

	// AuthCodeURL returns the URL to redirect users for authorization.
	// Every URL carries the platform query parameter.
	AuthCodeURL(state string, opts ...AuthCodeOption) string

	// Exchange trades an authorization code for tokens.
	Exchange(ctx context.Context, code string, opts ...ExchangeOption) (*Token, error)

	// FetchProfile loads the account profile and current metrics.
	FetchProfile(ctx context.Context, token *Token) (*PlatformProfile, error)
}

// Revoker is implemented by adapters that can revoke issued tokens.
type Revoker interface {
	Revoke(ctx context.Context, token *Token) error
}

// Configurable is implemented by adapters that can report missing client settings.
type Configurable interface {
	Configured() bool
}

// AuthCodeConfig is the resolved set of authorization URL options.
type AuthCodeConfig struct {
	Scopes              []string
	CodeChallenge       string
	CodeChallengeMethod string
	Prompt              string
	RedirectURI         string
}

// AuthCodeOption adjusts an authorization URL.
type AuthCodeOption func(*AuthCodeConfig)

// WithPKCE adds an S256 or plain code challenge.
func WithPKCE(codeChallenge, method string) AuthCodeOption {
	return func(c *AuthCodeConfig) {
		c.CodeChallenge, c.CodeChallengeMethod = codeChallenge, method
	}
}

// WithPrompt sets the prompt parameter. YouTube uses "consent" to force a
// refresh token on reconnect.
func WithPrompt(prompt string) AuthCodeOption {
	return func(c *AuthCodeConfig) { c.Prompt = prompt }
}

// WithRedirectURI overrides the configured redirect URI.
func WithRedirectURI(uri string) AuthCodeOption {
	return func(c *AuthCodeConfig) { c.RedirectURI = uri }
}

// ApplyAuthCodeOptions resolves opts over the adapter's default scopes.
func ApplyAuthCodeOptions(scopes []string, opts ...AuthCodeOption) AuthCodeConfig {
	cfg := AuthCodeConfig{Scopes: append([]string(nil), scopes...)}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// ExchangeConfig is the resolved set of token exchange options.
type ExchangeConfig struct {
	CodeVerifier string
	RedirectURI  string
}

// ExchangeOption adjusts a token exchange.
type ExchangeOption func(*ExchangeConfig)

// WithCodeVerifier sends the PKCE verifier with the exchange.
func WithCodeVerifier(verifier string) ExchangeOption {
	return func(c *ExchangeConfig) { c.CodeVerifier = verifier }
}

// WithExchangeRedirectURI overrides the redirect URI sent with the exchange.
// It must match the one used for the authorization request.
func WithExchangeRedirectURI(uri string) ExchangeOption {
	return func(c *ExchangeConfig) { c.RedirectURI = uri }
}

// ApplyExchangeOptions resolves opts.
func ApplyExchangeOptions(opts ...ExchangeOption) ExchangeConfig {
	var cfg ExchangeConfig
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// Token represents an OAuth2 token response.
type Token struct {
	AccessToken  string
	TokenType    string
	RefreshToken string
	ExpiresAt    time.Time
	Scopes       []string
	Raw          map[string]any
}

// PlatformProfile is the normalized account and metrics snapshot returned by
// a provider.
type PlatformProfile struct {
	Platform       flaresync.Platform
	PlatformUserID string
	Username       string
	DisplayName    string
	ProfileURL     string
	AvatarURL      string
	Stats          flaresync.ProfileStats
	Raw            map[string]any
}

// EngagementRate returns interactions per post as a percentage of followers.
func EngagementRate(interactions, posts, followers int64) float64 {
	if posts <= 0 || followers <= 0 {
		return 0
	}
	rate := float64(interactions) / float64(posts) / float64(followers) * 100
	return float64(int64(rate*100+0.5)) / 100
}
