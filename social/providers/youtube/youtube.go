package youtube

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goliatone/flaresync"
	"github.com/goliatone/flaresync/social"
	"golang.org/x/oauth2"
)

const (
	defaultAuthURL     = "https://accounts.google.com/o/oauth2/v2/auth"
	defaultTokenURL    = "https://oauth2.googleapis.com/token"
	defaultRevokeURL   = "https://oauth2.googleapis.com/revoke"
	defaultChannelsURL = "https://www.googleapis.com/youtube/v3/channels"

	scopeReadOnly = "https://www.googleapis.com/auth/youtube.readonly"
)

// Config holds YouTube (Google) OAuth configuration.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Scopes       []string

	AuthURL     string
	TokenURL    string
	RevokeURL   string
	ChannelsURL string

	HTTPClient *http.Client
}

// DefaultScopes returns the default YouTube scopes.
func DefaultScopes() []string {
	return []string{scopeReadOnly}
}

// Provider implements social.PlatformAdapter for YouTube.
type Provider struct {
	config     Config
	httpClient *http.Client
}

// New creates a new YouTube provider.
func New(cfg Config) *Provider {
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = DefaultScopes()
	}
	if cfg.AuthURL == "" {
		cfg.AuthURL = defaultAuthURL
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = defaultTokenURL
	}
	if cfg.RevokeURL == "" {
		cfg.RevokeURL = defaultRevokeURL
	}
	if cfg.ChannelsURL == "" {
		cfg.ChannelsURL = defaultChannelsURL
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	return &Provider{
		config:     cfg,
		httpClient: client,
	}
}

// Platform implements social.PlatformAdapter.
func (p *Provider) Platform() flaresync.Platform {
	return flaresync.PlatformYouTube
}

// Configured implements social.Configurable.
func (p *Provider) Configured() bool {
	return p.config.ClientID != "" && p.config.ClientSecret != ""
}

// AuthCodeURL implements social.PlatformAdapter. Offline access and a
// forced consent prompt are always requested so a refresh token is issued.
func (p *Provider) AuthCodeURL(state string, opts ...social.AuthCodeOption) string {
	cfg := social.ApplyAuthCodeOptions(p.config.Scopes, opts...)

	oc := p.oauthConfig(cfg.RedirectURI)
	oc.Scopes = cfg.Scopes

	params := []oauth2.AuthCodeOption{
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("include_granted_scopes", "true"),
		oauth2.SetAuthURLParam("platform", p.Platform().String()),
	}
	if cfg.Prompt != "" {
		params = append(params, oauth2.SetAuthURLParam("prompt", cfg.Prompt))
	} else {
		params = append(params, oauth2.ApprovalForce)
	}
	if cfg.CodeChallenge != "" {
		params = append(params,
			oauth2.SetAuthURLParam("code_challenge", cfg.CodeChallenge),
			oauth2.SetAuthURLParam("code_challenge_method", social.CodeChallengeMethod),
		)
	}

	return oc.AuthCodeURL(state, params...)
}

// Exchange implements social.PlatformAdapter.
func (p *Provider) Exchange(ctx context.Context, code string, opts ...social.ExchangeOption) (*social.Token, error) {
	cfg := social.ApplyExchangeOptions(opts...)
	return social.ExchangeWithConfig(ctx, p.Platform(), p.oauthConfig(""), p.httpClient, code, cfg)
}

// FetchProfile implements social.PlatformAdapter.
func (p *Provider) FetchProfile(ctx context.Context, token *social.Token) (*social.PlatformProfile, error) {
	if token == nil || token.AccessToken == "" {
		return nil, providerError("profile", 0, "missing_access_token", "missing access token", nil)
	}

	params := url.Values{
		"part": {"snippet,statistics"},
		"mine": {"true"},
	}
	req, err := social.NewAPIRequest(ctx, http.MethodGet, p.config.ChannelsURL+"?"+params.Encode(), token.AccessToken, nil)
	if err != nil {
		return nil, err
	}

	var resp channelListResponse
	if err := social.DoJSON(p.httpClient, p.Platform(), "profile", req, &resp); err != nil {
		return nil, err
	}
	if len(resp.Items) == 0 {
		return nil, providerError("profile", http.StatusOK, "channel_not_found", "no youtube channel found for this account", nil)
	}

	return mapProfile(&resp.Items[0]), nil
}

// Revoke implements social.Revoker. Revoking either token revokes the grant.
func (p *Provider) Revoke(ctx context.Context, token *social.Token) error {
	if token == nil {
		return nil
	}
	value := token.RefreshToken
	if value == "" {
		value = token.AccessToken
	}
	if value == "" {
		return nil
	}

	form := url.Values{"token": {value}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.RevokeURL, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return providerError("revoke", 0, "", "", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
		return providerError("revoke", resp.StatusCode, "", social.APIErrorMessage(body, "youtube revoke failed"), nil)
	}
	return nil
}

func (p *Provider) oauthConfig(redirectURI string) *oauth2.Config {
	if redirectURI == "" {
		redirectURI = p.config.RedirectURI
	}
	return &oauth2.Config{
		ClientID:     p.config.ClientID,
		ClientSecret: p.config.ClientSecret,
		RedirectURL:  redirectURI,
		Scopes:       p.config.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   p.config.AuthURL,
			TokenURL:  p.config.TokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

func providerError(operation string, status int, code, description string, err error) *social.ProviderError {
	return &social.ProviderError{
		Platform:    flaresync.PlatformYouTube.String(),
		Operation:   operation,
		Status:      status,
		Code:        code,
		Description: description,
		Err:         err,
	}
}
