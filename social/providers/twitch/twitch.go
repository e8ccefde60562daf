package twitch

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
	defaultAuthURL   = "https://id.twitch.tv/oauth2/authorize"
	defaultTokenURL  = "https://id.twitch.tv/oauth2/token"
	defaultRevokeURL = "https://id.twitch.tv/oauth2/revoke"
	defaultAPIURL    = "https://api.twitch.tv/helix"
)

// Config holds Twitch OAuth configuration.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Scopes       []string

	AuthURL   string
	TokenURL  string
	RevokeURL string
	APIURL    string

	HTTPClient *http.Client
}

// DefaultScopes returns the default Twitch scopes.
func DefaultScopes() []string {
	return []string{"user:read:email", "moderator:read:followers"}
}

// Provider implements social.PlatformAdapter for Twitch.
type Provider struct {
	config     Config
	httpClient *http.Client
}

// New creates a new Twitch provider.
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
	if cfg.APIURL == "" {
		cfg.APIURL = defaultAPIURL
	}
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")

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
	return flaresync.PlatformTwitch
}

// Configured implements social.Configurable.
func (p *Provider) Configured() bool {
	return p.config.ClientID != "" && p.config.ClientSecret != ""
}

// AuthCodeURL implements social.PlatformAdapter. force_verify makes Twitch
// show the consent screen even when the app was already authorized.
func (p *Provider) AuthCodeURL(state string, opts ...social.AuthCodeOption) string {
	cfg := social.ApplyAuthCodeOptions(p.config.Scopes, opts...)

	oc := p.oauthConfig(cfg.RedirectURI)
	oc.Scopes = cfg.Scopes

	return oc.AuthCodeURL(state,
		oauth2.SetAuthURLParam("force_verify", "true"),
		oauth2.SetAuthURLParam("platform", p.Platform().String()),
	)
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

	var users helixUsersResponse
	if err := p.get(ctx, p.config.APIURL+"/users", token.AccessToken, "profile", &users); err != nil {
		return nil, err
	}
	if len(users.Data) == 0 {
		return nil, providerError("profile", http.StatusOK, "user_not_found", "twitch user not returned", nil)
	}
	user := users.Data[0]

	var followers helixFollowersResponse
	endpoint := p.config.APIURL + "/channels/followers?" + url.Values{"broadcaster_id": {user.ID}}.Encode()
	if err := p.get(ctx, endpoint, token.AccessToken, "followers", &followers); err != nil {
		return nil, err
	}

	return mapProfile(&user, followers.Total), nil
}

// Revoke implements social.Revoker.
func (p *Provider) Revoke(ctx context.Context, token *social.Token) error {
	if token == nil || token.AccessToken == "" {
		return nil
	}

	form := url.Values{
		"client_id": {p.config.ClientID},
		"token":     {token.AccessToken},
	}
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
		return providerError("revoke", resp.StatusCode, "", social.APIErrorMessage(body, "twitch revoke failed"), nil)
	}
	return nil
}

// get calls a Helix endpoint. Helix requires the Client-Id header on every call.
func (p *Provider) get(ctx context.Context, endpoint, accessToken, operation string, out any) error {
	req, err := social.NewAPIRequest(ctx, http.MethodGet, endpoint, accessToken, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Client-Id", p.config.ClientID)
	return social.DoJSON(p.httpClient, p.Platform(), operation, req, out)
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
		Platform:    flaresync.PlatformTwitch.String(),
		Operation:   operation,
		Status:      status,
		Code:        code,
		Description: description,
		Err:         err,
	}
}
