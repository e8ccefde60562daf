package instagram

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goliatone/flaresync"
	"github.com/goliatone/flaresync/social"
	"golang.org/x/oauth2"
)

const (
	defaultAuthURL  = "https://www.instagram.com/oauth/authorize"
	defaultTokenURL = "https://api.instagram.com/oauth/access_token"
	defaultUserURL  = "https://graph.instagram.com/me"
	defaultMediaURL = "https://graph.instagram.com/me/media"

	userFields  = "user_id,username,name,account_type,profile_picture_url,followers_count,follows_count,media_count"
	mediaFields = "id,like_count,comments_count"
	mediaLimit  = 25
)

// Config holds Instagram OAuth configuration.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Scopes       []string

	AuthURL  string
	TokenURL string
	UserURL  string
	MediaURL string

	HTTPClient *http.Client
}

// DefaultScopes returns the default Instagram scopes.
func DefaultScopes() []string {
	return []string{"instagram_business_basic"}
}

// Provider implements social.PlatformAdapter for Instagram.
type Provider struct {
	config     Config
	httpClient *http.Client
}

// New creates a new Instagram provider.
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
	if cfg.UserURL == "" {
		cfg.UserURL = defaultUserURL
	}
	if cfg.MediaURL == "" {
		cfg.MediaURL = defaultMediaURL
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
	return flaresync.PlatformInstagram
}

// Configured implements social.Configurable.
func (p *Provider) Configured() bool {
	return p.config.ClientID != "" && p.config.ClientSecret != ""
}

// AuthCodeURL implements social.PlatformAdapter. Instagram expects comma
// separated scopes.
func (p *Provider) AuthCodeURL(state string, opts ...social.AuthCodeOption) string {
	cfg := social.ApplyAuthCodeOptions(p.config.Scopes, opts...)

	oc := p.oauthConfig(cfg.RedirectURI)
	return oc.AuthCodeURL(state,
		oauth2.SetAuthURLParam("scope", strings.Join(cfg.Scopes, ",")),
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

	var user instagramUser
	if err := p.get(ctx, p.config.UserURL, url.Values{"fields": {userFields}}, token.AccessToken, "profile", &user); err != nil {
		return nil, err
	}

	var media instagramMediaPage
	if user.MediaCount > 0 {
		params := url.Values{
			"fields": {mediaFields},
			"limit":  {fmt.Sprintf("%d", mediaLimit)},
		}
		if err := p.get(ctx, p.config.MediaURL, params, token.AccessToken, "media", &media); err != nil {
			return nil, err
		}
	}

	return mapProfile(&user, media.Data), nil
}

func (p *Provider) get(ctx context.Context, endpoint string, params url.Values, accessToken, operation string, out any) error {
	params.Set("access_token", accessToken)
	req, err := social.NewAPIRequest(ctx, http.MethodGet, endpoint+"?"+params.Encode(), "", nil)
	if err != nil {
		return err
	}
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
		Endpoint: oauth2.Endpoint{
			AuthURL:   p.config.AuthURL,
			TokenURL:  p.config.TokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

func providerError(operation string, status int, code, description string, err error) *social.ProviderError {
	return &social.ProviderError{
		Platform:    flaresync.PlatformInstagram.String(),
		Operation:   operation,
		Status:      status,
		Code:        code,
		Description: description,
		Err:         err,
	}
}
