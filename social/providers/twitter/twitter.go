package twitter

import (
	"context"
	"fmt"
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
	defaultAuthURL   = "https://twitter.com/i/oauth2/authorize"
	defaultTokenURL  = "https://api.twitter.com/2/oauth2/token"
	defaultRevokeURL = "https://api.twitter.com/2/oauth2/revoke"
	defaultAPIURL    = "https://api.twitter.com/2"

	userFields  = "public_metrics,profile_image_url,name,username"
	tweetFields = "public_metrics"
	tweetLimit  = 10
)

// Config holds Twitter OAuth 2.0 configuration.
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

// DefaultScopes returns the default Twitter scopes.
func DefaultScopes() []string {
	return []string{"tweet.read", "users.read", "offline.access"}
}

// Provider implements social.PlatformAdapter for Twitter. Every
// authorization request must carry a PKCE challenge.
type Provider struct {
	config     Config
	httpClient *http.Client
}

// New creates a new Twitter provider.
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
	return flaresync.PlatformTwitter
}

// Configured implements social.Configurable.
func (p *Provider) Configured() bool {
	return p.config.ClientID != ""
}

// AuthCodeURL implements social.PlatformAdapter.
func (p *Provider) AuthCodeURL(state string, opts ...social.AuthCodeOption) string {
	cfg := social.ApplyAuthCodeOptions(p.config.Scopes, opts...)

	oc := p.oauthConfig(cfg.RedirectURI)
	oc.Scopes = cfg.Scopes

	params := []oauth2.AuthCodeOption{
		oauth2.SetAuthURLParam("platform", p.Platform().String()),
	}
	if cfg.CodeChallenge != "" {
		method := cfg.CodeChallengeMethod
		if method == "" {
			method = social.CodeChallengeMethod
		}
		params = append(params,
			oauth2.SetAuthURLParam("code_challenge", cfg.CodeChallenge),
			oauth2.SetAuthURLParam("code_challenge_method", method),
		)
	}

	return oc.AuthCodeURL(state, params...)
}

// Exchange implements social.PlatformAdapter.
func (p *Provider) Exchange(ctx context.Context, code string, opts ...social.ExchangeOption) (*social.Token, error) {
	cfg := social.ApplyExchangeOptions(opts...)
	if cfg.CodeVerifier == "" {
		return nil, providerError("exchange", 0, "missing_code_verifier", "twitter requires a pkce code verifier", nil)
	}
	return social.ExchangeWithConfig(ctx, p.Platform(), p.oauthConfig(""), p.httpClient, code, cfg)
}

// FetchProfile implements social.PlatformAdapter.
func (p *Provider) FetchProfile(ctx context.Context, token *social.Token) (*social.PlatformProfile, error) {
	if token == nil || token.AccessToken == "" {
		return nil, providerError("profile", 0, "missing_access_token", "missing access token", nil)
	}

	var me twitterUserResponse
	endpoint := p.config.APIURL + "/users/me?" + url.Values{"user.fields": {userFields}}.Encode()
	if err := p.get(ctx, endpoint, token.AccessToken, "profile", &me); err != nil {
		return nil, err
	}
	if me.Data.ID == "" {
		return nil, providerError("profile", http.StatusOK, "user_not_found", "twitter user not returned", nil)
	}

	var tweets twitterTweetsResponse
	if me.Data.PublicMetrics.TweetCount > 0 {
		params := url.Values{
			"tweet.fields": {tweetFields},
			"max_results":  {fmt.Sprintf("%d", tweetLimit)},
		}
		endpoint := fmt.Sprintf("%s/users/%s/tweets?%s", p.config.APIURL, url.PathEscape(me.Data.ID), params.Encode())
		if err := p.get(ctx, endpoint, token.AccessToken, "tweets", &tweets); err != nil {
			return nil, err
		}
	}

	return mapProfile(&me.Data, tweets.Data), nil
}

// Revoke implements social.Revoker.
func (p *Provider) Revoke(ctx context.Context, token *social.Token) error {
	if token == nil || token.AccessToken == "" {
		return nil
	}

	data := url.Values{
		"token":           {token.AccessToken},
		"token_type_hint": {"access_token"},
		"client_id":       {p.config.ClientID},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.RevokeURL, strings.NewReader(data.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if p.config.ClientSecret != "" {
		req.SetBasicAuth(p.config.ClientID, p.config.ClientSecret)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return providerError("revoke", 0, "", "", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
		return providerError("revoke", resp.StatusCode, "", social.APIErrorMessage(body, "twitter revoke failed"), nil)
	}
	return nil
}

func (p *Provider) get(ctx context.Context, endpoint, accessToken, operation string, out any) error {
	req, err := social.NewAPIRequest(ctx, http.MethodGet, endpoint, accessToken, nil)
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
		Scopes:       p.config.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   p.config.AuthURL,
			TokenURL:  p.config.TokenURL,
			AuthStyle: oauth2.AuthStyleInHeader,
		},
	}
}

func providerError(operation string, status int, code, description string, err error) *social.ProviderError {
	return &social.ProviderError{
		Platform:    flaresync.PlatformTwitter.String(),
		Operation:   operation,
		Status:      status,
		Code:        code,
		Description: description,
		Err:         err,
	}
}
