package tiktok

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/goliatone/flaresync"
	"github.com/goliatone/flaresync/social"
)

const (
	defaultAuthURL   = "https://www.tiktok.com/v2/auth/authorize/"
	defaultTokenURL  = "https://open.tiktokapis.com/v2/oauth/token/"
	defaultRevokeURL = "https://open.tiktokapis.com/v2/oauth/revoke/"
	defaultUserURL   = "https://open.tiktokapis.com/v2/user/info/"

	userFields = "open_id,union_id,avatar_url,display_name,username,profile_deep_link,follower_count,following_count,likes_count,video_count"
)

// Config holds TikTok OAuth configuration. TikTok calls the client id a
// client key.
type Config struct {
	ClientKey    string
	ClientSecret string
	RedirectURI  string
	Scopes       []string

	AuthURL   string
	TokenURL  string
	RevokeURL string
	UserURL   string

	HTTPClient *http.Client
}

// DefaultScopes returns the default TikTok scopes.
func DefaultScopes() []string {
	return []string{"user.info.basic", "user.info.profile", "user.info.stats"}
}

// Provider implements social.PlatformAdapter for TikTok.
type Provider struct {
	config     Config
	httpClient *http.Client
}

// New creates a new TikTok provider.
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
	if cfg.UserURL == "" {
		cfg.UserURL = defaultUserURL
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
	return flaresync.PlatformTikTok
}

// Configured implements social.Configurable.
func (p *Provider) Configured() bool {
	return p.config.ClientKey != "" && p.config.ClientSecret != ""
}

// AuthCodeURL implements social.PlatformAdapter.
func (p *Provider) AuthCodeURL(state string, opts ...social.AuthCodeOption) string {
	cfg := social.ApplyAuthCodeOptions(p.config.Scopes, opts...)

	params := url.Values{
		"client_key":    {p.config.ClientKey},
		"redirect_uri":  {p.redirectURI(cfg.RedirectURI)},
		"response_type": {"code"},
		"scope":         {strings.Join(cfg.Scopes, ",")},
		"state":         {state},
		"platform":      {p.Platform().String()},
	}
	if cfg.CodeChallenge != "" {
		params.Set("code_challenge", cfg.CodeChallenge)
		params.Set("code_challenge_method", social.CodeChallengeMethod)
	}

	return p.config.AuthURL + "?" + params.Encode()
}

// Exchange implements social.PlatformAdapter.
func (p *Provider) Exchange(ctx context.Context, code string, opts ...social.ExchangeOption) (*social.Token, error) {
	cfg := social.ApplyExchangeOptions(opts...)

	data := url.Values{
		"client_key":    {p.config.ClientKey},
		"client_secret": {p.config.ClientSecret},
		"code":          {code},
		"grant_type":    {"authorization_code"},
		"redirect_uri":  {p.redirectURI(cfg.RedirectURI)},
	}
	if cfg.CodeVerifier != "" {
		data.Set("code_verifier", cfg.CodeVerifier)
	}

	status, body, err := p.postForm(ctx, p.config.TokenURL, data)
	if err != nil {
		return nil, providerError("exchange", status, "", "", err, nil)
	}

	var tokenResp tiktokTokenResponse
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return nil, providerError("exchange", status, "invalid_response", "failed to decode token response", err, nil)
	}

	if status != http.StatusOK || tokenResp.Error != "" {
		return nil, providerError("exchange", status, tokenResp.Error, tokenResp.ErrorDesc, nil, tokenResp.errorMetadata())
	}
	if tokenResp.AccessToken == "" {
		return nil, providerError("exchange", status, "missing_access_token", "missing access token", nil, nil)
	}

	return &social.Token{
		AccessToken:  tokenResp.AccessToken,
		TokenType:    tokenResp.TokenType,
		RefreshToken: tokenResp.RefreshToken,
		ExpiresAt:    social.ExpiresAt(tokenResp.ExpiresIn),
		Scopes:       social.SplitScopes(tokenResp.Scope),
		Raw: map[string]any{
			"open_id":            tokenResp.OpenID,
			"refresh_expires_in": tokenResp.RefreshExpiresIn,
		},
	}, nil
}

// FetchProfile implements social.PlatformAdapter.
func (p *Provider) FetchProfile(ctx context.Context, token *social.Token) (*social.PlatformProfile, error) {
	if token == nil || token.AccessToken == "" {
		return nil, providerError("profile", 0, "missing_access_token", "missing access token", nil, nil)
	}

	req, err := social.NewAPIRequest(ctx, http.MethodGet, p.config.UserURL+"?fields="+url.QueryEscape(userFields), token.AccessToken, nil)
	if err != nil {
		return nil, err
	}

	var resp tiktokUserResponse
	if err := social.DoJSON(p.httpClient, p.Platform(), "profile", req, &resp); err != nil {
		return nil, err
	}
	if resp.Error.Code != "" && resp.Error.Code != "ok" {
		return nil, providerError("profile", http.StatusOK, resp.Error.Code, resp.Error.Message, nil, map[string]any{"log_id": resp.Error.LogID})
	}

	return mapProfile(&resp.Data.User), nil
}

// Revoke implements social.Revoker.
func (p *Provider) Revoke(ctx context.Context, token *social.Token) error {
	if token == nil || token.AccessToken == "" {
		return nil
	}

	data := url.Values{
		"client_key":    {p.config.ClientKey},
		"client_secret": {p.config.ClientSecret},
		"token":         {token.AccessToken},
	}

	status, body, err := p.postForm(ctx, p.config.RevokeURL, data)
	if err != nil {
		return providerError("revoke", status, "", "", err, nil)
	}
	if status != http.StatusOK {
		return providerError("revoke", status, "", social.APIErrorMessage(body, "tiktok revoke failed"), nil, nil)
	}
	return nil
}

func (p *Provider) postForm(ctx context.Context, endpoint string, data url.Values) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(data.Encode()))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, social.MaxResponseBytes))
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, body, nil
}

func (p *Provider) redirectURI(override string) string {
	if override != "" {
		return override
	}
	return p.config.RedirectURI
}

type tiktokTokenResponse struct {
	AccessToken      string `json:"access_token"`
	ExpiresIn        int64  `json:"expires_in"`
	OpenID           string `json:"open_id"`
	RefreshToken     string `json:"refresh_token"`
	RefreshExpiresIn int64  `json:"refresh_expires_in"`
	Scope            string `json:"scope"`
	TokenType        string `json:"token_type"`
	Error            string `json:"error"`
	ErrorDesc        string `json:"error_description"`
	LogID            string `json:"log_id"`
}

func (r tiktokTokenResponse) errorMetadata() map[string]any {
	meta := map[string]any{}
	if r.Error != "" {
		meta["error"] = r.Error
	}
	if r.ErrorDesc != "" {
		meta["error_description"] = r.ErrorDesc
	}
	if r.LogID != "" {
		meta["log_id"] = r.LogID
	}
	return meta
}

func providerError(operation string, status int, code, description string, err error, raw map[string]any) *social.ProviderError {
	return &social.ProviderError{
		Platform:    flaresync.PlatformTikTok.String(),
		Operation:   operation,
		Status:      status,
		Code:        code,
		Description: description,
		Err:         err,
		Raw:         raw,
	}
}
