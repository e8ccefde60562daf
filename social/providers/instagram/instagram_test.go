package instagram

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/goliatone/flaresync"
	"github.com/goliatone/flaresync/social"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProviderAuthCodeURL(t *testing.T) {
	provider := New(Config{
		ClientID:    "client-id",
		RedirectURI: "https://app.example/callback",
		Scopes:      []string{"instagram_business_basic", "instagram_business_manage_insights"},
	})

	authURL := provider.AuthCodeURL("state-token")

	parsed, err := url.Parse(authURL)
	require.NoError(t, err)
	assert.Equal(t, "www.instagram.com", parsed.Host)

	query := parsed.Query()
	assert.Equal(t, "client-id", query.Get("client_id"))
	assert.Equal(t, "https://app.example/callback", query.Get("redirect_uri"))
	assert.Equal(t, "code", query.Get("response_type"))
	assert.Equal(t, "state-token", query.Get("state"))
	assert.Equal(t, "instagram", query.Get("platform"))
	assert.Equal(t, "instagram_business_basic,instagram_business_manage_insights", query.Get("scope"))
}

func TestProviderConfigured(t *testing.T) {
	assert.False(t, New(Config{ClientID: "id"}).Configured())
	assert.True(t, New(Config{ClientID: "id", ClientSecret: "secret"}).Configured())
}

func TestProviderExchangeAndFetchProfile(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/oauth/access_token":
			assert.Equal(t, http.MethodPost, r.Method)
			body, err := io.ReadAll(r.Body)
			assert.NoError(t, err)
			values, err := url.ParseQuery(string(body))
			assert.NoError(t, err)
			assert.Equal(t, "client-id", values.Get("client_id"))
			assert.Equal(t, "client-secret", values.Get("client_secret"))
			assert.Equal(t, "auth-code", values.Get("code"))
			assert.Equal(t, "authorization_code", values.Get("grant_type"))
			assert.Equal(t, "https://app.example/callback", values.Get("redirect_uri"))

			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{
				"access_token": "ig-token",
				"user_id":      17841400000,
			})
		case "/me":
			assert.Equal(t, "ig-token", r.URL.Query().Get("access_token"))
			assert.Contains(t, r.URL.Query().Get("fields"), "followers_count")
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{
				"user_id":             "17841400000",
				"username":            "creator",
				"name":                "Creator",
				"followers_count":     1000,
				"follows_count":       10,
				"media_count":         2,
				"profile_picture_url": "https://cdn.example/p.png",
			})
		case "/me/media":
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{
				"data": []map[string]any{
					{"id": "1", "like_count": 60, "comments_count": 10},
					{"id": "2", "like_count": 25, "comments_count": 5},
				},
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	provider := New(Config{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURI:  "https://app.example/callback",
		TokenURL:     server.URL + "/oauth/access_token",
		UserURL:      server.URL + "/me",
		MediaURL:     server.URL + "/me/media",
	})

	token, err := provider.Exchange(context.Background(), "auth-code")
	require.NoError(t, err)
	assert.Equal(t, "ig-token", token.AccessToken)

	profile, err := provider.FetchProfile(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, flaresync.PlatformInstagram, profile.Platform)
	assert.Equal(t, "17841400000", profile.PlatformUserID)
	assert.Equal(t, "creator", profile.Username)
	assert.Equal(t, "https://www.instagram.com/creator", profile.ProfileURL)
	assert.Equal(t, int64(1000), profile.Stats.Followers)
	assert.Equal(t, int64(2), profile.Stats.Posts)
	assert.Equal(t, 5.0, profile.Stats.Engagement)
}

func TestProviderExchangeErrorNormalized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error":             "invalid_grant",
			"error_description": "code has expired",
		})
	}))
	defer server.Close()

	provider := New(Config{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		TokenURL:     server.URL,
	})

	_, err := provider.Exchange(context.Background(), "bad-code")
	require.Error(t, err)

	var perr *social.ProviderError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "instagram", perr.Platform)
	assert.Equal(t, "exchange", perr.Operation)
	assert.Equal(t, http.StatusBadRequest, perr.Status)
	assert.Equal(t, "invalid_grant", perr.Code)
}

func TestProviderFetchProfileUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"Invalid OAuth access token","type":"OAuthException","code":190}}`))
	}))
	defer server.Close()

	provider := New(Config{UserURL: server.URL})
	_, err := provider.FetchProfile(context.Background(), &social.Token{AccessToken: "expired"})

	var perr *social.ProviderError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "profile", perr.Operation)
	assert.Equal(t, "Invalid OAuth access token", perr.Description)
}
