package social

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goliatone/flaresync"
	goerrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func TestDoJSONDecodesSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"42"}`))
	}))
	defer server.Close()

	req, err := NewAPIRequest(context.Background(), http.MethodGet, server.URL, "tok", nil)
	require.NoError(t, err)

	var out struct {
		ID string `json:"id"`
	}
	require.NoError(t, DoJSON(server.Client(), flaresync.PlatformTwitch, "profile", req, &out))
	assert.Equal(t, "42", out.ID)
}

func TestDoJSONMapsErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"token revoked"}}`))
	}))
	defer server.Close()

	req, err := NewAPIRequest(context.Background(), http.MethodGet, server.URL, "tok", nil)
	require.NoError(t, err)

	err = DoJSON(server.Client(), flaresync.PlatformInstagram, "profile", req, nil)
	require.Error(t, err)

	var perr *ProviderError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, http.StatusUnauthorized, perr.Status)
	assert.Equal(t, "token revoked", perr.Description)
	assert.Equal(t, "instagram profile failed: token revoked", perr.Error())
}

func TestAPIErrorMessageFallbacks(t *testing.T) {
	assert.Equal(t, "nope", APIErrorMessage([]byte(`{"error":"nope"}`), "fb"))
	assert.Equal(t, "bad code", APIErrorMessage([]byte(`{"error":"invalid_grant","error_description":"bad code"}`), "fb"))
	assert.Equal(t, "plain text", APIErrorMessage([]byte("plain text"), "fb"))
	assert.Equal(t, "fb", APIErrorMessage(nil, "fb"))
}

func TestTokenFromOAuth2ParsesScopes(t *testing.T) {
	tok := (&oauth2.Token{AccessToken: "a", RefreshToken: "r"}).WithExtra(map[string]any{
		"scope": []any{"user:read:email", "channel:read:subscriptions"},
	})
	out := TokenFromOAuth2(tok)
	assert.Equal(t, "a", out.AccessToken)
	assert.Equal(t, "r", out.RefreshToken)
	assert.Equal(t, []string{"user:read:email", "channel:read:subscriptions"}, out.Scopes)

	tok = (&oauth2.Token{AccessToken: "a"}).WithExtra(map[string]any{"scope": "a b,c"})
	assert.Equal(t, []string{"a", "b", "c"}, TokenFromOAuth2(tok).Scopes)
}

func TestWrapProviderErrorAddsMetadata(t *testing.T) {
	perr := &ProviderError{Platform: "twitch", Operation: "exchange", Status: 400, Code: "invalid_grant"}
	err := WrapProviderError(ErrTokenExchangeFailed, "twitch", "exchange", perr)

	var richErr *goerrors.Error
	if assert.ErrorAs(t, err, &richErr) {
		assert.Equal(t, TextCodeTokenExchangeFail, richErr.TextCode)
		assert.Equal(t, 400, richErr.Metadata["status"])
		assert.Equal(t, "invalid_grant", richErr.Metadata["code"])
		assert.Equal(t, "twitch", richErr.Metadata["platform"])
	}
}

func TestWrapProviderErrorPlainCause(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := WrapProviderError(ErrProfileFetchFailed, "youtube", "sync", cause)

	var richErr *goerrors.Error
	if assert.ErrorAs(t, err, &richErr) {
		assert.Equal(t, "youtube", richErr.Metadata["platform"])
		assert.Equal(t, "sync", richErr.Metadata["operation"])
		assert.Equal(t, cause.Error(), richErr.Metadata["error"])
	}
}

func TestProviderErrorRejected(t *testing.T) {
	assert.True(t, (&ProviderError{Status: 400}).Rejected())
	assert.True(t, (&ProviderError{Status: 429}).Rejected())
	assert.False(t, (&ProviderError{Status: 502}).Rejected())
	assert.False(t, (&ProviderError{Err: errors.New("timeout")}).Rejected())

	var nilErr *ProviderError
	assert.False(t, nilErr.Rejected())
	assert.Equal(t, "provider request failed", nilErr.Error())
	assert.Equal(t, "provider failed: status 503", (&ProviderError{Status: 503}).Error())
	assert.Equal(t, "tiktok failed: invalid_grant", (&ProviderError{Platform: "tiktok", Code: "invalid_grant"}).Error())
}

func TestEngagementRate(t *testing.T) {
	assert.Equal(t, 0.0, EngagementRate(10, 0, 100))
	assert.Equal(t, 0.0, EngagementRate(10, 2, 0))
	assert.Equal(t, 5.0, EngagementRate(100, 2, 1000))
}
