package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goliatone/flaresync"
	"github.com/goliatone/flaresync/config"
	"github.com/goliatone/flaresync/connector"
	"github.com/goliatone/flaresync/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSigningKey = "0123456789abcdef0123456789abcdef"

func TestCallbackListenerDeliversOnce(t *testing.T) {
	l := newCallbackListener(nil)

	rec := httptest.NewRecorder()
	l.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "http://127.0.0.1:8571/callback?code=c&state=s&platform=twitch", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rawURL, err := l.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:8571/callback?code=c&state=s&platform=twitch", rawURL)

	l.urls <- "pending"
	rec = httptest.NewRecorder()
	l.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "http://127.0.0.1:8571/callback?code=c&state=s", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestCallbackListenerIgnoresUnrelatedRequests(t *testing.T) {
	l := newCallbackListener(nil)

	rec := httptest.NewRecorder()
	l.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "http://127.0.0.1:8571/favicon.ico", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	l.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "http://127.0.0.1:8571/callback?error=access_denied&platform=tiktok", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCallbackListenerWaitHonorsContext(t *testing.T) {
	l := newCallbackListener(nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := l.Wait(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func newTestApp(t *testing.T, backend http.Handler) (*App, *bytes.Buffer) {
	t.Helper()

	server := httptest.NewServer(backend)
	t.Cleanup(server.Close)

	cfg := config.Defaults()
	cfg.Session.SigningKey = testSigningKey
	cfg.Pending.Store = config.StoreMemory
	cfg.Client.BackendURL = server.URL
	cfg.Platforms.Twitch = config.PlatformConfig{
		ClientID:     "twitch-client",
		ClientSecret: "twitch-secret",
		RedirectURI:  "http://127.0.0.1:8571/callback",
	}

	logCfg := logging.DefaultConfig()
	logCfg.Output = io.Discard

	out := &bytes.Buffer{}
	app := &App{config: cfg, logger: logging.New(logCfg), out: out}
	require.NoError(t, WithConnectors(context.Background(), app))
	return app, out
}

func fakeBackend(t *testing.T) http.Handler {
	t.Helper()

	profile := &flaresync.SocialProfile{
		ID:        "profile-1",
		UserID:    "user-1",
		Platform:  flaresync.PlatformTwitch,
		Username:  "creator",
		Connected: true,
		Followers: 250,
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasPrefix(r.Header.Get("Authorization"), "Bearer "))
		w.Header().Set("Content-Type", "application/json")

		switch r.URL.Path {
		case "/social-profiles":
			_ = json.NewEncoder(w).Encode(map[string]any{"profiles": []*flaresync.SocialProfile{profile}})
		case "/sync-social-platform":
			synced := *profile
			synced.Followers = 300
			synced.Posts = 12
			_ = json.NewEncoder(w).Encode(&synced)
		default:
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]any{"error": "unexpected path"})
		}
	})
}

func TestRunStatusAndSync(t *testing.T) {
	app, out := newTestApp(t, fakeBackend(t))
	ctx := context.Background()

	token, err := app.sessions.Generate("user-1")
	require.NoError(t, err)

	require.NoError(t, run(ctx, app, "status", "", token))
	assert.Contains(t, out.String(), "twitch     connected")
	assert.Contains(t, out.String(), "youtube    disconnected")

	out.Reset()
	require.NoError(t, run(ctx, app, "sync", "Twitch", token))
	assert.Contains(t, out.String(), "twitch connected as @creator (300 followers, 12 posts")

	c, err := app.orchestrator.Connector(flaresync.PlatformTwitch)
	require.NoError(t, err)
	assert.Equal(t, connector.StatusConnected, c.Status())
	assert.Equal(t, int64(300), c.Profile().Followers)
}

func TestRunRejectsBadInput(t *testing.T) {
	app, _ := newTestApp(t, fakeBackend(t))
	ctx := context.Background()

	err := run(ctx, app, "status", "", "not-a-token")
	require.Error(t, err)

	token, err := app.sessions.Generate("user-1")
	require.NoError(t, err)

	err = run(ctx, app, "sync", "facebook", token)
	assert.True(t, flaresync.HasTextCode(err, flaresync.TextCodeUnsupportedPlatform))

	err = run(ctx, app, "explode", "twitch", token)
	require.Error(t, err)
}
