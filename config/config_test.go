package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/goliatone/flaresync"
	"github.com/goliatone/flaresync/social"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSigningKey = "0123456789abcdef0123456789abcdef"

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "flaresync.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("FLARESYNC_SESSION__SIGNING_KEY", testSigningKey)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, ":9090", cfg.Metrics.Addr)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
	assert.Equal(t, StoreBadger, cfg.Encryption.KeyStore)
	assert.Equal(t, StoreBadger, cfg.Pending.Store)
	assert.Equal(t, 10*time.Minute, cfg.Pending.TTL)
	assert.Equal(t, uint32(5), cfg.Breaker.FailureThreshold)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, testSigningKey, cfg.Session.SigningKey)
	assert.False(t, cfg.Platforms.Twitch.Enabled())
}

func TestLoadFileThenEnv(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: ":7000"
session:
  signing_key: "`+testSigningKey+`"
  ttl: 1h
pending:
  store: memory
  ttl: 5m
platforms:
  twitch:
    client_id: file-client
    client_secret: file-secret
    redirect_uri: https://app.example/callback
    scopes: ["user:read:email"]
`)

	t.Setenv("FLARESYNC_PLATFORMS__TWITCH__CLIENT_ID", "env-client")
	t.Setenv("FLARESYNC_PLATFORMS__TWITTER__SCOPES", "tweet.read, users.read,,offline.access")
	t.Setenv("FLARESYNC_SESSION__AUDIENCE", "web,mobile")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":7000", cfg.Server.Addr)
	assert.Equal(t, time.Hour, cfg.Session.TTL)
	assert.Equal(t, StoreMemory, cfg.Pending.Store)
	assert.Equal(t, 5*time.Minute, cfg.Pending.TTL)

	assert.Equal(t, "env-client", cfg.Platforms.Twitch.ClientID)
	assert.Equal(t, "file-secret", cfg.Platforms.Twitch.ClientSecret)
	assert.Equal(t, []string{"user:read:email"}, cfg.Platforms.Twitch.Scopes)
	assert.Equal(t, []string{"tweet.read", "users.read", "offline.access"}, cfg.Platforms.Twitter.Scopes)
	assert.Equal(t, []string{"web", "mobile"}, cfg.Session.Audience)
}

func TestLoadPathFromEnv(t *testing.T) {
	path := writeConfig(t, "session:\n  signing_key: \""+testSigningKey+"\"\nserver:\n  addr: \":7100\"\n")
	t.Setenv(PathEnvVar, path)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":7100", cfg.Server.Addr)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{
			name: "missing signing key",
			body: "server:\n  addr: \":8080\"\n",
		},
		{
			name: "short signing key",
			body: "session:\n  signing_key: short\n",
		},
		{
			name: "unknown keystore",
			body: "session:\n  signing_key: \"" + testSigningKey + "\"\nencryption:\n  keystore: vault\n",
		},
		{
			name: "file keystore without path",
			body: "session:\n  signing_key: \"" + testSigningKey + "\"\nencryption:\n  keystore: file\n  path: \"\"\n",
		},
		{
			name: "file pending store",
			body: "session:\n  signing_key: \"" + testSigningKey + "\"\npending:\n  store: file\n",
		},
		{
			name: "enabled platform without redirect",
			body: "session:\n  signing_key: \"" + testSigningKey + "\"\nplatforms:\n  youtube:\n    client_id: id\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			require.Error(t, err)
		})
	}
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "session.signing_key", envKey("FLARESYNC_SESSION__SIGNING_KEY"))
	assert.Equal(t, "platforms.tiktok.client_id", envKey("FLARESYNC_PLATFORMS__TIKTOK__CLIENT_ID"))
	assert.Equal(t, "", envKey("FLARESYNC_CONFIG"))
}

func TestPlatformsRegistry(t *testing.T) {
	cfg := PlatformsConfig{
		Twitch: PlatformConfig{ClientID: "id", ClientSecret: "secret", RedirectURI: "https://app.example/callback"},
		TikTok: PlatformConfig{ClientID: "key", ClientSecret: "secret", RedirectURI: "https://app.example/callback"},
	}

	registry := cfg.Registry()
	assert.Len(t, registry.Platforms(), 5)

	for _, adapter := range cfg.Adapters() {
		switch adapter.Platform() {
		case flaresync.PlatformTwitch, flaresync.PlatformTikTok:
			assert.True(t, social.IsConfigured(adapter), adapter.Platform().String())
		default:
			assert.False(t, social.IsConfigured(adapter), adapter.Platform().String())
		}
	}

	tiktok, err := registry.Get(flaresync.PlatformTikTok)
	require.NoError(t, err)
	assert.Contains(t, tiktok.AuthCodeURL("state"), "client_key=key")
}
