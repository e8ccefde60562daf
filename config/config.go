// Package config loads flaresync settings. Values are layered: built in
// defaults, an optional YAML file, then FLARESYNC_ environment variables.
package config

import (
	"os"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/goliatone/flaresync/logging"
	"github.com/goliatone/go-errors"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes every environment override. Nested keys are separated
// by a double underscore: FLARESYNC_PLATFORMS__TWITCH__CLIENT_ID.
const EnvPrefix = "FLARESYNC_"

// PathEnvVar overrides the config file path.
const PathEnvVar = "FLARESYNC_CONFIG"

// Store backends.
const (
	StoreMemory = "memory"
	StoreFile   = "file"
	StoreBadger = "badger"
)

// sliceKeys are split on commas when they arrive as a single string from
// the environment.
var sliceKeys = []string{
	"session.audience",
	"platforms.instagram.scopes",
	"platforms.tiktok.scopes",
	"platforms.twitter.scopes",
	"platforms.youtube.scopes",
	"platforms.twitch.scopes",
}

// Config is the root configuration.
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Metrics    MetricsConfig    `koanf:"metrics"`
	Database   DatabaseConfig   `koanf:"database"`
	Session    SessionConfig    `koanf:"session"`
	Encryption EncryptionConfig `koanf:"encryption"`
	Pending    PendingConfig    `koanf:"pending"`
	KV         KVConfig         `koanf:"kv"`
	Breaker    BreakerConfig    `koanf:"breaker"`
	Logging    logging.Config   `koanf:"logging"`
	Platforms  PlatformsConfig  `koanf:"platforms"`
	Client     ClientConfig     `koanf:"client"`
}

// ServerConfig configures the backend function listener.
type ServerConfig struct {
	Addr         string        `koanf:"addr"`
	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
}

// MetricsConfig configures the prometheus listener.
type MetricsConfig struct {
	Enabled bool   `koanf:"enabled"`
	Addr    string `koanf:"addr"`
	Path    string `koanf:"path"`
}

// DatabaseConfig configures the social_profiles store.
type DatabaseConfig struct {
	DSN   string `koanf:"dsn"`
	Debug bool   `koanf:"debug"`
}

// SessionConfig configures bearer token verification.
type SessionConfig struct {
	SigningKey string        `koanf:"signing_key"`
	Issuer     string        `koanf:"issuer"`
	Audience   []string      `koanf:"audience"`
	TTL        time.Duration `koanf:"ttl"`
}

// EncryptionConfig selects where key material is kept.
type EncryptionConfig struct {
	KeyStore string `koanf:"keystore"`
	// Path is the key file for the file store.
	Path string `koanf:"path"`
}

// PendingConfig selects where pending OAuth transactions are kept.
type PendingConfig struct {
	Store string        `koanf:"store"`
	TTL   time.Duration `koanf:"ttl"`
}

// KVConfig configures the badger database shared by the badger stores.
// An empty path keeps it in memory.
type KVConfig struct {
	Path       string `koanf:"path"`
	SyncWrites bool   `koanf:"sync_writes"`
}

// BreakerConfig configures the per platform circuit breakers.
type BreakerConfig struct {
	MaxRequests      uint32        `koanf:"max_requests"`
	Interval         time.Duration `koanf:"interval"`
	Timeout          time.Duration `koanf:"timeout"`
	FailureThreshold uint32        `koanf:"failure_threshold"`
}

// ClientConfig configures flaresync-connect, the terminal client that runs
// the connector flow against a backend.
type ClientConfig struct {
	BackendURL string `koanf:"backend_url"`
	// CallbackAddr is the loopback listener the provider redirects to.
	CallbackAddr string `koanf:"callback_addr"`
	// StateSecret seals OAuth state. Empty generates one per run.
	StateSecret string        `koanf:"state_secret"`
	Timeout     time.Duration `koanf:"timeout"`
}

// PlatformsConfig holds the client settings of every platform.
type PlatformsConfig struct {
	Instagram PlatformConfig `koanf:"instagram"`
	TikTok    PlatformConfig `koanf:"tiktok"`
	Twitter   PlatformConfig `koanf:"twitter"`
	YouTube   PlatformConfig `koanf:"youtube"`
	Twitch    PlatformConfig `koanf:"twitch"`
}

// PlatformConfig holds one platform's OAuth client settings. For TikTok the
// client id is the client key.
type PlatformConfig struct {
	ClientID     string   `koanf:"client_id"`
	ClientSecret string   `koanf:"client_secret"`
	RedirectURI  string   `koanf:"redirect_uri"`
	Scopes       []string `koanf:"scopes"`
}

// Enabled reports whether a client id is set.
func (p PlatformConfig) Enabled() bool {
	return strings.TrimSpace(p.ClientID) != ""
}

// Defaults returns the built in configuration.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:         ":8080",
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Addr:    ":9090",
			Path:    "/metrics",
		},
		Database: DatabaseConfig{
			DSN: "file:flaresync.db?cache=shared",
		},
		Session: SessionConfig{
			Issuer: "flaresync",
			TTL:    24 * time.Hour,
		},
		Encryption: EncryptionConfig{
			KeyStore: StoreBadger,
			Path:     "data/keys.json",
		},
		Pending: PendingConfig{
			Store: StoreBadger,
			TTL:   10 * time.Minute,
		},
		KV: KVConfig{
			Path: "data/kv",
		},
		Breaker: BreakerConfig{
			MaxRequests:      1,
			Interval:         time.Minute,
			Timeout:          30 * time.Second,
			FailureThreshold: 5,
		},
		Logging: logging.Config{
			Level:  "info",
			Format: "json",
		},
		Client: ClientConfig{
			BackendURL:   "http://localhost:8080",
			CallbackAddr: "127.0.0.1:8571",
			Timeout:      5 * time.Minute,
		},
	}
}

// Load reads the configuration. path may be empty, in which case
// FLARESYNC_CONFIG is consulted and, failing that, no file is read.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Defaults(), "koanf"), nil); err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to load config defaults")
	}

	if path == "" {
		path = os.Getenv(PathEnvVar)
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, errors.Wrap(err, errors.CategoryInternal, "failed to load config file").
				WithMetadata(map[string]any{"path": path})
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to load config environment")
	}

	if err := splitSlices(k); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to unmarshal config")
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, errors.CategoryValidation, "invalid configuration")
	}
	return cfg, nil
}

// envKey maps FLARESYNC_SESSION__SIGNING_KEY to session.signing_key.
func envKey(key string) string {
	key = strings.TrimPrefix(key, EnvPrefix)
	if key == "CONFIG" {
		return ""
	}
	return strings.ReplaceAll(strings.ToLower(key), "__", ".")
}

func splitSlices(k *koanf.Koanf) error {
	for _, key := range sliceKeys {
		raw, ok := k.Get(key).(string)
		if !ok {
			continue
		}
		parts := []string{}
		for _, p := range strings.Split(raw, ",") {
			if p = strings.TrimSpace(p); p != "" {
				parts = append(parts, p)
			}
		}
		if err := k.Set(key, parts); err != nil {
			return errors.Wrap(err, errors.CategoryInternal, "failed to split config list").
				WithMetadata(map[string]any{"key": key})
		}
	}
	return nil
}

// Validate checks the configuration.
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Server),
		validation.Field(&c.Metrics),
		validation.Field(&c.Database),
		validation.Field(&c.Session),
		validation.Field(&c.Encryption),
		validation.Field(&c.Pending),
		validation.Field(&c.Platforms),
		validation.Field(&c.Client),
	)
}

// Validate checks the client settings.
func (c ClientConfig) Validate() error {
	secretRules := []validation.Rule{}
	if c.StateSecret != "" {
		secretRules = append(secretRules, validation.Length(32, 0))
	}
	return validation.ValidateStruct(&c,
		validation.Field(&c.BackendURL, validation.Required),
		validation.Field(&c.CallbackAddr, validation.Required),
		validation.Field(&c.StateSecret, secretRules...),
	)
}

// Validate checks the server settings.
func (c ServerConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Addr, validation.Required),
	)
}

// Validate checks the metrics settings.
func (c MetricsConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	return validation.ValidateStruct(&c,
		validation.Field(&c.Addr, validation.Required),
		validation.Field(&c.Path, validation.Required),
	)
}

// Validate checks the database settings.
func (c DatabaseConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.DSN, validation.Required),
	)
}

// Validate checks the session settings.
func (c SessionConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.SigningKey, validation.Required, validation.Length(32, 0)),
	)
}

// Validate checks the encryption settings.
func (c EncryptionConfig) Validate() error {
	pathRules := []validation.Rule{}
	if c.KeyStore == StoreFile {
		pathRules = append(pathRules, validation.Required)
	}
	return validation.ValidateStruct(&c,
		validation.Field(&c.KeyStore, validation.Required, validation.In(StoreMemory, StoreFile, StoreBadger)),
		validation.Field(&c.Path, pathRules...),
	)
}

// Validate checks the pending transaction settings.
func (c PendingConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Store, validation.Required, validation.In(StoreMemory, StoreBadger)),
		validation.Field(&c.TTL, validation.Required),
	)
}

// Validate checks every enabled platform.
func (c PlatformsConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Instagram),
		validation.Field(&c.TikTok),
		validation.Field(&c.Twitter),
		validation.Field(&c.YouTube),
		validation.Field(&c.Twitch),
	)
}

// Validate checks an enabled platform has a redirect URI. Disabled
// platforms are skipped.
func (c PlatformConfig) Validate() error {
	if !c.Enabled() {
		return nil
	}
	return validation.ValidateStruct(&c,
		validation.Field(&c.RedirectURI, validation.Required, validation.Length(1, 2048)),
	)
}
