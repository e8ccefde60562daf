package exchange

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/flaresync"
	"github.com/goliatone/flaresync/encryption"
	"github.com/goliatone/flaresync/repository"
	"github.com/goliatone/flaresync/social"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	_ "github.com/mattn/go-sqlite3"
)

const testSigningKey = "exchange-test-signing-key-0123456789"

type fakeAdapter struct {
	platform   flaresync.Platform
	configured bool

	mu          sync.Mutex
	token       *social.Token
	exchangeErr error
	profile     *social.PlatformProfile
	profileErr  error
	revokeErr   error

	exchanges []social.ExchangeConfig
	fetched   []*social.Token
	revoked   []*social.Token
}

func newFakeAdapter(platform flaresync.Platform) *fakeAdapter {
	return &fakeAdapter{
		platform:   platform,
		configured: true,
		token: &social.Token{
			AccessToken:  "access-" + platform.String(),
			RefreshToken: "refresh-" + platform.String(),
			ExpiresAt:    time.Now().Add(time.Hour),
			Scopes:       []string{"read"},
		},
		profile: &social.PlatformProfile{
			Platform:       platform,
			PlatformUserID: "remote-1",
			Username:       "creator",
			DisplayName:    "Creator",
			Stats: flaresync.ProfileStats{
				Followers:  1200,
				Posts:      40,
				Engagement: 3.5,
			},
		},
	}
}

func (f *fakeAdapter) Platform() flaresync.Platform { return f.platform }

func (f *fakeAdapter) Configured() bool { return f.configured }

func (f *fakeAdapter) AuthCodeURL(state string, _ ...social.AuthCodeOption) string {
	return "https://auth.example.com/?state=" + state + "&platform=" + f.platform.String()
}

func (f *fakeAdapter) Exchange(_ context.Context, _ string, opts ...social.ExchangeOption) (*social.Token, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.exchanges = append(f.exchanges, social.ApplyExchangeOptions(opts...))
	if f.exchangeErr != nil {
		return nil, f.exchangeErr
	}
	cp := *f.token
	return &cp, nil
}

func (f *fakeAdapter) FetchProfile(_ context.Context, token *social.Token) (*social.PlatformProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetched = append(f.fetched, token)
	if f.profileErr != nil {
		return nil, f.profileErr
	}
	cp := *f.profile
	return &cp, nil
}

func (f *fakeAdapter) Revoke(_ context.Context, token *social.Token) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revoked = append(f.revoked, token)
	return f.revokeErr
}

// brokenCipher refuses to encrypt, simulating missing key material.
type brokenCipher struct{}

func (brokenCipher) EncryptField(string) *encryption.EncryptedField { return nil }

func (brokenCipher) DecryptField(*encryption.EncryptedField) (string, bool) { return "", false }

type recordingSink struct {
	mu     sync.Mutex
	events []flaresync.ActivityEvent
}

func (r *recordingSink) Record(_ context.Context, event flaresync.ActivityEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingSink) types() []flaresync.ActivityEventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]flaresync.ActivityEventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.EventType)
	}
	return out
}

type harness struct {
	service  *Service
	tokens   *flaresync.TokenService
	profiles flaresync.ProfileRepository
	cipher   *encryption.Service
	sink     *recordingSink
	adapters map[flaresync.Platform]*fakeAdapter
}

func setupDB(t *testing.T) *bun.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)

	require.NoError(t, repository.Migrate(context.Background(), db))

	bunDB := bun.NewDB(db, sqlitedialect.New())
	t.Cleanup(func() {
		_ = bunDB.Close()
	})
	return bunDB
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()

	cipher := encryption.NewService(encryption.NewMemoryKeyStore())
	require.True(t, cipher.Initialize(context.Background()))

	return newHarnessWithCipher(t, cipher, opts...)
}

func newHarnessWithCipher(t *testing.T, cipher Cipher, opts ...Option) *harness {
	t.Helper()

	adapters := map[flaresync.Platform]*fakeAdapter{}
	registry := social.NewRegistry()
	for _, p := range flaresync.Platforms() {
		a := newFakeAdapter(p)
		adapters[p] = a
		registry.Register(a)
	}

	profiles := repository.NewSocialProfileRepository(setupDB(t))
	tokens := flaresync.NewTokenService([]byte(testSigningKey), time.Hour, "flaresync", nil, nil)
	sink := &recordingSink{}

	opts = append([]Option{WithActivitySink(sink)}, opts...)
	svc := NewService(tokens, registry, profiles, cipher, opts...)

	h := &harness{
		service:  svc,
		tokens:   tokens,
		profiles: profiles,
		sink:     sink,
		adapters: adapters,
	}
	if c, ok := cipher.(*encryption.Service); ok {
		h.cipher = c
	}
	return h
}

func (h *harness) bearer(t *testing.T, userID string) string {
	t.Helper()
	token, err := h.tokens.Generate(userID)
	require.NoError(t, err)
	return token
}

func hasTextCode(err error, code string) bool {
	return flaresync.HasTextCode(err, code)
}

var errProviderDown = errors.New("provider down")
