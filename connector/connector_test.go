package connector

import (
	"context"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/flaresync"
	"github.com/goliatone/flaresync/exchange"
	"github.com/goliatone/flaresync/social"
	"github.com/goliatone/flaresync/social/providers/instagram"
	"github.com/goliatone/flaresync/social/providers/tiktok"
	"github.com/goliatone/flaresync/social/providers/twitch"
	"github.com/goliatone/flaresync/social/providers/twitter"
	"github.com/goliatone/flaresync/social/providers/youtube"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testStateSecret = []byte("connector-test-state-secret-0123456789")

type stubBackend struct {
	mu sync.Mutex

	connectReq  []exchange.ConnectRequest
	connectErr  error
	profile     *flaresync.SocialProfile
	profileErr  error
	syncErr     error
	disconnects int
	syncs       int
	lookups     int

	block chan struct{}
}

func (s *stubBackend) Connect(_ context.Context, _ string, req exchange.ConnectRequest) (*flaresync.SocialProfile, error) {
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connectReq = append(s.connectReq, req)
	if s.connectErr != nil {
		return nil, s.connectErr
	}
	s.profile = &flaresync.SocialProfile{
		UserID:    "user-1",
		Platform:  flaresync.Platform(req.Platform),
		Username:  "creator",
		Connected: true,
		Followers: 10,
	}
	s.profileErr = nil
	return s.profile, nil
}

func (s *stubBackend) Disconnect(context.Context, string, string) (*flaresync.SocialProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disconnects++
	cp := *s.profile
	cp.Connected = false
	s.profile = &cp
	return s.profile, nil
}

func (s *stubBackend) Sync(context.Context, string, string) (*flaresync.SocialProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.syncs++
	if s.syncErr != nil {
		return nil, s.syncErr
	}
	cp := *s.profile
	cp.Followers = 99
	s.profile = &cp
	return s.profile, nil
}

func (s *stubBackend) Profile(context.Context, string, string) (*flaresync.SocialProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lookups++
	if s.profileErr != nil {
		return nil, s.profileErr
	}
	if s.profile == nil {
		return nil, flaresync.ErrProfileNotFound
	}
	return s.profile, nil
}

func (s *stubBackend) Profiles(context.Context, string) ([]*flaresync.SocialProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.profile == nil {
		return nil, nil
	}
	return []*flaresync.SocialProfile{s.profile}, nil
}

type captureNotifier struct {
	mu    sync.Mutex
	items []Notification
}

func (c *captureNotifier) Notify(_ context.Context, n Notification) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = append(c.items, n)
}

func (c *captureNotifier) last() Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.items) == 0 {
		return Notification{}
	}
	return c.items[len(c.items)-1]
}

func testSession() *flaresync.SessionObject {
	return &flaresync.SessionObject{
		UserID:      "user-1",
		AccessToken: "session-token",
		ExpiresAt:   time.Now().Add(time.Hour),
	}
}

func testStates(t *testing.T) *social.EncryptedStateManager {
	t.Helper()
	states, err := social.NewStateManagerFromSecret(testStateSecret, time.Minute)
	require.NoError(t, err)
	return states
}

func testAdapters() []social.PlatformAdapter {
	redirect := "https://app.example.com/oauth/callback"
	return []social.PlatformAdapter{
		instagram.New(instagram.Config{ClientID: "ig-id", ClientSecret: "ig-secret", RedirectURI: redirect}),
		tiktok.New(tiktok.Config{ClientKey: "tt-key", ClientSecret: "tt-secret", RedirectURI: redirect}),
		twitter.New(twitter.Config{ClientID: "tw-id", ClientSecret: "tw-secret", RedirectURI: redirect}),
		youtube.New(youtube.Config{ClientID: "yt-id", ClientSecret: "yt-secret", RedirectURI: redirect}),
		twitch.New(twitch.Config{ClientID: "th-id", ClientSecret: "th-secret", RedirectURI: redirect}),
	}
}

func newTestConnector(t *testing.T, adapter social.PlatformAdapter, backend Backend, pending social.PendingStore) (*Connector, *captureNotifier) {
	t.Helper()
	notifier := &captureNotifier{}
	c := New(adapter, pending, testStates(t), backend, WithNotifier(notifier))
	return c, notifier
}

func TestInitiateConnectURLCarriesStateAndPlatform(t *testing.T) {
	for _, adapter := range testAdapters() {
		adapter := adapter
		t.Run(adapter.Platform().String(), func(t *testing.T) {
			pending := social.NewMemoryPendingStore(time.Minute)
			c, _ := newTestConnector(t, adapter, &stubBackend{}, pending)

			redirect, err := c.InitiateConnect(context.Background(), testSession())
			require.NoError(t, err)
			assert.Equal(t, StatusAwaitingCallback, c.Status())
			assert.False(t, c.Busy())

			u, err := url.Parse(redirect.URL)
			require.NoError(t, err)
			q := u.Query()
			assert.Equal(t, adapter.Platform().String(), q.Get("platform"))
			assert.Equal(t, redirect.State, q.Get("state"))
			assert.NotEqual(t, "session-token", q.Get("state"))

			decoded, err := testStates(t).Decode(q.Get("state"))
			require.NoError(t, err)
			assert.Equal(t, adapter.Platform(), decoded.Platform)
			assert.Equal(t, "user-1", decoded.UserID)

			tx, err := pending.Take(context.Background(), "user-1", adapter.Platform())
			require.NoError(t, err)
			assert.Equal(t, decoded.Nonce, tx.Nonce)
		})
	}
}

func TestInitiateConnectTwitterPKCE(t *testing.T) {
	pending := social.NewMemoryPendingStore(time.Minute)
	adapter := twitter.New(twitter.Config{ClientID: "tw-id", RedirectURI: "https://app.example.com/cb"})
	c, _ := newTestConnector(t, adapter, &stubBackend{}, pending)

	redirect, err := c.InitiateConnect(context.Background(), testSession())
	require.NoError(t, err)

	u, err := url.Parse(redirect.URL)
	require.NoError(t, err)
	assert.Equal(t, social.CodeChallengeMethod, u.Query().Get("code_challenge_method"))

	tx, err := pending.Take(context.Background(), "user-1", flaresync.PlatformTwitter)
	require.NoError(t, err)
	require.NotEmpty(t, tx.CodeVerifier)
	assert.Equal(t, social.ComputeCodeChallenge(tx.CodeVerifier), u.Query().Get("code_challenge"))
}

func TestInitiateConnectRequiresSession(t *testing.T) {
	pending := social.NewMemoryPendingStore(time.Minute)
	c, notifier := newTestConnector(t, testAdapters()[0], &stubBackend{}, pending)

	_, err := c.InitiateConnect(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, flaresync.HasTextCode(err, flaresync.TextCodeNotAuthenticated))
	assert.Equal(t, StatusDisconnected, c.Status())
	assert.Equal(t, 0, pending.Len())
	assert.Equal(t, NotificationError, notifier.last().Kind)

	_, err = c.InitiateConnect(context.Background(), &flaresync.SessionObject{UserID: "user-1"})
	assert.True(t, flaresync.HasTextCode(err, flaresync.TextCodeNotAuthenticated))
}

func TestInitiateConnectRequiresConfiguration(t *testing.T) {
	pending := social.NewMemoryPendingStore(time.Minute)
	c, _ := newTestConnector(t, instagram.New(instagram.Config{}), &stubBackend{}, pending)

	_, err := c.InitiateConnect(context.Background(), testSession())
	require.Error(t, err)
	assert.True(t, flaresync.HasTextCode(err, flaresync.TextCodeMissingConfiguration))
	assert.Equal(t, StatusDisconnected, c.Status())
	assert.Equal(t, 0, pending.Len())
}

func TestConcurrentPlatformsKeepSeparateVerifiers(t *testing.T) {
	pending := social.NewMemoryPendingStore(time.Minute)
	backend := &stubBackend{}
	adapters := testAdapters()

	var wg sync.WaitGroup
	connectors := make([]*Connector, len(adapters))
	for i, a := range adapters {
		connectors[i], _ = newTestConnector(t, a, backend, pending)
	}
	for _, c := range connectors {
		wg.Add(1)
		go func(c *Connector) {
			defer wg.Done()
			_, err := c.InitiateConnect(context.Background(), testSession())
			assert.NoError(t, err)
		}(c)
	}
	wg.Wait()
	assert.Equal(t, len(adapters), pending.Len())

	tx, err := pending.Take(context.Background(), "user-1", flaresync.PlatformTwitter)
	require.NoError(t, err)
	assert.NotEmpty(t, tx.CodeVerifier)

	tx, err = pending.Take(context.Background(), "user-1", flaresync.PlatformInstagram)
	require.NoError(t, err)
	assert.Empty(t, tx.CodeVerifier)
}

func TestHandleCallbackConnects(t *testing.T) {
	pending := social.NewMemoryPendingStore(time.Minute)
	backend := &stubBackend{}
	c, notifier := newTestConnector(t, testAdapters()[2], backend, pending)

	var events []Event
	c.Subscribe(func(e Event) { events = append(events, e) })

	redirect, err := c.InitiateConnect(context.Background(), testSession())
	require.NoError(t, err)

	profile, err := c.HandleCallback(context.Background(), testSession(), "auth-code", redirect.State)
	require.NoError(t, err)
	assert.True(t, profile.Connected)
	assert.Equal(t, StatusConnected, c.Status())
	assert.Equal(t, NotificationSuccess, notifier.last().Kind)

	require.Len(t, backend.connectReq, 1)
	req := backend.connectReq[0]
	assert.Equal(t, "twitter", req.Platform)
	assert.Equal(t, "auth-code", req.AuthCode)
	assert.NotEmpty(t, req.CodeVerifier)
	assert.Equal(t, 0, pending.Len())

	var path []Status
	for _, e := range events {
		path = append(path, e.To)
	}
	assert.Equal(t, []Status{StatusConnecting, StatusAwaitingCallback, StatusExchanging, StatusConnected}, path)
}

func TestHandleCallbackWithoutVerifierSkipsExchange(t *testing.T) {
	pending := social.NewMemoryPendingStore(time.Minute)
	backend := &stubBackend{}
	c, notifier := newTestConnector(t, testAdapters()[2], backend, pending)

	state, err := testStates(t).Encode(&social.OAuthState{Platform: flaresync.PlatformTwitter, UserID: "user-1"})
	require.NoError(t, err)

	_, err = c.HandleCallback(context.Background(), testSession(), "auth-code", state)
	require.Error(t, err)
	assert.Equal(t, "no code verifier found", exchange.ErrorMessage(err))
	assert.Empty(t, backend.connectReq)
	assert.Equal(t, StatusDisconnected, c.Status())
	assert.Equal(t, NotificationError, notifier.last().Kind)
}

func TestHandleCallbackRejectsForeignState(t *testing.T) {
	pending := social.NewMemoryPendingStore(time.Minute)
	backend := &stubBackend{}
	c, _ := newTestConnector(t, testAdapters()[0], backend, pending)

	_, err := c.InitiateConnect(context.Background(), testSession())
	require.NoError(t, err)

	forged, err := testStates(t).Encode(&social.OAuthState{Platform: flaresync.PlatformInstagram, UserID: "user-1"})
	require.NoError(t, err)

	_, err = c.HandleCallback(context.Background(), testSession(), "auth-code", forged)
	require.Error(t, err)
	assert.True(t, flaresync.HasTextCode(err, social.TextCodeInvalidState))
	assert.Empty(t, backend.connectReq)
	assert.Equal(t, 0, pending.Len())

	_, err = c.HandleCallback(context.Background(), testSession(), "auth-code", "garbage")
	assert.True(t, flaresync.HasTextCode(err, social.TextCodeInvalidState))
}

func TestHandleCallbackIsSingleUse(t *testing.T) {
	pending := social.NewMemoryPendingStore(time.Minute)
	backend := &stubBackend{}
	c, _ := newTestConnector(t, testAdapters()[0], backend, pending)

	redirect, err := c.InitiateConnect(context.Background(), testSession())
	require.NoError(t, err)

	_, err = c.HandleCallback(context.Background(), testSession(), "auth-code", redirect.State)
	require.NoError(t, err)

	_, err = c.HandleCallback(context.Background(), testSession(), "auth-code", redirect.State)
	require.Error(t, err)
	assert.True(t, flaresync.HasTextCode(err, social.TextCodePendingNotFound))
	assert.Len(t, backend.connectReq, 1)
	assert.Equal(t, StatusConnected, c.Status())
}

func TestHandleCallbackExchangeFailureReverts(t *testing.T) {
	pending := social.NewMemoryPendingStore(time.Minute)
	backend := &stubBackend{connectErr: social.ErrTokenExchangeFailed}
	c, notifier := newTestConnector(t, testAdapters()[1], backend, pending)

	redirect, err := c.InitiateConnect(context.Background(), testSession())
	require.NoError(t, err)

	_, err = c.HandleCallback(context.Background(), testSession(), "auth-code", redirect.State)
	require.Error(t, err)
	assert.Equal(t, StatusDisconnected, c.Status())
	assert.False(t, c.Busy())
	assert.Equal(t, "token exchange failed", notifier.last().Message)
	assert.Equal(t, 0, pending.Len())
}

func TestDisconnectWithoutProfile(t *testing.T) {
	backend := &stubBackend{}
	c, _ := newTestConnector(t, testAdapters()[0], backend, social.NewMemoryPendingStore(time.Minute))

	_, err := c.Disconnect(context.Background(), testSession())
	require.Error(t, err)
	assert.True(t, flaresync.HasTextCode(err, flaresync.TextCodeProfileNotFound))
	assert.Equal(t, StatusDisconnected, c.Status())
	assert.Zero(t, backend.disconnects)
}

func TestDisconnectAfterConnect(t *testing.T) {
	pending := social.NewMemoryPendingStore(time.Minute)
	backend := &stubBackend{}
	c, _ := newTestConnector(t, testAdapters()[3], backend, pending)

	redirect, err := c.InitiateConnect(context.Background(), testSession())
	require.NoError(t, err)
	_, err = c.HandleCallback(context.Background(), testSession(), "code", redirect.State)
	require.NoError(t, err)

	profile, err := c.Disconnect(context.Background(), testSession())
	require.NoError(t, err)
	assert.False(t, profile.Connected)
	assert.Equal(t, StatusDisconnected, c.Status())
	assert.Equal(t, 1, backend.disconnects)
}

func TestDisconnectDuringReconnect(t *testing.T) {
	pending := social.NewMemoryPendingStore(time.Minute)
	backend := &stubBackend{}
	c, _ := newTestConnector(t, testAdapters()[2], backend, pending)

	redirect, err := c.InitiateConnect(context.Background(), testSession())
	require.NoError(t, err)
	_, err = c.HandleCallback(context.Background(), testSession(), "code", redirect.State)
	require.NoError(t, err)

	stale, err := c.InitiateConnect(context.Background(), testSession())
	require.NoError(t, err)
	require.Equal(t, StatusAwaitingCallback, c.Status())

	profile, err := c.Disconnect(context.Background(), testSession())
	require.NoError(t, err)
	assert.False(t, profile.Connected)
	assert.Equal(t, StatusDisconnected, c.Status())
	assert.Equal(t, 1, backend.disconnects)
	assert.Equal(t, 0, pending.Len())

	_, err = c.HandleCallback(context.Background(), testSession(), "code", stale.State)
	require.Error(t, err)
	assert.Len(t, backend.connectReq, 1)
}

func TestSyncDataRequiresConnection(t *testing.T) {
	backend := &stubBackend{}
	c, notifier := newTestConnector(t, testAdapters()[4], backend, social.NewMemoryPendingStore(time.Minute))

	_, err := c.SyncData(context.Background(), testSession())
	require.Error(t, err)
	assert.Equal(t, "no connected profile", exchange.ErrorMessage(err))
	assert.Zero(t, backend.syncs)
	assert.Zero(t, backend.lookups)
	assert.Equal(t, NotificationError, notifier.last().Kind)
}

func TestSyncDataUpdatesProfile(t *testing.T) {
	pending := social.NewMemoryPendingStore(time.Minute)
	backend := &stubBackend{}
	c, _ := newTestConnector(t, testAdapters()[4], backend, pending)

	redirect, err := c.InitiateConnect(context.Background(), testSession())
	require.NoError(t, err)
	_, err = c.HandleCallback(context.Background(), testSession(), "code", redirect.State)
	require.NoError(t, err)

	profile, err := c.SyncData(context.Background(), testSession())
	require.NoError(t, err)
	assert.Equal(t, int64(99), profile.Followers)
	assert.Equal(t, int64(99), c.Profile().Followers)
}

func TestOperationsAreSequential(t *testing.T) {
	pending := social.NewMemoryPendingStore(time.Minute)
	backend := &stubBackend{block: make(chan struct{})}
	c, _ := newTestConnector(t, testAdapters()[0], backend, pending)

	redirect, err := c.InitiateConnect(context.Background(), testSession())
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := c.HandleCallback(context.Background(), testSession(), "code", redirect.State)
		done <- err
	}()

	require.Eventually(t, c.Busy, time.Second, time.Millisecond)

	_, err = c.SyncData(context.Background(), testSession())
	assert.True(t, flaresync.HasTextCode(err, flaresync.TextCodeOperationInProgress))

	close(backend.block)
	require.NoError(t, <-done)
	assert.False(t, c.Busy())
}

func TestRefreshSeedsStatus(t *testing.T) {
	backend := &stubBackend{profile: &flaresync.SocialProfile{Platform: flaresync.PlatformYouTube, Connected: true}}
	c, _ := newTestConnector(t, testAdapters()[3], backend, social.NewMemoryPendingStore(time.Minute))

	profile, err := c.Refresh(context.Background(), testSession())
	require.NoError(t, err)
	require.NotNil(t, profile)
	assert.Equal(t, StatusConnected, c.Status())

	backend.profile = nil
	profile, err = c.Refresh(context.Background(), testSession())
	require.NoError(t, err)
	assert.Nil(t, profile)
	assert.Equal(t, StatusDisconnected, c.Status())
}

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(StatusDisconnected, StatusConnecting))
	assert.True(t, CanTransition(StatusExchanging, StatusDisconnected))
	assert.True(t, CanTransition(StatusConnected, StatusDisconnecting))
	assert.True(t, CanTransition(StatusAwaitingCallback, StatusDisconnecting))
	assert.False(t, CanTransition(StatusDisconnecting, StatusConnected))
	assert.False(t, CanTransition(StatusConnecting, StatusConnected))
	assert.True(t, CanTransition(StatusConnected, StatusConnected))
}
