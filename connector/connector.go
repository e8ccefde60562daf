// Package connector drives the client side of a platform connection: it
// builds the authorization redirect, consumes the callback and keeps a
// status per platform that an Orchestrator aggregates.
package connector

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/goliatone/flaresync"
	"github.com/goliatone/flaresync/exchange"
	"github.com/goliatone/flaresync/social"
)

// AuthRedirect is the result of InitiateConnect.
type AuthRedirect struct {
	Platform  flaresync.Platform
	URL       string
	State     string
	ExpiresAt time.Time
}

// Connector runs the authorization code flow for one platform. Operations
// on a single connector are strictly sequential; a call made while another
// is in flight fails with ErrOperationInProgress.
type Connector struct {
	adapter  social.PlatformAdapter
	pending  social.PendingStore
	states   social.StateManager
	backend  Backend
	notifier Notifier
	logger   flaresync.Logger

	redirectURI string
	pendingTTL  time.Duration
	now         func() time.Time

	mu        sync.Mutex
	status    Status
	profile   *flaresync.SocialProfile
	busy      bool
	queued    []Event
	listeners []Listener
}

// Option configures a Connector.
type Option func(*Connector)

// WithNotifier sets the notifier.
func WithNotifier(n Notifier) Option {
	return func(c *Connector) {
		if n != nil {
			c.notifier = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l flaresync.Logger) Option {
	return func(c *Connector) {
		c.logger = flaresync.NormalizeLogger(l)
	}
}

// WithRedirectURI overrides the adapter redirect URI for both the
// authorization request and the exchange.
func WithRedirectURI(uri string) Option {
	return func(c *Connector) {
		c.redirectURI = uri
	}
}

// WithPendingTTL bounds how long a redirect round-trip may take.
func WithPendingTTL(ttl time.Duration) Option {
	return func(c *Connector) {
		if ttl > 0 {
			c.pendingTTL = ttl
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Connector) {
		if now != nil {
			c.now = now
		}
	}
}

// New creates a connector for adapter's platform.
func New(adapter social.PlatformAdapter, pending social.PendingStore, states social.StateManager, backend Backend, opts ...Option) *Connector {
	c := &Connector{
		adapter:    adapter,
		pending:    pending,
		states:     states,
		backend:    backend,
		notifier:   noopNotifier{},
		logger:     flaresync.DefaultLogger(),
		pendingTTL: social.DefaultPendingTTL,
		now:        time.Now,
		status:     StatusDisconnected,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Platform returns the connector platform.
func (c *Connector) Platform() flaresync.Platform {
	return c.adapter.Platform()
}

// Status returns the current status.
func (c *Connector) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Profile returns the last known profile, if any.
func (c *Connector) Profile() *flaresync.SocialProfile {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.profile
}

// Busy reports whether an operation is in flight.
func (c *Connector) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.busy
}

// Subscribe registers l for status changes.
func (c *Connector) Subscribe(l Listener) {
	if l == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, l)
}

// InitiateConnect stores a pending transaction and returns the provider
// authorization URL. The caller navigates to it.
func (c *Connector) InitiateConnect(ctx context.Context, session flaresync.Session, opts ...social.AuthCodeOption) (redirect *AuthRedirect, err error) {
	if err := c.begin(); err != nil {
		return nil, err
	}
	defer c.end()

	if err := checkSession(session); err != nil {
		return nil, c.fail(ctx, "Not signed in", err)
	}
	if !social.IsConfigured(c.adapter) {
		return nil, c.fail(ctx, "Connection failed", flaresync.ErrMissingConfiguration)
	}

	prev := c.Status()
	if err := c.transition(StatusConnecting, nil); err != nil {
		return nil, c.fail(ctx, "Connection failed", err)
	}
	defer func() {
		if err != nil {
			c.revert(prev)
			err = c.fail(ctx, "Connection failed", err)
		}
	}()

	platform := c.Platform()
	now := c.now()
	tx := &social.PendingTransaction{
		UserID:      session.GetUserID(),
		Platform:    platform,
		Nonce:       social.GenerateNonce(),
		RedirectURI: c.redirectURI,
		CreatedAt:   now,
		ExpiresAt:   now.Add(c.pendingTTL),
	}

	if platform.RequiresPKCE() {
		verifier, err := social.GenerateCodeVerifier()
		if err != nil {
			return nil, err
		}
		tx.CodeVerifier = verifier
		opts = append(opts, social.WithPKCE(social.ComputeCodeChallenge(verifier), social.CodeChallengeMethod))
	}
	if c.redirectURI != "" {
		opts = append(opts, social.WithRedirectURI(c.redirectURI))
	}

	state, err := c.states.Encode(&social.OAuthState{
		Nonce:       tx.Nonce,
		Platform:    platform,
		UserID:      tx.UserID,
		RedirectURI: tx.RedirectURI,
		IssuedAt:    now.Unix(),
		ExpiresAt:   tx.ExpiresAt.Unix(),
	})
	if err != nil {
		return nil, err
	}

	if err := c.pending.Put(ctx, tx); err != nil {
		return nil, err
	}

	authURL := c.adapter.AuthCodeURL(state, opts...)
	if err := c.transition(StatusAwaitingCallback, nil); err != nil {
		_ = c.pending.Delete(ctx, tx.UserID, platform)
		return nil, err
	}

	c.logger.Debug("authorization redirect prepared", "platform", platform, "user_id", tx.UserID, "pkce", tx.CodeVerifier != "")
	return &AuthRedirect{
		Platform:  platform,
		URL:       authURL,
		State:     state,
		ExpiresAt: tx.ExpiresAt,
	}, nil
}

// HandleCallback validates the returned state, consumes the pending
// transaction and asks the backend to exchange code. The pending
// transaction is consumed whether or not the exchange succeeds.
func (c *Connector) HandleCallback(ctx context.Context, session flaresync.Session, code, state string) (profile *flaresync.SocialProfile, err error) {
	if err := c.begin(); err != nil {
		return nil, err
	}
	defer c.end()

	if err := checkSession(session); err != nil {
		return nil, c.fail(ctx, "Not signed in", err)
	}

	prevProfile := c.Profile()
	if err := c.transition(StatusExchanging, nil); err != nil {
		return nil, c.fail(ctx, "Connection failed", err)
	}
	defer func() {
		if err != nil {
			if prevProfile != nil && prevProfile.Connected {
				c.revert(StatusConnected)
			} else {
				c.revert(StatusDisconnected)
			}
			err = c.fail(ctx, "Connection failed", err)
		}
	}()

	req, err := c.consume(ctx, session, code, state)
	if err != nil {
		return nil, err
	}

	profile, err = c.backend.Connect(ctx, session.GetAccessToken(), req)
	if err != nil {
		return nil, err
	}

	if err := c.transition(StatusConnected, profile); err != nil {
		return nil, err
	}

	c.notifier.Notify(ctx, Notification{
		Kind:     NotificationSuccess,
		Platform: c.Platform(),
		Title:    "Account connected",
		Message:  fmt.Sprintf("Connected %s account @%s", c.Platform(), profile.Username),
	})
	return profile, nil
}

// CancelCallback handles a provider redirect that carried an error instead
// of a code. It drops the pending transaction and reports reason.
func (c *Connector) CancelCallback(ctx context.Context, session flaresync.Session, reason string) error {
	if err := c.begin(); err != nil {
		return err
	}
	defer c.end()

	if session != nil && session.GetUserID() != "" {
		_ = c.pending.Delete(ctx, session.GetUserID(), c.Platform())
	}

	profile := c.Profile()
	if profile != nil && profile.Connected {
		c.revert(StatusConnected)
	} else {
		c.revert(StatusDisconnected)
	}

	return c.fail(ctx, "Connection cancelled", ErrAuthorizationDenied.Clone().WithMetadata(map[string]any{
		"platform": c.Platform().String(),
		"reason":   reason,
	}))
}

// Disconnect removes the stored credentials. A missing profile fails with
// ErrProfileNotFound and leaves the status untouched.
func (c *Connector) Disconnect(ctx context.Context, session flaresync.Session) (profile *flaresync.SocialProfile, err error) {
	if err := c.begin(); err != nil {
		return nil, err
	}
	defer c.end()

	if err := checkSession(session); err != nil {
		return nil, c.fail(ctx, "Not signed in", err)
	}

	prev := c.Status()
	if !CanTransition(prev, StatusDisconnecting) {
		return nil, c.fail(ctx, "Disconnect failed", ErrInvalidTransition.Clone().WithMetadata(map[string]any{
			"from": string(prev),
			"to":   string(StatusDisconnecting),
		}))
	}

	platform := c.Platform().String()
	if _, err := c.backend.Profile(ctx, session.GetAccessToken(), platform); err != nil {
		return nil, c.fail(ctx, "Disconnect failed", err)
	}

	if err := c.transition(StatusDisconnecting, nil); err != nil {
		return nil, c.fail(ctx, "Disconnect failed", err)
	}

	profile, err = c.backend.Disconnect(ctx, session.GetAccessToken(), platform)
	if err != nil {
		c.revert(prev)
		return nil, c.fail(ctx, "Disconnect failed", err)
	}

	// an abandoned reconnect must not complete after the disconnect
	_ = c.pending.Delete(ctx, session.GetUserID(), c.Platform())

	_ = c.transition(StatusDisconnected, profile)
	c.notifier.Notify(ctx, Notification{
		Kind:     NotificationSuccess,
		Platform: c.Platform(),
		Title:    "Account disconnected",
		Message:  fmt.Sprintf("Disconnected %s account", c.Platform()),
	})
	return profile, nil
}

// SyncData refreshes metrics for a connected profile. It fails with
// ErrNotConnected before any network call when the connector is not
// connected.
func (c *Connector) SyncData(ctx context.Context, session flaresync.Session) (*flaresync.SocialProfile, error) {
	if err := c.begin(); err != nil {
		return nil, err
	}
	defer c.end()

	if err := checkSession(session); err != nil {
		return nil, c.fail(ctx, "Not signed in", err)
	}

	current := c.Profile()
	if c.Status() != StatusConnected || current == nil || !current.Connected {
		return nil, c.fail(ctx, "Sync failed", flaresync.ErrNotConnected)
	}

	profile, err := c.backend.Sync(ctx, session.GetAccessToken(), c.Platform().String())
	if err != nil {
		return nil, c.fail(ctx, "Sync failed", err)
	}

	c.setProfile(profile)
	c.notifier.Notify(ctx, Notification{
		Kind:     NotificationSuccess,
		Platform: c.Platform(),
		Title:    "Metrics synced",
		Message:  fmt.Sprintf("%s metrics updated", c.Platform()),
	})
	return profile, nil
}

// Refresh loads the stored profile and derives the status from it.
func (c *Connector) Refresh(ctx context.Context, session flaresync.Session) (*flaresync.SocialProfile, error) {
	if err := c.begin(); err != nil {
		return nil, err
	}
	defer c.end()

	if err := checkSession(session); err != nil {
		return nil, err
	}

	profile, err := c.backend.Profile(ctx, session.GetAccessToken(), c.Platform().String())
	if err != nil {
		if flaresync.HasTextCode(err, flaresync.TextCodeProfileNotFound) {
			c.seed(nil)
			return nil, nil
		}
		return nil, err
	}

	c.seed(profile)
	return profile, nil
}

// seed applies a profile loaded from storage. A connect still waiting on
// its callback keeps its status unless storage already reports the
// platform connected.
func (c *Connector) seed(profile *flaresync.SocialProfile) {
	connected := profile != nil && profile.Connected
	switch {
	case connected:
		c.revert(StatusConnected)
	case c.pendingConnect():
	default:
		c.revert(StatusDisconnected)
	}
	c.setProfile(profile)
}

func (c *Connector) pendingConnect() bool {
	switch c.Status() {
	case StatusConnecting, StatusAwaitingCallback:
		return true
	}
	return false
}

func (c *Connector) consume(ctx context.Context, session flaresync.Session, code, state string) (exchange.ConnectRequest, error) {
	platform := c.Platform()
	userID := session.GetUserID()

	decoded, decodeErr := c.states.Decode(state)

	// the pending transaction is single use even when the state is rejected
	tx, takeErr := c.pending.Take(ctx, userID, platform)

	if decodeErr != nil {
		return exchange.ConnectRequest{}, decodeErr
	}
	if decoded.Platform != platform || decoded.UserID != userID {
		return exchange.ConnectRequest{}, social.ErrInvalidState
	}
	if takeErr != nil {
		if platform.RequiresPKCE() {
			return exchange.ConnectRequest{}, social.ErrCodeVerifierNotFound
		}
		return exchange.ConnectRequest{}, takeErr
	}
	if tx.Nonce != decoded.Nonce {
		return exchange.ConnectRequest{}, social.ErrInvalidState
	}
	if platform.RequiresPKCE() && tx.CodeVerifier == "" {
		return exchange.ConnectRequest{}, social.ErrCodeVerifierNotFound
	}
	if code == "" {
		return exchange.ConnectRequest{}, ErrInvalidCallback
	}

	return exchange.ConnectRequest{
		Platform:     platform.String(),
		AuthCode:     code,
		CodeVerifier: tx.CodeVerifier,
		RedirectURI:  tx.RedirectURI,
	}, nil
}

func (c *Connector) begin() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.busy {
		return flaresync.ErrOperationInProgress
	}
	c.busy = true
	return nil
}

// end resets the busy flag and delivers queued events outside the lock.
func (c *Connector) end() {
	c.mu.Lock()
	c.busy = false
	events := c.queued
	c.queued = nil
	listeners := append([]Listener(nil), c.listeners...)
	c.mu.Unlock()

	for _, e := range events {
		for _, l := range listeners {
			l(e)
		}
	}
}

func (c *Connector) transition(to Status, profile *flaresync.SocialProfile) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	from := c.status
	if !CanTransition(from, to) {
		return ErrInvalidTransition.Clone().WithMetadata(map[string]any{
			"platform": c.adapter.Platform().String(),
			"from":     string(from),
			"to":       string(to),
		})
	}
	if profile != nil {
		c.profile = profile
	}
	c.move(from, to)
	return nil
}

func (c *Connector) revert(to Status) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.move(c.status, to)
}

// move must be called with mu held.
func (c *Connector) move(from, to Status) {
	c.status = to
	if from == to {
		return
	}
	c.queued = append(c.queued, Event{
		Platform: c.adapter.Platform(),
		From:     from,
		To:       to,
		Profile:  c.profile,
	})
}

func (c *Connector) setProfile(profile *flaresync.SocialProfile) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.profile = profile
}

func (c *Connector) fail(ctx context.Context, title string, err error) error {
	c.logger.Warn("connector operation failed", "platform", c.Platform(), "title", title, "error", err)
	c.notifier.Notify(ctx, Notification{
		Kind:     NotificationError,
		Platform: c.Platform(),
		Title:    title,
		Message:  exchange.ErrorMessage(err),
		Err:      err,
	})
	return err
}

func checkSession(session flaresync.Session) error {
	if session == nil || session.GetAccessToken() == "" || session.GetUserID() == "" {
		return flaresync.ErrNotAuthenticated
	}
	return nil
}
