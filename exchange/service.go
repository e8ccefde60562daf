// Package exchange is the server side half of a platform connection. It
// trades authorization codes for tokens, encrypts them and keeps the
// social_profiles rows current. Provider secrets never leave this package.
package exchange

import (
	"context"
	"time"

	"github.com/goliatone/flaresync"
	"github.com/goliatone/flaresync/encryption"
	"github.com/goliatone/flaresync/metrics"
	"github.com/goliatone/flaresync/social"
	"github.com/goliatone/go-errors"
)

// Cipher seals and opens individual credential fields.
type Cipher interface {
	EncryptField(plaintext string) *encryption.EncryptedField
	DecryptField(field *encryption.EncryptedField) (string, bool)
}

// Service implements the connect, disconnect and sync backend operations.
type Service struct {
	sessions flaresync.SessionVerifier
	registry *social.Registry
	profiles flaresync.ProfileRepository
	cipher   Cipher

	activity flaresync.ActivitySink
	metrics  *metrics.Metrics
	logger   flaresync.Logger
	breakers *breakers
	now      func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(l flaresync.Logger) Option {
	return func(s *Service) {
		s.logger = flaresync.NormalizeLogger(l)
	}
}

// WithActivitySink sets the activity sink.
func WithActivitySink(sink flaresync.ActivitySink) Option {
	return func(s *Service) {
		s.activity = flaresync.NormalizeActivitySink(sink)
	}
}

// WithMetrics sets the prometheus collectors.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithBreakerConfig overrides the circuit breaker settings.
func WithBreakerConfig(cfg BreakerConfig) Option {
	return func(s *Service) {
		s.breakers.cfg = cfg
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService wires a Service.
func NewService(sessions flaresync.SessionVerifier, registry *social.Registry, profiles flaresync.ProfileRepository, cipher Cipher, opts ...Option) *Service {
	s := &Service{
		sessions: sessions,
		registry: registry,
		profiles: profiles,
		cipher:   cipher,
		activity: flaresync.NormalizeActivitySink(nil),
		logger:   flaresync.DefaultLogger(),
		now:      time.Now,
	}
	s.breakers = newBreakers(DefaultBreakerConfig(), nil, s.logger)

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	s.breakers.metrics = s.metrics
	s.breakers.logger = s.logger
	return s
}

// Connect exchanges req.AuthCode for tokens, loads the account profile and
// stores it with encrypted credentials. Nothing is persisted unless every
// step succeeds.
func (s *Service) Connect(ctx context.Context, bearer string, req ConnectRequest) (profile *flaresync.SocialProfile, err error) {
	session, err := s.verify(ctx, bearer)
	if err != nil {
		return nil, err
	}

	if err := req.Validate(); err != nil {
		return nil, errors.Wrap(err, errors.CategoryValidation, "invalid connect request")
	}

	platform, err := flaresync.ParsePlatform(req.Platform)
	if err != nil {
		return nil, err
	}

	defer func() {
		s.metrics.RecordConnect(platform.String(), err)
		if err != nil {
			s.logger.Error("platform connect failed", "platform", platform, "user_id", session.GetUserID(), "error", err)
			s.record(ctx, flaresync.ActivityEventConnectFailure, session.GetUserID(), platform, map[string]any{"error": err.Error()})
		}
	}()

	adapter, err := s.adapter(platform)
	if err != nil {
		return nil, err
	}

	if platform.RequiresPKCE() && req.CodeVerifier == "" {
		return nil, social.ErrCodeVerifierNotFound
	}

	exchangeOpts := []social.ExchangeOption{}
	if req.CodeVerifier != "" {
		exchangeOpts = append(exchangeOpts, social.WithCodeVerifier(req.CodeVerifier))
	}
	if req.RedirectURI != "" {
		exchangeOpts = append(exchangeOpts, social.WithExchangeRedirectURI(req.RedirectURI))
	}

	started := s.now()
	token, err := execute(s.breakers, platform, func() (*social.Token, error) {
		return adapter.Exchange(ctx, req.AuthCode, exchangeOpts...)
	})
	s.metrics.ObserveExchange(platform.String(), s.now().Sub(started))
	if err != nil {
		return nil, social.WrapProviderError(social.ErrTokenExchangeFailed, platform.String(), "exchange", err)
	}
	if token == nil || token.AccessToken == "" {
		return nil, social.ErrTokenExchangeFailed
	}

	remote, err := execute(s.breakers, platform, func() (*social.PlatformProfile, error) {
		return adapter.FetchProfile(ctx, token)
	})
	if err != nil {
		return nil, social.WrapProviderError(social.ErrProfileFetchFailed, platform.String(), "profile", err)
	}
	if remote == nil {
		return nil, social.ErrProfileFetchFailed
	}

	record, err := s.buildProfile(session.GetUserID(), platform, token, remote)
	if err != nil {
		return nil, err
	}

	stored, err := s.profiles.Upsert(ctx, record)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to store social profile")
	}

	s.logger.Info("platform connected", "platform", platform, "user_id", session.GetUserID(), "username", stored.Username)
	s.record(ctx, flaresync.ActivityEventConnectSuccess, session.GetUserID(), platform, map[string]any{
		"platform_user_id": stored.PlatformUserID,
		"username":         stored.Username,
	})

	return stored, nil
}

// Disconnect revokes the stored grant where the provider supports it and
// erases the stored credentials. Revocation failures are logged, not
// returned.
func (s *Service) Disconnect(ctx context.Context, bearer, platformName string) (profile *flaresync.SocialProfile, err error) {
	session, platform, err := s.resolve(ctx, bearer, platformName)
	if err != nil {
		return nil, err
	}
	defer func() {
		s.metrics.RecordDisconnect(platform.String(), err)
	}()

	existing, err := s.profiles.FindByUserAndPlatform(ctx, session.GetUserID(), platform)
	if err != nil {
		return nil, err
	}

	if existing.HasCredentials() {
		s.revoke(ctx, session.GetUserID(), platform, existing)
	}

	cleared, err := s.profiles.ClearCredentials(ctx, session.GetUserID(), platform)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to clear social profile credentials")
	}

	s.logger.Info("platform disconnected", "platform", platform, "user_id", session.GetUserID())
	s.record(ctx, flaresync.ActivityEventDisconnect, session.GetUserID(), platform, nil)

	return cleared, nil
}

// Sync refreshes follower and engagement metrics for a connected profile.
func (s *Service) Sync(ctx context.Context, bearer, platformName string) (profile *flaresync.SocialProfile, err error) {
	session, platform, err := s.resolve(ctx, bearer, platformName)
	if err != nil {
		return nil, err
	}
	defer func() {
		s.metrics.RecordSync(platform.String(), err)
		if err != nil {
			s.record(ctx, flaresync.ActivityEventSyncFailure, session.GetUserID(), platform, map[string]any{"error": err.Error()})
		}
	}()

	existing, err := s.profiles.FindByUserAndPlatform(ctx, session.GetUserID(), platform)
	if err != nil {
		return nil, err
	}
	if !existing.Connected || !existing.HasCredentials() {
		return nil, flaresync.ErrNotConnected
	}

	adapter, err := s.adapter(platform)
	if err != nil {
		return nil, err
	}

	token, err := s.openToken(existing)
	if err != nil {
		return nil, err
	}

	remote, err := execute(s.breakers, platform, func() (*social.PlatformProfile, error) {
		return adapter.FetchProfile(ctx, token)
	})
	if err != nil {
		return nil, social.WrapProviderError(social.ErrProfileFetchFailed, platform.String(), "sync", err)
	}
	if remote == nil {
		return nil, social.ErrProfileFetchFailed
	}

	updated, err := s.profiles.UpdateStats(ctx, session.GetUserID(), platform, remote.Stats, s.now())
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to store synced metrics")
	}

	s.record(ctx, flaresync.ActivityEventSyncSuccess, session.GetUserID(), platform, map[string]any{
		"followers": updated.Followers,
	})
	return updated, nil
}

// Profile returns the stored profile for platform.
func (s *Service) Profile(ctx context.Context, bearer, platformName string) (*flaresync.SocialProfile, error) {
	session, platform, err := s.resolve(ctx, bearer, platformName)
	if err != nil {
		return nil, err
	}
	return s.profiles.FindByUserAndPlatform(ctx, session.GetUserID(), platform)
}

// Profiles returns every stored profile of the caller.
func (s *Service) Profiles(ctx context.Context, bearer string) ([]*flaresync.SocialProfile, error) {
	session, err := s.verify(ctx, bearer)
	if err != nil {
		return nil, err
	}
	return s.profiles.FindByUserID(ctx, session.GetUserID())
}

func (s *Service) verify(ctx context.Context, bearer string) (flaresync.Session, error) {
	if s.sessions == nil {
		return nil, flaresync.ErrNotAuthenticated
	}
	session, err := s.sessions.Verify(ctx, bearer)
	if err != nil {
		return nil, err
	}
	if session == nil || session.GetUserID() == "" {
		return nil, flaresync.ErrInvalidSession
	}
	return session, nil
}

func (s *Service) resolve(ctx context.Context, bearer, platformName string) (flaresync.Session, flaresync.Platform, error) {
	session, err := s.verify(ctx, bearer)
	if err != nil {
		return nil, "", err
	}

	if err := (PlatformRequest{Platform: platformName}).Validate(); err != nil {
		return nil, "", errors.Wrap(err, errors.CategoryValidation, "invalid platform request")
	}

	platform, err := flaresync.ParsePlatform(platformName)
	if err != nil {
		return nil, "", err
	}
	return session, platform, nil
}

func (s *Service) adapter(platform flaresync.Platform) (social.PlatformAdapter, error) {
	if s.registry == nil {
		return nil, flaresync.ErrUnsupportedPlatform
	}
	adapter, err := s.registry.Get(platform)
	if err != nil {
		return nil, flaresync.ErrUnsupportedPlatform
	}
	if !social.IsConfigured(adapter) {
		return nil, flaresync.ErrMissingConfiguration
	}
	return adapter, nil
}

func (s *Service) buildProfile(userID string, platform flaresync.Platform, token *social.Token, remote *social.PlatformProfile) (*flaresync.SocialProfile, error) {
	if s.cipher == nil {
		return nil, flaresync.ErrEncryptionUnavailable
	}

	access := s.cipher.EncryptField(token.AccessToken)
	if access == nil {
		return nil, flaresync.ErrEncryptionUnavailable
	}

	profile := &flaresync.SocialProfile{
		UserID:               userID,
		Platform:             platform,
		PlatformUserID:       remote.PlatformUserID,
		Username:             remote.Username,
		DisplayName:          remote.DisplayName,
		ProfileURL:           remote.ProfileURL,
		AvatarURL:            remote.AvatarURL,
		Connected:            true,
		Scopes:               token.Scopes,
		AccessTokenEncrypted: access.Ciphertext,
		AccessTokenIV:        access.IV,
	}

	if token.RefreshToken != "" {
		refresh := s.cipher.EncryptField(token.RefreshToken)
		if refresh == nil {
			return nil, flaresync.ErrEncryptionUnavailable
		}
		profile.RefreshTokenEncrypted = refresh.Ciphertext
		profile.RefreshTokenIV = refresh.IV
	}

	if !token.ExpiresAt.IsZero() {
		expiresAt := token.ExpiresAt.UTC()
		profile.TokenExpiresAt = &expiresAt
	}

	profile.ApplyStats(remote.Stats, s.now())
	return profile, nil
}

func (s *Service) openToken(profile *flaresync.SocialProfile) (*social.Token, error) {
	if s.cipher == nil {
		return nil, flaresync.ErrEncryptionUnavailable
	}

	access, ok := s.cipher.DecryptField(&encryption.EncryptedField{
		Ciphertext: profile.AccessTokenEncrypted,
		IV:         profile.AccessTokenIV,
	})
	if !ok {
		return nil, flaresync.ErrEncryptionUnavailable
	}

	token := &social.Token{AccessToken: access, Scopes: profile.Scopes}
	if profile.TokenExpiresAt != nil {
		token.ExpiresAt = *profile.TokenExpiresAt
	}

	if profile.RefreshTokenEncrypted != "" && profile.RefreshTokenIV != "" {
		if refresh, ok := s.cipher.DecryptField(&encryption.EncryptedField{
			Ciphertext: profile.RefreshTokenEncrypted,
			IV:         profile.RefreshTokenIV,
		}); ok {
			token.RefreshToken = refresh
		}
	}
	return token, nil
}

func (s *Service) revoke(ctx context.Context, userID string, platform flaresync.Platform, profile *flaresync.SocialProfile) {
	adapter, err := s.adapter(platform)
	if err != nil {
		return
	}
	revoker, ok := adapter.(social.Revoker)
	if !ok {
		return
	}

	token, err := s.openToken(profile)
	if err != nil {
		s.logger.Warn("skipping token revocation, credentials could not be decrypted", "platform", platform, "user_id", userID)
		return
	}

	_, err = execute(s.breakers, platform, func() (struct{}, error) {
		return struct{}{}, revoker.Revoke(ctx, token)
	})
	if err != nil {
		wrapped := social.WrapProviderError(social.ErrRevokeFailed, platform.String(), "revoke", err)
		s.logger.Warn("token revocation failed", "platform", platform, "user_id", userID, "error", wrapped)
		s.record(ctx, flaresync.ActivityEventRevocationFailure, userID, platform, map[string]any{"error": err.Error()})
	}
}

func (s *Service) record(ctx context.Context, eventType flaresync.ActivityEventType, userID string, platform flaresync.Platform, metadata map[string]any) {
	event := flaresync.ActivityEvent{
		EventType:  eventType,
		UserID:     userID,
		Platform:   platform,
		Metadata:   metadata,
		OccurredAt: s.now().UTC(),
	}
	if err := s.activity.Record(ctx, event); err != nil {
		s.logger.Warn("failed to record activity event", "event", string(eventType), "error", err)
	}
}
