package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/goliatone/flaresync"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// SocialProfileModel is the Bun model for social profiles.
type SocialProfileModel struct {
	bun.BaseModel `bun:"table:social_profiles"`

	ID                    uuid.UUID      `bun:"id,pk,nullzero,type:uuid"`
	UserID                string         `bun:"user_id,notnull"`
	Platform              string         `bun:"platform,notnull"`
	PlatformUserID        string         `bun:"platform_user_id"`
	Username              string         `bun:"username"`
	DisplayName           string         `bun:"display_name"`
	ProfileURL            string         `bun:"profile_url"`
	AvatarURL             string         `bun:"avatar_url"`
	Connected             bool           `bun:"connected,notnull"`
	AccessTokenEncrypted  string         `bun:"access_token_encrypted"`
	AccessTokenIV         string         `bun:"access_token_iv"`
	RefreshTokenEncrypted string         `bun:"refresh_token_encrypted"`
	RefreshTokenIV        string         `bun:"refresh_token_iv"`
	TokenExpiresAt        *time.Time     `bun:"token_expires_at"`
	Scopes                []string       `bun:"scopes,type:text"`
	Followers             int64          `bun:"followers,notnull"`
	Posts                 int64          `bun:"posts,notnull"`
	Engagement            float64        `bun:"engagement,notnull"`
	Stats                 map[string]any `bun:"stats,type:text"`
	LastSynced            *time.Time     `bun:"last_synced"`
	CreatedAt             time.Time      `bun:"created_at,notnull"`
	UpdatedAt             time.Time      `bun:"updated_at,notnull"`
}

// SocialProfileRepository implements flaresync.ProfileRepository using Bun.
type SocialProfileRepository struct {
	db bun.IDB
}

var _ flaresync.ProfileRepository = (*SocialProfileRepository)(nil)

// NewSocialProfileRepository creates a new repository. db may be a *bun.DB
// or a bun.Tx.
func NewSocialProfileRepository(db bun.IDB) *SocialProfileRepository {
	return &SocialProfileRepository{db: db}
}

// FindByUserAndPlatform implements flaresync.ProfileRepository.
func (r *SocialProfileRepository) FindByUserAndPlatform(ctx context.Context, userID string, platform flaresync.Platform) (*flaresync.SocialProfile, error) {
	model, err := r.find(ctx, userID, platform)
	if err != nil {
		return nil, err
	}
	return toSocialProfile(model), nil
}

// FindByUserID implements flaresync.ProfileRepository.
func (r *SocialProfileRepository) FindByUserID(ctx context.Context, userID string) ([]*flaresync.SocialProfile, error) {
	var models []SocialProfileModel
	err := r.db.NewSelect().
		Model(&models).
		Where("user_id = ?", userID).
		Order("platform ASC").
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return []*flaresync.SocialProfile{}, nil
		}
		return nil, err
	}

	profiles := make([]*flaresync.SocialProfile, len(models))
	for i := range models {
		profiles[i] = toSocialProfile(&models[i])
	}
	return profiles, nil
}

// Upsert implements flaresync.ProfileRepository. A reconnect overwrites the
// existing row for (user_id, platform) and keeps its id and created_at.
func (r *SocialProfileRepository) Upsert(ctx context.Context, profile *flaresync.SocialProfile) (*flaresync.SocialProfile, error) {
	if profile == nil {
		return nil, errors.New("social profile is required")
	}

	model := fromSocialProfile(profile)
	now := time.Now().UTC()
	if model.CreatedAt.IsZero() {
		model.CreatedAt = now
	}
	model.UpdatedAt = now

	_, err := r.db.NewInsert().
		Model(model).
		On("CONFLICT (user_id, platform) DO UPDATE").
		Set("platform_user_id = EXCLUDED.platform_user_id").
		Set("username = EXCLUDED.username").
		Set("display_name = EXCLUDED.display_name").
		Set("profile_url = EXCLUDED.profile_url").
		Set("avatar_url = EXCLUDED.avatar_url").
		Set("connected = EXCLUDED.connected").
		Set("access_token_encrypted = EXCLUDED.access_token_encrypted").
		Set("access_token_iv = EXCLUDED.access_token_iv").
		Set("refresh_token_encrypted = EXCLUDED.refresh_token_encrypted").
		Set("refresh_token_iv = EXCLUDED.refresh_token_iv").
		Set("token_expires_at = EXCLUDED.token_expires_at").
		Set("scopes = EXCLUDED.scopes").
		Set("followers = EXCLUDED.followers").
		Set("posts = EXCLUDED.posts").
		Set("engagement = EXCLUDED.engagement").
		Set("stats = EXCLUDED.stats").
		Set("last_synced = EXCLUDED.last_synced").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return nil, err
	}

	return r.FindByUserAndPlatform(ctx, profile.UserID, profile.Platform)
}

// UpdateStats implements flaresync.ProfileRepository.
func (r *SocialProfileRepository) UpdateStats(ctx context.Context, userID string, platform flaresync.Platform, stats flaresync.ProfileStats, syncedAt time.Time) (*flaresync.SocialProfile, error) {
	model, err := r.find(ctx, userID, platform)
	if err != nil {
		return nil, err
	}

	profile := toSocialProfile(model)
	profile.ApplyStats(stats, syncedAt)

	updated := fromSocialProfile(profile)
	updated.UpdatedAt = time.Now().UTC()

	_, err = r.db.NewUpdate().
		Model(updated).
		Column("followers", "posts", "engagement", "stats", "last_synced", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return nil, err
	}

	return toSocialProfile(updated), nil
}

// ClearCredentials implements flaresync.ProfileRepository. It erases every
// ciphertext column and flips connected off in a single statement.
func (r *SocialProfileRepository) ClearCredentials(ctx context.Context, userID string, platform flaresync.Platform) (*flaresync.SocialProfile, error) {
	model, err := r.find(ctx, userID, platform)
	if err != nil {
		return nil, err
	}

	profile := toSocialProfile(model)
	profile.ClearCredentials()

	cleared := fromSocialProfile(profile)
	cleared.UpdatedAt = time.Now().UTC()

	_, err = r.db.NewUpdate().
		Model(cleared).
		Column(
			"connected",
			"access_token_encrypted",
			"access_token_iv",
			"refresh_token_encrypted",
			"refresh_token_iv",
			"token_expires_at",
			"updated_at",
		).
		WherePK().
		Exec(ctx)
	if err != nil {
		return nil, err
	}

	return toSocialProfile(cleared), nil
}

func (r *SocialProfileRepository) find(ctx context.Context, userID string, platform flaresync.Platform) (*SocialProfileModel, error) {
	var model SocialProfileModel
	err := r.db.NewSelect().
		Model(&model).
		Where("user_id = ? AND platform = ?", userID, platform.String()).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, flaresync.ErrProfileNotFound
		}
		return nil, err
	}
	return &model, nil
}

func toSocialProfile(m *SocialProfileModel) *flaresync.SocialProfile {
	if m == nil {
		return nil
	}
	return &flaresync.SocialProfile{
		ID:                    m.ID.String(),
		UserID:                m.UserID,
		Platform:              flaresync.Platform(m.Platform),
		PlatformUserID:        m.PlatformUserID,
		Username:              m.Username,
		DisplayName:           m.DisplayName,
		ProfileURL:            m.ProfileURL,
		AvatarURL:             m.AvatarURL,
		Connected:             m.Connected,
		Scopes:                m.Scopes,
		Followers:             m.Followers,
		Posts:                 m.Posts,
		Engagement:            m.Engagement,
		Stats:                 m.Stats,
		LastSynced:            m.LastSynced,
		TokenExpiresAt:        m.TokenExpiresAt,
		CreatedAt:             m.CreatedAt,
		UpdatedAt:             m.UpdatedAt,
		AccessTokenEncrypted:  m.AccessTokenEncrypted,
		AccessTokenIV:         m.AccessTokenIV,
		RefreshTokenEncrypted: m.RefreshTokenEncrypted,
		RefreshTokenIV:        m.RefreshTokenIV,
	}
}

func fromSocialProfile(p *flaresync.SocialProfile) *SocialProfileModel {
	id := parseUUID(p.ID)
	if id == uuid.Nil {
		id = uuid.New()
	}

	stats := p.Stats
	if stats == nil {
		stats = map[string]any{}
	}
	scopes := p.Scopes
	if scopes == nil {
		scopes = []string{}
	}

	return &SocialProfileModel{
		ID:                    id,
		UserID:                p.UserID,
		Platform:              p.Platform.String(),
		PlatformUserID:        p.PlatformUserID,
		Username:              p.Username,
		DisplayName:           p.DisplayName,
		ProfileURL:            p.ProfileURL,
		AvatarURL:             p.AvatarURL,
		Connected:             p.Connected,
		AccessTokenEncrypted:  p.AccessTokenEncrypted,
		AccessTokenIV:         p.AccessTokenIV,
		RefreshTokenEncrypted: p.RefreshTokenEncrypted,
		RefreshTokenIV:        p.RefreshTokenIV,
		TokenExpiresAt:        p.TokenExpiresAt,
		Scopes:                scopes,
		Followers:             p.Followers,
		Posts:                 p.Posts,
		Engagement:            p.Engagement,
		Stats:                 stats,
		LastSynced:            p.LastSynced,
		CreatedAt:             p.CreatedAt,
		UpdatedAt:             p.UpdatedAt,
	}
}

func parseUUID(v string) uuid.UUID {
	if v == "" {
		return uuid.Nil
	}
	parsed, err := uuid.Parse(v)
	if err != nil {
		return uuid.Nil
	}
	return parsed
}
