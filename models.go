package flaresync

import (
	"time"
)

// SocialProfile is one connected (or previously connected) account owned by
// a user. There is at most one profile per (user, platform).
//
// Token material only ever lives in the ciphertext/iv pairs and is never
// serialized to JSON.
type SocialProfile struct {
	ID             string         `json:"id"`
	UserID         string         `json:"user_id"`
	Platform       Platform       `json:"platform"`
	PlatformUserID string         `json:"platform_user_id,omitempty"`
	Username       string         `json:"username"`
	DisplayName    string         `json:"display_name,omitempty"`
	ProfileURL     string         `json:"profile_url,omitempty"`
	AvatarURL      string         `json:"avatar_url,omitempty"`
	Connected      bool           `json:"connected"`
	Scopes         []string       `json:"scopes,omitempty"`
	Followers      int64          `json:"followers"`
	Posts          int64          `json:"posts"`
	Engagement     float64        `json:"engagement"`
	Stats          map[string]any `json:"stats,omitempty"`
	LastSynced     *time.Time     `json:"last_synced,omitempty"`
	TokenExpiresAt *time.Time     `json:"token_expires_at,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`

	AccessTokenEncrypted  string `json:"-"`
	AccessTokenIV         string `json:"-"`
	RefreshTokenEncrypted string `json:"-"`
	RefreshTokenIV        string `json:"-"`
}

// ProfileStats is a metrics snapshot pulled from a provider.
type ProfileStats struct {
	Followers  int64
	Posts      int64
	Engagement float64
	Extra      map[string]any
}

// HasCredentials reports whether an encrypted access token is stored.
func (p *SocialProfile) HasCredentials() bool {
	if p == nil {
		return false
	}
	return p.AccessTokenEncrypted != "" && p.AccessTokenIV != ""
}

// ClearCredentials erases all ciphertext and marks the profile disconnected.
func (p *SocialProfile) ClearCredentials() {
	if p == nil {
		return
	}
	p.Connected = false
	p.AccessTokenEncrypted = ""
	p.AccessTokenIV = ""
	p.RefreshTokenEncrypted = ""
	p.RefreshTokenIV = ""
	p.TokenExpiresAt = nil
}

// ApplyStats copies a stats snapshot onto the profile.
func (p *SocialProfile) ApplyStats(stats ProfileStats, syncedAt time.Time) {
	if p == nil {
		return
	}
	p.Followers = stats.Followers
	p.Posts = stats.Posts
	p.Engagement = stats.Engagement

	merged := map[string]any{
		"followers":  stats.Followers,
		"posts":      stats.Posts,
		"engagement": stats.Engagement,
	}
	for k, v := range stats.Extra {
		merged[k] = v
	}
	p.Stats = merged

	at := syncedAt.UTC()
	p.LastSynced = &at
}
