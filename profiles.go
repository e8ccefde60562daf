package flaresync

import (
	"context"
	"time"
)

// ProfileRepository persists SocialProfile rows keyed by (user, platform).
// Lookups that find nothing return ErrProfileNotFound.
type ProfileRepository interface {
	FindByUserAndPlatform(ctx context.Context, userID string, platform Platform) (*SocialProfile, error)
	FindByUserID(ctx context.Context, userID string) ([]*SocialProfile, error)
	Upsert(ctx context.Context, profile *SocialProfile) (*SocialProfile, error)
	UpdateStats(ctx context.Context, userID string, platform Platform, stats ProfileStats, syncedAt time.Time) (*SocialProfile, error)
	ClearCredentials(ctx context.Context, userID string, platform Platform) (*SocialProfile, error)
}
