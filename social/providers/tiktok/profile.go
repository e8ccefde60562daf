package tiktok

import (
	"github.com/goliatone/flaresync"
	"github.com/goliatone/flaresync/social"
)

type tiktokUser struct {
	OpenID          string `json:"open_id"`
	UnionID         string `json:"union_id"`
	AvatarURL       string `json:"avatar_url"`
	DisplayName     string `json:"display_name"`
	Username        string `json:"username"`
	ProfileDeepLink string `json:"profile_deep_link"`
	FollowerCount   int64  `json:"follower_count"`
	FollowingCount  int64  `json:"following_count"`
	LikesCount      int64  `json:"likes_count"`
	VideoCount      int64  `json:"video_count"`
}

type tiktokAPIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	LogID   string `json:"log_id"`
}

type tiktokUserResponse struct {
	Data struct {
		User tiktokUser `json:"user"`
	} `json:"data"`
	Error tiktokAPIError `json:"error"`
}

func mapProfile(user *tiktokUser) *social.PlatformProfile {
	if user == nil {
		return nil
	}

	profileURL := user.ProfileDeepLink
	if profileURL == "" && user.Username != "" {
		profileURL = "https://www.tiktok.com/@" + user.Username
	}

	username := user.Username
	if username == "" {
		username = user.DisplayName
	}

	return &social.PlatformProfile{
		Platform:       flaresync.PlatformTikTok,
		PlatformUserID: user.OpenID,
		Username:       username,
		DisplayName:    user.DisplayName,
		ProfileURL:     profileURL,
		AvatarURL:      user.AvatarURL,
		Stats: flaresync.ProfileStats{
			Followers:  user.FollowerCount,
			Posts:      user.VideoCount,
			Engagement: social.EngagementRate(user.LikesCount, user.VideoCount, user.FollowerCount),
			Extra: map[string]any{
				"following": user.FollowingCount,
				"likes":     user.LikesCount,
			},
		},
		Raw: map[string]any{
			"open_id":  user.OpenID,
			"union_id": user.UnionID,
		},
	}
}
