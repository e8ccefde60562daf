package twitch

import (
	"github.com/goliatone/flaresync"
	"github.com/goliatone/flaresync/social"
)

type helixUser struct {
	ID              string `json:"id"`
	Login           string `json:"login"`
	DisplayName     string `json:"display_name"`
	BroadcasterType string `json:"broadcaster_type"`
	ProfileImageURL string `json:"profile_image_url"`
	ViewCount       int64  `json:"view_count"`
}

type helixUsersResponse struct {
	Data []helixUser `json:"data"`
}

type helixFollowersResponse struct {
	Total int64 `json:"total"`
}

func mapProfile(user *helixUser, followers int64) *social.PlatformProfile {
	if user == nil {
		return nil
	}

	return &social.PlatformProfile{
		Platform:       flaresync.PlatformTwitch,
		PlatformUserID: user.ID,
		Username:       user.Login,
		DisplayName:    user.DisplayName,
		ProfileURL:     "https://www.twitch.tv/" + user.Login,
		AvatarURL:      user.ProfileImageURL,
		Stats: flaresync.ProfileStats{
			Followers: followers,
			Extra: map[string]any{
				"broadcaster_type": user.BroadcasterType,
				"views":            user.ViewCount,
			},
		},
	}
}
