package instagram

import (
	"github.com/goliatone/flaresync"
	"github.com/goliatone/flaresync/social"
)

type instagramUser struct {
	ID                string `json:"id"`
	UserID            string `json:"user_id"`
	Username          string `json:"username"`
	Name              string `json:"name"`
	AccountType       string `json:"account_type"`
	ProfilePictureURL string `json:"profile_picture_url"`
	FollowersCount    int64  `json:"followers_count"`
	FollowsCount      int64  `json:"follows_count"`
	MediaCount        int64  `json:"media_count"`
}

type instagramMedia struct {
	ID            string `json:"id"`
	LikeCount     int64  `json:"like_count"`
	CommentsCount int64  `json:"comments_count"`
}

type instagramMediaPage struct {
	Data []instagramMedia `json:"data"`
}

func mapProfile(user *instagramUser, media []instagramMedia) *social.PlatformProfile {
	if user == nil {
		return nil
	}

	var interactions int64
	for _, m := range media {
		interactions += m.LikeCount + m.CommentsCount
	}

	id := user.UserID
	if id == "" {
		id = user.ID
	}

	return &social.PlatformProfile{
		Platform:       flaresync.PlatformInstagram,
		PlatformUserID: id,
		Username:       user.Username,
		DisplayName:    user.Name,
		ProfileURL:     "https://www.instagram.com/" + user.Username,
		AvatarURL:      user.ProfilePictureURL,
		Stats: flaresync.ProfileStats{
			Followers:  user.FollowersCount,
			Posts:      user.MediaCount,
			Engagement: social.EngagementRate(interactions, int64(len(media)), user.FollowersCount),
			Extra: map[string]any{
				"following":     user.FollowsCount,
				"account_type":  user.AccountType,
				"sampled_media": len(media),
				"interactions":  interactions,
			},
		},
		Raw: map[string]any{
			"id":       id,
			"username": user.Username,
			"name":     user.Name,
		},
	}
}
