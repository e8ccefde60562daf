package twitter

import (
	"github.com/goliatone/flaresync"
	"github.com/goliatone/flaresync/social"
)

type twitterUser struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Username        string `json:"username"`
	ProfileImageURL string `json:"profile_image_url"`
	PublicMetrics   struct {
		FollowersCount int64 `json:"followers_count"`
		FollowingCount int64 `json:"following_count"`
		TweetCount     int64 `json:"tweet_count"`
		ListedCount    int64 `json:"listed_count"`
	} `json:"public_metrics"`
}

type twitterUserResponse struct {
	Data twitterUser `json:"data"`
}

type twitterTweet struct {
	ID            string `json:"id"`
	PublicMetrics struct {
		LikeCount    int64 `json:"like_count"`
		RetweetCount int64 `json:"retweet_count"`
		ReplyCount   int64 `json:"reply_count"`
		QuoteCount   int64 `json:"quote_count"`
	} `json:"public_metrics"`
}

type twitterTweetsResponse struct {
	Data []twitterTweet `json:"data"`
}

func mapProfile(user *twitterUser, tweets []twitterTweet) *social.PlatformProfile {
	if user == nil {
		return nil
	}

	var interactions int64
	for _, tw := range tweets {
		m := tw.PublicMetrics
		interactions += m.LikeCount + m.RetweetCount + m.ReplyCount + m.QuoteCount
	}

	followers := user.PublicMetrics.FollowersCount

	return &social.PlatformProfile{
		Platform:       flaresync.PlatformTwitter,
		PlatformUserID: user.ID,
		Username:       user.Username,
		DisplayName:    user.Name,
		ProfileURL:     "https://twitter.com/" + user.Username,
		AvatarURL:      user.ProfileImageURL,
		Stats: flaresync.ProfileStats{
			Followers:  followers,
			Posts:      user.PublicMetrics.TweetCount,
			Engagement: social.EngagementRate(interactions, int64(len(tweets)), followers),
			Extra: map[string]any{
				"following": user.PublicMetrics.FollowingCount,
				"listed":    user.PublicMetrics.ListedCount,
			},
		},
	}
}
