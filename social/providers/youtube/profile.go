package youtube

import (
	"strconv"

	"github.com/goliatone/flaresync"
	"github.com/goliatone/flaresync/social"
)

type channel struct {
	ID      string `json:"id"`
	Snippet struct {
		Title       string `json:"title"`
		CustomURL   string `json:"customUrl"`
		Description string `json:"description"`
		Thumbnails  map[string]struct {
			URL string `json:"url"`
		} `json:"thumbnails"`
	} `json:"snippet"`
	// counts are reported as decimal strings
	Statistics struct {
		ViewCount             string `json:"viewCount"`
		SubscriberCount       string `json:"subscriberCount"`
		HiddenSubscriberCount bool   `json:"hiddenSubscriberCount"`
		VideoCount            string `json:"videoCount"`
	} `json:"statistics"`
}

type channelListResponse struct {
	Items []channel `json:"items"`
}

func mapProfile(ch *channel) *social.PlatformProfile {
	if ch == nil {
		return nil
	}

	subscribers := parseCount(ch.Statistics.SubscriberCount)
	videos := parseCount(ch.Statistics.VideoCount)
	views := parseCount(ch.Statistics.ViewCount)

	profileURL := "https://www.youtube.com/channel/" + ch.ID
	username := ch.Snippet.CustomURL
	if username != "" {
		profileURL = "https://www.youtube.com/" + username
	} else {
		username = ch.Snippet.Title
	}

	return &social.PlatformProfile{
		Platform:       flaresync.PlatformYouTube,
		PlatformUserID: ch.ID,
		Username:       username,
		DisplayName:    ch.Snippet.Title,
		ProfileURL:     profileURL,
		AvatarURL:      thumbnail(ch),
		Stats: flaresync.ProfileStats{
			Followers:  subscribers,
			Posts:      videos,
			Engagement: social.EngagementRate(views, videos, subscribers),
			Extra: map[string]any{
				"views":              views,
				"hidden_subscribers": ch.Statistics.HiddenSubscriberCount,
			},
		},
	}
}

func thumbnail(ch *channel) string {
	for _, size := range []string{"high", "medium", "default"} {
		if t, ok := ch.Snippet.Thumbnails[size]; ok && t.URL != "" {
			return t.URL
		}
	}
	return ""
}

func parseCount(v string) int64 {
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
