package flaresync

import "strings"

// Platform identifies a supported social network.
type Platform string

const (
	PlatformInstagram Platform = "instagram"
	PlatformTikTok    Platform = "tiktok"
	PlatformTwitter   Platform = "twitter"
	PlatformYouTube   Platform = "youtube"
	PlatformTwitch    Platform = "twitch"
)

// Platforms returns every supported platform in display order.
func Platforms() []Platform {
	return []Platform{
		PlatformInstagram,
		PlatformTikTok,
		PlatformTwitter,
		PlatformYouTube,
		PlatformTwitch,
	}
}

// ParsePlatform normalizes name and checks it against the supported set.
func ParsePlatform(name string) (Platform, error) {
	p := Platform(strings.ToLower(strings.TrimSpace(name)))
	if !p.Valid() {
		return "", ErrUnsupportedPlatform
	}
	return p, nil
}

// Valid reports whether p is a supported platform.
func (p Platform) Valid() bool {
	switch p {
	case PlatformInstagram, PlatformTikTok, PlatformTwitter, PlatformYouTube, PlatformTwitch:
		return true
	}
	return false
}

// RequiresPKCE reports whether the platform flow carries a code verifier.
func (p Platform) RequiresPKCE() bool {
	return p == PlatformTwitter
}

func (p Platform) String() string {
	return string(p)
}
