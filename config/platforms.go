package config

import (
	"github.com/goliatone/flaresync/social"
	"github.com/goliatone/flaresync/social/providers/instagram"
	"github.com/goliatone/flaresync/social/providers/tiktok"
	"github.com/goliatone/flaresync/social/providers/twitch"
	"github.com/goliatone/flaresync/social/providers/twitter"
	"github.com/goliatone/flaresync/social/providers/youtube"
)

// Adapters builds one adapter per platform. Platforms without a client id
// are still returned so they report themselves as unconfigured.
func (c PlatformsConfig) Adapters() []social.PlatformAdapter {
	return []social.PlatformAdapter{
		instagram.New(instagram.Config{
			ClientID:     c.Instagram.ClientID,
			ClientSecret: c.Instagram.ClientSecret,
			RedirectURI:  c.Instagram.RedirectURI,
			Scopes:       c.Instagram.Scopes,
		}),
		tiktok.New(tiktok.Config{
			ClientKey:    c.TikTok.ClientID,
			ClientSecret: c.TikTok.ClientSecret,
			RedirectURI:  c.TikTok.RedirectURI,
			Scopes:       c.TikTok.Scopes,
		}),
		twitter.New(twitter.Config{
			ClientID:     c.Twitter.ClientID,
			ClientSecret: c.Twitter.ClientSecret,
			RedirectURI:  c.Twitter.RedirectURI,
			Scopes:       c.Twitter.Scopes,
		}),
		youtube.New(youtube.Config{
			ClientID:     c.YouTube.ClientID,
			ClientSecret: c.YouTube.ClientSecret,
			RedirectURI:  c.YouTube.RedirectURI,
			Scopes:       c.YouTube.Scopes,
		}),
		twitch.New(twitch.Config{
			ClientID:     c.Twitch.ClientID,
			ClientSecret: c.Twitch.ClientSecret,
			RedirectURI:  c.Twitch.RedirectURI,
			Scopes:       c.Twitch.Scopes,
		}),
	}
}

// Registry builds a registry over Adapters.
func (c PlatformsConfig) Registry() *social.Registry {
	return social.NewRegistry(c.Adapters()...)
}
