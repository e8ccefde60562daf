package connector

import (
	"net/url"
	"strings"
)

// callbackParams are stripped from the URL once a callback is handled so a
// back navigation or bookmark cannot replay it.
var callbackParams = []string{
	"code",
	"state",
	"platform",
	"scope",
	"error",
	"error_description",
	"error_reason",
	"success",
}

// Callback is the OAuth data carried by a provider redirect.
type Callback struct {
	Code             string
	State            string
	Platform         string
	Error            string
	ErrorDescription string
	Success          bool
}

// Denied reports whether the provider returned an error instead of a code.
func (c *Callback) Denied() bool {
	return c != nil && c.Error != ""
}

// ParseCallback extracts the OAuth parameters from rawURL.
func ParseCallback(rawURL string) (*Callback, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, ErrInvalidCallback.Clone().WithMetadata(map[string]any{"error": err.Error()})
	}

	q := u.Query()
	cb := &Callback{
		Code:             q.Get("code"),
		State:            q.Get("state"),
		Platform:         strings.ToLower(strings.TrimSpace(q.Get("platform"))),
		Error:            q.Get("error"),
		ErrorDescription: q.Get("error_description"),
		Success:          q.Get("success") == "true",
	}

	if cb.Error == "" && (cb.Code == "" || cb.State == "") {
		return nil, ErrInvalidCallback
	}
	return cb, nil
}

// ScrubCallbackURL returns rawURL without the OAuth parameters.
func ScrubCallbackURL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", ErrInvalidCallback.Clone().WithMetadata(map[string]any{"error": err.Error()})
	}

	q := u.Query()
	for _, p := range callbackParams {
		q.Del(p)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
