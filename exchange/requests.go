package exchange

import (
	validation "github.com/go-ozzo/ozzo-validation"
)

// ConnectRequest is the body of a connect call. The user is always taken
// from the verified bearer token, never from the body.
type ConnectRequest struct {
	Platform     string `json:"platform"`
	AuthCode     string `json:"authCode"`
	CodeVerifier string `json:"codeVerifier,omitempty"`
	RedirectURI  string `json:"redirectUri,omitempty"`
}

// Validate checks required fields.
func (r ConnectRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Platform, validation.Required),
		validation.Field(&r.AuthCode, validation.Required, validation.Length(1, 2048)),
		validation.Field(&r.CodeVerifier, validation.Length(43, 128)),
		validation.Field(&r.RedirectURI, validation.Length(0, 2048)),
	)
}

// PlatformRequest is the body of disconnect and sync calls.
type PlatformRequest struct {
	Platform string `json:"platform"`
}

// Validate checks required fields.
func (r PlatformRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Platform, validation.Required),
	)
}
