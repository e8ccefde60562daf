package social

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/goliatone/flaresync"
	"golang.org/x/oauth2"
)

// ExchangeWithConfig runs an authorization code exchange through
// golang.org/x/oauth2 and normalizes the result.
func ExchangeWithConfig(ctx context.Context, platform flaresync.Platform, cfg *oauth2.Config, client *http.Client, code string, ex ExchangeConfig) (*Token, error) {
	if cfg == nil {
		return nil, &ProviderError{Platform: platform.String(), Operation: "exchange", Code: "not_configured"}
	}
	if client != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, client)
	}

	c := *cfg
	if ex.RedirectURI != "" {
		c.RedirectURL = ex.RedirectURI
	}

	var opts []oauth2.AuthCodeOption
	if ex.CodeVerifier != "" {
		opts = append(opts, oauth2.VerifierOption(ex.CodeVerifier))
	}

	tok, err := c.Exchange(ctx, code, opts...)
	if err != nil {
		return nil, ProviderErrorFromOAuth2(platform, "exchange", err)
	}
	return TokenFromOAuth2(tok), nil
}

// TokenFromOAuth2 converts an oauth2 token. Scope may be reported as a space
// or comma separated string, or as a JSON array.
func TokenFromOAuth2(tok *oauth2.Token) *Token {
	if tok == nil {
		return nil
	}

	raw := map[string]any{}
	for _, key := range []string{"scope", "user_id", "open_id", "refresh_expires_in"} {
		if v := tok.Extra(key); v != nil {
			raw[key] = v
		}
	}

	out := &Token{
		AccessToken:  tok.AccessToken,
		TokenType:    tok.TokenType,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    tok.Expiry,
		Scopes:       scopesFromExtra(tok.Extra("scope")),
		Raw:          raw,
	}
	return out
}

// ProviderErrorFromOAuth2 maps oauth2 retrieve errors onto ProviderError.
func ProviderErrorFromOAuth2(platform flaresync.Platform, operation string, err error) *ProviderError {
	perr := &ProviderError{
		Platform:  platform.String(),
		Operation: operation,
		Err:       err,
	}

	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) && rerr != nil {
		if rerr.Response != nil {
			perr.Status = rerr.Response.StatusCode
		}
		perr.Code = rerr.ErrorCode
		perr.Description = rerr.ErrorDescription
		if perr.Description == "" && perr.Code == "" {
			perr.Description = APIErrorMessage(rerr.Body, platform.String()+" token request failed")
		}
	}
	return perr
}

// ExpiresAt converts an expires_in seconds value to a deadline.
func ExpiresAt(expiresIn int64) time.Time {
	if expiresIn <= 0 {
		return time.Time{}
	}
	return time.Now().Add(time.Duration(expiresIn) * time.Second)
}

// SplitScopes splits a scope string on spaces and commas.
func SplitScopes(scopes string) []string {
	fields := strings.FieldsFunc(scopes, func(r rune) bool {
		return r == ' ' || r == ','
	})
	if len(fields) == 0 {
		return nil
	}
	return fields
}

func scopesFromExtra(v any) []string {
	switch t := v.(type) {
	case string:
		return SplitScopes(t)
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	case []string:
		return t
	}
	return nil
}
