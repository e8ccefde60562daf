package social

import "github.com/goliatone/go-errors"

const (
	TextCodeAdapterNotFound      = "social_adapter_not_found"
	TextCodeInvalidState         = "social_invalid_state"
	TextCodeStateExpired         = "social_state_expired"
	TextCodeCodeVerifierNotFound = "social_code_verifier_not_found"
	TextCodePendingNotFound      = "social_pending_transaction_not_found"
	TextCodeTokenExchangeFail    = "social_token_exchange_failed"
	TextCodeProfileFetchFail     = "social_profile_fetch_failed"
	TextCodeRevokeFail           = "social_revoke_failed"
)

// ErrAdapterNotFound is returned when a requested platform has no adapter configured.
var ErrAdapterNotFound = errors.New("platform adapter not found", errors.CategoryNotFound).
	WithTextCode(TextCodeAdapterNotFound).
	WithCode(errors.CodeNotFound)

// ErrInvalidState is returned when the OAuth state is invalid or tampered.
var ErrInvalidState = errors.New("invalid oauth state", errors.CategoryBadInput).
	WithTextCode(TextCodeInvalidState).
	WithCode(errors.CodeBadRequest)

// ErrStateExpired is returned when the OAuth state has expired.
var ErrStateExpired = errors.New("oauth state expired", errors.CategoryBadInput).
	WithTextCode(TextCodeStateExpired).
	WithCode(errors.CodeBadRequest)

// ErrCodeVerifierNotFound is returned when a PKCE callback has no pending verifier.
var ErrCodeVerifierNotFound = errors.New("no code verifier found", errors.CategoryBadInput).
	WithTextCode(TextCodeCodeVerifierNotFound).
	WithCode(errors.CodeBadRequest)

// ErrPendingNotFound is returned when a callback has no matching pending transaction.
var ErrPendingNotFound = errors.New("no pending oauth transaction", errors.CategoryBadInput).
	WithTextCode(TextCodePendingNotFound).
	WithCode(errors.CodeBadRequest)

// ErrTokenExchangeFailed is returned when a provider token exchange fails.
var ErrTokenExchangeFailed = errors.New("token exchange failed", errors.CategoryAuth).
	WithTextCode(TextCodeTokenExchangeFail).
	WithCode(errors.CodeUnauthorized)

// ErrProfileFetchFailed is returned when fetching the profile or metrics fails.
var ErrProfileFetchFailed = errors.New("failed to fetch platform profile", errors.CategoryOperation).
	WithTextCode(TextCodeProfileFetchFail).
	WithCode(errors.CodeInternal)

// ErrRevokeFailed is returned when a provider refuses to revoke a token.
var ErrRevokeFailed = errors.New("token revocation failed", errors.CategoryOperation).
	WithTextCode(TextCodeRevokeFail).
	WithCode(errors.CodeInternal)
