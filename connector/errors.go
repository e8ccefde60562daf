package connector

import "github.com/goliatone/go-errors"

const (
	TextCodeAuthorizationDenied = "connector_authorization_denied"
	TextCodeBackendFailure      = "connector_backend_failure"
	TextCodeInvalidCallback     = "connector_invalid_callback"
	TextCodeConnectorNotFound   = "connector_not_registered"
)

// ErrAuthorizationDenied is returned when the provider redirects back with an
// error instead of a code.
var ErrAuthorizationDenied = errors.New("authorization denied by provider", errors.CategoryAuth).
	WithTextCode(TextCodeAuthorizationDenied).
	WithCode(errors.CodeUnauthorized)

// ErrBackendFailure is returned for backend responses that carry no known
// error code.
var ErrBackendFailure = errors.New("backend request failed", errors.CategoryOperation).
	WithTextCode(TextCodeBackendFailure).
	WithCode(errors.CodeInternal)

// ErrInvalidCallback is returned when a callback URL cannot be parsed or
// lacks the code and state parameters.
var ErrInvalidCallback = errors.New("invalid oauth callback", errors.CategoryBadInput).
	WithTextCode(TextCodeInvalidCallback).
	WithCode(errors.CodeBadRequest)

// ErrConnectorNotFound is returned when the orchestrator has no connector
// for a platform.
var ErrConnectorNotFound = errors.New("no connector registered for platform", errors.CategoryNotFound).
	WithTextCode(TextCodeConnectorNotFound).
	WithCode(errors.CodeNotFound)
