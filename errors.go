package flaresync

import (
	"github.com/goliatone/go-errors"
)

const (
	TextCodeMissingConfiguration = "flaresync_missing_configuration"
	TextCodeNotAuthenticated     = "flaresync_not_authenticated"
	TextCodeInvalidSession       = "flaresync_invalid_session"
	TextCodeSessionExpired       = "flaresync_session_expired"
	TextCodeUnsupportedPlatform  = "flaresync_unsupported_platform"
	TextCodeProfileNotFound      = "flaresync_profile_not_found"
	TextCodeNotConnected         = "flaresync_not_connected"
	TextCodeOperationInProgress  = "flaresync_operation_in_progress"
	TextCodeEncryptionFailed     = "flaresync_encryption_unavailable"
)

// ErrMissingConfiguration is returned when a platform has no client id or secret.
var ErrMissingConfiguration = errors.New("missing platform configuration", errors.CategoryInternal).
	WithTextCode(TextCodeMissingConfiguration).
	WithCode(errors.CodeInternal)

// ErrNotAuthenticated is returned when an operation requires a session and none exists.
var ErrNotAuthenticated = errors.New("not authenticated", errors.CategoryAuth).
	WithTextCode(TextCodeNotAuthenticated).
	WithCode(errors.CodeUnauthorized)

// ErrInvalidSession is returned when a bearer token fails verification.
var ErrInvalidSession = errors.New("invalid session", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidSession).
	WithCode(errors.CodeUnauthorized)

// ErrSessionExpired is returned when a bearer token is past its expiration.
var ErrSessionExpired = errors.New("session expired", errors.CategoryAuth).
	WithTextCode(TextCodeSessionExpired).
	WithCode(errors.CodeUnauthorized)

// ErrUnsupportedPlatform is returned for platform names outside the supported set.
var ErrUnsupportedPlatform = errors.New("unsupported platform", errors.CategoryBadInput).
	WithTextCode(TextCodeUnsupportedPlatform).
	WithCode(errors.CodeBadRequest)

// ErrProfileNotFound is returned when no profile row exists for (user, platform).
var ErrProfileNotFound = errors.New("profile not found", errors.CategoryNotFound).
	WithTextCode(TextCodeProfileNotFound).
	WithCode(errors.CodeNotFound)

// ErrNotConnected is returned when an operation needs a connected profile.
var ErrNotConnected = errors.New("no connected profile", errors.CategoryConflict).
	WithTextCode(TextCodeNotConnected).
	WithCode(errors.CodeConflict)

// ErrOperationInProgress is returned when a platform already has an operation in flight.
var ErrOperationInProgress = errors.New("operation already in progress", errors.CategoryConflict).
	WithTextCode(TextCodeOperationInProgress).
	WithCode(errors.CodeConflict)

// ErrEncryptionUnavailable is returned when credentials cannot be encrypted.
// Callers must abort instead of persisting plaintext.
var ErrEncryptionUnavailable = errors.New("encryption unavailable", errors.CategoryInternal).
	WithTextCode(TextCodeEncryptionFailed).
	WithCode(errors.CodeInternal)

// HasTextCode reports whether err is a go-errors error carrying code.
func HasTextCode(err error, code string) bool {
	var target *errors.Error
	if !errors.As(err, &target) || target == nil {
		return false
	}
	return target.TextCode == code
}
