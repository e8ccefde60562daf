package flaresync_test

import (
	"fmt"
	"testing"

	"github.com/goliatone/flaresync"
	goerrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
)

func TestHasTextCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		code     string
		expected bool
	}{
		{
			name:     "sentinel",
			err:      flaresync.ErrProfileNotFound,
			code:     flaresync.TextCodeProfileNotFound,
			expected: true,
		},
		{
			name:     "clone with metadata",
			err:      flaresync.ErrNotConnected.Clone().WithMetadata(map[string]any{"platform": "twitch"}),
			code:     flaresync.TextCodeNotConnected,
			expected: true,
		},
		{
			name:     "wrapped with fmt",
			err:      fmt.Errorf("sync: %w", flaresync.ErrOperationInProgress),
			code:     flaresync.TextCodeOperationInProgress,
			expected: true,
		},
		{
			name:     "different code",
			err:      flaresync.ErrInvalidSession,
			code:     flaresync.TextCodeNotAuthenticated,
			expected: false,
		},
		{
			name:     "plain error",
			err:      fmt.Errorf("boom"),
			code:     flaresync.TextCodeProfileNotFound,
			expected: false,
		},
		{
			name:     "nil",
			err:      nil,
			code:     flaresync.TextCodeProfileNotFound,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, flaresync.HasTextCode(tt.err, tt.code))
		})
	}
}

func TestSentinelCategories(t *testing.T) {
	assert.Equal(t, goerrors.CategoryAuth, flaresync.ErrNotAuthenticated.Category)
	assert.Equal(t, goerrors.CategoryBadInput, flaresync.ErrUnsupportedPlatform.Category)
	assert.Equal(t, goerrors.CategoryNotFound, flaresync.ErrProfileNotFound.Category)
	assert.Equal(t, goerrors.CategoryConflict, flaresync.ErrOperationInProgress.Category)
	assert.Equal(t, goerrors.CategoryInternal, flaresync.ErrEncryptionUnavailable.Category)
}
