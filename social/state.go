package social

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/goliatone/flaresync"
	"github.com/goliatone/flaresync/cryptox"
)

// StateManager handles OAuth state encoding and verification.
type StateManager interface {
	Encode(state *OAuthState) (string, error)
	Decode(token string) (*OAuthState, error)
}

// OAuthState contains the data sealed into the OAuth state parameter. The
// nonce is independent from any session credential.
type OAuthState struct {
	Nonce       string             `json:"n"`
	Platform    flaresync.Platform `json:"p"`
	UserID      string             `json:"u"`
	RedirectURI string             `json:"r,omitempty"`
	IssuedAt    int64              `json:"iat"`
	ExpiresAt   int64              `json:"exp"`
}

// EncryptedStateManager seals state with AES-GCM and signs it with HMAC.
// Both keys must be 32 bytes.
type EncryptedStateManager struct {
	encryptionKey []byte
	hmacKey       []byte
	ttl           time.Duration
}

// NewEncryptedStateManager creates a new encrypted state manager.
func NewEncryptedStateManager(encryptionKey, hmacKey []byte, ttl time.Duration) *EncryptedStateManager {
	if ttl == 0 {
		ttl = 10 * time.Minute
	}
	return &EncryptedStateManager{
		encryptionKey: encryptionKey,
		hmacKey:       hmacKey,
		ttl:           ttl,
	}
}

// NewStateManagerFromSecret derives independent encryption and HMAC keys
// from a single secret.
func NewStateManagerFromSecret(secret []byte, ttl time.Duration) (*EncryptedStateManager, error) {
	encKey, err := cryptox.DeriveKey(secret, []byte("flaresync-oauth-state-enc"), cryptox.KeySize)
	if err != nil {
		return nil, err
	}
	macKey, err := cryptox.DeriveKey(secret, []byte("flaresync-oauth-state-mac"), cryptox.KeySize)
	if err != nil {
		return nil, err
	}
	return NewEncryptedStateManager(encKey, macKey, ttl), nil
}

// TTL returns how long an encoded state stays valid.
func (sm *EncryptedStateManager) TTL() time.Duration {
	return sm.ttl
}

// Encode seals the state with AES-GCM and prefixes an HMAC-SHA256 signature
// over iv||ciphertext.
func (sm *EncryptedStateManager) Encode(state *OAuthState) (string, error) {
	if state == nil || state.Platform == "" {
		return "", ErrInvalidState
	}

	now := time.Now()
	if state.IssuedAt == 0 {
		state.IssuedAt = now.Unix()
	}
	if state.ExpiresAt == 0 {
		state.ExpiresAt = now.Add(sm.ttl).Unix()
	}
	if state.Nonce == "" {
		state.Nonce = GenerateNonce()
	}

	plaintext, err := json.Marshal(state)
	if err != nil {
		return "", fmt.Errorf("failed to marshal state: %w", err)
	}

	ciphertext, iv, err := cryptox.Seal(sm.encryptionKey, plaintext)
	if err != nil {
		return "", fmt.Errorf("failed to seal state: %w", err)
	}

	sealed := append(iv, ciphertext...)
	token := append(sm.sign(sealed), sealed...)

	return base64.RawURLEncoding.EncodeToString(token), nil
}

// Decode verifies and decrypts the state.
func (sm *EncryptedStateManager) Decode(token string) (*OAuthState, error) {
	data, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil || len(data) < sha256.Size+cryptox.IVSize {
		return nil, ErrInvalidState
	}

	signature, sealed := data[:sha256.Size], data[sha256.Size:]
	if !hmac.Equal(signature, sm.sign(sealed)) {
		return nil, ErrInvalidState
	}

	iv, ciphertext := sealed[:cryptox.IVSize], sealed[cryptox.IVSize:]
	plaintext, err := cryptox.Open(sm.encryptionKey, ciphertext, iv)
	if err != nil {
		return nil, ErrInvalidState
	}

	var state OAuthState
	if err := json.Unmarshal(plaintext, &state); err != nil {
		return nil, ErrInvalidState
	}

	if time.Now().Unix() > state.ExpiresAt {
		return nil, ErrStateExpired
	}

	return &state, nil
}

func (sm *EncryptedStateManager) sign(data []byte) []byte {
	mac := hmac.New(sha256.New, sm.hmacKey)
	mac.Write(data)
	return mac.Sum(nil)
}

// GenerateNonce returns a random URL safe nonce.
func GenerateNonce() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}
