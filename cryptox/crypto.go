// Package cryptox wraps the symmetric and asymmetric primitives used for
// field level encryption: AES-256-GCM with a separate IV, HKDF key
// derivation and X25519 key agreement.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"

	"github.com/goliatone/go-errors"
	"golang.org/x/crypto/hkdf"
)

const (
	// KeySize is the AES-256 key length in bytes.
	KeySize = 32
	// IVSize is the GCM nonce length in bytes.
	IVSize = 12
)

const (
	TextCodeInvalidKey       = "cryptox_invalid_key"
	TextCodeInvalidIV        = "cryptox_invalid_iv"
	TextCodeDecryptionFailed = "cryptox_decryption_failed"
)

// ErrInvalidKey is returned for keys that are not KeySize bytes long.
var ErrInvalidKey = errors.New("invalid encryption key", errors.CategoryBadInput).
	WithTextCode(TextCodeInvalidKey).
	WithCode(errors.CodeBadRequest)

// ErrInvalidIV is returned for IVs that are not IVSize bytes long.
var ErrInvalidIV = errors.New("invalid initialization vector", errors.CategoryBadInput).
	WithTextCode(TextCodeInvalidIV).
	WithCode(errors.CodeBadRequest)

// ErrDecryptionFailed is returned when authentication of the ciphertext fails.
var ErrDecryptionFailed = errors.New("decryption failed", errors.CategoryBadInput).
	WithTextCode(TextCodeDecryptionFailed).
	WithCode(errors.CodeBadRequest)

// GenerateKey returns a random AES-256 key.
func GenerateKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	return key, nil
}

// ExportKey encodes a key for storage.
func ExportKey(key []byte) string {
	return base64.StdEncoding.EncodeToString(key)
}

// ImportKey decodes a key produced by ExportKey.
func ImportKey(encoded string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode key: %w", err)
	}
	if len(key) != KeySize {
		return nil, ErrInvalidKey
	}
	return key, nil
}

// DeriveKey derives a size byte key from secret using HKDF-SHA256, scoped by info.
func DeriveKey(secret, info []byte, size int) ([]byte, error) {
	if len(secret) == 0 {
		return nil, ErrInvalidKey
	}
	reader := hkdf.New(sha256.New, secret, nil, info)
	key := make([]byte, size)
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}
	return key, nil
}

// Seal encrypts plaintext with AES-GCM. The random IV is returned
// separately from the ciphertext.
func Seal(key, plaintext []byte) (ciphertext, iv []byte, err error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, nil, err
	}

	iv = make([]byte, gcm.NonceSize())
	if _, err := rand.Read(iv); err != nil {
		return nil, nil, fmt.Errorf("failed to generate iv: %w", err)
	}

	ciphertext = gcm.Seal(nil, iv, plaintext, nil)
	return ciphertext, iv, nil
}

// Open decrypts a ciphertext produced by Seal.
func Open(key, ciphertext, iv []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(iv) != gcm.NonceSize() {
		return nil, ErrInvalidIV
	}

	plaintext, err := gcm.Open(nil, iv, ciphertext, nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}

// EncodeBytes is the text encoding used for ciphertext and IV columns.
func EncodeBytes(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

// DecodeBytes reverses EncodeBytes.
func DecodeBytes(s string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(s)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKey
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}
