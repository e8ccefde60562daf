package cryptox

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/curve25519"
)

// KeyPair is an X25519 keypair.
type KeyPair struct {
	PublicKey  [32]byte
	PrivateKey [32]byte
}

// GenerateKeyPair creates a new X25519 keypair.
func GenerateKeyPair() (*KeyPair, error) {
	var kp KeyPair
	if _, err := rand.Read(kp.PrivateKey[:]); err != nil {
		return nil, fmt.Errorf("failed to generate private key: %w", err)
	}

	pub, err := curve25519.X25519(kp.PrivateKey[:], curve25519.Basepoint)
	if err != nil {
		return nil, fmt.Errorf("failed to derive public key: %w", err)
	}
	copy(kp.PublicKey[:], pub)

	return &kp, nil
}

// ExportKeyPair encodes both halves of kp.
func ExportKeyPair(kp *KeyPair) (publicKey, privateKey string) {
	if kp == nil {
		return "", ""
	}
	return base64.StdEncoding.EncodeToString(kp.PublicKey[:]),
		base64.StdEncoding.EncodeToString(kp.PrivateKey[:])
}

// ImportKeyPair decodes a keypair produced by ExportKeyPair and checks that
// the public half matches the private half.
func ImportKeyPair(publicKey, privateKey string) (*KeyPair, error) {
	pub, err := base64.StdEncoding.DecodeString(publicKey)
	if err != nil || len(pub) != 32 {
		return nil, ErrInvalidKey
	}
	priv, err := base64.StdEncoding.DecodeString(privateKey)
	if err != nil || len(priv) != 32 {
		return nil, ErrInvalidKey
	}

	derived, err := curve25519.X25519(priv, curve25519.Basepoint)
	if err != nil {
		return nil, fmt.Errorf("failed to derive public key: %w", err)
	}
	if string(derived) != string(pub) {
		return nil, ErrInvalidKey
	}

	var kp KeyPair
	copy(kp.PublicKey[:], pub)
	copy(kp.PrivateKey[:], priv)
	return &kp, nil
}

// SharedSecret computes the X25519 shared secret between kp and a peer public key.
func (kp *KeyPair) SharedSecret(peerPublicKey []byte) ([]byte, error) {
	if kp == nil || len(peerPublicKey) != 32 {
		return nil, ErrInvalidKey
	}
	secret, err := curve25519.X25519(kp.PrivateKey[:], peerPublicKey)
	if err != nil {
		return nil, fmt.Errorf("failed to compute shared secret: %w", err)
	}
	return secret, nil
}
