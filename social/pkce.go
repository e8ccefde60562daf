package social

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
)

// CodeVerifierBytes is the amount of entropy in a PKCE code verifier.
const CodeVerifierBytes = 56

// CodeChallengeMethod is the only challenge method we send.
const CodeChallengeMethod = "S256"

// GenerateCodeVerifier returns a base64url (unpadded) encoded random verifier.
func GenerateCodeVerifier() (string, error) {
	b := make([]byte, CodeVerifierBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// ComputeCodeChallenge returns base64url(SHA-256(verifier)).
func ComputeCodeChallenge(verifier string) string {
	h := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(h[:])
}
