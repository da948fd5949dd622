// Package auth implements the provider-facing half of the login flow:
// PKCE and state generation, the authorization URL, the loopback redirect
// listener, and the token and userinfo endpoints.
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

// Challenge is a PKCE verifier/challenge pair (RFC 7636, S256 method).
type Challenge struct {
	Verifier  string
	Challenge string
}

// NewChallenge generates a PKCE pair from 64 bytes of secure randomness.
// The base64url verifier is 86 characters, within the 43–128 range the RFC
// requires.
func NewChallenge() (Challenge, error) {
	verifier, err := randomURLSafe(64)
	if err != nil {
		return Challenge{}, err
	}
	sum := sha256.Sum256([]byte(verifier))
	return Challenge{
		Verifier:  verifier,
		Challenge: base64.RawURLEncoding.EncodeToString(sum[:]),
	}, nil
}

// NewState generates the anti-forgery state token: 32 random bytes, well
// past the 128 bits of entropy the callback binding needs.
func NewState() (string, error) {
	return randomURLSafe(32)
}

func randomURLSafe(byteLen int) (string, error) {
	buf := make([]byte, byteLen)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("random generation failed: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
