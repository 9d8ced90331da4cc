package auth

import (
	"crypto/rand"
	"encoding/base64"
)

const secretEntropyBytes = 32

// NewSecret returns a URL-safe random secret with 256 bits of entropy.
// Webhook registrations without a caller-provided secret get one of these.
func NewSecret() string {
	buf := make([]byte, secretEntropyBytes)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	return base64.URLEncoding.EncodeToString(buf)
}
