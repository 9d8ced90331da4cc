package util

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashUserKey returns a filesystem-safe identifier for a user ID.
func HashUserKey(s string) string {
	return hashHex(s)
}

// HashText returns a stable identifier for analyzed text. History and
// prediction records key on it instead of storing full articles.
func HashText(s string) string {
	return hashHex(s)
}

func hashHex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
