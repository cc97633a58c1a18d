// Package sha256 fingerprints resolved content so the outcome journal can
// correlate identical pastes without storing them.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"
)

// Hex returns the hex SHA-256 digest of data.
func Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Content returns the digest of s, or "" when s is empty.
func Content(s string) string {
	if s == "" {
		return ""
	}
	return Hex([]byte(s))
}
