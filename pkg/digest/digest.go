// Package digest provides the hex-encoded SHA-256 digest used throughout the
// credential flow: password hashes, secret derivation, and device signatures
// all consume its output. Single round, no salt, matching the stored record
// format exactly.
package digest

import (
	"crypto/sha256"
	"encoding/hex"
)

// HexLength is the length of every digest returned by Sum.
const HexLength = 64

// Sum returns the lowercase hex-encoded SHA-256 digest of input.
func Sum(input string) string {
	hash := sha256.Sum256([]byte(input))
	return hex.EncodeToString(hash[:])
}
