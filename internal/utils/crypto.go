package utils

import (
	"crypto/sha256"
	"encoding/hex"
)

// SHA256Hex returns the hex digest of s; used to store refresh tokens
// without keeping the raw token around.
func SHA256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
