package service

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashFingerprint normalizes a raw client fingerprint into a fixed-width hex
// digest. The raw value is never stored.
func HashFingerprint(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
