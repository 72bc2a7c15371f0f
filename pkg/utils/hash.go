package utils

import (
	"crypto/sha256"
	"encoding/hex"
)

// FileHash returns the SHA-256 hex digest of raw upload bytes. It is the
// content-addressed identity used for deduplication and deletion.
func FileHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// TextHash hashes a text string, used as the embedding cache key.
func TextHash(text string) string {
	return FileHash([]byte(text))
}
