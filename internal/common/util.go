package common

import (
	"crypto/rand"
	"encoding/base64"
)

// GenerateRandByteArray returns size cryptographically random bytes.
// It panics if the system randomness source fails, which is unrecoverable.
func GenerateRandByteArray(size int) []byte {
	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	return buf
}

// MakeRandB64String returns a base64url-encoded string of size random bytes,
// suitable for opaque token values.
func MakeRandB64String(size int) string {
	return base64.RawURLEncoding.EncodeToString(GenerateRandByteArray(size))
}
