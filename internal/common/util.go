package common

import (
	"crypto/rand"
	"encoding/hex"
)

// RandomBytes returns size bytes from crypto/rand. It panics if the system
// random source fails.
func RandomBytes(size int) []byte {
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return b
}

// RandomHex returns size random bytes hex-encoded, so the result is twice as
// long as size.
func RandomHex(size int) (string, error) {
	if size < 0 {
		return "", ErrInvalidSize
	}
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
