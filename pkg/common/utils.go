package common

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
)

// GenerateToken returns n crypto-random bytes, base64 url-encoded without padding.
func GenerateToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// GenerateWalletAddress returns "W" followed by 34 lowercase hex characters.
func GenerateWalletAddress() (string, error) {
	b := make([]byte, 17)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return "W" + hex.EncodeToString(b), nil
}
