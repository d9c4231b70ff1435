package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// KeyPrefix starts every generated local key.
const KeyPrefix = "sk-local-"

// GenerateKey returns a fresh random local API key.
func GenerateKey() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate key: %w", err)
	}
	return KeyPrefix + hex.EncodeToString(buf), nil
}
