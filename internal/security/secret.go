package security

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

const SecretBytes = 32

// GenerateSecret returns SecretBytes of randomness, hex encoded for transport.
func GenerateSecret() (string, error) {
	buf := make([]byte, SecretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate secret: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
