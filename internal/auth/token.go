package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

const tokenBytes = 16

// GenerateToken returns a random 16-byte hex token.
func GenerateToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// tokenPrefix shortens a token for log lines.
func tokenPrefix(tok string) string {
	if len(tok) < 8 {
		return tok
	}
	return tok[:8]
}
