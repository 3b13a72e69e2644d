// Copyright (c) 2026 Gatekeep. All rights reserved.
// Author: minh.vo.sg@gmail.com

package sec

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

// # Opaque Session Tokens

// GenerateSecureToken returns a URL-safe random token built from byteLength
// bytes of a cryptographically secure source.
//
// # Entropy
//
// byteLength must be at least 16 (128 bits). Session tokens must never be
// derived from predictable inputs such as timestamps or sequential IDs.
func GenerateSecureToken(byteLength int) (string, error) {
	if byteLength < 16 {
		return "", fmt.Errorf("sec: token length %d below 16-byte minimum", byteLength)
	}

	buffer := make([]byte, byteLength)
	if _, err := rand.Read(buffer); err != nil {
		return "", fmt.Errorf("sec: failed to read random bytes: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(buffer), nil
}

// HashToken returns the hex-encoded SHA-256 digest of a token.
//
// Only the digest is ever written to storage, so a leaked session store
// cannot be replayed as live bearer tokens.
func HashToken(token string) string {
	digest := sha256.Sum256([]byte(token))
	return hex.EncodeToString(digest[:])
}
