// Package auth contains API key handling and the request authorizer.
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Recognized credential prefixes. Keys carry a literal prefix so live and
// test credentials are distinguishable at a glance.
const (
	PrefixLive = "op_live_"
	PrefixTest = "op_test_"
)

// HashKey returns the SHA-256 hex digest of the key. Only this digest is
// ever persisted or compared; the raw credential is shown once at creation.
func HashKey(key string) string {
	key = strings.TrimSpace(key)

	hash := sha256.Sum256([]byte(key))
	return hex.EncodeToString(hash[:])
}

// WellFormed reports whether a candidate credential carries a recognized
// prefix. Malformed input is rejected before any storage lookup.
func WellFormed(key string) bool {
	return strings.HasPrefix(key, PrefixLive) || strings.HasPrefix(key, PrefixTest)
}

// GenerateKey creates a new raw credential with the given prefix.
func GenerateKey(prefix string) (string, error) {
	raw := make([]byte, 16)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("failed to generate api key: %w", err)
	}
	return prefix + hex.EncodeToString(raw), nil
}

// GenerateKeyID creates a short public identifier for a key record,
// usable in URLs and audit entries without exposing the credential.
func GenerateKeyID() (string, error) {
	raw := make([]byte, 4)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("failed to generate key id: %w", err)
	}
	return "key_" + hex.EncodeToString(raw), nil
}
