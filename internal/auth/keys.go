// Package auth guards the operator HTTP surface with static API keys.
// Keys are configured at startup, held only as SHA-256 digests and
// compared in constant time.
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"
)

const (
	// APIKeyPrefix marks settings-sync API keys so they are easy to spot
	// in logs and secret scanners.
	APIKeyPrefix = "ss_"

	// APIKeyMinLen is the minimum full key length: the prefix plus at
	// least 32 hex characters (128 bits).
	APIKeyMinLen = len(APIKeyPrefix) + 32

	apiKeyRandomBytes = 32
)

// APIKey is a configured key and the user it authenticates.
type APIKey struct {
	UserID string
	Key    string
}

type keyEntry struct {
	userID string
	digest [sha256.Size]byte
}

// KeyStore validates presented API keys. It is immutable after
// construction and safe for concurrent use.
type KeyStore struct {
	entries []keyEntry
}

// NewKeyStore hashes the given keys. Malformed keys are rejected.
func NewKeyStore(keys []APIKey) (*KeyStore, error) {
	s := &KeyStore{entries: make([]keyEntry, 0, len(keys))}

	for i, k := range keys {
		if err := CheckAPIKey(k.Key); err != nil {
			return nil, fmt.Errorf("api key %d: %w", i+1, err)
		}

		s.entries = append(s.entries, keyEntry{userID: k.UserID, digest: sha256.Sum256([]byte(k.Key))})
	}

	return s, nil
}

// Len returns the number of configured keys.
func (s *KeyStore) Len() int {
	return len(s.entries)
}

// Validate returns the user id for key, or "" when the key is unknown.
// Every entry is compared so the time taken does not depend on which
// key matched.
func (s *KeyStore) Validate(key string) string {
	digest := sha256.Sum256([]byte(key))

	var user string

	for _, e := range s.entries {
		if subtle.ConstantTimeCompare(digest[:], e.digest[:]) == 1 {
			user = e.userID
		}
	}

	return user
}

// CheckAPIKey reports whether key has the prefix, the minimum length
// and a hex suffix.
func CheckAPIKey(key string) error {
	if !strings.HasPrefix(key, APIKeyPrefix) {
		return fmt.Errorf("must start with %q", APIKeyPrefix)
	}

	if len(key) < APIKeyMinLen {
		return fmt.Errorf("too short (minimum %d characters)", APIKeyMinLen)
	}

	if _, err := hex.DecodeString(key[len(APIKeyPrefix):]); err != nil {
		return fmt.Errorf("contains non-hex characters after %q", APIKeyPrefix)
	}

	return nil
}

// GenerateAPIKey returns a new random key.
func GenerateAPIKey() string {
	return APIKeyPrefix + RandomHex(apiKeyRandomBytes)
}

// RandomHex generates a cryptographically random hex string of the given byte length.
func RandomHex(byteLen int) string {
	b := make([]byte, byteLen)
	if _, err := rand.Read(b); err != nil {
		panic("crypto/rand failed: " + err.Error())
	}

	return hex.EncodeToString(b)
}
