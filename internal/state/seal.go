package state

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/nacl/secretbox"
	"golang.org/x/crypto/scrypt"
	"golang.org/x/text/unicode/norm"
)

const (
	// sealedPrefix marks a value produced by Sealer.Seal.
	sealedPrefix = "sealed:v1:"

	// sealSalt is mixed into the scrypt derivation. The secret itself
	// carries the entropy; the salt only separates this use of it.
	sealSalt = "settings-sync/local-secrets"

	scryptN      = 32768
	scryptR      = 8
	scryptP      = 1
	scryptKeyLen = 32

	nonceLen = 24
)

var errSealedValue = errors.New("sealed value is malformed")

// Sealer encrypts short secrets for storage at rest.
type Sealer struct {
	key [scryptKeyLen]byte
}

// NewSealer derives a sealing key from a passphrase. The passphrase is
// normalized to NFKC so equivalent input on different platforms yields
// the same key.
func NewSealer(passphrase string) (*Sealer, error) {
	if passphrase == "" {
		return nil, fmt.Errorf("empty settings secret")
	}

	derived, err := scrypt.Key([]byte(norm.NFKC.String(passphrase)), []byte(sealSalt), scryptN, scryptR, scryptP, scryptKeyLen)
	if err != nil {
		return nil, fmt.Errorf("deriving sealing key: %w", err)
	}

	s := &Sealer{}
	copy(s.key[:], derived)

	return s, nil
}

// IsSealed reports whether v was produced by Seal.
func IsSealed(v string) bool {
	return strings.HasPrefix(v, sealedPrefix)
}

// Seal encrypts plain with a random nonce.
func (s *Sealer) Seal(plain string) (string, error) {
	var nonce [nonceLen]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", fmt.Errorf("generating nonce: %w", err)
	}

	box := secretbox.Seal(nonce[:], []byte(plain), &nonce, &s.key)

	return sealedPrefix + base64.StdEncoding.EncodeToString(box), nil
}

// Open decrypts a value produced by Seal.
func (s *Sealer) Open(sealed string) (string, error) {
	if !IsSealed(sealed) {
		return "", errSealedValue
	}

	data, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(sealed, sealedPrefix))
	if err != nil || len(data) < nonceLen+secretbox.Overhead {
		return "", errSealedValue
	}

	var nonce [nonceLen]byte
	copy(nonce[:], data[:nonceLen])

	plain, ok := secretbox.Open(nil, data[nonceLen:], &nonce, &s.key)
	if !ok {
		return "", fmt.Errorf("sealed value failed authentication")
	}

	return string(plain), nil
}
