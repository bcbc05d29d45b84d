// Package crypto seals secrets (chat OAuth tokens) for storage at rest with
// AES-256-GCM. Ciphertexts are bound to a context string, so a token sealed
// for one provider cannot be replayed as another's.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Version is written next to sealed values so readers know how to open them.
const (
	VersionPlain  = 0
	VersionSealed = 1
)

// ErrOpen is returned for any ciphertext that fails to authenticate.
var ErrOpen = errors.New("decryption failed: authentication or integrity check failed")

// Box seals and opens strings with one key.
type Box struct {
	aead  cipher.AEAD
	keyID string
}

// NewBox builds a Box from a base64-encoded 32-byte key
// (generate one with `openssl rand -base64 32`).
func NewBox(base64Key, keyID string) (*Box, error) {
	if base64Key == "" {
		return nil, fmt.Errorf("encryption key is empty")
	}
	key, err := base64.StdEncoding.DecodeString(base64Key)
	if err != nil {
		return nil, fmt.Errorf("invalid encryption key: base64 decode failed: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("invalid encryption key: must be 32 bytes (256 bits), got %d bytes", len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM: %w", err)
	}
	if keyID == "" {
		keyID = "default"
	}
	return &Box{aead: gcm, keyID: keyID}, nil
}

// KeyID names the key, for storage alongside sealed values.
func (b *Box) KeyID() string { return b.keyID }

// Seal encrypts plaintext bound to context and returns base64(nonce||ct||tag).
// An empty plaintext seals to an empty string.
func (b *Box) Seal(plaintext, context string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	nonce := make([]byte, b.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	out := b.aead.Seal(nonce, nonce, []byte(plaintext), []byte(context))
	return base64.StdEncoding.EncodeToString(out), nil
}

// Open reverses Seal. The context must match the one used to seal.
func (b *Box) Open(sealed, context string) (string, error) {
	if sealed == "" {
		return "", nil
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(sealed))
	if err != nil {
		return "", fmt.Errorf("base64 decode failed: %w", err)
	}
	ns := b.aead.NonceSize()
	if len(raw) < ns+b.aead.Overhead() {
		return "", fmt.Errorf("ciphertext too short: %d bytes", len(raw))
	}
	pt, err := b.aead.Open(nil, raw[:ns], raw[ns:], []byte(context))
	if err != nil {
		return "", ErrOpen
	}
	return string(pt), nil
}
