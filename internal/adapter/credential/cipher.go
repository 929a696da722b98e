// Package credential encrypts tenant API keys at rest with AES-256-GCM.
package credential

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"

	"github.com/neomorfeo/boxsync/internal/domain"
	"github.com/neomorfeo/boxsync/internal/logging"
)

// Marker prefixes every encrypted value. Values without it are treated as
// legacy plaintext.
const Marker = "enc:"

const (
	hkdfSalt = "boxsync-credential-store"
	hkdfInfo = "tenant-api-key-v1"
	keySize  = 32
)

// fallbackSecret is used when no installation secret is configured. Anything
// encrypted with it is only obfuscated; Insecure reports this state.
const fallbackSecret = "boxsync-insecure-fallback-secret"

var (
	ErrCiphertextTooShort = errors.New("ciphertext too short")
	ErrInvalidCiphertext  = errors.New("invalid ciphertext format")
	ErrDecryptionFailed   = errors.New("decryption failed")
)

var _ domain.Cipher = (*Cipher)(nil)

// Cipher implements domain.Cipher.
type Cipher struct {
	aead     cipher.AEAD
	insecure bool
}

// New derives the encryption key from secret with HKDF-SHA256. An empty
// secret selects the built-in fallback and logs a warning.
func New(secret string) (*Cipher, error) {
	insecure := false
	if strings.TrimSpace(secret) == "" {
		secret = fallbackSecret
		insecure = true
		logger := logging.WithComponent("credential")
		logger.Warn().Msg("no installation secret configured; api keys are encrypted with the built-in fallback key")
	}

	key := make([]byte, keySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), []byte(hkdfSalt), []byte(hkdfInfo)), key); err != nil {
		return nil, fmt.Errorf("deriving key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("creating block cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("creating gcm: %w", err)
	}

	return &Cipher{aead: aead, insecure: insecure}, nil
}

// Insecure reports whether the fallback secret is in use.
func (c *Cipher) Insecure() bool {
	return c.insecure
}

// Encrypt returns Marker + base64(nonce || ciphertext). Empty input stays empty.
// A failure is returned to the caller instead of storing plaintext.
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generating nonce: %w", err)
	}

	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return Marker + base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt returns the plaintext for blob. Unmarked values are returned
// unchanged and corrupt ciphertext yields "".
func (c *Cipher) Decrypt(blob string) string {
	plaintext, err := c.Open(blob)
	if err != nil {
		return ""
	}
	return plaintext
}

// Open is Decrypt with the failure reason.
func (c *Cipher) Open(blob string) (string, error) {
	if !IsEncrypted(blob) {
		return blob, nil
	}

	data, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(blob, Marker))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidCiphertext, err)
	}

	nonceSize := c.aead.NonceSize()
	if len(data) < nonceSize+c.aead.Overhead() {
		return "", ErrCiphertextTooShort
	}

	plaintext, err := c.aead.Open(nil, data[:nonceSize], data[nonceSize:], nil)
	if err != nil {
		return "", ErrDecryptionFailed
	}
	return string(plaintext), nil
}

// IsEncrypted reports whether value carries the encryption marker.
func IsEncrypted(value string) bool {
	return strings.HasPrefix(value, Marker)
}

// Mask returns the first 3 and last 4 characters of key with asterisks in
// between. Keys of 7 characters or fewer are fully masked.
func Mask(key string) string {
	if len(key) <= 7 {
		return strings.Repeat("*", len(key))
	}
	return key[:3] + strings.Repeat("*", len(key)-7) + key[len(key)-4:]
}
