// Package secret seals configuration values such as object storage keys so
// they can live in a config file without being readable elsewhere.
// Values are encrypted with AES-256-GCM under a key derived from the
// current machine and user, optionally mixed with a passphrase.
package secret

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
)

// Prefix marks a sealed value.
const Prefix = "enc:v1:"

// PassphraseEnv, when set, is mixed into the derived key.
const PassphraseEnv = "MEMBANK_SECRET_PASSPHRASE"

var (
	ErrOpenFailed    = errors.New("secret could not be opened")
	ErrInvalidFormat = errors.New("invalid sealed value")
)

// Sealer encrypts and decrypts configuration secrets.
type Sealer struct {
	aead cipher.AEAD
}

// NewSealer derives the machine key, mixing in passphrase when non-empty.
func NewSealer(passphrase string) (*Sealer, error) {
	block, err := aes.NewCipher(deriveKey(passphrase))
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return &Sealer{aead: aead}, nil
}

// FromEnv builds a Sealer using the passphrase in PassphraseEnv.
func FromEnv() (*Sealer, error) {
	return NewSealer(os.Getenv(PassphraseEnv))
}

// Seal encrypts plaintext. Empty values and values that are already sealed
// are returned unchanged.
func (s *Sealer) Seal(plaintext string) (string, error) {
	if plaintext == "" || IsSealed(plaintext) {
		return plaintext, nil
	}
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	sealed := s.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return Prefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// Open decrypts a sealed value. Plain values pass through so existing
// configs keep working.
func (s *Sealer) Open(value string) (string, error) {
	if !IsSealed(value) {
		return value, nil
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, Prefix))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	n := s.aead.NonceSize()
	if len(raw) < n+s.aead.Overhead() {
		return "", ErrInvalidFormat
	}
	plain, err := s.aead.Open(nil, raw[:n], raw[n:], nil)
	if err != nil {
		return "", ErrOpenFailed
	}
	return string(plain), nil
}

// IsSealed reports whether value carries the sealed prefix.
func IsSealed(value string) bool {
	return strings.HasPrefix(value, Prefix)
}

// Mask hides all but the edges of a secret for display.
func Mask(value string) string {
	if IsSealed(value) {
		return Prefix + "****"
	}
	if len(value) <= 8 {
		return "****"
	}
	return value[:4] + "..." + value[len(value)-4:]
}

func deriveKey(passphrase string) []byte {
	var b strings.Builder
	host, _ := os.Hostname()
	home, _ := os.UserHomeDir()
	b.WriteString(host)
	b.WriteString(home)
	b.WriteString(runtime.GOOS)
	b.WriteString(runtime.GOARCH)
	b.WriteString("membank-secret-v1")
	if uid := os.Getuid(); uid != -1 {
		fmt.Fprintf(&b, "uid:%d", uid)
	}
	if passphrase != "" {
		b.WriteString("\x00")
		b.WriteString(passphrase)
	}
	sum := sha256.Sum256([]byte(b.String()))
	return sum[:]
}
