// Package sealed is the default sensitive-data codec: AES-GCM with a
// versioned format marker so encrypted values are recognizable without
// decryption. The worker core only depends on the SensitiveCodec contract;
// deployments may substitute an external KMS-backed implementation.
package sealed

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/nominahr/pg-hr-automation/hash"
)

const (
	schemeVersion = "v1"
	markerPrefix  = "sealed:"
)

var ErrMalformedValue = errors.New("sealed: malformed encrypted value")

// Marker is the prefix every encrypted value carries, independent of the
// scheme version. Storage-side plaintext-leak checks match on it.
func Marker() string {
	return markerPrefix
}

type Codec struct {
	aead cipher.AEAD
}

// New builds a codec from a 32-byte key.
func New(key []byte) (*Codec, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("sealed: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("sealed: %w", err)
	}

	return &Codec{aead: aead}, nil
}

func (c *Codec) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("sealed: %w", err)
	}

	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	encoded := base64.StdEncoding.EncodeToString(sealed)

	return markerPrefix + schemeVersion + ":" + encoded, nil
}

// Decrypt reverses Encrypt. Values without the marker are assumed to be
// plaintext and returned unchanged, which lets callers read fields that
// predate the encryption migration.
func (c *Codec) Decrypt(value string) (string, error) {
	if !c.IsEncrypted(value) {
		return value, nil
	}

	rest := strings.TrimPrefix(value, markerPrefix)
	_, encoded, ok := strings.Cut(rest, ":")
	if !ok {
		return "", ErrMalformedValue
	}

	sealed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrMalformedValue, err)
	}
	if len(sealed) < c.aead.NonceSize() {
		return "", ErrMalformedValue
	}

	nonce, ciphertext := sealed[:c.aead.NonceSize()], sealed[c.aead.NonceSize():]
	plaintext, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("sealed: %w", err)
	}

	return string(plaintext), nil
}

func (c *Codec) IsEncrypted(value string) bool {
	return strings.HasPrefix(value, markerPrefix)
}

func (c *Codec) Hash(value string) string {
	return hash.Lookup(value)
}

func (c *Codec) SchemeVersion() string {
	return schemeVersion
}
