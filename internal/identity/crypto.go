package identity

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
)

// Cipher encrypts identity values at rest with AES-256-GCM. The key is
// derived from the configured secret; a fresh 12-byte nonce is generated per
// encryption and prefixed to the ciphertext.
type Cipher struct {
	aead cipher.AEAD
}

// NewCipher derives a 256-bit key from the configured secret and builds the
// AEAD. An empty secret is a configuration error.
func NewCipher(secret string) (*Cipher, error) {
	if secret == "" {
		return nil, fmt.Errorf("encryption key is required")
	}
	key := sha256.Sum256([]byte(secret))

	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("init gcm: %w", err)
	}
	return &Cipher{aead: aead}, nil
}

// Encrypt normalizes and encrypts an identity value, returning a base64
// payload of nonce || ciphertext.
func (c *Cipher) Encrypt(value string) (string, error) {
	normalized := Normalize(value)

	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	sealed := c.aead.Seal(nonce, nonce, []byte(normalized), nil)
	return base64.URLEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt. A tampered or truncated payload fails.
func (c *Cipher) Decrypt(encrypted string) (string, error) {
	raw, err := base64.URLEncoding.DecodeString(encrypted)
	if err != nil {
		return "", fmt.Errorf("decode payload: %w", err)
	}
	if len(raw) < c.aead.NonceSize() {
		return "", fmt.Errorf("payload too short")
	}

	nonce, ciphertext := raw[:c.aead.NonceSize()], raw[c.aead.NonceSize():]
	plain, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("decrypt identity: %w", err)
	}
	return string(plain), nil
}

// Normalize lowercases and trims an identity value so hashing and encryption
// are insensitive to user input noise.
func Normalize(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

// HashValue returns the deterministic SHA-256 hex digest of a normalized
// identity value. It is the unique lookup key; the encrypted blob is never
// queried directly.
func HashValue(value string) string {
	sum := sha256.Sum256([]byte(Normalize(value)))
	return hex.EncodeToString(sum[:])
}

// Preview masks an identity value for safe display, e.g. "joh***@gmail.com".
func Preview(value string) string {
	local := value
	domain := ""
	if at := strings.IndexByte(value, '@'); at >= 0 {
		local, domain = value[:at], value[at+1:]
	}

	masked := local
	if len(local) <= 3 {
		if len(local) >= 1 {
			masked = local[:1] + "***"
		} else {
			masked = "***"
		}
	} else {
		masked = local[:3] + "***"
	}

	if domain == "" {
		return masked
	}
	return masked + "@" + domain
}
