// Package credentials implements the Credential Store (C3): AES-256-GCM
// decryption of the stored ciphertext blob plus typed secret fetch/update
// against the credentials table.
package credentials

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"io"

	"github.com/kestrelsec/workflow-runner/pkg/workflow/apperr"
)

const (
	nonceSize = 12
	tagSize   = 16
)

// Cipher encrypts and decrypts credential plaintext using a process-wide
// 32-byte AES-256-GCM key. The ciphertext wire format is lowercase hex of
// nonce || ciphertext || tag.
type Cipher struct {
	key [32]byte
}

func NewCipher(key [32]byte) *Cipher {
	return &Cipher{key: key}
}

func (c *Cipher) aead() (cipher.AEAD, error) {
	block, err := aes.NewCipher(c.key[:])
	if err != nil {
		return nil, apperr.New(apperr.CryptoError, "invalid AES key: %s", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, apperr.New(apperr.CryptoError, "failed to build GCM cipher: %s", err)
	}
	return gcm, nil
}

// Decrypt reverses Encrypt: hex-decodes cipherHex, splits the leading
// nonce, and decrypts the remaining ciphertext+tag.
func (c *Cipher) Decrypt(cipherHex string) (string, error) {
	raw, err := hex.DecodeString(cipherHex)
	if err != nil {
		return "", apperr.New(apperr.CryptoError, "ciphertext is not valid hex: %s", err)
	}
	if len(raw) < nonceSize+tagSize {
		return "", apperr.New(apperr.CryptoError, "ciphertext too short")
	}

	gcm, err := c.aead()
	if err != nil {
		return "", err
	}

	nonce, ciphertext := raw[:nonceSize], raw[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", apperr.New(apperr.CryptoError, "decryption failed: %s", err)
	}
	return string(plaintext), nil
}

// Encrypt produces the hex(nonce||ciphertext||tag) wire format for a
// plaintext secret, used by the Mode-A OAuth write-back path.
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	gcm, err := c.aead()
	if err != nil {
		return "", err
	}

	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", apperr.New(apperr.CryptoError, "failed to generate nonce: %s", err)
	}

	ciphertext := gcm.Seal(nil, nonce, []byte(plaintext), nil)
	return hex.EncodeToString(append(nonce, ciphertext...)), nil
}
