package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

// envelopePrefix tags ciphertext produced by this package. The prefix encodes
// the algorithm and format version; everything after it is
// base64(nonce || ciphertext || tag) as produced by AES-256-GCM.
const envelopePrefix = "enc:v1:"

const (
	keySize          = 32 // AES-256
	pbkdf2Iterations = 100_000
)

var (
	// ErrInvalidKey indicates the encryption key is not usable.
	ErrInvalidKey = errors.New("encryption key must be at least 16 bytes")
	// ErrDecryptionFailed indicates tampered ciphertext or a key mismatch.
	ErrDecryptionFailed = errors.New("decryption failed")
)

// Encryptor encrypts and decrypts provider credentials at rest.
// The key is process-wide configuration; only ciphertext is ever persisted.
type Encryptor struct {
	aead cipher.AEAD
}

// NewEncryptor creates an Encryptor from a configured key. A 32-byte key is
// used directly as the AES-256 key; anything shorter than 32 bytes (but at
// least 16) is stretched with PBKDF2-SHA-256 and the given salt.
func NewEncryptor(key, salt string) (*Encryptor, error) {
	if len(key) < 16 {
		return nil, ErrInvalidKey
	}

	raw := []byte(key)
	if len(raw) != keySize {
		raw = pbkdf2.Key(raw, []byte(salt), pbkdf2Iterations, keySize, sha256.New)
	}

	block, err := aes.NewCipher(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &Encryptor{aead: aead}, nil
}

// Encrypt encrypts plaintext and returns the serialized envelope.
// Empty input encrypts to the empty string.
func (e *Encryptor) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	nonce := make([]byte, e.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := e.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return envelopePrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt decrypts an envelope produced by Encrypt. It returns
// ErrDecryptionFailed when the ciphertext was tampered with or encrypted
// under a different key.
func (e *Encryptor) Decrypt(envelope string) (string, error) {
	if envelope == "" {
		return "", nil
	}

	encoded, ok := strings.CutPrefix(envelope, envelopePrefix)
	if !ok {
		return "", fmt.Errorf("%w: not an encrypted envelope", ErrDecryptionFailed)
	}

	sealed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("%w: invalid base64", ErrDecryptionFailed)
	}

	nonceSize := e.aead.NonceSize()
	if len(sealed) < nonceSize {
		return "", fmt.Errorf("%w: ciphertext shorter than nonce", ErrDecryptionFailed)
	}

	plaintext, err := e.aead.Open(nil, sealed[:nonceSize], sealed[nonceSize:], nil)
	if err != nil {
		return "", ErrDecryptionFailed
	}

	return string(plaintext), nil
}

// IsEncrypted reports whether a stored value is an envelope produced by this
// package. Legacy records written before encryption was introduced fail this
// check and must be treated as plaintext.
func IsEncrypted(value string) bool {
	encoded, ok := strings.CutPrefix(value, envelopePrefix)
	if !ok {
		return false
	}
	_, err := base64.StdEncoding.DecodeString(encoded)
	return err == nil
}

// DecryptCredential returns the usable credential for a stored value.
// Encrypted envelopes are decrypted; legacy plaintext values pass through
// with a migration warning so old records keep working.
func (e *Encryptor) DecryptCredential(value string) (string, error) {
	if !IsEncrypted(value) {
		if value != "" {
			log.Printf("Warning: stored credential is not encrypted, using as-is (pending migration)")
		}
		return value, nil
	}
	return e.Decrypt(value)
}
