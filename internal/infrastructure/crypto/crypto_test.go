package crypto

import (
	"errors"
	"strings"
	"testing"
)

const (
	testKey  = "01234567890123456789012345678901" // 32 bytes for AES-256
	testSalt = "finsync-test-salt"
)

func TestNewEncryptor_ValidKey(t *testing.T) {
	enc, err := NewEncryptor(testKey, testSalt)
	if err != nil {
		t.Fatalf("NewEncryptor() failed: %v", err)
	}
	if enc == nil {
		t.Fatal("NewEncryptor() returned nil")
	}
}

func TestNewEncryptor_ShortKey(t *testing.T) {
	_, err := NewEncryptor("too-short", testSalt)
	if err == nil {
		t.Error("NewEncryptor() expected error for short key, got nil")
	}
	if !errors.Is(err, ErrInvalidKey) {
		t.Errorf("NewEncryptor() error = %v, want %v", err, ErrInvalidKey)
	}
}

func TestNewEncryptor_PassphraseKey(t *testing.T) {
	// 16..31 byte keys are stretched with PBKDF2 instead of rejected.
	enc, err := NewEncryptor("a-sixteen-byte-k", testSalt)
	if err != nil {
		t.Fatalf("NewEncryptor() failed for passphrase key: %v", err)
	}

	ciphertext, err := enc.Encrypt("secret")
	if err != nil {
		t.Fatalf("Encrypt() failed: %v", err)
	}
	plaintext, err := enc.Decrypt(ciphertext)
	if err != nil {
		t.Fatalf("Decrypt() failed: %v", err)
	}
	if plaintext != "secret" {
		t.Errorf("Decrypt() = %q, want %q", plaintext, "secret")
	}
}

func TestEncryptDecrypt_Roundtrip(t *testing.T) {
	enc, _ := NewEncryptor(testKey, testSalt)

	plaintext := "access-token-4f8a1b"
	ciphertext, err := enc.Encrypt(plaintext)
	if err != nil {
		t.Fatalf("Encrypt() failed: %v", err)
	}

	if ciphertext == plaintext {
		t.Error("Encrypt() returned plaintext")
	}
	if !strings.HasPrefix(ciphertext, envelopePrefix) {
		t.Errorf("Encrypt() envelope missing prefix: %q", ciphertext)
	}

	decrypted, err := enc.Decrypt(ciphertext)
	if err != nil {
		t.Fatalf("Decrypt() failed: %v", err)
	}

	if decrypted != plaintext {
		t.Errorf("Decrypt() = %q, want %q", decrypted, plaintext)
	}
}

func TestEncrypt_EmptyString(t *testing.T) {
	enc, _ := NewEncryptor(testKey, testSalt)

	ciphertext, err := enc.Encrypt("")
	if err != nil {
		t.Fatalf("Encrypt() failed: %v", err)
	}
	if ciphertext != "" {
		t.Errorf("Encrypt(\"\") = %q, want empty string", ciphertext)
	}
}

func TestEncrypt_DifferentCiphertexts(t *testing.T) {
	enc, _ := NewEncryptor(testKey, testSalt)

	c1, _ := enc.Encrypt("same text")
	c2, _ := enc.Encrypt("same text")

	if c1 == c2 {
		t.Error("Encrypt() produced identical ciphertexts for same plaintext (nonce should differ)")
	}
}

func TestDecrypt_TamperedCiphertext(t *testing.T) {
	enc, _ := NewEncryptor(testKey, testSalt)

	ciphertext, _ := enc.Encrypt("secret data")

	// Tamper with the ciphertext
	tampered := ciphertext[:len(ciphertext)-2] + "XX"
	_, err := enc.Decrypt(tampered)
	if !errors.Is(err, ErrDecryptionFailed) {
		t.Errorf("Decrypt() tampered ciphertext error = %v, want %v", err, ErrDecryptionFailed)
	}
}

func TestDecrypt_NotAnEnvelope(t *testing.T) {
	enc, _ := NewEncryptor(testKey, testSalt)

	_, err := enc.Decrypt("plain-old-password")
	if !errors.Is(err, ErrDecryptionFailed) {
		t.Errorf("Decrypt() plaintext error = %v, want %v", err, ErrDecryptionFailed)
	}
}

func TestDecrypt_TooShortCiphertext(t *testing.T) {
	enc, _ := NewEncryptor(testKey, testSalt)

	_, err := enc.Decrypt(envelopePrefix + "YQ==") // "a" in base64
	if !errors.Is(err, ErrDecryptionFailed) {
		t.Errorf("Decrypt() short ciphertext error = %v, want %v", err, ErrDecryptionFailed)
	}
}

func TestDecrypt_WrongKey(t *testing.T) {
	enc1, _ := NewEncryptor(testKey, testSalt)
	enc2, _ := NewEncryptor("98765432109876543210987654321098", testSalt)

	ciphertext, _ := enc1.Encrypt("encrypted with key1")

	_, err := enc2.Decrypt(ciphertext)
	if !errors.Is(err, ErrDecryptionFailed) {
		t.Errorf("Decrypt() wrong-key error = %v, want %v", err, ErrDecryptionFailed)
	}
}

func TestIsEncrypted(t *testing.T) {
	enc, _ := NewEncryptor(testKey, testSalt)
	envelope, _ := enc.Encrypt("credential")

	tests := []struct {
		name  string
		value string
		want  bool
	}{
		{"Envelope", envelope, true},
		{"LegacyPlaintext", "my-bank-password", false},
		{"Empty", "", false},
		{"PrefixButInvalidBase64", envelopePrefix + "not base64!!!", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsEncrypted(tt.value); got != tt.want {
				t.Errorf("IsEncrypted(%q) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

func TestDecryptCredential_LegacyPlaintext(t *testing.T) {
	enc, _ := NewEncryptor(testKey, testSalt)

	got, err := enc.DecryptCredential("legacy-plaintext-token")
	if err != nil {
		t.Fatalf("DecryptCredential() failed on legacy value: %v", err)
	}
	if got != "legacy-plaintext-token" {
		t.Errorf("DecryptCredential() = %q, want passthrough", got)
	}
}

func TestDecryptCredential_Envelope(t *testing.T) {
	enc, _ := NewEncryptor(testKey, testSalt)
	envelope, _ := enc.Encrypt("fresh-token")

	got, err := enc.DecryptCredential(envelope)
	if err != nil {
		t.Fatalf("DecryptCredential() failed: %v", err)
	}
	if got != "fresh-token" {
		t.Errorf("DecryptCredential() = %q, want %q", got, "fresh-token")
	}
}

func TestEncryptDecrypt_UnicodeContent(t *testing.T) {
	enc, _ := NewEncryptor(testKey, testSalt)

	plaintext := "senha do banco: çãõ ☕ 1.500,00"
	ciphertext, err := enc.Encrypt(plaintext)
	if err != nil {
		t.Fatalf("Encrypt() failed with unicode: %v", err)
	}

	decrypted, err := enc.Decrypt(ciphertext)
	if err != nil {
		t.Fatalf("Decrypt() failed with unicode: %v", err)
	}

	if decrypted != plaintext {
		t.Errorf("Unicode roundtrip failed: got %q, want %q", decrypted, plaintext)
	}
}

func TestEncryptDecrypt_LongContent(t *testing.T) {
	enc, _ := NewEncryptor(testKey, testSalt)

	plaintext := strings.Repeat("long credential blob ", 1000)
	ciphertext, err := enc.Encrypt(plaintext)
	if err != nil {
		t.Fatalf("Encrypt() failed with long content: %v", err)
	}

	decrypted, err := enc.Decrypt(ciphertext)
	if err != nil {
		t.Fatalf("Decrypt() failed with long content: %v", err)
	}

	if decrypted != plaintext {
		t.Error("Long content roundtrip failed")
	}
}
