// Package crypto provides the cryptographic primitives used by GuardianVault.
// It implements AES-256-GCM for symmetric encryption, a deterministic
// encryption mode used only for vault lookup keys, and Argon2id for password
// hashing.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
)

const (
	// KeySize is the size of AES-256 keys in bytes.
	KeySize = 32

	// NonceSize is the size of GCM nonces in bytes.
	NonceSize = 12

	// TagSize is the size of GCM authentication tags in bytes.
	TagSize = 16

	// SaltSize is the size of salts for password hashing in bytes.
	SaltSize = 16

	// Argon2Time is the time parameter for Argon2id.
	Argon2Time = 3

	// Argon2Memory is the memory parameter for Argon2id in KiB.
	Argon2Memory = 64 * 1024

	// Argon2Threads is the parallelism parameter for Argon2id.
	Argon2Threads = 4
)

var (
	// ErrInvalidKeySize is returned when a key has an incorrect size.
	ErrInvalidKeySize = errors.New("key must be 32 bytes")

	// ErrInvalidCiphertext is returned when ciphertext is malformed.
	ErrInvalidCiphertext = errors.New("ciphertext too short")

	// ErrDecryptionFailed is returned when decryption fails (authentication error).
	ErrDecryptionFailed = errors.New("decryption failed: authentication error")
)

// Encrypt encrypts plaintext using AES-256-GCM with a random nonce.
// The result is: nonce (12 bytes) + ciphertext + tag (16 bytes).
func Encrypt(key, plaintext []byte) ([]byte, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKeySize
	}

	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	// Seal prepends nonce to ciphertext
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// EncryptDeterministic encrypts plaintext using AES-256-GCM with a synthetic
// nonce derived from HMAC-SHA256(key, plaintext). The same key and plaintext
// always produce the same ciphertext, which makes the output usable as a
// lookup key. Equal plaintexts are therefore correlatable; never use this
// mode where the ciphertext itself must hide equality.
func EncryptDeterministic(key, plaintext []byte) ([]byte, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKeySize
	}

	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	mac := hmac.New(sha256.New, key)
	mac.Write(plaintext)
	nonce := mac.Sum(nil)[:NonceSize]

	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt decrypts ciphertext produced by Encrypt or EncryptDeterministic.
// It expects the nonce to be prepended to the ciphertext.
func Decrypt(key, ciphertext []byte) ([]byte, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKeySize
	}

	// Minimum length: nonce + tag
	if len(ciphertext) < NonceSize+TagSize {
		return nil, ErrInvalidCiphertext
	}

	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce := ciphertext[:NonceSize]
	plaintext, err := gcm.Open(nil, nonce, ciphertext[NonceSize:], nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}

	return plaintext, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}

// GenerateKey generates a cryptographically secure random 32-byte key.
func GenerateKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	return key, nil
}

// GenerateSalt generates a cryptographically secure random 16-byte salt.
func GenerateSalt() ([]byte, error) {
	salt := make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	return salt, nil
}

// EncodeKey encodes a key to base64 for storage/transmission.
func EncodeKey(key []byte) string {
	return base64.StdEncoding.EncodeToString(key)
}

// DecodeKey decodes a base64-encoded key and checks its size.
func DecodeKey(encoded string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode key: %w", err)
	}
	if len(key) != KeySize {
		return nil, ErrInvalidKeySize
	}
	return key, nil
}

// ZeroBytes securely zeros a byte slice.
// Use this to clear sensitive data from memory when done.
func ZeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// PasswordHashSize is the size of the derived key for password hashing.
const PasswordHashSize = 32

// HashPassword hashes a password using Argon2id and returns a base64-encoded
// string. The format is: base64(salt || hash) where salt is 16 bytes and hash
// is 32 bytes.
func HashPassword(password string) (string, error) {
	salt, err := GenerateSalt()
	if err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}

	hash := argon2.IDKey([]byte(password), salt, Argon2Time, Argon2Memory, Argon2Threads, PasswordHashSize)

	combined := make([]byte, SaltSize+PasswordHashSize)
	copy(combined[:SaltSize], salt)
	copy(combined[SaltSize:], hash)

	return base64.StdEncoding.EncodeToString(combined), nil
}

// VerifyPassword verifies a password against a hash created by HashPassword.
func VerifyPassword(password, encodedHash string) bool {
	combined, err := base64.StdEncoding.DecodeString(encodedHash)
	if err != nil {
		return false
	}

	if len(combined) != SaltSize+PasswordHashSize {
		return false
	}

	salt := combined[:SaltSize]
	storedHash := combined[SaltSize:]

	computedHash := argon2.IDKey([]byte(password), salt, Argon2Time, Argon2Memory, Argon2Threads, PasswordHashSize)

	return subtle.ConstantTimeCompare(storedHash, computedHash) == 1
}
