// Package keyring wraps and unwraps per-owner data keys under the
// process-wide master key. Owner keys are generated client-side at signup and
// persist only in wrapped form; the raw key exists in memory just long enough
// to serve a request.
package keyring

import (
	"errors"
	"fmt"

	"github.com/gunjansamrit/GuardianVault01/internal/crypto"
)

var (
	// ErrUnwrapFailed is returned when a wrapped key cannot be recovered,
	// either because the ciphertext is malformed or the master key is wrong.
	ErrUnwrapFailed = errors.New("owner key unwrap failed")

	// ErrNoMasterKey is returned when the keyring is constructed without a key.
	ErrNoMasterKey = errors.New("master key not configured")
)

// Keyring holds the master key for the lifetime of the process. All
// operations are read-only with respect to the keyring and safe for
// concurrent use.
type Keyring struct {
	masterKey []byte
}

// New creates a Keyring from a 32-byte master key.
func New(masterKey []byte) (*Keyring, error) {
	if len(masterKey) == 0 {
		return nil, ErrNoMasterKey
	}
	if len(masterKey) != crypto.KeySize {
		return nil, crypto.ErrInvalidKeySize
	}
	return &Keyring{masterKey: masterKey}, nil
}

// Wrap encrypts a raw owner key under the master key for storage.
func (k *Keyring) Wrap(rawKey []byte) ([]byte, error) {
	wrapped, err := crypto.Encrypt(k.masterKey, rawKey)
	if err != nil {
		return nil, fmt.Errorf("wrap owner key: %w", err)
	}
	return wrapped, nil
}

// Unwrap recovers a raw owner key from its wrapped form. A malformed
// ciphertext or a wrong master key yields ErrUnwrapFailed; the caller must
// treat this as fatal for the request, never as an empty key.
func (k *Keyring) Unwrap(wrappedKey []byte) ([]byte, error) {
	raw, err := crypto.Decrypt(k.masterKey, wrappedKey)
	if err != nil {
		return nil, ErrUnwrapFailed
	}
	if len(raw) != crypto.KeySize {
		crypto.ZeroBytes(raw)
		return nil, ErrUnwrapFailed
	}
	return raw, nil
}

// Generate produces a fresh random owner key. Used by the signup collaborator
// when the client does not supply its own key material.
func (k *Keyring) Generate() ([]byte, error) {
	return crypto.GenerateKey()
}
