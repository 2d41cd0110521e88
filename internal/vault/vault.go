// Package vault implements the encrypted key/value store holding data item
// payloads. Entries are keyed by a deterministic encryption of the item id
// under the owner's key, so the same (key, item) pair always resolves to the
// same row. The mapping cipher is a lookup device, not a confidentiality
// layer; see crypto.EncryptDeterministic for the caveat.
package vault

import (
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	"github.com/gunjansamrit/GuardianVault01/internal/crypto"
)

var bucketEntries = []byte("entries")

var (
	// ErrEntryNotFound is returned when no entry exists for the recomputed
	// lookup key. Querying with a stale or rotated owner key fails this way;
	// the store never attempts multi-key fallback.
	ErrEntryNotFound = errors.New("vault entry not found")
)

// Vault is the encrypted item store backed by a bbolt file.
type Vault struct {
	db *bolt.DB
}

// Open opens (or creates) the vault database at the given path. The file is
// created with 0600 permissions.
func Open(path string) (*Vault, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open vault db: %w", err)
	}

	if err = db.Update(func(tx *bolt.Tx) error {
		_, bErr := tx.CreateBucketIfNotExists(bucketEntries)
		return bErr
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("init vault bucket: %w", err)
	}

	return &Vault{db: db}, nil
}

// Close closes the underlying database.
func (v *Vault) Close() error {
	return v.db.Close()
}

// lookupKey recomputes the deterministic ciphertext of the item id under the
// owner key. Both sides of every vault operation go through this function so
// the id-to-row mapping stays stable.
func lookupKey(ownerKey []byte, itemID uuid.UUID) ([]byte, error) {
	enc, err := crypto.EncryptDeterministic(ownerKey, []byte(itemID.String()))
	if err != nil {
		return nil, fmt.Errorf("derive lookup key: %w", err)
	}
	return []byte(base64.StdEncoding.EncodeToString(enc)), nil
}

// Put stores the encrypted value for an item, overwriting any prior entry
// for the same id. The write happens in a single bbolt transaction so it
// cannot interleave with a concurrent Delete of the same entry.
func (v *Vault) Put(ownerKey []byte, itemID uuid.UUID, plaintext []byte) error {
	key, err := lookupKey(ownerKey, itemID)
	if err != nil {
		return err
	}

	value, err := crypto.Encrypt(ownerKey, plaintext)
	if err != nil {
		return fmt.Errorf("encrypt item value: %w", err)
	}

	return v.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketEntries).Put(key, value)
	})
}

// Get recomputes the lookup key, fetches the entry, and decrypts the value.
// Returns ErrEntryNotFound when the recomputed key matches no row.
func (v *Vault) Get(ownerKey []byte, itemID uuid.UUID) ([]byte, error) {
	key, err := lookupKey(ownerKey, itemID)
	if err != nil {
		return nil, err
	}

	var stored []byte
	err = v.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketEntries).Get(key)
		if raw == nil {
			return ErrEntryNotFound
		}
		stored = make([]byte, len(raw))
		copy(stored, raw)
		return nil
	})
	if err != nil {
		return nil, err
	}

	plaintext, err := crypto.Decrypt(ownerKey, stored)
	if err != nil {
		// A row that exists but fails authentication is corruption, not a
		// missing entry. Surface the crypto error unchanged.
		return nil, fmt.Errorf("decrypt item value: %w", err)
	}
	return plaintext, nil
}

// Delete removes the entry for an item. Returns ErrEntryNotFound when the
// recomputed key matches no row.
func (v *Vault) Delete(ownerKey []byte, itemID uuid.UUID) error {
	key, err := lookupKey(ownerKey, itemID)
	if err != nil {
		return err
	}

	return v.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketEntries)
		if b.Get(key) == nil {
			return ErrEntryNotFound
		}
		return b.Delete(key)
	})
}
