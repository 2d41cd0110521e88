// Package items manages an owner's data items: the registry row and the
// vault ciphertext move together. Deleting an item removes both; updating
// re-encrypts the vault entry in place.
package items

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/gunjansamrit/GuardianVault01/internal/consent"
	"github.com/gunjansamrit/GuardianVault01/internal/crypto"
	"github.com/gunjansamrit/GuardianVault01/internal/keyring"
	"github.com/gunjansamrit/GuardianVault01/internal/store"
	"github.com/gunjansamrit/GuardianVault01/internal/vault"
)

// Service handles item CRUD for owners.
type Service struct {
	store *store.Store
	vault *vault.Vault
	keys  *keyring.Keyring
}

// NewService creates an items Service.
func NewService(st *store.Store, v *vault.Vault, keys *keyring.Keyring) *Service {
	return &Service{store: st, vault: v, keys: keys}
}

// ownerKey resolves and unwraps the owner's vault key. The caller must zero
// the returned key when done.
func (s *Service) ownerKey(ctx context.Context, ownerID uuid.UUID) ([]byte, error) {
	owner, err := s.store.GetParty(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if len(owner.WrappedKey) == 0 {
		return nil, fmt.Errorf("party %s holds no vault key", ownerID)
	}
	return s.keys.Unwrap(owner.WrappedKey)
}

// Add creates a registry row and stores the encrypted value in the vault.
func (s *Service) Add(ctx context.Context, ownerID uuid.UUID, name string, kind consent.ItemKind, value []byte) (*consent.DataItem, error) {
	key, err := s.ownerKey(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	defer crypto.ZeroBytes(key)

	item, err := s.store.CreateItem(ctx, &consent.DataItem{
		OwnerID: ownerID,
		Name:    name,
		Kind:    kind,
	})
	if err != nil {
		return nil, err
	}

	if err := s.vault.Put(key, item.ID, value); err != nil {
		// Roll the registry row back so no item exists without a payload.
		_ = s.store.DeleteItem(ctx, item.ID, ownerID)
		return nil, fmt.Errorf("store item value: %w", err)
	}

	return item, nil
}

// Get returns an owner's item with its decrypted value.
func (s *Service) Get(ctx context.Context, ownerID, itemID uuid.UUID) (*consent.DataItem, []byte, error) {
	item, err := s.store.GetItemForOwner(ctx, itemID, ownerID)
	if err != nil {
		return nil, nil, err
	}

	key, err := s.ownerKey(ctx, ownerID)
	if err != nil {
		return nil, nil, err
	}
	defer crypto.ZeroBytes(key)

	value, err := s.vault.Get(key, item.ID)
	if err != nil {
		return nil, nil, err
	}
	return item, value, nil
}

// List returns the owner's item metadata. Values stay in the vault.
func (s *Service) List(ctx context.Context, ownerID uuid.UUID) ([]consent.DataItem, error) {
	return s.store.ListItemsByOwner(ctx, ownerID)
}

// Update renames an item and/or re-encrypts its value in place.
func (s *Service) Update(ctx context.Context, ownerID, itemID uuid.UUID, name string, value []byte) (*consent.DataItem, error) {
	item, err := s.store.GetItemForOwner(ctx, itemID, ownerID)
	if err != nil {
		return nil, err
	}

	if name != "" && name != item.Name {
		if err := s.store.UpdateItemName(ctx, itemID, ownerID, name); err != nil {
			return nil, err
		}
		item.Name = name
	}

	if value != nil {
		key, err := s.ownerKey(ctx, ownerID)
		if err != nil {
			return nil, err
		}
		defer crypto.ZeroBytes(key)

		if err := s.vault.Put(key, item.ID, value); err != nil {
			return nil, fmt.Errorf("update item value: %w", err)
		}
	}

	return item, nil
}

// Delete removes the registry row and the vault entry. The vault entry goes
// first: without the registry row its lookup key could no longer be derived
// from a live item.
func (s *Service) Delete(ctx context.Context, ownerID, itemID uuid.UUID) error {
	item, err := s.store.GetItemForOwner(ctx, itemID, ownerID)
	if err != nil {
		return err
	}

	key, err := s.ownerKey(ctx, ownerID)
	if err != nil {
		return err
	}
	defer crypto.ZeroBytes(key)

	if err := s.vault.Delete(key, item.ID); err != nil && !errors.Is(err, vault.ErrEntryNotFound) {
		return fmt.Errorf("delete item value: %w", err)
	}

	return s.store.DeleteItem(ctx, itemID, ownerID)
}
