package vault

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"github.com/gunjansamrit/GuardianVault01/internal/crypto"
)

func createTestVault(t *testing.T) *Vault {
	t.Helper()
	v, err := Open(filepath.Join(t.TempDir(), "vault.db"))
	if err != nil {
		t.Fatalf("Open vault: %v", err)
	}
	t.Cleanup(func() { v.Close() })
	return v
}

func testOwnerKey(t *testing.T) []byte {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	return key
}

func TestPutGet_Roundtrip(t *testing.T) {
	v := createTestVault(t)
	key := testOwnerKey(t)
	itemID := uuid.New()
	value := []byte(`{"aadhar":"1234-5678-9012"}`)

	if err := v.Put(key, itemID, value); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := v.Get(key, itemID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !bytes.Equal(got, value) {
		t.Fatalf("expected %q, got %q", value, got)
	}
}

func TestGet_MissingEntry(t *testing.T) {
	v := createTestVault(t)
	key := testOwnerKey(t)

	_, err := v.Get(key, uuid.New())
	if !errors.Is(err, ErrEntryNotFound) {
		t.Fatalf("expected ErrEntryNotFound, got %v", err)
	}
}

func TestGet_WrongKey(t *testing.T) {
	v := createTestVault(t)
	key := testOwnerKey(t)
	itemID := uuid.New()

	if err := v.Put(key, itemID, []byte("payload")); err != nil {
		t.Fatalf("Put: %v", err)
	}

	// A different key derives a different lookup key, so the entry is simply
	// not found rather than failing authentication.
	_, err := v.Get(testOwnerKey(t), itemID)
	if !errors.Is(err, ErrEntryNotFound) {
		t.Fatalf("expected ErrEntryNotFound, got %v", err)
	}
}

func TestPut_Overwrite(t *testing.T) {
	v := createTestVault(t)
	key := testOwnerKey(t)
	itemID := uuid.New()

	if err := v.Put(key, itemID, []byte("first")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := v.Put(key, itemID, []byte("second")); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := v.Get(key, itemID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != "second" {
		t.Fatalf("expected overwritten value, got %q", got)
	}
}

func TestDelete(t *testing.T) {
	v := createTestVault(t)
	key := testOwnerKey(t)
	itemID := uuid.New()

	if err := v.Put(key, itemID, []byte("payload")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := v.Delete(key, itemID); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	if _, err := v.Get(key, itemID); !errors.Is(err, ErrEntryNotFound) {
		t.Fatalf("expected ErrEntryNotFound after delete, got %v", err)
	}
}

func TestDelete_MissingEntry(t *testing.T) {
	v := createTestVault(t)
	key := testOwnerKey(t)

	if err := v.Delete(key, uuid.New()); !errors.Is(err, ErrEntryNotFound) {
		t.Fatalf("expected ErrEntryNotFound, got %v", err)
	}
}

func TestPut_InvalidKey(t *testing.T) {
	v := createTestVault(t)

	if err := v.Put([]byte("short"), uuid.New(), []byte("payload")); !errors.Is(err, crypto.ErrInvalidKeySize) {
		t.Fatalf("expected ErrInvalidKeySize, got %v", err)
	}
}

func TestLookupKey_StableAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vault.db")
	key := testOwnerKey(t)
	itemID := uuid.New()

	v, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := v.Put(key, itemID, []byte("payload")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	v.Close()

	v2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer v2.Close()

	got, err := v2.Get(key, itemID)
	if err != nil {
		t.Fatalf("Get after reopen: %v", err)
	}
	if string(got) != "payload" {
		t.Fatalf("expected payload after reopen, got %q", got)
	}
}
