package keyring

import (
	"bytes"
	"errors"
	"testing"

	"github.com/gunjansamrit/GuardianVault01/internal/crypto"
)

func testKeyring(t *testing.T) *Keyring {
	t.Helper()
	master, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	k, err := New(master)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return k
}

func TestNew_NoKey(t *testing.T) {
	if _, err := New(nil); !errors.Is(err, ErrNoMasterKey) {
		t.Fatalf("expected ErrNoMasterKey, got %v", err)
	}
}

func TestNew_WrongSize(t *testing.T) {
	if _, err := New([]byte("short")); !errors.Is(err, crypto.ErrInvalidKeySize) {
		t.Fatalf("expected ErrInvalidKeySize, got %v", err)
	}
}

func TestWrapUnwrap_Roundtrip(t *testing.T) {
	k := testKeyring(t)

	raw, err := k.Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	wrapped, err := k.Wrap(raw)
	if err != nil {
		t.Fatalf("Wrap: %v", err)
	}
	if bytes.Contains(wrapped, raw) {
		t.Fatal("wrapped key contains raw key")
	}

	unwrapped, err := k.Unwrap(wrapped)
	if err != nil {
		t.Fatalf("Unwrap: %v", err)
	}
	if !bytes.Equal(unwrapped, raw) {
		t.Fatal("unwrapped key does not match original")
	}
}

func TestUnwrap_WrongMasterKey(t *testing.T) {
	k := testKeyring(t)
	other := testKeyring(t)

	raw, err := k.Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	wrapped, err := k.Wrap(raw)
	if err != nil {
		t.Fatalf("Wrap: %v", err)
	}

	if _, err := other.Unwrap(wrapped); !errors.Is(err, ErrUnwrapFailed) {
		t.Fatalf("expected ErrUnwrapFailed, got %v", err)
	}
}

func TestUnwrap_Malformed(t *testing.T) {
	k := testKeyring(t)

	if _, err := k.Unwrap([]byte("not a wrapped key")); !errors.Is(err, ErrUnwrapFailed) {
		t.Fatalf("expected ErrUnwrapFailed, got %v", err)
	}
}
