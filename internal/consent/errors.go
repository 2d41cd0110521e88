package consent

import (
	"errors"

	"github.com/gunjansamrit/GuardianVault01/internal/crypto"
	"github.com/gunjansamrit/GuardianVault01/internal/keyring"
	"github.com/gunjansamrit/GuardianVault01/internal/vault"
)

var (
	// ErrConsentNotFound is returned for an unknown consent id.
	ErrConsentNotFound = errors.New("consent record not found")

	// ErrItemNotFound is returned when the item registry has no such item.
	ErrItemNotFound = errors.New("item not found")

	// ErrOwnerNotFound is returned when the item's owner cannot be resolved.
	ErrOwnerNotFound = errors.New("owner not found")

	// ErrPartyNotFound is the store-level signal for a missing party; the
	// engine reports it as ErrOwnerNotFound when resolving an item's owner.
	ErrPartyNotFound = errors.New("party not found")

	// ErrOwnerKeyMissing is returned when the resolved owner carries no
	// wrapped key. Only individuals hold vault keys.
	ErrOwnerKeyMissing = errors.New("owner has no vault key")

	// ErrVaultEntryMissing is returned when the registry says the item exists
	// but the vault holds no ciphertext for it. This is a data-corruption
	// signal and must never be reported as "no data".
	ErrVaultEntryMissing = errors.New("vault entry missing for registered item")

	// ErrInvalidAction is returned for a decision outside {grant, revoke, reject}.
	ErrInvalidAction = errors.New("invalid action")

	// ErrNotProvider is returned when a decision actor is not the consent's
	// provider. Only the item's owner decides.
	ErrNotProvider = errors.New("actor is not the consent's provider")

	// ErrNoOpDecision is returned when a decision would not change the
	// record's status. No-op decisions are caller errors, not successes.
	ErrNoOpDecision = errors.New("decision does not change consent status")

	// ErrConflict is returned when concurrent updates exhausted the retry
	// budget.
	ErrConflict = errors.New("concurrent consent update, retries exhausted")

	// ErrStaleConsent is the store-level signal that a guarded transition
	// found the record already changed. The engine retries from a fresh read.
	ErrStaleConsent = errors.New("consent record changed concurrently")

	// ErrDuplicateConsent is the store-level signal that a record for the
	// triple already exists. The engine re-reads instead of inserting twice.
	ErrDuplicateConsent = errors.New("consent record already exists for triple")
)

// Kind buckets an error into the taxonomy the transport layer renders.
type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindInvalidInput
	KindForbidden
	KindConflict
	KindCrypto
)

// Classify maps an engine error to its taxonomy kind. Crypto failures stay
// opaque: callers must not echo the underlying error text to clients.
func Classify(err error) Kind {
	switch {
	case errors.Is(err, ErrConsentNotFound),
		errors.Is(err, ErrItemNotFound),
		errors.Is(err, ErrOwnerNotFound),
		errors.Is(err, ErrPartyNotFound),
		errors.Is(err, ErrVaultEntryMissing),
		errors.Is(err, vault.ErrEntryNotFound):
		return KindNotFound
	case errors.Is(err, ErrInvalidAction),
		errors.Is(err, ErrNoOpDecision):
		return KindInvalidInput
	case errors.Is(err, ErrNotProvider):
		return KindForbidden
	case errors.Is(err, ErrConflict):
		return KindConflict
	case errors.Is(err, keyring.ErrUnwrapFailed),
		errors.Is(err, crypto.ErrDecryptionFailed),
		errors.Is(err, crypto.ErrInvalidCiphertext),
		errors.Is(err, crypto.ErrInvalidKeySize):
		return KindCrypto
	default:
		return KindInternal
	}
}
