// Package consent implements the consent lifecycle state machine that gates
// every read of the encrypted vault. All consent mutations flow through the
// Engine so a ledger row can never change without its matching history entry.
package consent

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Status is the authorization state of a consent record.
type Status string

const (
	StatusPending        Status = "pending"
	StatusApproved       Status = "approved"
	StatusRejected       Status = "rejected"
	StatusRevoked        Status = "revoked"
	StatusCountExhausted Status = "count_exhausted"
	StatusExpired        Status = "expired"
)

// Action is an owner decision applied to a consent record.
type Action string

const (
	ActionGrant  Action = "grant"
	ActionRevoke Action = "revoke"
	ActionReject Action = "reject"
)

// SystemActor is recorded as changed_by for automatic transitions such as
// lazy expiry detection.
const SystemActor = "system"

// DefaultAccessCount is the access budget of a freshly created request.
const DefaultAccessCount = 1

// NeverExpires is the sentinel deadline for an unbounded grant. Validity is
// always a concrete timestamp, never NULL.
var NeverExpires = time.UnixMilli(8640000000000000).UTC()

// PartyKind discriminates the two kinds of parties that can appear in a
// consent relation.
type PartyKind string

const (
	PartyIndividual PartyKind = "individual"
	PartyRequestor  PartyKind = "requestor"
)

// Party is a tagged union of the individual/requestor kinds with the common
// capabilities the engine needs: a display name and, for individuals, the
// wrapped vault key.
type Party struct {
	ID          uuid.UUID
	Kind        PartyKind
	DisplayName string
	Email       string
	WrappedKey  []byte // nil for requestors
	CreatedAt   time.Time
}

// ItemKind classifies a data item.
type ItemKind string

const (
	ItemRecord ItemKind = "record"
	ItemFile   ItemKind = "file"
)

// DataItem is a registry row: identity and display metadata only, never the
// item contents.
type DataItem struct {
	ID        uuid.UUID
	OwnerID   uuid.UUID
	Name      string
	Kind      ItemKind
	CreatedAt time.Time
}

// Consent is one ledger record per (item, seeker, provider) triple.
type Consent struct {
	ID             uuid.UUID
	ItemID         uuid.UUID
	SeekerID       uuid.UUID
	ProviderID     uuid.UUID
	Status         Status
	AccessCount    int32
	ValidityPeriod time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// HistoryEntry is one append-only audit row per consent transition.
// PreviousStatus is empty for the creation entry.
type HistoryEntry struct {
	ID             uuid.UUID
	ConsentID      uuid.UUID
	ChangedBy      string
	PreviousStatus Status
	NewStatus      Status
	Remarks        string
	Timestamp      time.Time
}

// PendingSummary is a pending consent joined with the item and seeker
// metadata an owner needs to decide on it.
type PendingSummary struct {
	ConsentID   uuid.UUID
	ItemName    string
	SeekerName  string
	SeekerEmail string
	Status      Status
	CreatedAt   time.Time
}

// Transition is a guarded state change: the update applies only while the
// record still carries the expected status and count, and the history entry
// commits in the same transaction.
type Transition struct {
	ConsentID      uuid.UUID
	ExpectedStatus Status
	ExpectedCount  int32
	NewStatus      Status
	NewCount       int32
	NewValidity    time.Time
	ChangedBy      string
	Remarks        string
}

// Ledger is the persistence contract for consent records. Implementations
// must make ApplyTransition and CreateWithHistory atomic with their history
// writes.
type Ledger interface {
	FindByTriple(ctx context.Context, itemID, seekerID, providerID uuid.UUID) (*Consent, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Consent, error)
	CreateWithHistory(ctx context.Context, c *Consent, changedBy, remarks string) (*Consent, error)
	ApplyTransition(ctx context.Context, t Transition) error
	ListPendingForOwner(ctx context.Context, ownerID uuid.UUID) ([]PendingSummary, error)
	ListByProvider(ctx context.Context, providerID uuid.UUID) ([]Consent, error)
}

// Registry resolves item identity and ownership.
type Registry interface {
	GetItem(ctx context.Context, id uuid.UUID) (*DataItem, error)
}

// Parties resolves the parties of a consent relation.
type Parties interface {
	GetParty(ctx context.Context, id uuid.UUID) (*Party, error)
}

// History is the read side of the audit trail; appends happen inside Ledger
// transactions only.
type History interface {
	ListByConsentIDs(ctx context.Context, ids []uuid.UUID) ([]HistoryEntry, error)
}

// ItemVault is the encrypted payload store consulted after an access is
// authorized.
type ItemVault interface {
	Get(ownerKey []byte, itemID uuid.UUID) ([]byte, error)
}

// KeySource unwraps an owner's stored key for the duration of a request.
type KeySource interface {
	Unwrap(wrappedKey []byte) ([]byte, error)
}
