package consent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/gunjansamrit/GuardianVault01/internal/crypto"
	"github.com/gunjansamrit/GuardianVault01/internal/logging"
	"github.com/gunjansamrit/GuardianVault01/internal/metrics"
	"github.com/gunjansamrit/GuardianVault01/internal/vault"
)

// maxTransitionRetries bounds how often a guarded transition is retried from
// a fresh read before the request surfaces as a Conflict.
const maxTransitionRetries = 3

// Engine drives the consent state machine and gates vault reads. It is the
// only entry point that mutates consent records, so every transition carries
// its history entry.
type Engine struct {
	ledger   Ledger
	registry Registry
	parties  Parties
	history  History
	vault    ItemVault
	keys     KeySource

	now     func() time.Time
	retries int
}

// New creates an Engine over the given collaborators.
func New(ledger Ledger, registry Registry, parties Parties, history History, vault ItemVault, keys KeySource) *Engine {
	return &Engine{
		ledger:   ledger,
		registry: registry,
		parties:  parties,
		history:  history,
		vault:    vault,
		keys:     keys,
		now:      time.Now,
		retries:  maxTransitionRetries,
	}
}

// AccessResult is the outcome of a seeker's access attempt.
type AccessResult struct {
	ConsentID      uuid.UUID
	Status         Status
	Granted        bool
	RequestSent    bool
	ItemName       string
	ItemValue      string
	AccessCount    int32
	ValidityPeriod time.Time
}

// DecisionResult is the outcome of an owner decision.
type DecisionResult struct {
	ConsentID uuid.UUID
	NewStatus Status
}

// RequestOrAccess is the find-or-create-and-gate operation. With no existing
// record it files a pending request and never grants access. With an
// approved record it checks expiry, decrements the access budget, and only
// then touches the vault. All other states report themselves and deny.
func (e *Engine) RequestOrAccess(ctx context.Context, itemID, seekerID uuid.UUID) (*AccessResult, error) {
	log := logging.Logger(ctx)

	item, err := e.registry.GetItem(ctx, itemID)
	if err != nil {
		if errors.Is(err, ErrItemNotFound) {
			return nil, ErrItemNotFound
		}
		return nil, fmt.Errorf("resolve item: %w", err)
	}

	owner, err := e.parties.GetParty(ctx, item.OwnerID)
	if err != nil {
		if errors.Is(err, ErrPartyNotFound) {
			return nil, ErrOwnerNotFound
		}
		return nil, fmt.Errorf("resolve owner: %w", err)
	}
	if len(owner.WrappedKey) == 0 {
		return nil, ErrOwnerKeyMissing
	}

	for attempt := 0; attempt <= e.retries; attempt++ {
		c, err := e.ledger.FindByTriple(ctx, itemID, seekerID, item.OwnerID)
		if errors.Is(err, ErrConsentNotFound) {
			res, created, cErr := e.createRequest(ctx, item, seekerID)
			if cErr != nil {
				return nil, cErr
			}
			if !created {
				// Lost the insert race; evaluate the winner's record.
				continue
			}
			log.Info("consent request filed",
				"consent_id", res.ConsentID,
				"item_id", itemID,
				"seeker_id", seekerID,
			)
			return res, nil
		}
		if err != nil {
			return nil, fmt.Errorf("find consent: %w", err)
		}

		switch c.Status {
		case StatusApproved:
			res, err := e.evaluateApproved(ctx, c, item, owner, seekerID)
			if errors.Is(err, ErrStaleConsent) {
				continue
			}
			return res, err

		case StatusPending:
			return &AccessResult{ConsentID: c.ID, Status: StatusPending}, nil

		default:
			// rejected, revoked, count_exhausted, expired: report, deny, and
			// leave the record alone. Reopening takes an explicit grant.
			metrics.AccessDenied(string(c.Status))
			return &AccessResult{
				ConsentID:   c.ID,
				Status:      c.Status,
				AccessCount: c.AccessCount,
			}, nil
		}
	}

	return nil, ErrConflict
}

// createRequest files a new pending consent. The bool result is false when a
// concurrent request already created the record for the triple.
func (e *Engine) createRequest(ctx context.Context, item *DataItem, seekerID uuid.UUID) (*AccessResult, bool, error) {
	c := &Consent{
		ItemID:         item.ID,
		SeekerID:       seekerID,
		ProviderID:     item.OwnerID,
		Status:         StatusPending,
		AccessCount:    DefaultAccessCount,
		ValidityPeriod: NeverExpires,
	}

	created, err := e.ledger.CreateWithHistory(ctx, c, seekerID.String(), "access request filed")
	if errors.Is(err, ErrDuplicateConsent) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("create consent: %w", err)
	}

	metrics.ConsentTransition("", string(StatusPending))
	return &AccessResult{
		ConsentID:   created.ID,
		Status:      StatusPending,
		RequestSent: true,
	}, true, nil
}

// evaluateApproved handles the access path for an approved record: lazy
// expiry first, then the guarded decrement, then the vault read.
func (e *Engine) evaluateApproved(ctx context.Context, c *Consent, item *DataItem, owner *Party, seekerID uuid.UUID) (*AccessResult, error) {
	log := logging.Logger(ctx)
	now := e.now()

	if now.After(c.ValidityPeriod) {
		// Expiry takes precedence and the access budget stays untouched.
		err := e.ledger.ApplyTransition(ctx, Transition{
			ConsentID:      c.ID,
			ExpectedStatus: StatusApproved,
			ExpectedCount:  c.AccessCount,
			NewStatus:      StatusExpired,
			NewCount:       c.AccessCount,
			NewValidity:    c.ValidityPeriod,
			ChangedBy:      SystemActor,
			Remarks:        "validity period elapsed",
		})
		if err != nil {
			if errors.Is(err, ErrStaleConsent) {
				return nil, err
			}
			return nil, fmt.Errorf("expire consent: %w", err)
		}
		metrics.ConsentTransition(string(StatusApproved), string(StatusExpired))
		metrics.AccessDenied(string(StatusExpired))
		log.Info("consent expired on access", "consent_id", c.ID)
		return &AccessResult{
			ConsentID:      c.ID,
			Status:         StatusExpired,
			AccessCount:    c.AccessCount,
			ValidityPeriod: c.ValidityPeriod,
		}, nil
	}

	if c.AccessCount <= 0 {
		// An approved record with no budget left should not exist; normalize
		// it to count_exhausted and deny.
		err := e.ledger.ApplyTransition(ctx, Transition{
			ConsentID:      c.ID,
			ExpectedStatus: StatusApproved,
			ExpectedCount:  c.AccessCount,
			NewStatus:      StatusCountExhausted,
			NewCount:       0,
			NewValidity:    c.ValidityPeriod,
			ChangedBy:      SystemActor,
			Remarks:        "access count exhausted",
		})
		if err != nil {
			if errors.Is(err, ErrStaleConsent) {
				return nil, err
			}
			return nil, fmt.Errorf("exhaust consent: %w", err)
		}
		metrics.ConsentTransition(string(StatusApproved), string(StatusCountExhausted))
		metrics.AccessDenied(string(StatusCountExhausted))
		return &AccessResult{ConsentID: c.ID, Status: StatusCountExhausted}, nil
	}

	newCount := c.AccessCount - 1
	newStatus := StatusApproved
	if newCount == 0 {
		newStatus = StatusCountExhausted
	}

	err := e.ledger.ApplyTransition(ctx, Transition{
		ConsentID:      c.ID,
		ExpectedStatus: StatusApproved,
		ExpectedCount:  c.AccessCount,
		NewStatus:      newStatus,
		NewCount:       newCount,
		NewValidity:    c.ValidityPeriod,
		ChangedBy:      seekerID.String(),
		Remarks:        fmt.Sprintf("item accessed, %d remaining", newCount),
	})
	if err != nil {
		if errors.Is(err, ErrStaleConsent) {
			return nil, err
		}
		return nil, fmt.Errorf("record access: %w", err)
	}
	if newStatus != StatusApproved {
		metrics.ConsentTransition(string(StatusApproved), string(newStatus))
	}

	value, err := e.readVault(owner, item.ID)
	if err != nil {
		return nil, err
	}

	log.Info("item accessed",
		"consent_id", c.ID,
		"item_id", item.ID,
		"seeker_id", seekerID,
		"remaining", newCount,
	)
	metrics.VaultRead()

	return &AccessResult{
		ConsentID:      c.ID,
		Status:         newStatus,
		Granted:        true,
		ItemName:       item.Name,
		ItemValue:      string(value),
		AccessCount:    newCount,
		ValidityPeriod: c.ValidityPeriod,
	}, nil
}

// readVault unwraps the owner key and fetches the item payload. A missing
// entry for a registered item is corruption and is surfaced as such.
func (e *Engine) readVault(owner *Party, itemID uuid.UUID) ([]byte, error) {
	rawKey, err := e.keys.Unwrap(owner.WrappedKey)
	if err != nil {
		return nil, fmt.Errorf("resolve owner key: %w", err)
	}
	defer crypto.ZeroBytes(rawKey)

	value, err := e.vault.Get(rawKey, itemID)
	if err != nil {
		if errors.Is(err, vault.ErrEntryNotFound) {
			return nil, ErrVaultEntryMissing
		}
		return nil, fmt.Errorf("read vault: %w", err)
	}
	return value, nil
}

// Decide applies an owner decision to a consent record. Grant always lands
// in approved and refreshes count/validity; revoke and reject are rejected
// as invalid input when they would not change the status.
func (e *Engine) Decide(ctx context.Context, consentID uuid.UUID, actorID uuid.UUID, action Action, count *int32, validity *time.Time) (*DecisionResult, error) {
	log := logging.Logger(ctx)

	if action != ActionGrant && action != ActionRevoke && action != ActionReject {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAction, action)
	}
	if count != nil && *count < 0 {
		return nil, fmt.Errorf("%w: access count must not be negative", ErrInvalidAction)
	}

	for attempt := 0; attempt <= e.retries; attempt++ {
		c, err := e.ledger.GetByID(ctx, consentID)
		if err != nil {
			if errors.Is(err, ErrConsentNotFound) {
				return nil, ErrConsentNotFound
			}
			return nil, fmt.Errorf("load consent: %w", err)
		}

		if c.ProviderID != actorID {
			return nil, ErrNotProvider
		}

		newStatus, newCount, newValidity, err := e.planDecision(c, action, count, validity)
		if err != nil {
			return nil, err
		}

		err = e.ledger.ApplyTransition(ctx, Transition{
			ConsentID:      c.ID,
			ExpectedStatus: c.Status,
			ExpectedCount:  c.AccessCount,
			NewStatus:      newStatus,
			NewCount:       newCount,
			NewValidity:    newValidity,
			ChangedBy:      actorID.String(),
			Remarks:        fmt.Sprintf("%s: count=%d validity=%s", action, newCount, newValidity.Format(time.RFC3339)),
		})
		if errors.Is(err, ErrStaleConsent) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("apply decision: %w", err)
		}

		metrics.ConsentTransition(string(c.Status), string(newStatus))
		log.Info("consent decision applied",
			"consent_id", c.ID,
			"action", action,
			"from", c.Status,
			"to", newStatus,
		)
		return &DecisionResult{ConsentID: c.ID, NewStatus: newStatus}, nil
	}

	return nil, ErrConflict
}

// planDecision computes the target state of a decision against the current
// record, enforcing the allowed-transition table.
func (e *Engine) planDecision(c *Consent, action Action, count *int32, validity *time.Time) (Status, int32, time.Time, error) {
	switch action {
	case ActionGrant:
		// Re-grant from approved is allowed: it refreshes count/validity.
		newCount := c.AccessCount
		if count != nil {
			newCount = *count
		} else if newCount <= 0 {
			newCount = DefaultAccessCount
		}
		newValidity := c.ValidityPeriod
		if validity != nil {
			newValidity = *validity
		} else if !e.now().Before(newValidity) {
			newValidity = NeverExpires
		}
		return StatusApproved, newCount, newValidity, nil

	case ActionRevoke:
		if c.Status == StatusRevoked {
			return "", 0, time.Time{}, fmt.Errorf("%w: already revoked", ErrNoOpDecision)
		}
		if c.Status == StatusPending {
			return "", 0, time.Time{}, fmt.Errorf("%w: cannot revoke a pending request", ErrNoOpDecision)
		}
		return StatusRevoked, c.AccessCount, c.ValidityPeriod, nil

	case ActionReject:
		if c.Status == StatusRejected {
			return "", 0, time.Time{}, fmt.Errorf("%w: already rejected", ErrNoOpDecision)
		}
		return StatusRejected, c.AccessCount, c.ValidityPeriod, nil
	}

	return "", 0, time.Time{}, ErrInvalidAction
}

// ListPendingForOwner returns the owner's open requests, oldest first.
func (e *Engine) ListPendingForOwner(ctx context.Context, ownerID uuid.UUID) ([]PendingSummary, error) {
	summaries, err := e.ledger.ListPendingForOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list pending consents: %w", err)
	}
	return summaries, nil
}

// ListHistoryForConsentIDs returns the audit trail for the given consents,
// newest first.
func (e *Engine) ListHistoryForConsentIDs(ctx context.Context, ids []uuid.UUID) ([]HistoryEntry, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	entries, err := e.history.ListByConsentIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("list consent history: %w", err)
	}
	return entries, nil
}

// ListHistoryForOwner resolves all of an owner's consents and returns their
// combined audit trail, newest first.
func (e *Engine) ListHistoryForOwner(ctx context.Context, ownerID uuid.UUID) ([]HistoryEntry, error) {
	consents, err := e.ledger.ListByProvider(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list consents: %w", err)
	}
	ids := make([]uuid.UUID, len(consents))
	for i, c := range consents {
		ids[i] = c.ID
	}
	return e.ListHistoryForConsentIDs(ctx, ids)
}
