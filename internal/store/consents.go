package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/gunjansamrit/GuardianVault01/internal/consent"
)

const consentColumns = "id, item_id, seeker_id, provider_id, status, access_count, validity_period, created_at, updated_at"

func scanConsent(row pgx.Row) (*consent.Consent, error) {
	var c consent.Consent
	err := row.Scan(
		&c.ID, &c.ItemID, &c.SeekerID, &c.ProviderID,
		&c.Status, &c.AccessCount, &c.ValidityPeriod,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// FindByTriple returns the consent record for one (item, seeker, provider)
// triple, or consent.ErrConsentNotFound.
func (s *Store) FindByTriple(ctx context.Context, itemID, seekerID, providerID uuid.UUID) (*consent.Consent, error) {
	row := s.pool.QueryRow(ctx,
		"SELECT "+consentColumns+" FROM consents WHERE item_id = $1 AND seeker_id = $2 AND provider_id = $3",
		itemID, seekerID, providerID,
	)
	c, err := scanConsent(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, consent.ErrConsentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find consent by triple: %w", err)
	}
	return c, nil
}

// GetByID returns a consent record by id, or consent.ErrConsentNotFound.
func (s *Store) GetByID(ctx context.Context, id uuid.UUID) (*consent.Consent, error) {
	row := s.pool.QueryRow(ctx,
		"SELECT "+consentColumns+" FROM consents WHERE id = $1", id,
	)
	c, err := scanConsent(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, consent.ErrConsentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get consent: %w", err)
	}
	return c, nil
}

// CreateWithHistory inserts a new consent record and its creation history
// entry in one transaction. Returns consent.ErrDuplicateConsent when a record
// for the triple already exists; the caller re-reads instead of retrying the
// insert.
func (s *Store) CreateWithHistory(ctx context.Context, c *consent.Consent, changedBy, remarks string) (*consent.Consent, error) {
	created := *c
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx,
			`INSERT INTO consents (item_id, seeker_id, provider_id, status, access_count, validity_period)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 ON CONFLICT (item_id, seeker_id, provider_id) DO NOTHING
			 RETURNING id, created_at, updated_at`,
			c.ItemID, c.SeekerID, c.ProviderID, c.Status, c.AccessCount, c.ValidityPeriod,
		)
		if err := row.Scan(&created.ID, &created.CreatedAt, &created.UpdatedAt); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return consent.ErrDuplicateConsent
			}
			return fmt.Errorf("insert consent: %w", err)
		}

		_, err := tx.Exec(ctx,
			`INSERT INTO consent_history (consent_id, changed_by, previous_status, new_status, remarks)
			 VALUES ($1, $2, '', $3, $4)`,
			created.ID, changedBy, c.Status, remarks,
		)
		if err != nil {
			return fmt.Errorf("insert history: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

// ApplyTransition performs the guarded update: the row changes only while it
// still carries the expected status and access count, and the history entry
// commits with it or not at all. A failed guard returns
// consent.ErrStaleConsent so the caller retries from a fresh read.
func (s *Store) ApplyTransition(ctx context.Context, t consent.Transition) error {
	return s.withTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE consents
			 SET status = $1, access_count = $2, validity_period = $3, updated_at = now()
			 WHERE id = $4 AND status = $5 AND access_count = $6`,
			t.NewStatus, t.NewCount, t.NewValidity,
			t.ConsentID, t.ExpectedStatus, t.ExpectedCount,
		)
		if err != nil {
			return fmt.Errorf("update consent: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return consent.ErrStaleConsent
		}

		_, err = tx.Exec(ctx,
			`INSERT INTO consent_history (consent_id, changed_by, previous_status, new_status, remarks)
			 VALUES ($1, $2, $3, $4, $5)`,
			t.ConsentID, t.ChangedBy, t.ExpectedStatus, t.NewStatus, t.Remarks,
		)
		if err != nil {
			return fmt.Errorf("insert history: %w", err)
		}
		return nil
	})
}

// ListPendingForOwner returns the owner's pending requests joined with item
// and seeker metadata, oldest first.
func (s *Store) ListPendingForOwner(ctx context.Context, ownerID uuid.UUID) ([]consent.PendingSummary, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT c.id, i.name, p.display_name, p.email, c.status, c.created_at
		 FROM consents c
		 JOIN data_items i ON i.id = c.item_id
		 JOIN parties p ON p.id = c.seeker_id
		 WHERE c.provider_id = $1 AND c.status = 'pending'
		 ORDER BY c.created_at ASC`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("list pending consents: %w", err)
	}
	defer rows.Close()

	var summaries []consent.PendingSummary
	for rows.Next() {
		var s consent.PendingSummary
		if err := rows.Scan(&s.ConsentID, &s.ItemName, &s.SeekerName, &s.SeekerEmail, &s.Status, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan pending consent: %w", err)
		}
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

// ListByProvider returns all consent records where the given party is the
// provider.
func (s *Store) ListByProvider(ctx context.Context, providerID uuid.UUID) ([]consent.Consent, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT "+consentColumns+" FROM consents WHERE provider_id = $1 ORDER BY created_at ASC",
		providerID,
	)
	if err != nil {
		return nil, fmt.Errorf("list consents by provider: %w", err)
	}
	defer rows.Close()

	var consents []consent.Consent
	for rows.Next() {
		var c consent.Consent
		err := rows.Scan(
			&c.ID, &c.ItemID, &c.SeekerID, &c.ProviderID,
			&c.Status, &c.AccessCount, &c.ValidityPeriod,
			&c.CreatedAt, &c.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan consent: %w", err)
		}
		consents = append(consents, c)
	}
	return consents, rows.Err()
}
