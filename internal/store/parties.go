package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/gunjansamrit/GuardianVault01/internal/consent"
)

var (
	// ErrPartyNotFound is returned when no party exists for the given id or
	// email. It aliases the engine's sentinel so lookups classify uniformly.
	ErrPartyNotFound = consent.ErrPartyNotFound

	// ErrDuplicateEmail is returned when a party with the email already exists.
	ErrDuplicateEmail = errors.New("email already registered")
)

const partyColumns = "id, kind, display_name, email, wrapped_key, created_at"

func scanParty(row pgx.Row) (*consent.Party, error) {
	var p consent.Party
	err := row.Scan(&p.ID, &p.Kind, &p.DisplayName, &p.Email, &p.WrappedKey, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// CreateAccount inserts a party and its login credential in one transaction,
// so a duplicate username cannot leave an orphaned party row behind. Returns
// ErrDuplicateEmail or ErrDuplicateUsername when either unique constraint is
// already taken.
func (s *Store) CreateAccount(ctx context.Context, p *consent.Party, username, passwordHash string) (*consent.Party, error) {
	created := *p
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx,
			`INSERT INTO parties (kind, display_name, email, wrapped_key)
			 VALUES ($1, $2, $3, $4)
			 ON CONFLICT (email) DO NOTHING
			 RETURNING id, created_at`,
			p.Kind, p.DisplayName, p.Email, p.WrappedKey,
		)
		if err := row.Scan(&created.ID, &created.CreatedAt); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrDuplicateEmail
			}
			return fmt.Errorf("insert party: %w", err)
		}

		var credID uuid.UUID
		err := tx.QueryRow(ctx,
			`INSERT INTO credentials (party_id, username, password_hash)
			 VALUES ($1, $2, $3)
			 ON CONFLICT (username) DO NOTHING
			 RETURNING id`,
			created.ID, username, passwordHash,
		).Scan(&credID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrDuplicateUsername
			}
			return fmt.Errorf("insert credential: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

// GetParty returns a party by id, or ErrPartyNotFound.
func (s *Store) GetParty(ctx context.Context, id uuid.UUID) (*consent.Party, error) {
	p, err := scanParty(s.pool.QueryRow(ctx,
		"SELECT "+partyColumns+" FROM parties WHERE id = $1", id,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrPartyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get party: %w", err)
	}
	return p, nil
}

// GetPartyByEmail returns a party by email, or ErrPartyNotFound.
func (s *Store) GetPartyByEmail(ctx context.Context, email string) (*consent.Party, error) {
	p, err := scanParty(s.pool.QueryRow(ctx,
		"SELECT "+partyColumns+" FROM parties WHERE email = $1", email,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrPartyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get party by email: %w", err)
	}
	return p, nil
}
