package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var (
	// ErrCredentialNotFound is returned when no credential exists for the username.
	ErrCredentialNotFound = errors.New("credential not found")

	// ErrDuplicateUsername is returned when the username is already taken.
	ErrDuplicateUsername = errors.New("username already taken")
)

// Credential is a login record tied to a party.
type Credential struct {
	ID           uuid.UUID
	PartyID      uuid.UUID
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

// GetCredentialByUsername returns the credential for a username, or
// ErrCredentialNotFound.
func (s *Store) GetCredentialByUsername(ctx context.Context, username string) (*Credential, error) {
	var c Credential
	err := s.pool.QueryRow(ctx,
		`SELECT id, party_id, username, password_hash, created_at
		 FROM credentials WHERE username = $1`,
		username,
	).Scan(&c.ID, &c.PartyID, &c.Username, &c.PasswordHash, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrCredentialNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get credential: %w", err)
	}
	return &c, nil
}
