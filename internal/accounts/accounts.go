// Package accounts is the thin identity collaborator: signup and login for
// both party kinds. It produces the party ids and wrapped keys the consent
// core consumes; it makes no consent decisions itself.
package accounts

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/gunjansamrit/GuardianVault01/internal/consent"
	"github.com/gunjansamrit/GuardianVault01/internal/crypto"
	"github.com/gunjansamrit/GuardianVault01/internal/keyring"
	"github.com/gunjansamrit/GuardianVault01/internal/store"
	"github.com/gunjansamrit/GuardianVault01/internal/token"
)

var (
	// ErrInvalidCredentials is returned when username or password is wrong.
	// Deliberately indistinguishable between the two.
	ErrInvalidCredentials = errors.New("invalid username or password")

	// ErrMissingKey is returned when an individual signs up without key material.
	ErrMissingKey = errors.New("encryption key is required for individuals")
)

// Store is the persistence surface signup and login need. Account creation is
// a single atomic operation: party row and credential commit together.
type Store interface {
	CreateAccount(ctx context.Context, p *consent.Party, username, passwordHash string) (*consent.Party, error)
	GetCredentialByUsername(ctx context.Context, username string) (*store.Credential, error)
	GetParty(ctx context.Context, id uuid.UUID) (*consent.Party, error)
}

// Service handles signup and login.
type Service struct {
	store  Store
	keys   *keyring.Keyring
	tokens *token.Manager
}

// NewService creates an accounts Service.
func NewService(st Store, keys *keyring.Keyring, tokens *token.Manager) *Service {
	return &Service{store: st, keys: keys, tokens: tokens}
}

// SignupParams carries the fields common to both party kinds. RawKey is the
// client-generated owner key (base64, 32 bytes); required for individuals,
// ignored for requestors.
type SignupParams struct {
	Kind        consent.PartyKind
	DisplayName string
	Email       string
	Username    string
	Password    string
	RawKey      string
}

// Signup registers a new party with its login credential. An individual's
// raw key is wrapped under the master key immediately and never stored in
// plaintext.
func (s *Service) Signup(ctx context.Context, p SignupParams) (*consent.Party, error) {
	if p.Kind != consent.PartyIndividual && p.Kind != consent.PartyRequestor {
		return nil, fmt.Errorf("unknown party kind %q", p.Kind)
	}

	var wrappedKey []byte
	if p.Kind == consent.PartyIndividual {
		if p.RawKey == "" {
			return nil, ErrMissingKey
		}
		rawKey, err := crypto.DecodeKey(p.RawKey)
		if err != nil {
			return nil, fmt.Errorf("decode owner key: %w", err)
		}
		wrappedKey, err = s.keys.Wrap(rawKey)
		crypto.ZeroBytes(rawKey)
		if err != nil {
			return nil, err
		}
	}

	passwordHash, err := crypto.HashPassword(p.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	party, err := s.store.CreateAccount(ctx, &consent.Party{
		Kind:        p.Kind,
		DisplayName: p.DisplayName,
		Email:       p.Email,
		WrappedKey:  wrappedKey,
	}, p.Username, passwordHash)
	if err != nil {
		return nil, err
	}

	return party, nil
}

// Login verifies a credential and returns a signed session token together
// with the authenticated party.
func (s *Service) Login(ctx context.Context, username, password string) (string, *consent.Party, error) {
	cred, err := s.store.GetCredentialByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrCredentialNotFound) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, err
	}

	if !crypto.VerifyPassword(password, cred.PasswordHash) {
		return "", nil, ErrInvalidCredentials
	}

	party, err := s.store.GetParty(ctx, cred.PartyID)
	if err != nil {
		return "", nil, err
	}

	signed, err := s.tokens.Issue(party.ID, party.Kind)
	if err != nil {
		return "", nil, err
	}
	return signed, party, nil
}
