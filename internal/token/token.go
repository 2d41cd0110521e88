// Package token issues and verifies the signed session tokens used by the
// HTTP layer. The consent core never inspects tokens; it only receives the
// party ids the routing layer resolved from them.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/gunjansamrit/GuardianVault01/internal/consent"
)

// ErrInvalidToken is returned when a token fails signature or claim checks.
var ErrInvalidToken = errors.New("invalid token")

// Manager signs and verifies session tokens.
type Manager struct {
	secret []byte
	ttl    time.Duration
}

// NewManager creates a Manager with the given HMAC secret and token lifetime.
func NewManager(secret string, ttl time.Duration) *Manager {
	return &Manager{secret: []byte(secret), ttl: ttl}
}

// Claims identifies the authenticated party.
type Claims struct {
	PartyID uuid.UUID
	Kind    consent.PartyKind
}

type sessionClaims struct {
	Kind string `json:"kind"`
	jwt.RegisteredClaims
}

// Issue creates a signed token for a party.
func (m *Manager) Issue(partyID uuid.UUID, kind consent.PartyKind) (string, error) {
	now := time.Now()
	claims := sessionClaims{
		Kind: string(kind),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   partyID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a token, returning the party it identifies.
func (m *Manager) Verify(tokenStr string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &sessionClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}

	sc, ok := parsed.Claims.(*sessionClaims)
	if !ok {
		return nil, ErrInvalidToken
	}

	partyID, err := uuid.Parse(sc.Subject)
	if err != nil {
		return nil, ErrInvalidToken
	}

	return &Claims{
		PartyID: partyID,
		Kind:    consent.PartyKind(sc.Kind),
	}, nil
}
