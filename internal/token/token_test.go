package token

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/gunjansamrit/GuardianVault01/internal/consent"
)

func TestIssueVerify_Roundtrip(t *testing.T) {
	m := NewManager("test-secret", time.Hour)
	partyID := uuid.New()

	signed, err := m.Issue(partyID, consent.PartyRequestor)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	claims, err := m.Verify(signed)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.PartyID != partyID {
		t.Fatalf("expected party %s, got %s", partyID, claims.PartyID)
	}
	if claims.Kind != consent.PartyRequestor {
		t.Fatalf("expected requestor kind, got %s", claims.Kind)
	}
}

func TestVerify_WrongSecret(t *testing.T) {
	m := NewManager("secret-a", time.Hour)
	other := NewManager("secret-b", time.Hour)

	signed, err := m.Issue(uuid.New(), consent.PartyIndividual)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	if _, err := other.Verify(signed); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestVerify_Expired(t *testing.T) {
	m := NewManager("test-secret", -time.Minute)

	signed, err := m.Issue(uuid.New(), consent.PartyIndividual)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	if _, err := m.Verify(signed); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for expired token, got %v", err)
	}
}

func TestVerify_Garbage(t *testing.T) {
	m := NewManager("test-secret", time.Hour)

	if _, err := m.Verify("not.a.token"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}
