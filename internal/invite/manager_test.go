package invite

import (
	"errors"
	"testing"
)

func TestCreateClaimFlow(t *testing.T) {
	m := NewManager()

	inv, err := m.Create("sess1", "u1", "u2")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if inv.Status != StatusPending {
		t.Fatalf("new invite not pending: %s", inv.Status)
	}
	if p := m.Pending("u2"); p == nil || p.ID != inv.ID {
		t.Fatalf("Pending lookup failed: %+v", p)
	}

	claimed, err := m.Claim("u2", "sess1")
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if claimed.Status != StatusAccepted {
		t.Fatalf("claim did not accept: %s", claimed.Status)
	}
	if p := m.Pending("u2"); p != nil {
		t.Fatalf("claimed invite still pending: %+v", p)
	}
}

func TestCreate_RejectsDuplicatePending(t *testing.T) {
	m := NewManager()
	if _, err := m.Create("sess1", "u1", "u2"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := m.Create("sess2", "u3", "u2"); !errors.Is(err, ErrAlreadyPending) {
		t.Fatalf("expected ErrAlreadyPending, got %v", err)
	}
}

func TestCreate_RejectsSelfInvite(t *testing.T) {
	m := NewManager()
	if _, err := m.Create("sess1", "u1", "u1"); !errors.Is(err, ErrSelfInvite) {
		t.Fatalf("expected ErrSelfInvite, got %v", err)
	}
}

func TestDecline_ResolvesLatestPending(t *testing.T) {
	m := NewManager()
	if _, err := m.Create("sess1", "u1", "u2"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	inv, err := m.Decline("u2")
	if err != nil {
		t.Fatalf("Decline: %v", err)
	}
	if inv.Status != StatusDeclined {
		t.Fatalf("decline did not resolve: %s", inv.Status)
	}
	if _, err := m.Decline("u2"); !errors.Is(err, ErrNoPendingForUser) {
		t.Fatalf("expected ErrNoPendingForUser, got %v", err)
	}
}

func TestClaim_WrongSession(t *testing.T) {
	m := NewManager()
	if _, err := m.Create("sess1", "u1", "u2"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := m.Claim("u2", "other"); !errors.Is(err, ErrNoPendingForUser) {
		t.Fatalf("expected ErrNoPendingForUser, got %v", err)
	}
}
