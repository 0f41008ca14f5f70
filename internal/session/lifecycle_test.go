package session

import (
	"context"
	"errors"
	"testing"
	"time"
)

// livePair wires two users into one LIVE session through the matchmaker.
func livePair(t *testing.T, store *Store) *Session {
	t.Helper()
	m := NewMatchmaker(store, nil)
	ctx := context.Background()
	if _, _, err := m.QuickMatch(ctx, &Player{ID: "u1", Nickname: "alice"}); err != nil {
		t.Fatalf("QuickMatch u1: %v", err)
	}
	s, _, err := m.QuickMatch(ctx, &Player{ID: "u2", Nickname: "bob"})
	if err != nil {
		t.Fatalf("QuickMatch u2: %v", err)
	}
	if s.Status != StatusLive {
		t.Fatalf("setup expected LIVE, got %s", s.Status)
	}
	return s
}

func TestDisconnect_PausesLiveSession(t *testing.T) {
	store := newTestStore(t)
	l := NewLifecycle(store, nil)
	ctx := context.Background()
	s := livePair(t, store)

	paused, err := l.Disconnect(ctx, "u2")
	if err != nil {
		t.Fatalf("Disconnect: %v", err)
	}
	if paused == nil || paused.ID != s.ID || paused.Status != StatusPaused {
		t.Fatalf("expected paused session, got %+v", paused)
	}

	p, err := store.GetPlayer(ctx, "u2")
	if err != nil || p == nil {
		t.Fatalf("GetPlayer: %v", err)
	}
	if p.Online || p.IsPlaying {
		t.Fatalf("disconnected player flags not cleared: %+v", p)
	}
	ids, err := store.PausedBefore(ctx, time.Now().Add(time.Minute))
	if err != nil || len(ids) != 1 {
		t.Fatalf("pause mark missing: ids=%v err=%v", ids, err)
	}
}

func TestDisconnect_WithoutLiveSessionIsSilent(t *testing.T) {
	store := newTestStore(t)
	l := NewLifecycle(store, nil)
	ctx := context.Background()

	sess, err := l.Disconnect(ctx, "stranger")
	if err != nil {
		t.Fatalf("Disconnect: %v", err)
	}
	if sess != nil {
		t.Fatalf("expected no session, got %+v", sess)
	}
	p, err := store.GetPlayer(ctx, "stranger")
	if err != nil || p == nil {
		t.Fatalf("GetPlayer: %v", err)
	}
	if p.Online || p.IsPlaying {
		t.Fatalf("flags not cleared: %+v", p)
	}
}

func TestReconnect_ResumesLiveWhenOpponentActive(t *testing.T) {
	store := newTestStore(t)
	l := NewLifecycle(store, nil)
	ctx := context.Background()
	s := livePair(t, store)

	if _, err := l.Disconnect(ctx, "u2"); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}
	resumed, err := l.Reconnect(ctx, &Player{ID: "u2", Nickname: "bob"})
	if err != nil {
		t.Fatalf("Reconnect: %v", err)
	}
	if resumed == nil || resumed.ID != s.ID || resumed.Status != StatusLive {
		t.Fatalf("expected LIVE resume, got %+v", resumed)
	}
	ids, err := store.PausedBefore(ctx, time.Now().Add(time.Minute))
	if err != nil || len(ids) != 0 {
		t.Fatalf("pause mark not cleared: ids=%v err=%v", ids, err)
	}
	p, _ := store.GetPlayer(ctx, "u2")
	if p == nil || !p.Online || !p.IsPlaying {
		t.Fatalf("reconnected player flags wrong: %+v", p)
	}
}

func TestReconnect_StaysPausedWhenOpponentAway(t *testing.T) {
	store := newTestStore(t)
	l := NewLifecycle(store, nil)
	ctx := context.Background()
	livePair(t, store)

	if _, err := l.Disconnect(ctx, "u2"); err != nil {
		t.Fatalf("Disconnect u2: %v", err)
	}
	// the opponent leaves too; only their flags change, the session is
	// already PAUSED
	if _, err := l.Disconnect(ctx, "u1"); err != nil {
		t.Fatalf("Disconnect u1: %v", err)
	}

	resumed, err := l.Reconnect(ctx, &Player{ID: "u2"})
	if err != nil {
		t.Fatalf("Reconnect: %v", err)
	}
	if resumed == nil || resumed.Status != StatusPaused {
		t.Fatalf("expected PAUSED resume, got %+v", resumed)
	}
}

func TestReconnect_NoPausedSessionIsNoop(t *testing.T) {
	store := newTestStore(t)
	l := NewLifecycle(store, nil)
	ctx := context.Background()

	sess, err := l.Reconnect(ctx, &Player{ID: "fresh", Nickname: "carol"})
	if err != nil {
		t.Fatalf("Reconnect: %v", err)
	}
	if sess != nil {
		t.Fatalf("expected nil session, got %+v", sess)
	}
	p, _ := store.GetPlayer(ctx, "fresh")
	if p == nil || !p.Online || p.Nickname != "carol" {
		t.Fatalf("player record not refreshed: %+v", p)
	}
}

func TestPowerUp_SwitchesMode(t *testing.T) {
	store := newTestStore(t)
	l := NewLifecycle(store, nil)
	ctx := context.Background()
	s := livePair(t, store)

	sped, err := l.PowerUp(ctx, s.ID)
	if err != nil {
		t.Fatalf("PowerUp: %v", err)
	}
	if sped.Mode != ModeSpeed || sped.Status != StatusLive {
		t.Fatalf("unexpected session after power-up: %+v", sped)
	}
}

func TestPowerUp_EndedSessionGone(t *testing.T) {
	store := newTestStore(t)
	l := NewLifecycle(store, nil)
	ctx := context.Background()
	s := livePair(t, store)

	rec := NewRecorder(store, NewMemResults(), nil)
	if _, err := rec.RecordScore(ctx, s.ID, 11, 3, "u1", true); err != nil {
		t.Fatalf("RecordScore: %v", err)
	}
	if _, err := l.PowerUp(ctx, s.ID); !errors.Is(err, ErrSessionGone) {
		t.Fatalf("expected ErrSessionGone, got %v", err)
	}
}
