package session

import (
	"context"
	"testing"
	"time"
)

func TestTokenBinding(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.BindToken(ctx, "tok-1", "u1"); err != nil {
		t.Fatalf("BindToken: %v", err)
	}
	uid, err := store.UserIDByToken(ctx, "tok-1")
	if err != nil || uid != "u1" {
		t.Fatalf("UserIDByToken: uid=%q err=%v", uid, err)
	}
	uid, err = store.UserIDByToken(ctx, "unknown")
	if err != nil || uid != "" {
		t.Fatalf("unknown token should resolve empty: uid=%q err=%v", uid, err)
	}
}

func TestSessionByUserWithStatus_PrefersLatest(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	old := &Session{
		ID:        "old",
		Players:   []string{"u1"},
		OwnerID:   "u1",
		Status:    StatusPaused,
		UpdatedAt: time.Now().Add(-time.Hour),
	}
	fresh := &Session{
		ID:        "fresh",
		Players:   []string{"u1"},
		OwnerID:   "u1",
		Status:    StatusPaused,
		UpdatedAt: time.Now(),
	}
	if err := store.SaveSession(ctx, old); err != nil {
		t.Fatalf("SaveSession old: %v", err)
	}
	if err := store.SaveSession(ctx, fresh); err != nil {
		t.Fatalf("SaveSession fresh: %v", err)
	}

	got, err := store.SessionByUserWithStatus(ctx, "u1", StatusPaused)
	if err != nil || got == nil {
		t.Fatalf("SessionByUserWithStatus: %v", err)
	}
	if got.ID != "fresh" {
		t.Fatalf("expected most recent session, got %s", got.ID)
	}
	if got, _ := store.SessionByUserWithStatus(ctx, "u1", StatusLive); got != nil {
		t.Fatalf("no LIVE session expected, got %+v", got)
	}
}

func TestSessionByUserWithStatus_PropagatesLoadError(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// a corrupt record must surface as an error, not vanish from the scan
	if err := store.rdb.Set(ctx, store.keySession("bad"), "not json", 0).Err(); err != nil {
		t.Fatalf("seed corrupt record: %v", err)
	}
	if err := store.indexParticipant(ctx, "bad", "u9"); err != nil {
		t.Fatalf("indexParticipant: %v", err)
	}

	if _, err := store.SessionByUserWithStatus(ctx, "u9", StatusLive); err == nil {
		t.Fatalf("expected load error to propagate")
	}
}

func TestNextPosition_Monotonic(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	prev := int64(0)
	for i := 0; i < 5; i++ {
		n, err := store.NextPosition(ctx)
		if err != nil {
			t.Fatalf("NextPosition: %v", err)
		}
		if n <= prev {
			t.Fatalf("position not increasing: %d after %d", n, prev)
		}
		prev = n
	}
}

func TestUpdateSessionCAS_MissingSession(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.UpdateSessionCAS(ctx, "nope", func(*Session) error { return nil })
	if err != ErrSessionGone {
		t.Fatalf("expected ErrSessionGone, got %v", err)
	}
}
