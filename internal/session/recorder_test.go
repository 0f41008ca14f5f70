package session

import (
	"context"
	"testing"
	"time"
)

func TestRecordScore_ProgressUpdate(t *testing.T) {
	store := newTestStore(t)
	rec := NewRecorder(store, NewMemResults(), nil)
	ctx := context.Background()
	s := livePair(t, store)

	got, err := rec.RecordScore(ctx, s.ID, 3, 5, "", false)
	if err != nil {
		t.Fatalf("RecordScore: %v", err)
	}
	if got.ScoreR != 3 || got.ScoreL != 5 {
		t.Fatalf("scores not applied: %+v", got)
	}
	if got.Status != StatusLive || got.WinnerID != "" {
		t.Fatalf("progress update must not finalize: %+v", got)
	}
}

func TestRecordScore_FinalEndsSession(t *testing.T) {
	store := newTestStore(t)
	results := NewMemResults()
	rec := NewRecorder(store, results, nil)
	ctx := context.Background()
	s := livePair(t, store)

	ended, err := rec.RecordScore(ctx, s.ID, 11, 7, "u1", true)
	if err != nil {
		t.Fatalf("RecordScore final: %v", err)
	}
	if ended.Status != StatusEnded || ended.WinnerID != "u1" {
		t.Fatalf("session not finalized: %+v", ended)
	}

	for _, uid := range []string{"u1", "u2"} {
		p, err := store.GetPlayer(ctx, uid)
		if err != nil || p == nil {
			t.Fatalf("GetPlayer %s: %v", uid, err)
		}
		if p.IsPlaying {
			t.Fatalf("%s still marked playing after end", uid)
		}
	}

	wins, err := results.WinCount(ctx, "u1")
	if err != nil || wins != 1 {
		t.Fatalf("result not persisted: wins=%d err=%v", wins, err)
	}
	winner, _ := store.GetPlayer(ctx, "u1")
	if winner == nil || !winner.Expert {
		t.Fatalf("winner expert flag not set: %+v", winner)
	}
	loser, _ := store.GetPlayer(ctx, "u2")
	if loser != nil && loser.Expert {
		t.Fatalf("loser must not gain expert: %+v", loser)
	}
}

func TestRecordScore_FinalIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	results := NewMemResults()
	rec := NewRecorder(store, results, nil)
	ctx := context.Background()
	s := livePair(t, store)

	if _, err := rec.RecordScore(ctx, s.ID, 11, 7, "u1", true); err != nil {
		t.Fatalf("first final: %v", err)
	}
	// a duplicate final frame must not rewrite the outcome
	again, err := rec.RecordScore(ctx, s.ID, 0, 11, "u2", true)
	if err != nil {
		t.Fatalf("second final: %v", err)
	}
	if again.Status != StatusEnded || again.WinnerID != "u1" || again.ScoreR != 11 || again.ScoreL != 7 {
		t.Fatalf("duplicate final changed outcome: %+v", again)
	}
	if wins, _ := results.WinCount(ctx, "u2"); wins != 0 {
		t.Fatalf("duplicate final credited the wrong winner")
	}
}

func TestRecordScore_FinalClearsPauseMark(t *testing.T) {
	store := newTestStore(t)
	rec := NewRecorder(store, NewMemResults(), nil)
	l := NewLifecycle(store, nil)
	ctx := context.Background()
	s := livePair(t, store)

	if _, err := l.Disconnect(ctx, "u2"); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}
	if _, err := rec.RecordScore(ctx, s.ID, 11, 2, "u1", true); err != nil {
		t.Fatalf("RecordScore: %v", err)
	}
	ids, err := store.PausedBefore(ctx, time.Now().Add(time.Minute))
	if err != nil || len(ids) != 0 {
		t.Fatalf("pause mark survived finalization: ids=%v err=%v", ids, err)
	}
}
