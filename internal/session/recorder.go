package session

import (
	"context"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/mpeyrard/pong-arena/internal/obslog"
	"github.com/mpeyrard/pong-arena/internal/presence"
)

// ResultStore persists final match outcomes and answers win counts for the
// expert statistic.
type ResultStore interface {
	SaveResult(ctx context.Context, sess *Session) error
	WinCount(ctx context.Context, userID string) (int, error)
}

// Recorder persists authoritative score state and finalizes sessions. The
// win threshold itself is enforced by the caller sending final=true; the
// recorder trusts the flag.
type Recorder struct {
	store    *Store
	results  ResultStore
	notifier presence.Notifier
}

func NewRecorder(store *Store, results ResultStore, notifier presence.Notifier) *Recorder {
	if notifier == nil {
		notifier = presence.Nop{}
	}
	return &Recorder{store: store, results: results, notifier: notifier}
}

// RecordScore updates the two score fields; with final=true it also ends
// the session, records the winner, frees both participants and recomputes
// the winner's expert flag. Repeating a final call is a no-op: the session
// stays ENDED and the expert recomputation does not run again.
func (r *Recorder) RecordScore(ctx context.Context, sessionID string, scoreR, scoreL int, winnerID string, final bool) (*Session, error) {
	if sessionID == "" {
		return nil, ErrInvalidArgs
	}

	alreadyEnded := false
	mutate := func(cur *Session) error {
		if cur.Status == StatusEnded {
			alreadyEnded = true
			return nil
		}
		cur.ScoreR = scoreR
		cur.ScoreL = scoreL
		if final {
			cur.WinnerID = winnerID
			cur.Status = StatusEnded
		}
		return nil
	}

	var sess *Session
	var err error
	if final {
		sess, err = r.store.UpdateSessionCAS(ctx, sessionID, mutate, func(pipe redis.Pipeliner, cur *Session) {
			pipe.ZRem(ctx, r.store.keyQueue(), cur.ID)
		})
	} else {
		sess, err = r.store.UpdateSessionCAS(ctx, sessionID, mutate)
	}
	if err != nil {
		return nil, err
	}
	if !final || alreadyEnded {
		return sess, nil
	}

	_ = r.store.ClearPaused(ctx, sess.ID)
	for _, uid := range sess.Players {
		if _, err := r.store.MutatePlayer(ctx, uid, func(p *Player) {
			p.IsPlaying = false
		}); err != nil {
			return nil, err
		}
	}
	r.notifier.BroadcastPresence()

	if r.results != nil {
		if err := r.results.SaveResult(ctx, sess); err != nil {
			obslog.L().Error("result_persist_error",
				zap.String("session_id", sess.ID),
				zap.Error(err),
			)
			return nil, err
		}
		if winnerID != "" {
			wins, err := r.results.WinCount(ctx, winnerID)
			if err != nil {
				return nil, err
			}
			if _, err := r.store.MutatePlayer(ctx, winnerID, func(p *Player) {
				p.Expert = wins > 0
			}); err != nil {
				return nil, err
			}
		}
	}

	obslog.L().Info("session_end",
		zap.String("session_id", sess.ID),
		zap.String("winner_id", winnerID),
		zap.Int("score_r", scoreR),
		zap.Int("score_l", scoreL),
	)
	return sess, nil
}
