package session

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/mpeyrard/pong-arena/internal/obslog"
	"github.com/mpeyrard/pong-arena/internal/presence"
)

// errAlreadyEnded aborts a CAS mutation against a terminal session.
var errAlreadyEnded = errf("session already ended")

// Lifecycle owns the WAITING → LIVE → PAUSED → ENDED transitions driven by
// connection events. Join transitions live in the Matchmaker, the terminal
// transition in the Recorder.
type Lifecycle struct {
	store    *Store
	notifier presence.Notifier
}

func NewLifecycle(store *Store, notifier presence.Notifier) *Lifecycle {
	if notifier == nil {
		notifier = presence.Nop{}
	}
	return &Lifecycle{store: store, notifier: notifier}
}

// Disconnect handles a connection drop. When the user has a LIVE session it
// transitions to PAUSED and is returned so the gateway can notify the
// remaining participant; otherwise the user is only marked not-playing and
// nil is returned.
func (l *Lifecycle) Disconnect(ctx context.Context, userID string) (*Session, error) {
	if userID == "" {
		return nil, ErrInvalidArgs
	}
	if _, err := l.store.MutatePlayer(ctx, userID, func(p *Player) {
		p.Online = false
	}); err != nil {
		return nil, err
	}

	live, err := l.store.SessionByUserWithStatus(ctx, userID, StatusLive)
	if err != nil {
		return nil, err
	}
	if live == nil {
		if _, err := l.store.MutatePlayer(ctx, userID, func(p *Player) {
			p.IsPlaying = false
		}); err != nil {
			return nil, err
		}
		l.notifier.BroadcastPresence()
		return nil, nil
	}

	sess, err := l.store.UpdateSessionCAS(ctx, live.ID, func(cur *Session) error {
		if cur.Status == StatusEnded {
			return errAlreadyEnded
		}
		cur.Status = StatusPaused
		return nil
	})
	if errors.Is(err, errAlreadyEnded) {
		sess, err = nil, nil
	}
	if err != nil {
		return nil, err
	}
	if sess != nil {
		_ = l.store.MarkPaused(ctx, sess.ID, time.Now())
	}
	if _, err := l.store.MutatePlayer(ctx, userID, func(p *Player) {
		p.IsPlaying = false
	}); err != nil {
		return nil, err
	}
	l.notifier.BroadcastPresence()
	if sess != nil {
		obslog.L().Info("session_pause",
			zap.String("session_id", sess.ID),
			zap.String("user_id", userID),
		)
	}
	return sess, nil
}

// PowerUp switches a session into SPEED mode. The mode change is
// transient state of the same session, not a new lineage.
func (l *Lifecycle) PowerUp(ctx context.Context, sessionID string) (*Session, error) {
	if sessionID == "" {
		return nil, ErrInvalidArgs
	}
	sess, err := l.store.UpdateSessionCAS(ctx, sessionID, func(cur *Session) error {
		if cur.Status == StatusEnded {
			return errAlreadyEnded
		}
		cur.Mode = ModeSpeed
		return nil
	})
	if errors.Is(err, errAlreadyEnded) {
		return nil, ErrSessionGone
	}
	return sess, err
}

// Reconnect handles a fresh connection for a user with a PAUSED session
// bound to them. The session returns to LIVE when the opponent is online
// and playing, else stays PAUSED. No matching session is a silent no-op;
// the user simply proceeds to normal matchmaking.
func (l *Lifecycle) Reconnect(ctx context.Context, user *Player) (*Session, error) {
	if user == nil || user.ID == "" {
		return nil, ErrInvalidArgs
	}
	if _, err := l.store.MutatePlayer(ctx, user.ID, func(p *Player) {
		p.Nickname = pickNickname(p.Nickname, user.Nickname)
		p.Online = true
	}); err != nil {
		return nil, err
	}

	paused, err := l.store.SessionByUserWithStatus(ctx, user.ID, StatusPaused)
	if err != nil {
		return nil, err
	}
	if paused == nil {
		l.notifier.BroadcastPresence()
		return nil, nil
	}

	opp, err := l.store.GetPlayer(ctx, paused.OpponentOf(user.ID))
	if err != nil {
		return nil, err
	}
	status := StatusPaused
	if opp != nil && opp.Online && opp.IsPlaying {
		status = StatusLive
	}

	sess, err := l.store.UpdateSessionCAS(ctx, paused.ID, func(cur *Session) error {
		if cur.Status == StatusEnded {
			return errAlreadyEnded
		}
		cur.Status = status
		return nil
	})
	if errors.Is(err, errAlreadyEnded) {
		l.notifier.BroadcastPresence()
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if sess.Status == StatusLive {
		_ = l.store.ClearPaused(ctx, sess.ID)
	} else {
		_ = l.store.MarkPaused(ctx, sess.ID, time.Now())
	}
	if _, err := l.store.MutatePlayer(ctx, user.ID, func(p *Player) {
		p.IsPlaying = true
	}); err != nil {
		return nil, err
	}
	l.notifier.BroadcastPresence()
	obslog.L().Info("session_resume",
		zap.String("session_id", sess.ID),
		zap.String("user_id", user.ID),
		zap.String("status", string(sess.Status)),
	)
	return sess, nil
}
