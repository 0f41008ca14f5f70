package session

import (
	"context"
	"errors"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"

	"github.com/mpeyrard/pong-arena/internal/obslog"
	"github.com/mpeyrard/pong-arena/internal/presence"
)

// Reaper ends sessions that sat in PAUSED longer than the configured
// timeout, freeing both participants' isPlaying flags. A session survives
// transient disconnects but not an opponent who never comes back.
type Reaper struct {
	store    *Store
	notifier presence.Notifier
	timeout  time.Duration
	sched    gocron.Scheduler
}

func NewReaper(store *Store, notifier presence.Notifier, timeout, interval time.Duration) (*Reaper, error) {
	if notifier == nil {
		notifier = presence.Nop{}
	}
	r := &Reaper{store: store, notifier: notifier, timeout: timeout}
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}
	if _, err := sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			r.Sweep(ctx)
		}),
	); err != nil {
		return nil, err
	}
	r.sched = sched
	return r, nil
}

func (r *Reaper) Start() { r.sched.Start() }

func (r *Reaper) Stop() error { return r.sched.Shutdown() }

// Sweep ends every session paused since before now-timeout. Exported so
// operators can trigger it outside the schedule.
func (r *Reaper) Sweep(ctx context.Context) {
	ids, err := r.store.PausedBefore(ctx, time.Now().Add(-r.timeout))
	if err != nil {
		obslog.L().Warn("reaper_scan_error", zap.Error(err))
		return
	}
	for _, id := range ids {
		if err := r.reap(ctx, id); err != nil {
			obslog.L().Warn("reaper_end_error", zap.String("session_id", id), zap.Error(err))
		}
	}
}

func (r *Reaper) reap(ctx context.Context, id string) error {
	sess, err := r.store.UpdateSessionCAS(ctx, id, func(cur *Session) error {
		if cur.Status != StatusPaused {
			return errAlreadyEnded
		}
		cur.Status = StatusEnded
		return nil
	})
	if errors.Is(err, errAlreadyEnded) || errors.Is(err, ErrSessionGone) {
		_ = r.store.ClearPaused(ctx, id)
		return nil
	}
	if err != nil {
		return err
	}
	_ = r.store.ClearPaused(ctx, id)
	_ = r.store.DequeuePublic(ctx, id)
	for _, uid := range sess.Players {
		if _, err := r.store.MutatePlayer(ctx, uid, func(p *Player) {
			p.IsPlaying = false
		}); err != nil {
			return err
		}
	}
	r.notifier.BroadcastPresence()
	obslog.L().Info("session_reaped",
		zap.String("session_id", sess.ID),
		zap.Duration("timeout", r.timeout),
	)
	return nil
}
