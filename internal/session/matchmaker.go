package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/mpeyrard/pong-arena/internal/obslog"
	"github.com/mpeyrard/pong-arena/internal/presence"
)

// Matchmaker places users into playable sessions. It owns the "at most one
// LIVE session per user" invariant; a user bound to a WAITING or PAUSED
// session is still eligible for matching into a different session.
type Matchmaker struct {
	store    *Store
	notifier presence.Notifier
}

func NewMatchmaker(store *Store, notifier presence.Notifier) *Matchmaker {
	if notifier == nil {
		notifier = presence.Nop{}
	}
	return &Matchmaker{store: store, notifier: notifier}
}

// claimAttempts bounds the retry loop when a slot claim loses the CAS race.
const claimAttempts = 5

// errAlreadySeated reports a claim against a session the user already
// occupies. Callers hand the existing session back instead of treating the
// queue entry as stale.
var errAlreadySeated = errf("user already in this session")

// QuickMatch joins the user into the open PUBLIC session with the lowest
// position, or creates a new WAITING session when no seat is claimable.
// The claim is a compare-and-swap on the session record: of two concurrent
// quick-matches against the same session, exactly one binds as second
// player and the other falls through.
func (m *Matchmaker) QuickMatch(ctx context.Context, user *Player) (*Session, bool, error) {
	if user == nil || user.ID == "" {
		return nil, false, ErrInvalidArgs
	}
	live, err := m.store.SessionByUserWithStatus(ctx, user.ID, StatusLive)
	if err != nil {
		return nil, false, err
	}
	if live != nil {
		return nil, false, ErrUserInLiveGame
	}

	for attempt := 0; attempt < claimAttempts; attempt++ {
		candID, err := m.store.LowestOpenPublic(ctx)
		if err != nil {
			return nil, false, err
		}
		if candID == "" {
			break
		}
		sess, err := m.claimSeat(ctx, candID, user)
		switch {
		case err == nil:
			obslog.L().Info("match_join",
				zap.String("session_id", sess.ID),
				zap.String("user_id", user.ID),
				zap.String("status", string(sess.Status)),
				zap.Int("attempt", attempt+1),
			)
			return sess, false, nil
		case errors.Is(err, errAlreadySeated):
			// the queue head is the requester's own open session; it keeps
			// its queue slot so the next quick-match can still fill it
			return m.rejoinOwn(ctx, candID, user)
		case errors.Is(err, redis.TxFailedErr):
			continue
		case errors.Is(err, ErrSessionFull), errors.Is(err, ErrSessionGone):
			// stale queue entry; drop it and look again
			_ = m.store.DequeuePublic(ctx, candID)
			continue
		default:
			return nil, false, err
		}
	}

	sess, err := m.createSession(ctx, user, TypePublic, "")
	if err != nil {
		return nil, false, err
	}
	obslog.L().Info("match_create",
		zap.String("session_id", sess.ID),
		zap.String("user_id", user.ID),
		zap.Int64("position", sess.Position),
	)
	return sess, true, nil
}

// CreateInvite opens a PRIVATE session with the inviter as sole player.
// Notifying the invited user is the chat collaborator's job.
func (m *Matchmaker) CreateInvite(ctx context.Context, inviter *Player, inviteeID string) (*Session, error) {
	if inviter == nil || inviter.ID == "" || inviteeID == "" {
		return nil, ErrInvalidArgs
	}
	if inviter.ID == inviteeID {
		return nil, ErrInvalidArgs
	}
	if p, err := m.store.GetPlayer(ctx, inviter.ID); err != nil {
		return nil, err
	} else if p != nil && p.IsPlaying {
		return nil, ErrInviterPlaying
	}
	if p, err := m.store.GetPlayer(ctx, inviteeID); err != nil {
		return nil, err
	} else if p != nil && p.IsPlaying {
		return nil, ErrInviteePlaying
	}
	live, err := m.store.SessionByUserWithStatus(ctx, inviter.ID, StatusLive)
	if err != nil {
		return nil, err
	}
	if live != nil {
		return nil, ErrUserInLiveGame
	}

	sess, err := m.createSession(ctx, inviter, TypePrivate, inviteeID)
	if err != nil {
		return nil, err
	}
	obslog.L().Info("invite_create",
		zap.String("session_id", sess.ID),
		zap.String("inviter_id", inviter.ID),
		zap.String("invitee_id", inviteeID),
	)
	return sess, nil
}

// JoinInvitation binds the user as second player of a private session.
func (m *Matchmaker) JoinInvitation(ctx context.Context, user *Player, sessionID string) (*Session, error) {
	if user == nil || user.ID == "" || sessionID == "" {
		return nil, ErrInvalidArgs
	}
	live, err := m.store.SessionByUserWithStatus(ctx, user.ID, StatusLive)
	if err != nil {
		return nil, err
	}
	if live != nil {
		return nil, ErrUserInLiveGame
	}
	sess, err := m.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, ErrSessionGone
	}
	if sess.Type == TypePrivate && sess.InviteeID != "" && sess.InviteeID != user.ID {
		return nil, ErrNotInvited
	}
	joined, err := m.claimSeat(ctx, sessionID, user)
	if err != nil {
		if errors.Is(err, errAlreadySeated) {
			// duplicate join; the seat is already theirs
			return sess, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			return nil, ErrSessionFull
		}
		return nil, err
	}
	obslog.L().Info("invite_join",
		zap.String("session_id", joined.ID),
		zap.String("user_id", user.ID),
		zap.String("status", string(joined.Status)),
	)
	return joined, nil
}

// claimSeat adds the user as second player. Join status depends on whether
// the existing player is genuinely active: LIVE when the host is online and
// marked playing, PAUSED when the slot is stale.
func (m *Matchmaker) claimSeat(ctx context.Context, sessionID string, user *Player) (*Session, error) {
	host, err := m.hostOf(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	joinStatus := StatusPaused
	if host != nil && host.Online && host.IsPlaying {
		joinStatus = StatusLive
	}

	sess, err := m.store.UpdateSessionCAS(ctx, sessionID, func(cur *Session) error {
		if cur.Status == StatusEnded {
			return ErrSessionGone
		}
		if cur.HasPlayer(user.ID) {
			return errAlreadySeated
		}
		if cur.Full || len(cur.Players) >= 2 {
			return ErrSessionFull
		}
		cur.Players = append(cur.Players, user.ID)
		cur.Full = true
		cur.Status = joinStatus
		return nil
	}, func(pipe redis.Pipeliner, cur *Session) {
		pipe.ZRem(ctx, m.store.keyQueue(), cur.ID)
		pipe.SAdd(ctx, m.store.keyUserIdx(user.ID), cur.ID)
	})
	if err != nil {
		return nil, err
	}

	if sess.Status == StatusPaused {
		_ = m.store.MarkPaused(ctx, sess.ID, time.Now())
	}
	if _, err := m.store.MutatePlayer(ctx, user.ID, func(p *Player) {
		p.Nickname = pickNickname(p.Nickname, user.Nickname)
		p.Online = true
		p.IsPlaying = true
	}); err != nil {
		return nil, err
	}
	m.notifier.BroadcastPresence()
	return sess, nil
}

// rejoinOwn hands a requester their own open session back. The session is
// left untouched, in particular its queue entry, so it stays matchable.
func (m *Matchmaker) rejoinOwn(ctx context.Context, sessionID string, user *Player) (*Session, bool, error) {
	sess, err := m.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, false, err
	}
	if sess == nil {
		return nil, false, ErrSessionGone
	}
	if _, err := m.store.MutatePlayer(ctx, user.ID, func(p *Player) {
		p.Nickname = pickNickname(p.Nickname, user.Nickname)
		p.Online = true
		p.IsPlaying = true
	}); err != nil {
		return nil, false, err
	}
	m.notifier.BroadcastPresence()
	obslog.L().Info("match_rejoin",
		zap.String("session_id", sess.ID),
		zap.String("user_id", user.ID),
	)
	return sess, false, nil
}

func (m *Matchmaker) createSession(ctx context.Context, owner *Player, typ Type, inviteeID string) (*Session, error) {
	position, err := m.store.NextPosition(ctx)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	sess := &Session{
		ID:        uuid.NewString(),
		Players:   []string{owner.ID},
		OwnerID:   owner.ID,
		InviteeID: inviteeID,
		Position:  position,
		Type:      typ,
		Mode:      ModeClassic,
		Status:    StatusWaiting,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := m.store.SaveSession(ctx, sess); err != nil {
		return nil, err
	}
	if typ == TypePublic {
		if err := m.store.EnqueuePublic(ctx, sess.ID, position); err != nil {
			return nil, err
		}
	}
	if _, err := m.store.MutatePlayer(ctx, owner.ID, func(p *Player) {
		p.Nickname = pickNickname(p.Nickname, owner.Nickname)
		p.Online = true
		p.IsPlaying = true
	}); err != nil {
		return nil, err
	}
	m.notifier.BroadcastPresence()
	return sess, nil
}

func (m *Matchmaker) hostOf(ctx context.Context, sessionID string) (*Player, error) {
	sess, err := m.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, ErrSessionGone
	}
	if sess.HostID() == "" {
		return nil, nil
	}
	return m.store.GetPlayer(ctx, sess.HostID())
}

func pickNickname(current, incoming string) string {
	if incoming != "" {
		return incoming
	}
	return current
}
