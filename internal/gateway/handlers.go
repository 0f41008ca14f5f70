package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/mpeyrard/pong-arena/internal/invite"
	"github.com/mpeyrard/pong-arena/internal/obslog"
	"github.com/mpeyrard/pong-arena/internal/session"
	"github.com/mpeyrard/pong-arena/pkg/gamedto"
)

func (g *Gateway) dispatch(ctx context.Context, c *conn, env *gamedto.Envelope) {
	switch env.Event {
	case gamedto.EventJoinGame:
		g.handleJoinGame(ctx, c, env)
	case gamedto.EventCreateInviteGame:
		g.handleCreateInvite(ctx, c, env)
	case gamedto.EventJoinInvitation:
		g.handleJoinInvitation(ctx, c, env)
	case gamedto.EventStartPowerUp:
		g.handleStartPowerUp(ctx, c, env)
	case gamedto.EventStoreScore:
		g.handleStoreScore(ctx, c, env)
	case gamedto.EventMove, gamedto.EventStart:
		g.handleRelay(c, env)
	default:
		obslog.L().Warn("ws_unknown_event",
			zap.String("user_id", c.user.ID),
			zap.String("event", env.Event),
		)
	}
}

func (g *Gateway) ackOK(c *conn, seq int64) {
	if env, err := gamedto.NewEnvelope(gamedto.EventAck, seq, gamedto.OKResponse()); err == nil {
		c.Send(env)
	}
}

func (g *Gateway) ackFail(c *conn, seq int64, text string) {
	if env, err := gamedto.NewEnvelope(gamedto.EventAck, seq, gamedto.FailResponse(text)); err == nil {
		c.Send(env)
	}
}

// statusText maps session-core errors onto client-facing statusText strings.
// Unknown errors are infrastructure failures and collapse to the generic
// store-failure message.
func (g *Gateway) statusText(err error) string {
	switch {
	case errors.Is(err, session.ErrUserInLiveGame):
		return g.cat.Text("match.alreadyLive")
	case errors.Is(err, session.ErrSessionFull):
		return g.cat.Text("match.cannotAdd")
	case errors.Is(err, session.ErrSessionGone):
		return g.cat.Text("invite.sessionGone")
	case errors.Is(err, session.ErrNotInvited):
		return g.cat.Text("invite.notInvited")
	case errors.Is(err, session.ErrInviterPlaying):
		return g.cat.Text("invite.inviterPlaying")
	case errors.Is(err, session.ErrInviteePlaying):
		return g.cat.Text("invite.inviteePlaying")
	default:
		return g.cat.Text("match.storeFailure")
	}
}

func (g *Gateway) handleJoinGame(ctx context.Context, c *conn, env *gamedto.Envelope) {
	sess, created, err := g.match.QuickMatch(ctx, c.user)
	if err != nil {
		g.metrics.Matchmaking.WithLabelValues("rejected").Inc()
		g.ackFail(c, env.Seq, g.statusText(err))
		return
	}
	if created {
		g.metrics.Matchmaking.WithLabelValues("created").Inc()
	} else {
		g.metrics.Matchmaking.WithLabelValues("joined").Inc()
	}
	g.hub.Join(sess.ID, c)
	g.broadcastSession(ctx, sess.ID, gamedto.EventJoinedGame, sess)
	g.ackOK(c, env.Seq)
}

func (g *Gateway) handleCreateInvite(ctx context.Context, c *conn, env *gamedto.Envelope) {
	var req gamedto.InviteRequest
	if err := json.Unmarshal(env.Data, &req); err != nil || req.ID == "" {
		g.ackFail(c, env.Seq, g.cat.Text("invite.createFailure"))
		return
	}
	// reject before creating a session the invitee could never claim
	if g.invites.Pending(req.ID) != nil {
		g.ackFail(c, env.Seq, g.cat.Text("invite.alreadyPending"))
		return
	}
	sess, err := g.match.CreateInvite(ctx, c.user, req.ID)
	if err != nil {
		g.ackFail(c, env.Seq, g.statusText(err))
		return
	}
	if _, err := g.invites.Create(sess.ID, c.user.ID, req.ID); err != nil {
		obslog.L().Warn("invite_track_error",
			zap.String("session_id", sess.ID),
			zap.String("invitee_id", req.ID),
			zap.Error(err),
		)
	}
	go func() {
		nctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := g.chat.NotifyInvite(nctx, req.ID, c.user.Nickname, sess.ID); err != nil {
			obslog.L().Warn("chat_notify_error", zap.String("session_id", sess.ID), zap.Error(err))
		}
	}()
	g.hub.Join(sess.ID, c)
	g.broadcastSession(ctx, sess.ID, gamedto.EventCreatedGame, sess)
	if out, encErr := gamedto.NewEnvelope(gamedto.EventInvitedPlayer, 0, req.Nickname); encErr == nil {
		g.hub.BroadcastRoom(sess.ID, out)
	}
	g.ackOK(c, env.Seq)
}

func (g *Gateway) handleJoinInvitation(ctx context.Context, c *conn, env *gamedto.Envelope) {
	var req gamedto.JoinInvitationRequest
	if err := json.Unmarshal(env.Data, &req); err != nil || req.GameID == "" {
		g.ackFail(c, env.Seq, g.cat.Text("invite.sessionGone"))
		return
	}
	sess, err := g.match.JoinInvitation(ctx, c.user, req.GameID)
	if err != nil {
		if errors.Is(err, session.ErrSessionGone) {
			// the invite points at nothing; resolve it so the user can be
			// invited again
			if _, derr := g.invites.Decline(c.user.ID); derr != nil && !errors.Is(derr, invite.ErrNoPendingForUser) {
				obslog.L().Warn("invite_decline_error", zap.String("user_id", c.user.ID), zap.Error(derr))
			}
		}
		g.ackFail(c, env.Seq, g.statusText(err))
		return
	}
	if _, err := g.invites.Claim(c.user.ID, sess.ID); err != nil {
		// Invites created before a restart have no in-memory record.
		obslog.L().Debug("invite_claim_miss", zap.String("session_id", sess.ID), zap.Error(err))
	}
	g.hub.Join(sess.ID, c)
	g.broadcastSession(ctx, sess.ID, gamedto.EventJoinedGame, sess)
	g.ackOK(c, env.Seq)
}

func (g *Gateway) handleStartPowerUp(ctx context.Context, c *conn, env *gamedto.Envelope) {
	var req gamedto.PowerUpRequest
	if err := json.Unmarshal(env.Data, &req); err != nil || req.RoomID == "" {
		return
	}
	sess, err := g.life.PowerUp(ctx, req.RoomID)
	if err != nil {
		obslog.L().Warn("powerup_error",
			zap.String("user_id", c.user.ID),
			zap.String("session_id", req.RoomID),
			zap.Error(err),
		)
		return
	}
	g.broadcastSession(ctx, sess.ID, gamedto.EventUpdateMode, sess)
}

// handleStoreScore is fire-and-forget: the host streams score snapshots and
// never waits on an ack.
func (g *Gateway) handleStoreScore(ctx context.Context, c *conn, env *gamedto.Envelope) {
	var req gamedto.ScoreUpdate
	if err := json.Unmarshal(env.Data, &req); err != nil || req.GameID == "" {
		return
	}
	_, err := g.rec.RecordScore(ctx, req.GameID, req.ScoreR, req.ScoreL, req.WinnerID, req.End)
	if err != nil {
		obslog.L().Warn("store_score_error",
			zap.String("user_id", c.user.ID),
			zap.String("session_id", req.GameID),
			zap.Error(err),
		)
		return
	}
	if req.End {
		g.metrics.Ended.Inc()
	}
}

// handleRelay forwards move/start frames to the session room verbatim,
// excluding the sender. The payload is never inspected beyond the room id.
func (g *Gateway) handleRelay(c *conn, env *gamedto.Envelope) {
	var ref struct {
		Room string `json:"room"`
	}
	if err := json.Unmarshal(env.Data, &ref); err != nil || ref.Room == "" {
		return
	}
	g.hub.Broadcast(ref.Room, c, env)
	g.metrics.Relayed.WithLabelValues(env.Event).Inc()
}
