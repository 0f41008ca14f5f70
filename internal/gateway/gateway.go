package gateway

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/mpeyrard/pong-arena/internal/chatnotify"
	"github.com/mpeyrard/pong-arena/internal/identity"
	"github.com/mpeyrard/pong-arena/internal/invite"
	"github.com/mpeyrard/pong-arena/internal/msgcat"
	"github.com/mpeyrard/pong-arena/internal/obslog"
	"github.com/mpeyrard/pong-arena/internal/presence"
	"github.com/mpeyrard/pong-arena/internal/relay"
	"github.com/mpeyrard/pong-arena/internal/session"
	"github.com/mpeyrard/pong-arena/pkg/gamedto"
)

// Deps wires the gateway to the session core. Resolver, Store, Matchmaker,
// Lifecycle, Recorder, Hub and Catalog are required; the rest default to
// no-ops.
type Deps struct {
	Store    *session.Store
	Match    *session.Matchmaker
	Life     *session.Lifecycle
	Recorder *session.Recorder
	Hub      *relay.Hub
	Resolver identity.Resolver
	Invites  *invite.Manager
	Chat     chatnotify.Notifier
	Catalog  *msgcat.Catalog
	Notifier presence.Notifier
	Metrics  *Metrics

	// WinScore is the winning threshold surfaced to clients in every
	// session payload. Defaults to 11.
	WinScore int

	// AllowedOrigins is passed to websocket.Accept as origin patterns.
	AllowedOrigins []string
}

// Gateway terminates websocket connections and translates frames into
// session-core calls. One goroutine per connection reads; a second writes.
type Gateway struct {
	store    *session.Store
	match    *session.Matchmaker
	life     *session.Lifecycle
	rec      *session.Recorder
	hub      *relay.Hub
	resolver identity.Resolver
	invites  *invite.Manager
	chat     chatnotify.Notifier
	cat      *msgcat.Catalog
	notifier presence.Notifier
	metrics  *Metrics
	winScore int
	origins  []string
}

func New(d Deps) *Gateway {
	g := &Gateway{
		store:    d.Store,
		match:    d.Match,
		life:     d.Life,
		rec:      d.Recorder,
		hub:      d.Hub,
		resolver: d.Resolver,
		invites:  d.Invites,
		chat:     d.Chat,
		cat:      d.Catalog,
		notifier: d.Notifier,
		metrics:  d.Metrics,
		winScore: d.WinScore,
		origins:  d.AllowedOrigins,
	}
	if g.winScore <= 0 {
		g.winScore = 11
	}
	if g.chat == nil {
		g.chat = chatnotify.Nop{}
	}
	if g.notifier == nil {
		g.notifier = presence.Nop{}
	}
	if g.metrics == nil {
		g.metrics = NewMetrics(nil)
	}
	if g.invites == nil {
		g.invites = invite.NewManager()
	}
	return g
}

// Routes registers the gateway's HTTP surface on mux.
func (g *Gateway) Routes(mux *http.ServeMux) {
	mux.HandleFunc("/ws", g.HandleWS)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
}

// HandleWS upgrades the connection, resolves the caller's identity and runs
// the read loop until the socket closes. An unresolvable credential gets an
// error frame and an immediate close.
func (g *Gateway) HandleWS(w http.ResponseWriter, r *http.Request) {
	sock, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: g.origins,
	})
	if err != nil {
		obslog.L().Warn("ws_accept_error", zap.Error(err))
		return
	}

	ctx := r.Context()
	user, err := g.resolver.Resolve(ctx, r.URL.Query().Get("token"))
	if err != nil || user == nil {
		if err != nil {
			obslog.L().Warn("ws_resolve_error", zap.Error(err))
		}
		if env, encErr := gamedto.NewEnvelope(gamedto.EventError, 0, g.cat.Text("conn.invalidToken")); encErr == nil {
			writeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
			_ = wsjson.Write(writeCtx, sock, env)
			cancel()
		}
		_ = sock.Close(websocket.StatusPolicyViolation, "invalid token")
		return
	}

	c := newConn(sock, user)
	go c.writePump()
	g.hub.Register(c)

	obslog.L().Info("ws_connected", zap.String("user_id", user.ID))
	g.handleReconnection(ctx, c)
	g.readLoop(ctx, c)

	g.hub.Unregister(c)
	c.close()
	// The request context is gone once the read loop exits; disconnect
	// bookkeeping runs on its own deadline.
	dctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	g.handleDisconnect(dctx, c)
	cancel()
	_ = sock.Close(websocket.StatusNormalClosure, "")
	obslog.L().Info("ws_disconnected", zap.String("user_id", user.ID))
}

func (g *Gateway) readLoop(ctx context.Context, c *conn) {
	for {
		var env gamedto.Envelope
		if err := wsjson.Read(ctx, c.sock, &env); err != nil {
			return
		}
		g.dispatch(ctx, c, &env)
	}
}

// handleReconnection restores the caller's paused session, if any, and
// replays the joinedGame announcement to the room.
func (g *Gateway) handleReconnection(ctx context.Context, c *conn) {
	sess, err := g.life.Reconnect(ctx, c.user)
	if err != nil {
		obslog.L().Warn("reconnect_error", zap.String("user_id", c.user.ID), zap.Error(err))
		g.sendError(c, 0, g.cat.Text("conn.reconnectError"))
		return
	}
	if sess == nil {
		return
	}
	g.hub.Join(sess.ID, c)
	g.broadcastSession(ctx, sess.ID, gamedto.EventJoinedGame, sess)
}

func (g *Gateway) handleDisconnect(ctx context.Context, c *conn) {
	sess, err := g.life.Disconnect(ctx, c.user.ID)
	if err != nil {
		obslog.L().Warn("disconnect_error", zap.String("user_id", c.user.ID), zap.Error(err))
		return
	}
	if sess != nil {
		g.broadcastSession(ctx, sess.ID, gamedto.EventOpponentDisconnected, sess)
	}
}

// broadcastSession sends the session's wire view to every room member,
// sender included.
func (g *Gateway) broadcastSession(ctx context.Context, room, event string, sess *session.Session) {
	env, err := gamedto.NewEnvelope(event, 0, g.sessionDTO(ctx, sess))
	if err != nil {
		obslog.L().Warn("broadcast_encode_error", zap.String("event", event), zap.Error(err))
		return
	}
	g.hub.BroadcastRoom(room, env)
}

func (g *Gateway) sendError(c *conn, seq int64, text string) {
	if env, err := gamedto.NewEnvelope(gamedto.EventError, seq, text); err == nil {
		c.Send(env)
	}
}
