package gateway

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/mpeyrard/pong-arena/internal/obslog"
	"github.com/mpeyrard/pong-arena/internal/session"
	"github.com/mpeyrard/pong-arena/pkg/gamedto"
)

const sendQueueSize = 64

// conn is the per-connection context object: the socket, the identity it
// resolved to at connect time, and an ordered outbound queue. Every event
// handler receives the same conn for the connection's whole lifetime.
type conn struct {
	sock *websocket.Conn
	user *session.Player

	send      chan *gamedto.Envelope
	done      chan struct{}
	closeOnce sync.Once
}

func newConn(sock *websocket.Conn, user *session.Player) *conn {
	return &conn{
		sock: sock,
		user: user,
		send: make(chan *gamedto.Envelope, sendQueueSize),
		done: make(chan struct{}),
	}
}

// Send queues an envelope for delivery. Delivery is best-effort: a slow
// receiver with a full queue loses the frame rather than stalling the hub.
func (c *conn) Send(env *gamedto.Envelope) {
	select {
	case <-c.done:
	case c.send <- env:
	default:
		obslog.L().Warn("ws_send_drop",
			zap.String("user_id", c.user.ID),
			zap.String("event", env.Event),
		)
	}
}

// writePump serializes all outbound writes; wsjson.Write is not safe for
// concurrent use. Queue order is preserved per receiver.
func (c *conn) writePump() {
	for {
		select {
		case <-c.done:
			return
		case env := <-c.send:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			err := wsjson.Write(ctx, c.sock, env)
			cancel()
			if err != nil {
				c.close()
				return
			}
		}
	}
}

func (c *conn) close() {
	c.closeOnce.Do(func() { close(c.done) })
}
