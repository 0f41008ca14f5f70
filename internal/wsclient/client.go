package wsclient

import (
	"context"
	"encoding/json"
	"sync"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/mpeyrard/pong-arena/pkg/gamedto"
)

// ErrClosed reports a call against a client whose read loop has exited.
const ErrClosed = staticErr("websocket closed")

type staticErr string

func (e staticErr) Error() string { return string(e) }

// Handler receives every inbound envelope, acks included, in arrival order.
type Handler func(env *gamedto.Envelope)

// Client speaks the game server's envelope protocol: fire-and-forget emits
// plus request/acknowledgement correlation over the envelope seq field.
// Room frames (joinedGame, move, playersStatusUpdate, ...) arrive through
// the handler; Call matches an ack to the request that carried its seq.
type Client struct {
	sock    *websocket.Conn
	handler Handler

	writeM sync.Mutex

	mu      sync.Mutex
	seq     int64
	pending map[int64]chan gamedto.GameResponse

	done      chan struct{}
	closeOnce sync.Once
}

// Dial connects and starts the read loop. handler may be nil.
func Dial(ctx context.Context, url string, handler Handler) (*Client, error) {
	sock, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	c := &Client{
		sock:    sock,
		handler: handler,
		pending: make(map[int64]chan gamedto.GameResponse),
		done:    make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

func (c *Client) readLoop() {
	defer c.markDone()
	for {
		var env gamedto.Envelope
		if err := wsjson.Read(context.Background(), c.sock, &env); err != nil {
			return
		}
		// handler first: by the time a caller's ack resolves, every frame
		// the server queued before it has been delivered
		if c.handler != nil {
			c.handler(&env)
		}
		if env.Event == gamedto.EventAck {
			c.resolve(&env)
		}
	}
}

func (c *Client) resolve(env *gamedto.Envelope) {
	var resp gamedto.GameResponse
	if err := json.Unmarshal(env.Data, &resp); err != nil {
		return
	}
	c.mu.Lock()
	ch, ok := c.pending[env.Seq]
	if ok {
		delete(c.pending, env.Seq)
	}
	c.mu.Unlock()
	if ok {
		ch <- resp
	}
}

// Emit sends one envelope without waiting for an acknowledgement, e.g. the
// move and start relay frames.
func (c *Client) Emit(ctx context.Context, event string, data any) error {
	env, err := gamedto.NewEnvelope(event, 0, data)
	if err != nil {
		return err
	}
	return c.write(ctx, env)
}

// Call sends an envelope under a fresh seq and blocks until the matching
// ack arrives, the connection drops, or ctx expires.
func (c *Client) Call(ctx context.Context, event string, data any) (gamedto.GameResponse, error) {
	ch := make(chan gamedto.GameResponse, 1)
	c.mu.Lock()
	c.seq++
	seq := c.seq
	c.pending[seq] = ch
	c.mu.Unlock()

	env, err := gamedto.NewEnvelope(event, seq, data)
	if err == nil {
		err = c.write(ctx, env)
	}
	if err != nil {
		c.dropPending(seq)
		return gamedto.GameResponse{}, err
	}

	select {
	case resp := <-ch:
		return resp, nil
	case <-c.done:
		c.dropPending(seq)
		return gamedto.GameResponse{}, ErrClosed
	case <-ctx.Done():
		c.dropPending(seq)
		return gamedto.GameResponse{}, ctx.Err()
	}
}

func (c *Client) write(ctx context.Context, env *gamedto.Envelope) error {
	c.writeM.Lock()
	defer c.writeM.Unlock()
	return wsjson.Write(ctx, c.sock, env)
}

func (c *Client) dropPending(seq int64) {
	c.mu.Lock()
	delete(c.pending, seq)
	c.mu.Unlock()
}

// Done is closed when the read loop exits, whether by Close or because the
// server hung up.
func (c *Client) Done() <-chan struct{} { return c.done }

func (c *Client) markDone() {
	c.closeOnce.Do(func() { close(c.done) })
}

func (c *Client) Close() error {
	err := c.sock.Close(websocket.StatusNormalClosure, "")
	c.markDone()
	return err
}
