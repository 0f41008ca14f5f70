package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/mpeyrard/pong-arena/internal/identity"
	"github.com/mpeyrard/pong-arena/internal/invite"
	"github.com/mpeyrard/pong-arena/internal/msgcat"
	"github.com/mpeyrard/pong-arena/internal/relay"
	"github.com/mpeyrard/pong-arena/internal/session"
	"github.com/mpeyrard/pong-arena/internal/wsclient"
	"github.com/mpeyrard/pong-arena/pkg/gamedto"
)

type testEnv struct {
	srv      *httptest.Server
	store    *session.Store
	invites  *invite.Manager
	resolver *identity.Static
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(func() { mr.Close() })
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	store := session.NewStore(rdb, time.Hour)

	cat, err := msgcat.New("")
	if err != nil {
		t.Fatalf("msgcat: %v", err)
	}
	resolver := identity.NewStatic()
	invites := invite.NewManager()

	g := New(Deps{
		Store:    store,
		Match:    session.NewMatchmaker(store, nil),
		Life:     session.NewLifecycle(store, nil),
		Recorder: session.NewRecorder(store, session.NewMemResults(), nil),
		Hub:      relay.NewHub(),
		Resolver: resolver,
		Invites:  invites,
		Catalog:  cat,
		WinScore: 7,
	})
	mux := http.NewServeMux()
	g.Routes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return &testEnv{srv: srv, store: store, invites: invites, resolver: resolver}
}

func (e *testEnv) wsURL(token string) string {
	return "ws" + strings.TrimPrefix(e.srv.URL, "http") + "/ws?token=" + token
}

// frameLog collects inbound envelopes for assertions.
type frameLog struct {
	mu     sync.Mutex
	frames []gamedto.Envelope
}

func (f *frameLog) add(env *gamedto.Envelope) {
	f.mu.Lock()
	f.frames = append(f.frames, *env)
	f.mu.Unlock()
}

func (f *frameLog) waitFor(t *testing.T, what string, match func(*gamedto.Envelope) bool) *gamedto.Envelope {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		f.mu.Lock()
		for i := range f.frames {
			if match(&f.frames[i]) {
				env := f.frames[i]
				f.mu.Unlock()
				return &env
			}
		}
		f.mu.Unlock()
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("no %s frame received", what)
	return nil
}

func sessionFrom(t *testing.T, env *gamedto.Envelope) gamedto.SessionInfo {
	t.Helper()
	var s gamedto.SessionInfo
	if err := json.Unmarshal(env.Data, &s); err != nil {
		t.Fatalf("decode session payload: %v", err)
	}
	return s
}

func TestJoinGameOverWebsocket(t *testing.T) {
	env := newTestEnv(t)
	env.resolver.Bind("t1", session.Player{ID: "u1", Nickname: "alice"})
	env.resolver.Bind("t2", session.Player{ID: "u2", Nickname: "bob"})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var f1, f2 frameLog
	c1, err := wsclient.Dial(ctx, env.wsURL("t1"), f1.add)
	if err != nil {
		t.Fatalf("dial c1: %v", err)
	}
	defer func() { _ = c1.Close() }()

	resp, err := c1.Call(ctx, gamedto.EventJoinGame, struct{}{})
	if err != nil || !resp.OK {
		t.Fatalf("joinGame c1: resp=%+v err=%v", resp, err)
	}
	joined := f1.waitFor(t, "joinedGame", func(e *gamedto.Envelope) bool {
		return e.Event == gamedto.EventJoinedGame
	})
	s1 := sessionFrom(t, joined)
	if s1.Status != string(session.StatusWaiting) || s1.Full {
		t.Fatalf("unexpected first session payload: %+v", s1)
	}
	if s1.WinScore != 7 {
		t.Fatalf("winScore not surfaced: %+v", s1)
	}

	c2, err := wsclient.Dial(ctx, env.wsURL("t2"), f2.add)
	if err != nil {
		t.Fatalf("dial c2: %v", err)
	}
	defer func() { _ = c2.Close() }()

	resp, err = c2.Call(ctx, gamedto.EventJoinGame, struct{}{})
	if err != nil || !resp.OK {
		t.Fatalf("joinGame c2: resp=%+v err=%v", resp, err)
	}
	live := f1.waitFor(t, "LIVE joinedGame", func(e *gamedto.Envelope) bool {
		if e.Event != gamedto.EventJoinedGame {
			return false
		}
		var s gamedto.SessionInfo
		return json.Unmarshal(e.Data, &s) == nil && s.Status == string(session.StatusLive)
	})
	s2 := sessionFrom(t, live)
	if s2.ID != s1.ID || !s2.Full || len(s2.Players) != 2 {
		t.Fatalf("second join did not fill the session: %+v", s2)
	}
}

func TestInvalidTokenGetsErrorAndClose(t *testing.T) {
	env := newTestEnv(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var f frameLog
	c, err := wsclient.Dial(ctx, env.wsURL("nope"), f.add)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer func() { _ = c.Close() }()

	f.waitFor(t, "error", func(e *gamedto.Envelope) bool {
		return e.Event == gamedto.EventError
	})
	select {
	case <-c.Done():
	case <-time.After(3 * time.Second):
		t.Fatalf("server did not close the connection")
	}
}

func TestInviteFlowOverWebsocket(t *testing.T) {
	env := newTestEnv(t)
	env.resolver.Bind("t1", session.Player{ID: "u1", Nickname: "alice"})
	env.resolver.Bind("t2", session.Player{ID: "u2", Nickname: "bob"})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var f1 frameLog
	c1, err := wsclient.Dial(ctx, env.wsURL("t1"), f1.add)
	if err != nil {
		t.Fatalf("dial c1: %v", err)
	}
	defer func() { _ = c1.Close() }()

	resp, err := c1.Call(ctx, gamedto.EventCreateInviteGame, gamedto.InviteRequest{ID: "u2", Nickname: "bob"})
	if err != nil || !resp.OK {
		t.Fatalf("createAnInviteGame: resp=%+v err=%v", resp, err)
	}
	f1.waitFor(t, "createdGame", func(e *gamedto.Envelope) bool {
		return e.Event == gamedto.EventCreatedGame
	})
	f1.waitFor(t, "invitedPlayer", func(e *gamedto.Envelope) bool {
		return e.Event == gamedto.EventInvitedPlayer
	})
	if env.invites.Pending("u2") == nil {
		t.Fatalf("invite not registered as pending")
	}

	// a second invite for the same user is rejected while one is pending
	resp, err = c1.Call(ctx, gamedto.EventCreateInviteGame, gamedto.InviteRequest{ID: "u2", Nickname: "bob"})
	if err != nil {
		t.Fatalf("duplicate invite call: %v", err)
	}
	if resp.OK || resp.StatusText != "User already has a pending invitation" {
		t.Fatalf("duplicate invite not rejected: %+v", resp)
	}

	// joining a vanished session resolves the dangling invite
	var f2 frameLog
	c2, err := wsclient.Dial(ctx, env.wsURL("t2"), f2.add)
	if err != nil {
		t.Fatalf("dial c2: %v", err)
	}
	defer func() { _ = c2.Close() }()

	resp, err = c2.Call(ctx, gamedto.EventJoinInvitation, gamedto.JoinInvitationRequest{GameID: "missing"})
	if err != nil {
		t.Fatalf("joinInvitation call: %v", err)
	}
	if resp.OK || resp.StatusText != "Game not found" {
		t.Fatalf("join of missing session not rejected: %+v", resp)
	}
	if env.invites.Pending("u2") != nil {
		t.Fatalf("dangling invite left pending")
	}
}
