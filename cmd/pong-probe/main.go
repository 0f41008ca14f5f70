package main

import (
	"context"
	"flag"
	"log"
	"net/url"
	"os"
	"time"

	"github.com/mpeyrard/pong-arena/internal/wsclient"
	"github.com/mpeyrard/pong-arena/pkg/gamedto"
)

// pong-probe connects to a running server as a player, optionally requests
// quick-match, and prints every frame it receives for a short window.
func main() {
	var (
		wsURL    = flag.String("url", os.Getenv("ARENA_WS_URL"), "websocket endpoint, e.g. ws://localhost:8080/ws")
		token    = flag.String("token", os.Getenv("ARENA_TOKEN"), "connection token")
		join     = flag.Bool("join", false, "send joinGame after connecting")
		duration = flag.Duration("watch", 15*time.Second, "how long to observe frames")
	)
	flag.Parse()

	if *wsURL == "" {
		log.Fatal("ARENA_WS_URL or -url is required")
	}
	target, err := url.Parse(*wsURL)
	if err != nil {
		log.Fatalf("bad url: %v", err)
	}
	if *token != "" {
		q := target.Query()
		q.Set("token", *token)
		target.RawQuery = q.Encode()
	}

	cctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	ws, err := wsclient.Dial(cctx, target.String(), func(env *gamedto.Envelope) {
		log.Printf("WS frame event=%s seq=%d data=%s", env.Event, env.Seq, string(env.Data))
	})
	cancel()
	if err != nil {
		log.Fatalf("WS connect error: %v", err)
	}

	if *join {
		jctx, jcancel := context.WithTimeout(context.Background(), 5*time.Second)
		resp, err := ws.Call(jctx, gamedto.EventJoinGame, struct{}{})
		jcancel()
		switch {
		case err != nil:
			log.Printf("joinGame error: %v", err)
		case resp.OK:
			log.Printf("joinGame ok")
		default:
			log.Printf("joinGame rejected: %s", resp.StatusText)
		}
	}

	select {
	case <-time.After(*duration):
	case <-ws.Done():
		log.Printf("connection closed by server")
	}

	_ = ws.Close()
}
