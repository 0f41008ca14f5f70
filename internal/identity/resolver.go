package identity

import (
	"context"
	"strings"
	"sync"

	"github.com/mpeyrard/pong-arena/internal/session"
)

// Resolver maps an inbound connection's credential to a user record.
// Authentication itself is an external concern; this core only needs
// "resolve connection → user identity" on every connection event. A nil
// player with a nil error means the credential is unknown.
type Resolver interface {
	Resolve(ctx context.Context, credential string) (*session.Player, error)
}

// TokenResolver resolves opaque tokens bound in the session store by the
// external auth system.
type TokenResolver struct {
	store *session.Store
}

func NewTokenResolver(store *session.Store) *TokenResolver {
	return &TokenResolver{store: store}
}

func (r *TokenResolver) Resolve(ctx context.Context, credential string) (*session.Player, error) {
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return nil, nil
	}
	uid, err := r.store.UserIDByToken(ctx, credential)
	if err != nil {
		return nil, err
	}
	if uid == "" {
		return nil, nil
	}
	p, err := r.store.GetPlayer(ctx, uid)
	if err != nil {
		return nil, err
	}
	if p == nil {
		p = &session.Player{ID: uid}
	}
	return p, nil
}

// Static resolves credentials from a fixed map. Test and dev wiring only.
type Static struct {
	mu      sync.RWMutex
	players map[string]session.Player
}

func NewStatic() *Static {
	return &Static{players: make(map[string]session.Player)}
}

func (s *Static) Bind(credential string, p session.Player) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.players[credential] = p
}

func (s *Static) Resolve(_ context.Context, credential string) (*session.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p, ok := s.players[credential]; ok {
		cp := p
		return &cp, nil
	}
	return nil, nil
}
