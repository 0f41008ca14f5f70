package relay

import (
	"sync"

	"github.com/mpeyrard/pong-arena/pkg/gamedto"
)

// Client is one connected socket. Send must not block: implementations
// queue outbound envelopes and preserve per-receiver ordering.
type Client interface {
	Send(env *gamedto.Envelope)
}

// Hub scopes broadcasts to rooms keyed by session id. It is a pure message
// bus: payloads pass through verbatim and nothing is persisted. Exclusive
// membership per room is what prevents cross-session leakage.
type Hub struct {
	mu      sync.RWMutex
	clients map[Client]struct{}
	rooms   map[string]map[Client]struct{}
	joined  map[Client]map[string]struct{}
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[Client]struct{}),
		rooms:   make(map[string]map[Client]struct{}),
		joined:  make(map[Client]map[string]struct{}),
	}
}

// Register adds a connected client to the global broadcast scope.
func (h *Hub) Register(c Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
}

// Unregister removes the client from every room and the global scope.
func (h *Hub) Unregister(c Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for room := range h.joined[c] {
		h.leaveLocked(room, c)
	}
	delete(h.joined, c)
	delete(h.clients, c)
}

// Join binds the client to a session's room.
func (h *Hub) Join(room string, c Client) {
	if room == "" {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[Client]struct{})
	}
	h.rooms[room][c] = struct{}{}
	if h.joined[c] == nil {
		h.joined[c] = make(map[string]struct{})
	}
	h.joined[c][room] = struct{}{}
}

// Leave removes the client from one room.
func (h *Hub) Leave(room string, c Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(room, c)
	if m := h.joined[c]; m != nil {
		delete(m, room)
	}
}

func (h *Hub) leaveLocked(room string, c Client) {
	if m := h.rooms[room]; m != nil {
		delete(m, c)
		if len(m) == 0 {
			delete(h.rooms, room)
		}
	}
}

// Broadcast delivers env to every room member except from.
func (h *Hub) Broadcast(room string, from Client, env *gamedto.Envelope) {
	for _, c := range h.members(room) {
		if c == from {
			continue
		}
		c.Send(env)
	}
}

// BroadcastRoom delivers env to every member of the room, sender included.
func (h *Hub) BroadcastRoom(room string, env *gamedto.Envelope) {
	for _, c := range h.members(room) {
		c.Send(env)
	}
}

// BroadcastAll delivers env to every registered client, e.g. presence.
func (h *Hub) BroadcastAll(env *gamedto.Envelope) {
	h.mu.RLock()
	all := make([]Client, 0, len(h.clients))
	for c := range h.clients {
		all = append(all, c)
	}
	h.mu.RUnlock()
	for _, c := range all {
		c.Send(env)
	}
}

// RoomSize reports the current member count of a room.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

func (h *Hub) members(room string) []Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Client, 0, len(h.rooms[room]))
	for c := range h.rooms[room] {
		out = append(out, c)
	}
	return out
}
