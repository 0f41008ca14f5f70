package invite

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

var (
	ErrInvalidArgs      = errors.New("invalid arguments")
	ErrSelfInvite       = errors.New("cannot invite yourself")
	ErrAlreadyPending   = errors.New("target already has a pending invite")
	ErrNoPendingForUser = errors.New("no pending invite for target user")
)

type Status string

const (
	StatusPending  Status = "PENDING"
	StatusAccepted Status = "ACCEPTED"
	StatusDeclined Status = "DECLINED"
)

// Invite tracks one pending game invitation. The session itself lives in
// the session store; this records who may claim its second slot.
type Invite struct {
	ID        string
	SessionID string
	InviterID string
	InviteeID string
	CreatedAt time.Time
	Status    Status
}

// Manager is an in-memory registry of invitations keyed by invitee.
type Manager struct {
	mu sync.RWMutex
	// inviteeID -> invites, append-only; last pending is the latest
	byInvitee map[string][]*Invite
	seq       uint64
}

func NewManager() *Manager {
	return &Manager{byInvitee: make(map[string][]*Invite)}
}

// Create registers a pending invitation for inviteeID.
func (m *Manager) Create(sessionID, inviterID, inviteeID string) (*Invite, error) {
	if sessionID == "" || inviterID == "" || inviteeID == "" {
		return nil, ErrInvalidArgs
	}
	if inviterID == inviteeID {
		return nil, ErrSelfInvite
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.byInvitee[inviteeID]
	if idx := latestPendingIndex(list); idx >= 0 {
		return nil, ErrAlreadyPending
	}
	inv := &Invite{
		ID:        m.nextID(),
		SessionID: sessionID,
		InviterID: inviterID,
		InviteeID: inviteeID,
		CreatedAt: time.Now(),
		Status:    StatusPending,
	}
	m.byInvitee[inviteeID] = append(list, inv)
	return inv, nil
}

// Claim marks the invitee's pending invite for sessionID as accepted.
func (m *Manager) Claim(inviteeID, sessionID string) (*Invite, error) {
	if inviteeID == "" || sessionID == "" {
		return nil, ErrInvalidArgs
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.byInvitee[inviteeID]
	for i := len(list) - 1; i >= 0; i-- {
		if list[i].Status == StatusPending && list[i].SessionID == sessionID {
			list[i].Status = StatusAccepted
			return list[i], nil
		}
	}
	return nil, ErrNoPendingForUser
}

// Decline resolves the invitee's latest pending invite without a game.
func (m *Manager) Decline(inviteeID string) (*Invite, error) {
	if inviteeID == "" {
		return nil, ErrInvalidArgs
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.byInvitee[inviteeID]
	if idx := latestPendingIndex(list); idx >= 0 {
		list[idx].Status = StatusDeclined
		return list[idx], nil
	}
	return nil, ErrNoPendingForUser
}

// Pending returns the invitee's latest unresolved invite, or nil.
func (m *Manager) Pending(inviteeID string) *Invite {
	m.mu.RLock()
	defer m.mu.RUnlock()
	list := m.byInvitee[inviteeID]
	if idx := latestPendingIndex(list); idx >= 0 {
		return list[idx]
	}
	return nil
}

func latestPendingIndex(list []*Invite) int {
	for i := len(list) - 1; i >= 0; i-- {
		if list[i].Status == StatusPending {
			return i
		}
	}
	return -1
}

func (m *Manager) nextID() string {
	n := atomic.AddUint64(&m.seq, 1)
	return fmt.Sprintf("inv-%d-%d", time.Now().UnixNano(), n)
}
