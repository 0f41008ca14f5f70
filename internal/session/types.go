package session

import (
	"time"
)

// Status is the lifecycle state of a session.
type Status string

const (
	StatusWaiting Status = "WAITING"
	StatusLive    Status = "LIVE"
	StatusPaused  Status = "PAUSED"
	StatusEnded   Status = "ENDED"
)

// Type controls matchmaking eligibility. PUBLIC sessions sit in the queue;
// PRIVATE sessions are reachable only through an invitation.
type Type string

const (
	TypePublic  Type = "PUBLIC"
	TypePrivate Type = "PRIVATE"
)

// Mode is the play variant. SPEED is entered transiently through a power-up.
type Mode string

const (
	ModeClassic Mode = "CLASSIC"
	ModeSpeed   Mode = "SPEED"
)

// Session is the persisted state of one match. Stored as JSON in Redis;
// final outcomes are additionally written to the result store.
type Session struct {
	ID string `json:"id"`
	// Ordered, at most two entries. The first entrant is the host and the
	// authoritative physics source.
	Players   []string  `json:"players"`
	OwnerID   string    `json:"owner_id"`
	InviteeID string    `json:"invitee_id,omitempty"`
	Position  int64     `json:"position"`
	Full      bool      `json:"full"`
	Type      Type      `json:"type"`
	Mode      Mode      `json:"mode"`
	Status    Status    `json:"status"`
	ScoreR    int       `json:"score_r"`
	ScoreL    int       `json:"score_l"`
	WinnerID  string    `json:"winner_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HostID returns the first player slot, or "" for an empty session.
func (s *Session) HostID() string {
	if len(s.Players) == 0 {
		return ""
	}
	return s.Players[0]
}

// HasPlayer reports whether userID occupies one of the player slots.
func (s *Session) HasPlayer(userID string) bool {
	for _, p := range s.Players {
		if p == userID {
			return true
		}
	}
	return false
}

// OpponentOf returns the other participant, or "" when there is none.
func (s *Session) OpponentOf(userID string) string {
	for _, p := range s.Players {
		if p != userID {
			return p
		}
	}
	return ""
}

// Active reports whether the session still binds its participants.
func (s *Session) Active() bool { return s.Status != StatusEnded }

// Player is the subset of a user record this core tracks.
type Player struct {
	ID        string    `json:"id"`
	Nickname  string    `json:"nickname"`
	Online    bool      `json:"online"`
	IsPlaying bool      `json:"is_playing"`
	Expert    bool      `json:"expert"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Errors reported to the gateway. Each maps onto one {ok:false,statusText}
// response; store failures pass through unwrapped.
var (
	ErrInvalidArgs    = errf("invalid arguments")
	ErrUserInLiveGame = errf("user already in a live game")
	ErrSessionFull    = errf("this user cannot be added to the game")
	ErrSessionGone    = errf("session not found")
	ErrNotInvited     = errf("user is not invited to this session")
	ErrInviterPlaying = errf("inviting user is already in a game")
	ErrInviteePlaying = errf("invited user is already in a game")
)

type staticErr string

func (e staticErr) Error() string { return string(e) }
func errf(s string) error         { return staticErr(s) }
