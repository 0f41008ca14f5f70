package gamedto

import "time"

// PlayerInfo is the wire view of a player record.
type PlayerInfo struct {
	ID        string `json:"id"`
	Nickname  string `json:"nickname"`
	Online    bool   `json:"online"`
	IsPlaying bool   `json:"isPlaying"`
	Expert    bool   `json:"expert"`
}

// SessionInfo is the wire view of a session, broadcast with joinedGame,
// createdGame, updateMode and opponentDisconnected.
type SessionInfo struct {
	ID        string       `json:"id"`
	Players   []PlayerInfo `json:"players"`
	OwnerID   string       `json:"ownerId"`
	Position  int64        `json:"position"`
	Full      bool         `json:"full"`
	Type      string       `json:"type"`
	Mode      string       `json:"mode"`
	Status    string       `json:"status"`
	ScoreR    int          `json:"scoreR"`
	ScoreL    int          `json:"scoreL"`
	WinnerID  string       `json:"winnerId,omitempty"`
	// WinScore is the server's configured winning threshold; clients end
	// the match when either side reaches it.
	WinScore  int       `json:"winScore"`
	CreatedAt time.Time `json:"createdAt"`
}
