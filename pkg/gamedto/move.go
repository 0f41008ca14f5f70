package gamedto

// MoveVector is the normalized state vector relayed between the two peers of
// a room. All positions and velocities are fractions of the play-field's
// width/height so the receiver can rescale to its own viewport. Only the
// host's messages carry meaningful ball state; guest messages update the
// guest paddle and leave ball fields at last-known values.
type MoveVector struct {
	Room    string  `json:"room"`
	BallX   float64 `json:"ballX"`
	BallY   float64 `json:"ballY"`
	BallVX  float64 `json:"ballVX"`
	BallVY  float64 `json:"ballVY"`
	PaddleR float64 `json:"paddleR"`
	PaddleL float64 `json:"paddleL"`
	ScoreR  int     `json:"scoreR"`
	ScoreL  int     `json:"scoreL"`
	Speed   bool    `json:"speed"`
}

// StartSignal cues both clients of a room to begin rendering. No payload
// semantics beyond presence.
type StartSignal struct {
	Room string `json:"room"`
}

// PowerUpRequest asks the server to switch a session into SPEED mode.
type PowerUpRequest struct {
	RoomID string `json:"roomId"`
}

// InviteRequest targets a user for a private game.
type InviteRequest struct {
	ID       string `json:"id"`
	Nickname string `json:"nickname"`
}

// JoinInvitationRequest references the private session to join.
type JoinInvitationRequest struct {
	GameID string `json:"gameId"`
}

// ScoreUpdate is the fire-and-forget storeScore payload.
type ScoreUpdate struct {
	GameID   string `json:"gameId"`
	ScoreR   int    `json:"scoreR"`
	ScoreL   int    `json:"scoreL"`
	WinnerID string `json:"winner,omitempty"`
	End      bool   `json:"end"`
}
