package gamedto

// GameResponse is the request/response-with-acknowledgement shape returned
// for createAnInviteGame, joinInvitation and joinGame.
type GameResponse struct {
	OK         bool   `json:"ok"`
	StatusText string `json:"statusText,omitempty"`
}

func OKResponse() GameResponse { return GameResponse{OK: true} }

func FailResponse(statusText string) GameResponse {
	return GameResponse{OK: false, StatusText: statusText}
}
