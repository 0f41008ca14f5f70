package gamedto

// Client → server events.
const (
	EventCreateInviteGame = "createAnInviteGame"
	EventJoinInvitation   = "joinInvitation"
	EventJoinGame         = "joinGame"
	EventStartPowerUp     = "startPowerUp"
	EventStoreScore       = "storeScore"
	EventMove             = "move"
	EventStart            = "start"
)

// Server → client events.
const (
	EventAck                  = "ack"
	EventError                = "error"
	EventCreatedGame          = "createdGame"
	EventInvitedPlayer        = "invitedPlayer"
	EventJoinedGame           = "joinedGame"
	EventUpdateMode           = "updateMode"
	EventOpponentDisconnected = "opponentDisconnected"
	EventPlayersStatusUpdate  = "playersStatusUpdate"
)
