package presence

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/mpeyrard/pong-arena/internal/obslog"
	"github.com/mpeyrard/pong-arena/pkg/gamedto"
)

// Notifier is invoked whenever any tracked play-state flag changes. Who
// receives the broadcast is the implementation's concern.
type Notifier interface {
	BroadcastPresence()
}

// Nop discards presence updates. Used in tests and partial wirings.
type Nop struct{}

func (Nop) BroadcastPresence() {}

// PlayerLister supplies the roster included in presence payloads.
type PlayerLister interface {
	Players(ctx context.Context) ([]gamedto.PlayerInfo, error)
}

// Sender fans an envelope out to every connected client.
type Sender interface {
	BroadcastAll(env *gamedto.Envelope)
}

// Service broadcasts the full player list on every play-state change,
// mirroring the playersStatusUpdate feed clients subscribe to.
type Service struct {
	list PlayerLister
	send Sender
}

func NewService(list PlayerLister, send Sender) *Service {
	return &Service{list: list, send: send}
}

func (s *Service) BroadcastPresence() {
	if s == nil || s.list == nil || s.send == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	players, err := s.list.Players(ctx)
	if err != nil {
		obslog.L().Warn("presence_list_error", zap.Error(err))
		return
	}
	env, err := gamedto.NewEnvelope(gamedto.EventPlayersStatusUpdate, 0, players)
	if err != nil {
		obslog.L().Warn("presence_encode_error", zap.Error(err))
		return
	}
	s.send.BroadcastAll(env)
}
