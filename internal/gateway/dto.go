package gateway

import (
	"context"
	"sort"

	"github.com/mpeyrard/pong-arena/internal/session"
	"github.com/mpeyrard/pong-arena/pkg/gamedto"
)

func playerInfo(p *session.Player) gamedto.PlayerInfo {
	return gamedto.PlayerInfo{
		ID:        p.ID,
		Nickname:  p.Nickname,
		Online:    p.Online,
		IsPlaying: p.IsPlaying,
		Expert:    p.Expert,
	}
}

// sessionDTO assembles the wire view of a session, resolving each occupant
// to its current player record. Missing records degrade to id-only entries.
func (g *Gateway) sessionDTO(ctx context.Context, s *session.Session) *gamedto.SessionInfo {
	info := &gamedto.SessionInfo{
		ID:        s.ID,
		OwnerID:   s.OwnerID,
		Position:  s.Position,
		Full:      s.Full,
		Type:      string(s.Type),
		Mode:      string(s.Mode),
		Status:    string(s.Status),
		ScoreR:    s.ScoreR,
		ScoreL:    s.ScoreL,
		WinnerID:  s.WinnerID,
		WinScore:  g.winScore,
		CreatedAt: s.CreatedAt,
	}
	for _, uid := range s.Players {
		p, err := g.store.GetPlayer(ctx, uid)
		if err != nil || p == nil {
			p = &session.Player{ID: uid}
		}
		info.Players = append(info.Players, playerInfo(p))
	}
	return info
}

// Roster adapts the session store to the presence roster feed.
type Roster struct {
	store *session.Store
}

func NewRoster(store *session.Store) *Roster { return &Roster{store: store} }

func (r *Roster) Players(ctx context.Context) ([]gamedto.PlayerInfo, error) {
	players, err := r.store.ListPlayers(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]gamedto.PlayerInfo, 0, len(players))
	for _, p := range players {
		out = append(out, playerInfo(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Nickname < out[j].Nickname })
	return out, nil
}
