package session

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store owns the persisted session and player records. Sessions are JSON
// values with per-user index sets; the public matchmaking queue is a sorted
// set scored by position. Mutations of a single session go through
// UpdateSessionCAS so concurrent writers conflict instead of interleaving.
type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewStore(rdb *redis.Client, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Store{rdb: rdb, ttl: ttl}
}

func (s *Store) keySession(id string) string { return "arena:session:" + strings.TrimSpace(id) }
func (s *Store) keyUserIdx(uid string) string {
	return "arena:index:user:" + strings.TrimSpace(uid)
}
func (s *Store) keyPlayer(uid string) string { return "arena:player:" + strings.TrimSpace(uid) }
func (s *Store) keyToken(tok string) string  { return "arena:token:" + strings.TrimSpace(tok) }
func (s *Store) keyQueue() string            { return "arena:queue:public" }
func (s *Store) keySeq() string              { return "arena:position:seq" }
func (s *Store) keyPaused() string           { return "arena:paused" }
func (s *Store) keyPlayers() string          { return "arena:players" }

// SaveSession writes the full session record and indexes its participants.
func (s *Store) SaveSession(ctx context.Context, sess *Session) error {
	raw, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	if err := s.rdb.Set(ctx, s.keySession(sess.ID), raw, s.ttl).Err(); err != nil {
		return err
	}
	for _, uid := range sess.Players {
		if err := s.indexParticipant(ctx, sess.ID, uid); err != nil {
			return err
		}
	}
	return nil
}

// GetSession returns nil,nil when the session does not exist.
func (s *Store) GetSession(ctx context.Context, id string) (*Session, error) {
	raw, err := s.rdb.Get(ctx, s.keySession(id)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var sess Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

// UpdateSessionCAS reloads the session under WATCH, applies mutate, and
// writes the result in a transaction. A concurrent writer fails the
// transaction with redis.TxFailedErr, which callers may retry. Extra
// pipeline ops run atomically with the session write.
func (s *Store) UpdateSessionCAS(ctx context.Context, id string, mutate func(*Session) error, extras ...func(redis.Pipeliner, *Session)) (*Session, error) {
	key := s.keySession(id)
	var out *Session
	err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if err == redis.Nil {
			return ErrSessionGone
		}
		if err != nil {
			return err
		}
		var cur Session
		if jerr := json.Unmarshal(raw, &cur); jerr != nil {
			return jerr
		}
		if err := mutate(&cur); err != nil {
			return err
		}
		cur.UpdatedAt = time.Now()
		pipe := tx.TxPipeline()
		newRaw, _ := json.Marshal(&cur)
		pipe.Set(ctx, key, newRaw, s.ttl)
		for _, extra := range extras {
			extra(pipe, &cur)
		}
		if _, err := pipe.Exec(ctx); err != nil {
			return err
		}
		out = &cur
		return nil
	}, key)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// NextPosition allocates the next matchmaking position. INCR never hands
// out the same value twice, which keeps positions strictly increasing.
func (s *Store) NextPosition(ctx context.Context) (int64, error) {
	return s.rdb.Incr(ctx, s.keySeq()).Result()
}

// EnqueuePublic places an open PUBLIC session into the matchmaking queue.
func (s *Store) EnqueuePublic(ctx context.Context, id string, position int64) error {
	if err := s.rdb.ZAdd(ctx, s.keyQueue(), redis.Z{Score: float64(position), Member: id}).Err(); err != nil {
		return err
	}
	return s.rdb.Expire(ctx, s.keyQueue(), s.ttl).Err()
}

// DequeuePublic removes a session from the queue, e.g. once it is full.
func (s *Store) DequeuePublic(ctx context.Context, id string) error {
	return s.rdb.ZRem(ctx, s.keyQueue(), id).Err()
}

// LowestOpenPublic returns the queued session id with the lowest position,
// or "" when the queue is empty. Lowest position wins; no other tie-break.
func (s *Store) LowestOpenPublic(ctx context.Context) (string, error) {
	ids, err := s.rdb.ZRange(ctx, s.keyQueue(), 0, 0).Result()
	if err != nil {
		return "", err
	}
	if len(ids) == 0 {
		return "", nil
	}
	return ids[0], nil
}

func (s *Store) indexParticipant(ctx context.Context, sessionID, userID string) error {
	if strings.TrimSpace(userID) == "" {
		return nil
	}
	key := s.keyUserIdx(userID)
	if err := s.rdb.SAdd(ctx, key, sessionID).Err(); err != nil {
		return err
	}
	return s.rdb.Expire(ctx, key, s.ttl).Err()
}

// SessionByUserWithStatus returns the most recently updated session the
// user participates in with the given status, or nil,nil.
func (s *Store) SessionByUserWithStatus(ctx context.Context, userID string, status Status) (*Session, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, nil
	}
	ids, err := s.rdb.SMembers(ctx, s.keyUserIdx(userID)).Result()
	if err != nil {
		return nil, err
	}
	var list []*Session
	for _, id := range ids {
		sess, gerr := s.GetSession(ctx, id)
		if gerr != nil {
			// a load failure must not hide a LIVE session from the
			// one-live-session guard
			return nil, gerr
		}
		if sess != nil && sess.Status == status {
			list = append(list, sess)
		}
	}
	if len(list) == 0 {
		return nil, nil
	}
	sort.Slice(list, func(i, j int) bool { return list[i].UpdatedAt.After(list[j].UpdatedAt) })
	return list[0], nil
}

// MarkPaused records when a session entered PAUSED, for the reaper sweep.
func (s *Store) MarkPaused(ctx context.Context, id string, at time.Time) error {
	if err := s.rdb.ZAdd(ctx, s.keyPaused(), redis.Z{Score: float64(at.Unix()), Member: id}).Err(); err != nil {
		return err
	}
	return s.rdb.Expire(ctx, s.keyPaused(), s.ttl).Err()
}

func (s *Store) ClearPaused(ctx context.Context, id string) error {
	return s.rdb.ZRem(ctx, s.keyPaused(), id).Err()
}

// PausedBefore lists session ids that have sat in PAUSED since before cutoff.
func (s *Store) PausedBefore(ctx context.Context, cutoff time.Time) ([]string, error) {
	return s.rdb.ZRangeByScore(ctx, s.keyPaused(), &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(cutoff.Unix(), 10),
	}).Result()
}

// SavePlayer writes the player record and registers it in the roster used
// by presence broadcasts.
func (s *Store) SavePlayer(ctx context.Context, p *Player) error {
	p.UpdatedAt = time.Now()
	raw, err := json.Marshal(p)
	if err != nil {
		return err
	}
	if err := s.rdb.Set(ctx, s.keyPlayer(p.ID), raw, s.ttl).Err(); err != nil {
		return err
	}
	if err := s.rdb.SAdd(ctx, s.keyPlayers(), p.ID).Err(); err != nil {
		return err
	}
	return s.rdb.Expire(ctx, s.keyPlayers(), s.ttl).Err()
}

// GetPlayer returns nil,nil for unknown users; callers treat that as
// "offline, not playing".
func (s *Store) GetPlayer(ctx context.Context, userID string) (*Player, error) {
	raw, err := s.rdb.Get(ctx, s.keyPlayer(userID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var p Player
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// MutatePlayer loads, mutates and saves a player record, creating a
// skeleton record for first-seen users.
func (s *Store) MutatePlayer(ctx context.Context, userID string, fn func(*Player)) (*Player, error) {
	p, err := s.GetPlayer(ctx, userID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		p = &Player{ID: userID}
	}
	fn(p)
	if err := s.SavePlayer(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// ListPlayers returns the full roster, sorted by nickname for stable
// presence payloads.
func (s *Store) ListPlayers(ctx context.Context) ([]*Player, error) {
	ids, err := s.rdb.SMembers(ctx, s.keyPlayers()).Result()
	if err != nil {
		return nil, err
	}
	out := make([]*Player, 0, len(ids))
	for _, id := range ids {
		p, gerr := s.GetPlayer(ctx, id)
		if gerr == nil && p != nil {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Nickname < out[j].Nickname })
	return out, nil
}

// BindToken maps a connection credential to a user id for the identity
// resolver. Token issuance itself belongs to the external auth system.
func (s *Store) BindToken(ctx context.Context, token, userID string) error {
	if strings.TrimSpace(token) == "" || strings.TrimSpace(userID) == "" {
		return ErrInvalidArgs
	}
	return s.rdb.Set(ctx, s.keyToken(token), userID, s.ttl).Err()
}

// UserIDByToken returns "" for unknown tokens.
func (s *Store) UserIDByToken(ctx context.Context, token string) (string, error) {
	v, err := s.rdb.Get(ctx, s.keyToken(token)).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return v, nil
}

// ParseRedisURL converts a redis:// URL into client options.
func ParseRedisURL(raw string) (*redis.Options, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "redis" && u.Scheme != "rediss" {
		return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	db := 0
	if p := strings.TrimPrefix(u.Path, "/"); p != "" {
		if n, err := strconv.Atoi(p); err == nil {
			db = n
		}
	}
	pass, _ := u.User.Password()
	return &redis.Options{Addr: u.Host, Password: pass, DB: db}, nil
}
