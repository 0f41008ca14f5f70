package session

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
)

// Repository is the Postgres ResultStore. Ended sessions stay queryable
// here long after their Redis records expire; external profile and
// leaderboard services read from the same table.
type Repository struct {
	db *sql.DB
}

func NewRepository(databaseURL string) (*Repository, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

// SaveResult upserts a final outcome, keyed by session id so repeated
// final storeScore calls do not create duplicate rows.
func (r *Repository) SaveResult(ctx context.Context, sess *Session) error {
	if r == nil || r.db == nil || sess == nil {
		return nil
	}
	duration := sess.UpdatedAt.Sub(sess.CreatedAt).Milliseconds()
	if duration < 0 {
		duration = 0
	}
	hostID := sess.HostID()
	guestID := sess.OpponentOf(hostID)

	q := `INSERT INTO match_results (
	    session_id, owner_id, host_id, guest_id, winner_id,
	    score_r, score_l, session_type, mode,
	    started_at, ended_at, duration_ms
	  ) VALUES (
	    $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12
	  ) ON CONFLICT (session_id) DO UPDATE SET
	    winner_id=EXCLUDED.winner_id,
	    score_r=EXCLUDED.score_r,
	    score_l=EXCLUDED.score_l,
	    mode=EXCLUDED.mode,
	    ended_at=EXCLUDED.ended_at,
	    duration_ms=EXCLUDED.duration_ms`

	_, err := r.db.ExecContext(ctx, q,
		sess.ID, sess.OwnerID, hostID, guestID, nullable(sess.WinnerID),
		sess.ScoreR, sess.ScoreL, string(sess.Type), string(sess.Mode),
		sess.CreatedAt, sess.UpdatedAt, duration,
	)
	return err
}

// WinCount returns the number of recorded wins for a user.
func (r *Repository) WinCount(ctx context.Context, userID string) (int, error) {
	if r == nil || r.db == nil {
		return 0, nil
	}
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM match_results WHERE winner_id = $1`, userID,
	).Scan(&n)
	return n, err
}

func nullable(s string) any {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return s
}
