package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Round is one archived round outcome.
type Round struct {
	ID        string    `json:"id"`
	Winner    string    `json:"winner"`
	WinnerAvg float64   `json:"winner_avg"`
	LoserAvg  float64   `json:"loser_avg"`
	BaseDelta float64   `json:"base_delta"`
	Players   int       `json:"players"`
	ScoredAt  time.Time `json:"scored_at"`
}

// RoundStore archives scored rounds in Postgres. The archive is an
// audit trail only; the rating table never reads from it.
type RoundStore struct {
	db *pgxpool.Pool
}

func NewPool(ctx context.Context, url string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

func NewRoundStore(db *pgxpool.Pool) *RoundStore {
	return &RoundStore{db: db}
}

// Init creates the rounds table if it does not exist yet.
func (s *RoundStore) Init(ctx context.Context) error {
	_, err := s.db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS rounds (
			id         UUID PRIMARY KEY,
			winner     TEXT NOT NULL,
			winner_avg DOUBLE PRECISION NOT NULL,
			loser_avg  DOUBLE PRECISION NOT NULL,
			base_delta DOUBLE PRECISION NOT NULL,
			players    INT NOT NULL,
			scored_at  TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`)
	return err
}

func (s *RoundStore) Record(ctx context.Context, winner string, winnerAvg, loserAvg, baseDelta float64, players int) (string, error) {
	id := uuid.New().String()
	_, err := s.db.Exec(ctx, `
		INSERT INTO rounds (id, winner, winner_avg, loser_avg, base_delta, players)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, id, winner, winnerAvg, loserAvg, baseDelta, players)
	return id, err
}

func (s *RoundStore) Recent(ctx context.Context, limit int) ([]Round, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, winner, winner_avg, loser_avg, base_delta, players, scored_at
		FROM rounds ORDER BY scored_at DESC LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Round
	for rows.Next() {
		var r Round
		if err := rows.Scan(&r.ID, &r.Winner, &r.WinnerAvg, &r.LoserAvg, &r.BaseDelta, &r.Players, &r.ScoredAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
