package leaderboard

import (
	"context"

	"github.com/redis/go-redis/v9"
)

const keyElo = "roundrank:leaderboard:elo"

// Entry is one row of the mirrored leaderboard.
type Entry struct {
	SteamID string  `json:"steam_id"`
	Elo     float64 `json:"elo"`
	Rank    int64   `json:"rank"`
}

// Mirror keeps a Redis sorted set in step with the rating table so
// external consumers (site, bots) can query ranks without touching the
// ratings file. Best effort: the file store stays canonical.
type Mirror struct {
	rdb *redis.Client
}

func NewRedis(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return rdb, nil
}

func NewMirror(rdb *redis.Client) *Mirror {
	return &Mirror{rdb: rdb}
}

// SyncPlayer writes a player's current rating into the sorted set.
func (m *Mirror) SyncPlayer(ctx context.Context, steamID string, elo float64) error {
	return m.rdb.ZAdd(ctx, keyElo, redis.Z{
		Score:  elo,
		Member: steamID,
	}).Err()
}

// Top returns the n highest-rated mirrored players.
func (m *Mirror) Top(ctx context.Context, n int64) ([]Entry, error) {
	results, err := m.rdb.ZRevRangeWithScores(ctx, keyElo, 0, n-1).Result()
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(results))
	for i, z := range results {
		member, _ := z.Member.(string)
		entries = append(entries, Entry{
			SteamID: member,
			Elo:     z.Score,
			Rank:    int64(i + 1),
		})
	}
	return entries, nil
}

// Rank returns a player's mirrored rank and rating, or nil if the
// player has never been mirrored.
func (m *Mirror) Rank(ctx context.Context, steamID string) (*Entry, error) {
	rank, err := m.rdb.ZRevRank(ctx, keyElo, steamID).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	score, err := m.rdb.ZScore(ctx, keyElo, steamID).Result()
	if err != nil {
		return nil, err
	}
	return &Entry{SteamID: steamID, Elo: score, Rank: rank + 1}, nil
}
