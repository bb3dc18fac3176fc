package query

import (
	"github.com/wombastisch/roundrank/internal/rating"
	"github.com/wombastisch/roundrank/internal/store"
)

// Entry is one leaderboard row.
type Entry struct {
	Rank    int     `json:"rank"`
	SteamID string  `json:"steam_id"`
	Name    string  `json:"name"`
	Elo     float64 `json:"elo"`
	Wins    int     `json:"wins"`
	Losses  int     `json:"losses"`
}

// Service provides read-only views over the rating table.
type Service struct {
	ratings *store.Ratings
	dir     rating.Directory
}

func NewService(ratings *store.Ratings, dir rating.Directory) *Service {
	return &Service{ratings: ratings, dir: dir}
}

// Rating looks up one identity. ok=false means the identity has never
// been observed; that is a normal answer, not an error.
func (s *Service) Rating(steamID string) (store.Player, bool) {
	return s.ratings.Get(steamID)
}

// Top returns the n highest-rated players. A record with no stored
// display name falls back to a live directory lookup, then to the raw
// identity.
func (s *Service) Top(n int) []Entry {
	players := s.ratings.TopN(n)
	entries := make([]Entry, 0, len(players))
	for i, p := range players {
		name := p.Name
		if name == "" && s.dir != nil {
			if resolved, ok := s.dir.ResolveName(p.SteamID); ok {
				name = resolved
			}
		}
		if name == "" {
			name = p.SteamID
		}
		entries = append(entries, Entry{
			Rank:    i + 1,
			SteamID: p.SteamID,
			Name:    name,
			Elo:     p.Elo,
			Wins:    p.Wins,
			Losses:  p.Losses,
		})
	}
	return entries
}
