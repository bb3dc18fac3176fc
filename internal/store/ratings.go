package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
)

// Player is one persistent rating record, keyed by SteamID.
type Player struct {
	SteamID string  `json:"steam_id"`
	Name    string  `json:"name"`
	Elo     float64 `json:"elo"`
	Wins    int     `json:"wins"`
	Losses  int     `json:"losses"`
}

// Ratings is the durable rating table. All reads and writes, including
// the periodic flush, serialize behind one mutex so event handlers and
// the autosave ticker never race.
type Ratings struct {
	mu         sync.Mutex
	path       string
	defaultElo float64
	players    map[string]*Player
	order      []string // insertion order, used as the stable tie-break

	flushes       atomic.Int64
	flushFailures atomic.Int64
}

func NewRatings(path string, defaultElo float64) *Ratings {
	return &Ratings{
		path:       path,
		defaultElo: defaultElo,
		players:    make(map[string]*Player),
	}
}

// Load reads the ratings file into the table. A missing or unreadable
// file is not an error: the table keeps its current contents and the
// service runs on defaults until the next flush.
func (s *Ratings) Load() error {
	b, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read ratings file: %w", err)
	}

	var list []Player
	if err := json.Unmarshal(b, &list); err != nil {
		return fmt.Errorf("parse ratings file: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.players = make(map[string]*Player, len(list))
	s.order = s.order[:0]
	for i := range list {
		p := list[i]
		s.players[p.SteamID] = &p
		s.order = append(s.order, p.SteamID)
	}
	return nil
}

// Flush writes the whole table, including untouched records, as a JSON
// list. Whole-file replace via temp file + rename, so a crash mid-write
// never truncates the previous snapshot. Idempotent. Every caller, the
// autosave ticker included, is counted here so FlushStats sees them all.
func (s *Ratings) Flush() error {
	if err := s.flush(); err != nil {
		s.flushFailures.Add(1)
		return err
	}
	s.flushes.Add(1)
	return nil
}

func (s *Ratings) flush() error {
	s.mu.Lock()
	list := make([]Player, 0, len(s.order))
	for _, id := range s.order {
		list = append(list, *s.players[id])
	}
	s.mu.Unlock()

	b, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return fmt.Errorf("encode ratings: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".ratings-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write ratings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace ratings file: %w", err)
	}
	return nil
}

// GetOrCreate returns a copy of the record for steamID, inserting a
// fresh default record first if none exists.
func (s *Ratings) GetOrCreate(steamID string) Player {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.getOrCreateLocked(steamID)
}

// Get returns a copy of the record, reporting whether it exists.
func (s *Ratings) Get(steamID string) (Player, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.players[steamID]
	if !ok {
		return Player{}, false
	}
	return *p, true
}

// SetName refreshes the display name of an existing record. Unknown
// identities are left alone; record creation stays lazy.
func (s *Ratings) SetName(steamID, name string) {
	if name == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.players[steamID]; ok {
		p.Name = name
	}
}

// Update mutates one record in place under the store lock, creating it
// with defaults first if absent.
func (s *Ratings) Update(steamID string, fn func(*Player)) Player {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.getOrCreateLocked(steamID)
	fn(p)
	return *p
}

// TopN returns up to n records ordered by rating descending. Ties keep
// insertion order.
func (s *Ratings) TopN(n int) []Player {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Player, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.players[id])
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Elo > out[j].Elo
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// FlushStats reports how many flushes succeeded and failed since start.
func (s *Ratings) FlushStats() (flushes, failures int64) {
	return s.flushes.Load(), s.flushFailures.Load()
}

// Count reports how many identities the table tracks.
func (s *Ratings) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.players)
}

func (s *Ratings) getOrCreateLocked(steamID string) *Player {
	if p, ok := s.players[steamID]; ok {
		return p
	}
	p := &Player{SteamID: steamID, Elo: s.defaultElo}
	s.players[steamID] = p
	s.order = append(s.order, steamID)
	return p
}
