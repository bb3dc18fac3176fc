package store

import (
	"os"
	"path/filepath"
	"testing"
)

func newTestRatings(t *testing.T) *Ratings {
	t.Helper()
	return NewRatings(filepath.Join(t.TempDir(), "ratings.json"), 1000)
}

func TestGetOrCreateDefaults(t *testing.T) {
	s := newTestRatings(t)

	p := s.GetOrCreate("76561198000000001")
	if p.Elo != 1000 || p.Wins != 0 || p.Losses != 0 || p.Name != "" {
		t.Fatalf("unexpected default record: %+v", p)
	}
	if s.Count() != 1 {
		t.Fatalf("count = %d, want 1", s.Count())
	}

	// Second call returns the same record, not a fresh one.
	s.Update("76561198000000001", func(p *Player) { p.Wins = 3 })
	if p := s.GetOrCreate("76561198000000001"); p.Wins != 3 {
		t.Fatalf("wins = %d, want 3", p.Wins)
	}
}

func TestSetNameOnlyTouchesExisting(t *testing.T) {
	s := newTestRatings(t)

	s.SetName("ghost", "spooky")
	if _, ok := s.Get("ghost"); ok {
		t.Fatal("SetName must not create records")
	}

	s.GetOrCreate("p1")
	s.SetName("p1", "alpha")
	if p, _ := s.Get("p1"); p.Name != "alpha" {
		t.Fatalf("name = %q, want alpha", p.Name)
	}

	// Empty names never overwrite a known one.
	s.SetName("p1", "")
	if p, _ := s.Get("p1"); p.Name != "alpha" {
		t.Fatalf("name = %q after empty update, want alpha", p.Name)
	}
}

func TestFlushLoadRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		players []Player
	}{
		{"empty table", nil},
		{"single record", []Player{
			{SteamID: "a", Name: "alpha", Elo: 1015.5, Wins: 1, Losses: 0},
		}},
		{"many records with empty names", []Player{
			{SteamID: "a", Name: "alpha", Elo: 1200.25, Wins: 10, Losses: 5},
			{SteamID: "b", Name: "", Elo: 850, Wins: 0, Losses: 12},
			{SteamID: "c", Name: "charlie", Elo: 1000, Wins: 0, Losses: 0},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "ratings.json")
			s := NewRatings(path, 1000)
			for _, p := range tt.players {
				p := p
				s.Update(p.SteamID, func(rec *Player) { *rec = p })
			}

			if err := s.Flush(); err != nil {
				t.Fatalf("flush: %v", err)
			}

			loaded := NewRatings(path, 1000)
			if err := loaded.Load(); err != nil {
				t.Fatalf("load: %v", err)
			}
			if loaded.Count() != len(tt.players) {
				t.Fatalf("count = %d, want %d", loaded.Count(), len(tt.players))
			}
			for _, want := range tt.players {
				got, ok := loaded.Get(want.SteamID)
				if !ok {
					t.Fatalf("record %s missing after round trip", want.SteamID)
				}
				if got != want {
					t.Fatalf("record %s = %+v, want %+v", want.SteamID, got, want)
				}
			}
		})
	}
}

func TestLoadMissingFileIsNotAnError(t *testing.T) {
	s := newTestRatings(t)
	if err := s.Load(); err != nil {
		t.Fatalf("missing file should not error, got %v", err)
	}
	if s.Count() != 0 {
		t.Fatalf("count = %d, want 0", s.Count())
	}
}

func TestLoadCorruptFileKeepsTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ratings.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	s := NewRatings(path, 1000)
	s.GetOrCreate("survivor")

	if err := s.Load(); err == nil {
		t.Fatal("corrupt file should surface an error")
	}
	// Table unchanged; scoring keeps working on in-memory state.
	if _, ok := s.Get("survivor"); !ok {
		t.Fatal("existing records must survive a failed load")
	}
}

func TestFlushReplacesWholeFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ratings.json")
	s := NewRatings(path, 1000)
	s.GetOrCreate("a")
	s.GetOrCreate("b")
	if err := s.Flush(); err != nil {
		t.Fatalf("first flush: %v", err)
	}

	s.Update("a", func(p *Player) { p.Elo = 1100 })
	if err := s.Flush(); err != nil {
		t.Fatalf("second flush: %v", err)
	}

	loaded := NewRatings(path, 1000)
	if err := loaded.Load(); err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Count() != 2 {
		t.Fatalf("count = %d, want 2 (zero-record entries persist)", loaded.Count())
	}
	if p, _ := loaded.Get("a"); p.Elo != 1100 {
		t.Fatalf("elo = %v, want 1100", p.Elo)
	}
}

func TestTopN(t *testing.T) {
	s := newTestRatings(t)
	for i, elo := range []float64{1100, 900, 1500, 1000, 1300, 950, 1200, 1050, 1400, 800} {
		id := string(rune('a' + i))
		s.Update(id, func(p *Player) { p.Elo = elo })
	}

	top := s.TopN(5)
	if len(top) != 5 {
		t.Fatalf("len = %d, want 5", len(top))
	}
	want := []float64{1500, 1400, 1300, 1200, 1100}
	for i, p := range top {
		if p.Elo != want[i] {
			t.Fatalf("top[%d].Elo = %v, want %v", i, p.Elo, want[i])
		}
	}
}

func TestTopNTiesKeepInsertionOrder(t *testing.T) {
	s := newTestRatings(t)
	for _, id := range []string{"first", "second", "third"} {
		s.GetOrCreate(id)
	}

	top := s.TopN(3)
	if top[0].SteamID != "first" || top[1].SteamID != "second" || top[2].SteamID != "third" {
		t.Fatalf("tie order not stable: %v %v %v", top[0].SteamID, top[1].SteamID, top[2].SteamID)
	}
}

func TestTopNShortTable(t *testing.T) {
	s := newTestRatings(t)
	s.GetOrCreate("only")
	if top := s.TopN(5); len(top) != 1 {
		t.Fatalf("len = %d, want 1", len(top))
	}
}

func TestFlushStatsCountEveryCaller(t *testing.T) {
	s := newTestRatings(t)
	s.GetOrCreate("p1")

	if err := s.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if err := s.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}

	flushes, failures := s.FlushStats()
	if flushes != 2 || failures != 0 {
		t.Fatalf("stats = %d/%d, want 2/0", flushes, failures)
	}
}

func TestFlushStatsCountFailures(t *testing.T) {
	// A data path inside a directory that does not exist makes the temp
	// file creation fail.
	s := NewRatings(filepath.Join(t.TempDir(), "missing", "ratings.json"), 1000)
	s.GetOrCreate("p1")

	if err := s.Flush(); err == nil {
		t.Fatal("expected flush error")
	}

	flushes, failures := s.FlushStats()
	if flushes != 0 || failures != 1 {
		t.Fatalf("stats = %d/%d, want 0/1", flushes, failures)
	}
}
