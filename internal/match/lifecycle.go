package match

import (
	"log/slog"
	"sync"

	"github.com/wombastisch/roundrank/internal/rating"
	"github.com/wombastisch/roundrank/internal/store"
)

// Side identifies one of the two competing sides of a round.
type Side int

const (
	SideNone Side = iota
	SideT
	SideCT
)

func (s Side) String() string {
	switch s {
	case SideT:
		return "t"
	case SideCT:
		return "ct"
	default:
		return "none"
	}
}

// ParseSide maps the feed's side string onto a Side. Spectators and
// anything unrecognized come back as SideNone and never enter a roster.
func ParseSide(s string) Side {
	switch s {
	case "t", "terrorist":
		return SideT
	case "ct", "counter_terrorist":
		return SideCT
	default:
		return SideNone
	}
}

type State int

const (
	Idle State = iota
	InProgress
)

// ScoredFunc observes every scored round, after ratings are applied.
type ScoredFunc func(winner Side, res rating.Result)

// Lifecycle gates scoring so each round is settled exactly once.
// Rosters are round-scoped: cleared on round start, filled from
// player_active events, keyed by the live session slot so a reconnect
// within a round cannot duplicate an identity.
type Lifecycle struct {
	mu       sync.Mutex
	state    State
	tSide    map[int64]string
	ctSide   map[int64]string
	proc     *rating.Processor
	ratings  *store.Ratings
	presence *Presence
	scored   ScoredFunc
	logger   *slog.Logger
}

func NewLifecycle(proc *rating.Processor, ratings *store.Ratings, presence *Presence, scored ScoredFunc, logger *slog.Logger) *Lifecycle {
	return &Lifecycle{
		tSide:    make(map[int64]string),
		ctSide:   make(map[int64]string),
		proc:     proc,
		ratings:  ratings,
		presence: presence,
		scored:   scored,
		logger:   logger,
	}
}

// RoundStart discards any stale rosters and opens a new round.
func (l *Lifecycle) RoundStart() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state = InProgress
	clear(l.tSide)
	clear(l.ctSide)
}

// RoundEnd settles the open round and reports whether it was scored.
// A round_end with no open round (duplicate delivery, or an end with no
// preceding start) is a no-op: this is the guard against double-scoring.
// A round with no definite winner closes without touching any rating.
func (l *Lifecycle) RoundEnd(winner Side) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state != InProgress {
		l.logger.Debug("round_end ignored, no round in progress", "winner", winner.String())
		return false
	}
	l.state = Idle

	if winner != SideT && winner != SideCT {
		l.logger.Info("round ended without a winner, no rating change")
		return false
	}

	var res rating.Result
	if winner == SideT {
		res = l.proc.ScoreRound(rosterIDs(l.tSide), rosterIDs(l.ctSide))
	} else {
		res = l.proc.ScoreRound(rosterIDs(l.ctSide), rosterIDs(l.tSide))
	}

	l.flushLocked()
	if l.scored != nil {
		l.scored(winner, res)
	}
	return true
}

// PlayerActive reports a participant currently on the server. It always
// refreshes the stored display name; while a round is open it also
// assigns the participant to their side's roster.
func (l *Lifecycle) PlayerActive(steamID, name string, side Side, slot int64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.presence.Track(steamID, name)
	l.ratings.SetName(steamID, name)

	if l.state != InProgress {
		return
	}
	// One roster entry per identity: a reconnect may arrive under a new
	// slot, so evict by identity as well as by slot before inserting.
	removeIdentity(l.tSide, steamID)
	removeIdentity(l.ctSide, steamID)
	delete(l.tSide, slot)
	delete(l.ctSide, slot)
	switch side {
	case SideT:
		l.tSide[slot] = steamID
	case SideCT:
		l.ctSide[slot] = steamID
	}
}

func removeIdentity(roster map[int64]string, steamID string) {
	for slot, id := range roster {
		if id == steamID {
			delete(roster, slot)
		}
	}
}

// PlayerJoined creates the record if this identity was never seen and
// refreshes its display name.
func (l *Lifecycle) PlayerJoined(steamID, name string) {
	l.presence.Track(steamID, name)
	l.ratings.GetOrCreate(steamID)
	l.ratings.SetName(steamID, name)
}

// PlayerLeft persists the table so a departing player's latest rating
// survives a later crash. The roster entry stays: a player who leaves
// mid-round is still scored with their side.
func (l *Lifecycle) PlayerLeft(steamID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.presence.Forget(steamID)
	l.flushLocked()
}

// MatchEnd forces a flush. It never scores; an unfinished round stays
// open until its own round_end arrives.
func (l *Lifecycle) MatchEnd() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.flushLocked()
}

// State reports the current lifecycle state.
func (l *Lifecycle) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

func (l *Lifecycle) flushLocked() {
	if err := l.ratings.Flush(); err != nil {
		l.logger.Error("flush ratings", "err", err)
	}
}

func rosterIDs(roster map[int64]string) []string {
	ids := make([]string, 0, len(roster))
	seen := make(map[string]bool, len(roster))
	for _, id := range roster {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids
}
