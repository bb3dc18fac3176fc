package rating

import (
	"log/slog"

	"github.com/wombastisch/roundrank/internal/store"
)

// Directory resolves live participant info from the host game server.
// The processor only uses it to refresh display names at scoring time.
type Directory interface {
	// ResolveName returns the current display name for an identity,
	// or ok=false if the participant is not reachable right now.
	ResolveName(steamID string) (name string, ok bool)
	IsActive(steamID string) bool
}

// Notifier receives per-player rating changes as they are applied,
// typically to relay them to in-game chat.
type Notifier interface {
	RatingChanged(steamID string, delta, before, after float64)
}

// Change records one player's adjustment within a scored round.
type Change struct {
	SteamID string
	Before  float64
	After   float64
	Won     bool
}

// Result summarizes a scored round.
type Result struct {
	WinnerAvg float64
	LoserAvg  float64
	Expected  float64
	BaseDelta float64
	Changes   []Change
}

// Processor applies round outcomes to the rating table.
type Processor struct {
	ratings *store.Ratings
	params  Params
	dir     Directory
	notify  Notifier
	logger  *slog.Logger
}

func NewProcessor(ratings *store.Ratings, params Params, dir Directory, notify Notifier, logger *slog.Logger) *Processor {
	return &Processor{
		ratings: ratings,
		params:  params,
		dir:     dir,
		notify:  notify,
		logger:  logger,
	}
}

// SetNotifier sets the rating-change observer (used to break circular
// init: the server relays changes but also owns the event feed).
func (p *Processor) SetNotifier(n Notifier) {
	p.notify = n
}

// ScoreRound adjusts every player on both sides of a resolved round.
// Unseen identities are created at the default rating before being
// adjusted. The per-player weighting makes the process intentionally
// non-zero-sum across the two rosters.
func (p *Processor) ScoreRound(winners, losers []string) Result {
	winnerAvg := p.params.TeamAverage(p.rosterElos(winners))
	loserAvg := p.params.TeamAverage(p.rosterElos(losers))
	expected := ExpectedScore(winnerAvg, loserAvg)
	baseDelta := p.params.BaseDelta(winnerAvg, loserAvg)

	res := Result{
		WinnerAvg: winnerAvg,
		LoserAvg:  loserAvg,
		Expected:  expected,
		BaseDelta: baseDelta,
		Changes:   make([]Change, 0, len(winners)+len(losers)),
	}

	for _, id := range winners {
		res.Changes = append(res.Changes, p.adjust(id, baseDelta, loserAvg, true))
	}
	for _, id := range losers {
		res.Changes = append(res.Changes, p.adjust(id, baseDelta, winnerAvg, false))
	}

	p.logger.Info("round scored",
		"winner_avg", winnerAvg,
		"loser_avg", loserAvg,
		"expected", expected,
		"base_delta", baseDelta,
		"players", len(res.Changes),
	)
	return res
}

func (p *Processor) adjust(steamID string, baseDelta, opposingAvg float64, won bool) Change {
	var before, after float64
	p.ratings.Update(steamID, func(pl *store.Player) {
		if pl.Name == "" && p.dir != nil {
			if name, ok := p.dir.ResolveName(steamID); ok {
				pl.Name = name
			}
		}
		before = pl.Elo
		if won {
			pl.Elo += baseDelta * p.params.WinnerWeight(pl.Elo, opposingAvg)
			pl.Wins++
		} else {
			pl.Elo -= baseDelta * p.params.LoserWeight(pl.Elo, opposingAvg)
			pl.Losses++
		}
		after = pl.Elo
	})

	// Offline players are still adjusted; only the notification needs
	// them reachable.
	if p.notify != nil && (p.dir == nil || p.dir.IsActive(steamID)) {
		p.notify.RatingChanged(steamID, after-before, before, after)
	}
	return Change{SteamID: steamID, Before: before, After: after, Won: won}
}

func (p *Processor) rosterElos(roster []string) []float64 {
	elos := make([]float64, 0, len(roster))
	for _, id := range roster {
		if pl, ok := p.ratings.Get(id); ok {
			elos = append(elos, pl.Elo)
		} else {
			elos = append(elos, p.params.DefaultElo)
		}
	}
	return elos
}
