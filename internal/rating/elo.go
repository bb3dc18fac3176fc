package rating

import "math"

const (
	DefaultElo = 1000.0
	KFactor    = 30.0
)

// Params tunes the rating formula. The zero value is not usable; start
// from DefaultParams and override per deployment.
type Params struct {
	KFactor       float64
	DefaultElo    float64
	WeightMin     float64
	WeightMax     float64
	WeightDivisor float64
}

func DefaultParams() Params {
	return Params{
		KFactor:       KFactor,
		DefaultElo:    DefaultElo,
		WeightMin:     0.5,
		WeightMax:     1.5,
		WeightDivisor: 1000.0,
	}
}

// TeamAverage returns the mean rating of a roster.
// An empty roster averages to the default rating.
func (p Params) TeamAverage(ratings []float64) float64 {
	if len(ratings) == 0 {
		return p.DefaultElo
	}
	total := 0.0
	for _, r := range ratings {
		total += r
	}
	return total / float64(len(ratings))
}

// ExpectedScore returns the logistic win probability of the side
// averaging avgWinner against the side averaging avgLoser.
func ExpectedScore(avgWinner, avgLoser float64) float64 {
	return 1.0 / (1.0 + math.Pow(10, (avgLoser-avgWinner)/400.0))
}

// BaseDelta is the team-level rating swing for a resolved round.
// Always positive; shrinks as the winning side becomes the favorite.
func (p Params) BaseDelta(avgWinner, avgLoser float64) float64 {
	return p.KFactor * (1 - ExpectedScore(avgWinner, avgLoser))
}

// WinnerWeight scales a winner's share of the base delta by how far
// their own rating sits below the opposing average. Underdogs on the
// winning side earn more, overrated winners earn less.
func (p Params) WinnerWeight(playerElo, loserAvg float64) float64 {
	return p.clampWeight(1.0 + (loserAvg-playerElo)/p.WeightDivisor)
}

// LoserWeight is the symmetric dampening for the losing side: a loser
// already rated below the opposing average loses less.
func (p Params) LoserWeight(playerElo, winnerAvg float64) float64 {
	return p.clampWeight(1.0 + (playerElo-winnerAvg)/p.WeightDivisor)
}

func (p Params) clampWeight(w float64) float64 {
	return math.Max(p.WeightMin, math.Min(p.WeightMax, w))
}
