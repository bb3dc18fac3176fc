package server

import (
	"sync/atomic"
	"time"
)

// Metrics collects basic application counters (no Prometheus dep needed
// for a single-server sidecar). Flush counters live in store.Ratings,
// next to the code that flushes; handleMetrics merges both.
type Metrics struct {
	eventsConsumed atomic.Int64
	roundsScored   atomic.Int64
	feedConns      atomic.Int64
	startTime      time.Time
}

func NewMetrics() *Metrics {
	return &Metrics{startTime: time.Now()}
}

func (m *Metrics) IncrEvent()    { m.eventsConsumed.Add(1) }
func (m *Metrics) IncrRound()    { m.roundsScored.Add(1) }
func (m *Metrics) IncrFeedConn() { m.feedConns.Add(1) }
func (m *Metrics) DecrFeedConn() { m.feedConns.Add(-1) }
