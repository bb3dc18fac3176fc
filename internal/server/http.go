package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/wombastisch/roundrank/internal/config"
	"github.com/wombastisch/roundrank/internal/leaderboard"
	"github.com/wombastisch/roundrank/internal/match"
	"github.com/wombastisch/roundrank/internal/query"
	"github.com/wombastisch/roundrank/internal/store"
)

const (
	defaultTopCount = 5
	maxTopCount     = 100
)

type Server struct {
	cfg       *config.Config
	lifecycle *match.Lifecycle
	queries   *query.Service
	ratings   *store.Ratings
	logger    *slog.Logger
	mux       *http.ServeMux
	metrics   *Metrics
	limiter   *rateLimiter

	// Optional infrastructure, nil when not configured.
	mirror *leaderboard.Mirror
	rounds *store.RoundStore

	feedsMu sync.Mutex
	feeds   map[*feedConn]struct{}
}

func New(cfg *config.Config, lifecycle *match.Lifecycle, queries *query.Service, ratings *store.Ratings, logger *slog.Logger) *Server {
	s := &Server{
		cfg:       cfg,
		lifecycle: lifecycle,
		queries:   queries,
		ratings:   ratings,
		logger:    logger,
		mux:       http.NewServeMux(),
		metrics:   NewMetrics(),
		limiter:   newRateLimiter(30, 60),
		feeds:     make(map[*feedConn]struct{}),
	}
	s.routes()
	return s
}

// SetLeaderboard enables the Redis-backed rank endpoints.
func (s *Server) SetLeaderboard(m *leaderboard.Mirror) {
	s.mirror = m
}

// SetRoundJournal enables the round history endpoint.
func (s *Server) SetRoundJournal(r *store.RoundStore) {
	s.rounds = r
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /metrics", s.handleMetrics)
	s.mux.HandleFunc("GET /ingest", s.handleIngest)

	s.mux.HandleFunc("GET /api/rating/{steamID}", s.handleGetRating)
	s.mux.HandleFunc("GET /api/top", s.handleTop)
	s.mux.HandleFunc("GET /api/rank/{steamID}", s.handleRank)
	s.mux.HandleFunc("GET /api/leaderboard", s.handleLeaderboard)
	s.mux.HandleFunc("GET /api/rounds", s.handleRounds)
}

func (s *Server) handleGetRating(w http.ResponseWriter, r *http.Request) {
	steamID := r.PathValue("steamID")
	p, ok := s.queries.Rating(steamID)
	if !ok {
		http.Error(w, "no rating data", http.StatusNotFound)
		return
	}
	writeJSON(w, p)
}

func (s *Server) handleTop(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.queries.Top(countParam(r)))
}

// handleRank serves a player's mirrored rank. 503 when no mirror is
// configured: the canonical answer still lives in /api/rating.
func (s *Server) handleRank(w http.ResponseWriter, r *http.Request) {
	if s.mirror == nil {
		http.Error(w, "leaderboard mirror not configured", http.StatusServiceUnavailable)
		return
	}
	entry, err := s.mirror.Rank(r.Context(), r.PathValue("steamID"))
	if err != nil {
		s.logger.Error("leaderboard rank", "err", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	if entry == nil {
		http.Error(w, "not ranked", http.StatusNotFound)
		return
	}
	writeJSON(w, entry)
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	if s.mirror == nil {
		http.Error(w, "leaderboard mirror not configured", http.StatusServiceUnavailable)
		return
	}
	entries, err := s.mirror.Top(r.Context(), int64(countParam(r)))
	if err != nil {
		s.logger.Error("leaderboard top", "err", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, entries)
}

func (s *Server) handleRounds(w http.ResponseWriter, r *http.Request) {
	if s.rounds == nil {
		http.Error(w, "round journal not configured", http.StatusServiceUnavailable)
		return
	}
	rounds, err := s.rounds.Recent(r.Context(), countParam(r))
	if err != nil {
		s.logger.Error("round history", "err", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, rounds)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"status":  "ok",
		"players": s.ratings.Count(),
	})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	flushes, flushFailures := s.ratings.FlushStats()

	writeJSON(w, map[string]any{
		"uptime_seconds":  int(time.Since(s.metrics.startTime).Seconds()),
		"events_consumed": s.metrics.eventsConsumed.Load(),
		"rounds_scored":   s.metrics.roundsScored.Load(),
		"flushes":         flushes,
		"flush_errors":    flushFailures,
		"feed_conns":      s.metrics.feedConns.Load(),
		"players":         s.ratings.Count(),
		"goroutines":      runtime.NumGoroutine(),
		"heap_alloc_mb":   mem.HeapAlloc / 1024 / 1024,
	})
}

func (s *Server) Handler() http.Handler {
	return withRecovery(s.logger, withRateLimit(s.limiter, s.logger, withLogging(s.logger, s.mux)))
}

func countParam(r *http.Request) int {
	count := defaultTopCount
	if c := r.URL.Query().Get("count"); c != "" {
		if n, err := strconv.Atoi(c); err == nil && n > 0 && n <= maxTopCount {
			count = n
		}
	}
	return count
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
}
