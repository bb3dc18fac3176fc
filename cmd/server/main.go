package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wombastisch/roundrank/internal/config"
	"github.com/wombastisch/roundrank/internal/leaderboard"
	"github.com/wombastisch/roundrank/internal/match"
	"github.com/wombastisch/roundrank/internal/query"
	"github.com/wombastisch/roundrank/internal/rating"
	"github.com/wombastisch/roundrank/internal/server"
	"github.com/wombastisch/roundrank/internal/store"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("load config", "err", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ratings := store.NewRatings(cfg.DataFile, cfg.Rating.DefaultElo)
	if err := ratings.Load(); err != nil {
		// Scoring still works from defaults; the next flush rewrites the file.
		logger.Error("load ratings, continuing with in-memory table", "err", err)
	}
	logger.Info("ratings loaded", "file", cfg.DataFile, "players", ratings.Count())

	// Optional round journal
	var rounds *store.RoundStore
	if cfg.DatabaseURL != "" {
		db, err := store.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("connect db", "err", err)
			os.Exit(1)
		}
		defer db.Close()
		rounds = store.NewRoundStore(db)
		if err := rounds.Init(ctx); err != nil {
			logger.Error("init round journal", "err", err)
			os.Exit(1)
		}
	}

	// Optional leaderboard mirror
	var mirror *leaderboard.Mirror
	if cfg.RedisAddr != "" {
		rdb, err := leaderboard.NewRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			logger.Error("connect redis", "err", err)
			os.Exit(1)
		}
		defer rdb.Close()
		mirror = leaderboard.NewMirror(rdb)
	}

	presence := match.NewPresence()
	processor := rating.NewProcessor(ratings, cfg.Rating, presence, nil, logger)

	// Scored-round callback: archive the round, refresh the mirror.
	onScored := func(winner match.Side, res rating.Result) {
		sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer scancel()

		if rounds != nil {
			id, err := rounds.Record(sctx, winner.String(), res.WinnerAvg, res.LoserAvg, res.BaseDelta, len(res.Changes))
			if err != nil {
				logger.Error("record round", "err", err)
			} else {
				logger.Info("round archived", "round", id, "winner", winner.String())
			}
		}

		if mirror != nil {
			for _, ch := range res.Changes {
				if err := mirror.SyncPlayer(sctx, ch.SteamID, ch.After); err != nil {
					logger.Error("sync leaderboard", "err", err, "player", ch.SteamID)
					break
				}
			}
		}
	}

	lifecycle := match.NewLifecycle(processor, ratings, presence, onScored, logger)
	queries := query.NewService(ratings, presence)

	srv := server.New(cfg, lifecycle, queries, ratings, logger)
	// The server relays rating changes back over the feed (circular
	// dependency resolved via SetNotifier).
	processor.SetNotifier(srv)
	if mirror != nil {
		srv.SetLeaderboard(mirror)
	}
	if rounds != nil {
		srv.SetRoundJournal(rounds)
	}

	// Periodic autosave
	go func() {
		ticker := time.NewTicker(cfg.AutosaveInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := ratings.Flush(); err != nil {
					logger.Error("autosave", "err", err)
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	httpSrv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      srv.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting", "addr", cfg.HTTPAddr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("listen", "err", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	shutCtx, shutCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutCancel()
	if err := httpSrv.Shutdown(shutCtx); err != nil {
		logger.Error("shutdown", "err", err)
	}
	if err := ratings.Flush(); err != nil {
		logger.Error("final flush", "err", err)
	}
}
