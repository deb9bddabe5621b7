package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/taskgate/taskgate/internal/api"
	"github.com/taskgate/taskgate/internal/config"
	"github.com/taskgate/taskgate/internal/engine"
	"github.com/taskgate/taskgate/internal/gateway"
	"github.com/taskgate/taskgate/internal/runner"
	"github.com/taskgate/taskgate/internal/store"
)

func main() {
	// Optional .env for local development; the environment wins.
	_ = godotenv.Load()

	cfg := config.Load()
	logger := config.NewLogger(os.Stdout, cfg.LogLevel, cfg.LogFormat)

	logger.Info("taskgate: starting",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
	)

	db, err := store.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	reg := runner.NewRegistry()
	runner.RegisterBuiltins(reg)

	opts := []engine.Option{
		engine.WithLogger(logger),
		engine.WithStore(db),
	}
	if cfg.WorkerLimit > 0 {
		opts = append(opts, engine.WithWorkerLimit(cfg.WorkerLimit))
	}
	eng := engine.New(opts...)

	stopPruner := startPruner(eng, logger, cfg.PruneEvery, cfg.PruneRetain)
	defer stopPruner()

	srv := api.NewServer(cfg.ListenAddr, gateway.NewLocal(eng, reg), eng, db, reg, cfg.AwaitDeadline, logger)

	err = srv.Run()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	eng.Shutdown(shutdownCtx)

	if err != nil {
		log.Fatalf("server error: %v", err)
	}
}

// startPruner periodically drops finished tasks from engine memory; their
// records stay queryable through the store.
func startPruner(eng *engine.Engine, logger *slog.Logger, every, retain time.Duration) func() {
	ticker := time.NewTicker(every)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-ticker.C:
				if n := eng.Prune(retain); n > 0 {
					logger.Debug("pruned finished tasks", "count", n)
				}
			case <-done:
				return
			}
		}
	}()

	return func() {
		ticker.Stop()
		close(done)
	}
}
