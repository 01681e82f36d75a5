// The sweeper deletes expired cache records on a fixed interval, keeping the
// sweep off the request path. Lazy eviction on reads still covers entries
// between sweeps.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"devdash/internal/cache"
	"devdash/internal/config"
	"devdash/internal/db"
	"devdash/internal/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting_sweeper", "service", "devdash-sweeper", "interval", cfg.SweepInterval.String())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// the sweep is one statement at a time; a couple of connections suffice
	dbConn, err := db.New(ctx, cfg.DBDSN, 2)
	if err != nil {
		logger.Error("db_connect_failed", "error", err)
		os.Exit(1)
	}
	defer dbConn.Close()

	store := cache.NewStore(logger, dbConn, cfg.CacheTTL)

	sweep := func() {
		sweepCtx, sweepCancel := context.WithTimeout(ctx, 1*time.Minute)
		defer sweepCancel()

		removed, err := store.SweepExpired(sweepCtx)
		if err != nil {
			logger.Error("sweep_failed", "error", err)
			return
		}
		logger.Info("sweep_completed", "removed", removed)
	}

	// run once at startup, then on the ticker
	sweep()

	ticker := time.NewTicker(cfg.SweepInterval)
	defer ticker.Stop()

	stop := make(chan os.Signal, 2)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-ticker.C:
			sweep()
		case <-stop:
			logger.Info("sweeper_stopped")
			return
		}
	}
}
