package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

func main() {
	cfg, err := LoadConfig(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	logger := setupLogger(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg Config, logger *slog.Logger) error {
	g, ctx := errgroup.WithContext(ctx)

	opts := cfg.RoomOptions()
	opts.Logger = logger

	var rankings RankingSource
	if cfg.DBPath != "" {
		db, err := OpenDB(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("open db %s: %w", cfg.DBPath, err)
		}
		defer db.Close()
		rankings = db

		recorder := NewResultRecorder(db, logger)
		opts.OnMatchEnd = recorder.Track
		g.Go(func() error { return recorder.Run(ctx) })
	} else {
		logger.Warn("match persistence disabled")
	}

	dir := NewDirectory(opts, time.Now, logger)
	loop := NewLoop(dir, cfg.TickInterval, time.Now, logger)
	hub := NewHub(NewDispatcher(dir, time.Now, logger), HubLimits{
		MaxConnsPerIP:     cfg.MaxConnsPerIP,
		MaxTotalConns:     cfg.MaxTotalConns,
		MaxMessagesPerSec: cfg.MaxMessagesPerSec,
	}, logger)

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           SetupRoutes(hub, dir, rankings, cfg.ClientDir),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.Go(func() error { return loop.Run(ctx) })
	g.Go(func() error {
		logger.Info("server starting", "addr", cfg.Addr, "client_dir", cfg.ClientDir)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := server.Shutdown(shutdownCtx)
		hub.CloseAll()
		dir.CloseAll()
		return err
	})

	return g.Wait()
}
