package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/utafrali/mediafeed/internal/app"
	"github.com/utafrali/mediafeed/internal/config"
	"github.com/utafrali/mediafeed/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	log := logger.New("mediafeed", cfg.LogLevel)
	log.Info("starting media feed service",
		slog.String("environment", cfg.Environment),
		slog.Int("http_port", cfg.HTTPPort),
		slog.String("collection", cfg.PexelsCollectionID),
		slog.Int("columns", cfg.ColumnCount),
	)

	application, err := app.NewApp(cfg, log)
	if err != nil {
		log.Error("failed to initialize application", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Cancelled on SIGINT or SIGTERM.
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := application.Run(ctx); err != nil {
		log.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}

	log.Info("media feed service stopped")
}
