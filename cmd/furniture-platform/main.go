package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"

	"github.com/CodysseyLionMeeting/furniture-platform/internal/server"
	"github.com/CodysseyLionMeeting/furniture-platform/pkg/config"
	"github.com/CodysseyLionMeeting/furniture-platform/pkg/logging"
)

func main() {
	// Bootstrap logger; rebuilt below once config is available.
	logger := logging.New(logging.LevelInfo, "text")

	cfg, err := config.Load(logger, "config")
	if err != nil {
		logger.Error("Failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger = logging.New(cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	app := server.NewApp(logger, ctx, cfg)
	if err := app.Run(); err != nil {
		logger.Error("Application run failed", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("Application shut down successfully.")
}
