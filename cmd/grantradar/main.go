package main

import (
	"context"
	"os"

	"GrantRadar/internal/app"
	"GrantRadar/internal/config"
	"GrantRadar/internal/logging"
)

func main() {
	ctx := context.Background()
	cfg := config.Load()
	logger := logging.New(cfg.Logging.Level)

	if cfg.Notifications.Slack.BotToken == "" {
		logger.Error("slack bot token is not configured")
		os.Exit(2)
	}

	application, err := app.New(cfg, logger)
	if err != nil {
		logger.Error("application setup failed", "error", err)
		os.Exit(1)
	}
	runErr := application.Run(ctx)
	if closeErr := application.Close(); closeErr != nil {
		logger.Warn("close database", "error", closeErr)
	}
	if runErr != nil {
		logger.Error("application stopped", "error", runErr)
		os.Exit(1)
	}
}
