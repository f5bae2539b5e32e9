package main

import (
	"context"
	"fmt"
	"os"

	"github.com/kurihiro0119/github-star-monitor/internal/app"
	"github.com/kurihiro0119/github-star-monitor/internal/config"
	"github.com/kurihiro0119/github-star-monitor/internal/shutdown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	cfg.APIEnabled = true

	logger := app.NewLogger(os.Stderr, cfg.LogLevel, cfg.LogFormat)

	ctrl := shutdown.New(logger)
	stop := ctrl.Listen()
	defer stop()

	ctx, cancel := ctrl.Context(context.Background())
	defer cancel()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	logger.Info("Starting star monitor service",
		"repo", cfg.Repo,
		"addr", cfg.APIHost+":"+cfg.APIPort,
		"storage", cfg.StorageType)

	if err := a.Run(ctx); err != nil {
		return err
	}
	logger.Info("Shutdown complete", "reason", ctrl.Reason())
	return nil
}
