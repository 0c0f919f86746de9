package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"newsdesk/internal/app"
	"newsdesk/internal/config"
	"newsdesk/internal/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()
	logger := logging.New(cfg.Logging.Level)

	mode := "digest"
	if len(os.Args) > 1 {
		mode = os.Args[1]
	}

	application := app.New(cfg, logger)

	if err := application.Run(ctx, mode); err != nil && ctx.Err() == nil {
		logger.Error("application stopped", "error", err)
		os.Exit(1)
	}
}
