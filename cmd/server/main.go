package main

import (
	"context"
	"os/signal"
	"syscall"

	"newsroom/admin/internal/app"
	"newsroom/admin/internal/config"
	"newsroom/admin/internal/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("load config")
	}
	logging.Init(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("create app")
	}

	if err := a.Run(ctx); err != nil {
		logging.Fatal().Err(err).Msg("run app")
	}
}
