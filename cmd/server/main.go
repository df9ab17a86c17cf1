package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"kimbiofarm-backend/internal/cli"
	"kimbiofarm-backend/internal/config"
	"kimbiofarm-backend/internal/logging"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

func main() {
	// Real environment variables win over .env.
	envErr := godotenv.Load()

	cfg := config.Load()
	logging.Init(cfg.LogLevel, cfg.LogFormat)
	if envErr != nil {
		log.Debug().Msg("no .env file, using process environment")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.Execute(ctx, cfg); err != nil {
		log.Error().Err(err).Msg("fatal")
		stop()
		os.Exit(1)
	}
}
