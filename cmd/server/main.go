package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/Tyrowin/paintrelay/internal/config"
	"github.com/Tyrowin/paintrelay/internal/logging"
	"github.com/Tyrowin/paintrelay/internal/server"
)

func main() {
	configPath := flag.String("config", "", "path to an optional YAML config file")
	envFile := flag.String("env-file", ".env", "path to an optional .env file")
	flag.Parse()

	if err := config.LoadDotEnv(*envFile); err != nil {
		log.Fatal().Err(err).Str("file", *envFile).Msg("failed to load env file")
	}

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	logger := logging.New("paintrelay", cfg.Log)
	logger.Info().
		Str("addr", cfg.Addr()).
		Strs("allowed_origins", cfg.AllowedOrigins).
		Strs("relay_events", cfg.RelayEvents).
		Str("slow_peer_policy", cfg.SlowPeerPolicy).
		Msg("starting paint relay")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := server.New(cfg, server.WithLogger(logger)).Run(ctx); err != nil {
		logger.Error().Err(err).Msg("server stopped with error")
		stop()
		os.Exit(1)
	}

	logger.Info().Msg("paint relay stopped")
}
