package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/rrrane/connect-four/internal/analytics"
	"github.com/rrrane/connect-four/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	if err := config.SetupLogging(cfg.LogLevel, cfg.LogFormat); err != nil {
		log.Fatal().Err(err).Msg("invalid logging configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var recorder analytics.Recorder
	store, err := analytics.OpenSQLStore(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Warn().Err(err).Msg("database not available, running without persistence")
	} else {
		recorder = store
		defer store.Close()
		log.Info().Msg("connected to database for analytics storage")
	}

	reader := analytics.NewReader(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaGroup+"-analytics")
	svc := analytics.NewService(reader, recorder)

	log.Info().Strs("brokers", cfg.KafkaBrokers).Str("topic", cfg.KafkaTopic).Msg("analytics service starting")
	svc.Run(ctx)

	if err := svc.Close(); err != nil {
		log.Warn().Err(err).Msg("close reader")
	}
	m := svc.Metrics()
	log.Info().
		Int64("games", m.TotalGames).
		Int64("finished", m.FinishedGames).
		Int64("moves", m.TotalMoves).
		Int64("solves", m.Solves).
		Msg("analytics service stopped")
}
