// Package main wires configuration, dependencies, and HTTP server startup.
//
// @Title Leitstelle API
// @Version 0.1.0
// @Description Backend of an emergency-dispatch simulation game: stations, vehicles, missions and realtime updates.
// @Server http://localhost:8080 Local development
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"leitstelle/api/internal/config"
	"leitstelle/api/internal/database"
	"leitstelle/api/internal/game"
	"leitstelle/api/internal/geocode"
	"leitstelle/api/internal/notify"
	"leitstelle/api/internal/realtime"
	"leitstelle/api/internal/server"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}

	logger := newLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := database.Open(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("open store")
	}
	defer st.Close()

	broker, err := newBroker(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("init realtime broker")
	}
	defer broker.Close()

	push := notify.NewPool(cfg.Push, st, logger)
	push.Start(ctx)

	deps := game.Deps{
		Store:   st,
		Broker:  broker,
		Alerter: push,
		Config:  cfg.Game,
		Logger:  logger,
	}
	if cfg.Geocode.Enabled {
		deps.Geocoder = geocode.New(cfg.Geocode, logger)
	}
	svc, err := game.NewService(deps)
	if err != nil {
		logger.Fatal().Err(err).Msg("init game")
	}

	srv, err := server.New(ctx, cfg, logger, server.Deps{
		Store: st,
		Game:  svc,
		Hub:   realtime.NewHub(broker, cfg.HTTP.AllowedOrigins, logger),
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("init server")
	}
	defer srv.Close()

	go svc.RunSimulation(ctx)
	if cfg.Game.AutoGenerate {
		go svc.RunAutoGenerator(ctx)
	}

	if err := srv.Run(ctx); err != nil {
		logger.Error().Err(err).Msg("server stopped")
	}
	stop()
	push.Wait()
}

func newBroker(ctx context.Context, cfg config.Config, logger zerolog.Logger) (realtime.Broker, error) {
	if !cfg.Redis.Enabled {
		return realtime.NewLocalBroker(logger), nil
	}
	client, err := realtime.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return nil, err
	}
	logger.Info().Str("addr", cfg.Redis.Addr).Msg("realtime changes fan out through redis")
	return realtime.NewRedisBroker(client, logger), nil
}

func newLogger(cfg config.Config) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	logger := log.Level(level).With().Str("env", cfg.Env).Str("app", cfg.AppName).Logger()
	if cfg.Env == "development" {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC822})
	}
	return logger
}
