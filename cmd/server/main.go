// Package main is the entry point for the community portal API.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"community-portal/internal/app"
	"community-portal/internal/config"
	"community-portal/internal/pkg/lock"
	"community-portal/internal/pkg/metrics"
	"community-portal/internal/server"
	"community-portal/internal/service"
)

func main() {
	// Load configuration
	cfg, err := config.Load("config")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	app.SetupLogger(cfg.Log)
	log.Info().Msg("Configuration loaded successfully")

	if cfg.Admin.Token == "" {
		log.Warn().Msg("admin.token is empty; rollover and ash/set will reject every request")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stores, err := app.OpenStores(ctx, &cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open stores")
	}
	defer stores.Close()

	m := metrics.New()
	if err := m.Register(stores.PoolStats); err != nil {
		log.Warn().Err(err).Msg("Database pool metrics disabled")
	}

	// Shared by rollover and ash/set so manual edits wait for a running rollover.
	keyLock := lock.NewKeyLock()

	rolloverService := service.NewRolloverService(
		stores.Leaders,
		stores.Summaries,
		stores.Tx,
		keyLock,
		app.NewNotifier(cfg.Notify.Telegram),
		m,
		nil,
	)
	leaderboardService := service.NewLeaderboardService(stores.Leaders, stores.Summaries, keyLock)
	reactionService := service.NewReactionService(stores.Reactions, nil)
	userService := service.NewUserService(stores.Users, 0)
	personalFileService := service.NewPersonalFileService(stores.PersonalFiles)

	srv, err := server.New(&server.Dependencies{
		Config:              cfg,
		DB:                  stores.DB,
		Metrics:             m,
		RolloverService:     rolloverService,
		LeaderboardService:  leaderboardService,
		ReactionService:     reactionService,
		UserService:         userService,
		PersonalFileService: personalFileService,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create server")
	}

	// Setup graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	select {
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
	case err := <-errChan:
		if err != nil {
			log.Error().Err(err).Msg("Server stopped unexpectedly")
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Graceful shutdown failed")
	}
	log.Info().Msg("Server stopped gracefully")
}
