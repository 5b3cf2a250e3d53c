// Package app assembles the stores and services shared by the commands.
package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"community-portal/internal/config"
	"community-portal/internal/handler"
	"community-portal/internal/notify"
	"community-portal/internal/pkg/db"
	"community-portal/internal/repository"
	"community-portal/internal/repository/memory"
	"community-portal/internal/service"
)

// SetupLogger configures the global zerolog logger.
func SetupLogger(cfg config.LogConfig) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
		return
	}
	log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
}

// Stores is the storage backend selected by database.driver.
type Stores struct {
	Leaders       service.LeaderStore
	Summaries     service.SummaryStore
	Reactions     service.ReactionStore
	Users         service.UserStore
	PersonalFiles service.PersonalFileStore
	Tx            service.Transactor

	// DB and PoolStats are nil for the in-memory backend.
	DB        handler.Pinger
	PoolStats prometheus.Collector

	close func()
}

// Close releases the backend.
func (s *Stores) Close() {
	if s.close != nil {
		s.close()
	}
}

// OpenStores connects to PostgreSQL and migrates the schema, or builds an
// in-memory store when database.driver is "memory".
func OpenStores(ctx context.Context, cfg *config.DatabaseConfig) (*Stores, error) {
	if cfg.IsMemory() {
		log.Warn().Msg("Using in-memory store; data is lost on exit")
		store := memory.NewStore()
		return &Stores{
			Leaders:       store.Leaders(),
			Summaries:     store.Summaries(),
			Reactions:     store.Reactions(),
			Users:         store.Users(),
			PersonalFiles: store.PersonalFiles(),
			Tx:            store,
		}, nil
	}

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to run database migrations: %w", err)
	}

	return &Stores{
		Leaders:       repository.NewLeaderRepository(pool.Pool),
		Summaries:     repository.NewSummaryRepository(pool.Pool),
		Reactions:     repository.NewReactionRepository(pool.Pool),
		Users:         repository.NewUserRepository(pool.Pool),
		PersonalFiles: repository.NewPersonalFileRepository(pool.Pool),
		Tx:            repository.NewTxManager(pool.Pool),
		DB:            pool,
		PoolStats:     pool.Collector(),
		close:         pool.Close,
	}, nil
}

// NewNotifier returns the Telegram notifier when configured and a no-op otherwise.
func NewNotifier(cfg config.TelegramConfig) service.WeekNotifier {
	if !cfg.Enabled() {
		return notify.Noop{}
	}

	n, err := notify.NewTelegram(cfg.Token, cfg.ChatID)
	if err != nil {
		log.Warn().Err(err).Msg("Telegram notifier disabled")
		return notify.Noop{}
	}

	log.Info().Int64("chat_id", cfg.ChatID).Msg("Week summaries will be posted to Telegram")
	return n
}
