// Command rollover runs one leaderboard rollover and exits.
// It is meant to be started by an external scheduler, e.g. cron:
//
//	5 0 * * *   rollover
//	5 0 * * MON rollover -close-week
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"community-portal/internal/app"
	"community-portal/internal/config"
	"community-portal/internal/service"
)

func main() {
	closeWeek := flag.Bool("close-week", false, "archive the week's podium and reset weekly points")
	configPath := flag.String("config", "config", "directory containing config.yaml")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	app.SetupLogger(cfg.Log)

	if cfg.Database.IsMemory() {
		log.Fatal().Msg("rollover needs a persistent database; database.driver is memory")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stores, err := app.OpenStores(ctx, &cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open stores")
	}

	svc := service.NewRolloverService(
		stores.Leaders,
		stores.Summaries,
		stores.Tx,
		nil,
		app.NewNotifier(cfg.Notify.Telegram),
		nil,
		nil,
	)

	result, err := svc.Perform(ctx, *closeWeek)
	stores.Close()
	if err != nil {
		log.Error().Err(err).Msg("Rollover failed")
		os.Exit(1)
	}

	event := log.Info().Int("leaders", result.Leaders).Bool("closed_week", result.ClosedWeek)
	if result.Summary != nil {
		event = event.
			Str("week_start", result.Summary.WeekStart).
			Str("week_end", result.Summary.WeekEnd).
			Int64("total_ash", result.Summary.TotalAsh)
	}
	event.Msg("Rollover done")
}
