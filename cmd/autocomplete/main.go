// Command autocomplete runs a single session completion pass and prints the
// report as JSON. It is meant for cron-style schedulers that do not run the
// server's background job.
package main

import (
	"context"
	"io"
	"os"

	"github.com/joho/godotenv"
	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/wellspring/marketplace-server-go/internal/config"
	"github.com/wellspring/marketplace-server-go/internal/database"
	"github.com/wellspring/marketplace-server-go/internal/redis"
	"github.com/wellspring/marketplace-server-go/internal/repository"
	"github.com/wellspring/marketplace-server-go/internal/service"
	"github.com/wellspring/marketplace-server-go/internal/sse"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.DefaultContextLogger = &log.Logger

	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("no .env file found")
	}

	os.Exit(run(context.Background(), os.Stdout))
}

// run performs one completion pass and returns the process exit code. Every
// connection it opens is closed before it returns.
func run(ctx context.Context, out io.Writer) int {
	cfg, err := config.Load()
	if err != nil {
		log.Error().Err(err).Msg("failed to load config")
		return 1
	}
	if err := cfg.Validate(); err != nil {
		log.Error().Err(err).Msg("invalid config")
		return 1
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Error().Err(err).Msg("failed to connect to database")
		return 1
	}
	defer db.Close()

	redisClient, err := redis.NewClient(cfg.RedisURL)
	if err != nil {
		log.Error().Err(err).Msg("failed to connect to redis")
		return 1
	}
	defer redisClient.Close()

	sessionRepo := repository.NewSessionRepository(db.DB)
	bookingRepo := repository.NewBookingRepository(db.DB)
	professionalRepo := repository.NewProfessionalRepository(db.DB)

	broker := sse.NewBroker(redisClient)
	defer broker.Close()

	notifications := service.NewNotificationService(repository.NewNotificationRepository(db.DB), broker)
	dispatcher := service.NewReviewRequestDispatcher(
		bookingRepo, sessionRepo, professionalRepo, notifications, cfg.ReviewReminderWindow(),
	)
	completion := service.NewCompletionService(
		db, sessionRepo, bookingRepo, professionalRepo, dispatcher, notifications,
		redis.NewLocker(redisClient.Client), cfg.CompletionGrace(), cfg.CompletionLeaseTTL(),
	)

	ctx, cancel := context.WithTimeout(ctx, cfg.CompletionRunTimeout())
	defer cancel()

	result, err := completion.AutoCompleteExpiredSessions(ctx)
	if err != nil {
		log.Error().Err(err).Msg("completion pass failed")
		return 1
	}

	if err := writeReport(out, result); err != nil {
		log.Error().Err(err).Msg("failed to write report")
		return 1
	}
	return 0
}

func writeReport(out io.Writer, result *service.AutoCompleteResult) error {
	enc := jsoniter.ConfigCompatibleWithStandardLibrary.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
