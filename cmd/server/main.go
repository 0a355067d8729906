package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/wellspring/marketplace-server-go/internal/auth"
	"github.com/wellspring/marketplace-server-go/internal/config"
	"github.com/wellspring/marketplace-server-go/internal/database"
	"github.com/wellspring/marketplace-server-go/internal/handler"
	"github.com/wellspring/marketplace-server-go/internal/jobs"
	"github.com/wellspring/marketplace-server-go/internal/middleware"
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

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	setLogLevel(cfg.LogLevel)

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), config.DBPingTimeout)
	if err := db.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to ping database")
	}
	cancel()
	log.Info().Msg("database connected")

	redisClient, err := redis.NewClient(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()
	log.Info().Msg("redis connected")

	sessionRepo := repository.NewSessionRepository(db.DB)
	bookingRepo := repository.NewBookingRepository(db.DB)
	reviewRepo := repository.NewReviewRepository(db.DB)
	professionalRepo := repository.NewProfessionalRepository(db.DB)
	notificationRepo := repository.NewNotificationRepository(db.DB)

	broker := sse.NewBroker(redisClient)
	defer broker.Close()

	notificationService := service.NewNotificationService(notificationRepo, broker)
	aggregator := service.NewRatingAggregator(reviewRepo, sessionRepo, professionalRepo)
	dispatcher := service.NewReviewRequestDispatcher(
		bookingRepo, sessionRepo, professionalRepo, notificationService, cfg.ReviewReminderWindow(),
	)
	sessionService := service.NewSessionService(sessionRepo, bookingRepo, professionalRepo, notificationService)
	bookingService := service.NewBookingService(
		db, bookingRepo, sessionRepo, professionalRepo,
		redis.NewDailySequence(redisClient.Client, config.BookingSequenceTTL),
		notificationService,
	)
	reviewService := service.NewReviewService(
		reviewRepo, bookingRepo, sessionRepo, professionalRepo,
		aggregator, notificationService, cfg.AutoApproveReviews,
	)
	completionService := service.NewCompletionService(
		db, sessionRepo, bookingRepo, professionalRepo, dispatcher, notificationService,
		redis.NewLocker(redisClient.Client), cfg.CompletionGrace(), cfg.CompletionLeaseTTL(),
	)

	tokens := auth.NewTokenService(cfg.JWTSecret, cfg.JWTTTL())
	authMiddleware := middleware.NewAuthMiddleware(tokens)
	rateLimitMiddleware := middleware.NewRedisRateLimitMiddleware(redisClient.Client, cfg.RateLimitPerMin)
	bodyLimitMiddleware := middleware.NewBodyLimitMiddleware(0)
	securityHeadersMiddleware := middleware.NewSecurityHeadersMiddleware(cfg.Production)

	sessionHandler := handler.NewSessionHandler(sessionService, completionService)
	bookingHandler := handler.NewBookingHandler(bookingService)
	reviewHandler := handler.NewReviewHandler(reviewService, dispatcher)
	notificationHandler := handler.NewNotificationHandler(notificationService, handler.NewEventsHandler(broker))
	healthHandler := handler.NewHealthHandler(map[string]handler.Pinger{
		"database": db,
		"redis": handler.PingFunc(func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}),
	})

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(securityHeadersMiddleware.Handler)
	r.Use(bodyLimitMiddleware.Handler)

	r.Method(http.MethodGet, "/health", healthHandler)

	r.Route("/v1", func(r chi.Router) {
		r.Use(authMiddleware.Handler)
		r.Use(rateLimitMiddleware.Handler)

		// The notification stream is long-lived and must not inherit the
		// request timeout.
		r.Mount("/notifications", notificationHandler.Routes())

		r.Group(func(r chi.Router) {
			r.Use(chimiddleware.Timeout(config.ServerRequestTimeout))
			r.Mount("/sessions", sessionHandler.Routes())
			r.Mount("/bookings", bookingHandler.Routes())
			r.Mount("/reviews", reviewHandler.Routes())
		})
	})

	completionJob := jobs.NewCompletionJob(completionService, cfg.CompletionJobInterval(), cfg.CompletionRunTimeout())
	completionJob.Start()
	defer completionJob.Stop()

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: 0,
		IdleTimeout:  config.ServerIdleTimeout,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr()).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
