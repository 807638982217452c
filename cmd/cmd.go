package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"parking-ticket-backend/internal/config"
	"parking-ticket-backend/internal/events"
	"parking-ticket-backend/internal/expiry"
	"parking-ticket-backend/internal/handlers"
	"parking-ticket-backend/internal/middleware"
	"parking-ticket-backend/internal/notify"
	"parking-ticket-backend/internal/repository"
	"parking-ticket-backend/internal/scheduler"
	"parking-ticket-backend/internal/services"
	"parking-ticket-backend/internal/storage"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
)

func Run() {
	configPath := pflag.String("config", "config.yaml", "path to the YAML configuration file")
	sweepOnce := pflag.Bool("sweep-once", false, "run a single expiry sweep and exit")
	pflag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Setup logger
	setupLogger(cfg.Log.Level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect to database
	db, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	if err := db.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to ping database")
	}
	log.Info().Msg("Database connection established")

	if err := repository.EnsureSchema(ctx, db); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply schema")
	}

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	ticketRepo := repository.NewTicketRepository(db)

	// Ticket images are optional
	var images *storage.ImageStore
	if cfg.AWS.S3Bucket != "" {
		images, err = storage.NewImageStore(ctx, cfg.AWS.Region, cfg.AWS.S3Bucket, cfg.AWS.AccessKey, cfg.AWS.SecretKey, cfg.AWS.Endpoint)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create image store")
		}
	} else {
		log.Warn().Msg("S3 bucket not configured, ticket images disabled")
	}

	publisher := newPublisher(cfg)
	defer publisher.Close()

	// Initialize services
	wsHub := services.NewWSHub()
	userService := services.NewUserService(userRepo, cfg.JWT.Secret, cfg.JWT.TTL)
	var ticketService *services.TicketService
	if images != nil {
		ticketService = services.NewTicketService(ticketRepo, images, wsHub)
	} else {
		ticketService = services.NewTicketService(ticketRepo, nil, wsHub)
	}

	sweepService := newSweepService(cfg, ticketRepo, userRepo, images, publisher, wsHub)

	lockClient, locker := newLocker(cfg)
	if lockClient != nil {
		defer lockClient.Close()
	}
	// A started sweep runs to its commit even after shutdown begins
	sweeper := scheduler.New(func(ctx context.Context) error {
		_, err := sweepService.Run(context.WithoutCancel(ctx))
		return err
	}, scheduler.Options{
		Name:         "expiry-sweep",
		Interval:     cfg.Sweep.Interval,
		MisfireGrace: cfg.Sweep.MisfireGrace,
		Locker:       locker,
	})

	if *sweepOnce {
		if err := runSweepOnce(ctx, sweeper); err != nil {
			log.Fatal().Err(err).Msg("Expiry sweep failed")
		}
		return
	}

	var wg sync.WaitGroup
	if cfg.Sweep.Enabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if cfg.Sweep.RunOnStartup {
				if _, err := sweeper.RunOnce(ctx); err != nil && !errors.Is(err, scheduler.ErrLockHeld) {
					log.Error().Err(err).Msg("Startup expiry sweep failed")
				}
			}
			sweeper.Start(ctx)
		}()
	} else {
		log.Warn().Msg("Expiry sweep disabled")
	}

	// Initialize handlers
	userHandler := handlers.NewUserHandler(userService)
	ticketHandler := handlers.NewTicketHandler(ticketService)
	wsHandler := handlers.NewWebSocketHandler(wsHub, userService)
	healthHandler := handlers.NewHealthHandler(db)

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(corsMiddleware)

	r.Get("/healthz", healthHandler.Health)

	// Routes
	r.Route("/api/v1", func(r chi.Router) {
		// Public routes
		r.Post("/auth/register", userHandler.Register)
		r.Post("/auth/login", userHandler.Login)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthMiddleware(userService))
			r.Post("/auth/push-token", userHandler.RegisterPushToken)
			r.Post("/tickets", ticketHandler.Upload)
			r.Get("/tickets", ticketHandler.Search)
			r.Get("/tickets/{id}", ticketHandler.Get)
			r.Get("/tickets/{id}/image", ticketHandler.Image)
			r.Delete("/tickets/{id}", ticketHandler.Delete)
		})

		r.Get("/ws", wsHandler.HandleWebSocket)
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("host", cfg.Server.Host).
			Int("port", cfg.Server.Port).
			Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	wg.Wait()

	log.Info().Msg("Server exited")
}

// runSweepOnce runs a single sweep. A lock held by another replica is a skip, not a failure.
func runSweepOnce(ctx context.Context, sweeper *scheduler.Scheduler) error {
	ran, err := sweeper.RunOnce(ctx)
	if errors.Is(err, scheduler.ErrLockHeld) {
		log.Info().Msg("Another instance is sweeping, skipping")
		return nil
	}
	if err != nil {
		return err
	}
	if ran {
		log.Info().Msg("Expiry sweep finished")
	}
	return nil
}

// newSweepService wires the expiry sweep to its channels
func newSweepService(
	cfg *config.Config,
	tickets *repository.TicketRepository,
	users *repository.UserRepository,
	images *storage.ImageStore,
	publisher events.Publisher,
	hub *services.WSHub,
) *services.SweepService {
	zone, err := expiry.LoadZone(cfg.Sweep.DisplayZone)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load display zone")
	}

	mailer := notify.NewSMTPMailer(notify.SMTPConfig{
		Host:     cfg.Mail.Server,
		Port:     cfg.Mail.Port,
		UseTLS:   cfg.Mail.UseTLS,
		Username: cfg.Mail.Username,
		Password: cfg.Mail.Password,
		Sender:   cfg.Mail.DefaultSender,
		Timeout:  cfg.Sweep.ChannelTimeout,
	})
	if cfg.Mail.DefaultSender == "" {
		log.Warn().Msg("MAIL_DEFAULT_SENDER not set, expiry emails will fail")
	}

	var pusher services.PushSender = notify.DisabledPusher{}
	apnsCfg := notify.APNsConfig{
		KeyPath:         cfg.APNs.KeyPath,
		KeyID:           cfg.APNs.KeyID,
		TeamID:          cfg.APNs.TeamID,
		CertificatePath: cfg.APNs.CertificatePath,
		CertificatePass: cfg.APNs.CertificatePass,
		Topic:           cfg.APNs.Topic,
		Production:      cfg.APNs.Production,
	}
	if apnsCfg.Enabled() {
		apns, err := notify.NewAPNsPusher(apnsCfg)
		if err != nil {
			log.Error().Err(err).Msg("Failed to create APNs client, push disabled")
		} else {
			pusher = apns
		}
	} else {
		log.Warn().Msg("APNs credentials not configured, push disabled")
	}

	deps := services.SweepDeps{
		Tickets:   tickets,
		Users:     users,
		Email:     mailer,
		Push:      pusher,
		Publisher: publisher,
		Listener:  hub,
	}
	if images != nil {
		deps.Images = images
	}

	return services.NewSweepService(deps, services.SweepOptions{
		DisplayZone:    zone,
		ChannelTimeout: cfg.Sweep.ChannelTimeout,
	})
}

// newPublisher returns the RabbitMQ publisher, or a no-op one when no URL is set
func newPublisher(cfg *config.Config) events.Publisher {
	if cfg.RabbitMQ.URL == "" {
		return events.NopPublisher{}
	}
	log.Info().Str("queue", cfg.RabbitMQ.Queue).Msg("Publishing ticket events to RabbitMQ")
	return events.NewAMQPPublisher(cfg.RabbitMQ.URL, cfg.RabbitMQ.Queue)
}

// newLocker returns the Redis sweep lock, or nil when Redis is not configured
func newLocker(cfg *config.Config) (*redis.Client, scheduler.Locker) {
	if cfg.Redis.Addr == "" {
		return nil, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	log.Info().Str("addr", cfg.Redis.Addr).Msg("Using Redis sweep lock")
	return client, scheduler.NewRedisLocker(client, cfg.Redis.LockKey, cfg.Redis.LockTTL)
}

// setupLogger configures zerolog logger
func setupLogger(level string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

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

// corsMiddleware handles CORS
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
