package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/Voyagetechsolutions/kjkhandala-sub001/internal/config"
	"github.com/Voyagetechsolutions/kjkhandala-sub001/internal/database"
	"github.com/Voyagetechsolutions/kjkhandala-sub001/internal/handlers"
	"github.com/Voyagetechsolutions/kjkhandala-sub001/internal/middleware"
	"github.com/Voyagetechsolutions/kjkhandala-sub001/internal/models"
	"github.com/Voyagetechsolutions/kjkhandala-sub001/internal/services"
	"github.com/Voyagetechsolutions/kjkhandala-sub001/pkg/cache"
	"github.com/Voyagetechsolutions/kjkhandala-sub001/pkg/jwt"
)

var (
	version   = "1.0.0"
	buildTime = "unknown"
)

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	logger.Info("Starting KJ Khandala reservation engine")
	logger.Infof("Version: %s, Build Time: %s", version, buildTime)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	logLevel, err := logrus.ParseLevel(cfg.Server.LogLevel)
	if err != nil {
		logger.Warn("Invalid log level, using INFO")
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	// Connect to database
	logger.Info("Connecting to database...")
	db, err := database.NewConnection(ctx, cfg.Database, logger)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	logger.Info("Database connection established")

	if cfg.Database.AutoMigrate {
		logger.Info("Applying database migrations...")
		if err := database.Migrate(ctx, db.DB.DB); err != nil {
			logger.Fatalf("Failed to migrate database: %v", err)
		}
	}

	tiers, err := models.ParseTierSchedule(cfg.Loyalty.Tiers)
	if err != nil {
		logger.Fatalf("Invalid LOYALTY_TIERS: %v", err)
	}
	loc := cfg.Reservation.Location()

	// Repositories
	templateRepository := database.NewScheduleTemplateRepository(db)
	tripRepository := database.NewTripRepository(db)
	bookingRepository := database.NewBookingRepository(db)
	loyaltyRepository := database.NewLoyaltyRepository(db)

	// Template cache is optional; without Redis every lookup reads the database
	var (
		templates   services.TemplateSource = templateRepository
		invalidator handlers.TemplateInvalidator
		redisPinger handlers.Pinger
	)
	if cfg.Redis.URL != "" {
		redisCache, err := cache.New(ctx, cfg.Redis.URL, cfg.Redis.PoolSize, "reservations:")
		if err != nil {
			logger.WithError(err).Warn("Redis unavailable, template cache disabled")
		} else {
			defer redisCache.Close()
			cached := services.NewCachedTemplateSource(templateRepository, redisCache, cfg.Redis.TemplateTTL, logger)
			templates = cached
			invalidator = cached
			redisPinger = redisCache
			logger.Info("Template cache enabled")
		}
	}

	// Services
	logger.Info("Initializing services...")
	jwtService := jwt.NewService(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.AccessTokenExpiry)
	searchService := services.NewTripSearchService(templates, tripRepository, loc, logger)
	seatService := services.NewSeatInventoryService(searchService, bookingRepository, logger)
	fareCalculator := services.NewFareCalculator(cfg.Reservation.Currency)
	loyaltyService := services.NewLoyaltyService(loyaltyRepository, services.LoyaltyConfig{
		RedemptionRate: cfg.Loyalty.RedemptionRate,
		EarnRate:       cfg.Loyalty.EarnRate,
		Currency:       cfg.Reservation.Currency,
		Tiers:          tiers,
	}, logger)
	reservationService := services.NewReservationService(
		seatService,
		bookingRepository,
		fareCalculator,
		loyaltyService,
		services.ReservationConfig{
			Holds: services.HoldPolicy{
				CheckoutHold: cfg.Reservation.CheckoutHold,
				TerminalHold: cfg.Reservation.TerminalHold,
			},
			ReferencePrefix: cfg.Reservation.ReferencePrefix,
		},
		logger,
	)
	ticketService := services.NewTicketService(reservationService, loc, cfg.Reservation.Currency, logger)
	materializer := services.NewTripMaterializerService(templates, tripRepository, loc, cfg.Scheduler.MaterializeDaysAhead, logger)
	logger.Info("Services initialized")

	// Background jobs
	sweeper := services.NewReservationExpiryService(bookingRepository, cfg.Reservation.SweepInterval, cfg.Reservation.SweepBatchSize, logger)
	sweeper.Start()
	jobs := []stopper{sweeper}

	if cfg.Scheduler.Enabled {
		cronService := services.NewCronService(materializer, cfg.Scheduler.MaterializeCron, loc, logger)
		if err := cronService.Start(); err != nil {
			logger.Fatalf("Failed to start cron service: %v", err)
		}
		jobs = append(jobs, cronService)
		logger.Info("Cron service started - trip materialization enabled")
	}

	// Initialize Gin router
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(logger))
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     cfg.CORS.AllowedMethods,
		AllowHeaders:     cfg.CORS.AllowedHeaders,
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition", middleware.RequestIDHeader},
		AllowCredentials: !allowsAnyOrigin(cfg.CORS.AllowedOrigins),
		MaxAge:           12 * time.Hour,
	}))

	handlers.RegisterRoutes(router, handlers.Routes{
		Health: handlers.NewHealthHandler(version, map[string]handlers.Pinger{
			"database": handlers.PingerFunc(db.PingContext),
			"cache":    redisPinger,
		}, logger),
		Trips:   handlers.NewTripHandler(searchService, seatService, logger),
		Booking: handlers.NewBookingHandler(reservationService, ticketService, logger),
		Loyalty: handlers.NewLoyaltyHandler(loyaltyService, logger),
		Jobs:    handlers.NewJobsHandler(materializer, sweeper, invalidator, loc, logger),
		Tokens:  jwtService,
		Logger:  logger,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Infof("Server listening on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	shutdown(shutdownCtx, srv, jobs, logger)

	logger.Info("Server exited")
}

type stopper interface {
	Stop()
}

type shutdowner interface {
	Shutdown(ctx context.Context) error
}

// shutdown stops the background jobs, then drains the HTTP server
func shutdown(ctx context.Context, srv shutdowner, jobs []stopper, logger *logrus.Logger) {
	for _, job := range jobs {
		job.Stop()
	}

	if err := srv.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}
}

// allowsAnyOrigin reports whether the wildcard origin is configured; browsers
// reject credentials with it
func allowsAnyOrigin(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}
