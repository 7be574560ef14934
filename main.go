package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/ccpq/academy-service/internal/cache"
	"github.com/ccpq/academy-service/internal/config"
	"github.com/ccpq/academy-service/internal/contentgen"
	"github.com/ccpq/academy-service/internal/events"
	"github.com/ccpq/academy-service/internal/handlers"
	"github.com/ccpq/academy-service/internal/notify"
	"github.com/ccpq/academy-service/internal/paypal"
	"github.com/ccpq/academy-service/internal/repositories/casdoor"
	"github.com/ccpq/academy-service/internal/repositories/postgres"
	"github.com/ccpq/academy-service/internal/services"
	"github.com/ccpq/academy-service/internal/utils"
	"github.com/ccpq/academy-service/internal/validator"
	"github.com/ccpq/academy-service/pkg"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	slogLogger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	logger := utils.NewSlogLogger(slogLogger)

	// Initialize database
	db, err := pkg.InitDatabase(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	// Redis is optional; pending orders and caches fall back to the database
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = pkg.NewRedisClient(cfg)
		if err != nil {
			logger.Warn("Redis unavailable, continuing without cache", "error", err)
			redisClient = nil
		}
	}
	cacheManager := cache.NewCacheManager(redisClient)

	// Initialize repositories
	repoConfig := postgres.RepositoryConfig{
		DB:          db,
		RedisClient: redisClient,
		CasdoorConfig: casdoor.CasdoorConfig{
			Endpoint:         cfg.Casdoor.Endpoint,
			ClientID:         cfg.Casdoor.ClientID,
			ClientSecret:     cfg.Casdoor.ClientSecret,
			Certificate:      cfg.Casdoor.Cert,
			OrganizationName: cfg.Casdoor.Organization,
			ApplicationName:  cfg.Casdoor.Application,
		},
	}
	repoManager := postgres.NewRepositoryManager(repoConfig)
	if err := repoManager.Initialize(); err != nil {
		log.Fatalf("Failed to initialize repositories: %v", err)
	}

	// Event bus: Kafka when brokers are configured, in-process otherwise
	bus, err := events.NewBusFromConfig(cfg.Kafka, slogLogger)
	if err != nil {
		log.Fatalf("Failed to initialize event bus: %v", err)
	}
	events.RegisterCacheInvalidation(bus, cache.NewInvalidator(cacheManager))

	if err := cfg.PayPal.Credentials(); err != nil {
		logger.Warn("Payments disabled until configured", "error", err)
	}

	// Initialize services
	serviceConfig := services.DefaultServiceManagerConfig()
	serviceConfig.PendingOrderTTL = cfg.PayPal.PendingOrderTTL
	serviceConfig.ReconcileSchedule = cfg.Jobs.ReconcileSchedule
	serviceConfig.MaxReconcileTries = cfg.Jobs.MaxReconcileTries

	serviceManager := services.NewServiceManager(db, repoManager.GetRepository(), slogLogger, validator.New(), services.Dependencies{
		Gateway:   paypal.NewClient(cfg.PayPal, slogLogger),
		Content:   contentgen.NewClient(cfg.AI, slogLogger),
		Publisher: bus,
		Cache:     cacheManager,
		Mailer:    notify.NewSender(cfg.Mail, slogLogger),
	}, serviceConfig)
	if err := serviceManager.Initialize(context.Background()); err != nil {
		log.Fatalf("Failed to initialize services: %v", err)
	}

	// Subscribers must be registered before the bus starts consuming
	serviceManager.Notification().Register(bus)
	consumerCtx, stopConsumers := context.WithCancel(context.Background())
	if err := bus.Run(consumerCtx); err != nil {
		log.Fatalf("Failed to start event consumers: %v", err)
	}

	// Initialize handlers
	handlerManager := handlers.NewHandlerManager(serviceManager, logger, cfg.Casdoor, repoManager.GetRepository().User())

	// Setup Gin router
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handlers.SetupMiddleware(router, logger)
	handlerManager.SetupRoutes(router)

	// Create HTTP server
	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("Starting server", "port", cfg.Port, "environment", cfg.Environment)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	// Stops the reconciliation scheduler
	if err := serviceManager.Shutdown(ctx); err != nil {
		logger.Error("Failed to shutdown services", "error", err)
	}

	stopConsumers()
	if err := bus.Close(); err != nil {
		logger.Error("Failed to close event bus", "error", err)
	}

	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}

	if redisClient != nil {
		redisClient.Close()
	}

	logger.Info("Server exited")
}
