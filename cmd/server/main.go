package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"motwatch-service/internal/infrastructure/config"
	"motwatch-service/internal/infrastructure/oauth"
	"motwatch-service/internal/infrastructure/persistence"
	"motwatch-service/internal/interface/api"
	"motwatch-service/internal/interface/motapi"
	mongoRepo "motwatch-service/internal/interface/repository"
	"motwatch-service/internal/usecase"
	"motwatch-service/pkg/logger"
	"motwatch-service/pkg/metrics"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	// Create logger
	log := logger.NewLogger()
	defer log.Sync()
	log.Info("Starting Motwatch Service")

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config", "error", err)
	}

	// Set up context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up MongoDB connection
	log.Info("Connecting to MongoDB")
	mongoClient, db, err := persistence.NewMongoClient(ctx, cfg.MongoURI, cfg.MongoDB, cfg.MongoUser, cfg.MongoPassword)
	if err != nil {
		log.Fatal("Failed to connect to MongoDB", "error", err)
	}

	gormDB, err := gorm.Open(postgres.Open(cfg.PostgresURI), &gorm.Config{})
	if err != nil {
		log.Fatal("Failed to connect to PostgreSQL", "error", err)
	}

	// Set up repositories
	vehicleRepo := mongoRepo.NewMongoVehicleRepository(db)
	subscriptionRepo := mongoRepo.NewMongoSubscriptionRepository(db)
	notificationLogRepo, err := mongoRepo.NewGormNotificationLogRepository(gormDB)
	if err != nil {
		log.Fatal("Failed to migrate notification log table", "error", err)
	}
	pushRepo := mongoRepo.NewHTTPPushRepository(cfg.PushServiceURL, cfg.PushToken, cfg.PushTTL, log)

	// Set up upstream client with the shared token cache
	tokenCache := oauth.NewTokenCache(cfg.MotTokenURL, cfg.MotClientID, cfg.MotClientSecret, cfg.MotScope, log)
	historyRepo := motapi.NewHistoryClient(cfg.MotAPIBaseURL, cfg.MotAPIKey, tokenCache, cfg.RequestTimeout, log)

	// Set up metrics
	appMetrics := metrics.NewMetrics("motwatch")

	// Set up usecases
	dispatcher := usecase.NewNotificationDispatcher(subscriptionRepo, pushRepo, notificationLogRepo, log)
	scheduler := usecase.NewCheckScheduler(
		vehicleRepo,
		historyRepo,
		dispatcher,
		log,
		appMetrics,
		cfg.CheckInterval,
		cfg.BatchSize,
		cfg.BatchDelay,
	)
	subscriptionService := usecase.NewSubscriptionService(vehicleRepo, subscriptionRepo, historyRepo, log)

	// Start the check scheduler in a goroutine
	go scheduler.StartPolling(ctx)

	// Set up HTTP server
	handler := api.NewHandler(subscriptionService, log)
	router := api.NewRouter(handler)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	// Start HTTP server in a goroutine
	go func() {
		log.Info("Starting HTTP server", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server error", "error", err)
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	log.Info("Received signal", "signal", sig)

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", "error", err)
	}

	cancel() // Cancel the context to stop the scheduler

	// Disconnect from MongoDB
	if err := mongoClient.Disconnect(context.Background()); err != nil {
		log.Error("MongoDB disconnect error", "error", err)
	}

	log.Info("Motwatch Service stopped")
}
