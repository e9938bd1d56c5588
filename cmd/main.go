package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	// Adapters
	"github.com/andriizakutkodev/AutoMarketplace/internal/adapter/httpapi"
	natsAdapter "github.com/andriizakutkodev/AutoMarketplace/internal/adapter/messaging/nats"
	redisCache "github.com/andriizakutkodev/AutoMarketplace/internal/adapter/repository/cache"
	mongoRepo "github.com/andriizakutkodev/AutoMarketplace/internal/adapter/repository/mongodb"
	s3Storage "github.com/andriizakutkodev/AutoMarketplace/internal/adapter/storage/s3"

	// Config
	"github.com/andriizakutkodev/AutoMarketplace/internal/config"
	// Usecase
	"github.com/andriizakutkodev/AutoMarketplace/internal/media/usecase"
	// Platform
	"github.com/andriizakutkodev/AutoMarketplace/internal/platform/logger"
	"github.com/andriizakutkodev/AutoMarketplace/internal/platform/metrics"
	"github.com/andriizakutkodev/AutoMarketplace/internal/platform/tracer"

	"github.com/joho/godotenv"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
)

const serviceName = "media-service"

func main() {
	// Load .env file (optional, for local development)
	if err := godotenv.Load(); err != nil {
		fmt.Printf("INFO: .env file not found or error loading: %v. Relying on OS environment variables.\n", err)
	}

	// 1. Initialize Logger
	appLogger := logger.NewLogger()
	appLogger.Info("Application starting...", zap.String("service_name", serviceName))

	// 2. Load Configuration
	cfg, err := config.LoadConfig(appLogger)
	if err != nil {
		appLogger.Fatal("Failed to load configuration", zap.Error(err))
	}
	appLogger.Info("Configuration loaded successfully",
		zap.String("http_port", cfg.HTTPPort),
		zap.Bool("mongo_uri_set", cfg.MongoURI != ""),
		zap.String("minio_endpoint", cfg.MinIOEndpoint),
		zap.String("nats_url", cfg.NATSURL),
		zap.String("prometheus_port", cfg.PrometheusMetricsPort),
	)

	// 3. Initialize OpenTelemetry Tracer
	var tp *sdktrace.TracerProvider
	if cfg.OTExporterOTLPEndpoint != "" {
		tp = tracer.InitTracer(serviceName, cfg.OTExporterOTLPEndpoint, appLogger)
		defer func() {
			appLogger.Info("Shutting down tracer provider...")
			ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancelShutdown()
			if err := tp.Shutdown(ctxShutdown); err != nil {
				appLogger.Error("Failed to shutdown tracer provider", zap.Error(err))
			}
		}()
		appLogger.Info("OpenTelemetry Tracer initialized.")
	} else {
		appLogger.Info("OpenTelemetry Tracer not initialized (OTEL_EXPORTER_OTLP_ENDPOINT not set).")
	}

	// 4. Connect to MongoDB
	mongoClient, err := mongo.Connect(context.Background(), options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		appLogger.Fatal("Failed to connect to MongoDB", zap.Error(err))
	}
	defer func() {
		appLogger.Info("Disconnecting from MongoDB...")
		if err = mongoClient.Disconnect(context.Background()); err != nil {
			appLogger.Error("Error disconnecting from MongoDB", zap.Error(err))
		}
	}()
	ctxPingMongo, cancelPingMongo := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelPingMongo()
	if err = mongoClient.Ping(ctxPingMongo, nil); err != nil {
		appLogger.Fatal("Failed to ping MongoDB", zap.Error(err))
	}
	appLogger.Info("Successfully connected and pinged MongoDB.")
	db := mongoClient.Database(cfg.MongoDatabase)

	// 5. Initialize MinIO Storage
	fileStorage, err := s3Storage.NewStorage(cfg.MinIOEndpoint, cfg.MinIOAccessKey, cfg.MinIOSecretKey, cfg.MinIOBucket, cfg.MinIOUseSSL, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to initialize MinIO storage", zap.Error(err))
	}
	appLogger.Info("MinIO storage initialized.", zap.String("bucket", cfg.MinIOBucket))

	// 6. Initialize Redis Cache
	mediaCache, err := redisCache.NewMediaCache(cfg.RedisAddress)
	if err != nil {
		appLogger.Fatal("Failed to initialize Redis cache", zap.Error(err))
	}
	defer func() {
		if err := mediaCache.Close(); err != nil {
			appLogger.Error("Error closing Redis cache", zap.Error(err))
		}
	}()
	appLogger.Info("Redis cache initialized.")

	// 7. Initialize NATS Publisher
	natsPublisher, err := natsAdapter.NewPublisher(cfg.NATSURL, appLogger, serviceName)
	if err != nil {
		appLogger.Fatal("Failed to initialize NATS publisher", zap.Error(err))
	}
	defer natsPublisher.Close()
	appLogger.Info("NATS Publisher initialized.")

	// 8. Initialize Repositories
	userRepo := mongoRepo.NewUserRepository(db, appLogger)
	announcementRepo := mongoRepo.NewAnnouncementRepository(db, appLogger)
	intentRepo, err := mongoRepo.NewIntentRepository(db, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to initialize IntentRepository", zap.Error(err))
	}
	appLogger.Info("Repositories initialized.")

	// 9. Initialize Metrics
	metricsManager := metrics.NewMetricsManager("media_service")

	// 10. Initialize Usecases
	mediaUsecase := usecase.NewMediaUsecase(userRepo, intentRepo, fileStorage, mediaCache, natsPublisher, metricsManager, appLogger, cfg.StorageTimeout())
	announcementMediaUsecase := usecase.NewAnnouncementMediaUsecase(announcementRepo, intentRepo, fileStorage, natsPublisher, metricsManager, appLogger, cfg.StorageTimeout())
	appLogger.Info("Usecases initialized.")

	// 11. Start Intent Reconciler
	reconcilerCtx, stopReconciler := context.WithCancel(context.Background())
	defer stopReconciler()
	reconciler := usecase.NewReconciler(
		intentRepo, userRepo, announcementRepo, fileStorage, natsPublisher, metricsManager, appLogger,
		cfg.ReconcilerInterval(), cfg.ReconcilerMinAge(), cfg.StorageTimeout(),
	)
	go reconciler.Run(reconcilerCtx)

	// 12. Initialize HTTP Handler and Router
	mediaHandler := httpapi.NewMediaHandler(mediaUsecase, announcementMediaUsecase, cfg.MaxUploadSizeMB, appLogger)
	router := httpapi.NewRouter(mediaHandler, cfg.JWTSecret, appLogger)

	httpServer := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	go func() {
		appLogger.Info("Starting HTTP server", zap.String("port", cfg.HTTPPort))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	// 13. Start Prometheus Metrics Server
	if cfg.PrometheusMetricsPort != "" {
		go func() {
			appLogger.Info("Starting Prometheus metrics server", zap.String("port", cfg.PrometheusMetricsPort))
			if err := metrics.StartMetricsServer(cfg.PrometheusMetricsPort, appLogger, metricsManager.Registry); err != nil && !errors.Is(err, http.ErrServerClosed) {
				appLogger.Error("Prometheus metrics server failed", zap.Error(err))
			}
		}()
	} else {
		appLogger.Info("Prometheus metrics server not started (PROMETHEUS_METRICS_PORT not set).")
	}

	// 14. Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	appLogger.Info("Received shutdown signal", zap.String("signal", sig.String()))

	stopReconciler()

	appLogger.Info("Shutting down HTTP server...")
	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := httpServer.Shutdown(ctxShutdown); err != nil {
		appLogger.Error("HTTP server shutdown error", zap.Error(err))
	}
	appLogger.Info("HTTP server stopped.")

	appLogger.Info("Application shutting down...")
}
