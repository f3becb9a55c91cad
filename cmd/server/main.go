package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"figmist-store/config"
	"figmist-store/internal/api"
	"figmist-store/internal/broker"
	"figmist-store/internal/localstore"
	"figmist-store/internal/service"
	"figmist-store/internal/store"
	"figmist-store/internal/util"
	"figmist-store/internal/worker"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env, cfg.Server.LogLevel); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting figmist store")

	tp, err := util.InitTracer(cfg.Observ.JaegerEndpoint)
	if err != nil {
		logger.Fatal("Failed to initialize tracer", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			logger.Warn("Error shutting down tracer", zap.Error(err))
		}
	}()

	ctx := context.Background()
	db, err := store.NewStore(cfg.Database.URL)
	if err != nil {
		// reads fall back to local copies until the database comes back
		logger.Warn("Database unreachable at startup", zap.Error(err))
		if db, err = store.OpenStore(cfg.Database.URL); err != nil {
			logger.Fatal("Failed to open database", zap.Error(err))
		}
	} else {
		logger.Info("Database connected")
		if cfg.Database.Migrate {
			if err := db.Migrate(ctx); err != nil {
				logger.Fatal("Failed to migrate database", zap.Error(err))
			}
		}
	}
	defer db.Close()

	storage, closeStorage := openStorage(cfg.Storage, logger)
	defer closeStorage()

	var publisher service.ProductEventPublisher
	var productWorker *worker.ProductEventWorker
	if cfg.Kafka.Enabled {
		producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicProducts)
		defer producer.Close()
		publisher = broker.NewEventPublisher(producer)
		logger.Info("Kafka producer initialized", zap.Strings("brokers", cfg.Kafka.Brokers))
	}

	catalog := service.NewCatalogService(db, storage, publisher, service.CatalogConfig{
		RetryAttempts:     cfg.Catalog.RetryAttempts,
		RetryBaseDelay:    cfg.Catalog.RetryBaseDelay,
		CacheMaxAge:       cfg.Catalog.CacheMaxAge,
		PageSize:          cfg.Catalog.PageSize,
		FallbackKeep:      cfg.Catalog.FallbackKeep,
		MaxImageBytes:     cfg.Upload.MaxImageBytes,
		MaxImageDimension: cfg.Upload.MaxImageDimension,
		MaxImagePixels:    cfg.Upload.MaxImagePixels,
		JPEGQuality:       cfg.Upload.JPEGQuality,
	})
	if err := catalog.SeedFallback(ctx); err != nil {
		logger.Warn("Failed to seed fallback products", zap.Error(err))
	}

	sessions := service.NewSessions(storage, service.AdminCredentials{
		Email:    cfg.Admin.Email,
		Password: cfg.Admin.Password,
	}, cfg.Server.CartCacheSize)
	checkout := service.NewCheckoutFormatter(cfg.Checkout.WhatsAppNumber)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	if cfg.Kafka.Enabled {
		consumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicProducts, cfg.Kafka.ConsumerGroup)
		productWorker = worker.NewProductEventWorker(consumer, catalog)
		go func() {
			if err := productWorker.Start(workerCtx); err != nil && err != context.Canceled {
				logger.Error("Product event worker error", zap.Error(err))
			}
		}()
	}

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(catalog, sessions, checkout)
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	workerCancel()
	if productWorker != nil {
		if err := productWorker.Stop(); err != nil {
			logger.Warn("Error stopping product event worker", zap.Error(err))
		}
	}

	logger.Info("Server exited")
}

// openStorage selects the local durable store backend
func openStorage(cfg config.StorageConfig, logger *zap.Logger) (localstore.Storage, func()) {
	if cfg.Backend == "memory" {
		logger.Info("Using in-memory local storage", zap.Int("quota_bytes", cfg.QuotaBytes))
		return localstore.NewMemoryStorage(cfg.QuotaBytes), func() {}
	}

	rs, err := localstore.NewRedisStorage(cfg.Addr, cfg.Password, cfg.DB, cfg.KeyPrefix)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	logger.Info("Redis connected", zap.String("addr", cfg.Addr))
	return rs, func() { _ = rs.Close() }
}
