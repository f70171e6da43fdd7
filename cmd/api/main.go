package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"tenantcore-backend/internal/api"
	"tenantcore-backend/internal/cache"
	"tenantcore-backend/internal/config"
	"tenantcore-backend/internal/domain/orders"
	"tenantcore-backend/internal/domain/staff"
	"tenantcore-backend/internal/index"
	"tenantcore-backend/internal/repository"
	"tenantcore-backend/internal/store"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load configuration: %v", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		log.Fatalf("initialize logger: %v", err)
	}
	defer logger.Sync()

	watcher, err := config.NewWatcher(cfg, os.Getenv("CONFIG_FILE"), logger)
	if err != nil {
		logger.Fatal("start config watcher", zap.Error(err))
	}
	defer watcher.Stop()

	client, err := newDynamoClient(ctx, cfg)
	if err != nil {
		logger.Fatal("initialize dynamodb client", zap.Error(err))
	}

	registry := prometheus.NewRegistry()
	var metrics *store.StoreMetrics
	if cfg.Store.EnableMetrics {
		metrics = store.NewStoreMetrics(registry)
	}
	dataDriver := buildDriver(client, cfg.Store.TableName, cfg, metrics, logger)
	cacheDriver := buildDriver(client, cfg.Store.CacheTableName, cfg, metrics, logger)

	if cfg.IsDevelopment() {
		admin := store.NewDynamoDriver(client, cfg.Store.TableName, logger, nil)
		if err := admin.EnsureIndexes(ctx, index.EntityIndexes()); err != nil {
			logger.Fatal("provision entity indexes", zap.Error(err))
		}
		cacheAdmin := store.NewDynamoDriver(client, cfg.Store.CacheTableName, logger, nil)
		if err := cacheAdmin.EnsureIndexes(ctx, index.CacheIndexes()); err != nil {
			logger.Fatal("provision cache indexes", zap.Error(err))
		}
	}

	entityRegistry := repository.NewRegistry(logger)
	cacheRepo := cache.NewRepository(cacheDriver, logger)

	orderService, err := orders.NewService(entityRegistry, dataDriver, cacheRepo, cfg.Cache.DefaultTTL, logger)
	if err != nil {
		logger.Fatal("register order entity", zap.Error(err))
	}
	staffService, err := staff.NewService(entityRegistry, dataDriver, logger)
	if err != nil {
		logger.Fatal("register staff entity", zap.Error(err))
	}

	logger.Info("feature entities registered",
		zap.Strings("entities", entityRegistry.Registered()),
	)

	handler := api.NewHandler(orderService, staffService,
		cfg.Data.DataEditLockMinutes, cfg.Data.DefaultPageSize, logger)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	router.Route("/api/v1", handler.Mount)
	if cfg.Store.EnableMetrics {
		router.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}

	server := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: router,
	}

	go func() {
		logger.Info("server listening", zap.String("addr", cfg.Server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.IsDevelopment() {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func newDynamoClient(ctx context.Context, cfg *config.Config) (*dynamodb.Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
	if err != nil {
		return nil, err
	}
	return dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.AWS.Endpoint != "" {
			o.BaseEndpoint = &cfg.AWS.Endpoint
		}
	}), nil
}

// buildDriver layers the optional circuit breaker and metrics decorators
// over the raw table driver.
func buildDriver(client *dynamodb.Client, table string, cfg *config.Config, metrics *store.StoreMetrics, logger *zap.Logger) store.Driver {
	var driver store.Driver = store.NewDynamoDriver(client, table, logger, &store.DynamoConfig{
		MaxRetries:     cfg.Store.MaxRetries,
		QueryBatchSize: 100,
	})
	if cfg.Store.EnableBreaker {
		driver = store.NewBreakerDriver(driver, table, logger)
	}
	if metrics != nil {
		driver = store.NewInstrumentedDriver(driver, table, metrics)
	}
	return driver
}
