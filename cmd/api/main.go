package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dwang/embedcomp/internal/api"
	"github.com/dwang/embedcomp/internal/api/handler"
	"github.com/dwang/embedcomp/internal/api/middleware"
	"github.com/dwang/embedcomp/internal/config"
	"github.com/dwang/embedcomp/internal/dataset"
	"github.com/dwang/embedcomp/internal/logger"
	"github.com/dwang/embedcomp/internal/repository"
	"github.com/dwang/embedcomp/internal/service"
	"github.com/dwang/embedcomp/internal/storage"
)

func main() {
	// Initialize logger from environment (supports rotation and file output)
	appLogger := logger.NewDefault()
	logger.SetDefaultLogger(appLogger)
	defer logger.Sync()

	configPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load config")
	}

	// Initialize database for the movie catalog
	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize database")
	}
	movieRepo := repository.NewMovieRepository(db)

	// Embedding configuration registry; providers and collections are
	// initialized lazily on first use
	registry := service.NewRegistry(cfg.Qdrant, cfg.Embeddings)
	defer registry.Close()

	appLogger.WithFields(logger.Fields{
		"configurations": registry.Count(),
		"qdrant_host":    cfg.Qdrant.Host,
	}).Info("Registry initialized")

	// Services
	searchService := service.NewSearchService(registry, movieRepo)
	compareService := service.NewCompareService(registry, movieRepo)
	indexService := service.NewIndexService(registry, movieRepo, cfg.Index.Workers, cfg.Index.BatchSize)

	// Object storage for report export; credentials come from the environment
	var store storage.ObjectStorage
	if cfg.Storage.AccessKey != "" {
		store, err = storage.NewStorage(&storage.S3Config{
			Type:      storage.StorageType(cfg.Storage.Type),
			Endpoint:  cfg.Storage.Endpoint,
			AccessKey: cfg.Storage.AccessKey,
			SecretKey: cfg.Storage.SecretKey,
			UseSSL:    cfg.Storage.UseSSL,
			Bucket:    cfg.Storage.Bucket,
			Region:    cfg.Storage.Region,
			PublicURL: cfg.Storage.PublicURL,
		})
		if err != nil {
			appLogger.WithError(err).Warn("Storage unavailable, report export disabled")
			store = nil
		}
	}

	// Handlers
	deps := &api.RouterDeps{
		Search:        handler.NewSearchHandler(searchService, cfg.Compare),
		Compare:       handler.NewCompareHandler(compareService, cfg.Compare, store),
		Configuration: handler.NewConfigurationHandler(registry),
		Movie:         handler.NewMovieHandler(movieRepo),
		Index:         handler.NewIndexHandler(indexService, dataset.NewLoader(), cfg.Dataset.Path),
		CORS: middleware.CORSConfig{
			AllowedOrigins:  cfg.Server.CORS.AllowedOrigins,
			AllowAllOrigins: cfg.Server.CORS.AllowAllOrigins,
		},
		Logger: appLogger,
	}

	router := api.SetupRouter(deps, cfg.Server.Mode)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.Compare.RequestTimeout + 15*time.Second,
	}

	go func() {
		appLogger.WithField("addr", srv.Addr).Info("Server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.WithError(err).Fatal("Server failed")
		}
	}()

	// Graceful shutdown on SIGINT/SIGTERM
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		appLogger.WithError(err).Error("Forced shutdown")
	}

	appLogger.Info("Server stopped")
}
