package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/dwang/embedcomp/internal/config"
	"github.com/dwang/embedcomp/internal/dataset"
	"github.com/dwang/embedcomp/internal/domain"
	"github.com/dwang/embedcomp/internal/logger"
	"github.com/dwang/embedcomp/internal/repository"
	"github.com/dwang/embedcomp/internal/service"
	"github.com/dwang/embedcomp/internal/storage"
)

func main() {
	// Initialize logger first (with defaults)
	appLogger := logger.New(&logger.Config{
		Level:       "info",
		Format:      "json",
		ServiceName: "embedcomp-ingest",
	})
	logger.SetDefaultLogger(appLogger)

	configPath := flag.String("config", "", "Path to config file")
	datasetPath := flag.String("dataset", "", "Local CSV dataset path (overrides config)")
	datasetKey := flag.String("dataset-key", "", "Object storage key for the dataset CSV")
	models := flag.String("models", "", "Comma-separated model/dim pairs to index, e.g. all-MiniLM-L6-v2:384 (default: all configured)")
	limit := flag.Int("limit", 0, "Maximum number of records to index (0 = all)")
	recreate := flag.Bool("recreate", false, "Drop and recreate collections before indexing")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load config")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Initialize database for the movie catalog
	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize database")
	}
	movieRepo := repository.NewMovieRepository(db)

	// Load dataset from storage or local file
	loader := dataset.NewLoader()
	var movies []domain.Movie
	switch {
	case *datasetKey != "":
		store, err := storage.NewStorage(&storage.S3Config{
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
			appLogger.WithError(err).Fatal("Failed to initialize storage")
		}
		exists, err := store.Exists(ctx, *datasetKey)
		if err != nil {
			appLogger.WithError(err).Fatal("Failed to check dataset object")
		}
		if !exists {
			appLogger.WithField("key", *datasetKey).Fatal("Dataset object not found in bucket")
		}
		movies, err = loader.LoadFromStorage(ctx, store, *datasetKey)
		if err != nil {
			appLogger.WithError(err).Fatal("Failed to load dataset from storage")
		}
	default:
		path := *datasetPath
		if path == "" {
			path = cfg.Dataset.Path
		}
		movies, err = loader.LoadFile(path)
		if err != nil {
			appLogger.WithError(err).Fatal("Failed to load dataset")
		}
	}

	appLogger.WithFields(logger.Fields{
		"count":    len(movies),
		"limit":    *limit,
		"recreate": *recreate,
	}).Info("Dataset loaded")

	// Resolve which configurations to index
	registry := service.NewRegistry(cfg.Qdrant, cfg.Embeddings)
	defer registry.Close()

	configs, err := selectConfigurations(registry, *models)
	if err != nil {
		appLogger.WithError(err).Fatal("Invalid -models flag")
	}

	indexService := service.NewIndexService(registry, movieRepo, cfg.Index.Workers, cfg.Index.BatchSize)

	failed := 0
	for _, c := range configs {
		stats, err := indexService.BuildIndex(ctx, c, movies, &service.BuildOptions{
			Limit:    *limit,
			Recreate: *recreate,
		})
		if err != nil {
			appLogger.WithError(err).Error("Index build failed: configuration=" + c.String())
			failed++
			continue
		}
		appLogger.WithFields(logger.Fields{
			"collection": stats.Collection,
			"indexed":    stats.Indexed,
			"duration":   stats.Duration.String(),
		}).Info("Index build finished: configuration=" + c.String())
	}

	if failed > 0 {
		os.Exit(1)
	}
}

// selectConfigurations parses the -models flag into configurations, falling
// back to every registered configuration when the flag is empty.
func selectConfigurations(registry *service.Registry, models string) ([]domain.Configuration, error) {
	if models == "" {
		return registry.Configurations(), nil
	}

	var configs []domain.Configuration
	for _, part := range strings.Split(models, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		c, err := parseModelSpec(part)
		if err != nil {
			return nil, err
		}
		configs = append(configs, c)
	}
	return configs, nil
}

func parseModelSpec(spec string) (domain.Configuration, error) {
	idx := strings.LastIndex(spec, ":")
	if idx <= 0 || idx == len(spec)-1 {
		return domain.Configuration{}, &domain.ConfigurationError{
			Model:  spec,
			Reason: "expected model:dimensions",
		}
	}

	model := spec[:idx]
	var dim int
	for _, r := range spec[idx+1:] {
		if r < '0' || r > '9' {
			return domain.Configuration{}, &domain.ConfigurationError{
				Model:  model,
				Reason: "dimensions must be numeric",
			}
		}
		dim = dim*10 + int(r-'0')
	}

	return domain.Configuration{Model: model, Dimension: dim}, nil
}
