package service

import (
	"context"
	"sync"

	"github.com/dwang/embedcomp/internal/config"
	"github.com/dwang/embedcomp/internal/domain"
	"github.com/dwang/embedcomp/internal/logger"
	"github.com/dwang/embedcomp/internal/repository"
)

// VectorIndex is the per-collection vector store surface the services depend
// on. repository.QdrantRepository is the production implementation.
type VectorIndex interface {
	EnsureCollection(ctx context.Context) error
	UpsertBatch(ctx context.Context, points []repository.MoviePoint) error
	Search(ctx context.Context, vector []float32, topK int) ([]repository.SearchResult, error)
	Count(ctx context.Context) (uint64, error)
	DeleteCollection(ctx context.Context) error
	Close() error
}

// ConfigHandle bundles everything needed to work with one embedding
// configuration: its provider, its collection name, and its vector index.
type ConfigHandle struct {
	Config     domain.Configuration
	Collection string
	Provider   EmbeddingProvider
	Index      VectorIndex
}

// HandleResolver resolves a configuration to a ready-to-use handle. Registry
// is the production implementation.
type HandleResolver interface {
	Ensure(ctx context.Context, c domain.Configuration) (*ConfigHandle, error)
}

// Registry manages embedding configurations, their providers, and their
// vector collections. Providers and index connections are created lazily on
// first use of each configuration, at most once per configuration; a failed
// initialization is not cached, so transient outages can be retried.
type Registry struct {
	qdrant  config.QdrantConfig
	configs map[string]*config.EmbeddingConfig // keyed by collection name

	mu      sync.Mutex
	handles map[string]*ConfigHandle

	// Overridable constructors, swapped in tests.
	newProvider func(cfg *config.EmbeddingConfig) (EmbeddingProvider, error)
	newIndex    func(collection string, dimension int) (VectorIndex, error)
}

// NewRegistry creates a registry over the configured embeddings.
func NewRegistry(qdrant config.QdrantConfig, embeddings []config.EmbeddingConfig) *Registry {
	r := &Registry{
		qdrant:  qdrant,
		configs: make(map[string]*config.EmbeddingConfig, len(embeddings)),
		handles: make(map[string]*ConfigHandle),
	}

	r.newProvider = func(cfg *config.EmbeddingConfig) (EmbeddingProvider, error) {
		return NewEmbeddingProvider(cfg)
	}
	r.newIndex = func(collection string, dimension int) (VectorIndex, error) {
		return repository.NewQdrantRepository(&repository.QdrantConnectionConfig{
			Host:            r.qdrant.Host,
			Port:            r.qdrant.Port,
			Collection:      collection,
			APIKey:          r.qdrant.APIKey,
			UseTLS:          r.qdrant.UseTLS,
			VectorDimension: dimension,
		})
	}

	for i := range embeddings {
		embCfg := embeddings[i].Clone()
		key := embCfg.Configuration().CollectionName(qdrant.CollectionPrefix)
		r.configs[key] = embCfg
	}

	return r
}

// Resolve validates a configuration and returns its embedding config without
// initializing any provider or connection. Unknown or invalid configurations
// fail with *domain.ConfigurationError before any network work happens.
func (r *Registry) Resolve(c domain.Configuration) (*config.EmbeddingConfig, string, error) {
	key := c.CollectionName(r.qdrant.CollectionPrefix)

	embCfg, ok := r.configs[key]
	if !ok {
		return nil, "", &domain.ConfigurationError{
			Model:     c.Model,
			Dimension: c.Dimension,
			Reason:    "configuration is not registered",
		}
	}

	if err := c.Validate(embCfg.NativeDimension()); err != nil {
		return nil, "", err
	}

	return embCfg, key, nil
}

// Ensure returns a ready handle for the configuration, creating the provider
// and collection on first use.
func (r *Registry) Ensure(ctx context.Context, c domain.Configuration) (*ConfigHandle, error) {
	embCfg, key, err := r.Resolve(c)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if handle, ok := r.handles[key]; ok {
		return handle, nil
	}

	provider, err := r.newProvider(embCfg)
	if err != nil {
		return nil, err
	}

	index, err := r.newIndex(key, c.Dimension)
	if err != nil {
		return nil, &domain.IndexProvisioningError{Collection: key, Err: err}
	}

	if err := index.EnsureCollection(ctx); err != nil {
		index.Close()
		return nil, err
	}

	handle := &ConfigHandle{
		Config:     c,
		Collection: key,
		Provider:   provider,
		Index:      index,
	}
	r.handles[key] = handle

	logger.CtxInfo(ctx, "Initialized embedding configuration: model=%s, dim=%d, collection=%s",
		c.Model, c.Dimension, key)

	return handle, nil
}

// CollectionFor returns the collection name a configuration maps to under
// this registry's prefix.
func (r *Registry) CollectionFor(c domain.Configuration) string {
	return c.CollectionName(r.qdrant.CollectionPrefix)
}

// Configurations returns every registered configuration.
func (r *Registry) Configurations() []domain.Configuration {
	configs := make([]domain.Configuration, 0, len(r.configs))
	for _, embCfg := range r.configs {
		configs = append(configs, embCfg.Configuration())
	}
	return configs
}

// Count returns the number of registered configurations.
func (r *Registry) Count() int {
	return len(r.configs)
}

// EnsureCollections eagerly initializes every registered configuration.
// Errors are logged per configuration; the last one is returned.
func (r *Registry) EnsureCollections(ctx context.Context) error {
	var lastErr error
	for _, embCfg := range r.configs {
		if _, err := r.Ensure(ctx, embCfg.Configuration()); err != nil {
			logger.CtxWarn(ctx, "Failed to initialize configuration: model=%s, error=%v", embCfg.Model, err)
			lastErr = err
		}
	}
	return lastErr
}

// Close releases all initialized index connections.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for key, handle := range r.handles {
		if err := handle.Index.Close(); err != nil {
			logger.Warn("Error closing vector index: collection=%s, error=%v", key, err)
		}
	}
	r.handles = make(map[string]*ConfigHandle)
}
