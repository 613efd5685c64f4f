package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dwang/embedcomp/internal/domain"
	"github.com/dwang/embedcomp/internal/logger"
	"github.com/dwang/embedcomp/internal/repository"
)

const (
	defaultIndexWorkers   = 4
	defaultIndexBatchSize = 32
)

// MovieCatalog persists movie records alongside the vector index so search
// results can be enriched without a vector-store round trip.
type MovieCatalog interface {
	UpsertBatch(ctx context.Context, movies []domain.Movie) error
}

// IndexService builds vector collections from movie datasets.
type IndexService struct {
	registry  HandleResolver
	catalog   MovieCatalog // optional
	workers   int
	batchSize int
}

// NewIndexService creates an IndexService.
// Parameters:
//   - registry: resolver for embedding configurations.
//   - catalog: movie catalog store; nil disables catalog persistence.
//   - workers: number of concurrent embed/upsert workers; <=0 uses the default.
//   - batchSize: records per embedding batch; <=0 uses the default.
// Returns:
//   - *IndexService: configured service instance.
func NewIndexService(registry HandleResolver, catalog MovieCatalog, workers, batchSize int) *IndexService {
	if workers <= 0 {
		workers = defaultIndexWorkers
	}
	if batchSize <= 0 {
		batchSize = defaultIndexBatchSize
	}
	return &IndexService{
		registry:  registry,
		catalog:   catalog,
		workers:   workers,
		batchSize: batchSize,
	}
}

// BuildOptions controls an index build run.
type BuildOptions struct {
	// Recreate drops the collection before indexing.
	Recreate bool
	// Limit caps the number of records indexed; 0 means all.
	Limit int
}

// BuildStats reports the outcome of an index build.
type BuildStats struct {
	Collection string        `json:"collection"`
	Total      int           `json:"total"`
	Indexed    int           `json:"indexed"`
	Failed     int           `json:"failed"`
	Duration   time.Duration `json:"duration"`
}

// BuildIndex embeds the movies under the given configuration and upserts them
// into the configuration's collection. Batches are processed concurrently;
// each record's vector depends only on its own overview text, so the final
// index contents are independent of batch boundaries and worker scheduling.
//
// Partial failures are aggregated: the build continues past failed batches
// and the returned UpsertError names exactly the movie ids not written.
func (s *IndexService) BuildIndex(ctx context.Context, cfg domain.Configuration, movies []domain.Movie, opts *BuildOptions) (*BuildStats, error) {
	if opts == nil {
		opts = &BuildOptions{}
	}

	handle, err := s.registry.Ensure(ctx, cfg)
	if err != nil {
		return nil, err
	}

	ctx = logger.SetCollection(ctx, handle.Collection)
	start := time.Now()

	if opts.Recreate {
		logger.CtxInfo(ctx, "Recreating collection before build")
		if err := handle.Index.DeleteCollection(ctx); err != nil {
			return nil, err
		}
		if err := handle.Index.EnsureCollection(ctx); err != nil {
			return nil, err
		}
	}

	if opts.Limit > 0 && opts.Limit < len(movies) {
		movies = movies[:opts.Limit]
	}

	if s.catalog != nil {
		if err := s.catalog.UpsertBatch(ctx, movies); err != nil {
			return nil, err
		}
	}

	batches := make(chan []domain.Movie)
	var wg sync.WaitGroup
	var indexed atomic.Int64

	var mu sync.Mutex
	var failedIDs []string
	var firstErr error

	for i := 0; i < s.workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for batch := range batches {
				select {
				case <-ctx.Done():
					mu.Lock()
					for _, m := range batch {
						failedIDs = append(failedIDs, m.ID)
					}
					if firstErr == nil {
						firstErr = ctx.Err()
					}
					mu.Unlock()
					continue
				default:
				}

				if err := s.indexBatch(ctx, handle, batch); err != nil {
					logger.With(logger.Fields{logger.FieldCount: len(batch)}).
						Error(ctx, "Batch failed: worker=%d, error=%v", workerID, err)
					mu.Lock()
					for _, m := range batch {
						failedIDs = append(failedIDs, m.ID)
					}
					if firstErr == nil {
						firstErr = err
					}
					mu.Unlock()
					continue
				}
				indexed.Add(int64(len(batch)))
			}
		}(i)
	}

	for i := 0; i < len(movies); i += s.batchSize {
		end := i + s.batchSize
		if end > len(movies) {
			end = len(movies)
		}
		batches <- movies[i:end]
	}
	close(batches)
	wg.Wait()

	stats := &BuildStats{
		Collection: handle.Collection,
		Total:      len(movies),
		Indexed:    int(indexed.Load()),
		Failed:     len(failedIDs),
		Duration:   time.Since(start),
	}

	logger.With(logger.Fields{
		logger.FieldCount:      stats.Indexed,
		logger.FieldDurationMs: stats.Duration.Milliseconds(),
	}).Info(ctx, "Index build finished: total=%d, failed=%d", stats.Total, stats.Failed)

	if len(failedIDs) > 0 {
		return stats, &domain.UpsertError{
			Collection: handle.Collection,
			FailedIDs:  failedIDs,
			Err:        firstErr,
		}
	}

	return stats, nil
}

// indexBatch embeds one batch of movies and writes it to the index.
func (s *IndexService) indexBatch(ctx context.Context, handle *ConfigHandle, batch []domain.Movie) error {
	texts := make([]string, len(batch))
	for i, m := range batch {
		texts[i] = m.Overview
	}

	vectors, err := handle.Provider.Embed(ctx, texts)
	if err != nil {
		return err
	}

	points := make([]repository.MoviePoint, len(batch))
	for i, m := range batch {
		points[i] = repository.MoviePoint{
			MovieID: m.ID,
			Vector:  vectors[i],
			Payload: repository.MoviePayload{
				MovieID:          m.ID,
				Title:            m.Title,
				ReleaseDate:      m.ReleaseDate,
				OriginalLanguage: m.OriginalLanguage,
				ModelName:        handle.Config.Model,
				Dimensions:       handle.Config.Dimension,
			},
		}
	}

	return handle.Index.UpsertBatch(ctx, points)
}
