package service

import (
	"context"
	"strings"
	"time"

	"github.com/dwang/embedcomp/internal/domain"
	"github.com/dwang/embedcomp/internal/logger"
)

const (
	defaultTopK = 5
	maxTopK     = 100
)

// MovieReader reads movie records from the catalog for result enrichment.
type MovieReader interface {
	GetByIDs(ctx context.Context, ids []string) ([]domain.Movie, error)
}

// SearchService runs a semantic query against one embedding configuration.
type SearchService struct {
	registry HandleResolver
	movies   MovieReader // optional
}

// NewSearchService creates a SearchService.
func NewSearchService(registry HandleResolver, movies MovieReader) *SearchService {
	return &SearchService{registry: registry, movies: movies}
}

// SearchRequest describes one semantic query.
type SearchRequest struct {
	Query      string `json:"query" binding:"required"`
	Model      string `json:"model" binding:"required"`
	Dimensions int    `json:"dimensions" binding:"required"`
	TopK       int    `json:"top_k"`
}

// Hit is one ranked search result.
type Hit struct {
	MovieID          string  `json:"movie_id"`
	Title            string  `json:"title"`
	Score            float32 `json:"score"`
	ReleaseDate      string  `json:"release_date,omitempty"`
	OriginalLanguage string  `json:"original_language,omitempty"`
	Overview         string  `json:"overview,omitempty"`
}

// SearchResponse is the result of one semantic query.
type SearchResponse struct {
	Query         string               `json:"query"`
	Configuration domain.Configuration `json:"configuration"`
	Collection    string               `json:"collection"`
	Hits          []Hit                `json:"hits"`
	TookMs        int64                `json:"took_ms"`
}

// Search embeds the query under the requested configuration and returns the
// topK nearest movies, best match first.
func (s *SearchService) Search(ctx context.Context, req *SearchRequest) (*SearchResponse, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, &domain.QueryError{Reason: "query text is empty"}
	}

	cfg := domain.Configuration{Model: req.Model, Dimension: req.Dimensions}
	topK := clampTopK(req.TopK)

	handle, err := s.registry.Ensure(ctx, cfg)
	if err != nil {
		return nil, err
	}

	ctx = logger.SetCollection(ctx, handle.Collection)
	start := time.Now()

	hits, err := searchSide(ctx, handle, req.Query, topK)
	if err != nil {
		return nil, err
	}

	s.enrich(ctx, hits)

	took := time.Since(start)
	logger.With(logger.Fields{
		logger.FieldCount:      len(hits),
		logger.FieldDurationMs: took.Milliseconds(),
	}).Info(ctx, "Search finished: model=%s", cfg.Model)

	return &SearchResponse{
		Query:         req.Query,
		Configuration: cfg,
		Collection:    handle.Collection,
		Hits:          hits,
		TookMs:        took.Milliseconds(),
	}, nil
}

// searchSide embeds a query and runs the vector search for one configuration.
// An empty collection is a hard error: returning zero hits from an unindexed
// collection would look identical to a real no-match result.
func searchSide(ctx context.Context, handle *ConfigHandle, query string, topK int) ([]Hit, error) {
	count, err := handle.Index.Count(ctx)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, &domain.QueryError{
			Collection: handle.Collection,
			Reason:     "collection has no indexed records",
		}
	}

	vector, err := handle.Provider.EmbedQuery(ctx, query)
	if err != nil {
		return nil, err
	}

	results, err := handle.Index.Search(ctx, vector, topK)
	if err != nil {
		return nil, err
	}

	hits := make([]Hit, len(results))
	for i, r := range results {
		hits[i] = Hit{
			MovieID: r.MovieID,
			Score:   r.Score,
		}
		if r.Payload != nil {
			hits[i].Title = r.Payload.Title
			hits[i].ReleaseDate = r.Payload.ReleaseDate
			hits[i].OriginalLanguage = r.Payload.OriginalLanguage
		}
	}
	return hits, nil
}

// enrich fills in catalog fields the vector payload doesn't carry.
// Enrichment is best-effort; a catalog miss never fails the search.
func (s *SearchService) enrich(ctx context.Context, hits []Hit) {
	if s.movies == nil || len(hits) == 0 {
		return
	}

	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.MovieID
	}

	movies, err := s.movies.GetByIDs(ctx, ids)
	if err != nil {
		logger.CtxWarn(ctx, "Catalog enrichment failed: error=%v", err)
		return
	}

	byID := make(map[string]domain.Movie, len(movies))
	for _, m := range movies {
		byID[m.ID] = m
	}

	for i := range hits {
		if m, ok := byID[hits[i].MovieID]; ok {
			hits[i].Overview = m.Overview
			if hits[i].Title == "" {
				hits[i].Title = m.Title
			}
		}
	}
}

func clampTopK(topK int) int {
	if topK <= 0 {
		return defaultTopK
	}
	if topK > maxTopK {
		return maxTopK
	}
	return topK
}
