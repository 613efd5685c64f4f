package service

import (
	"context"
	"errors"
	"testing"

	"github.com/dwang/embedcomp/internal/domain"
)

// fakeMovieReader serves canned movies for enrichment.
type fakeMovieReader struct {
	movies map[string]domain.Movie
}

func (f *fakeMovieReader) GetByIDs(ctx context.Context, ids []string) ([]domain.Movie, error) {
	var out []domain.Movie
	for _, id := range ids {
		if m, ok := f.movies[id]; ok {
			out = append(out, m)
		}
	}
	return out, nil
}

func TestSearchRanksByCosineSimilarity(t *testing.T) {
	prov := modelAProvider()
	registry, _ := newTestRegistry(map[string]*fakeProvider{prov.model: prov})
	cfg := domain.Configuration{Model: prov.model, Dimension: 4}
	buildBothIndexes(t, registry, cfg)

	svc := NewSearchService(registry, nil)
	resp, err := svc.Search(context.Background(), &SearchRequest{
		Query:      ghostQuery,
		Model:      cfg.Model,
		Dimensions: cfg.Dimension,
		TopK:       3,
	})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	if len(resp.Hits) != 3 {
		t.Fatalf("Expected 3 hits, got %d", len(resp.Hits))
	}
	// Ghost story first, comedy last
	if resp.Hits[0].MovieID != "1" {
		t.Errorf("Top hit: got %s, want 1", resp.Hits[0].MovieID)
	}
	if resp.Hits[2].MovieID != "3" {
		t.Errorf("Last hit: got %s, want 3", resp.Hits[2].MovieID)
	}
	// Scores descending
	for i := 1; i < len(resp.Hits); i++ {
		if resp.Hits[i].Score > resp.Hits[i-1].Score {
			t.Errorf("Scores not descending at %d: %f > %f", i, resp.Hits[i].Score, resp.Hits[i-1].Score)
		}
	}
}

func TestSearchEnrichesFromCatalog(t *testing.T) {
	prov := modelAProvider()
	registry, _ := newTestRegistry(map[string]*fakeProvider{prov.model: prov})
	cfg := domain.Configuration{Model: prov.model, Dimension: 4}
	buildBothIndexes(t, registry, cfg)

	catalog := &fakeMovieReader{movies: map[string]domain.Movie{
		"1": {ID: "1", Title: "The Haunting", Overview: ghostOverview},
	}}

	svc := NewSearchService(registry, catalog)
	resp, err := svc.Search(context.Background(), &SearchRequest{
		Query:      ghostQuery,
		Model:      cfg.Model,
		Dimensions: cfg.Dimension,
		TopK:       1,
	})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if resp.Hits[0].Overview != ghostOverview {
		t.Errorf("Overview not enriched: %q", resp.Hits[0].Overview)
	}
}

func TestSearchEmptyCollection(t *testing.T) {
	prov := modelAProvider()
	registry, _ := newTestRegistry(map[string]*fakeProvider{prov.model: prov})

	svc := NewSearchService(registry, nil)
	_, err := svc.Search(context.Background(), &SearchRequest{
		Query:      ghostQuery,
		Model:      prov.model,
		Dimensions: 4,
	})
	if err == nil {
		t.Fatal("Expected error for empty collection")
	}
	var queryErr *domain.QueryError
	if !errors.As(err, &queryErr) {
		t.Errorf("Expected QueryError, got %T", err)
	}
}

func TestSearchEmptyQuery(t *testing.T) {
	prov := modelAProvider()
	registry, _ := newTestRegistry(map[string]*fakeProvider{prov.model: prov})

	svc := NewSearchService(registry, nil)
	_, err := svc.Search(context.Background(), &SearchRequest{
		Query:      "",
		Model:      prov.model,
		Dimensions: 4,
	})
	if err == nil {
		t.Fatal("Expected error for empty query")
	}
	var queryErr *domain.QueryError
	if !errors.As(err, &queryErr) {
		t.Errorf("Expected QueryError, got %T", err)
	}
}
