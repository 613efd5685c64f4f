package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"testing"

	"github.com/dwang/embedcomp/internal/config"
	"github.com/dwang/embedcomp/internal/domain"
	"github.com/dwang/embedcomp/internal/repository"
)

// fakeProvider returns canned vectors per text. Unknown texts fail loudly so
// tests never silently compare zero vectors.
type fakeProvider struct {
	model   string
	dim     int
	vectors map[string][]float32

	mu         sync.Mutex
	embedCalls int
	queryCalls int
	failTexts  map[string]bool
}

func (p *fakeProvider) Model() string   { return p.model }
func (p *fakeProvider) Dimensions() int { return p.dim }

func (p *fakeProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	p.mu.Lock()
	p.embedCalls++
	p.mu.Unlock()

	out := make([][]float32, len(texts))
	for i, text := range texts {
		if p.failTexts[text] {
			return nil, fmt.Errorf("simulated embed failure for %q", text)
		}
		vec, ok := p.vectors[text]
		if !ok {
			return nil, fmt.Errorf("no canned vector for %q", text)
		}
		out[i] = vec
	}
	return out, nil
}

func (p *fakeProvider) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	p.mu.Lock()
	p.queryCalls++
	p.mu.Unlock()

	vec, ok := p.vectors[query]
	if !ok {
		return nil, fmt.Errorf("no canned vector for query %q", query)
	}
	return vec, nil
}

// memIndex is a brute-force in-memory VectorIndex using cosine similarity.
type memIndex struct {
	dim int

	mu     sync.Mutex
	points map[string]repository.MoviePoint
}

func newMemIndex(dim int) *memIndex {
	return &memIndex{dim: dim, points: make(map[string]repository.MoviePoint)}
}

func (m *memIndex) EnsureCollection(ctx context.Context) error { return nil }
func (m *memIndex) Close() error                               { return nil }

func (m *memIndex) DeleteCollection(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.points = make(map[string]repository.MoviePoint)
	return nil
}

func (m *memIndex) UpsertBatch(ctx context.Context, points []repository.MoviePoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range points {
		if len(p.Vector) != m.dim {
			return fmt.Errorf("vector size %d, collection expects %d", len(p.Vector), m.dim)
		}
		m.points[p.MovieID] = p
	}
	return nil
}

func (m *memIndex) Count(ctx context.Context) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return uint64(len(m.points)), nil
}

func (m *memIndex) Search(ctx context.Context, vector []float32, topK int) ([]repository.SearchResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	results := make([]repository.SearchResult, 0, len(m.points))
	for _, p := range m.points {
		payload := p.Payload
		results = append(results, repository.SearchResult{
			MovieID: p.MovieID,
			Score:   cosine(vector, p.Vector),
			Payload: &payload,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].MovieID < results[j].MovieID
	})

	if topK < len(results) {
		results = results[:topK]
	}
	return results, nil
}

func cosine(a, b []float32) float32 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

// newTestRegistry builds a registry whose providers and indices are in-memory
// fakes, keyed by model name and collection name respectively.
func newTestRegistry(providers map[string]*fakeProvider) (*Registry, map[string]*memIndex) {
	var embeddings []config.EmbeddingConfig
	for _, p := range providers {
		embeddings = append(embeddings, config.EmbeddingConfig{
			Provider:         "jina",
			Model:            p.model,
			Dimensions:       p.dim,
			NativeDimensions: p.dim,
		})
	}

	r := NewRegistry(config.QdrantConfig{CollectionPrefix: "movies"}, embeddings)
	indices := make(map[string]*memIndex)

	r.newProvider = func(cfg *config.EmbeddingConfig) (EmbeddingProvider, error) {
		return providers[cfg.Model], nil
	}
	r.newIndex = func(collection string, dim int) (VectorIndex, error) {
		idx := newMemIndex(dim)
		indices[collection] = idx
		return idx, nil
	}

	return r, indices
}

const (
	ghostOverview   = "A ghost story in an old mansion"
	hauntedOverview = "A haunted vessel adrift at sea"
	comedyOverview  = "A light comedy about friendship"
	ghostQuery      = "ghost movies"
)

func testMovies() []domain.Movie {
	return []domain.Movie{
		{ID: "1", Title: "The Haunting", Overview: ghostOverview},
		{ID: "2", Title: "Ghost Ship", Overview: hauntedOverview},
		{ID: "3", Title: "Funny Times", Overview: comedyOverview},
	}
}

// modelAProvider ranks ghost > haunted > comedy for the ghost query.
func modelAProvider() *fakeProvider {
	return &fakeProvider{
		model: "all-mpnet-base-v2",
		dim:   4,
		vectors: map[string][]float32{
			ghostOverview:   {1, 0, 0, 0},
			hauntedOverview: {0.9, 0.1, 0, 0},
			comedyOverview:  {0, 0, 1, 0},
			ghostQuery:      {1, 0.05, 0, 0},
		},
	}
}

// modelBProvider ranks haunted > ghost > comedy for the same query.
func modelBProvider() *fakeProvider {
	return &fakeProvider{
		model: "all-MiniLM-L6-v2",
		dim:   4,
		vectors: map[string][]float32{
			ghostOverview:   {0.8, 0.2, 0, 0},
			hauntedOverview: {1, 0, 0, 0},
			comedyOverview:  {0, 0, 1, 0},
			ghostQuery:      {1, 0, 0, 0},
		},
	}
}

func buildBothIndexes(t *testing.T, registry *Registry, configs ...domain.Configuration) {
	t.Helper()
	svc := NewIndexService(registry, nil, 2, 2)
	for _, c := range configs {
		if _, err := svc.BuildIndex(context.Background(), c, testMovies(), nil); err != nil {
			t.Fatalf("BuildIndex(%s) failed: %v", c, err)
		}
	}
}

func TestCompareDifferentRankings(t *testing.T) {
	provA := modelAProvider()
	provB := modelBProvider()
	registry, _ := newTestRegistry(map[string]*fakeProvider{
		provA.model: provA,
		provB.model: provB,
	})

	cfgA := domain.Configuration{Model: provA.model, Dimension: 4}
	cfgB := domain.Configuration{Model: provB.model, Dimension: 4}
	buildBothIndexes(t, registry, cfgA, cfgB)

	svc := NewCompareService(registry, nil)
	report, err := svc.Compare(context.Background(), &CompareRequest{
		Query:   ghostQuery,
		ConfigA: cfgA,
		ConfigB: cfgB,
		TopK:    2,
	})
	if err != nil {
		t.Fatalf("Compare failed: %v", err)
	}

	if len(report.A.Hits) != 2 || len(report.B.Hits) != 2 {
		t.Fatalf("Expected 2 hits per side, got %d/%d", len(report.A.Hits), len(report.B.Hits))
	}

	// Side A: ghost story first; side B: haunted vessel first
	if report.A.Hits[0].MovieID != "1" {
		t.Errorf("Side A top hit: got %s, want 1", report.A.Hits[0].MovieID)
	}
	if report.B.Hits[0].MovieID != "2" {
		t.Errorf("Side B top hit: got %s, want 2", report.B.Hits[0].MovieID)
	}

	if report.OverlapCount != 2 {
		t.Errorf("Overlap count: got %d, want 2", report.OverlapCount)
	}
	if report.OverlapRatio != 1.0 {
		t.Errorf("Overlap ratio: got %f, want 1.0", report.OverlapRatio)
	}
	if report.MeanRankDelta != 1.0 {
		t.Errorf("Mean rank delta: got %f, want 1.0", report.MeanRankDelta)
	}
	if report.A.MeanScore <= 0 || report.B.MeanScore <= 0 {
		t.Errorf("Mean scores should be positive: %f/%f", report.A.MeanScore, report.B.MeanScore)
	}

	// Common entries sorted by movie ID with absolute deltas
	if len(report.Common) != 2 {
		t.Fatalf("Expected 2 common entries, got %d", len(report.Common))
	}
	if report.Common[0].MovieID != "1" || report.Common[1].MovieID != "2" {
		t.Errorf("Common entries not sorted by movie ID: %+v", report.Common)
	}
	for _, c := range report.Common {
		if c.Delta < 0 {
			t.Errorf("Delta must be absolute, got %d for %s", c.Delta, c.MovieID)
		}
	}
	if len(report.OnlyA) != 0 || len(report.OnlyB) != 0 {
		t.Errorf("Expected no exclusive hits, got %d/%d", len(report.OnlyA), len(report.OnlyB))
	}
}

func TestCompareOverlapIsSymmetric(t *testing.T) {
	provA := modelAProvider()
	provB := modelBProvider()
	registry, _ := newTestRegistry(map[string]*fakeProvider{
		provA.model: provA,
		provB.model: provB,
	})

	cfgA := domain.Configuration{Model: provA.model, Dimension: 4}
	cfgB := domain.Configuration{Model: provB.model, Dimension: 4}
	buildBothIndexes(t, registry, cfgA, cfgB)

	svc := NewCompareService(registry, nil)
	forward, err := svc.Compare(context.Background(), &CompareRequest{
		Query: ghostQuery, ConfigA: cfgA, ConfigB: cfgB, TopK: 2,
	})
	if err != nil {
		t.Fatalf("Forward compare failed: %v", err)
	}
	reverse, err := svc.Compare(context.Background(), &CompareRequest{
		Query: ghostQuery, ConfigA: cfgB, ConfigB: cfgA, TopK: 2,
	})
	if err != nil {
		t.Fatalf("Reverse compare failed: %v", err)
	}

	if forward.OverlapRatio != reverse.OverlapRatio {
		t.Errorf("Overlap not symmetric: %f != %f", forward.OverlapRatio, reverse.OverlapRatio)
	}
	if forward.MeanRankDelta != reverse.MeanRankDelta {
		t.Errorf("Mean rank delta not symmetric: %f != %f", forward.MeanRankDelta, reverse.MeanRankDelta)
	}
	if len(forward.Common) != len(reverse.Common) {
		t.Fatalf("Intersection sizes differ: %d != %d", len(forward.Common), len(reverse.Common))
	}
	for i := range forward.Common {
		f, r := forward.Common[i], reverse.Common[i]
		if f.MovieID != r.MovieID {
			t.Errorf("Intersection differs at %d: %s != %s", i, f.MovieID, r.MovieID)
		}
		// Ranks swap sides, absolute delta is unchanged
		if f.RankA != r.RankB || f.RankB != r.RankA {
			t.Errorf("Ranks should swap sides for %s: %+v vs %+v", f.MovieID, f, r)
		}
		if f.Delta != r.Delta {
			t.Errorf("Absolute delta differs for %s: %d != %d", f.MovieID, f.Delta, r.Delta)
		}
	}
}

func TestCompareIdenticalConfigurations(t *testing.T) {
	provA := modelAProvider()
	registry, _ := newTestRegistry(map[string]*fakeProvider{provA.model: provA})

	cfg := domain.Configuration{Model: provA.model, Dimension: 4}
	buildBothIndexes(t, registry, cfg)
	queriesBefore := provA.queryCalls

	svc := NewCompareService(registry, nil)
	report, err := svc.Compare(context.Background(), &CompareRequest{
		Query:   ghostQuery,
		ConfigA: cfg,
		ConfigB: cfg,
		TopK:    3,
	})
	if err != nil {
		t.Fatalf("Compare failed: %v", err)
	}

	// Both sides identical
	if len(report.A.Hits) != len(report.B.Hits) {
		t.Fatalf("Sides differ in length: %d != %d", len(report.A.Hits), len(report.B.Hits))
	}
	for i := range report.A.Hits {
		if report.A.Hits[i].MovieID != report.B.Hits[i].MovieID {
			t.Errorf("Sides differ at rank %d: %s != %s",
				i+1, report.A.Hits[i].MovieID, report.B.Hits[i].MovieID)
		}
	}
	if report.OverlapRatio != 1.0 {
		t.Errorf("Overlap ratio: got %f, want 1.0", report.OverlapRatio)
	}
	if report.MeanRankDelta != 0 {
		t.Errorf("Mean rank delta: got %f, want 0", report.MeanRankDelta)
	}

	// The query is still embedded once per side
	if got := provA.queryCalls - queriesBefore; got != 2 {
		t.Errorf("Expected 2 query embeddings, got %d", got)
	}
}

func TestCompareTopKExceedsIndexSize(t *testing.T) {
	provA := modelAProvider()
	provB := modelBProvider()
	registry, _ := newTestRegistry(map[string]*fakeProvider{
		provA.model: provA,
		provB.model: provB,
	})

	cfgA := domain.Configuration{Model: provA.model, Dimension: 4}
	cfgB := domain.Configuration{Model: provB.model, Dimension: 4}
	buildBothIndexes(t, registry, cfgA, cfgB)

	svc := NewCompareService(registry, nil)
	report, err := svc.Compare(context.Background(), &CompareRequest{
		Query:   ghostQuery,
		ConfigA: cfgA,
		ConfigB: cfgB,
		TopK:    50,
	})
	if err != nil {
		t.Fatalf("Compare failed: %v", err)
	}

	if len(report.A.Hits) != 3 || len(report.B.Hits) != 3 {
		t.Fatalf("Expected all 3 records per side, got %d/%d", len(report.A.Hits), len(report.B.Hits))
	}

	// Ratio normalized by actual result size, not the requested topK
	if report.OverlapRatio != 1.0 {
		t.Errorf("Overlap ratio: got %f, want 1.0", report.OverlapRatio)
	}
}

func TestCompareEmptyQuery(t *testing.T) {
	provA := modelAProvider()
	registry, _ := newTestRegistry(map[string]*fakeProvider{provA.model: provA})

	svc := NewCompareService(registry, nil)
	cfg := domain.Configuration{Model: provA.model, Dimension: 4}
	_, err := svc.Compare(context.Background(), &CompareRequest{
		Query:   "   ",
		ConfigA: cfg,
		ConfigB: cfg,
	})
	if err == nil {
		t.Fatal("Expected error for empty query")
	}
	var queryErr *domain.QueryError
	if !errors.As(err, &queryErr) {
		t.Errorf("Expected QueryError, got %T", err)
	}
}

func TestCompareUnregisteredConfiguration(t *testing.T) {
	provA := modelAProvider()
	registry, _ := newTestRegistry(map[string]*fakeProvider{provA.model: provA})

	cfgA := domain.Configuration{Model: provA.model, Dimension: 4}
	buildBothIndexes(t, registry, cfgA)

	svc := NewCompareService(registry, nil)
	_, err := svc.Compare(context.Background(), &CompareRequest{
		Query:   ghostQuery,
		ConfigA: cfgA,
		ConfigB: domain.Configuration{Model: "no-such-model", Dimension: 4},
	})
	if err == nil {
		t.Fatal("Expected error for unregistered configuration")
	}
	var cfgErr *domain.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Errorf("Expected ConfigurationError, got %T", err)
	}
}

func TestCompareEmptyCollectionFails(t *testing.T) {
	provA := modelAProvider()
	provB := modelBProvider()
	registry, _ := newTestRegistry(map[string]*fakeProvider{
		provA.model: provA,
		provB.model: provB,
	})

	cfgA := domain.Configuration{Model: provA.model, Dimension: 4}
	cfgB := domain.Configuration{Model: provB.model, Dimension: 4}
	// Only side A gets indexed
	buildBothIndexes(t, registry, cfgA)

	svc := NewCompareService(registry, nil)
	_, err := svc.Compare(context.Background(), &CompareRequest{
		Query:   ghostQuery,
		ConfigA: cfgA,
		ConfigB: cfgB,
	})
	if err == nil {
		t.Fatal("Expected error for empty collection")
	}
	var queryErr *domain.QueryError
	if !errors.As(err, &queryErr) {
		t.Fatalf("Expected QueryError, got %T", err)
	}
	if queryErr.Collection == "" {
		t.Error("QueryError should name the empty collection")
	}
}
