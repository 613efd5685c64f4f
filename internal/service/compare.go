package service

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dwang/embedcomp/internal/domain"
	"github.com/dwang/embedcomp/internal/logger"
)

// CompareService runs one query against two embedding configurations and
// reports how their result lists differ.
type CompareService struct {
	registry HandleResolver
	movies   MovieReader // optional
}

// NewCompareService creates a CompareService.
func NewCompareService(registry HandleResolver, movies MovieReader) *CompareService {
	return &CompareService{registry: registry, movies: movies}
}

// CompareRequest describes one side-by-side comparison.
type CompareRequest struct {
	Query   string               `json:"query" binding:"required"`
	ConfigA domain.Configuration `json:"config_a" binding:"required"`
	ConfigB domain.Configuration `json:"config_b" binding:"required"`
	TopK    int                  `json:"top_k"`
}

// SideResult holds one configuration's ranked results.
type SideResult struct {
	Configuration domain.Configuration `json:"configuration"`
	Collection    string               `json:"collection"`
	Hits          []Hit                `json:"hits"`
	MeanScore     float64              `json:"mean_score"`
	TookMs        int64                `json:"took_ms"`
}

// RankDelta describes one movie returned by both configurations.
// Ranks are 0-based (rank 0 = most similar); Delta is the absolute
// difference between the two ranks.
type RankDelta struct {
	MovieID string `json:"movie_id"`
	Title   string `json:"title"`
	RankA   int    `json:"rank_a"`
	RankB   int    `json:"rank_b"`
	Delta   int    `json:"delta"`
}

// ComparisonReport is the full outcome of one comparison.
type ComparisonReport struct {
	CompareID     string      `json:"compare_id"`
	Query         string      `json:"query"`
	TopK          int         `json:"top_k"`
	A             SideResult  `json:"a"`
	B             SideResult  `json:"b"`
	Common        []RankDelta `json:"common"`
	OnlyA         []Hit       `json:"only_a"`
	OnlyB         []Hit       `json:"only_b"`
	OverlapCount  int         `json:"overlap_count"`
	OverlapRatio  float64     `json:"overlap_ratio"`
	MeanRankDelta float64     `json:"mean_rank_delta"`
	TookMs        int64       `json:"took_ms"`

	// ReportURL is set when the report was exported to object storage.
	ReportURL string `json:"report_url,omitempty"`
}

// Compare runs the query under both configurations and builds the report.
//
// Both configurations are validated up front, before any embedding call.
// The query is embedded independently per side even when the two
// configurations share a model: each side's vector must come from that
// side's provider so the comparison measures exactly what each
// configuration would return on its own. The two sides run concurrently.
func (s *CompareService) Compare(ctx context.Context, req *CompareRequest) (*ComparisonReport, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, &domain.QueryError{Reason: "query text is empty"}
	}

	topK := clampTopK(req.TopK)

	handleA, err := s.registry.Ensure(ctx, req.ConfigA)
	if err != nil {
		return nil, err
	}
	handleB, err := s.registry.Ensure(ctx, req.ConfigB)
	if err != nil {
		return nil, err
	}

	compareID := uuid.New().String()
	ctx = logger.SetCompareID(ctx, compareID)
	start := time.Now()

	sides := [2]SideResult{
		{Configuration: req.ConfigA, Collection: handleA.Collection},
		{Configuration: req.ConfigB, Collection: handleB.Collection},
	}
	handles := [2]*ConfigHandle{handleA, handleB}
	var errs [2]error

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sideStart := time.Now()
			hits, err := searchSide(ctx, handles[i], req.Query, topK)
			if err != nil {
				errs[i] = err
				return
			}
			sides[i].Hits = hits
			sides[i].MeanScore = meanScore(hits)
			sides[i].TookMs = time.Since(sideStart).Milliseconds()
		}(i)
	}
	wg.Wait()

	for i := 0; i < 2; i++ {
		if errs[i] != nil {
			return nil, errs[i]
		}
	}

	s.enrich(ctx, sides[0].Hits)
	s.enrich(ctx, sides[1].Hits)

	report := &ComparisonReport{
		CompareID: compareID,
		Query:     req.Query,
		TopK:      topK,
		A:         sides[0],
		B:         sides[1],
		TookMs:    time.Since(start).Milliseconds(),
	}
	diffSides(report)

	logger.With(logger.Fields{
		logger.FieldDurationMs: report.TookMs,
		logger.FieldCount:      report.OverlapCount,
	}).Info(ctx, "Comparison finished: a=%s, b=%s, overlap=%.2f",
		req.ConfigA, req.ConfigB, report.OverlapRatio)

	return report, nil
}

// enrich fills in catalog fields for both sides' hits.
func (s *CompareService) enrich(ctx context.Context, hits []Hit) {
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

// diffSides computes overlap and rank statistics between the two sides.
//
// The overlap ratio is normalized by the smaller of the requested topK and
// the two actual result lengths, so a sparsely populated index cannot push
// the ratio below what the data allows. Common entries are sorted by movie
// ID for deterministic output.
func diffSides(report *ComparisonReport) {
	ranksA := rankByID(report.A.Hits)
	ranksB := rankByID(report.B.Hits)

	for _, hit := range report.A.Hits {
		rankA := ranksA[hit.MovieID]
		rankB, inB := ranksB[hit.MovieID]
		if !inB {
			report.OnlyA = append(report.OnlyA, hit)
			continue
		}
		delta := rankA - rankB
		if delta < 0 {
			delta = -delta
		}
		report.Common = append(report.Common, RankDelta{
			MovieID: hit.MovieID,
			Title:   hit.Title,
			RankA:   rankA,
			RankB:   rankB,
			Delta:   delta,
		})
	}

	for _, hit := range report.B.Hits {
		if _, inA := ranksA[hit.MovieID]; !inA {
			report.OnlyB = append(report.OnlyB, hit)
		}
	}

	sort.Slice(report.Common, func(i, j int) bool {
		return report.Common[i].MovieID < report.Common[j].MovieID
	})

	report.OverlapCount = len(report.Common)

	denom := report.TopK
	if len(report.A.Hits) < denom {
		denom = len(report.A.Hits)
	}
	if len(report.B.Hits) < denom {
		denom = len(report.B.Hits)
	}
	if denom > 0 {
		report.OverlapRatio = float64(report.OverlapCount) / float64(denom)
	}

	if len(report.Common) > 0 {
		var sum int
		for _, c := range report.Common {
			sum += c.Delta
		}
		report.MeanRankDelta = float64(sum) / float64(len(report.Common))
	}
}

// rankByID maps movie IDs to their 0-based rank in the hit list.
func rankByID(hits []Hit) map[string]int {
	ranks := make(map[string]int, len(hits))
	for i, h := range hits {
		if _, seen := ranks[h.MovieID]; !seen {
			ranks[h.MovieID] = i
		}
	}
	return ranks
}

// meanScore averages the similarity scores of a hit list; 0 for no hits.
func meanScore(hits []Hit) float64 {
	if len(hits) == 0 {
		return 0
	}
	var sum float64
	for _, h := range hits {
		sum += float64(h.Score)
	}
	return sum / float64(len(hits))
}
