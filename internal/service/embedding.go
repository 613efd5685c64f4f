package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/go-resty/resty/v2"

	"github.com/dwang/embedcomp/internal/config"
	"github.com/dwang/embedcomp/internal/domain"
)

const (
	jinaEndpoint = "https://api.jina.ai/v1/embeddings"
)

// EmbeddingProvider generates vector embeddings for texts under one fixed
// (model, dimension) configuration. Implementations must be safe for
// concurrent use.
type EmbeddingProvider interface {
	// Embed generates passage embeddings for a batch of texts, one vector per
	// input, in input order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedQuery generates an embedding optimized for query/search.
	EmbedQuery(ctx context.Context, query string) ([]float32, error)

	// Model returns the model identifier.
	Model() string

	// Dimensions returns the output vector dimension.
	Dimensions() int
}

// NewEmbeddingProvider constructs a provider from an embedding configuration.
// The configuration is validated before any network client is built; invalid
// model/dimension pairings surface as *domain.ConfigurationError.
func NewEmbeddingProvider(cfg *config.EmbeddingConfig) (EmbeddingProvider, error) {
	resolved := cfg.Clone()
	resolved.ResolveEnvVars()

	if err := resolved.ValidateWithAPIKey(); err != nil {
		return nil, err
	}

	switch resolved.Provider {
	case "jina":
		return newJinaProvider(resolved), nil
	case "openai-compatible":
		return newOpenAIProvider(resolved), nil
	default:
		return nil, &domain.ConfigurationError{
			Model:     resolved.Model,
			Dimension: resolved.Dimensions,
			Reason:    fmt.Sprintf("unknown provider %q", resolved.Provider),
		}
	}
}

// jinaProvider calls the Jina embeddings API.
type jinaProvider struct {
	client     *resty.Client
	model      string
	dimensions int
}

func newJinaProvider(cfg *config.EmbeddingConfig) *jinaProvider {
	client := resty.New()
	client.SetHeader("Authorization", "Bearer "+cfg.APIKey)
	client.SetHeader("Content-Type", "application/json")

	return &jinaProvider{
		client:     client,
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
	}
}

func (p *jinaProvider) Model() string   { return p.model }
func (p *jinaProvider) Dimensions() int { return p.dimensions }

// Jina API request/response structures
type jinaRequest struct {
	Model         string   `json:"model"`
	Task          string   `json:"task,omitempty"`
	Dimensions    int      `json:"dimensions,omitempty"`
	Input         []string `json:"input"`
	EmbeddingType string   `json:"embedding_type,omitempty"`
}

type jinaResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
	Detail string `json:"detail,omitempty"`
}

// Embed generates passage embeddings for a batch of texts.
func (p *jinaProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	req := jinaRequest{
		Model:         p.model,
		Task:          "retrieval.passage", // Optimized for retrieval
		Dimensions:    p.dimensions,
		Input:         texts,
		EmbeddingType: "float",
	}

	var resp jinaResponse
	httpResp, err := p.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&resp).
		Post(jinaEndpoint)

	if err != nil {
		return nil, wrapEmbedErr("embed batch", err)
	}

	if httpResp.StatusCode() != 200 {
		if resp.Detail != "" {
			return nil, fmt.Errorf("Jina API error: %s", resp.Detail)
		}
		return nil, fmt.Errorf("Jina API error: status %d", httpResp.StatusCode())
	}

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("unexpected number of embeddings: got %d, expected %d", len(resp.Data), len(texts))
	}

	// Sort by index to ensure correct order
	embeddings := make([][]float32, len(texts))
	for _, item := range resp.Data {
		if item.Index < len(embeddings) {
			embeddings[item.Index] = reduceVector(item.Embedding, p.dimensions)
		}
	}

	return embeddings, nil
}

// EmbedQuery generates an embedding optimized for query/search.
func (p *jinaProvider) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	req := jinaRequest{
		Model:         p.model,
		Task:          "retrieval.query", // Optimized for query
		Dimensions:    p.dimensions,
		Input:         []string{query},
		EmbeddingType: "float",
	}

	var resp jinaResponse
	httpResp, err := p.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&resp).
		Post(jinaEndpoint)

	if err != nil {
		return nil, wrapEmbedErr("embed query", err)
	}

	if httpResp.StatusCode() != 200 {
		if resp.Detail != "" {
			return nil, fmt.Errorf("Jina API error: %s", resp.Detail)
		}
		return nil, fmt.Errorf("Jina API error: status %d", httpResp.StatusCode())
	}

	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("no embedding returned")
	}

	return reduceVector(resp.Data[0].Embedding, p.dimensions), nil
}

// openAIProvider calls any OpenAI-compatible /embeddings endpoint.
type openAIProvider struct {
	client     *resty.Client
	endpoint   string
	model      string
	dimensions int
}

func newOpenAIProvider(cfg *config.EmbeddingConfig) *openAIProvider {
	client := resty.New()
	client.SetHeader("Authorization", "Bearer "+cfg.APIKey)
	client.SetHeader("Content-Type", "application/json")

	return &openAIProvider{
		client:     client,
		endpoint:   cfg.BaseURL + "/embeddings",
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
	}
}

func (p *openAIProvider) Model() string   { return p.model }
func (p *openAIProvider) Dimensions() int { return p.dimensions }

type openAIRequest struct {
	Model      string   `json:"model"`
	Input      []string `json:"input"`
	Dimensions int      `json:"dimensions,omitempty"`
}

type openAIResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (p *openAIProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	req := openAIRequest{
		Model:      p.model,
		Input:      texts,
		Dimensions: p.dimensions,
	}

	var resp openAIResponse
	httpResp, err := p.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&resp).
		Post(p.endpoint)

	if err != nil {
		return nil, wrapEmbedErr("embed batch", err)
	}

	if httpResp.StatusCode() != 200 {
		if resp.Error != nil {
			return nil, fmt.Errorf("embeddings API error: %s", resp.Error.Message)
		}
		return nil, fmt.Errorf("embeddings API error: status %d", httpResp.StatusCode())
	}

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("unexpected number of embeddings: got %d, expected %d", len(resp.Data), len(texts))
	}

	embeddings := make([][]float32, len(texts))
	for _, item := range resp.Data {
		if item.Index < len(embeddings) {
			embeddings[item.Index] = reduceVector(item.Embedding, p.dimensions)
		}
	}

	return embeddings, nil
}

func (p *openAIProvider) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	embeddings, err := p.Embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("no embedding returned")
	}
	return embeddings[0], nil
}

// reduceVector truncates a vector to dim entries and renormalizes to unit
// length. Some providers ignore the dimensions request parameter and return
// native-length vectors; Matryoshka-style truncation keeps cosine ranking
// meaningful as long as the result is renormalized.
func reduceVector(vec []float32, dim int) []float32 {
	if dim <= 0 || len(vec) <= dim {
		return vec
	}

	reduced := make([]float32, dim)
	copy(reduced, vec[:dim])

	var norm float64
	for _, v := range reduced {
		norm += float64(v) * float64(v)
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		return reduced
	}

	for i := range reduced {
		reduced[i] = float32(float64(reduced[i]) / norm)
	}
	return reduced
}

// wrapEmbedErr converts deadline errors into TimeoutError and wraps the rest.
func wrapEmbedErr(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || os.IsTimeout(err) {
		return &domain.TimeoutError{Op: op, Err: err}
	}
	return fmt.Errorf("%s: %w", op, err)
}
