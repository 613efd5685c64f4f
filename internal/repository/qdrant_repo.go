package repository

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/dwang/embedcomp/internal/domain"
)

// QdrantConnectionConfig holds configuration for one Qdrant collection connection
type QdrantConnectionConfig struct {
	Host            string
	Port            int
	Collection      string
	APIKey          string // Qdrant Cloud API Key (enables TLS automatically)
	UseTLS          bool   // Explicitly enable TLS without API Key
	VectorDimension int
}

// apiKeyInterceptor creates a unary interceptor that adds API key to metadata
func apiKeyInterceptor(apiKey string) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		ctx = metadata.AppendToOutgoingContext(ctx, "api-key", apiKey)
		return invoker(ctx, method, req, reply, cc, opts...)
	}
}

// QdrantRepository handles vector operations against one Qdrant collection.
// Each embedding configuration owns its own collection, so the repository is
// bound to a single collection name and vector dimension at construction.
type QdrantRepository struct {
	conn            *grpc.ClientConn
	pointsClient    pb.PointsClient
	collectClient   pb.CollectionsClient
	collectionName  string
	vectorDimension int
}

// NewQdrantRepository creates a new QdrantRepository
// Supports both local Qdrant (insecure) and Qdrant Cloud (TLS + API Key)
func NewQdrantRepository(cfg *QdrantConnectionConfig) (*QdrantRepository, error) {
	if cfg.VectorDimension <= 0 {
		return nil, fmt.Errorf("vector dimension must be positive, got %d", cfg.VectorDimension)
	}

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	// Build gRPC dial options
	var opts []grpc.DialOption

	// TLS is enabled if: APIKey is set OR UseTLS is explicitly true
	useTLS := cfg.UseTLS || cfg.APIKey != ""

	if useTLS {
		// Use TLS with system root certificates (TLS 1.3 minimum for Qdrant Cloud)
		tlsConfig := &tls.Config{
			MinVersion: tls.VersionTLS13,
		}
		creds := credentials.NewTLS(tlsConfig)
		opts = append(opts, grpc.WithTransportCredentials(creds))

		if cfg.APIKey != "" {
			opts = append(opts, grpc.WithUnaryInterceptor(apiKeyInterceptor(cfg.APIKey)))
		}
	} else {
		// Local mode: no TLS, no authentication
		opts = append(opts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}

	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to qdrant: %w", err)
	}

	return &QdrantRepository{
		conn:            conn,
		pointsClient:    pb.NewPointsClient(conn),
		collectClient:   pb.NewCollectionsClient(conn),
		collectionName:  cfg.Collection,
		vectorDimension: cfg.VectorDimension,
	}, nil
}

// Close closes the gRPC connection
func (r *QdrantRepository) Close() error {
	return r.conn.Close()
}

// Collection returns the collection name this repository is bound to.
func (r *QdrantRepository) Collection() string {
	return r.collectionName
}

// EnsureCollection creates the collection if it doesn't exist.
// If the collection already exists with a different vector size, this is a
// provisioning error: the name encodes model and dimension, so a mismatch
// means the collection was created by an incompatible configuration.
func (r *QdrantRepository) EnsureCollection(ctx context.Context) error {
	info, err := r.collectClient.Get(ctx, &pb.GetCollectionInfoRequest{
		CollectionName: r.collectionName,
	})
	if err == nil {
		if size, ok := collectionVectorSize(info.GetResult()); ok {
			if size != uint64(r.vectorDimension) {
				return &domain.IndexProvisioningError{
					Collection: r.collectionName,
					Err:        fmt.Errorf("existing vector size %d, expected %d", size, r.vectorDimension),
				}
			}
		}
		return nil // Collection exists
	}
	if timeoutErr := asTimeout("get collection info", err); timeoutErr != nil {
		return timeoutErr
	}

	_, err = r.collectClient.Create(ctx, &pb.CreateCollection{
		CollectionName: r.collectionName,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(r.vectorDimension),
					Distance: pb.Distance_Cosine,
				},
			},
		},
		HnswConfig: &pb.HnswConfigDiff{
			M:                 optionalUint64(16),
			EfConstruct:       optionalUint64(128),
			FullScanThreshold: optionalUint64(10000),
		},
	})
	if err != nil {
		if timeoutErr := asTimeout("create collection", err); timeoutErr != nil {
			return timeoutErr
		}
		return &domain.IndexProvisioningError{Collection: r.collectionName, Err: err}
	}

	return nil
}

func optionalUint64(v uint64) *uint64 {
	return &v
}

func collectionVectorSize(info *pb.CollectionInfo) (uint64, bool) {
	if info == nil {
		return 0, false
	}

	config := info.GetConfig()
	if config == nil {
		return 0, false
	}

	params := config.GetParams()
	if params == nil {
		return 0, false
	}

	vectors := params.GetVectorsConfig()
	if vectors == nil {
		return 0, false
	}

	if single := vectors.GetParams(); single != nil {
		if size := single.GetSize(); size > 0 {
			return size, true
		}
	}

	if paramsMap := vectors.GetParamsMap(); paramsMap != nil {
		for _, vectorParams := range paramsMap.GetMap() {
			if vectorParams == nil {
				continue
			}
			if size := vectorParams.GetSize(); size > 0 {
				return size, true
			}
		}
	}

	return 0, false
}

// MoviePayload represents the payload stored with each vector
type MoviePayload struct {
	MovieID          string `json:"movie_id"`
	Title            string `json:"title"`
	ReleaseDate      string `json:"release_date"`
	OriginalLanguage string `json:"original_language"`
	ModelName        string `json:"model_name"`
	Dimensions       int    `json:"dimensions"`
}

// MoviePoint is one vector plus its payload, keyed by the movie ID.
type MoviePoint struct {
	MovieID string
	Vector  []float32
	Payload MoviePayload
}

// UpsertBatch inserts or updates a batch of vectors with payloads.
// On failure the returned UpsertError lists every movie ID in the batch,
// since Qdrant applies the batch atomically.
func (r *QdrantRepository) UpsertBatch(ctx context.Context, points []MoviePoint) error {
	if len(points) == 0 {
		return nil
	}

	pbPoints := make([]*pb.PointStruct, len(points))
	ids := make([]string, len(points))
	for i, p := range points {
		ids[i] = p.MovieID
		pbPoints[i] = &pb.PointStruct{
			Id: PointIDFor(p.MovieID),
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{
					Vector: &pb.Vector{
						Data: p.Vector,
					},
				},
			},
			Payload: map[string]*pb.Value{
				"movie_id":          {Kind: &pb.Value_StringValue{StringValue: p.Payload.MovieID}},
				"title":             {Kind: &pb.Value_StringValue{StringValue: p.Payload.Title}},
				"release_date":      {Kind: &pb.Value_StringValue{StringValue: p.Payload.ReleaseDate}},
				"original_language": {Kind: &pb.Value_StringValue{StringValue: p.Payload.OriginalLanguage}},
				"model_name":        {Kind: &pb.Value_StringValue{StringValue: p.Payload.ModelName}},
				"dimensions":        {Kind: &pb.Value_IntegerValue{IntegerValue: int64(p.Payload.Dimensions)}},
			},
		}
	}

	_, err := r.pointsClient.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: r.collectionName,
		Points:         pbPoints,
	})
	if err != nil {
		if timeoutErr := asTimeout("upsert points", err); timeoutErr != nil {
			return timeoutErr
		}
		return &domain.UpsertError{Collection: r.collectionName, FailedIDs: ids, Err: err}
	}

	return nil
}

// SearchResult represents a search result from Qdrant
type SearchResult struct {
	MovieID string
	Score   float32
	Payload *MoviePayload
}

// Search performs a vector similarity search, returning the topK nearest
// records by cosine similarity, best first.
func (r *QdrantRepository) Search(ctx context.Context, vector []float32, topK int) ([]SearchResult, error) {
	req := &pb.SearchPoints{
		CollectionName: r.collectionName,
		Vector:         vector,
		Limit:          uint64(topK),
		WithPayload: &pb.WithPayloadSelector{
			SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true},
		},
	}

	resp, err := r.pointsClient.Search(ctx, req)
	if err != nil {
		if timeoutErr := asTimeout("search points", err); timeoutErr != nil {
			return nil, timeoutErr
		}
		return nil, &domain.QueryError{Collection: r.collectionName, Reason: "search failed", Err: err}
	}

	results := make([]SearchResult, len(resp.Result))
	for i, scored := range resp.Result {
		payload := parsePayload(scored.Payload)
		movieID := ""
		if payload != nil {
			movieID = payload.MovieID
		}
		results[i] = SearchResult{
			MovieID: movieID,
			Score:   scored.Score,
			Payload: payload,
		}
	}

	return results, nil
}

// Count returns the number of points in the collection.
func (r *QdrantRepository) Count(ctx context.Context) (uint64, error) {
	resp, err := r.pointsClient.Count(ctx, &pb.CountPoints{
		CollectionName: r.collectionName,
		Exact:          optionalBool(true),
	})
	if err != nil {
		if timeoutErr := asTimeout("count points", err); timeoutErr != nil {
			return 0, timeoutErr
		}
		return 0, &domain.QueryError{Collection: r.collectionName, Reason: "count failed", Err: err}
	}
	return resp.GetResult().GetCount(), nil
}

func optionalBool(v bool) *bool {
	return &v
}

// DeleteCollection drops the collection entirely. Used by rebuilds with the
// recreate option.
func (r *QdrantRepository) DeleteCollection(ctx context.Context) error {
	_, err := r.collectClient.Delete(ctx, &pb.DeleteCollection{
		CollectionName: r.collectionName,
	})
	if err != nil {
		if timeoutErr := asTimeout("delete collection", err); timeoutErr != nil {
			return timeoutErr
		}
		return &domain.IndexProvisioningError{Collection: r.collectionName, Err: err}
	}
	return nil
}

func parsePayload(payload map[string]*pb.Value) *MoviePayload {
	if payload == nil {
		return nil
	}

	p := &MoviePayload{}
	if v, ok := payload["movie_id"]; ok {
		p.MovieID = v.GetStringValue()
	}
	if v, ok := payload["title"]; ok {
		p.Title = v.GetStringValue()
	}
	if v, ok := payload["release_date"]; ok {
		p.ReleaseDate = v.GetStringValue()
	}
	if v, ok := payload["original_language"]; ok {
		p.OriginalLanguage = v.GetStringValue()
	}
	if v, ok := payload["model_name"]; ok {
		p.ModelName = v.GetStringValue()
	}
	if v, ok := payload["dimensions"]; ok {
		p.Dimensions = int(v.GetIntegerValue())
	}

	return p
}

// asTimeout converts deadline errors into TimeoutError, returning nil for
// anything else.
func asTimeout(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &domain.TimeoutError{Op: op, Err: err}
	}
	if s, ok := status.FromError(err); ok && s.Code() == codes.DeadlineExceeded {
		return &domain.TimeoutError{Op: op, Err: err}
	}
	return nil
}
