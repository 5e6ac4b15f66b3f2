// Package vectorstore adapts a Qdrant collection to the VectorSearcher
// port, plus the collection bootstrap and upsert operations the ingestion
// tool needs.
package vectorstore

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"

	"github.com/uov-ai/assistant/internal/ports"
)

// Store is a Qdrant-backed vector index over one collection.
type Store struct {
	client     *qdrant.Client
	collection string
	dimension  int
	logger     *zap.Logger
}

// Config carries the Qdrant connection settings.
type Config struct {
	Host       string
	Port       int
	APIKey     string
	UseTLS     bool
	Collection string
	Dimension  int
}

// NewStore connects to Qdrant over gRPC.
func NewStore(cfg Config, logger *zap.Logger) (*Store, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("connect qdrant at %s:%d: %w", cfg.Host, cfg.Port, err)
	}
	return &Store{
		client:     client,
		collection: cfg.Collection,
		dimension:  cfg.Dimension,
		logger:     logger,
	}, nil
}

// Search returns at most limit points scoring at or above scoreThreshold,
// ranked descending by cosine similarity. Zero hits is a normal outcome.
func (s *Store) Search(ctx context.Context, vector []float32, limit int, scoreThreshold float64) ([]ports.SearchHit, error) {
	lim := uint64(limit)
	threshold := float32(scoreThreshold)

	points, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          &lim,
		ScoreThreshold: &threshold,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("query collection %s: %w", s.collection, err)
	}

	hits := make([]ports.SearchHit, 0, len(points))
	for _, point := range points {
		text, metadata := splitPayload(point.Payload)
		hits = append(hits, ports.SearchHit{
			ID:       pointID(point.Id),
			Score:    float64(point.Score),
			Text:     text,
			Metadata: metadata,
		})
	}
	return hits, nil
}

// Health reports whether Qdrant answers a health check.
func (s *Store) Health(ctx context.Context) bool {
	_, err := s.client.HealthCheck(ctx)
	if err != nil {
		s.logger.Warn("qdrant health check failed", zap.Error(err))
		return false
	}
	return true
}

// EnsureCollection creates the collection with cosine distance if it does
// not already exist.
func (s *Store) EnsureCollection(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("check collection %s: %w", s.collection, err)
	}
	if exists {
		return nil
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(s.dimension),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("create collection %s: %w", s.collection, err)
	}
	s.logger.Info("created collection",
		zap.String("collection", s.collection),
		zap.Int("dimension", s.dimension))
	return nil
}

// Passage is one pre-chunked document passage for indexing.
type Passage struct {
	Text     string
	Metadata map[string]any
}

// UpsertPassages writes passages and their vectors to the collection.
// Point IDs are fresh UUIDs; re-ingesting appends rather than replaces.
func (s *Store) UpsertPassages(ctx context.Context, passages []Passage, vectors [][]float32) error {
	if len(passages) != len(vectors) {
		return fmt.Errorf("passage/vector count mismatch: %d vs %d", len(passages), len(vectors))
	}

	points := make([]*qdrant.PointStruct, len(passages))
	for i, p := range passages {
		payload := make(map[string]any, len(p.Metadata)+1)
		for k, v := range p.Metadata {
			payload[k] = v
		}
		payload["text"] = p.Text

		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(uuid.NewString()),
			Vectors: qdrant.NewVectors(vectors[i]...),
			Payload: qdrant.NewValueMap(payload),
		}
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("upsert %d points into %s: %w", len(points), s.collection, err)
	}
	return nil
}

// pointID renders a Qdrant point ID as a string regardless of variant.
func pointID(id *qdrant.PointId) string {
	if id == nil {
		return ""
	}
	if u := id.GetUuid(); u != "" {
		return u
	}
	return strconv.FormatUint(id.GetNum(), 10)
}

// splitPayload separates the passage text from the rest of the payload.
// The "text" key is the ingestion contract; everything else is metadata.
func splitPayload(payload map[string]*qdrant.Value) (string, map[string]any) {
	metadata := make(map[string]any, len(payload))
	var text string
	for key, value := range payload {
		v := valueToAny(value)
		if key == "text" {
			if s, ok := v.(string); ok {
				text = s
			}
			continue
		}
		metadata[key] = v
	}
	return text, metadata
}

// valueToAny converts a Qdrant payload value into a plain Go value.
func valueToAny(value *qdrant.Value) any {
	if value == nil {
		return nil
	}
	switch kind := value.Kind.(type) {
	case *qdrant.Value_StringValue:
		return kind.StringValue
	case *qdrant.Value_IntegerValue:
		return kind.IntegerValue
	case *qdrant.Value_DoubleValue:
		return kind.DoubleValue
	case *qdrant.Value_BoolValue:
		return kind.BoolValue
	case *qdrant.Value_ListValue:
		items := kind.ListValue.GetValues()
		out := make([]any, len(items))
		for i, item := range items {
			out[i] = valueToAny(item)
		}
		return out
	case *qdrant.Value_StructValue:
		fields := kind.StructValue.GetFields()
		out := make(map[string]any, len(fields))
		for k, item := range fields {
			out[k] = valueToAny(item)
		}
		return out
	default:
		return nil
	}
}
