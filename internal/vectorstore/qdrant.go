package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	grpccodes "google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/fyrsmithlabs/ragbrain/internal/documents"
	"github.com/fyrsmithlabs/ragbrain/internal/logging"
)

var qdrantTracer = otel.Tracer("github.com/fyrsmithlabs/ragbrain/internal/vectorstore/qdrant")

// Payload keys written on every point.
const (
	payloadBusinessID = "business_id"
	payloadDocID      = "doc_id"
	payloadTitle      = "title"
	payloadContent    = "content"
	payloadMetadata   = "metadata"
	payloadCreatedAt  = "created_at"
)

// QdrantConfig holds connection and collection settings.
type QdrantConfig struct {
	Host       string
	Port       int
	UseTLS     bool
	APIKey     string
	Collection string
	Dimension  int

	// MaxMessageSize caps gRPC messages in bytes. Default 50MB.
	MaxMessageSize int
}

// ApplyDefaults fills unset fields.
func (c *QdrantConfig) ApplyDefaults() {
	if c.Port == 0 {
		c.Port = 6334
	}
	if c.MaxMessageSize == 0 {
		c.MaxMessageSize = 50 * 1024 * 1024
	}
}

// Validate checks the configuration.
func (c QdrantConfig) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("%w: host required", ErrInvalidConfig)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("%w: invalid port %d", ErrInvalidConfig, c.Port)
	}
	if c.Dimension <= 0 {
		return fmt.Errorf("%w: dimension must be positive", ErrInvalidConfig)
	}
	return ValidateCollectionName(c.Collection)
}

// QdrantStore is a documents.Store on a single Qdrant collection. Tenants
// share the collection and are separated by a business_id keyword filter.
type QdrantStore struct {
	client *qdrant.Client
	config QdrantConfig
	logger *logging.Logger
	tracer trace.Tracer
}

// NewQdrantStore connects, health-checks and ensures the collection exists.
func NewQdrantStore(ctx context.Context, cfg QdrantConfig, logger *logging.Logger) (*QdrantStore, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logger.Named("qdrant")
	if !cfg.UseTLS {
		logger.Warn(ctx, "qdrant gRPC using plaintext", zap.String("host", cfg.Host))
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		UseTLS: cfg.UseTLS,
		APIKey: cfg.APIKey,
		GrpcOptions: []grpc.DialOption{
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(cfg.MaxMessageSize),
				grpc.MaxCallSendMsgSize(cfg.MaxMessageSize),
			),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("creating qdrant client: %w", err)
	}

	s := &QdrantStore{client: client, config: cfg, logger: logger, tracer: qdrantTracer}
	if err := s.Ping(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}
	if err := s.ensureCollection(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}
	return s, nil
}

// Ping runs the Qdrant health check.
func (s *QdrantStore) Ping(ctx context.Context) (err error) {
	ctx, span := s.tracer.Start(ctx, "QdrantStore.HealthCheck")
	defer span.End()
	defer observe(backendQdrant, "ping", time.Now(), &err)

	if _, err = s.client.HealthCheck(ctx); err != nil {
		recordSpanError(span, err)
		return fmt.Errorf("qdrant health check: %w", err)
	}
	return nil
}

// Close closes the gRPC connection.
func (s *QdrantStore) Close() error {
	return s.client.Close()
}

func (s *QdrantStore) ensureCollection(ctx context.Context) error {
	ctx, span := s.tracer.Start(ctx, "QdrantStore.EnsureCollection",
		trace.WithAttributes(attribute.String("collection", s.config.Collection)))
	defer span.End()

	_, err := s.client.GetCollectionInfo(ctx, s.config.Collection)
	if err == nil {
		return nil
	}
	if st, ok := status.FromError(err); !ok || st.Code() != grpccodes.NotFound {
		recordSpanError(span, err)
		return fmt.Errorf("checking collection %s: %w", s.config.Collection, err)
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.config.Collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(s.config.Dimension),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		recordSpanError(span, err)
		return fmt.Errorf("creating collection %s: %w", s.config.Collection, err)
	}
	_, err = s.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
		CollectionName: s.config.Collection,
		FieldName:      payloadBusinessID,
		FieldType:      qdrant.PtrOf(qdrant.FieldType_FieldTypeKeyword),
	})
	if err != nil {
		recordSpanError(span, err)
		return fmt.Errorf("indexing %s: %w", payloadBusinessID, err)
	}
	s.logger.Info(ctx, "collection created",
		zap.String("collection", s.config.Collection),
		zap.Int("dimension", s.config.Dimension))
	return nil
}

func stringValue(v string) *qdrant.Value {
	return &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: v}}
}

// Add upserts the document as one point.
func (s *QdrantStore) Add(ctx context.Context, d documents.Document) (_ documents.Document, err error) {
	ctx, span := s.tracer.Start(ctx, "QdrantStore.Add")
	defer span.End()
	defer observe(backendQdrant, "add", time.Now(), &err)

	if err = d.Validate(); err != nil {
		return d, err
	}
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}
	if d.Metadata == nil {
		d.Metadata = map[string]any{}
	}
	if len(d.Embedding) == 0 {
		SkippedWrites.WithLabelValues(backendQdrant, "no_embedding").Inc()
		s.logger.Warn(ctx, "document has no embedding, not written", zap.String("id", d.ID))
		return d, nil
	}
	if len(d.Embedding) != s.config.Dimension {
		return d, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(d.Embedding), s.config.Dimension)
	}

	meta, err := json.Marshal(d.Metadata)
	if err != nil {
		return d, fmt.Errorf("encoding metadata: %w", err)
	}

	_, err = s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.config.Collection,
		Wait:           qdrant.PtrOf(true),
		Points: []*qdrant.PointStruct{{
			Id:      qdrant.NewIDUUID(d.ID),
			Vectors: qdrant.NewVectors(d.Embedding...),
			Payload: map[string]*qdrant.Value{
				payloadBusinessID: stringValue(d.BusinessID),
				payloadDocID:      stringValue(d.DocID),
				payloadTitle:      stringValue(d.Title),
				payloadContent:    stringValue(d.Content),
				payloadMetadata:   stringValue(string(meta)),
				payloadCreatedAt:  stringValue(d.CreatedAt.Format(time.RFC3339Nano)),
			},
		}},
	})
	if err != nil {
		recordSpanError(span, err)
		return d, fmt.Errorf("upserting to collection %s: %w", s.config.Collection, err)
	}
	return d, nil
}

// Similar returns the tenant's documents nearest to query.
func (s *QdrantStore) Similar(ctx context.Context, businessID string, query []float32, limit int) (_ []documents.Document, err error) {
	ctx, span := s.tracer.Start(ctx, "QdrantStore.Similar",
		trace.WithAttributes(attribute.Int("limit", limit)))
	defer span.End()
	defer observe(backendQdrant, "similar", time.Now(), &err)

	if err = requireScope(businessID); err != nil {
		return nil, err
	}
	if limit <= 0 || len(query) == 0 {
		return []documents.Document{}, nil
	}

	points, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.config.Collection,
		Query:          qdrant.NewQuery(query...),
		Limit:          qdrant.PtrOf(uint64(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
		Filter: &qdrant.Filter{
			Must: []*qdrant.Condition{{
				ConditionOneOf: &qdrant.Condition_Field{
					Field: &qdrant.FieldCondition{
						Key: payloadBusinessID,
						Match: &qdrant.Match{
							MatchValue: &qdrant.Match_Keyword{Keyword: businessID},
						},
					},
				},
			}},
		},
	})
	if err != nil {
		recordSpanError(span, err)
		return nil, fmt.Errorf("querying collection %s: %w", s.config.Collection, err)
	}

	docs := make([]documents.Document, 0, len(points))
	for _, p := range points {
		docs = append(docs, documentFromPayload(p.GetId().GetUuid(), p.Payload))
	}
	span.SetAttributes(attribute.Int("results", len(docs)))
	return docs, nil
}

func documentFromPayload(id string, payload map[string]*qdrant.Value) documents.Document {
	str := func(k string) string {
		if v, ok := payload[k]; ok {
			return v.GetStringValue()
		}
		return ""
	}
	d := documents.Document{
		ID:         id,
		BusinessID: str(payloadBusinessID),
		DocID:      str(payloadDocID),
		Title:      str(payloadTitle),
		Content:    str(payloadContent),
	}
	d.CreatedAt, _ = time.Parse(time.RFC3339Nano, str(payloadCreatedAt))
	if raw := str(payloadMetadata); raw != "" {
		_ = json.Unmarshal([]byte(raw), &d.Metadata)
	}
	return d
}

var _ documents.Store = (*QdrantStore)(nil)
