// Package ingest writes curated tenant documents: it embeds the content
// through the gateway and stores the document with its vector.
package ingest

import (
	"context"
	"errors"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ragbrain/internal/documents"
	"github.com/fyrsmithlabs/ragbrain/internal/gateway"
	"github.com/fyrsmithlabs/ragbrain/internal/logging"
	v1 "github.com/fyrsmithlabs/ragbrain/pkg/api/v1"
)

const (
	msgRequiredFields = "Required fields: businessId, content"

	// defaultEmbedTitle is sent to the embedder when the document has no
	// title. It is not stored.
	defaultEmbedTitle = "Tenant document"
)

var tracer = otel.Tracer("github.com/fyrsmithlabs/ragbrain/internal/ingest")

// Embedder is the subset of the gateway client ingestion needs.
type Embedder interface {
	Embed(ctx context.Context, credential string, req gateway.EmbedRequest) gateway.Result[gateway.EmbedResponse]
}

// Config holds the embedding defaults.
type Config struct {
	Provider  string
	Model     string
	Dimension int
}

// Request is one document to ingest.
type Request struct {
	BusinessID string
	Content    string
	Title      string
	DocID      string
	Metadata   map[string]any

	// Credential is forwarded to the gateway.
	Credential string
}

// Service ingests tenant documents.
type Service struct {
	config   Config
	embedder Embedder
	docs     documents.Store
	logger   *logging.Logger
}

// NewService creates an ingestion service.
func NewService(cfg Config, embedder Embedder, docs documents.Store, logger *logging.Logger) (*Service, error) {
	if embedder == nil || docs == nil {
		return nil, errors.New("embedder and document store are required")
	}
	if cfg.Provider == "" || cfg.Model == "" {
		return nil, errors.New("embed provider and model are required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Service{config: cfg, embedder: embedder, docs: docs, logger: logger.Named("ingest")}, nil
}

// Ingest validates, embeds and stores req. A 2xx embedding response
// without a vector stores the document without one. Errors are *v1.Error.
func (s *Service) Ingest(ctx context.Context, req Request) (documents.Document, error) {
	ctx, span := tracer.Start(ctx, "Service.Ingest")
	defer span.End()

	doc := documents.Document{
		BusinessID: strings.TrimSpace(req.BusinessID),
		Content:    strings.TrimSpace(req.Content),
		Title:      strings.TrimSpace(req.Title),
		DocID:      strings.TrimSpace(req.DocID),
		Metadata:   req.Metadata,
	}
	if doc.Metadata == nil {
		doc.Metadata = map[string]any{}
	}
	if doc.Validate() != nil {
		return doc, v1.Validation(msgRequiredFields)
	}
	span.SetAttributes(attribute.Int("content_chars", len(doc.Content)))

	title := doc.Title
	if title == "" {
		title = defaultEmbedTitle
	}
	res := s.embedder.Embed(ctx, req.Credential, gateway.EmbedRequest{
		Provider:             s.config.Provider,
		Model:                s.config.Model,
		Input:                doc.Content,
		TaskType:             gateway.TaskRetrievalDocument,
		Title:                title,
		OutputDimensionality: s.config.Dimension,
	})
	if !res.OK() {
		err := gateway.APIError("Embedding failed", res.Status, res.Err)
		span.RecordError(err)
		span.SetStatus(codes.Error, v1.MessageOf(err))
		return doc, err
	}
	doc.Embedding = res.Value.Embedding

	stored, err := s.docs.Add(ctx, doc)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "store")
		return doc, v1.Internal("storing document failed", err)
	}

	s.logger.Info(ctx, "document ingested",
		zap.String("business.id", stored.BusinessID),
		zap.String("document.id", stored.ID),
		zap.Bool("embedded", stored.Embedding != nil))
	return stored, nil
}
