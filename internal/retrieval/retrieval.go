// Package retrieval implements hybrid memory retrieval: an unconditional
// recency window over the caller's thread plus nearest-neighbour reads over
// the caller's own turns and the tenant's documents.
package retrieval

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fyrsmithlabs/ragbrain/internal/conversation"
	"github.com/fyrsmithlabs/ragbrain/internal/documents"
	"github.com/fyrsmithlabs/ragbrain/internal/logging"
)

// DefaultRecencyWindow is the number of newest turns rendered into the
// recent thread.
const DefaultRecencyWindow = 12

var tracer = otel.Tracer("github.com/fyrsmithlabs/ragbrain/internal/retrieval")

// Context is the rendered output of one retrieval.
type Context struct {
	RecentThread string
	UserHits     string
	DocHits      string
}

// Engine reads both memory partitions. It never writes.
type Engine struct {
	turns         conversation.Store
	docs          documents.Store
	recencyWindow int
	logger        *logging.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithRecencyWindow sets how many recent turns are rendered.
func WithRecencyWindow(n int) Option {
	return func(e *Engine) { e.recencyWindow = n }
}

// WithLogger sets the engine logger.
func WithLogger(l *logging.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewEngine creates an engine over the given stores.
func NewEngine(turns conversation.Store, docs documents.Store, opts ...Option) *Engine {
	e := &Engine{
		turns:         turns,
		docs:          docs,
		recencyWindow: DefaultRecencyWindow,
		logger:        logging.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RetrieveHybrid renders the recent thread for (userID, businessID) and,
// when query is non-empty, the topUser nearest turns and topDocs nearest
// tenant documents. No similarity threshold is applied.
func (e *Engine) RetrieveHybrid(ctx context.Context, userID, businessID string, query []float32, topUser, topDocs int) (Context, error) {
	ctx, span := tracer.Start(ctx, "Engine.RetrieveHybrid", trace.WithAttributes(
		attribute.Bool("has_vector", len(query) > 0),
		attribute.Int("top_user", topUser),
		attribute.Int("top_docs", topDocs),
	))
	defer span.End()

	var out Context

	if e.recencyWindow > 0 {
		recent, err := e.turns.Recent(ctx, userID, businessID, e.recencyWindow)
		if err != nil {
			span.RecordError(err)
			return Context{}, fmt.Errorf("loading recent thread: %w", err)
		}
		out.RecentThread = conversation.RenderAll(recent)
	}

	if len(query) == 0 {
		return out, nil
	}

	var (
		userHits []conversation.Turn
		docHits  []documents.Document
	)
	g, gctx := errgroup.WithContext(ctx)
	if topUser > 0 {
		g.Go(func() error {
			hits, err := e.turns.Similar(gctx, userID, businessID, query, topUser)
			if err != nil {
				return fmt.Errorf("searching user memory: %w", err)
			}
			userHits = hits
			return nil
		})
	}
	if topDocs > 0 {
		g.Go(func() error {
			hits, err := e.docs.Similar(gctx, businessID, query, topDocs)
			if err != nil {
				return fmt.Errorf("searching tenant documents: %w", err)
			}
			docHits = hits
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return Context{}, err
	}

	out.UserHits = conversation.RenderAll(userHits)
	out.DocHits = renderDocs(docHits)

	span.SetAttributes(
		attribute.Int("user_hits", len(userHits)),
		attribute.Int("doc_hits", len(docHits)),
	)
	e.logger.Debug(ctx, "hybrid retrieval",
		zap.Int("user_hits", len(userHits)),
		zap.Int("doc_hits", len(docHits)))
	return out, nil
}

func renderDocs(docs []documents.Document) string {
	parts := make([]string, len(docs))
	for i, d := range docs {
		parts[i] = d.Render()
	}
	return strings.Join(parts, documents.Separator)
}
