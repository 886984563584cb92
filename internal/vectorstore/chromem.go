package vectorstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/philippgille/chromem-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ragbrain/internal/conversation"
	"github.com/fyrsmithlabs/ragbrain/internal/documents"
	"github.com/fyrsmithlabs/ragbrain/internal/logging"
)

var chromemTracer = otel.Tracer("github.com/fyrsmithlabs/ragbrain/internal/vectorstore/chromem")

// maxClientErrors bounds the in-memory client error log.
const maxClientErrors = 1000

// errNoEmbedder is returned by the collection embedding func. Every write
// carries its own vector, so chromem should never need to embed text.
var errNoEmbedder = errors.New("chromem store does not embed text")

// Metadata keys stored alongside chromem documents.
const (
	metaUserID     = "user_id"
	metaBusinessID = "business_id"
	metaSessionID  = "session_id"
	metaRole       = "role"
	metaCreatedAt  = "created_at"
	metaDocID      = "doc_id"
	metaTitle      = "title"
	metaMetadata   = "metadata"
)

type pairKey struct{ user, business string }

// ClientErrorRecord is one stored client error report.
type ClientErrorRecord struct {
	Where string
	Error string
	At    string
}

// ChromemStore is an in-process store for turns, documents and client
// error reports. Safe for concurrent use.
type ChromemStore struct {
	db     *chromem.DB
	logger *logging.Logger

	mu      sync.RWMutex
	turns   map[pairKey][]conversation.Turn
	reports []ClientErrorRecord
}

// NewChromemStore creates an empty in-memory store.
func NewChromemStore(logger *logging.Logger) *ChromemStore {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &ChromemStore{
		db:     chromem.NewDB(),
		logger: logger.Named("chromem"),
		turns:  make(map[pairKey][]conversation.Turn),
	}
}

func noEmbed(context.Context, string) ([]float32, error) {
	return nil, errNoEmbedder
}

func (s *ChromemStore) collection(name string) (*chromem.Collection, error) {
	if err := ValidateCollectionName(name); err != nil {
		return nil, err
	}
	c, err := s.db.GetOrCreateCollection(name, nil, noEmbed)
	if err != nil {
		return nil, fmt.Errorf("getting/creating collection %s: %w", name, err)
	}
	return c, nil
}

// Ping always succeeds.
func (s *ChromemStore) Ping(context.Context) error { return nil }

// Append records the turn in the recency log and, when it has an
// embedding, in the pair's similarity collection.
func (s *ChromemStore) Append(ctx context.Context, t conversation.Turn) (_ conversation.Turn, err error) {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.Append",
		trace.WithAttributes(attribute.String("role", string(t.Role))))
	defer span.End()
	defer observe(backendChromem, "append", time.Now(), &err)

	if err = t.Validate(); err != nil {
		return t, err
	}
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}

	if len(t.Embedding) > 0 {
		var coll *chromem.Collection
		coll, err = s.collection(scopedName("turns", t.UserID, t.BusinessID))
		if err != nil {
			recordSpanError(span, err)
			return t, err
		}
		err = coll.AddDocument(ctx, chromem.Document{
			ID:        t.ID,
			Content:   t.Content,
			Embedding: t.Embedding,
			Metadata: map[string]string{
				metaUserID:     t.UserID,
				metaBusinessID: t.BusinessID,
				metaSessionID:  t.SessionID,
				metaRole:       string(t.Role),
				metaCreatedAt:  t.CreatedAt.Format(time.RFC3339Nano),
			},
		})
		if err != nil {
			recordSpanError(span, err)
			return t, fmt.Errorf("adding turn: %w", err)
		}
	}

	stored := t
	stored.Embedding = nil
	key := pairKey{t.UserID, t.BusinessID}
	s.mu.Lock()
	s.turns[key] = append(s.turns[key], stored)
	s.mu.Unlock()
	return t, nil
}

// Recent returns up to limit of the newest turns in chronological order.
func (s *ChromemStore) Recent(ctx context.Context, userID, businessID string, limit int) (_ []conversation.Turn, err error) {
	defer observe(backendChromem, "recent", time.Now(), &err)
	if err = requireScope(userID, businessID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return []conversation.Turn{}, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	log := s.turns[pairKey{userID, businessID}]
	if len(log) > limit {
		log = log[len(log)-limit:]
	}
	out := make([]conversation.Turn, len(log))
	copy(out, log)
	return out, nil
}

// Similar returns the pair's embedded turns nearest to query.
func (s *ChromemStore) Similar(ctx context.Context, userID, businessID string, query []float32, limit int) (_ []conversation.Turn, err error) {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.Similar",
		trace.WithAttributes(attribute.Int("limit", limit)))
	defer span.End()
	defer observe(backendChromem, "similar", time.Now(), &err)

	if err = requireScope(userID, businessID); err != nil {
		return nil, err
	}
	results, err := s.query(ctx, scopedName("turns", userID, businessID), query, limit)
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}

	turns := make([]conversation.Turn, 0, len(results))
	for _, r := range results {
		created, _ := time.Parse(time.RFC3339Nano, r.Metadata[metaCreatedAt])
		turns = append(turns, conversation.Turn{
			ID:         r.ID,
			UserID:     r.Metadata[metaUserID],
			BusinessID: r.Metadata[metaBusinessID],
			SessionID:  r.Metadata[metaSessionID],
			Role:       conversation.Role(r.Metadata[metaRole]),
			Content:    r.Content,
			CreatedAt:  created,
		})
	}
	span.SetAttributes(attribute.Int("results", len(turns)))
	return turns, nil
}

// query runs a nearest-neighbour lookup, capping limit at the collection
// size since chromem rejects larger requests.
func (s *ChromemStore) query(ctx context.Context, name string, query []float32, limit int) ([]chromem.Result, error) {
	if limit <= 0 || len(query) == 0 {
		return nil, nil
	}
	coll := s.db.GetCollection(name, noEmbed)
	if coll == nil {
		return nil, nil
	}
	n := coll.Count()
	if n == 0 {
		return nil, nil
	}
	if limit > n {
		limit = n
	}
	results, err := coll.QueryEmbedding(ctx, query, limit, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("querying collection %s: %w", name, err)
	}
	return results, nil
}

// Add stores a tenant document. Documents without an embedding are kept
// out of the similarity collection and are never returned.
func (s *ChromemStore) Add(ctx context.Context, d documents.Document) (_ documents.Document, err error) {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.Add")
	defer span.End()
	defer observe(backendChromem, "add", time.Now(), &err)

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
		SkippedWrites.WithLabelValues(backendChromem, "no_embedding").Inc()
		s.logger.Debug(ctx, "document stored without embedding", zap.String("id", d.ID))
		return d, nil
	}

	meta, err := json.Marshal(d.Metadata)
	if err != nil {
		return d, fmt.Errorf("encoding metadata: %w", err)
	}
	coll, err := s.collection(scopedName("docs", d.BusinessID))
	if err != nil {
		recordSpanError(span, err)
		return d, err
	}
	err = coll.AddDocument(ctx, chromem.Document{
		ID:        d.ID,
		Content:   d.Content,
		Embedding: d.Embedding,
		Metadata: map[string]string{
			metaBusinessID: d.BusinessID,
			metaDocID:      d.DocID,
			metaTitle:      d.Title,
			metaMetadata:   string(meta),
			metaCreatedAt:  d.CreatedAt.Format(time.RFC3339Nano),
		},
	})
	if err != nil {
		recordSpanError(span, err)
		return d, fmt.Errorf("adding document: %w", err)
	}
	return d, nil
}

// SimilarDocuments returns the tenant's documents nearest to query.
func (s *ChromemStore) SimilarDocuments(ctx context.Context, businessID string, query []float32, limit int) (_ []documents.Document, err error) {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.SimilarDocuments",
		trace.WithAttributes(attribute.Int("limit", limit)))
	defer span.End()
	defer observe(backendChromem, "similar_documents", time.Now(), &err)

	if err = requireScope(businessID); err != nil {
		return nil, err
	}
	results, err := s.query(ctx, scopedName("docs", businessID), query, limit)
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}

	docs := make([]documents.Document, 0, len(results))
	for _, r := range results {
		d := documents.Document{
			ID:         r.ID,
			BusinessID: r.Metadata[metaBusinessID],
			DocID:      r.Metadata[metaDocID],
			Title:      r.Metadata[metaTitle],
			Content:    r.Content,
		}
		d.CreatedAt, _ = time.Parse(time.RFC3339Nano, r.Metadata[metaCreatedAt])
		if raw := r.Metadata[metaMetadata]; raw != "" {
			_ = json.Unmarshal([]byte(raw), &d.Metadata)
		}
		docs = append(docs, d)
	}
	span.SetAttributes(attribute.Int("results", len(docs)))
	return docs, nil
}

// Documents returns s as a documents.Store.
func (s *ChromemStore) Documents() documents.Store {
	return chromemDocuments{s}
}

type chromemDocuments struct{ s *ChromemStore }

func (c chromemDocuments) Add(ctx context.Context, d documents.Document) (documents.Document, error) {
	return c.s.Add(ctx, d)
}

func (c chromemDocuments) Similar(ctx context.Context, businessID string, query []float32, limit int) ([]documents.Document, error) {
	return c.s.SimilarDocuments(ctx, businessID, query, limit)
}

// InsertClientError keeps the report in a bounded in-memory log.
func (s *ChromemStore) InsertClientError(_ context.Context, where, text, at string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports = append(s.reports, ClientErrorRecord{Where: where, Error: text, At: at})
	if over := len(s.reports) - maxClientErrors; over > 0 {
		s.reports = append([]ClientErrorRecord(nil), s.reports[over:]...)
	}
	return nil
}

// ClientErrors returns a copy of the stored reports, oldest first.
func (s *ChromemStore) ClientErrors() []ClientErrorRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]ClientErrorRecord(nil), s.reports...)
}

var (
	_ conversation.Store = (*ChromemStore)(nil)
	_ documents.Store    = chromemDocuments{}
)
