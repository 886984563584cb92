package vectorstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq" // postgres driver
	"github.com/pgvector/pgvector-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ragbrain/internal/conversation"
	"github.com/fyrsmithlabs/ragbrain/internal/documents"
	"github.com/fyrsmithlabs/ragbrain/internal/logging"
)

const pgTracerName = "github.com/fyrsmithlabs/ragbrain/internal/vectorstore/postgres"

// PostgresConfig holds pool and schema settings for PostgresStore.
type PostgresConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration

	// Dimension is the width of the vector columns created by Migrate.
	Dimension int
}

// Validate checks the configuration.
func (c PostgresConfig) Validate() error {
	if c.DSN == "" {
		return fmt.Errorf("%w: dsn required", ErrInvalidConfig)
	}
	if c.Dimension <= 0 {
		return fmt.Errorf("%w: dimension must be positive", ErrInvalidConfig)
	}
	return nil
}

// PostgresStore implements conversation.Store and documents.Store on
// Postgres with the pgvector extension, and records client error reports.
type PostgresStore struct {
	db     *sql.DB
	dim    int
	logger *logging.Logger
	tracer trace.Tracer
}

// OpenPostgres opens a pool and verifies connectivity.
func OpenPostgres(ctx context.Context, cfg PostgresConfig, logger *logging.Logger) (*PostgresStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("opening postgres: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	return NewPostgresStore(db, cfg.Dimension, logger), nil
}

// NewPostgresStore wraps an existing pool.
func NewPostgresStore(db *sql.DB, dimension int, logger *logging.Logger) *PostgresStore {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &PostgresStore{
		db:     db,
		dim:    dimension,
		logger: logger.Named("postgres"),
		tracer: otel.Tracer(pgTracerName),
	}
}

// schema is applied in order by Migrate. %d is the vector dimension.
var schema = []string{
	`CREATE EXTENSION IF NOT EXISTS vector`,
	`CREATE TABLE IF NOT EXISTS conversations (
		id          uuid PRIMARY KEY,
		user_id     text NOT NULL,
		business_id text NOT NULL,
		session_id  text,
		role        text NOT NULL CHECK (role IN ('user', 'assistant')),
		content     text NOT NULL,
		embedding   vector(%d),
		created_at  timestamptz NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS conversations_owner_created_idx
		ON conversations (user_id, business_id, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS conversations_embedding_idx
		ON conversations USING hnsw (embedding vector_cosine_ops)`,
	`CREATE TABLE IF NOT EXISTS tenant_docs (
		id          uuid PRIMARY KEY,
		business_id text NOT NULL,
		doc_id      text,
		title       text,
		content     text NOT NULL,
		metadata    jsonb NOT NULL DEFAULT '{}'::jsonb,
		embedding   vector(%d),
		created_at  timestamptz NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS tenant_docs_business_idx ON tenant_docs (business_id)`,
	`CREATE INDEX IF NOT EXISTS tenant_docs_embedding_idx
		ON tenant_docs USING hnsw (embedding vector_cosine_ops)`,
	`CREATE TABLE IF NOT EXISTS client_errors (
		id          bigserial PRIMARY KEY,
		where_from  text NOT NULL,
		error_text  text NOT NULL,
		at_iso      text NOT NULL,
		created_at  timestamptz NOT NULL DEFAULT now()
	)`,
}

// Migrate creates the extension, tables and indexes when missing.
// It is idempotent.
func (s *PostgresStore) Migrate(ctx context.Context) (err error) {
	ctx, span := s.tracer.Start(ctx, "PostgresStore.Migrate")
	defer span.End()
	defer observe(backendPostgres, "migrate", time.Now(), &err)

	for _, stmt := range schema {
		q := stmt
		if strings.Contains(stmt, "%d") {
			q = fmt.Sprintf(stmt, s.dim)
		}
		if _, err = s.db.ExecContext(ctx, q); err != nil {
			recordSpanError(span, err)
			return fmt.Errorf("applying schema: %w", err)
		}
	}
	s.logger.Info(ctx, "schema migrated", zap.Int("dimension", s.dim))
	return nil
}

// Ping runs a trivial query.
func (s *PostgresStore) Ping(ctx context.Context) (err error) {
	defer observe(backendPostgres, "ping", time.Now(), &err)
	var one int
	return s.db.QueryRowContext(ctx, "SELECT 1").Scan(&one)
}

// Close closes the pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// Append inserts a turn.
func (s *PostgresStore) Append(ctx context.Context, t conversation.Turn) (_ conversation.Turn, err error) {
	ctx, span := s.tracer.Start(ctx, "PostgresStore.Append",
		trace.WithAttributes(attribute.String("role", string(t.Role))))
	defer span.End()
	defer observe(backendPostgres, "append", time.Now(), &err)

	if err = t.Validate(); err != nil {
		return t, err
	}
	if err = s.checkDim(t.Embedding); err != nil {
		return t, err
	}
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO conversations (id, user_id, business_id, session_id, role, content, embedding, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7::vector, $8)`,
		t.ID, t.UserID, t.BusinessID, nullString(t.SessionID), string(t.Role), t.Content,
		vectorParam(t.Embedding), t.CreatedAt)
	if err != nil {
		recordSpanError(span, err)
		return t, fmt.Errorf("inserting turn: %w", err)
	}
	return t, nil
}

// Recent returns the newest turns of the pair in chronological order.
// Returned turns do not carry their embedding.
func (s *PostgresStore) Recent(ctx context.Context, userID, businessID string, limit int) (_ []conversation.Turn, err error) {
	ctx, span := s.tracer.Start(ctx, "PostgresStore.Recent",
		trace.WithAttributes(attribute.Int("limit", limit)))
	defer span.End()
	defer observe(backendPostgres, "recent", time.Now(), &err)

	if err = requireScope(userID, businessID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return []conversation.Turn{}, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, business_id, session_id, role, content, created_at
		FROM conversations
		WHERE user_id = $1 AND business_id = $2
		ORDER BY created_at DESC, id DESC
		LIMIT $3`, userID, businessID, limit)
	if err != nil {
		recordSpanError(span, err)
		return nil, fmt.Errorf("querying recent turns: %w", err)
	}
	turns, err := scanTurns(rows)
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

// Similar returns the pair's embedded turns nearest to query by cosine distance.
func (s *PostgresStore) Similar(ctx context.Context, userID, businessID string, query []float32, limit int) (_ []conversation.Turn, err error) {
	ctx, span := s.tracer.Start(ctx, "PostgresStore.Similar",
		trace.WithAttributes(attribute.Int("limit", limit)))
	defer span.End()
	defer observe(backendPostgres, "similar", time.Now(), &err)

	if err = requireScope(userID, businessID); err != nil {
		return nil, err
	}
	if limit <= 0 || len(query) == 0 {
		return []conversation.Turn{}, nil
	}
	if err = s.checkDim(query); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, business_id, session_id, role, content, created_at
		FROM conversations
		WHERE user_id = $1 AND business_id = $2 AND embedding IS NOT NULL
		ORDER BY embedding <=> $3::vector
		LIMIT $4`, userID, businessID, pgvector.NewVector(query), limit)
	if err != nil {
		recordSpanError(span, err)
		return nil, fmt.Errorf("querying similar turns: %w", err)
	}
	turns, err := scanTurns(rows)
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("results", len(turns)))
	return turns, nil
}

func scanTurns(rows *sql.Rows) ([]conversation.Turn, error) {
	defer rows.Close()
	turns := []conversation.Turn{}
	for rows.Next() {
		var (
			t       conversation.Turn
			session sql.NullString
			role    string
		)
		if err := rows.Scan(&t.ID, &t.UserID, &t.BusinessID, &session, &role, &t.Content, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning turn: %w", err)
		}
		t.SessionID = session.String
		t.Role = conversation.Role(role)
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading turns: %w", err)
	}
	return turns, nil
}

// Add inserts a tenant document.
func (s *PostgresStore) Add(ctx context.Context, d documents.Document) (_ documents.Document, err error) {
	ctx, span := s.tracer.Start(ctx, "PostgresStore.Add")
	defer span.End()
	defer observe(backendPostgres, "add", time.Now(), &err)

	if err = d.Validate(); err != nil {
		return d, err
	}
	if err = s.checkDim(d.Embedding); err != nil {
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
	meta, err := json.Marshal(d.Metadata)
	if err != nil {
		return d, fmt.Errorf("encoding metadata: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO tenant_docs (id, business_id, doc_id, title, content, metadata, embedding, created_at)
		VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7::vector, $8)`,
		d.ID, d.BusinessID, nullString(d.DocID), nullString(d.Title), d.Content,
		string(meta), vectorParam(d.Embedding), d.CreatedAt)
	if err != nil {
		recordSpanError(span, err)
		return d, fmt.Errorf("inserting document: %w", err)
	}
	return d, nil
}

// SimilarDocuments is documents.Store.Similar; PostgresStore already uses
// Similar for turns, so Documents() adapts the name.
func (s *PostgresStore) SimilarDocuments(ctx context.Context, businessID string, query []float32, limit int) (_ []documents.Document, err error) {
	ctx, span := s.tracer.Start(ctx, "PostgresStore.SimilarDocuments",
		trace.WithAttributes(attribute.Int("limit", limit)))
	defer span.End()
	defer observe(backendPostgres, "similar_documents", time.Now(), &err)

	if err = requireScope(businessID); err != nil {
		return nil, err
	}
	if limit <= 0 || len(query) == 0 {
		return []documents.Document{}, nil
	}
	if err = s.checkDim(query); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, business_id, doc_id, title, content, metadata, created_at
		FROM tenant_docs
		WHERE business_id = $1 AND embedding IS NOT NULL
		ORDER BY embedding <=> $2::vector
		LIMIT $3`, businessID, pgvector.NewVector(query), limit)
	if err != nil {
		recordSpanError(span, err)
		return nil, fmt.Errorf("querying similar documents: %w", err)
	}
	defer rows.Close()

	docs := []documents.Document{}
	for rows.Next() {
		var (
			d            documents.Document
			docID, title sql.NullString
			meta         []byte
		)
		if err = rows.Scan(&d.ID, &d.BusinessID, &docID, &title, &d.Content, &meta, &d.CreatedAt); err != nil {
			recordSpanError(span, err)
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		d.DocID = docID.String
		d.Title = title.String
		if len(meta) > 0 {
			if jerr := json.Unmarshal(meta, &d.Metadata); jerr != nil {
				s.logger.Warn(ctx, "document metadata unreadable", zap.String("id", d.ID), zap.Error(jerr))
			}
		}
		docs = append(docs, d)
	}
	if err = rows.Err(); err != nil {
		recordSpanError(span, err)
		return nil, fmt.Errorf("reading documents: %w", err)
	}
	span.SetAttributes(attribute.Int("results", len(docs)))
	return docs, nil
}

// Documents returns s as a documents.Store.
func (s *PostgresStore) Documents() documents.Store {
	return pgDocuments{s}
}

type pgDocuments struct{ s *PostgresStore }

func (p pgDocuments) Add(ctx context.Context, d documents.Document) (documents.Document, error) {
	return p.s.Add(ctx, d)
}

func (p pgDocuments) Similar(ctx context.Context, businessID string, query []float32, limit int) ([]documents.Document, error) {
	return p.s.SimilarDocuments(ctx, businessID, query, limit)
}

// InsertClientError stores one browser error report.
func (s *PostgresStore) InsertClientError(ctx context.Context, where, text, at string) (err error) {
	ctx, span := s.tracer.Start(ctx, "PostgresStore.InsertClientError")
	defer span.End()
	defer observe(backendPostgres, "insert_client_error", time.Now(), &err)

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO client_errors (where_from, error_text, at_iso) VALUES ($1, $2, $3)`,
		where, text, at)
	if err != nil {
		recordSpanError(span, err)
		return fmt.Errorf("inserting client error: %w", err)
	}
	return nil
}

func (s *PostgresStore) checkDim(v []float32) error {
	if len(v) != 0 && s.dim > 0 && len(v) != s.dim {
		return fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(v), s.dim)
	}
	return nil
}

// vectorParam maps an absent embedding to SQL NULL.
func vectorParam(v []float32) any {
	if len(v) == 0 {
		return nil
	}
	return pgvector.NewVector(v)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func recordSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

var (
	_ conversation.Store = (*PostgresStore)(nil)
	_ documents.Store    = pgDocuments{}
)
