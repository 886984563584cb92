package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ragbrain/internal/config"
	"github.com/fyrsmithlabs/ragbrain/internal/conversation"
	"github.com/fyrsmithlabs/ragbrain/internal/documents"
	"github.com/fyrsmithlabs/ragbrain/internal/logging"
)

// ClientErrorSink persists client error reports.
type ClientErrorSink interface {
	InsertClientError(ctx context.Context, where, text, at string) error
}

// Stores bundles the backends selected by configuration.
type Stores struct {
	Conversations conversation.Store
	Documents     documents.Store
	ClientErrors  ClientErrorSink

	// Postgres is set when any backend uses Postgres; it owns migrations.
	Postgres *PostgresStore

	pingers []Pinger
	closers []io.Closer
}

// Open builds the stores named in cfg. dimension is the embedding width
// used for vector columns and collections.
func Open(ctx context.Context, cfg config.StorageConfig, dimension int, logger *logging.Logger) (*Stores, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	st := &Stores{}

	var mem *ChromemStore
	memory := func() *ChromemStore {
		if mem == nil {
			mem = NewChromemStore(logger)
			st.pingers = append(st.pingers, mem)
		}
		return mem
	}

	if cfg.Conversations == config.BackendPostgres || cfg.Documents == config.BackendPostgres {
		pg, err := OpenPostgres(ctx, PostgresConfig{
			DSN:             cfg.Postgres.DSN.Value(),
			MaxOpenConns:    cfg.Postgres.MaxOpenConns,
			MaxIdleConns:    cfg.Postgres.MaxIdleConns,
			ConnMaxLifetime: cfg.Postgres.ConnMaxLifetime.Duration(),
			Dimension:       dimension,
		}, logger)
		if err != nil {
			return nil, err
		}
		st.Postgres = pg
		st.pingers = append(st.pingers, pg)
		st.closers = append(st.closers, pg)
	}

	switch cfg.Conversations {
	case config.BackendPostgres:
		st.Conversations = st.Postgres
	case config.BackendMemory, "":
		st.Conversations = memory()
	default:
		_ = st.Close()
		return nil, fmt.Errorf("%w: unknown conversations backend %q", ErrInvalidConfig, cfg.Conversations)
	}

	switch cfg.Documents {
	case config.BackendPostgres:
		st.Documents = st.Postgres.Documents()
	case config.BackendQdrant:
		q, err := NewQdrantStore(ctx, QdrantConfig{
			Host:       cfg.Qdrant.Host,
			Port:       cfg.Qdrant.Port,
			UseTLS:     cfg.Qdrant.UseTLS,
			APIKey:     cfg.Qdrant.APIKey.Value(),
			Collection: cfg.Qdrant.Collection,
			Dimension:  dimension,
		}, logger)
		if err != nil {
			_ = st.Close()
			return nil, err
		}
		st.Documents = q
		st.pingers = append(st.pingers, q)
		st.closers = append(st.closers, q)
	case config.BackendMemory, "":
		st.Documents = memory().Documents()
	default:
		_ = st.Close()
		return nil, fmt.Errorf("%w: unknown documents backend %q", ErrInvalidConfig, cfg.Documents)
	}

	if st.Postgres != nil {
		st.ClientErrors = st.Postgres
	} else {
		st.ClientErrors = memory()
	}

	logger.Info(ctx, "stores opened",
		zap.String("conversations", cfg.Conversations),
		zap.String("documents", cfg.Documents))
	return st, nil
}

// Migrate applies the Postgres schema when Postgres is in use.
func (s *Stores) Migrate(ctx context.Context) error {
	if s.Postgres == nil {
		return nil
	}
	return s.Postgres.Migrate(ctx)
}

// Ping checks every backend and returns the first failure.
func (s *Stores) Ping(ctx context.Context) error {
	for _, p := range s.pingers {
		if err := p.Ping(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Close releases every backend connection.
func (s *Stores) Close() error {
	var errs []error
	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
