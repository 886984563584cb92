package vectorstore

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/ragbrain/internal/conversation"
	"github.com/fyrsmithlabs/ragbrain/internal/documents"
)

// Integration tests run against a real pgvector database when
// RAGBRAIN_TEST_DATABASE_URL is set.
func testPostgres(t *testing.T) *PostgresStore {
	t.Helper()
	dsn := os.Getenv("RAGBRAIN_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("RAGBRAIN_TEST_DATABASE_URL not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s, err := OpenPostgres(ctx, PostgresConfig{DSN: dsn, Dimension: 3}, nil)
	require.NoError(t, err)
	require.NoError(t, s.Migrate(ctx))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestPostgresConfig_Validate(t *testing.T) {
	assert.ErrorIs(t, PostgresConfig{Dimension: 3}.Validate(), ErrInvalidConfig)
	assert.ErrorIs(t, PostgresConfig{DSN: "postgres://x"}.Validate(), ErrInvalidConfig)
	assert.NoError(t, PostgresConfig{DSN: "postgres://x", Dimension: 3}.Validate())
}

func TestVectorParam(t *testing.T) {
	assert.Nil(t, vectorParam(nil))
	assert.NotNil(t, vectorParam([]float32{1, 2}))
}

func TestPostgresStore_Conversations(t *testing.T) {
	s := testPostgres(t)
	ctx := context.Background()
	user, business := "u-"+uuid.NewString(), "b-"+uuid.NewString()

	base := time.Now().UTC().Add(-time.Minute)
	for i, c := range []struct {
		content string
		emb     []float32
	}{
		{"first", []float32{1, 0, 0}},
		{"second", []float32{0, 1, 0}},
		{"third", nil},
	} {
		_, err := s.Append(ctx, conversation.Turn{
			UserID:     user,
			BusinessID: business,
			SessionID:  "s1",
			Role:       conversation.RoleUser,
			Content:    c.content,
			Embedding:  c.emb,
			CreatedAt:  base.Add(time.Duration(i) * time.Second),
		})
		require.NoError(t, err)
	}

	recent, err := s.Recent(ctx, user, business, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "second", recent[0].Content)
	assert.Equal(t, "third", recent[1].Content)
	assert.Equal(t, "s1", recent[0].SessionID)

	similar, err := s.Similar(ctx, user, business, []float32{0, 0.9, 0.1}, 5)
	require.NoError(t, err)
	require.Len(t, similar, 2)
	assert.Equal(t, "second", similar[0].Content)

	other, err := s.Recent(ctx, user, "b-"+uuid.NewString(), 5)
	require.NoError(t, err)
	assert.Empty(t, other)

	_, err = s.Similar(ctx, user, business, []float32{1, 0}, 5)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestPostgresStore_Documents(t *testing.T) {
	s := testPostgres(t)
	ctx := context.Background()
	business := "b-" + uuid.NewString()
	docs := s.Documents()

	_, err := docs.Add(ctx, documents.Document{
		BusinessID: business,
		Title:      "Returns",
		Content:    "30 days",
		Metadata:   map[string]any{"k": "v"},
		Embedding:  []float32{0, 0, 1},
	})
	require.NoError(t, err)

	got, err := docs.Similar(ctx, business, []float32{0, 0, 1}, 8)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Returns", got[0].Title)
	assert.Equal(t, "v", got[0].Metadata["k"])

	require.NoError(t, s.InsertClientError(ctx, "checkout.js", "TypeError", time.Now().UTC().Format(time.RFC3339)))
	require.NoError(t, s.Ping(ctx))
}
