package vectorstore

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/ragbrain/internal/documents"
)

func TestDocumentFromPayload(t *testing.T) {
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	d := documentFromPayload("id-1", map[string]*qdrant.Value{
		payloadBusinessID: stringValue("b1"),
		payloadTitle:      stringValue("Hours"),
		payloadContent:    stringValue("Open 9-5"),
		payloadMetadata:   stringValue(`{"lang":"en"}`),
		payloadCreatedAt:  stringValue(created.Format(time.RFC3339Nano)),
	})
	assert.Equal(t, "id-1", d.ID)
	assert.Equal(t, "b1", d.BusinessID)
	assert.Equal(t, "Hours", d.Title)
	assert.Empty(t, d.DocID)
	assert.Equal(t, "en", d.Metadata["lang"])
	assert.True(t, created.Equal(d.CreatedAt))
}

func TestQdrantStore_Integration(t *testing.T) {
	host := os.Getenv("RAGBRAIN_TEST_QDRANT_HOST")
	if host == "" {
		t.Skip("RAGBRAIN_TEST_QDRANT_HOST not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s, err := NewQdrantStore(ctx, QdrantConfig{Host: host, Collection: "ragbrain_test_docs", Dimension: 3}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	business := "b-" + uuid.NewString()
	_, err = s.Add(ctx, documents.Document{BusinessID: business, Content: "near", Embedding: []float32{1, 0, 0}})
	require.NoError(t, err)
	_, err = s.Add(ctx, documents.Document{BusinessID: business, Content: "far", Embedding: []float32{0, 1, 0}})
	require.NoError(t, err)
	_, err = s.Add(ctx, documents.Document{BusinessID: business, Content: "skipped"})
	require.NoError(t, err)

	got, err := s.Similar(ctx, business, []float32{1, 0.1, 0}, 5)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "near", got[0].Content)
}
