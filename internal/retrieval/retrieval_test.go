package retrieval

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/ragbrain/internal/conversation"
	"github.com/fyrsmithlabs/ragbrain/internal/documents"
	"github.com/fyrsmithlabs/ragbrain/internal/vectorstore"
)

// countingStore wraps the in-memory store and counts similarity reads.
type countingStore struct {
	*vectorstore.ChromemStore
	turnSearches atomic.Int32
	docSearches  atomic.Int32
	failDocs     error
}

func (c *countingStore) Similar(ctx context.Context, userID, businessID string, q []float32, limit int) ([]conversation.Turn, error) {
	c.turnSearches.Add(1)
	return c.ChromemStore.Similar(ctx, userID, businessID, q, limit)
}

type countingDocs struct{ c *countingStore }

func (d countingDocs) Add(ctx context.Context, doc documents.Document) (documents.Document, error) {
	return d.c.ChromemStore.Add(ctx, doc)
}

func (d countingDocs) Similar(ctx context.Context, businessID string, q []float32, limit int) ([]documents.Document, error) {
	d.c.docSearches.Add(1)
	if d.c.failDocs != nil {
		return nil, d.c.failDocs
	}
	return d.c.ChromemStore.SimilarDocuments(ctx, businessID, q, limit)
}

func newFixture(t *testing.T) (*countingStore, *Engine) {
	t.Helper()
	store := &countingStore{ChromemStore: vectorstore.NewChromemStore(nil)}
	return store, NewEngine(store, countingDocs{store}, WithRecencyWindow(3))
}

func appendTurn(t *testing.T, s conversation.Store, role conversation.Role, content string, emb []float32) {
	t.Helper()
	_, err := s.Append(context.Background(), conversation.Turn{
		UserID: "u1", BusinessID: "b1", Role: role, Content: content, Embedding: emb,
	})
	require.NoError(t, err)
}

func TestRetrieveHybrid_NilVector(t *testing.T) {
	store, engine := newFixture(t)
	appendTurn(t, store, conversation.RoleUser, "hello", []float32{1, 0})
	appendTurn(t, store, conversation.RoleAssistant, "hi there", nil)

	got, err := engine.RetrieveHybrid(context.Background(), "u1", "b1", nil, 6, 8)
	require.NoError(t, err)
	assert.Equal(t, "USER: hello\nASSISTANT: hi there", got.RecentThread)
	assert.Empty(t, got.UserHits)
	assert.Empty(t, got.DocHits)
	assert.Zero(t, store.turnSearches.Load())
	assert.Zero(t, store.docSearches.Load())
}

func TestRetrieveHybrid_RecencyWindow(t *testing.T) {
	store, engine := newFixture(t)
	for _, c := range []string{"a", "b", "c", "d", "e"} {
		appendTurn(t, store, conversation.RoleUser, c, nil)
	}

	got, err := engine.RetrieveHybrid(context.Background(), "u1", "b1", nil, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, "USER: c\nUSER: d\nUSER: e", got.RecentThread)
}

func TestRetrieveHybrid_TopKNearestFirst(t *testing.T) {
	store, engine := newFixture(t)
	appendTurn(t, store, conversation.RoleUser, "far", []float32{0, 1})
	appendTurn(t, store, conversation.RoleUser, "near", []float32{1, 0})
	appendTurn(t, store, conversation.RoleUser, "middle", []float32{0.7, 0.7})

	ctx := context.Background()
	_, err := store.ChromemStore.Add(ctx, documents.Document{BusinessID: "b1", Title: "Hours", Content: "9-5", Embedding: []float32{1, 0}})
	require.NoError(t, err)
	_, err = store.ChromemStore.Add(ctx, documents.Document{BusinessID: "b1", Content: "untitled", Embedding: []float32{0.6, 0.8}})
	require.NoError(t, err)
	_, err = store.ChromemStore.Add(ctx, documents.Document{BusinessID: "b1", Content: "unrelated", Embedding: []float32{0, 1}})
	require.NoError(t, err)

	got, err := engine.RetrieveHybrid(ctx, "u1", "b1", []float32{1, 0}, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, "USER: near\nUSER: middle", got.UserHits)
	assert.Equal(t, "TITLE: Hours\n9-5\n\n---\n\nuntitled", got.DocHits)
}

func TestRetrieveHybrid_ZeroLimitsSkipStore(t *testing.T) {
	store, engine := newFixture(t)
	appendTurn(t, store, conversation.RoleUser, "x", []float32{1, 0})

	got, err := engine.RetrieveHybrid(context.Background(), "u1", "b1", []float32{1, 0}, 0, -1)
	require.NoError(t, err)
	assert.Empty(t, got.UserHits)
	assert.Empty(t, got.DocHits)
	assert.Zero(t, store.turnSearches.Load())
	assert.Zero(t, store.docSearches.Load())
}

func TestRetrieveHybrid_StoreError(t *testing.T) {
	store, engine := newFixture(t)
	store.failDocs = errors.New("connection reset")

	_, err := engine.RetrieveHybrid(context.Background(), "u1", "b1", []float32{1, 0}, 6, 8)
	require.Error(t, err)
	assert.ErrorIs(t, err, store.failDocs)
	assert.Contains(t, err.Error(), "searching tenant documents")
}
