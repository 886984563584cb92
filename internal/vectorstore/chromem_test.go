package vectorstore

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/ragbrain/internal/conversation"
	"github.com/fyrsmithlabs/ragbrain/internal/documents"
)

func unit(dim, hot int) []float32 {
	v := make([]float32, dim)
	v[hot] = 1
	return v
}

func turn(user, business string, role conversation.Role, content string, emb []float32) conversation.Turn {
	return conversation.Turn{
		UserID:     user,
		BusinessID: business,
		Role:       role,
		Content:    content,
		Embedding:  emb,
	}
}

func TestChromemStore_AppendAssignsIDAndTime(t *testing.T) {
	s := NewChromemStore(nil)
	got, err := s.Append(context.Background(), turn("u1", "b1", conversation.RoleUser, "hi", nil))
	require.NoError(t, err)
	assert.NotEmpty(t, got.ID)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestChromemStore_AppendRejectsInvalidTurn(t *testing.T) {
	s := NewChromemStore(nil)
	_, err := s.Append(context.Background(), turn("", "b1", conversation.RoleUser, "hi", nil))
	assert.ErrorIs(t, err, conversation.ErrInvalidTurn)

	_, err = s.Append(context.Background(), turn("u1", "b1", "system", "hi", nil))
	assert.ErrorIs(t, err, conversation.ErrInvalidTurn)
}

func TestChromemStore_RecentChronological(t *testing.T) {
	ctx := context.Background()
	s := NewChromemStore(nil)
	for i := 0; i < 5; i++ {
		_, err := s.Append(ctx, turn("u1", "b1", conversation.RoleUser, fmt.Sprintf("m%d", i), nil))
		require.NoError(t, err)
	}

	got, err := s.Recent(ctx, "u1", "b1", 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "m2", got[0].Content)
	assert.Equal(t, "m3", got[1].Content)
	assert.Equal(t, "m4", got[2].Content)

	got, err = s.Recent(ctx, "u1", "b1", 0)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestChromemStore_SimilarNearestFirst(t *testing.T) {
	ctx := context.Background()
	s := NewChromemStore(nil)
	_, err := s.Append(ctx, turn("u1", "b1", conversation.RoleUser, "x axis", unit(4, 0)))
	require.NoError(t, err)
	_, err = s.Append(ctx, turn("u1", "b1", conversation.RoleUser, "y axis", unit(4, 1)))
	require.NoError(t, err)
	_, err = s.Append(ctx, turn("u1", "b1", conversation.RoleAssistant, "no vector", nil))
	require.NoError(t, err)

	got, err := s.Similar(ctx, "u1", "b1", []float32{0.1, 0.9, 0, 0}, 10)
	require.NoError(t, err)
	require.Len(t, got, 2, "turns without embeddings never match")
	assert.Equal(t, "y axis", got[0].Content)
	assert.Equal(t, "x axis", got[1].Content)
	assert.Equal(t, conversation.RoleUser, got[0].Role)

	got, err = s.Similar(ctx, "u1", "b1", []float32{0.1, 0.9, 0, 0}, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "y axis", got[0].Content)
}

func TestChromemStore_PairIsolation(t *testing.T) {
	ctx := context.Background()
	s := NewChromemStore(nil)
	_, err := s.Append(ctx, turn("u1", "b1", conversation.RoleUser, "mine", unit(3, 0)))
	require.NoError(t, err)
	_, err = s.Append(ctx, turn("u1", "b2", conversation.RoleUser, "other business", unit(3, 0)))
	require.NoError(t, err)
	_, err = s.Append(ctx, turn("u2", "b1", conversation.RoleUser, "other user", unit(3, 0)))
	require.NoError(t, err)

	recent, err := s.Recent(ctx, "u1", "b1", 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "mine", recent[0].Content)

	similar, err := s.Similar(ctx, "u1", "b1", unit(3, 0), 10)
	require.NoError(t, err)
	require.Len(t, similar, 1)
	assert.Equal(t, "mine", similar[0].Content)
}

func TestChromemStore_MissingScopeFailsClosed(t *testing.T) {
	s := NewChromemStore(nil)
	_, err := s.Recent(context.Background(), "", "b1", 5)
	assert.ErrorIs(t, err, ErrMissingScope)
	_, err = s.SimilarDocuments(context.Background(), " ", unit(2, 0), 5)
	assert.ErrorIs(t, err, ErrMissingScope)
}

func TestChromemStore_Documents(t *testing.T) {
	ctx := context.Background()
	s := NewChromemStore(nil)
	docs := s.Documents()

	stored, err := docs.Add(ctx, documents.Document{
		BusinessID: "b1",
		DocID:      "faq-1",
		Title:      "Hours",
		Content:    "Open 9-5",
		Metadata:   map[string]any{"lang": "en"},
		Embedding:  unit(3, 2),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, stored.ID)

	_, err = docs.Add(ctx, documents.Document{BusinessID: "b2", Content: "elsewhere", Embedding: unit(3, 2)})
	require.NoError(t, err)
	_, err = docs.Add(ctx, documents.Document{BusinessID: "b1", Content: "no vector"})
	require.NoError(t, err)

	got, err := docs.Similar(ctx, "b1", unit(3, 2), 8)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, stored.ID, got[0].ID)
	assert.Equal(t, "faq-1", got[0].DocID)
	assert.Equal(t, "Hours", got[0].Title)
	assert.Equal(t, "en", got[0].Metadata["lang"])

	none, err := docs.Similar(ctx, "b3", unit(3, 2), 8)
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = docs.Add(ctx, documents.Document{BusinessID: "b1"})
	assert.ErrorIs(t, err, documents.ErrInvalidDocument)
}

func TestChromemStore_ClientErrorsBounded(t *testing.T) {
	s := NewChromemStore(nil)
	for i := 0; i < maxClientErrors+5; i++ {
		require.NoError(t, s.InsertClientError(context.Background(), "app.js", fmt.Sprintf("e%d", i), "now"))
	}
	got := s.ClientErrors()
	require.Len(t, got, maxClientErrors)
	assert.Equal(t, "e5", got[0].Error)
}

func TestChromemStore_ConcurrentAppend(t *testing.T) {
	ctx := context.Background()
	s := NewChromemStore(nil)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.Append(ctx, turn("u1", "b1", conversation.RoleUser, fmt.Sprint(i), unit(2, i%2)))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	got, err := s.Recent(ctx, "u1", "b1", 100)
	require.NoError(t, err)
	assert.Len(t, got, 20)
}
