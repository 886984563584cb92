package ingest

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/ragbrain/internal/documents"
	"github.com/fyrsmithlabs/ragbrain/internal/gateway"
	"github.com/fyrsmithlabs/ragbrain/internal/logging"
	"github.com/fyrsmithlabs/ragbrain/internal/vectorstore"
	v1 "github.com/fyrsmithlabs/ragbrain/pkg/api/v1"
)

// MockEmbedder is a mock implementation of Embedder.
type MockEmbedder struct {
	mock.Mock
}

func (m *MockEmbedder) Embed(ctx context.Context, credential string, req gateway.EmbedRequest) gateway.Result[gateway.EmbedResponse] {
	args := m.Called(ctx, credential, req)
	return args.Get(0).(gateway.Result[gateway.EmbedResponse])
}

type failingDocs struct{}

func (failingDocs) Add(context.Context, documents.Document) (documents.Document, error) {
	return documents.Document{}, errors.New("constraint violation")
}

func (failingDocs) Similar(context.Context, string, []float32, int) ([]documents.Document, error) {
	return nil, nil
}

func newService(t *testing.T, emb Embedder, docs documents.Store) *Service {
	t.Helper()
	s, err := NewService(Config{Provider: "gemini", Model: "gemini-embedding-001", Dimension: 2}, emb, docs, logging.NewNop())
	require.NoError(t, err)
	return s
}

func TestIngest_StoresEmbeddedDocument(t *testing.T) {
	emb := &MockEmbedder{}
	store := vectorstore.NewChromemStore(nil)
	svc := newService(t, emb, store.Documents())

	emb.On("Embed", mock.Anything, "key", mock.MatchedBy(func(r gateway.EmbedRequest) bool {
		return r.TaskType == gateway.TaskRetrievalDocument && r.Title == "Hours" &&
			r.Input == "Open 9-5" && r.OutputDimensionality == 2
	})).Return(gateway.Result[gateway.EmbedResponse]{Status: 200, Value: gateway.EmbedResponse{Embedding: []float32{1, 0}}})

	doc, err := svc.Ingest(context.Background(), Request{
		BusinessID: " b1 ",
		Content:    " Open 9-5 ",
		Title:      "Hours",
		DocID:      "faq-1",
		Metadata:   map[string]any{"source": "faq"},
		Credential: "key",
	})
	require.NoError(t, err)
	emb.AssertExpectations(t)
	assert.NotEmpty(t, doc.ID)

	hits, err := store.SimilarDocuments(context.Background(), "b1", []float32{1, 0}, 8)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "Hours", hits[0].Title)
	assert.Equal(t, "faq-1", hits[0].DocID)
	assert.Equal(t, "faq", hits[0].Metadata["source"])
}

func TestIngest_UntitledUsesDefaultEmbedTitle(t *testing.T) {
	emb := &MockEmbedder{}
	svc := newService(t, emb, vectorstore.NewChromemStore(nil).Documents())
	emb.On("Embed", mock.Anything, mock.Anything, mock.MatchedBy(func(r gateway.EmbedRequest) bool {
		return r.Title == "Tenant document"
	})).Return(gateway.Result[gateway.EmbedResponse]{Status: 200, Value: gateway.EmbedResponse{Embedding: []float32{0, 1}}})

	doc, err := svc.Ingest(context.Background(), Request{BusinessID: "b1", Content: "text"})
	require.NoError(t, err)
	assert.Empty(t, doc.Title, "the default title is only sent to the embedder")
	assert.NotNil(t, doc.Metadata)
}

func TestIngest_RequiredFields(t *testing.T) {
	emb := &MockEmbedder{}
	svc := newService(t, emb, vectorstore.NewChromemStore(nil).Documents())

	for _, req := range []Request{{BusinessID: "b1"}, {Content: "x"}, {BusinessID: " ", Content: " "}} {
		_, err := svc.Ingest(context.Background(), req)
		require.Error(t, err)
		assert.Equal(t, http.StatusBadRequest, v1.StatusOf(err))
		assert.Equal(t, "Required fields: businessId, content", v1.MessageOf(err))
	}
	emb.AssertNotCalled(t, "Embed", mock.Anything, mock.Anything, mock.Anything)
}

func TestIngest_EmbedFailure(t *testing.T) {
	emb := &MockEmbedder{}
	svc := newService(t, emb, vectorstore.NewChromemStore(nil).Documents())
	emb.On("Embed", mock.Anything, mock.Anything, mock.Anything).Return(gateway.Result[gateway.EmbedResponse]{
		Status: 401,
		Err:    &gateway.StatusError{Op: gateway.OpEmbed, Status: 401, Message: "Invalid Kaixu Key"},
	})

	_, err := svc.Ingest(context.Background(), Request{BusinessID: "b1", Content: "x"})
	require.Error(t, err)
	assert.Equal(t, 401, v1.StatusOf(err))
	assert.Equal(t, "Invalid Kaixu Key", v1.MessageOf(err))
}

func TestIngest_StoreFailure(t *testing.T) {
	emb := &MockEmbedder{}
	svc := newService(t, emb, failingDocs{})
	emb.On("Embed", mock.Anything, mock.Anything, mock.Anything).Return(gateway.Result[gateway.EmbedResponse]{Status: 200})

	_, err := svc.Ingest(context.Background(), Request{BusinessID: "b1", Content: "x"})
	require.Error(t, err)
	assert.Equal(t, v1.KindInternal, v1.KindOf(err))
}

func TestNewService_Validation(t *testing.T) {
	_, err := NewService(Config{Provider: "p", Model: "m"}, nil, failingDocs{}, nil)
	assert.Error(t, err)
	_, err = NewService(Config{}, &MockEmbedder{}, failingDocs{}, nil)
	assert.Error(t, err)
}
