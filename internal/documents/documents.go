// Package documents defines the per-tenant corpus of curated documents.
// The ingestion path writes documents; the chat pipeline only reads them.
package documents

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrInvalidDocument indicates a document without a business or content.
	ErrInvalidDocument = errors.New("invalid tenant document")
)

// Document is one tenant document.
type Document struct {
	ID         string
	BusinessID string
	DocID      string // caller-supplied identifier, may be empty
	Title      string // may be empty
	Content    string
	Metadata   map[string]any
	Embedding  []float32
	CreatedAt  time.Time
}

// Validate checks the fields every stored document needs.
func (d Document) Validate() error {
	if d.BusinessID == "" || d.Content == "" {
		return ErrInvalidDocument
	}
	return nil
}

// Render returns "TITLE: <title>\n<content>" when the document has a title,
// else the raw content.
func (d Document) Render() string {
	if d.Title != "" {
		return "TITLE: " + d.Title + "\n" + d.Content
	}
	return d.Content
}

// Separator joins rendered document hits.
const Separator = "\n\n---\n\n"

// Store is the tenant document corpus.
type Store interface {
	// Add persists doc and returns it with ID and CreatedAt assigned when
	// they were empty.
	Add(ctx context.Context, doc Document) (Document, error)

	// Similar returns up to limit of the tenant's documents that have an
	// embedding, nearest to query first.
	Similar(ctx context.Context, businessID string, query []float32, limit int) ([]Document, error)
}
