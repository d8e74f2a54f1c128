// Package store persists documents in a single SQLite file with an FTS5
// index for ranked full-text search. The documents table and the FTS
// table are always written in the same transaction, so search can never
// observe a document the primary table doesn't have, or vice versa.
package store

import (
	"context"
	"time"
)

// Default result limits applied when callers pass zero.
const (
	DefaultSearchLimit = 20
	DefaultListLimit   = 50
)

// Document is one indexed document.
type Document struct {
	// ID is the deterministic identity hash of (Source, SourceID).
	// See DocumentID.
	ID string `json:"id"`
	// Source names the connector that produced the document ("local", "gdrive").
	Source string `json:"source"`
	// SourceID locates the document within its source: an absolute file
	// path for local files, a file ID for Drive.
	SourceID string `json:"source_id"`
	// Title is the display title. Never empty; extraction falls back to
	// the filename.
	Title string `json:"title"`
	// Content is the extracted plain text. Never empty.
	Content string `json:"content"`
	// Metadata carries open-ended extras (format, page counts, truncation).
	Metadata map[string]any `json:"metadata,omitempty"`
	// LastSynced is when this document was last written to the index.
	LastSynced time.Time `json:"last_synced"`
}

// SearchOptions narrows and sizes a search.
type SearchOptions struct {
	// Source restricts results to one source; empty matches all.
	Source string
	// Limit caps result count; 0 means DefaultSearchLimit.
	Limit int
}

// SearchResult is one ranked hit.
type SearchResult struct {
	Document *Document
	// Score is the relevance score; higher is better.
	Score float64
}

// ListOptions narrows and sizes a listing.
type ListOptions struct {
	// Source restricts results to one source; empty matches all.
	Source string
	// Limit caps result count; 0 means DefaultListLimit.
	Limit int
}

// DocumentRef is a lightweight identity row used for crawl
// reconciliation: enough to decide whether a document is stale or
// orphaned without loading its content.
type DocumentRef struct {
	ID         string
	SourceID   string
	LastSynced time.Time
}

// Stats summarizes index contents.
type Stats struct {
	// TotalDocuments is the number of indexed documents.
	TotalDocuments int `json:"total_documents"`
	// BySource maps source name to document count.
	BySource map[string]int `json:"by_source"`
	// IndexSizeBytes is the on-disk size of the index file (0 in-memory).
	IndexSizeBytes int64 `json:"index_size_bytes"`
	// LastUpdated is the most recent last_synced across all documents.
	LastUpdated time.Time `json:"last_updated"`
}

// DocumentStore is the persistence interface the rest of the system
// depends on. Implementations must keep search and primary storage
// transactionally consistent.
type DocumentStore interface {
	// Upsert inserts or replaces one document by ID.
	Upsert(ctx context.Context, doc *Document) error

	// UpsertBatch inserts or replaces many documents atomically: either
	// every document lands or none do.
	UpsertBatch(ctx context.Context, docs []*Document) error

	// Get returns the document with the given ID, or (nil, nil) when it
	// doesn't exist.
	Get(ctx context.Context, id string) (*Document, error)

	// Delete removes a document by ID. Deleting an absent ID is a no-op.
	Delete(ctx context.Context, id string) error

	// Search returns documents matching the query, best match first.
	Search(ctx context.Context, query string, opts SearchOptions) ([]*SearchResult, error)

	// ListAll returns documents ordered by last_synced descending.
	ListAll(ctx context.Context, opts ListOptions) ([]*Document, error)

	// Stats reports index contents.
	Stats(ctx context.Context) (*Stats, error)

	// Close releases the store. Safe to call more than once.
	Close() error
}
