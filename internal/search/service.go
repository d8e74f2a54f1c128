// Package search implements the read path over the document store:
// query validation, limit clamping, and result shaping. Full document
// content only leaves through Get; Search and List return previews.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Aman-CERP/docsmcp/internal/config"
	"github.com/Aman-CERP/docsmcp/internal/errors"
	"github.com/Aman-CERP/docsmcp/internal/store"
	"github.com/Aman-CERP/docsmcp/internal/telemetry"
)

// Store is the read-only slice of the document store the service
// consumes. *store.SQLiteStore satisfies it.
type Store interface {
	Search(ctx context.Context, query string, opts store.SearchOptions) ([]*store.SearchResult, error)
	Get(ctx context.Context, id string) (*store.Document, error)
	ListAll(ctx context.Context, opts store.ListOptions) ([]*store.Document, error)
	Stats(ctx context.Context) (*store.Stats, error)
}

// Service answers search, get, list, and stats requests.
type Service struct {
	store   Store
	config  *config.Config
	metrics *telemetry.QueryMetrics
}

// ServiceOption configures the service.
type ServiceOption func(*Service)

// WithMetrics attaches a query telemetry collector. When set, every
// search records its query, result count, and latency.
func WithMetrics(m *telemetry.QueryMetrics) ServiceOption {
	return func(s *Service) {
		s.metrics = m
	}
}

// New creates a search service over the given store.
func New(st Store, cfg *config.Config, opts ...ServiceOption) (*Service, error) {
	if st == nil {
		return nil, fmt.Errorf("store is required")
	}
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	s := &Service{store: st, config: cfg}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Search runs a ranked full-text query. The query must contain at
// least one non-whitespace character; the result limit defaults to
// the configured limit and is clamped to the configured maximum.
func (s *Service) Search(ctx context.Context, query string, opts Options) ([]*Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New(errors.ErrCodeQueryEmpty, "search query cannot be empty", nil).
			WithSuggestion("provide at least one search term")
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = s.config.Search.DefaultLimit
	}
	limit = s.clampLimit(limit)

	start := time.Now()
	hits, err := s.store.Search(ctx, query, store.SearchOptions{
		Source: opts.Source,
		Limit:  limit,
	})
	if err != nil {
		return nil, err
	}
	elapsed := time.Since(start)

	results := make([]*Result, 0, len(hits))
	for _, hit := range hits {
		results = append(results, s.shape(hit.Document, hit.Score))
	}

	slog.Debug("search executed",
		slog.String("query", query),
		slog.String("source", opts.Source),
		slog.Int("results", len(results)),
		slog.Duration("duration", elapsed))

	s.record(query, opts.Source, len(results), elapsed)
	return results, nil
}

// Get returns the full document, content included. Absent documents
// return (nil, nil).
func (s *Service) Get(ctx context.Context, id string) (*store.Document, error) {
	return s.store.Get(ctx, id)
}

// List returns recently synced documents, newest first, in preview
// form.
func (s *Service) List(ctx context.Context, opts ListOptions) ([]*Result, error) {
	docs, err := s.store.ListAll(ctx, store.ListOptions{
		Source: opts.Source,
		Limit:  s.clampLimit(opts.Limit),
	})
	if err != nil {
		return nil, err
	}

	results := make([]*Result, 0, len(docs))
	for _, doc := range docs {
		results = append(results, s.shape(doc, 0))
	}
	return results, nil
}

// Stats reports index contents.
func (s *Service) Stats(ctx context.Context) (*store.Stats, error) {
	return s.store.Stats(ctx)
}

// clampLimit enforces the configured maximum. Zero passes through so
// the store can apply its own default.
func (s *Service) clampLimit(limit int) int {
	if limit < 0 {
		return 0
	}
	if m := s.config.Search.MaxLimit; m > 0 && limit > m {
		return m
	}
	return limit
}

func (s *Service) shape(doc *store.Document, score float64) *Result {
	n := s.config.Search.PreviewLength
	if n <= 0 {
		n = 200
	}
	return &Result{
		ID:         doc.ID,
		Source:     doc.Source,
		SourceID:   doc.SourceID,
		Title:      doc.Title,
		Preview:    Preview(doc.Content, n),
		Score:      score,
		LastSynced: doc.LastSynced,
	}
}

func (s *Service) record(query, source string, results int, latency time.Duration) {
	if s.metrics == nil {
		return
	}
	s.metrics.Record(telemetry.QueryEvent{
		Query:       query,
		Source:      source,
		ResultCount: results,
		Latency:     latency,
		Timestamp:   time.Now(),
	})
}

// Preview returns the first n characters of content with surrounding
// whitespace trimmed, appending an ellipsis when truncated. Character
// boundaries are respected; a multi-byte rune is never split.
func Preview(content string, n int) string {
	content = strings.TrimSpace(content)
	if n <= 0 {
		return content
	}

	seen := 0
	for i := range content {
		if seen == n {
			return content[:i] + "…"
		}
		seen++
	}
	return content
}
