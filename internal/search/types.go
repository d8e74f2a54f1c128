package search

import "time"

// Options narrows and sizes a search.
type Options struct {
	// Source restricts results to one source; empty matches all.
	Source string

	// Limit caps result count; 0 applies the configured default. Values
	// above the configured maximum are clamped.
	Limit int
}

// ListOptions narrows and sizes a listing.
type ListOptions struct {
	// Source restricts results to one source; empty matches all.
	Source string

	// Limit caps result count; 0 applies the store's listing default.
	Limit int
}

/// Result is one search hit or listing entry, shaped for display: a
// bounded preview stands in for the full content. Listings carry no
// relevance score.
type Result struct {
	ID         string    `json:"id"`
	Source     string    `json:"source"`
	SourceID   string    `json:"source_id"`
	Title      string    `json:"title"`
	Preview    string    `json:"preview"`
	Score      float64   `json:"score,omitempty"`
	LastSynced time.Time `json:"last_synced"`
}
