package mcp

// GetInput defines the input schema for the get tool.
type GetInput struct {
	ID string `json:"id" jsonschema:"the document id returned by search or list"`
}

// GetOutput defines the output schema for the get tool.
type GetOutput struct {
	Document *DocumentOutput `json:"document"`
}

// DocumentOutput is a fully hydrated document, content included.
type DocumentOutput struct {
	ID         string         `json:"id"`
	Source     string         `json:"source"`
	SourceID   string         `json:"source_id"`
	Title      string         `json:"title"`
	Content    string         `json:"content"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	LastSynced string         `json:"last_synced,omitempty"`
}

// ListInput defines the input schema for the list tool.
type ListInput struct {
	Source string `json:"source,omitempty" jsonschema:"restrict the listing to one source, e.g. local or gdrive"`
	Limit  int    `json:"limit,omitempty" jsonschema:"maximum number of documents, default 50"`
}

// ListOutput defines the output schema for the list tool.
type ListOutput struct {
	Documents []SearchResultOutput `json:"documents"`
}

// StatsInput defines the input schema for the stats tool (no parameters).
type StatsInput struct{}

// StatsOutput defines the output schema for the stats tool.
type StatsOutput struct {
	TotalDocuments int                `json:"total_documents"`
	BySource       map[string]int     `json:"by_source"`
	IndexSizeBytes int64              `json:"index_size_bytes"`
	IndexPath      string             `json:"index_path"`
	LastUpdated    string             `json:"last_updated,omitempty"`
	Crawl          *CrawlStatusOutput `json:"crawl,omitempty"` // Present during a background crawl
}

// CrawlStatusOutput reports a background crawl in flight.
type CrawlStatusOutput struct {
	Status         string  `json:"status"`                  // "crawling", "ready", or "error"
	Stage          string  `json:"stage,omitempty"`         // "scanning", "extracting", "committing"
	FilesTotal     int     `json:"files_total"`             // Total files to process
	FilesProcessed int     `json:"files_processed"`         // Files processed so far
	Documents      int     `json:"documents"`               // Documents extracted so far
	ProgressPct    float64 `json:"progress_pct"`            // Progress percentage (0-100)
	ElapsedSeconds int     `json:"elapsed_seconds"`         // Time since the crawl started
	ErrorMessage   string  `json:"error_message,omitempty"` // Error message if status is "error"
}

// ReindexInput defines the input schema for the reindex tool (no parameters).
type ReindexInput struct{}

// ReindexOutput defines the output schema for the reindex tool.
type ReindexOutput struct {
	Files     int    `json:"files"`     // Files discovered across all sources
	Documents int    `json:"documents"` // Documents written to the index
	Errors    int    `json:"errors"`    // Files that failed extraction
	Warnings  int    `json:"warnings"`  // Files skipped with a warning
	Duration  string `json:"duration"`  // Wall-clock crawl duration
}
