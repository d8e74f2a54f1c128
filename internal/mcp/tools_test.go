package mcp

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Aman-CERP/docsmcp/internal/async"
	"github.com/Aman-CERP/docsmcp/internal/search"
	"github.com/Aman-CERP/docsmcp/internal/store"
)

// ============================================================================
// Search tool
// ============================================================================

func TestSearchTool_Basic_ReturnsMarkdown(t *testing.T) {
	// Given: a search service with one hit
	service := &MockService{
		SearchFn: func(ctx context.Context, query string, opts search.Options) ([]*search.Result, error) {
			return []*search.Result{
				{
					ID:         "b1946ac92492d2347c6235b4d2611184",
					Source:     "local",
					SourceID:   "/docs/guides/setup.md",
					Title:      "Setup Guide",
					Preview:    "Install the binary and run the init command",
					Score:      0.95,
					LastSynced: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
				},
			}, nil
		},
	}
	srv := newTestServerWithService(t, service)

	// When: invoking search
	result, err := srv.CallTool(context.Background(), "search", map[string]any{
		"query": "setup",
	})

	// Then: a markdown string comes back, not a struct
	require.NoError(t, err)
	text, ok := result.(string)
	require.True(t, ok, "expected string result, got %T", result)
	assert.Contains(t, text, "## Search Results")
	assert.Contains(t, text, "Setup Guide")
	assert.Contains(t, text, "score: 0.95")
	assert.Contains(t, text, "b1946ac92492d2347c6235b4d2611184")
	assert.Contains(t, text, "Install the binary")
}

// ============================================================================
// Source filtering
// ============================================================================

func TestSearchTool_WithSourceFilter_PassesSource(t *testing.T) {
	// Given: a search service that records its options
	var capturedOpts search.Options
	service := &MockService{
		SearchFn: func(ctx context.Context, query string, opts search.Options) ([]*search.Result, error) {
			capturedOpts = opts
			return []*search.Result{}, nil
		},
	}
	srv := newTestServerWithService(t, service)

	// When: calling search with source=gdrive
	_, err := srv.CallTool(context.Background(), "search", map[string]any{
		"query":  "quarterly report",
		"source": "gdrive",
	})

	// Then: source passed to the service
	require.NoError(t, err)
	assert.Equal(t, "gdrive", capturedOpts.Source)
}

func TestSearchTool_NoSource_SearchesAllSources(t *testing.T) {
	var capturedOpts search.Options
	service := &MockService{
		SearchFn: func(ctx context.Context, query string, opts search.Options) ([]*search.Result, error) {
			capturedOpts = opts
			return []*search.Result{}, nil
		},
	}
	srv := newTestServerWithService(t, service)

	// When: calling search without a source
	_, err := srv.CallTool(context.Background(), "search", map[string]any{
		"query": "report",
	})

	// Then: source is empty (no filter)
	require.NoError(t, err)
	assert.Equal(t, "", capturedOpts.Source)
}

// ============================================================================
// Get tool
// ============================================================================

func TestGetTool_ReturnsFullDocument(t *testing.T) {
	// Given: server with mock get returning a full document
	service := &MockService{
		GetFn: func(ctx context.Context, id string) (*store.Document, error) {
			return &store.Document{
				ID:         id,
				Source:     "local",
				SourceID:   "/docs/runbook.md",
				Title:      "Incident Runbook",
				Content:    "## Rollback\n\nRun the rollback script before paging anyone.",
				Metadata:   map[string]any{"format": "markdown"},
				LastSynced: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
			}, nil
		},
	}
	srv := newTestServerWithService(t, service)

	// When: calling get
	result, err := srv.CallTool(context.Background(), "get", map[string]any{
		"id": "doc1",
	})

	// Then: the full content is returned, not a preview
	require.NoError(t, err)
	text, ok := result.(string)
	require.True(t, ok)
	assert.Contains(t, text, "# Incident Runbook")
	assert.Contains(t, text, "Run the rollback script")
	assert.Contains(t, text, "**ID:** `doc1`")
}

func TestGetTool_NotFound_ReturnsStructuredError(t *testing.T) {
	// Given: server whose store has no such document
	service := &MockService{
		GetFn: func(ctx context.Context, id string) (*store.Document, error) {
			return nil, nil
		},
	}
	srv := newTestServerWithService(t, service)

	// When: calling get with an unknown id
	_, err := srv.CallTool(context.Background(), "get", map[string]any{
		"id": "missing123",
	})

	// Then: document-not-found error, never a silent empty result
	require.Error(t, err)
	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrCodeDocumentNotFound, mcpErr.Code)
	assert.Contains(t, mcpErr.Message, "missing123")
}

// ============================================================================
// List tool
// ============================================================================

func TestListTool_NoLimit_UsesStoreDefault(t *testing.T) {
	// Given: server with mock list
	var capturedOpts search.ListOptions
	service := &MockService{
		ListFn: func(ctx context.Context, opts search.ListOptions) ([]*search.Result, error) {
			capturedOpts = opts
			return []*search.Result{}, nil
		},
	}
	srv := newTestServerWithService(t, service)

	// When: calling list without a limit
	_, err := srv.CallTool(context.Background(), "list", map[string]any{})

	// Then: zero limit passes through so the store applies its default
	require.NoError(t, err)
	assert.Equal(t, 0, capturedOpts.Limit)
}

func TestListTool_WithSourceAndLimit(t *testing.T) {
	var capturedOpts search.ListOptions
	service := &MockService{
		ListFn: func(ctx context.Context, opts search.ListOptions) ([]*search.Result, error) {
			capturedOpts = opts
			return []*search.Result{}, nil
		},
	}
	srv := newTestServerWithService(t, service)

	// When: calling list with source and limit
	_, err := srv.CallTool(context.Background(), "list", map[string]any{
		"source": "local",
		"limit":  float64(10),
	})

	// Then: both reach the service
	require.NoError(t, err)
	assert.Equal(t, "local", capturedOpts.Source)
	assert.Equal(t, 10, capturedOpts.Limit)
}

func TestListTool_ReturnsMarkdown(t *testing.T) {
	service := &MockService{
		ListFn: func(ctx context.Context, opts search.ListOptions) ([]*search.Result, error) {
			return []*search.Result{
				{ID: "doc1", Source: "local", SourceID: "/docs/a.md", Title: "Alpha"},
				{ID: "doc2", Source: "gdrive", SourceID: "1AbC", Title: "Beta"},
			}, nil
		},
	}
	srv := newTestServerWithService(t, service)

	// When: calling list
	result, err := srv.CallTool(context.Background(), "list", map[string]any{})

	// Then: markdown listing with both documents
	require.NoError(t, err)
	text, ok := result.(string)
	require.True(t, ok)
	assert.Contains(t, text, "## Indexed Documents")
	assert.Contains(t, text, "Showing 2 documents")
	assert.Contains(t, text, "Alpha")
	assert.Contains(t, text, "Beta")
}

func TestListTool_EmptyIndex_GracefulMessage(t *testing.T) {
	srv := newTestServer(t)

	// When: listing an empty index
	result, err := srv.CallTool(context.Background(), "list", map[string]any{})

	// Then: friendly message pointing at the index command
	require.NoError(t, err)
	text, ok := result.(string)
	require.True(t, ok)
	assert.Contains(t, text, "No documents in the index")
	assert.Contains(t, text, "docsmcp index")
}

// ============================================================================
// Stats tool
// ============================================================================

func TestStatsTool_ReturnsStructuredOutput(t *testing.T) {
	// Given: server with mock stats
	lastUpdated := time.Date(2026, 2, 14, 8, 30, 0, 0, time.UTC)
	service := &MockService{
		StatsFn: func(ctx context.Context) (*store.Stats, error) {
			return &store.Stats{
				TotalDocuments: 120,
				BySource:       map[string]int{"local": 100, "gdrive": 20},
				IndexSizeBytes: 2 << 20,
				LastUpdated:    lastUpdated,
			}, nil
		},
	}
	srv := newTestServerWithService(t, service)

	// When: calling stats
	result, err := srv.CallTool(context.Background(), "stats", map[string]any{})

	// Then: returns StatsOutput struct
	require.NoError(t, err)
	output, ok := result.(*StatsOutput)
	require.True(t, ok, "expected *StatsOutput, got %T", result)
	assert.Equal(t, 120, output.TotalDocuments)
	assert.Equal(t, 100, output.BySource["local"])
	assert.Equal(t, 20, output.BySource["gdrive"])
	assert.Equal(t, int64(2<<20), output.IndexSizeBytes)
	assert.Contains(t, output.IndexPath, "index.db")
	assert.Equal(t, lastUpdated.Format(time.RFC3339), output.LastUpdated)
}

func TestStatsTool_EmptyIndex_ZeroValues(t *testing.T) {
	srv := newTestServer(t)

	// When: calling stats against an empty index
	result, err := srv.CallTool(context.Background(), "stats", map[string]any{})

	// Then: zero counts, no timestamp
	require.NoError(t, err)
	output, ok := result.(*StatsOutput)
	require.True(t, ok)
	assert.Equal(t, 0, output.TotalDocuments)
	assert.NotNil(t, output.BySource)
	assert.Empty(t, output.LastUpdated)
}

// ============================================================================
// Empty result sets
// ============================================================================

func TestSearchTool_EmptyResults_GracefulMessage(t *testing.T) {
	service := &MockService{
		SearchFn: func(ctx context.Context, query string, opts search.Options) ([]*search.Result, error) {
			return []*search.Result{}, nil
		},
	}
	srv := newTestServerWithService(t, service)

	// When: searching for something absent
	result, err := srv.CallTool(context.Background(), "search", map[string]any{
		"query": "xyznonexistent123",
	})

	// Then: a friendly notice, not an error
	require.NoError(t, err)
	text, ok := result.(string)
	require.True(t, ok)
	assert.Contains(t, text, "No results found")
	assert.Contains(t, text, "xyznonexistent123")
}

// ============================================================================
// Limit clamping
// ============================================================================

func TestSearchTool_LimitClamping(t *testing.T) {
	tests := []struct {
		name     string
		limit    float64
		expected int
	}{
		{"above max", 1000, 100},
		{"zero uses default", 0, 20},
		{"negative uses default", -5, 20},
		{"valid", 25, 25},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var capturedOpts search.Options
			service := &MockService{
				SearchFn: func(ctx context.Context, query string, opts search.Options) ([]*search.Result, error) {
					capturedOpts = opts
					return []*search.Result{}, nil
				},
			}
			srv := newTestServerWithService(t, service)

			_, _ = srv.CallTool(context.Background(), "search", map[string]any{
				"query": "test",
				"limit": tc.limit,
			})

			assert.Equal(t, tc.expected, capturedOpts.Limit)
		})
	}
}

func TestSearchTool_LimitAsInt_Clamped(t *testing.T) {
	// In-process callers pass plain ints rather than JSON float64s.
	var capturedOpts search.Options
	service := &MockService{
		SearchFn: func(ctx context.Context, query string, opts search.Options) ([]*search.Result, error) {
			capturedOpts = opts
			return []*search.Result{}, nil
		},
	}
	srv := newTestServerWithService(t, service)

	_, err := srv.CallTool(context.Background(), "search", map[string]any{
		"query": "test",
		"limit": 1000,
	})

	require.NoError(t, err)
	assert.Equal(t, 100, capturedOpts.Limit)
}

// ============================================================================
// Large result sets
// ============================================================================

func TestSearchTool_LargeResults_FormatsAll(t *testing.T) {
	// Generate 60 results
	results := make([]*search.Result, 60)
	for i := 0; i < 60; i++ {
		results[i] = &search.Result{
			ID:      store.DocumentID("local", strings.Repeat("x", i+1)),
			Source:  "local",
			Title:   "Document",
			Preview: "preview text",
			Score:   float64(60-i) / 60.0,
		}
	}

	service := &MockService{
		SearchFn: func(ctx context.Context, query string, opts search.Options) ([]*search.Result, error) {
			return results, nil
		},
	}
	srv := newTestServerWithService(t, service)

	// When: formatting 60 results
	result, err := srv.CallTool(context.Background(), "search", map[string]any{
		"query": "test",
		"limit": float64(60),
	})

	// Then: all 60 included
	require.NoError(t, err)
	text, ok := result.(string)
	require.True(t, ok)
	assert.Contains(t, text, "Found 60 results")
	assert.Equal(t, 60, strings.Count(text, "### "))
}

// ============================================================================
// Typed SDK handlers
// ============================================================================

func TestMCPSearchHandler_StructuredOutput(t *testing.T) {
	// Given: server with mock search returning two results
	service := &MockService{
		SearchFn: func(ctx context.Context, query string, opts search.Options) ([]*search.Result, error) {
			return []*search.Result{
				{ID: "doc1", Source: "local", Title: "Alpha", Score: 0.9},
				{ID: "doc2", Source: "gdrive", Title: "Beta", Score: 0.7},
			}, nil
		},
	}
	srv := newTestServerWithService(t, service)

	// When: invoking the SDK handler directly
	result, output, err := srv.mcpSearchHandler(context.Background(), nil, SearchInput{Query: "alpha"})

	// Then: structured output, no manual result
	require.NoError(t, err)
	assert.Nil(t, result)
	require.Len(t, output.Results, 2)
	assert.Equal(t, "doc1", output.Results[0].ID)
	assert.Equal(t, "Alpha", output.Results[0].Title)
	assert.InDelta(t, 0.9, output.Results[0].Score, 0.001)
}

func TestMCPSearchHandler_DuringCrawl_ReturnsNotice(t *testing.T) {
	// Given: server with a running background crawl
	srv := newTestServer(t)
	progress := async.NewCrawlProgress()
	progress.SetStage(async.StageScanning, 0)
	srv.SetCrawlProgress(progress)

	// When: invoking the SDK handler
	result, output, err := srv.mcpSearchHandler(context.Background(), nil, SearchInput{Query: "alpha"})

	// Then: a text notice instead of structured results
	require.NoError(t, err)
	require.NotNil(t, result)
	require.Len(t, result.Content, 1)
	text, ok := result.Content[0].(*mcp.TextContent)
	require.True(t, ok, "expected *mcp.TextContent, got %T", result.Content[0])
	assert.Contains(t, text.Text, "Crawl in Progress")
	assert.Empty(t, output.Results)
}

func TestMCPGetHandler_ReturnsDocumentOutput(t *testing.T) {
	service := &MockService{
		GetFn: func(ctx context.Context, id string) (*store.Document, error) {
			return &store.Document{
				ID:      id,
				Source:  "local",
				Title:   "Gamma",
				Content: "body",
			}, nil
		},
	}
	srv := newTestServerWithService(t, service)

	// When: invoking the SDK handler
	result, output, err := srv.mcpGetHandler(context.Background(), nil, GetInput{ID: "doc3"})

	// Then: the document comes back structured
	require.NoError(t, err)
	assert.Nil(t, result)
	require.NotNil(t, output.Document)
	assert.Equal(t, "doc3", output.Document.ID)
	assert.Equal(t, "Gamma", output.Document.Title)
	assert.Equal(t, "body", output.Document.Content)
}

func TestMCPGetHandler_NotFound_ReturnsError(t *testing.T) {
	srv := newTestServer(t)

	// When: invoking the SDK handler with an unknown id
	_, _, err := srv.mcpGetHandler(context.Background(), nil, GetInput{ID: "nope"})

	// Then: document-not-found error
	require.Error(t, err)
	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrCodeDocumentNotFound, mcpErr.Code)
}

func TestMCPReindexHandler_NoReindexer_KeepsErrorMessage(t *testing.T) {
	// Mapping an already-mapped error must not flatten it to a generic
	// internal failure.
	srv := newTestServer(t)

	// When: invoking the SDK handler without a reindex hook
	_, _, err := srv.mcpReindexHandler(context.Background(), nil, ReindexInput{})

	// Then: the specific message survives the error mapping
	require.Error(t, err)
	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrCodeInternalError, mcpErr.Code)
	assert.Contains(t, mcpErr.Message, "not available")
}
