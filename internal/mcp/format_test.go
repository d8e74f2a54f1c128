package mcp

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Aman-CERP/docsmcp/internal/search"
	"github.com/Aman-CERP/docsmcp/internal/store"
)

func TestFormatSearchResults_Basic(t *testing.T) {
	// Given: a ranked search result
	results := []*search.Result{
		{
			ID:         "b1946ac92492d2347c6235b4d2611184",
			Source:     "local",
			SourceID:   "/docs/quarterly.md",
			Title:      "Quarterly Report",
			Preview:    "Revenue grew 12% over the previous quarter",
			Score:      0.95,
			LastSynced: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		},
	}

	// When: rendering the results
	markdown := FormatSearchResults("quarterly report", results)

	// Then: the markdown carries title, score, and preview
	assert.Contains(t, markdown, "## Search Results")
	assert.Contains(t, markdown, `"quarterly report"`)
	assert.Contains(t, markdown, "Found 1 result")
	assert.NotContains(t, markdown, "Found 1 results")
	assert.Contains(t, markdown, "Quarterly Report")
	assert.Contains(t, markdown, "score: 0.95")
	assert.Contains(t, markdown, "`b1946ac92492d2347c6235b4d2611184`")
	assert.Contains(t, markdown, "Revenue grew 12%")
	assert.Contains(t, markdown, "2026-03-01 10:00")
}

func TestFormatSearchResults_MultipleResults(t *testing.T) {
	// Given: two ranked hits
	results := []*search.Result{
		{ID: "doc1", Source: "local", SourceID: "/docs/a.md", Title: "Alpha", Score: 0.9},
		{ID: "doc2", Source: "gdrive", SourceID: "1AbC", Title: "Beta", Score: 0.8},
	}

	// When: rendering the results
	markdown := FormatSearchResults("test", results)

	// Then: both hits show up
	assert.Contains(t, markdown, "Found 2 results")
	assert.Contains(t, markdown, "### 1. Alpha")
	assert.Contains(t, markdown, "### 2. Beta")
	assert.Contains(t, markdown, "(1AbC)")
}

func TestFormatSearchResults_EmptyResults(t *testing.T) {
	// Given: an empty result slice
	results := []*search.Result{}

	// When: formatting the empty slice
	markdown := FormatSearchResults("xyznonexistent", results)

	// Then: a no-results notice
	assert.Contains(t, markdown, "No results found")
	assert.Contains(t, markdown, "xyznonexistent")
	assert.NotContains(t, markdown, "###")
}

func TestFormatSearchResults_NilEntriesSkipped(t *testing.T) {
	// Given: a result slice containing nils
	results := []*search.Result{
		nil,
		{ID: "doc1", Source: "local", Title: "Alpha", Score: 0.9},
		nil,
	}

	// When: formatting
	markdown := FormatSearchResults("test", results)

	// Then: nil entries are skipped gracefully
	assert.Contains(t, markdown, "Found 1 result")
	assert.Contains(t, markdown, "Alpha")
}

func TestFormatSearchResults_AllNil(t *testing.T) {
	// Given: only nil entries
	results := []*search.Result{nil, nil}

	// When: formatting
	markdown := FormatSearchResults("test", results)

	// Then: treated as empty
	assert.Contains(t, markdown, "No results found")
}

func TestFormatSearchResults_UntitledFallback(t *testing.T) {
	// Given: a result without a title
	results := []*search.Result{
		{ID: "doc1", Source: "local", Score: 0.5},
	}

	// When: formatting
	markdown := FormatSearchResults("test", results)

	// Then: placeholder title used
	assert.Contains(t, markdown, "(untitled)")
}

func TestFormatListResults_Basic(t *testing.T) {
	// Given: a document listing
	results := []*search.Result{
		{ID: "doc1", Source: "local", SourceID: "/docs/a.md", Title: "Alpha"},
		{ID: "doc2", Source: "gdrive", SourceID: "1AbC", Title: "Beta"},
	}

	// When: formatting the listing
	markdown := FormatListResults(results)

	// Then: listing header, no scores
	assert.Contains(t, markdown, "## Indexed Documents")
	assert.Contains(t, markdown, "Showing 2 documents, newest first")
	assert.Contains(t, markdown, "### 1. Alpha")
	assert.Contains(t, markdown, "### 2. Beta")
	assert.NotContains(t, markdown, "score:")
}

func TestFormatListResults_SingleDocument(t *testing.T) {
	// Given: one document
	results := []*search.Result{
		{ID: "doc1", Source: "local", Title: "Alpha"},
	}

	// When: formatting
	markdown := FormatListResults(results)

	// Then: singular phrasing
	assert.Contains(t, markdown, "Showing 1 document, newest first")
}

func TestFormatListResults_Empty(t *testing.T) {
	// Given: no documents
	results := []*search.Result{}

	// When: formatting
	markdown := FormatListResults(results)

	// Then: friendly message pointing at the index command
	assert.Contains(t, markdown, "No documents in the index")
	assert.Contains(t, markdown, "docsmcp index")
}

func TestFormatDocument_Markdown_PreservedAsIs(t *testing.T) {
	// Given: a markdown document
	doc := &store.Document{
		ID:         "doc1",
		Source:     "local",
		SourceID:   "/docs/install.md",
		Title:      "Installation",
		Content:    "## Prerequisites\n\nInstall Go 1.25 or later.\n",
		Metadata:   map[string]any{"format": "markdown"},
		LastSynced: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}

	// When: formatting the document
	markdown := FormatDocument(doc)

	// Then: markdown passes through unfenced
	assert.Contains(t, markdown, "# Installation")
	assert.Contains(t, markdown, "## Prerequisites")
	assert.Contains(t, markdown, "Install Go 1.25 or later.")
	assert.NotContains(t, markdown, "```")
	assert.Contains(t, markdown, "**ID:** `doc1`")
	assert.Contains(t, markdown, "**Source:** local (/docs/install.md)")
	assert.Contains(t, markdown, "2026-03-01T10:00:00Z")
}

func TestFormatDocument_PlainText_Fenced(t *testing.T) {
	// Given: a plain text document
	doc := &store.Document{
		ID:       "doc2",
		Source:   "local",
		SourceID: "/docs/readme.txt",
		Title:    "Readme",
		Content:  "This is plain text documentation.\n",
		Metadata: map[string]any{"format": "text"},
	}

	// When: formatting
	markdown := FormatDocument(doc)

	// Then: fenced as plain text
	assert.Contains(t, markdown, "```")
	assert.Contains(t, markdown, "This is plain text documentation.")
}

func TestFormatDocument_ExtractedPDF_Fenced(t *testing.T) {
	// Given: text extracted from a PDF
	doc := &store.Document{
		ID:       "doc3",
		Source:   "local",
		SourceID: "/docs/handbook.pdf",
		Title:    "Employee Handbook",
		Content:  "Chapter 1. Getting started.",
		Metadata: map[string]any{"format": "pdf", "pages": 42},
	}

	// When: formatting
	markdown := FormatDocument(doc)

	// Then: fenced, since extracted text is not markdown
	assert.Contains(t, markdown, "```")
	assert.Contains(t, markdown, "Chapter 1.")
}

func TestFormatDocument_NoFormatMetadata_FallsBackToPath(t *testing.T) {
	// Given: a document indexed before the format field existed
	doc := &store.Document{
		ID:       "doc4",
		Source:   "local",
		SourceID: "/docs/notes.md",
		Title:    "Notes",
		Content:  "## Section\n\nBody.",
	}

	// When: formatting
	markdown := FormatDocument(doc)

	// Then: the .md path marks it as markdown
	assert.NotContains(t, markdown, "```")
	assert.Contains(t, markdown, "## Section")
}

func TestFormatDocument_Nil(t *testing.T) {
	// Given: nil document
	var doc *store.Document = nil

	// When: formatting
	markdown := FormatDocument(doc)

	// Then: placeholder message
	assert.Equal(t, "Document not found.", markdown)
}

func TestFormatDocument_UntitledFallback(t *testing.T) {
	// Given: a document without a title
	doc := &store.Document{
		ID:      "doc5",
		Source:  "local",
		Content: "body",
	}

	// When: formatting
	markdown := FormatDocument(doc)

	// Then: placeholder title used
	assert.Contains(t, markdown, "# (untitled)")
}

func TestClampLimit(t *testing.T) {
	tests := []struct {
		name       string
		limit      int
		defaultVal int
		min        int
		max        int
		want       int
	}{
		{"zero uses default", 0, 10, 1, 50, 10},
		{"negative uses default", -5, 10, 1, 50, 10},
		{"below min clamps to min", 0, 10, 1, 50, 10},
		{"above max clamps to max", 100, 10, 1, 50, 50},
		{"valid value unchanged", 25, 10, 1, 50, 25},
		{"at min boundary", 1, 10, 1, 50, 1},
		{"at max boundary", 50, 10, 1, 50, 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := clampLimit(tt.limit, tt.defaultVal, tt.min, tt.max)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatSearchResults_LargeResults(t *testing.T) {
	// Given: fifty hits
	results := make([]*search.Result, 50)
	for i := 0; i < 50; i++ {
		results[i] = &search.Result{
			ID:      store.DocumentID("local", strings.Repeat("y", i+1)),
			Source:  "local",
			Title:   "Document",
			Preview: "preview",
			Score:   float64(50-i) / 50.0,
		}
	}

	// When: formatting
	markdown := FormatSearchResults("test", results)

	// Then: every one of them renders
	assert.Contains(t, markdown, "Found 50 results")
	assert.Equal(t, 50, strings.Count(markdown, "### "))
}

// =============================================================================
// ToSearchResultOutput / ToDocumentOutput Tests
// =============================================================================

func TestToSearchResultOutput_BasicFields(t *testing.T) {
	// Given: a search result with all fields
	result := &search.Result{
		ID:         "doc1",
		Source:     "local",
		SourceID:   "/docs/a.md",
		Title:      "Alpha",
		Preview:    "preview text",
		Score:      0.95,
		LastSynced: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}

	// When: mapping to the output struct
	output := ToSearchResultOutput(result)

	// Then: fields are populated
	assert.Equal(t, "doc1", output.ID)
	assert.Equal(t, "local", output.Source)
	assert.Equal(t, "/docs/a.md", output.SourceID)
	assert.Equal(t, "Alpha", output.Title)
	assert.Equal(t, "preview text", output.Preview)
	assert.Equal(t, 0.95, output.Score)
	assert.Equal(t, "2026-03-01T10:00:00Z", output.LastSynced)
}

func TestToSearchResultOutput_NilResult(t *testing.T) {
	// Given: nil result
	var result *search.Result = nil

	// When: converting
	output := ToSearchResultOutput(result)

	// Then: a zero-value output
	assert.Empty(t, output.ID)
	assert.Empty(t, output.Title)
}

func TestToSearchResultOutput_ZeroLastSynced(t *testing.T) {
	// Given: a result that has never synced
	result := &search.Result{ID: "doc1", Source: "local"}

	// When: converting
	output := ToSearchResultOutput(result)

	// Then: timestamp omitted rather than zero-formatted
	assert.Empty(t, output.LastSynced)
}

func TestToDocumentOutput_Basic(t *testing.T) {
	// Given: a stored document
	doc := &store.Document{
		ID:         "doc1",
		Source:     "gdrive",
		SourceID:   "1AbC",
		Title:      "Spec",
		Content:    "full body",
		Metadata:   map[string]any{"format": "docx", "exported_as": "text/plain"},
		LastSynced: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}

	// When: converting
	output := ToDocumentOutput(doc)

	// Then: all fields carried over
	assert.Equal(t, "doc1", output.ID)
	assert.Equal(t, "gdrive", output.Source)
	assert.Equal(t, "1AbC", output.SourceID)
	assert.Equal(t, "Spec", output.Title)
	assert.Equal(t, "full body", output.Content)
	assert.Equal(t, "docx", output.Metadata["format"])
	assert.Equal(t, "2026-03-01T10:00:00Z", output.LastSynced)
}

func TestToDocumentOutput_Nil(t *testing.T) {
	// Given: nil document
	var doc *store.Document = nil

	// When: converting
	output := ToDocumentOutput(doc)

	// Then: nil passthrough
	assert.Nil(t, output)
}
