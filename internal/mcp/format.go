package mcp

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/Aman-CERP/docsmcp/internal/search"
	"github.com/Aman-CERP/docsmcp/internal/store"
)

// FormatSearchResults renders ranked hits as a markdown section, one
// numbered entry per result with its score and preview.
func FormatSearchResults(query string, results []*search.Result) string {
	hits := compact(results)
	if len(hits) == 0 {
		return fmt.Sprintf("No results found for \"%s\"", query)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "## Search Results for \"%s\"\n\n", query)
	fmt.Fprintf(&sb, "Found %d result%s\n\n", len(hits), plural(len(hits)))
	for i, r := range hits {
		formatResult(&sb, i+1, r, true)
	}
	return sb.String()
}

// FormatListResults renders a document listing as markdown, newest first,
// without scores.
func FormatListResults(results []*search.Result) string {
	hits := compact(results)
	if len(hits) == 0 {
		return "No documents in the index. Run 'docsmcp index' to populate it."
	}

	var sb strings.Builder
	sb.WriteString("## Indexed Documents\n\n")
	fmt.Fprintf(&sb, "Showing %d document%s, newest first\n\n", len(hits), plural(len(hits)))
	for i, r := range hits {
		formatResult(&sb, i+1, r, false)
	}
	return sb.String()
}

// FormatDocument renders a full document as markdown. Markdown content is
// included as-is; everything else is fenced so client rendering stays intact.
func FormatDocument(doc *store.Document) string {
	if doc == nil {
		return "Document not found."
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", displayTitle(doc.Title))
	identityLine(&sb, doc.ID, doc.Source, doc.SourceID, doc.LastSynced, time.RFC3339)

	content := strings.TrimRight(doc.Content, "\n")
	if isMarkdownDocument(doc) {
		sb.WriteString(content)
		sb.WriteString("\n")
	} else {
		fmt.Fprintf(&sb, "```\n%s\n```\n", content)
	}
	return sb.String()
}

// formatResult writes one numbered listing entry.
func formatResult(sb *strings.Builder, num int, r *search.Result, withScore bool) {
	if withScore {
		fmt.Fprintf(sb, "### %d. %s (score: %.2f)\n", num, displayTitle(r.Title), r.Score)
	} else {
		fmt.Fprintf(sb, "### %d. %s\n", num, displayTitle(r.Title))
	}

	identityLine(sb, r.ID, r.Source, r.SourceID, r.LastSynced, "2006-01-02 15:04")

	if r.Preview != "" {
		sb.WriteString(r.Preview)
		sb.WriteString("\n\n")
	}
}

// identityLine writes the bold ID/Source/Synced metadata line shared by the
// listing entries and the full-document header. The sync stamp layout
// differs between the two, so the caller picks it.
func identityLine(sb *strings.Builder, id, source, sourceID string, synced time.Time, layout string) {
	fmt.Fprintf(sb, "**ID:** `%s` | **Source:** %s", id, source)
	if sourceID != "" {
		fmt.Fprintf(sb, " (%s)", sourceID)
	}
	if !synced.IsZero() {
		fmt.Fprintf(sb, " | **Synced:** %s", synced.UTC().Format(layout))
	}
	sb.WriteString("\n\n")
}

// isMarkdownDocument reports whether the stored content is markdown. The
// extractors record the output format in metadata; the source path breaks
// ties for documents indexed before that field existed.
func isMarkdownDocument(doc *store.Document) bool {
	if format, ok := doc.Metadata["format"].(string); ok {
		return format == "markdown"
	}
	return MimeTypeForPath(doc.SourceID) == "text/markdown"
}

// compact drops nil results.
func compact(results []*search.Result) []*search.Result {
	return slices.DeleteFunc(slices.Clone(results), func(r *search.Result) bool {
		return r == nil
	})
}

func displayTitle(title string) string {
	if title == "" {
		return "(untitled)"
	}
	return title
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}

// clampLimit resolves a requested result count: non-positive falls back to
// the default, anything else is pinned to [lo, hi].
func clampLimit(limit, fallback, lo, hi int) int {
	if limit <= 0 {
		return fallback
	}
	return min(max(limit, lo), hi)
}

// ToSearchResultOutput maps a ranked hit onto the search tool's output schema.
func ToSearchResultOutput(r *search.Result) SearchResultOutput {
	if r == nil {
		return SearchResultOutput{}
	}
	return SearchResultOutput{
		ID:         r.ID,
		Source:     r.Source,
		SourceID:   r.SourceID,
		Title:      r.Title,
		Preview:    r.Preview,
		Score:      r.Score,
		LastSynced: syncedStamp(r.LastSynced),
	}
}

// ToDocumentOutput maps a stored document onto the get tool's output schema.
func ToDocumentOutput(doc *store.Document) *DocumentOutput {
	if doc == nil {
		return nil
	}
	return &DocumentOutput{
		ID:         doc.ID,
		Source:     doc.Source,
		SourceID:   doc.SourceID,
		Title:      doc.Title,
		Content:    doc.Content,
		Metadata:   doc.Metadata,
		LastSynced: syncedStamp(doc.LastSynced),
	}
}

// syncedStamp formats a sync time for JSON output; the zero time becomes
// the empty string so omitempty drops the field.
func syncedStamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
