package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Aman-CERP/docsmcp/internal/store"
	"github.com/Aman-CERP/docsmcp/internal/telemetry"
)

// MaxResourceSize is the maximum document size served as a resource (1MB).
const MaxResourceSize = 1024 * 1024

// maxResourceDocuments caps how many documents are registered as resources.
const maxResourceDocuments = 10000

// documentResourcePrefix is the URI prefix for indexed document resources.
const documentResourcePrefix = "docsmcp://documents/"

// queryMetricsResourceURI identifies the query telemetry resource.
const queryMetricsResourceURI = "docsmcp://query_metrics"

// documentResourceURI builds the resource URI for a document id.
func documentResourceURI(id string) string {
	return documentResourcePrefix + id
}

// RegisterResources loads indexed documents and registers them as MCP
// resources. This should be called after the index is populated and before
// serving; documents indexed later stay reachable through the get tool.
func (s *Server) RegisterResources(ctx context.Context) error {
	docs, err := s.documents.ListAll(ctx, store.ListOptions{Limit: maxResourceDocuments})
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}

	count := 0
	for _, doc := range docs {
		if doc == nil || doc.ID == "" {
			continue
		}
		s.registerDocumentResource(doc)
		count++
	}

	s.logger.Info("registered resources", "count", count)
	return nil
}

// registerDocumentResource registers a single document as an MCP resource.
func (s *Server) registerDocumentResource(doc *store.Document) {
	s.mcp.AddResource(
		&mcp.Resource{
			Name:        resourceName(doc),
			URI:         documentResourceURI(doc.ID),
			Description: fmt.Sprintf("%s: %s (%s)", doc.Source, doc.SourceID, humanSize(int64(len(doc.Content)))),
			MIMEType:    mimeTypeForDocument(doc),
		},
		s.makeDocumentHandler(doc.ID),
	)
}

// makeDocumentHandler creates a read handler bound to a document id.
func (s *Server) makeDocumentHandler(id string) mcp.ResourceHandler {
	return func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		return s.handleReadDocument(ctx, documentResourceURI(id), id)
	}
}

// handleReadDocument serves a document's extracted text as resource content.
// Content always comes from the index, never from disk, so a document stays
// readable even after its source file moved or the remote went offline.
func (s *Server) handleReadDocument(ctx context.Context, uri, id string) (*mcp.ReadResourceResult, error) {
	doc, err := s.service.Get(ctx, id)
	if err != nil {
		return nil, MapError(err)
	}
	if doc == nil {
		return nil, NewResourceNotFoundError(uri)
	}

	if len(doc.Content) > MaxResourceSize {
		return nil, newError(ErrCodeFileTooLarge,
			fmt.Sprintf("document too large: %d bytes (max %d)", len(doc.Content), MaxResourceSize))
	}

	return textResource(uri, mimeTypeForDocument(doc), doc.Content), nil
}

// textResource wraps one text payload as a read result.
func textResource(uri, mimeType, text string) *mcp.ReadResourceResult {
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: mimeType,
			Text:     text,
		}},
	}
}

// resourceName picks a display name for a document resource.
func resourceName(doc *store.Document) string {
	if doc.Title != "" {
		return doc.Title
	}
	if doc.SourceID != "" {
		return doc.SourceID
	}
	return doc.ID
}

// mimeByFormat maps extractor output formats onto served MIME types.
// Anything else extracted (pdf, docx, pptx text) serves as plain text.
var mimeByFormat = map[string]string{
	"markdown": "text/markdown",
	"csv":      "text/csv",
}

// mimeTypeForDocument picks the MIME type of a document's extracted text.
// The extractors record the output format in metadata; the source locator
// breaks ties for documents indexed before that field existed.
func mimeTypeForDocument(doc *store.Document) string {
	if format, ok := doc.Metadata["format"].(string); ok {
		if mime, known := mimeByFormat[format]; known {
			return mime
		}
		return "text/plain"
	}
	return MimeTypeForPath(doc.SourceID)
}

// byteUnits holds display thresholds, largest first.
var byteUnits = []struct {
	threshold int64
	suffix    string
}{
	{1 << 30, "GB"},
	{1 << 20, "MB"},
	{1 << 10, "KB"},
}

// humanSize renders a byte count for display: "1.5 MB", "100 B".
func humanSize(n int64) string {
	for _, u := range byteUnits {
		if n >= u.threshold {
			return fmt.Sprintf("%.1f %s", float64(n)/float64(u.threshold), u.suffix)
		}
	}
	return fmt.Sprintf("%d B", n)
}

// QueryMetricsOutput is the JSON body of the query_metrics resource.
type QueryMetricsOutput struct {
	Summary             QueryMetricsSummary `json:"summary"`
	QueriesBySource     map[string]int64    `json:"queries_by_source"`
	TopTerms            []QueryTermCount    `json:"top_terms"`
	ZeroResultQueries   []string            `json:"zero_result_queries"`
	LatencyDistribution map[string]int64    `json:"latency_distribution"`
}

// QueryMetricsSummary holds the headline numbers.
type QueryMetricsSummary struct {
	TotalQueries    int64   `json:"total_queries"`
	TimePeriod      string  `json:"time_period"`
	ZeroResultPct   float64 `json:"zero_result_pct"`
	ExactRepeatRate float64 `json:"exact_repeat_rate"`
}

// QueryTermCount is one term and its frequency.
type QueryTermCount struct {
	Term  string `json:"term"`
	Count int64  `json:"count"`
}

// registerQueryMetricsResource exposes collected query telemetry.
func (s *Server) registerQueryMetricsResource() {
	s.mcp.AddResource(
		&mcp.Resource{
			Name:        "query_metrics",
			URI:         queryMetricsResourceURI,
			Description: "Query pattern telemetry for search optimization",
			MIMEType:    "application/json",
		},
		s.makeQueryMetricsHandler(),
	)
}

// makeQueryMetricsHandler creates the query_metrics read handler.
func (s *Server) makeQueryMetricsHandler() mcp.ResourceHandler {
	return func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		metrics := s.currentMetrics()
		if metrics == nil {
			return nil, NewInvalidParamsError("query metrics not available")
		}

		content, err := json.MarshalIndent(buildQueryMetricsOutput(metrics.Snapshot()), "", "  ")
		if err != nil {
			return nil, MapError(err)
		}

		return textResource(queryMetricsResourceURI, "application/json", string(content)), nil
	}
}

// buildQueryMetricsOutput reshapes a telemetry snapshot into the
// resource JSON structure.
func buildQueryMetricsOutput(snap *telemetry.QueryMetricsSnapshot) QueryMetricsOutput {
	out := QueryMetricsOutput{
		Summary: QueryMetricsSummary{
			TotalQueries:    snap.TotalQueries,
			TimePeriod:      "session",
			ZeroResultPct:   snap.ZeroResultPercentage(),
			ExactRepeatRate: snap.ExactRepeatRate,
		},
		QueriesBySource:     maps.Clone(snap.QueriesBySource),
		TopTerms:            make([]QueryTermCount, len(snap.TopTerms)),
		ZeroResultQueries:   snap.ZeroResultQueries,
		LatencyDistribution: make(map[string]int64, len(snap.LatencyDistribution)),
	}

	for i, tc := range snap.TopTerms {
		out.TopTerms[i] = QueryTermCount{Term: tc.Term, Count: tc.Count}
	}
	for bucket, count := range snap.LatencyDistribution {
		out.LatencyDistribution[string(bucket)] = count
	}
	return out
}
