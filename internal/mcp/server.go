package mcp

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Aman-CERP/docsmcp/internal/async"
	"github.com/Aman-CERP/docsmcp/internal/config"
	"github.com/Aman-CERP/docsmcp/internal/crawl"
	"github.com/Aman-CERP/docsmcp/internal/search"
	"github.com/Aman-CERP/docsmcp/internal/store"
	"github.com/Aman-CERP/docsmcp/internal/telemetry"
	"github.com/Aman-CERP/docsmcp/pkg/version"
)

// SearchService is the query surface the server exposes over MCP.
// *search.Service satisfies it.
type SearchService interface {
	Search(ctx context.Context, query string, opts search.Options) ([]*search.Result, error)
	Get(ctx context.Context, id string) (*store.Document, error)
	List(ctx context.Context, opts search.ListOptions) ([]*search.Result, error)
	Stats(ctx context.Context) (*store.Stats, error)
}

// DocumentLister enumerates stored documents for resource registration.
// *store.SQLiteStore satisfies it.
type DocumentLister interface {
	ListAll(ctx context.Context, opts store.ListOptions) ([]*store.Document, error)
}

// Reindexer runs a full crawl of all configured sources on demand.
type Reindexer interface {
	Reindex(ctx context.Context) (*crawl.Report, error)
}

// ReindexFunc adapts a plain function to the Reindexer interface.
type ReindexFunc func(ctx context.Context) (*crawl.Report, error)

// Reindex implements Reindexer.
func (f ReindexFunc) Reindex(ctx context.Context) (*crawl.Report, error) {
	return f(ctx)
}

// Server is the MCP server for DocsMCP.
// It bridges AI clients (Claude Code, Cursor) with the document index.
type Server struct {
	mcp       *mcp.Server
	service   SearchService
	documents DocumentLister
	config    *config.Config
	logger    *slog.Logger

	// Reindex hook (optional, set via SetReindexer)
	reindexer Reindexer

	// Background crawl progress (nil unless a background crawl was launched)
	crawlProgress *async.CrawlProgress

	// Search telemetry, nil until SetMetrics wires it
	metrics *telemetry.QueryMetrics

	mu sync.RWMutex
}

// ToolInfo is one entry in the advertised tool list.
type ToolInfo struct {
	Name        string
	Description string
}

// ResourceInfo describes one listable resource.
type ResourceInfo struct {
	URI      string
	Name     string
	MIMEType string
}

// ResourceContent is the result of reading a resource.
type ResourceContent struct {
	URI      string
	Content  string
	MIMEType string
}

// SearchInput is the search tool's argument schema.
type SearchInput struct {
	Query  string `json:"query" jsonschema:"the search query to execute"`
	Source string `json:"source,omitempty" jsonschema:"restrict results to one source, e.g. local or gdrive"`
	Limit  int    `json:"limit,omitempty" jsonschema:"maximum number of results, default 20"`
}

// SearchOutput is the search tool's structured result.
type SearchOutput struct {
	Results []SearchResultOutput `json:"results" jsonschema:"list of ranked matches"`
}

// SearchResultOutput defines a single ranked match with enough context to
// decide whether fetching the full document is worth it.
type SearchResultOutput struct {
	ID         string  `json:"id" jsonschema:"document id, pass to the get tool for full content"`
	Source     string  `json:"source" jsonschema:"source the document came from"`
	SourceID   string  `json:"source_id" jsonschema:"source-native locator, e.g. a file path or Drive file id"`
	Title      string  `json:"title" jsonschema:"document title"`
	Preview    string  `json:"preview" jsonschema:"leading snippet of the extracted content"`
	Score      float64 `json:"score,omitempty" jsonschema:"relevance score, higher is better"`
	LastSynced string  `json:"last_synced,omitempty" jsonschema:"when the document was last indexed, RFC3339"`
}

// NewServer wires the search service and document lister into an MCP
// server. Both are required; a nil config falls back to defaults.
func NewServer(service SearchService, documents DocumentLister, cfg *config.Config) (*Server, error) {
	if service == nil {
		return nil, errors.New("search service is required")
	}
	if documents == nil {
		return nil, errors.New("document lister is required")
	}
	if cfg == nil {
		cfg = config.NewConfig()
	}

	s := &Server{
		service:   service,
		documents: documents,
		config:    cfg,
		logger:    slog.Default(),
	}

	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    "DocsMCP",
			Version: version.Version,
		},
		nil, // capabilities are inferred from what gets registered
	)
	s.registerTools()

	return s, nil
}

// SetReindexer wires the reindex tool to a crawl runner. Without one the
// tool reports that reindexing is unavailable.
func (s *Server) SetReindexer(r Reindexer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reindexer = r
}

// SetCrawlProgress attaches the progress tracker of a background crawl.
// This enables the server to report crawl progress via stats and return
// appropriate messages when search is called during the crawl.
func (s *Server) SetCrawlProgress(progress *async.CrawlProgress) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.crawlProgress = progress
}

// SetMetrics attaches the query telemetry collector and, when non-nil,
// registers the query_metrics resource alongside it.
func (s *Server) SetMetrics(m *telemetry.QueryMetrics) {
	s.mu.Lock()
	s.metrics = m
	s.mu.Unlock()

	if m != nil {
		s.registerQueryMetricsResource()
	}
}

// MCPServer exposes the underlying SDK server.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// Info reports the advertised server identity.
func (s *Server) Info() (name, ver string) {
	return "DocsMCP", version.Version
}

// Capabilities reports which MCP features the server offers.
func (s *Server) Capabilities() (hasTools, hasResources bool) {
	return true, true
}

// Tool descriptions are shared between ListTools and SDK registration.
const (
	toolDescSearch  = "Full-text search across all indexed documents. Returns ranked matches with previews and document ids. Use get with an id to read a full document."
	toolDescGet     = "Fetch one document in full by id, including extracted content and metadata. Ids come from search or list results."
	toolDescList    = "List indexed documents, newest first, with previews. Useful for browsing what the index currently holds."
	toolDescStats   = "Report index contents: total documents, per-source counts, index size on disk, and any crawl in progress."
	toolDescReindex = "Run a full crawl of all configured sources and wait for it to finish. Returns how many files and documents were indexed."
)

// toolCatalog is the complete tool surface, in registration order.
var toolCatalog = []ToolInfo{
	{Name: "search", Description: toolDescSearch},
	{Name: "get", Description: toolDescGet},
	{Name: "list", Description: toolDescList},
	{Name: "stats", Description: toolDescStats},
	{Name: "reindex", Description: toolDescReindex},
}

// ListTools returns the advertised tool surface.
func (s *Server) ListTools() []ToolInfo {
	return slices.Clone(toolCatalog)
}

// sdkTool looks a tool's registration metadata up in the catalog.
func sdkTool(name string) *mcp.Tool {
	for _, t := range toolCatalog {
		if t.Name == name {
			return &mcp.Tool{Name: t.Name, Description: t.Description}
		}
	}
	return &mcp.Tool{Name: name}
}

// registerTools adds every cataloged tool to the SDK server.
func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, sdkTool("search"), s.mcpSearchHandler)
	mcp.AddTool(s.mcp, sdkTool("get"), s.mcpGetHandler)
	mcp.AddTool(s.mcp, sdkTool("list"), s.mcpListHandler)
	mcp.AddTool(s.mcp, sdkTool("stats"), s.mcpStatsHandler)
	mcp.AddTool(s.mcp, sdkTool("reindex"), s.mcpReindexHandler)

	s.logger.Info("MCP tools registered", slog.Int("count", len(toolCatalog)))
}

// CallTool dispatches an in-process tool invocation by name. The CLI uses
// this path; MCP clients reach the same logic through the SDK handlers.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (any, error) {
	switch name {
	case "search":
		return s.handleSearchTool(ctx, args)
	case "get":
		return s.handleGetTool(ctx, args)
	case "list":
		return s.handleListTool(ctx, args)
	case "stats":
		return s.handleStatsTool(ctx, args)
	case "reindex":
		return s.handleReindexTool(ctx)
	default:
		return nil, NewMethodNotFoundError(name)
	}
}

// callLog correlates the start, outcome, and timing of one tool call in
// the server log.
type callLog struct {
	log   *slog.Logger
	tool  string
	id    string
	start time.Time
}

func (s *Server) beginCall(tool string) *callLog {
	return &callLog{
		log:   s.logger,
		tool:  tool,
		id:    generateRequestID(),
		start: time.Now(),
	}
}

func (c *callLog) started(attrs ...any) {
	c.log.Info(c.tool+" started",
		append([]any{slog.String("request_id", c.id)}, attrs...)...)
}

func (c *callLog) failed(err error) {
	c.log.Error(c.tool+" failed",
		slog.String("request_id", c.id),
		slog.Duration("duration", time.Since(c.start)),
		slog.String("error", err.Error()))
}

func (c *callLog) completed(attrs ...any) {
	c.log.Info(c.tool+" completed",
		append([]any{
			slog.String("request_id", c.id),
			slog.Duration("duration", time.Since(c.start)),
		}, attrs...)...)
}

// handleSearchTool answers the search tool with markdown results.
func (s *Server) handleSearchTool(ctx context.Context, args map[string]any) (string, error) {
	// An initial background crawl means the index is still filling.
	if progress := s.activeCrawl(); progress != nil && progress.IsCrawling() {
		return crawlInProgressMessage(progress.Snapshot()), nil
	}

	query, ok := args["query"].(string)
	if !ok || query == "" {
		return "", NewInvalidParamsError("query parameter is required and must be a non-empty string")
	}
	if strings.TrimSpace(query) == "" {
		return "", NewInvalidParamsError("query cannot be empty or whitespace only")
	}

	limit := s.clampedLimit(args, s.config.Search.DefaultLimit)
	opts := search.Options{Limit: limit}
	if src, ok := args["source"].(string); ok {
		opts.Source = src
	}

	call := s.beginCall("search")
	call.started(slog.String("query", query), slog.Int("limit", limit))

	results, err := s.service.Search(ctx, query, opts)
	if err != nil {
		call.failed(err)
		return "", MapError(err)
	}
	call.completed(slog.Int("result_count", len(results)))

	return FormatSearchResults(query, results), nil
}

// handleGetTool fetches one document as markdown. A missing id is a
// structured not-found error, never an empty success.
func (s *Server) handleGetTool(ctx context.Context, args map[string]any) (string, error) {
	id, ok := args["id"].(string)
	if !ok || strings.TrimSpace(id) == "" {
		return "", NewInvalidParamsError("id parameter is required and must be a non-empty string")
	}
	id = strings.TrimSpace(id)

	call := s.beginCall("get")
	call.started(slog.String("document_id", id))

	doc, err := s.service.Get(ctx, id)
	if err != nil {
		call.failed(err)
		return "", MapError(err)
	}
	if doc == nil {
		return "", NewDocumentNotFoundError(id)
	}
	call.completed(slog.Int("content_bytes", len(doc.Content)))

	return FormatDocument(doc), nil
}

// handleListTool renders recent documents as markdown.
func (s *Server) handleListTool(ctx context.Context, args map[string]any) (string, error) {
	opts := search.ListOptions{}
	if src, ok := args["source"].(string); ok {
		opts.Source = src
	}
	// Zero falls through to the store's default listing size.
	opts.Limit = s.clampedLimit(args, 0)

	call := s.beginCall("list")
	call.started(slog.String("source", opts.Source), slog.Int("limit", opts.Limit))

	results, err := s.service.List(ctx, opts)
	if err != nil {
		call.failed(err)
		return "", MapError(err)
	}
	call.completed(slog.Int("result_count", len(results)))

	return FormatListResults(results), nil
}

// handleStatsTool reports structured index statistics, including the
// progress of any crawl launched in the background.
func (s *Server) handleStatsTool(ctx context.Context, _ map[string]any) (*StatsOutput, error) {
	call := s.beginCall("stats")
	call.started()

	stats, err := s.service.Stats(ctx)
	if err != nil {
		call.failed(err)
		return nil, MapError(err)
	}

	output := &StatsOutput{
		IndexPath: s.config.IndexPath(),
		BySource:  map[string]int{},
	}
	if stats != nil {
		output.TotalDocuments = stats.TotalDocuments
		output.IndexSizeBytes = stats.IndexSizeBytes
		if stats.BySource != nil {
			output.BySource = stats.BySource
		}
		if !stats.LastUpdated.IsZero() {
			output.LastUpdated = stats.LastUpdated.UTC().Format(time.RFC3339)
		}
	}
	if progress := s.activeCrawl(); progress != nil {
		output.Crawl = crawlStatusOutput(progress.Snapshot())
	}

	call.completed(slog.Int("total_documents", output.TotalDocuments))
	return output, nil
}

// crawlStatusOutput converts a progress snapshot to the stats payload shape.
func crawlStatusOutput(snap async.CrawlProgressSnapshot) *CrawlStatusOutput {
	return &CrawlStatusOutput{
		Status:         snap.Status,
		Stage:          snap.Stage,
		FilesTotal:     snap.FilesTotal,
		FilesProcessed: snap.FilesProcessed,
		Documents:      snap.Documents,
		ProgressPct:    snap.ProgressPct,
		ElapsedSeconds: snap.ElapsedSeconds,
		ErrorMessage:   snap.ErrorMessage,
	}
}

// handleReindexTool runs a full crawl synchronously and reports what it
// indexed.
func (s *Server) handleReindexTool(ctx context.Context) (*ReindexOutput, error) {
	reindexer := s.currentReindexer()
	if reindexer == nil {
		return nil, &MCPError{
			Code:    ErrCodeInternalError,
			Message: "Reindexing is not available on this server. Run 'docsmcp index' from a terminal instead.",
		}
	}

	call := s.beginCall("reindex")
	call.started()

	report, err := reindexer.Reindex(ctx)
	if err != nil {
		call.failed(err)
		return nil, MapError(err)
	}

	output := &ReindexOutput{
		Duration: time.Since(call.start).Round(time.Millisecond).String(),
	}
	if report != nil {
		output.Files = report.Files
		output.Documents = report.Documents
		output.Errors = report.Errors
		output.Warnings = report.Warnings
		output.Duration = report.Duration.Round(time.Millisecond).String()
	}

	call.completed(slog.Int("documents", output.Documents))
	return output, nil
}

// mcpSearchHandler backs the search tool for SDK clients.
func (s *Server) mcpSearchHandler(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (
	*mcp.CallToolResult,
	SearchOutput,
	error,
) {
	if strings.TrimSpace(input.Query) == "" {
		return nil, SearchOutput{}, NewInvalidParamsError("query parameter is required")
	}

	// During the initial background crawl the index is still filling;
	// say so instead of returning a partial result set.
	if progress := s.activeCrawl(); progress != nil && progress.IsCrawling() {
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				&mcp.TextContent{Text: crawlInProgressMessage(progress.Snapshot())},
			},
		}, SearchOutput{}, nil
	}

	opts := search.Options{
		Source: input.Source,
		Limit:  s.config.Search.DefaultLimit,
	}
	if input.Limit > 0 {
		opts.Limit = clampLimit(input.Limit, s.config.Search.DefaultLimit, 1, s.config.Search.MaxLimit)
	}

	results, err := s.service.Search(ctx, input.Query, opts)
	if err != nil {
		return nil, SearchOutput{}, MapError(err)
	}

	output := SearchOutput{
		Results: make([]SearchResultOutput, 0, len(results)),
	}
	for _, r := range results {
		if r != nil {
			output.Results = append(output.Results, ToSearchResultOutput(r))
		}
	}

	return nil, output, nil
}

// mcpGetHandler backs the get tool for SDK clients.
func (s *Server) mcpGetHandler(ctx context.Context, _ *mcp.CallToolRequest, input GetInput) (
	*mcp.CallToolResult,
	GetOutput,
	error,
) {
	id := strings.TrimSpace(input.ID)
	if id == "" {
		return nil, GetOutput{}, NewInvalidParamsError("id parameter is required")
	}

	doc, err := s.service.Get(ctx, id)
	if err != nil {
		return nil, GetOutput{}, MapError(err)
	}
	if doc == nil {
		return nil, GetOutput{}, NewDocumentNotFoundError(id)
	}

	return nil, GetOutput{Document: ToDocumentOutput(doc)}, nil
}

// mcpListHandler backs the list tool for SDK clients.
func (s *Server) mcpListHandler(ctx context.Context, _ *mcp.CallToolRequest, input ListInput) (
	*mcp.CallToolResult,
	ListOutput,
	error,
) {
	opts := search.ListOptions{
		Source: input.Source,
	}
	if input.Limit > 0 {
		opts.Limit = clampLimit(input.Limit, 0, 1, s.config.Search.MaxLimit)
	}

	results, err := s.service.List(ctx, opts)
	if err != nil {
		return nil, ListOutput{}, MapError(err)
	}

	output := ListOutput{
		Documents: make([]SearchResultOutput, 0, len(results)),
	}
	for _, r := range results {
		if r != nil {
			output.Documents = append(output.Documents, ToSearchResultOutput(r))
		}
	}

	return nil, output, nil
}

// mcpStatsHandler backs the stats tool for SDK clients.
func (s *Server) mcpStatsHandler(ctx context.Context, _ *mcp.CallToolRequest, _ StatsInput) (
	*mcp.CallToolResult,
	*StatsOutput,
	error,
) {
	output, err := s.handleStatsTool(ctx, nil)
	if err != nil {
		return nil, nil, MapError(err)
	}
	return nil, output, nil
}

// mcpReindexHandler backs the reindex tool for SDK clients.
func (s *Server) mcpReindexHandler(ctx context.Context, _ *mcp.CallToolRequest, _ ReindexInput) (
	*mcp.CallToolResult,
	*ReindexOutput,
	error,
) {
	output, err := s.handleReindexTool(ctx)
	if err != nil {
		return nil, nil, MapError(err)
	}
	return nil, output, nil
}

// ListResources enumerates indexed documents as MCP resources.
func (s *Server) ListResources(ctx context.Context, cursor string) ([]ResourceInfo, string, error) {
	docs, err := s.documents.ListAll(ctx, store.ListOptions{Limit: maxResourceDocuments})
	if err != nil {
		return nil, "", MapError(err)
	}

	resources := make([]ResourceInfo, 0, len(docs))
	for _, doc := range docs {
		if doc == nil || doc.ID == "" {
			continue
		}
		resources = append(resources, ResourceInfo{
			URI:      documentResourceURI(doc.ID),
			Name:     resourceName(doc),
			MIMEType: mimeTypeForDocument(doc),
		})
	}

	return resources, "", nil // cursor unused, the list fits one page
}

// ReadResource resolves a resource URI to its content.
func (s *Server) ReadResource(ctx context.Context, uri string) (*ResourceContent, error) {
	if uri == queryMetricsResourceURI {
		result, err := s.makeQueryMetricsHandler()(ctx, nil)
		if err != nil {
			return nil, err
		}
		return resourceContentFromResult(uri, result), nil
	}

	id, ok := strings.CutPrefix(uri, documentResourcePrefix)
	if !ok || id == "" {
		return nil, NewResourceNotFoundError(uri)
	}

	result, err := s.handleReadDocument(ctx, uri, id)
	if err != nil {
		return nil, err
	}
	return resourceContentFromResult(uri, result), nil
}

// resourceContentFromResult flattens an SDK read result to the in-process
// resource representation.
func resourceContentFromResult(uri string, result *mcp.ReadResourceResult) *ResourceContent {
	content := &ResourceContent{URI: uri}
	if result != nil && len(result.Contents) > 0 && result.Contents[0] != nil {
		content.Content = result.Contents[0].Text
		content.MIMEType = result.Contents[0].MIMEType
	}
	return content
}

// Serve runs the server on the chosen transport until the context ends.
func (s *Server) Serve(ctx context.Context, transport, addr string) error {
	s.logger.Info("Starting MCP server",
		slog.String("transport", transport),
		slog.String("addr", addr))

	switch transport {
	case "stdio":
		err := s.mcp.Run(ctx, &mcp.StdioTransport{})
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("MCP server stopped with error",
				slog.String("error", err.Error()))
		} else {
			s.logger.Info("MCP server stopped gracefully")
		}
		return err
	case "sse":
		// The SDK has no SSE transport yet
		return fmt.Errorf("SSE transport not yet implemented")
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio)", transport)
	}
}

// Close is a no-op; the SDK server stops when its run context is canceled.
func (s *Server) Close() error {
	return nil
}

// locked reads *v under mu's read lock.
func locked[T any](mu *sync.RWMutex, v *T) T {
	mu.RLock()
	defer mu.RUnlock()
	return *v
}

func (s *Server) activeCrawl() *async.CrawlProgress { return locked(&s.mu, &s.crawlProgress) }

func (s *Server) currentReindexer() Reindexer { return locked(&s.mu, &s.reindexer) }

func (s *Server) currentMetrics() *telemetry.QueryMetrics { return locked(&s.mu, &s.metrics) }

// clampedLimit extracts a limit argument and clamps it to the configured
// maximum. JSON decoding delivers numbers as float64; in-process callers
// pass plain ints. defaultVal applies when the argument is absent or zero.
func (s *Server) clampedLimit(args map[string]any, defaultVal int) int {
	limit := defaultVal
	switch l := args["limit"].(type) {
	case float64:
		limit = clampLimit(int(l), defaultVal, 1, s.config.Search.MaxLimit)
	case int:
		limit = clampLimit(l, defaultVal, 1, s.config.Search.MaxLimit)
	}
	return limit
}

// crawlInProgressMessage renders the notice returned while the initial
// background crawl is still filling the index.
func crawlInProgressMessage(snap async.CrawlProgressSnapshot) string {
	return fmt.Sprintf("## Crawl in Progress\n\n"+
		"**Progress:** %.1f%% (%d/%d files)\n"+
		"**Stage:** %s\n\n"+
		"Search results may be incomplete or unavailable. Please try again in a moment.",
		snap.ProgressPct, snap.FilesProcessed, snap.FilesTotal, snap.Stage)
}

// generateRequestID yields a short random ID tying a call's log lines
// together.
func generateRequestID() string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
