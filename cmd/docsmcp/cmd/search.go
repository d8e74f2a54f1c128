package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/docsmcp/internal/config"
	"github.com/Aman-CERP/docsmcp/internal/output"
	"github.com/Aman-CERP/docsmcp/internal/search"
	"github.com/Aman-CERP/docsmcp/internal/store"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	limit  int
	source string // "", "local", "gdrive"
	format string // "text", "json"
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the document index",
		Long: `Search the document index with full-text queries.

Results are ranked by relevance and show a short preview. Use
'docsmcp get <id>' to print a matching document in full.

Examples:
  docsmcp search "quarterly planning"
  docsmcp search architecture --limit 5
  docsmcp search "meeting notes" --source gdrive
  docsmcp search budget --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			return runSearch(cmd.Context(), cmd, query, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 0, "Maximum number of results (0 uses the configured default)")
	cmd.Flags().StringVarP(&opts.source, "source", "s", "", "Restrict to one source: local, gdrive")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")

	return cmd
}

func runSearch(ctx context.Context, cmd *cobra.Command, query string, opts searchOptions) error {
	cleanup := setupCLILogging()
	defer cleanup()

	slog.Info("search_started", slog.String("query", query), slog.Int("limit", opts.limit))
	out := output.New(cmd.OutOrStdout())

	cfg, st, err := openIndex()
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	svc, err := search.New(st, cfg)
	if err != nil {
		return fmt.Errorf("failed to create search service: %w", err)
	}

	results, err := svc.Search(ctx, query, search.Options{
		Source: opts.source,
		Limit:  opts.limit,
	})
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	slog.Info("search_complete", slog.Int("results", len(results)))

	if len(results) == 0 {
		out.Status("", fmt.Sprintf("No results found for %q", query))
		return nil
	}

	switch opts.format {
	case "json":
		return writeJSON(cmd, results)
	default:
		return formatSearchText(out, query, results)
	}
}

// formatSearchText outputs results in human-readable form.
func formatSearchText(out *output.Writer, query string, results []*search.Result) error {
	out.Statusf("🔍", "Found %d results for %q:", len(results), query)
	out.Newline()

	for i, r := range results {
		out.Statusf("", "%d. %s (score: %.2f)", i+1, r.Title, r.Score)
		out.Status("", fmt.Sprintf("   %s [%s] (id: %s)", r.SourceID, r.Source, r.ID))

		for _, line := range getSnippet(r.Preview, 3) {
			out.Status("", "   "+line)
		}
		out.Newline()
	}
	return nil
}

// getSnippet returns the first n lines of content.
func getSnippet(content string, n int) []string {
	lines := strings.Split(content, "\n")
	if len(lines) > n {
		lines = lines[:n]
	}
	// Trim trailing empty lines
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// writeJSON renders v as indented JSON on the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// openIndex loads configuration and opens the existing index. All the
// read-side commands share this path; it fails with a hint when no
// index has been built yet.
func openIndex() (*config.Config, *store.SQLiteStore, error) {
	root, err := config.FindProjectRoot(".")
	if err != nil {
		root, _ = os.Getwd()
	}

	cfg, err := config.Load(root)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if _, err := os.Stat(cfg.IndexPath()); os.IsNotExist(err) {
		return nil, nil, fmt.Errorf("no index found. Run 'docsmcp index' first")
	}

	st, err := store.New(cfg.IndexPath(), store.Options{CacheSizeMB: cfg.Limits.SQLiteCacheMB})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open index: %w", err)
	}
	return cfg, st, nil
}
