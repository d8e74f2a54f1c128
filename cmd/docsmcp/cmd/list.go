package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/docsmcp/internal/output"
	"github.com/Aman-CERP/docsmcp/internal/search"
)

// listOptions holds CLI flags for list.
type listOptions struct {
	limit  int
	source string
	format string
}

func newListCmd() *cobra.Command {
	var opts listOptions

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List indexed documents",
		Long:  `List indexed documents, most recently synced first.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runList(cmd.Context(), cmd, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 0, "Maximum number of documents (0 uses the configured default)")
	cmd.Flags().StringVarP(&opts.source, "source", "s", "", "Restrict to one source: local, gdrive")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")

	return cmd
}

func runList(ctx context.Context, cmd *cobra.Command, opts listOptions) error {
	cleanup := setupCLILogging()
	defer cleanup()

	cfg, st, err := openIndex()
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	svc, err := search.New(st, cfg)
	if err != nil {
		return fmt.Errorf("failed to create search service: %w", err)
	}

	results, err := svc.List(ctx, search.ListOptions{
		Source: opts.source,
		Limit:  opts.limit,
	})
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}

	out := output.New(cmd.OutOrStdout())
	if len(results) == 0 {
		out.Status("", "No documents indexed yet. Run 'docsmcp index' to crawl your roots.")
		return nil
	}

	switch opts.format {
	case "json":
		return writeJSON(cmd, results)
	default:
		out.Statusf("📄", "%d documents (newest first):", len(results))
		out.Newline()
		for _, r := range results {
			out.Statusf("", "%s  %s [%s]", r.LastSynced.Format("2006-01-02 15:04"), r.Title, r.Source)
			out.Status("", fmt.Sprintf("   %s (id: %s)", r.SourceID, r.ID))
		}
		return nil
	}
}
