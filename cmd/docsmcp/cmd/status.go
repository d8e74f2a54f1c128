package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/docsmcp/internal/async"
	"github.com/Aman-CERP/docsmcp/internal/config"
	"github.com/Aman-CERP/docsmcp/internal/store"
	"github.com/Aman-CERP/docsmcp/internal/telemetry"
	"github.com/Aman-CERP/docsmcp/internal/ui"
)

func newStatusCmd() *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show index status",
		Long: `Show the state of the document index: document counts by source,
index size, last update time, and recent query activity.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd.Context(), cmd, jsonOut)
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output status as JSON")

	return cmd
}

func runStatus(ctx context.Context, cmd *cobra.Command, jsonOut bool) error {
	cleanup := setupCLILogging()
	defer cleanup()

	cfg, st, err := openIndex()
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	info, err := collectStatus(ctx, cfg, st)
	if err != nil {
		return err
	}

	renderer := ui.NewStatusRenderer(cmd.OutOrStdout(), ui.DetectNoColor())
	if jsonOut {
		// JSON output stays a pure StatusInfo document for scripting.
		return renderer.RenderJSON(*info)
	}
	if err := renderer.Render(*info); err != nil {
		return err
	}
	printQueryActivity(cmd, st)
	return nil
}

func collectStatus(ctx context.Context, cfg *config.Config, st *store.SQLiteStore) (*ui.StatusInfo, error) {
	stats, err := st.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read index stats: %w", err)
	}

	info := &ui.StatusInfo{
		DataDir:        cfg.DataDir,
		TotalDocuments: stats.TotalDocuments,
		BySource:       stats.BySource,
		IndexSize:      stats.IndexSizeBytes,
		LastUpdated:    stats.LastUpdated,
		// Watching runs inside serve; this process cannot see it.
		WatcherStatus: "n/a",
	}

	status, err := async.ReadStatusFile(cfg.DataDir)
	if err != nil {
		slog.Debug("failed to read crawl status", slog.String("error", err.Error()))
	} else if status != nil {
		info.CrawlState = status.Status
	}

	return info, nil
}

// printQueryActivity appends recent query telemetry to the text output
// when any has been recorded.
func printQueryActivity(cmd *cobra.Command, st *store.SQLiteStore) {
	metrics, err := telemetry.NewSQLiteMetricsStore(st.DB())
	if err != nil {
		slog.Debug("query metrics unavailable", slog.String("error", err.Error()))
		return
	}

	terms, err := metrics.GetTopTerms(5)
	if err != nil {
		slog.Debug("failed to read top query terms", slog.String("error", err.Error()))
	}
	zeroes, err := metrics.GetZeroResultQueries(5)
	if err != nil {
		slog.Debug("failed to read zero-result queries", slog.String("error", err.Error()))
	}
	if len(terms) == 0 && len(zeroes) == 0 {
		return
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out)

	if len(terms) > 0 {
		fmt.Fprintln(out, "  Top query terms:")
		for _, tc := range terms {
			fmt.Fprintf(out, "    %-20s %d\n", tc.Term, tc.Count)
		}
	}
	if len(zeroes) > 0 {
		fmt.Fprintln(out, "  Recent queries with no results:")
		for _, q := range zeroes {
			fmt.Fprintf(out, "    %q\n", q)
		}
	}
}
