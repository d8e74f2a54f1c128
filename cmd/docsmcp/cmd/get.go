package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/docsmcp/internal/output"
	"github.com/Aman-CERP/docsmcp/internal/search"
)

func newGetCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Print an indexed document",
		Long: `Print the full extracted text of an indexed document.

Accepts the document ID shown by search and list output.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGet(cmd.Context(), cmd, args[0], format)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format: text, json")

	return cmd
}

func runGet(ctx context.Context, cmd *cobra.Command, id, format string) error {
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

	doc, err := svc.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load document: %w", err)
	}
	if doc == nil {
		return fmt.Errorf("document not found: %s", id)
	}

	if format == "json" {
		return writeJSON(cmd, doc)
	}

	out := output.New(cmd.OutOrStdout())
	out.Statusf("📄", "%s", doc.Title)
	out.Status("", fmt.Sprintf("   %s [%s]", doc.SourceID, doc.Source))
	out.Status("", fmt.Sprintf("   synced %s", doc.LastSynced.Format(time.RFC3339)))
	out.Newline()
	fmt.Fprintln(cmd.OutOrStdout(), doc.Content)
	return nil
}
