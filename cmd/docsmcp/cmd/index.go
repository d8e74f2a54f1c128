package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/docsmcp/internal/async"
	"github.com/Aman-CERP/docsmcp/internal/config"
	"github.com/Aman-CERP/docsmcp/internal/crawl"
	"github.com/Aman-CERP/docsmcp/internal/extract"
	"github.com/Aman-CERP/docsmcp/internal/gdrive"
	"github.com/Aman-CERP/docsmcp/internal/output"
	"github.com/Aman-CERP/docsmcp/internal/scanner"
	"github.com/Aman-CERP/docsmcp/internal/store"
	"github.com/Aman-CERP/docsmcp/internal/ui"
)

// indexOptions configures an index run.
type indexOptions struct {
	// Force discards the existing index before crawling.
	Force bool

	// NoTUI forces plain progress output.
	NoTUI bool
}

func newIndexCmd() *cobra.Command {
	var opts indexOptions

	cmd := &cobra.Command{
		Use:   "index [path]",
		Short: "Crawl document roots and build the search index",
		Long: `Crawl the configured roots and build the local search index.

With a path argument, only that directory is crawled instead of the
configured roots.

The crawl is incremental: unchanged files are skipped by content hash,
changed files are re-extracted, and files that disappeared are removed
from the index. Use --force to discard the index and start from
scratch.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) > 0 {
				path = args[0]
			}
			return runIndex(cmd, path, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.Force, "force", false, "Discard the existing index and re-crawl everything")
	cmd.Flags().BoolVar(&opts.NoTUI, "no-tui", false, "Disable the progress UI (plain output)")

	return cmd
}

func runIndex(cmd *cobra.Command, path string, opts indexOptions) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// File-only logging keeps the progress UI clean.
	cleanup := setupCLILogging()
	defer cleanup()

	out := output.New(cmd.OutOrStdout())

	root, err := config.FindProjectRoot(".")
	if err != nil {
		root, _ = os.Getwd()
	}
	cfg, err := config.Load(root)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if path != "" {
		abs, err := filepath.Abs(path)
		if err != nil {
			return fmt.Errorf("invalid path %q: %w", path, err)
		}
		info, err := os.Stat(abs)
		if err != nil {
			return fmt.Errorf("path does not exist: %s", path)
		}
		if !info.IsDir() {
			return fmt.Errorf("path is not a directory: %s", path)
		}
		cfg.Sources.Local.Roots = []string{abs}
	}

	hasLocal := cfg.Sources.Local.IsEnabled() && len(cfg.Sources.Local.Roots) > 0
	if !hasLocal && !cfg.Sources.GDrive.IsEnabled() {
		return fmt.Errorf("no document roots configured\nRun 'docsmcp init' to set up, or pass a directory: docsmcp index <path>")
	}

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	if opts.Force {
		out.Statusf("🧹", "Clearing existing index")
		if err := clearIndexData(cfg); err != nil {
			return err
		}
	}

	st, err := store.New(cfg.IndexPath(), store.Options{CacheSizeMB: cfg.Limits.SQLiteCacheMB})
	if err != nil {
		return fmt.Errorf("failed to open index: %w", err)
	}
	defer func() { _ = st.Close() }()

	label := path
	if label == "" && len(cfg.Sources.Local.Roots) == 1 {
		label = cfg.Sources.Local.Roots[0]
	}
	renderer := ui.NewRenderer(ui.NewConfig(cmd.OutOrStdout(),
		ui.WithForcePlain(opts.NoTUI),
		ui.WithNoColor(ui.DetectNoColor()),
		ui.WithRootLabel(label),
	))

	report, err := crawlOnce(ctx, cfg, st, renderer)
	if err != nil {
		return err
	}

	if report.Errors > 0 {
		out.Warningf("Completed with %d source errors, see %s", report.Errors, cfg.LogPath())
	}
	return nil
}

// clearIndexData removes the index database and crawl status so the next
// crawl starts from nothing. The lock file stays; a concurrent crawl
// still holds it.
func clearIndexData(cfg *config.Config) error {
	paths := []string{
		cfg.IndexPath(),
		cfg.IndexPath() + "-wal",
		cfg.IndexPath() + "-shm",
		cfg.StatusPath(),
	}
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove %s: %w", p, err)
		}
	}
	return nil
}

// buildCrawlRunner assembles a crawl runner from the configured sources.
// A Google Drive connector that fails to initialize is reported and
// skipped so the local crawl still runs.
func buildCrawlRunner(ctx context.Context, cfg *config.Config, st *store.SQLiteStore, renderer ui.Renderer) (*crawl.Runner, error) {
	var connectors []crawl.Connector
	if cfg.Sources.GDrive.IsEnabled() {
		connector, err := gdrive.New(ctx, cfg)
		if err != nil {
			slog.Warn("google drive connector unavailable", slog.String("error", err.Error()))
			renderer.AddError(ui.ErrorEvent{File: "google drive", Err: err, IsWarn: true})
		} else {
			connectors = append(connectors, connector)
		}
	}

	return crawl.NewRunner(crawl.RunnerDependencies{
		Renderer:   renderer,
		Config:     cfg,
		Store:      st,
		Connectors: connectors,
	})
}

// crawlOnce runs a single full crawl under the shared crawl lock and
// records the outcome in the status file.
func crawlOnce(ctx context.Context, cfg *config.Config, st *store.SQLiteStore, renderer ui.Renderer) (*crawl.Report, error) {
	started := time.Now()

	runner, err := buildCrawlRunner(ctx, cfg, st, renderer)
	if err != nil {
		return nil, err
	}

	report, err := runner.Run(ctx, crawl.RunnerConfig{LockPath: cfg.LockPath()})
	if err != nil {
		writeCrawlStatus(cfg, &async.StatusFile{
			Status:    string(async.StatusError),
			Error:     err.Error(),
			StartedAt: started,
		})
		return nil, err
	}

	writeCrawlStatus(cfg, &async.StatusFile{
		Status:         string(async.StatusReady),
		FilesTotal:     report.Files,
		FilesProcessed: report.Files,
		Documents:      report.Documents,
		Errors:         report.Errors,
		Warnings:       report.Warnings,
		StartedAt:      started,
	})
	return report, nil
}

func writeCrawlStatus(cfg *config.Config, status *async.StatusFile) {
	if err := async.WriteStatusFile(cfg.DataDir, status); err != nil {
		slog.Debug("failed to write status file", slog.String("error", err.Error()))
	}
}

// discardRenderer returns a progress renderer that swallows all output,
// for crawls triggered over MCP where stdout belongs to the protocol.
func discardRenderer() ui.Renderer {
	return ui.NewPlainRenderer(ui.NewConfig(io.Discard, ui.WithNoColor(true)))
}

// newEventCoordinator builds the coordinator that applies watcher events
// to the index during serve.
func newEventCoordinator(cfg *config.Config, st *store.SQLiteStore) (*crawl.Coordinator, error) {
	sc, err := scanner.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create scanner: %w", err)
	}
	return crawl.NewCoordinator(crawl.CoordinatorConfig{
		Store:     st,
		Extractor: extract.New(extract.Options{MaxContentChars: cfg.Limits.MaxContentChars}),
		Scanner:   sc,
		Config:    cfg,
	}), nil
}
