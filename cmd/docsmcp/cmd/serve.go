package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/Aman-CERP/docsmcp/internal/async"
	"github.com/Aman-CERP/docsmcp/internal/config"
	"github.com/Aman-CERP/docsmcp/internal/crawl"
	"github.com/Aman-CERP/docsmcp/internal/logging"
	"github.com/Aman-CERP/docsmcp/internal/mcp"
	"github.com/Aman-CERP/docsmcp/internal/search"
	"github.com/Aman-CERP/docsmcp/internal/store"
	"github.com/Aman-CERP/docsmcp/internal/telemetry"
)

func newServeCmd() *cobra.Command {
	var (
		transport string
		port      int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server",
		Long: `Start the MCP server for AI assistant integration.

The server exposes search, get, list, stats, and reindex tools over the
Model Context Protocol. With stdio transport (the default) it is meant
to be launched by an MCP client like Claude Code, not run interactively.

While serving, configured roots are watched for changes and re-indexed
live. If the index is empty on startup, a background crawl populates it
without delaying the MCP handshake.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), transport, port)
		},
	}

	cmd.Flags().StringVar(&transport, "transport", "stdio", "Transport protocol (stdio)")
	cmd.Flags().IntVar(&port, "port", 0, "Port for network transports (ignored for stdio)")

	// Local --debug mirrors the persistent flag so `docsmcp serve --debug`
	// reads naturally in MCP client configs.
	cmd.Flags().BoolVar(&debugMode, "debug", false, "Enable debug logging to ~/.docsmcp/logs/")

	return cmd
}

// serveOptions configures a serve run.
type serveOptions struct {
	Transport string
	Port      int

	// ForceCrawl launches the background crawl even when the index
	// already has documents.
	ForceCrawl bool
}

// runServe starts the MCP server with the given transport.
func runServe(ctx context.Context, transport string, port int) error {
	return runServeWithOptions(ctx, serveOptions{Transport: transport, Port: port})
}

func runServeWithOptions(ctx context.Context, opts serveOptions) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// MCP-safe logging before anything else: stdout carries JSON-RPC
	// exclusively, and stderr must stay quiet too, so logs go only to the
	// rotating file.
	cleanup, err := logging.SetupMCPMode()
	if err == nil {
		defer cleanup()
	}

	if opts.Transport == "stdio" {
		if err := verifyStdinForMCP(); err != nil {
			return err
		}
	}

	root, err := config.FindProjectRoot(".")
	if err != nil {
		root, _ = os.Getwd()
	}

	cfg, err := config.Load(root)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	st, err := store.New(cfg.IndexPath(), store.Options{CacheSizeMB: cfg.Limits.SQLiteCacheMB})
	if err != nil {
		return fmt.Errorf("failed to open index: %w", err)
	}
	defer func() { _ = st.Close() }()

	// Query telemetry persists into the same index file. A metrics store
	// failure downgrades to in-session metrics rather than blocking serve.
	var metrics *telemetry.QueryMetrics
	if metricsStore, err := telemetry.NewSQLiteMetricsStore(st.DB()); err != nil {
		slog.Warn("query metrics persistence unavailable", slog.String("error", err.Error()))
		metrics = telemetry.NewQueryMetrics(nil)
	} else {
		metrics = telemetry.NewQueryMetrics(metricsStore)
	}
	defer func() { _ = metrics.Close() }()

	svc, err := search.New(st, cfg, search.WithMetrics(metrics))
	if err != nil {
		return fmt.Errorf("failed to create search service: %w", err)
	}

	srv, err := mcp.NewServer(svc, st, cfg)
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}
	defer func() { _ = srv.Close() }()

	srv.SetMetrics(metrics)
	srv.SetReindexer(mcp.ReindexFunc(func(ctx context.Context) (*crawl.Report, error) {
		return crawlOnce(ctx, cfg, st, discardRenderer())
	}))

	if err := srv.RegisterResources(ctx); err != nil {
		slog.Warn("failed to register document resources", slog.String("error", err.Error()))
	}

	// First-run behavior: an empty index triggers a background crawl so
	// the MCP handshake is never delayed. Tools report crawl progress
	// until it finishes.
	if crawler := startBackgroundCrawl(ctx, cfg, st, opts.ForceCrawl); crawler != nil {
		srv.SetCrawlProgress(crawler.Progress())
		defer crawler.Stop()
	}

	// Live watching starts in the background as well; watcher setup can
	// take seconds on slow filesystems and must not block startup.
	if supervisor := startWatchSupervisor(ctx, cfg, st); supervisor != nil {
		defer func() { _ = supervisor.Stop() }()
	}

	addr := ""
	if opts.Transport != "stdio" {
		addr = fmt.Sprintf(":%d", opts.Port)
	}
	return srv.Serve(ctx, opts.Transport, addr)
}

// startBackgroundCrawl launches the initial crawl when the index is
// empty (or force is set) and at least one source is configured.
// Returns nil when no crawl is needed.
func startBackgroundCrawl(ctx context.Context, cfg *config.Config, st *store.SQLiteStore, force bool) *async.BackgroundCrawler {
	hasLocal := cfg.Sources.Local.IsEnabled() && len(cfg.Sources.Local.Roots) > 0
	if !hasLocal && !cfg.Sources.GDrive.IsEnabled() {
		slog.Debug("no sources configured, skipping initial crawl")
		return nil
	}

	if !force {
		stats, err := st.Stats(ctx)
		if err != nil {
			slog.Warn("failed to read index stats", slog.String("error", err.Error()))
			return nil
		}
		if stats.TotalDocuments > 0 {
			slog.Debug("index populated, skipping initial crawl",
				slog.Int("documents", stats.TotalDocuments))
			return nil
		}
	}

	crawler := async.NewBackgroundCrawler(async.CrawlerConfig{DataDir: cfg.DataDir})
	crawler.CrawlFunc = func(ctx context.Context, progress *async.CrawlProgress) error {
		runner, err := buildCrawlRunner(ctx, cfg, st, async.NewProgressRenderer(progress))
		if err != nil {
			return err
		}
		_, err = runner.Run(ctx, crawl.RunnerConfig{LockPath: cfg.LockPath()})
		return err
	}

	slog.Info("starting background crawl", slog.Bool("forced", force))
	crawler.Start(ctx)
	return crawler
}

// startWatchSupervisor starts live watching of the local roots. Returns
// nil when watching is disabled or there is nothing to watch.
func startWatchSupervisor(ctx context.Context, cfg *config.Config, st *store.SQLiteStore) *crawl.Supervisor {
	if !cfg.Watch.IsEnabled() {
		slog.Debug("watching disabled by configuration")
		return nil
	}
	if !cfg.Sources.Local.IsEnabled() || len(cfg.Sources.Local.Roots) == 0 {
		slog.Debug("no local roots to watch")
		return nil
	}

	coordinator, err := newEventCoordinator(cfg, st)
	if err != nil {
		slog.Warn("failed to create event coordinator, live updates disabled",
			slog.String("error", err.Error()))
		return nil
	}

	supervisor := crawl.NewSupervisor(cfg, coordinator)
	go func() {
		if err := supervisor.Start(ctx); err != nil {
			slog.Warn("watch supervisor failed to start", slog.String("error", err.Error()))
		}
	}()
	return supervisor
}

// verifyStdinForMCP checks that stdin is a pipe, not a terminal. The
// stdio transport reads JSON-RPC from stdin, so running interactively
// can only hang; fail fast with an explanation instead.
func verifyStdinForMCP() error {
	fd := os.Stdin.Fd()
	if isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd) {
		return fmt.Errorf("stdin is a terminal, not a pipe: the MCP server is meant to be " +
			"launched by an MCP client (Claude Code, Cursor). " +
			"Use 'docsmcp search' to query from a terminal")
	}
	return nil
}
