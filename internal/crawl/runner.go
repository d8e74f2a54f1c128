// Package crawl orchestrates batch crawls of the configured document
// sources and bridges live watcher events into the store. The Runner
// executes a run-to-completion crawl (scan, extract, commit); the
// Coordinator applies individual file events between runs.
package crawl

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/docsmcp/internal/config"
	"github.com/Aman-CERP/docsmcp/internal/errors"
	"github.com/Aman-CERP/docsmcp/internal/extract"
	"github.com/Aman-CERP/docsmcp/internal/scanner"
	"github.com/Aman-CERP/docsmcp/internal/store"
	"github.com/Aman-CERP/docsmcp/internal/ui"
)

// SourceLocal tags documents that come from the local filesystem.
const SourceLocal = "local"

// Store is the subset of store operations the crawl package needs.
// *store.SQLiteStore satisfies it.
type Store interface {
	store.DocumentStore

	// ListRefsBySource returns lightweight identity rows for one source.
	ListRefsBySource(ctx context.Context, source string) ([]store.DocumentRef, error)
}

// Connector supplies documents from a remote source. Implementations
// return fully-formed documents; the crawler commits them through the
// same batch as local files.
type Connector interface {
	// Source is the tag stamped on this connector's documents.
	Source() string

	// Fetch returns every document currently visible to the connector.
	Fetch(ctx context.Context) ([]*store.Document, error)
}

// RunnerConfig configures a single crawl run.
type RunnerConfig struct {
	// Roots overrides the configured local roots when non-empty.
	Roots []string

	// LockPath is the advisory lock file serializing full crawls across
	// processes. Empty disables locking.
	LockPath string
}

// Report contains the outcome of a crawl.
type Report struct {
	// RunID tags this crawl's log records.
	RunID string

	// Files is the number of local files discovered by the scan.
	Files int

	// Documents is the number of documents committed to the index.
	Documents int

	// Duration is the total crawl time.
	Duration time.Duration

	// Errors is the count of source-level failures.
	Errors int

	// Warnings is the count of per-file failures and skips.
	Warnings int
}

// RunnerDependencies contains the injected dependencies for Runner.
type RunnerDependencies struct {
	// Renderer for progress display (required).
	Renderer ui.Renderer

	// Config is the loaded configuration (required).
	Config *config.Config

	// Store receives the committed documents (required).
	Store Store

	// Extractor converts files to documents. Defaults to an extractor
	// built from the configured content cap.
	Extractor *extract.Extractor

	// Scanner discovers files under the local roots. Defaults to a
	// fresh scanner.
	Scanner *scanner.Scanner

	// Connectors supply remote documents (optional).
	Connectors []Connector
}

// Runner executes crawls with progress reporting. It accepts injected
// dependencies for testability and reusability.
type Runner struct {
	renderer   ui.Renderer
	config     *config.Config
	store      Store
	extractor  *extract.Extractor
	scanner    *scanner.Scanner
	connectors []Connector
}

// NewRunner creates a Runner with injected dependencies.
func NewRunner(deps RunnerDependencies) (*Runner, error) {
	if deps.Renderer == nil {
		return nil, fmt.Errorf("renderer is required")
	}
	if deps.Config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("store is required")
	}

	extractor := deps.Extractor
	if extractor == nil {
		extractor = extract.New(extract.Options{
			MaxContentChars: deps.Config.Limits.MaxContentChars,
		})
	}

	sc := deps.Scanner
	if sc == nil {
		var err error
		sc, err = scanner.New()
		if err != nil {
			return nil, fmt.Errorf("failed to create scanner: %w", err)
		}
	}

	return &Runner{
		renderer:   deps.Renderer,
		config:     deps.Config,
		store:      deps.Store,
		extractor:  extractor,
		scanner:    sc,
		connectors: deps.Connectors,
	}, nil
}

// stageTiming tracks duration for each crawl stage.
type stageTiming struct {
	scan    time.Duration
	extract time.Duration
	commit  time.Duration
}

// Run executes the full crawl pipeline: discover local files, extract
// them on a worker pool, fetch remote sources, and commit everything as
// one batch. Per-file failures are contained as warnings; a failed
// connector costs its documents but not the run. Documents from earlier
// crawls are never diffed away here; only watcher remove events delete.
func (r *Runner) Run(ctx context.Context, cfg RunnerConfig) (*Report, error) {
	startTime := time.Now()
	runID := uuid.NewString()
	log := slog.With(slog.String("run_id", runID))

	var errorCount, warnCount int
	var timing stageTiming

	if cfg.LockPath != "" {
		lock := store.NewCrawlLock(cfg.LockPath)
		acquired, err := lock.TryLock()
		if err != nil {
			return nil, errors.New(errors.ErrCodeStoreOpen,
				fmt.Sprintf("failed to acquire crawl lock %s", cfg.LockPath), err)
		}
		if !acquired {
			return nil, errors.New(errors.ErrCodeCrawlBusy,
				"another crawl is already running", nil).
				WithDetail("lock_path", cfg.LockPath).
				WithSuggestion("wait for the running crawl to finish")
		}
		defer func() { _ = lock.Unlock() }()
	}

	roots := r.resolveRoots(cfg)
	log.Info("crawl_started",
		slog.Int("roots", len(roots)),
		slog.Int("connectors", len(r.connectors)))

	// Stage 1: scan the local roots
	scanStart := time.Now()
	files, scanWarns, err := r.scanRoots(ctx, roots, log)
	if err != nil {
		return nil, err
	}
	timing.scan = time.Since(scanStart)
	warnCount += scanWarns

	// Stage 2: extract local files, then fetch remote sources
	extractStart := time.Now()
	docs, extractWarns, err := r.extractFiles(ctx, files)
	if err != nil {
		return nil, err
	}
	warnCount += extractWarns

	remoteDocs, remoteErrs := r.fetchRemote(ctx, log)
	if ctx.Err() != nil {
		return nil, fmt.Errorf("crawl interrupted: %w", ctx.Err())
	}
	errorCount += remoteErrs
	docs = append(docs, remoteDocs...)
	timing.extract = time.Since(extractStart)

	// Stage 3: commit everything in one transaction
	commitStart := time.Now()
	r.renderer.UpdateProgress(ui.ProgressEvent{
		Stage:   ui.StageCommitting,
		Message: fmt.Sprintf("Committing %d documents...", len(docs)),
	})
	if len(docs) > 0 {
		if err := r.store.UpsertBatch(ctx, docs); err != nil {
			return nil, err
		}
	}

	// Merge FTS segments while we still hold the crawl lock
	if opt, ok := r.store.(interface{ Optimize(context.Context) error }); ok {
		if err := opt.Optimize(ctx); err != nil {
			log.Warn("index optimize failed", slog.String("error", err.Error()))
		}
	}
	timing.commit = time.Since(commitStart)

	duration := time.Since(startTime)

	r.renderer.Complete(ui.CompletionStats{
		Files:     len(files),
		Documents: len(docs),
		Duration:  duration,
		Errors:    errorCount,
		Warnings:  warnCount,
		Stages: ui.StageTimings{
			Scan:    timing.scan,
			Extract: timing.extract,
			Commit:  timing.commit,
		},
	})

	docsPerSec := 0.0
	if timing.extract.Seconds() > 0 {
		docsPerSec = float64(len(docs)) / timing.extract.Seconds()
	}

	log.Info("crawl_complete",
		slog.Int("files", len(files)),
		slog.Int("documents", len(docs)),
		slog.String("duration_total", duration.String()),
		slog.Int64("duration_total_ms", duration.Milliseconds()),
		slog.Int64("duration_scan_ms", timing.scan.Milliseconds()),
		slog.Int64("duration_extract_ms", timing.extract.Milliseconds()),
		slog.Int64("duration_commit_ms", timing.commit.Milliseconds()),
		slog.Float64("docs_per_sec", docsPerSec),
		slog.Int("errors", errorCount),
		slog.Int("warnings", warnCount))

	return &Report{
		RunID:     runID,
		Files:     len(files),
		Documents: len(docs),
		Duration:  duration,
		Errors:    errorCount,
		Warnings:  warnCount,
	}, nil
}

// resolveRoots returns the local roots for this run: the explicit
// override when given, otherwise the configured roots of an enabled
// local source.
func (r *Runner) resolveRoots(cfg RunnerConfig) []string {
	if len(cfg.Roots) > 0 {
		return cfg.Roots
	}
	if r.config.Sources.Local.IsEnabled() {
		return r.config.Sources.Local.Roots
	}
	return nil
}

// scanRoots discovers document files under each root. A missing root is
// a warning, not a failure; the crawl only fails when nothing at all is
// left to crawl.
func (r *Runner) scanRoots(ctx context.Context, roots []string, log *slog.Logger) ([]*scanner.FileInfo, int, error) {
	var warnCount int

	var valid []string
	for _, root := range roots {
		info, err := os.Stat(root)
		if err != nil || !info.IsDir() {
			log.Warn("crawl_root_missing", slog.String("root", root))
			r.renderer.AddError(ui.ErrorEvent{
				File:   root,
				Err:    fmt.Errorf("root does not exist"),
				IsWarn: true,
			})
			warnCount++
			continue
		}
		valid = append(valid, root)
	}

	if len(valid) == 0 && len(r.connectors) == 0 {
		if len(roots) > 0 {
			return nil, warnCount, errors.New(errors.ErrCodeRootMissing,
				"none of the configured roots exist", nil).
				WithSuggestion("check sources.local.roots in your configuration")
		}
		return nil, warnCount, errors.ConfigError("no document sources enabled", nil)
	}

	local := r.config.Sources.Local
	var files []*scanner.FileInfo
	seen := make(map[string]bool)

	for _, root := range valid {
		r.renderer.UpdateProgress(ui.ProgressEvent{
			Stage:   ui.StageScanning,
			Message: fmt.Sprintf("Scanning %s...", root),
		})
		log.Info("crawl_scan_started", slog.String("root", root))

		results, err := r.scanner.Scan(ctx, &scanner.ScanOptions{
			RootDir:          root,
			Extensions:       local.Extensions,
			ExcludePatterns:  local.Exclude,
			RespectGitignore: local.GitignoreEnabled(),
			MaxFileSize:      r.config.MaxFileSizeBytes(),
		})
		if err != nil {
			log.Warn("crawl_scan_failed",
				slog.String("root", root),
				slog.String("error", err.Error()))
			r.renderer.AddError(ui.ErrorEvent{File: root, Err: err, IsWarn: true})
			warnCount++
			continue
		}

		for result := range results {
			if result.Error != nil {
				path := root
				if result.File != nil {
					path = result.File.Path
				}
				r.renderer.AddError(ui.ErrorEvent{File: path, Err: result.Error, IsWarn: true})
				warnCount++
				continue
			}
			// Overlapping roots discover the same file twice
			if seen[result.File.AbsPath] {
				continue
			}
			seen[result.File.AbsPath] = true
			files = append(files, result.File)
		}
	}

	log.Info("crawl_scan_complete", slog.Int("files", len(files)))
	return files, warnCount, nil
}

// extractFiles runs extraction on a bounded worker pool. One file's
// failure is contained as a warning and never aborts the crawl; only
// context cancellation stops the pool.
func (r *Runner) extractFiles(ctx context.Context, files []*scanner.FileInfo) ([]*store.Document, int, error) {
	if len(files) == 0 {
		return nil, 0, nil
	}

	r.renderer.UpdateProgress(ui.ProgressEvent{
		Stage: ui.StageExtracting,
		Total: len(files),
	})

	workers := r.config.Limits.ExtractWorkers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	var (
		mu        sync.Mutex
		docs      []*store.Document
		warnCount int
		completed int
	)

	for _, file := range files {
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}

			res, err := r.extractor.ExtractFile(gctx, file.AbsPath)

			mu.Lock()
			defer mu.Unlock()
			completed++
			r.renderer.UpdateProgress(ui.ProgressEvent{
				Stage:       ui.StageExtracting,
				Current:     completed,
				Total:       len(files),
				CurrentFile: file.Path,
			})

			if err != nil {
				r.renderer.AddError(ui.ErrorEvent{File: file.Path, Err: err, IsWarn: true})
				warnCount++
				return nil
			}

			docs = append(docs, &store.Document{
				ID:       store.DocumentID(SourceLocal, file.AbsPath),
				Source:   SourceLocal,
				SourceID: file.AbsPath,
				Title:    res.Title,
				Content:  res.Content,
				Metadata: res.Metadata,
			})
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, warnCount, fmt.Errorf("crawl interrupted: %w", err)
	}

	slog.Info("crawl_extract_complete",
		slog.Int("documents", len(docs)),
		slog.Int("failed", len(files)-len(docs)))
	return docs, warnCount, nil
}

// fetchRemote pulls documents from each connector. A failed connector
// costs its documents but never the run; the error count surfaces the
// loss to the caller.
func (r *Runner) fetchRemote(ctx context.Context, log *slog.Logger) ([]*store.Document, int) {
	var docs []*store.Document
	var errorCount int

	for _, conn := range r.connectors {
		r.renderer.UpdateProgress(ui.ProgressEvent{
			Stage:   ui.StageExtracting,
			Message: fmt.Sprintf("Syncing %s...", conn.Source()),
		})
		log.Info("crawl_remote_started", slog.String("source", conn.Source()))

		remote, err := conn.Fetch(ctx)
		if err != nil {
			log.Error("crawl_remote_failed",
				slog.String("source", conn.Source()),
				slog.String("error", err.Error()))
			r.renderer.AddError(ui.ErrorEvent{File: conn.Source(), Err: err})
			errorCount++
			continue
		}

		log.Info("crawl_remote_complete",
			slog.String("source", conn.Source()),
			slog.Int("documents", len(remote)))
		docs = append(docs, remote...)
	}

	return docs, errorCount
}
