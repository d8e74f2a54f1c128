package crawl

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/Aman-CERP/docsmcp/internal/config"
	"github.com/Aman-CERP/docsmcp/internal/extract"
	"github.com/Aman-CERP/docsmcp/internal/scanner"
	"github.com/Aman-CERP/docsmcp/internal/store"
	"github.com/Aman-CERP/docsmcp/internal/watcher"
)

// CoordinatorConfig contains configuration for the Coordinator.
type CoordinatorConfig struct {
	// Store receives document writes.
	Store Store

	// Extractor converts changed files to documents.
	Extractor *extract.Extractor

	// Scanner applies the index eligibility rules to event paths and
	// drives reconciliation after .gitignore changes (optional; without
	// it gitignore and config changes are logged but not reconciled).
	Scanner *scanner.Scanner

	// Config supplies the local source rules and size limits.
	Config *config.Config
}

// Coordinator applies file events to the store: a changed file is
// re-extracted and upserted exactly like a single-document crawl, a
// removed file's record is deleted. Documents always round-trip through
// the same extraction path the batch crawler uses.
type Coordinator struct {
	config CoordinatorConfig
	mu     sync.Mutex
}

// NewCoordinator creates a new event coordinator.
func NewCoordinator(config CoordinatorConfig) *Coordinator {
	return &Coordinator{
		config: config,
	}
}

// HandleEvents processes one debounced batch of events from the watcher
// for a single root. Per-event failures are logged and contained so one
// unreadable file cannot stall the rest of the batch.
func (c *Coordinator) HandleEvents(ctx context.Context, root string, events []watcher.FileEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var processed int
	for _, event := range events {
		if err := c.handleEvent(ctx, root, event); err != nil {
			slog.Warn("failed to process file event",
				slog.String("path", event.Path),
				slog.String("operation", event.Operation.String()),
				slog.String("error", err.Error()))
			continue
		}
		processed++
	}

	slog.Debug("event batch processed",
		slog.String("root", root),
		slog.Int("events", len(events)),
		slog.Int("processed", processed))
	return nil
}

// handleEvent processes a single file event.
func (c *Coordinator) handleEvent(ctx context.Context, root string, event watcher.FileEvent) error {
	slog.Debug("processing file event",
		slog.String("path", event.Path),
		slog.String("operation", event.Operation.String()),
		slog.Bool("is_dir", event.IsDir))

	switch event.Operation {
	case watcher.OpCreate, watcher.OpModify:
		if event.IsDir {
			return nil
		}
		return c.indexFile(ctx, root, event.Path)
	case watcher.OpDelete:
		// Deleted paths cannot be stat'ed, so IsDir is unreliable here;
		// removePath handles both files and directories.
		return c.removePath(ctx, root, event.Path)
	case watcher.OpGitignoreChange:
		return c.handleGitignoreChange(ctx, root, event.Path)
	case watcher.OpConfigChange:
		return c.handleConfigChange(ctx, root)
	default:
		return nil
	}
}

// indexFile extracts and upserts one file, the same write path a batch
// crawl takes for it.
func (c *Coordinator) indexFile(ctx context.Context, root, relPath string) error {
	absPath := filepath.Join(root, relPath)

	// Lstat so symlinks are seen as symlinks, not their targets
	info, err := os.Lstat(absPath)
	if err != nil {
		return fmt.Errorf("failed to stat file: %w", err)
	}
	if info.Mode()&os.ModeSymlink != 0 {
		slog.Debug("skipping symlink", slog.String("path", relPath))
		return nil
	}

	// Oversized files are skipped, not deleted: the crawler skips them
	// too, and an existing record for a file that grew stays intact.
	maxSize := c.config.Config.MaxFileSizeBytes()
	if maxSize > 0 && info.Size() > maxSize {
		slog.Warn("skipping oversized file",
			slog.String("path", relPath),
			slog.Int64("size", info.Size()),
			slog.Int64("max", maxSize))
		return nil
	}

	if c.config.Scanner != nil && !c.config.Scanner.ShouldIndex(absPath, c.scanOptions(root)) {
		// The file no longer qualifies (extension, exclusion pattern,
		// gitignore, binary content). Treat it like a removal so search
		// never serves a record the next crawl would not produce.
		return c.config.Store.Delete(ctx, store.DocumentID(SourceLocal, absPath))
	}

	res, err := c.config.Extractor.ExtractFile(ctx, absPath)
	if err != nil {
		// Keep any previous record: documents are never stored empty,
		// and a transiently unreadable file should not vanish from search.
		return err
	}

	return c.config.Store.Upsert(ctx, &store.Document{
		ID:       store.DocumentID(SourceLocal, absPath),
		Source:   SourceLocal,
		SourceID: absPath,
		Title:    res.Title,
		Content:  res.Content,
		Metadata: res.Metadata,
	})
}

// removePath deletes the document for a removed path. A removed
// directory surfaces as one delete event for the directory itself, so
// documents for files that lived under it are swept out by prefix.
func (c *Coordinator) removePath(ctx context.Context, root, relPath string) error {
	absPath := filepath.Join(root, relPath)

	if err := c.config.Store.Delete(ctx, store.DocumentID(SourceLocal, absPath)); err != nil {
		return err
	}

	refs, err := c.config.Store.ListRefsBySource(ctx, SourceLocal)
	if err != nil {
		return err
	}

	prefix := absPath + string(os.PathSeparator)
	var swept int
	for _, ref := range refs {
		if !strings.HasPrefix(ref.SourceID, prefix) {
			continue
		}
		if err := c.config.Store.Delete(ctx, ref.ID); err != nil {
			slog.Warn("failed to remove document under deleted directory",
				slog.String("path", ref.SourceID),
				slog.String("error", err.Error()))
			continue
		}
		swept++
	}
	if swept > 0 {
		slog.Info("removed documents under deleted directory",
			slog.String("path", relPath),
			slog.Int("documents", swept))
	}
	return nil
}

// handleGitignoreChange rebuilds cached ignore rules and reconciles the
// root: files that became ignored leave the index, files that stopped
// being ignored join it.
func (c *Coordinator) handleGitignoreChange(ctx context.Context, root, relPath string) error {
	if c.config.Scanner == nil {
		slog.Warn("gitignore change detected but scanner not configured, skipping reconciliation")
		return nil
	}

	c.config.Scanner.InvalidateGitignoreCache()
	slog.Debug("invalidated scanner gitignore cache", slog.String("trigger", relPath))

	return c.reconcileRoot(ctx, root)
}

// handleConfigChange handles project config file changes. Exclusion and
// extension rules are re-read at the next scan, so a reconciliation
// picks up most changes; anything deeper needs a restart.
func (c *Coordinator) handleConfigChange(ctx context.Context, root string) error {
	slog.Info("configuration file changed",
		slog.String("note", "restart server for full config reload"))

	if c.config.Scanner == nil {
		slog.Warn("config change detected but scanner not configured, skipping reconciliation")
		return nil
	}

	c.config.Scanner.InvalidateGitignoreCache()
	return c.reconcileRoot(ctx, root)
}

// reconcileRoot diffs the store against a fresh scan of one root:
// indexed documents whose files no longer qualify are removed, files on
// disk with no document are indexed.
func (c *Coordinator) reconcileRoot(ctx context.Context, root string) error {
	results, err := c.config.Scanner.Scan(ctx, c.scanOptions(root))
	if err != nil {
		return fmt.Errorf("failed to scan %s: %w", root, err)
	}

	onDisk := make(map[string]string) // abs path -> rel path
	for result := range results {
		if result.Error != nil {
			slog.Debug("scan error during reconciliation",
				slog.String("error", result.Error.Error()))
			continue
		}
		onDisk[result.File.AbsPath] = result.File.Path
	}

	refs, err := c.config.Store.ListRefsBySource(ctx, SourceLocal)
	if err != nil {
		return err
	}

	prefix := root + string(os.PathSeparator)
	indexed := make(map[string]string) // abs path -> document id
	for _, ref := range refs {
		if strings.HasPrefix(ref.SourceID, prefix) {
			indexed[ref.SourceID] = ref.ID
		}
	}

	var removed, added int
	for absPath, id := range indexed {
		if _, ok := onDisk[absPath]; ok {
			continue
		}
		if err := c.config.Store.Delete(ctx, id); err != nil {
			slog.Warn("failed to remove file during reconciliation",
				slog.String("path", absPath),
				slog.String("error", err.Error()))
			continue
		}
		removed++
	}
	for absPath, relPath := range onDisk {
		if _, ok := indexed[absPath]; ok {
			continue
		}
		if err := c.indexFile(ctx, root, relPath); err != nil {
			slog.Warn("failed to index file during reconciliation",
				slog.String("path", absPath),
				slog.String("error", err.Error()))
			continue
		}
		added++
	}

	if removed > 0 || added > 0 {
		slog.Info("reconciliation complete",
			slog.String("root", root),
			slog.Int("removed", removed),
			slog.Int("added", added))
	} else {
		slog.Debug("reconciliation: no changes needed", slog.String("root", root))
	}
	return nil
}

// scanOptions builds the scan options matching the batch crawler's, so
// event filtering and reconciliation see exactly what a crawl would.
func (c *Coordinator) scanOptions(root string) *scanner.ScanOptions {
	local := c.config.Config.Sources.Local
	return &scanner.ScanOptions{
		RootDir:          root,
		Extensions:       local.Extensions,
		ExcludePatterns:  local.Exclude,
		RespectGitignore: local.GitignoreEnabled(),
		MaxFileSize:      c.config.Config.MaxFileSizeBytes(),
	}
}
