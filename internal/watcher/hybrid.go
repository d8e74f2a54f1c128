package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Aman-CERP/docsmcp/internal/gitignore"
)

// HybridWatcher watches a document root with fsnotify, falling back to
// polling when inotify is unavailable (common on network mounts and
// some containers).
type HybridWatcher struct {
	// Exactly one backend is active: notify when fsnotify could be set
	// up, poller otherwise.
	notify *fsnotify.Watcher
	poller *PollingWatcher

	debouncer *Debouncer
	events    chan []FileEvent
	errors    chan error
	stopCh    chan struct{}

	rootPath string
	opts     Options

	mu      sync.RWMutex
	ignore  *gitignore.Matcher
	stopped bool

	droppedBatches atomic.Uint64
}

var _ Watcher = (*HybridWatcher)(nil)

// NewHybridWatcher creates a watcher with the given options. fsnotify
// is preferred; polling is the fallback.
func NewHybridWatcher(opts Options) (*HybridWatcher, error) {
	opts = opts.WithDefaults()

	h := &HybridWatcher{
		debouncer: NewDebouncer(opts.DebounceWindow),
		events:    make(chan []FileEvent, opts.EventBufferSize),
		errors:    make(chan error, 10),
		stopCh:    make(chan struct{}),
		opts:      opts,
		ignore:    newIgnoreMatcher(opts.IgnorePatterns),
	}

	if fsw, err := fsnotify.NewWatcher(); err == nil {
		h.notify = fsw
	} else {
		slog.Warn("fsnotify unavailable, using polling",
			slog.String("error", err.Error()))
		h.poller = NewPollingWatcher(opts.PollInterval)
	}

	return h, nil
}

// newIgnoreMatcher builds the baseline ignore rules: configured
// patterns plus our own data directory, which would otherwise feed the
// watcher its own index writes.
func newIgnoreMatcher(patterns []string) *gitignore.Matcher {
	m := gitignore.New()
	for _, p := range patterns {
		m.AddPattern(p)
	}
	m.AddPattern(".docsmcp/")
	m.AddPattern(".docsmcp/**")
	return m
}

// consume drains src until the watcher stops or src closes, passing
// every received value to fn.
func consume[T any](ctx context.Context, stop <-chan struct{}, src <-chan T, fn func(T)) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case v, ok := <-src:
			if !ok {
				return
			}
			fn(v)
		}
	}
}

// Start watches the directory until Stop or context cancellation.
func (h *HybridWatcher) Start(ctx context.Context, path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve watch root: %w", err)
	}
	h.rootPath = absPath

	h.reloadIgnoreRules()

	// Debounced batches flow out on their own goroutine regardless of
	// which backend feeds the debouncer.
	go consume(ctx, h.stopCh, h.debouncer.Output(), func(events []FileEvent) {
		if len(events) > 0 {
			h.emitEvents(events)
		}
	})

	if h.notify != nil {
		return h.runNotify(ctx)
	}
	return h.runPolling(ctx)
}

// runNotify drives the fsnotify backend: register every directory,
// then translate raw events into the shared ingest path.
func (h *HybridWatcher) runNotify(ctx context.Context) error {
	if err := h.addRecursive(h.rootPath); err != nil {
		return fmt.Errorf("failed to add watch directories: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			_ = h.Stop()
			return ctx.Err()
		case <-h.stopCh:
			return nil
		case event, ok := <-h.notify.Events:
			if !ok {
				return nil
			}
			h.handleNotifyEvent(event)
		case err, ok := <-h.notify.Errors:
			if !ok {
				return nil
			}
			h.emitError(err)
		}
	}
}

// handleNotifyEvent turns one raw fsnotify event into a FileEvent and
// feeds it through the shared ingest path.
func (h *HybridWatcher) handleNotifyEvent(event fsnotify.Event) {
	op, ok := translateOp(event.Op)
	if !ok {
		return
	}

	relPath, err := filepath.Rel(h.rootPath, event.Name)
	if err != nil {
		relPath = event.Name
	}

	// Stat only answers for paths that still exist; deletes and
	// renames report IsDir=false.
	isDir := false
	if info, err := os.Stat(event.Name); err == nil {
		isDir = info.IsDir()
	}

	if op == OpCreate && isDir && !h.ignored(relPath, true) {
		// New directories must be watched too
		_ = h.notify.Add(event.Name)
	}

	h.ingest(FileEvent{
		Path:      relPath,
		Operation: op,
		IsDir:     isDir,
		Timestamp: time.Now(),
	})
}

// runPolling drives the polling backend through the same ingest path.
func (h *HybridWatcher) runPolling(ctx context.Context) error {
	go consume(ctx, h.stopCh, h.poller.Events(), h.ingest)
	go consume(ctx, h.stopCh, h.poller.Errors(), h.emitError)

	return h.poller.Start(ctx, h.rootPath)
}

// opTranslations maps fsnotify bits onto document event operations in
// precedence order. Chmod carries no content change and translates to
// nothing.
var opTranslations = []struct {
	mask fsnotify.Op
	op   Operation
}{
	{fsnotify.Create, OpCreate},
	{fsnotify.Write, OpModify},
	{fsnotify.Remove, OpDelete},
	// The old name no longer points at the file; the new name arrives
	// as its own Create.
	{fsnotify.Rename, OpDelete},
}

func translateOp(raw fsnotify.Op) (Operation, bool) {
	for _, tr := range opTranslations {
		if raw&tr.mask != 0 {
			return tr.op, true
		}
	}
	return 0, false
}

// ingest filters one event and hands it to the debouncer. Changes to
// .gitignore or the project config are rewritten into their own
// operations so the consumer can react to rule changes.
func (h *HybridWatcher) ingest(event FileEvent) {
	if h.ignored(event.Path, event.IsDir) {
		return
	}

	switch filepath.Base(event.Path) {
	case ".gitignore":
		h.reloadIgnoreRules()
		event.Operation = OpGitignoreChange
		event.IsDir = false
	case ".docsmcp.yaml", ".docsmcp.yml":
		event.Operation = OpConfigChange
		event.IsDir = false
	}

	h.debouncer.Add(event)
}

// addRecursive registers every non-ignored directory under root.
func (h *HybridWatcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}

		relPath, _ := filepath.Rel(h.rootPath, path)
		if relPath == "." {
			return h.notify.Add(path)
		}
		if h.ignored(relPath, true) {
			return filepath.SkipDir
		}
		return h.notify.Add(path)
	})
}

// ignored reports whether events for relPath should be discarded. The
// .git directory is always skipped regardless of rules.
func (h *HybridWatcher) ignored(relPath string, isDir bool) bool {
	if relPath == "." || relPath == "" {
		return true
	}
	if relPath == ".git" || strings.HasPrefix(relPath, ".git"+string(filepath.Separator)) {
		return true
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.ignore.Match(relPath, isDir)
}

// reloadIgnoreRules rebuilds the matcher from the configured patterns
// plus the root and nested .gitignore files, then swaps it in. Building
// off-lock keeps event filtering responsive during the rescan.
func (h *HybridWatcher) reloadIgnoreRules() {
	m := newIgnoreMatcher(h.opts.IgnorePatterns)

	rootIgnore := filepath.Join(h.rootPath, ".gitignore")
	if err := m.AddFromFile(rootIgnore, ""); err != nil && !os.IsNotExist(err) {
		slog.Warn("could not load root .gitignore",
			slog.String("path", rootIgnore),
			slog.String("error", err.Error()))
	}

	_ = filepath.WalkDir(h.rootPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() || d.Name() != ".gitignore" || path == rootIgnore {
			return nil
		}
		base, _ := filepath.Rel(h.rootPath, filepath.Dir(path))
		if err := m.AddFromFile(path, base); err != nil {
			slog.Warn("could not read nested .gitignore",
				slog.String("path", path),
				slog.String("error", err.Error()))
		}
		return nil
	})

	h.mu.Lock()
	h.ignore = m
	h.mu.Unlock()
}

func (h *HybridWatcher) stopping() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.stopped
}

// emitEvents forwards a batch, dropping it when the consumer lags past
// the buffer.
func (h *HybridWatcher) emitEvents(events []FileEvent) {
	if h.stopping() {
		return
	}

	select {
	case h.events <- events:
	default:
		count := h.droppedBatches.Add(1)
		slog.Warn("consumer behind, dropping debounced batch",
			slog.Int("batch_size", len(events)),
			slog.Uint64("total_dropped_batches", count))
	}
}

// DroppedBatches reports how many batches were lost to a full buffer.
func (h *HybridWatcher) DroppedBatches() uint64 {
	return h.droppedBatches.Load()
}

func (h *HybridWatcher) emitError(err error) {
	if h.stopping() {
		return
	}

	select {
	case h.errors <- err:
	default:
	}
}

// Stop shuts everything down. Idempotent.
func (h *HybridWatcher) Stop() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.stopped {
		return nil
	}
	h.stopped = true
	close(h.stopCh)

	h.debouncer.Stop()

	if h.notify != nil {
		_ = h.notify.Close()
	}
	if h.poller != nil {
		_ = h.poller.Stop()
	}

	close(h.events)
	close(h.errors)
	return nil
}

// Events returns the channel of debounced batches.
func (h *HybridWatcher) Events() <-chan []FileEvent {
	return h.events
}

// Errors returns the channel of non-fatal errors.
func (h *HybridWatcher) Errors() <-chan error {
	return h.errors
}

// IsHealthy reports whether the watcher is still running.
func (h *HybridWatcher) IsHealthy() bool {
	return !h.stopping()
}

// Mode reports the active mechanism, "fsnotify" or "polling".
func (h *HybridWatcher) Mode() string {
	if h.notify != nil {
		return "fsnotify"
	}
	return "polling"
}

// RootPath returns the watched root.
func (h *HybridWatcher) RootPath() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.rootPath
}
