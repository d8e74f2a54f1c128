package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sync"
	"time"
)

// PollingWatcher detects changes by rescanning the tree on an interval
// and diffing modification times and sizes against the last snapshot.
type PollingWatcher struct {
	interval time.Duration
	events   chan FileEvent
	errors   chan error
	stopCh   chan struct{}
	root     string

	mu      sync.RWMutex
	prev    map[string]fileSnapshot
	stopped bool
}

type fileSnapshot struct {
	modTime time.Time
	size    int64
	isDir   bool
}

// NewPollingWatcher creates a polling watcher with the given interval.
func NewPollingWatcher(interval time.Duration) *PollingWatcher {
	return &PollingWatcher{
		interval: interval,
		prev:     make(map[string]fileSnapshot),
		events:   make(chan FileEvent, 100),
		errors:   make(chan error, 10),
		stopCh:   make(chan struct{}),
	}
}

// Start polls the directory until Stop or context cancellation.
func (p *PollingWatcher) Start(ctx context.Context, path string) error {
	root, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve watch root: %w", err)
	}
	p.root = root

	// Baseline snapshot; nothing is emitted for pre-existing files
	baseline, err := p.snapshotTree()
	if err != nil {
		return fmt.Errorf("failed to take initial snapshot: %w", err)
	}
	p.mu.Lock()
	p.prev = baseline
	p.mu.Unlock()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = p.Stop()
			return ctx.Err()
		case <-p.stopCh:
			return nil
		case <-ticker.C:
			p.poll()
		}
	}
}

// Stop shuts the poller down. Idempotent.
func (p *PollingWatcher) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return nil
	}
	p.stopped = true
	close(p.stopCh)
	close(p.events)
	close(p.errors)
	return nil
}

// Events returns the channel of raw (undebounced) events.
func (p *PollingWatcher) Events() <-chan FileEvent {
	return p.events
}

// Errors returns the channel of scan errors.
func (p *PollingWatcher) Errors() <-chan error {
	return p.errors
}

// poll rescans the tree and emits events for the differences since the
// previous pass.
func (p *PollingWatcher) poll() {
	current, err := p.snapshotTree()
	if err != nil {
		p.reportError(fmt.Errorf("failed to scan for changes: %w", err))
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for _, event := range diffSnapshots(p.prev, current) {
		p.emit(event)
	}
	p.prev = current
}

// snapshotTree records the state of every entry under the root,
// skipping .git trees. The walk runs without the lock; only the map
// swap needs it.
func (p *PollingWatcher) snapshotTree() (map[string]fileSnapshot, error) {
	tree := make(map[string]fileSnapshot)
	err := filepath.WalkDir(p.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		rel, rerr := filepath.Rel(p.root, path)
		if rerr != nil || rel == "." {
			return nil
		}
		if d.IsDir() && d.Name() == ".git" {
			return filepath.SkipDir
		}
		info, ierr := d.Info()
		if ierr != nil {
			return nil
		}
		tree[rel] = fileSnapshot{
			modTime: info.ModTime(),
			size:    info.Size(),
			isDir:   d.IsDir(),
		}
		return nil
	})
	return tree, err
}

// diffSnapshots computes create, modify, and delete events between two
// consecutive snapshots.
func diffSnapshots(prev, current map[string]fileSnapshot) []FileEvent {
	var events []FileEvent
	now := time.Now()

	for path, snap := range current {
		before, seen := prev[path]
		switch {
		case !seen:
			events = append(events, FileEvent{Path: path, Operation: OpCreate, IsDir: snap.isDir, Timestamp: now})
		case before.modTime != snap.modTime || before.size != snap.size:
			events = append(events, FileEvent{Path: path, Operation: OpModify, IsDir: snap.isDir, Timestamp: now})
		}
	}
	for path, snap := range prev {
		if _, ok := current[path]; !ok {
			events = append(events, FileEvent{Path: path, Operation: OpDelete, IsDir: snap.isDir, Timestamp: now})
		}
	}
	return events
}

// emit sends without blocking; the lock is already held.
func (p *PollingWatcher) emit(event FileEvent) {
	if p.stopped {
		return
	}
	select {
	case p.events <- event:
	default:
		slog.Warn("polling watcher buffer full, dropping event",
			slog.String("path", event.Path),
			slog.String("op", event.Operation.String()))
	}
}

// reportError sends a non-fatal scan error, dropping it when the
// buffer is full.
func (p *PollingWatcher) reportError(err error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return
	}
	select {
	case p.errors <- err:
	default:
	}
}
