package crawl

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/Aman-CERP/docsmcp/internal/config"
	"github.com/Aman-CERP/docsmcp/internal/watcher"
)

// Supervisor runs one watcher per local root and feeds the debounced
// event batches to a Coordinator. Watchers that fall back to polling
// keep working; a root that disappears after startup just goes quiet.
type Supervisor struct {
	coordinator *Coordinator
	config      *config.Config

	mu       sync.Mutex
	watchers map[string]*watcher.HybridWatcher // abs root -> watcher
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	started  bool
	stopped  bool
}

// NewSupervisor creates a supervisor over the configured local roots.
func NewSupervisor(cfg *config.Config, coordinator *Coordinator) *Supervisor {
	return &Supervisor{
		coordinator: coordinator,
		config:      cfg,
		watchers:    make(map[string]*watcher.HybridWatcher),
	}
}

// Start launches a watcher for every local root that exists. Missing
// roots are skipped with a warning. Returns once all watchers are
// launched; they run until Stop or context cancellation.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("supervisor already started")
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	opts := watcher.Options{
		DebounceWindow:  s.config.DebounceDuration(),
		PollInterval:    s.config.PollIntervalDuration(),
		EventBufferSize: s.config.Watch.QueueSize,
		IgnorePatterns:  s.config.Sources.Local.Exclude,
	}

	for _, root := range s.config.Sources.Local.Roots {
		absRoot, err := filepath.Abs(root)
		if err != nil {
			slog.Warn("skipping unresolvable root", slog.String("root", root))
			continue
		}
		if info, err := os.Stat(absRoot); err != nil || !info.IsDir() {
			slog.Warn("skipping missing root", slog.String("root", absRoot))
			continue
		}

		w, err := watcher.NewHybridWatcher(opts)
		if err != nil {
			cancel()
			return fmt.Errorf("failed to create watcher for %s: %w", absRoot, err)
		}
		s.watchers[absRoot] = w
		s.launch(runCtx, absRoot, w)
	}

	if len(s.watchers) == 0 {
		slog.Warn("no watchable roots, live updates disabled")
	} else {
		slog.Info("watch supervisor started", slog.Int("roots", len(s.watchers)))
	}

	s.started = true
	return nil
}

// launch runs one watcher and its two drain loops.
func (s *Supervisor) launch(ctx context.Context, root string, w *watcher.HybridWatcher) {
	s.wg.Add(3)

	go func() {
		defer s.wg.Done()
		if err := w.Start(ctx, root); err != nil {
			slog.Error("watcher stopped",
				slog.String("root", root),
				slog.String("error", err.Error()))
		}
	}()

	go func() {
		defer s.wg.Done()
		for batch := range w.Events() {
			if err := s.coordinator.HandleEvents(ctx, root, batch); err != nil {
				slog.Warn("failed to handle event batch",
					slog.String("root", root),
					slog.String("error", err.Error()))
			}
		}
	}()

	go func() {
		defer s.wg.Done()
		for err := range w.Errors() {
			slog.Warn("watcher error",
				slog.String("root", root),
				slog.String("error", err.Error()))
		}
	}()
}

// Stop shuts down all watchers and waits for in-flight batches to
// finish. Safe to call more than once.
func (s *Supervisor) Stop() error {
	s.mu.Lock()
	if !s.started || s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	cancel := s.cancel
	watchers := make([]*watcher.HybridWatcher, 0, len(s.watchers))
	for _, w := range s.watchers {
		watchers = append(watchers, w)
	}
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	for _, w := range watchers {
		_ = w.Stop()
	}
	s.wg.Wait()

	slog.Info("watch supervisor stopped")
	return nil
}

// Modes reports each watched root's mode ("fsnotify" or "polling").
func (s *Supervisor) Modes() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()

	modes := make(map[string]string, len(s.watchers))
	for root, w := range s.watchers {
		modes[root] = w.Mode()
	}
	return modes
}

// Healthy reports whether at least one watcher is running and none have
// died.
func (s *Supervisor) Healthy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.watchers) == 0 {
		return false
	}
	for _, w := range s.watchers {
		if !w.IsHealthy() {
			return false
		}
	}
	return true
}
