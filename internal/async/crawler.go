package async

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// CrawlFunc is the function signature for the actual crawl work.
type CrawlFunc func(ctx context.Context, progress *CrawlProgress) error

// CrawlerConfig configures the BackgroundCrawler.
type CrawlerConfig struct {
	// DataDir receives the status file. Empty disables status writes.
	DataDir string
}

// BackgroundCrawler runs a crawl in a background goroutine with
// progress tracking. The status file is rewritten at start and at the
// end of the run; live progress is read in-process via Progress().
type BackgroundCrawler struct {
	config   CrawlerConfig
	progress *CrawlProgress

	// CrawlFunc is the actual crawl to run. Injected for testing.
	CrawlFunc CrawlFunc

	stopCh chan struct{}
	doneCh chan struct{}

	mu      sync.Mutex
	running bool
	err     error
}

// NewBackgroundCrawler creates a new background crawler.
func NewBackgroundCrawler(cfg CrawlerConfig) *BackgroundCrawler {
	return &BackgroundCrawler{
		config:   cfg,
		progress: NewCrawlProgress(),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Progress returns the progress tracker for this crawler.
func (b *BackgroundCrawler) Progress() *CrawlProgress {
	return b.progress
}

// IsRunning returns true while the crawl goroutine is active.
func (b *BackgroundCrawler) IsRunning() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.running
}

// Start begins the crawl in a background goroutine and returns
// immediately. Starting an already-running crawler is a no-op; use
// Wait to block until completion.
func (b *BackgroundCrawler) Start(ctx context.Context) {
	b.mu.Lock()
	if b.running {
		b.mu.Unlock()
		return
	}
	b.running = true
	b.mu.Unlock()

	go b.run(ctx)
}

func (b *BackgroundCrawler) run(ctx context.Context) {
	defer close(b.doneCh)
	defer func() {
		b.mu.Lock()
		b.running = false
		b.mu.Unlock()
	}()

	// Merged context honoring both the parent and Stop
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		select {
		case <-b.stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	startedAt := time.Now()
	b.writeStatus(startedAt)

	if b.CrawlFunc != nil {
		if err := b.CrawlFunc(ctx, b.progress); err != nil {
			b.progress.SetError(err.Error())
			b.mu.Lock()
			b.err = err
			b.mu.Unlock()
			b.writeStatus(startedAt)
			return
		}
	}

	b.progress.SetReady()
	b.writeStatus(startedAt)
}

// writeStatus persists the current progress. Status writes are
// best-effort; a failure never fails the crawl.
func (b *BackgroundCrawler) writeStatus(startedAt time.Time) {
	if b.config.DataDir == "" {
		return
	}

	status := statusFromSnapshot(b.progress.Snapshot(), startedAt)
	if err := WriteStatusFile(b.config.DataDir, status); err != nil {
		slog.Warn("failed to write crawl status file",
			slog.String("data_dir", b.config.DataDir),
			slog.String("error", err.Error()))
	}
}

// Stop signals the crawler to stop and waits for it to finish.
func (b *BackgroundCrawler) Stop() {
	b.mu.Lock()
	if !b.running {
		b.mu.Unlock()
		return
	}
	b.mu.Unlock()

	close(b.stopCh)
	<-b.doneCh
}

// Wait blocks until the crawl completes and returns any error.
func (b *BackgroundCrawler) Wait() error {
	<-b.doneCh
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.err
}
