// Package async runs crawls in the background with progress tracking
// and persists the outcome to a status file other processes can read.
package async

import (
	"sync"
	"time"
)

// CrawlState represents the overall crawl state.
type CrawlState string

const (
	// StatusCrawling indicates a crawl is in progress.
	StatusCrawling CrawlState = "crawling"
	// StatusReady indicates the crawl is complete and the index is current.
	StatusReady CrawlState = "ready"
	// StatusError indicates the crawl failed.
	StatusError CrawlState = "error"
)

// CrawlStage represents the current stage of the crawl pipeline.
type CrawlStage string

const (
	// StageScanning is the file discovery stage.
	StageScanning CrawlStage = "scanning"
	// StageExtracting is the text extraction stage.
	StageExtracting CrawlStage = "extracting"
	// StageCommitting is the index write stage.
	StageCommitting CrawlStage = "committing"
)

// CrawlProgressSnapshot is an immutable snapshot of crawl progress.
type CrawlProgressSnapshot struct {
	Status         string  `json:"status"`
	Stage          string  `json:"stage"`
	FilesTotal     int     `json:"files_total"`
	FilesProcessed int     `json:"files_processed"`
	Documents      int     `json:"documents"`
	Errors         int     `json:"errors"`
	Warnings       int     `json:"warnings"`
	ProgressPct    float64 `json:"progress_pct"`
	ElapsedSeconds int     `json:"elapsed_seconds"`
	ErrorMessage   string  `json:"error_message,omitempty"`
}

// CrawlProgress provides thread-safe tracking of crawl progress.
type CrawlProgress struct {
	mu sync.RWMutex

	status         CrawlState
	stage          CrawlStage
	filesTotal     int
	filesProcessed int
	documents      int
	errors         int
	warnings       int
	startTime      time.Time
	errorMessage   string
}

// NewCrawlProgress creates a progress tracker initialized for a crawl.
func NewCrawlProgress() *CrawlProgress {
	return &CrawlProgress{
		status:    StatusCrawling,
		stage:     StageScanning,
		startTime: time.Now(),
	}
}

// SetStage updates the current crawl stage. A positive total replaces
// the file count for the stage; zero keeps the previous one, so
// message-only updates don't wipe it.
func (p *CrawlProgress) SetStage(stage CrawlStage, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stage = stage
	if total > 0 {
		p.filesTotal = total
	}
}

// UpdateFiles updates the number of processed files.
func (p *CrawlProgress) UpdateFiles(processed int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.filesProcessed = processed
}

// SetDocuments records the number of documents committed to the index.
func (p *CrawlProgress) SetDocuments(count int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.documents = count
}

// RecordError counts a source-level failure.
func (p *CrawlProgress) RecordError() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.errors++
}

// RecordWarning counts a per-file failure or skip.
func (p *CrawlProgress) RecordWarning() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.warnings++
}

// SetError marks the crawl as failed with an error message.
func (p *CrawlProgress) SetError(message string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.status = StatusError
	p.errorMessage = message
}

// SetReady marks the crawl as complete.
func (p *CrawlProgress) SetReady() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.status = StatusReady
}

// IsCrawling returns true if the crawl is still in progress.
func (p *CrawlProgress) IsCrawling() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.status == StatusCrawling
}

// StartTime returns when the crawl began.
func (p *CrawlProgress) StartTime() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.startTime
}

// Snapshot returns an immutable copy of the current progress state.
func (p *CrawlProgress) Snapshot() CrawlProgressSnapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var progressPct float64
	if p.filesTotal > 0 {
		progressPct = float64(p.filesProcessed) / float64(p.filesTotal) * 100.0
	}

	return CrawlProgressSnapshot{
		Status:         string(p.status),
		Stage:          string(p.stage),
		FilesTotal:     p.filesTotal,
		FilesProcessed: p.filesProcessed,
		Documents:      p.documents,
		Errors:         p.errors,
		Warnings:       p.warnings,
		ProgressPct:    progressPct,
		ElapsedSeconds: int(time.Since(p.startTime).Seconds()),
		ErrorMessage:   p.errorMessage,
	}
}
