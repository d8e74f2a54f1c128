package async

import (
	"context"

	"github.com/Aman-CERP/docsmcp/internal/ui"
)

// ProgressRenderer adapts a CrawlProgress tracker to the ui.Renderer
// interface, so a crawl run in the background feeds the same progress
// events a terminal renderer would display into the status tracker
// instead.
type ProgressRenderer struct {
	progress *CrawlProgress
}

var _ ui.Renderer = (*ProgressRenderer)(nil)

// NewProgressRenderer creates a renderer that records events on progress.
func NewProgressRenderer(progress *CrawlProgress) *ProgressRenderer {
	return &ProgressRenderer{progress: progress}
}

// Start implements ui.Renderer. Nothing to set up.
func (r *ProgressRenderer) Start(ctx context.Context) error {
	return nil
}

// UpdateProgress records the stage and file counts from a progress event.
func (r *ProgressRenderer) UpdateProgress(event ui.ProgressEvent) {
	r.progress.SetStage(stageFor(event.Stage), event.Total)
	r.progress.UpdateFiles(event.Current)
}

// AddError records an error or warning from the crawl.
func (r *ProgressRenderer) AddError(event ui.ErrorEvent) {
	if event.IsWarn {
		r.progress.RecordWarning()
	} else {
		r.progress.RecordError()
	}
}

// Complete records the final document count. The terminal state
// transition is left to the crawl owner, which knows when all work
// after the crawl itself has finished.
func (r *ProgressRenderer) Complete(stats ui.CompletionStats) {
	r.progress.SetDocuments(stats.Documents)
}

// Stop implements ui.Renderer. Nothing to tear down.
func (r *ProgressRenderer) Stop() error {
	return nil
}

// stageFor maps renderer stages onto crawl status stages. The renderer's
// completion stage keeps the last crawl stage; readiness is a status
// transition, not a stage.
func stageFor(stage ui.Stage) CrawlStage {
	switch stage {
	case ui.StageScanning:
		return StageScanning
	case ui.StageExtracting:
		return StageExtracting
	default:
		return StageCommitting
	}
}
