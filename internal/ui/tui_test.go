package ui

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewTUIRenderer_ReturnsNilForNonTTY(t *testing.T) {
	// Given: a plain buffer, no terminal behind it
	buf := &bytes.Buffer{}
	cfg := NewConfig(buf)

	// When: constructing the renderer
	r, err := NewTUIRenderer(cfg)

	// Then: construction fails, a TUI needs a terminal
	assert.Error(t, err)
	assert.Nil(t, r)
}

func TestCrawlModel_StageIndicators(t *testing.T) {
	// Given: a model at the scanning stage
	tracker := NewProgressTracker()
	model := newCrawlModel(tracker, "")
	tracker.SetStage(StageScanning, 100)

	// When: rendering the view
	view := model.View()

	// Then: the full pipeline is shown
	assert.Contains(t, view, "Scan")
	assert.Contains(t, view, "Extract")
	assert.Contains(t, view, "Commit")
}

func TestCrawlModel_HeaderShowsRootLabel(t *testing.T) {
	tracker := NewProgressTracker()
	model := newCrawlModel(tracker, "~/docs")

	view := model.View()

	assert.Contains(t, view, "DocsMCP Crawler")
	assert.Contains(t, view, "~/docs")
}

func TestCrawlModel_ProgressDisplay(t *testing.T) {
	// Given: a model mid-crawl
	tracker := NewProgressTracker()
	tracker.SetStage(StageExtracting, 100)
	tracker.Update(50, "reports/q3-summary.docx")

	model := newCrawlModel(tracker, "")

	// When: drawing the view
	view := model.View()

	// Then: counts and the current file are shown
	assert.Contains(t, view, "50")
	assert.Contains(t, view, "100")
	assert.Contains(t, view, "q3-summary.docx")
}

func TestCrawlModel_CompleteView(t *testing.T) {
	// Given: a completed crawl
	tracker := NewProgressTracker()
	model := newCrawlModel(tracker, "")
	model.complete = true
	model.stats = CompletionStats{
		Files:     30,
		Documents: 28,
		Duration:  5 * time.Second,
		Errors:    1,
		Warnings:  2,
	}

	// When: drawing the view
	view := model.View()

	// Then: summary stats appear
	assert.Contains(t, view, "Crawl Complete")
	assert.Contains(t, view, "30")
	assert.Contains(t, view, "28")
	assert.Contains(t, view, "1 errors")
	assert.Contains(t, view, "2 warnings")
}

func TestCrawlModel_QuittingView(t *testing.T) {
	tracker := NewProgressTracker()
	model := newCrawlModel(tracker, "")
	model.quitting = true

	assert.Equal(t, "Cancelled.\n", model.View())
}

func TestTruncateFilePath(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		maxLen int
		want   string
	}{
		{"short path unchanged", "docs/a.md", 40, "docs/a.md"},
		{"empty path", "", 10, ""},
		{"keeps filename", "very/long/nested/path/to/file.md", 15, ".../file.md"},
		{"no separators truncates front", "averyveryverylongfilename.md", 12, "...ename.md"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := truncateFilePath(tt.path, tt.maxLen)
			assert.LessOrEqual(t, len(got), tt.maxLen+1)
			if tt.want != "" {
				assert.Contains(t, got, tt.want[len(tt.want)-5:])
			}
		})
	}
}
