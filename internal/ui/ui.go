// Package ui provides terminal UI components for crawl progress and
// index status display.
package ui

import (
	"context"
	"io"
	"os"
	"slices"
	"time"

	"github.com/mattn/go-isatty"
)

// Stage represents a crawl stage.
type Stage int

const (
	// StageScanning is the file discovery stage.
	StageScanning Stage = iota
	// StageExtracting is the text extraction stage.
	StageExtracting
	// StageCommitting is the index write stage.
	StageCommitting
	// StageComplete indicates the crawl is complete.
	StageComplete
)

// stageLabels holds the long name and the short icon per stage, indexed by
// the Stage value.
var stageLabels = [...]struct{ name, icon string }{
	StageScanning:   {"Scanning", "SCAN"},
	StageExtracting: {"Extracting", "EXTRACT"},
	StageCommitting: {"Committing", "COMMIT"},
	StageComplete:   {"Complete", "DONE"},
}

// String returns the long stage name.
func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageLabels) {
		return "Unknown"
	}
	return stageLabels[s].name
}

// Icon returns the short stage tag used by plain text output.
func (s Stage) Icon() string {
	if s < 0 || int(s) >= len(stageLabels) {
		return "???"
	}
	return stageLabels[s].icon
}

// ProgressEvent is one progress update from the crawl.
type ProgressEvent struct {
	Stage       Stage
	Current     int
	Total       int
	CurrentFile string
	Message     string
}

// ErrorEvent is one failed or skipped file.
type ErrorEvent struct {
	File   string
	Err    error
	IsWarn bool
}

// StageTimings tracks duration for each crawl stage.
type StageTimings struct {
	Scan    time.Duration // File discovery
	Extract time.Duration // Text extraction
	Commit  time.Duration // Index write
}

// CompletionStats contains final crawl statistics.
type CompletionStats struct {
	Files     int // Files discovered by the scan
	Documents int // Documents written to the index
	Duration  time.Duration
	Errors    int
	Warnings  int
	Stages    StageTimings
}

// Renderer displays crawl progress.
type Renderer interface {
	// Start readies the display.
	Start(ctx context.Context) error

	// UpdateProgress applies one progress event.
	UpdateProgress(event ProgressEvent)

	// AddError surfaces a file error or warning.
	AddError(event ErrorEvent)

	// Complete shows the final summary.
	Complete(stats CompletionStats)

	// Stop tears the display down.
	Stop() error
}

// Config carries renderer settings.
type Config struct {
	Output       io.Writer
	ForcePlain   bool
	NoColor      bool
	SpinnerStyle string
	RootLabel    string // Crawl root(s) to display in the header
}

// ConfigOption adjusts a Config in place.
type ConfigOption func(*Config)

// WithForcePlain skips the TUI regardless of terminal detection.
func WithForcePlain(force bool) ConfigOption {
	return func(c *Config) {
		c.ForcePlain = force
	}
}

// WithNoColor strips ANSI color from the output.
func WithNoColor(noColor bool) ConfigOption {
	return func(c *Config) {
		c.NoColor = noColor
	}
}

// WithSpinnerStyle picks the spinner animation.
func WithSpinnerStyle(style string) ConfigOption {
	return func(c *Config) {
		c.SpinnerStyle = style
	}
}

// WithRootLabel sets the crawl root label shown in the header.
func WithRootLabel(label string) ConfigOption {
	return func(c *Config) {
		c.RootLabel = label
	}
}

// NewConfig builds a Config writing to output, then applies opts.
func NewConfig(output io.Writer, opts ...ConfigOption) Config {
	cfg := Config{Output: output, SpinnerStyle: "dots"}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// NewRenderer picks a renderer for the environment: the bubbletea TUI on an
// interactive terminal, plain text everywhere else.
func NewRenderer(cfg Config) Renderer {
	if mustUsePlain(cfg) {
		return NewPlainRenderer(cfg)
	}
	tui, err := NewTUIRenderer(cfg)
	if err != nil {
		return NewPlainRenderer(cfg)
	}
	return tui
}

// mustUsePlain reports whether plain output is required: forced by flag,
// writing to a pipe, or running under CI.
func mustUsePlain(cfg Config) bool {
	return cfg.ForcePlain || !IsTTY(cfg.Output) || DetectCI()
}

// IsTTY reports whether w is attached to a terminal.
func IsTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// DetectNoColor reports whether NO_COLOR is set in the environment.
func DetectNoColor() bool {
	_, set := os.LookupEnv("NO_COLOR")
	return set
}

var ciEnvVars = []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL", "TRAVIS"}

// DetectCI reports whether a CI marker variable is present.
func DetectCI() bool {
	return slices.ContainsFunc(ciEnvVars, func(v string) bool {
		_, set := os.LookupEnv(v)
		return set
	})
}
