package ui

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"
)

// PlainRenderer writes line-oriented progress, suited to CI logs and
// redirected output.
type PlainRenderer struct {
	mu      sync.Mutex
	out     io.Writer
	noColor bool
	stage   Stage
	errors  []ErrorEvent
}

// NewPlainRenderer builds a renderer writing to cfg.Output.
func NewPlainRenderer(cfg Config) *PlainRenderer {
	return &PlainRenderer{
		out:     cfg.Output,
		noColor: cfg.NoColor,
	}
}

// Start is a no-op; plain output needs no terminal setup.
func (r *PlainRenderer) Start(ctx context.Context) error {
	return nil
}

// UpdateProgress prints one line per event: [STAGE] current/total - detail.
// Events with neither a total nor a detail stay silent so polling updates
// do not flood CI logs.
func (r *PlainRenderer) UpdateProgress(event ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.stage = event.Stage

	detail := event.Message
	if detail == "" {
		detail = event.CurrentFile
	}

	switch {
	case event.Total > 0:
		_, _ = fmt.Fprintf(r.out, "[%s] %d/%d - %s\n", event.Stage.Icon(), event.Current, event.Total, detail)
	case detail != "":
		_, _ = fmt.Fprintf(r.out, "[%s] %s\n", event.Stage.Icon(), detail)
	}
}

// AddError prints the failure immediately as an ERROR or WARN line.
func (r *PlainRenderer) AddError(event ErrorEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.errors = append(r.errors, event)

	prefix, location := "ERROR", ""
	if event.IsWarn {
		prefix = "WARN"
	}
	if event.File != "" {
		location = event.File + ": "
	}
	_, _ = fmt.Fprintf(r.out, "%s: %s%v\n", prefix, location, event.Err)
}

// Complete prints the summary line and, when stage timings were recorded,
// a per-stage breakdown.
func (r *PlainRenderer) Complete(stats CompletionStats) {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, _ = fmt.Fprintf(r.out, "Complete: %d files scanned, %d documents indexed in %s",
		stats.Files, stats.Documents, roundTiming(stats.Duration))
	if stats.Errors > 0 || stats.Warnings > 0 {
		_, _ = fmt.Fprintf(r.out, " (%d errors, %d warnings)", stats.Errors, stats.Warnings)
	}
	_, _ = fmt.Fprintln(r.out)

	if stats.Stages.Scan > 0 || stats.Stages.Extract > 0 {
		r.writeBreakdown(stats)
	}
}

func (r *PlainRenderer) writeBreakdown(stats CompletionStats) {
	_, _ = fmt.Fprintln(r.out)
	_, _ = fmt.Fprintln(r.out, "Stage Breakdown:")
	_, _ = fmt.Fprintf(r.out, "  Scan:    %s (files discovered)\n", roundTiming(stats.Stages.Scan))

	extract := fmt.Sprintf("  Extract: %s", roundTiming(stats.Stages.Extract))
	if stats.Stages.Extract > 0 && stats.Documents > 0 {
		rate := float64(stats.Documents) / stats.Stages.Extract.Seconds()
		extract += fmt.Sprintf(" (%d documents @ %.1f/sec)", stats.Documents, rate)
	}
	_, _ = fmt.Fprintln(r.out, extract)

	_, _ = fmt.Fprintf(r.out, "  Commit:  %s (FTS index)\n", roundTiming(stats.Stages.Commit))
}

// Stop is a no-op; nothing to tear down.
func (r *PlainRenderer) Stop() error {
	return nil
}

func roundTiming(d time.Duration) time.Duration {
	return d.Round(100 * time.Millisecond)
}
