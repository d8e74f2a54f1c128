package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"slices"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// StatusInfo is the index health snapshot shown by `docsmcp status`.
type StatusInfo struct {
	// Index side
	DataDir        string         `json:"data_dir"`
	TotalDocuments int            `json:"total_documents"`
	BySource       map[string]int `json:"by_source,omitempty"`
	IndexSize      int64          `json:"index_size"`
	LastUpdated    time.Time      `json:"last_updated"`

	// Component side
	CrawlState    string `json:"crawl_state,omitempty"`    // "idle", "crawling", "failed"
	WatcherStatus string `json:"watcher_status,omitempty"` // "running", "stopped", "n/a"
	WatcherMode   string `json:"watcher_mode,omitempty"`   // "fsnotify", "polling"
}

// StatusRenderer writes a StatusInfo as text or JSON.
type StatusRenderer struct {
	out     io.Writer
	styles  Styles
	noColor bool
}

// NewStatusRenderer builds a renderer writing to out.
func NewStatusRenderer(out io.Writer, noColor bool) *StatusRenderer {
	return &StatusRenderer{
		out:     out,
		styles:  GetStyles(noColor),
		noColor: noColor,
	}
}

// Render displays status info to terminal. Sections without data are
// omitted rather than printed empty.
func (r *StatusRenderer) Render(info StatusInfo) error {
	_, _ = fmt.Fprintf(r.out, "%s\n\n", r.styles.Header.Render("Index Status: "+info.DataDir))
	r.renderIndex(info)
	r.renderComponents(info)
	return nil
}

func (r *StatusRenderer) renderIndex(info StatusInfo) {
	_, _ = fmt.Fprintf(r.out, "  Documents:    %d\n", info.TotalDocuments)

	if len(info.BySource) > 0 {
		_, _ = fmt.Fprintln(r.out, "  Sources:")
		for _, s := range slices.Sorted(maps.Keys(info.BySource)) {
			_, _ = fmt.Fprintf(r.out, "    %-10s %d\n", s+":", info.BySource[s])
		}
	}

	_, _ = fmt.Fprintf(r.out, "  Index size:   %s\n", FormatBytes(info.IndexSize))
	if !info.LastUpdated.IsZero() {
		_, _ = fmt.Fprintf(r.out, "  Last updated: %s\n", formatTime(info.LastUpdated))
	}
	_, _ = fmt.Fprintln(r.out)
}

func (r *StatusRenderer) renderComponents(info StatusInfo) {
	if info.CrawlState != "" {
		_, _ = fmt.Fprintf(r.out, "  Crawl:   %s\n", r.renderStatus(info.CrawlState))
	}

	if info.WatcherStatus == "" || info.WatcherStatus == "n/a" {
		return
	}
	watcher := r.renderStatus(info.WatcherStatus)
	if info.WatcherMode != "" {
		watcher += " (" + info.WatcherMode + ")"
	}
	_, _ = fmt.Fprintf(r.out, "  Watcher: %s\n", watcher)
}

// RenderJSON writes the snapshot as indented JSON for scripting.
func (r *StatusRenderer) RenderJSON(info StatusInfo) error {
	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	return enc.Encode(info)
}

// statusTones groups component states by the style they are drawn in.
var statusTones = []struct {
	states []string
	style  func(Styles) lipgloss.Style
}{
	{[]string{"ready", "running", "idle"}, func(s Styles) lipgloss.Style { return s.Success }},
	{[]string{"crawling", "stopped"}, func(s Styles) lipgloss.Style { return s.Warning }},
	{[]string{"error", "failed"}, func(s Styles) lipgloss.Style { return s.Error }},
}

// renderStatus colors well-known component states; unknown ones pass
// through unchanged.
func (r *StatusRenderer) renderStatus(status string) string {
	for _, tone := range statusTones {
		if slices.Contains(tone.states, status) {
			return tone.style(r.styles).Render(status)
		}
	}
	return status
}

// formatTime renders recent times as a relative age and older ones as an
// absolute timestamp.
func formatTime(t time.Time) string {
	age := time.Since(t)

	switch {
	case age < time.Minute:
		return "just now"
	case age < time.Hour:
		return ago(int(age.Minutes()), "minute")
	case age < 24*time.Hour:
		return ago(int(age.Hours()), "hour")
	case age < 7*24*time.Hour:
		return ago(int(age.Hours()/24), "day")
	}
	return t.Format("2006-01-02 15:04")
}

func ago(n int, unit string) string {
	if n == 1 {
		return "1 " + unit + " ago"
	}
	return fmt.Sprintf("%d %ss ago", n, unit)
}

// FormatBytes renders a byte count with a binary-unit suffix.
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}

	val := float64(n)
	suffix := ""
	for _, s := range []string{"KB", "MB", "GB"} {
		val /= unit
		suffix = s
		if val < unit || s == "GB" {
			break
		}
	}
	return fmt.Sprintf("%.1f %s", val, suffix)
}
