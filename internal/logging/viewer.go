package logging

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"regexp"
	"slices"
	"strings"
	"time"
)

// LogEntry is one decoded line from a JSON log file.
type LogEntry struct {
	Time    time.Time      `json:"time"`
	Level   string         `json:"level"`
	Msg     string         `json:"msg"`
	Attrs   map[string]any `json:"-"` // Additional attributes
	Raw     string         `json:"-"` // Original line
	IsValid bool           `json:"-"` // Whether JSON parsing succeeded
}

// ViewerConfig selects which entries the viewer shows and how.
type ViewerConfig struct {
	Level   string         // Filter by level (debug, info, warn, error)
	Pattern *regexp.Regexp // Filter by pattern
	NoColor bool           // Disable colors
}

// Viewer reads docsmcp's JSON log files back as filtered, human-readable
// entries. It backs both `docsmcp-logs` modes: Tail for a one-shot dump and
// Follow for live streaming.
type Viewer struct {
	config   ViewerConfig
	out      io.Writer
	minLevel *slog.Level // nil means no level filter
}

// NewViewer builds a viewer writing formatted entries to out.
func NewViewer(cfg ViewerConfig, out io.Writer) *Viewer {
	v := &Viewer{config: cfg, out: out}
	if cfg.Level != "" {
		lvl := LevelFromString(cfg.Level)
		v.minLevel = &lvl
	}
	return v
}

// Slog lines carrying large attrs can exceed bufio's default token size.
const maxLineSize = 1 << 20

// followPollInterval is how often Follow checks the file for appended lines.
const followPollInterval = 100 * time.Millisecond

// Tail returns the entries from the last n lines of the file at path,
// after filtering.
func (v *Viewer) Tail(path string, n int) ([]LogEntry, error) {
	if n <= 0 {
		return nil, nil
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	defer func() { _ = file.Close() }()

	// Keep only the last n lines in a ring while scanning, so a large log
	// file never has to be held in memory whole.
	ring := make([]string, n)
	total := 0

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, maxLineSize), maxLineSize)
	for scanner.Scan() {
		ring[total%n] = scanner.Text()
		total++
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read log file: %w", err)
	}

	start, count := 0, total
	if total > n {
		start, count = total%n, n
	}

	var entries []LogEntry
	for i := 0; i < count; i++ {
		entry := v.parseLine(ring[(start+i)%n])
		if v.matchesFilter(entry) {
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

// Follow streams new entries from a log file to the channel until the
// context is cancelled. Existing content is skipped; only lines written
// after the call are reported.
func (v *Viewer) Follow(ctx context.Context, path string, entries chan<- LogEntry) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer func() { _ = file.Close() }()

	if _, err := file.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("failed to seek to end: %w", err)
	}

	reader := bufio.NewReader(file)
	ticker := time.NewTicker(followPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		// Drain everything appended since the last tick
		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				break
			}
			line = strings.TrimSuffix(line, "\n")
			if line == "" {
				continue
			}
			entry := v.parseLine(line)
			if !v.matchesFilter(entry) {
				continue
			}
			if !v.forward(ctx, entry, entries) {
				return nil
			}
		}
	}
}

// forward sends the entry unless the context ends first.
func (v *Viewer) forward(ctx context.Context, entry LogEntry, entries chan<- LogEntry) bool {
	select {
	case entries <- entry:
		return true
	case <-ctx.Done():
		return false
	}
}

// FormatEntry formats a log entry for display. Unparseable lines come back
// verbatim. Attrs are sorted by key so repeated runs line up.
func (v *Viewer) FormatEntry(entry LogEntry) string {
	if !entry.IsValid {
		return entry.Raw
	}

	var b strings.Builder
	b.WriteString(entry.Time.Format("15:04:05.000"))
	b.WriteByte(' ')
	b.WriteString(v.formatLevel(entry.Level))
	b.WriteByte(' ')
	b.WriteString(entry.Msg)

	for _, k := range slices.Sorted(maps.Keys(entry.Attrs)) {
		fmt.Fprintf(&b, " %s=%v", k, entry.Attrs[k])
	}

	return b.String()
}

// Print writes each entry to the viewer's output, one per line.
func (v *Viewer) Print(entries []LogEntry) {
	for _, entry := range entries {
		_, _ = fmt.Fprintln(v.out, v.FormatEntry(entry))
	}
}

// parseLine parses a JSON log line into LogEntry. Lines that are not JSON
// objects produce an entry with IsValid false and only Raw set.
func (v *Viewer) parseLine(line string) LogEntry {
	entry := LogEntry{Raw: line}

	var fields map[string]any
	if err := json.Unmarshal([]byte(line), &fields); err != nil {
		return entry
	}
	entry.IsValid = true

	if s, ok := fields["time"].(string); ok {
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			entry.Time = t
		}
	}
	entry.Level, _ = fields["level"].(string)
	entry.Msg, _ = fields["msg"].(string)

	// Whatever slog added beyond the standard trio is an attr
	delete(fields, "time")
	delete(fields, "level")
	delete(fields, "msg")
	entry.Attrs = fields

	return entry
}

func (v *Viewer) matchesFilter(entry LogEntry) bool {
	if v.minLevel != nil && LevelFromString(entry.Level) < *v.minLevel {
		return false
	}
	if v.config.Pattern != nil && !v.config.Pattern.MatchString(entry.Raw) {
		return false
	}
	return true
}

var levelColors = map[string]string{
	"debug":   "\033[90m", // gray
	"info":    "\033[32m", // green
	"warn":    "\033[33m", // yellow
	"warning": "\033[33m",
	"error":   "\033[31m", // red
}

// formatLevel renders the level as a fixed-width, optionally colored tag.
func (v *Viewer) formatLevel(level string) string {
	name := strings.ToUpper(level)
	if len(name) > 5 {
		name = name[:5]
	}
	name = fmt.Sprintf("%-5s", name)

	color, ok := levelColors[strings.ToLower(level)]
	if v.config.NoColor || !ok {
		return name
	}
	return color + name + "\033[0m"
}
