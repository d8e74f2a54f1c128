// Package output formats CLI status lines. Crawl progress has its own
// renderer in internal/ui; this covers the one-shot commands.
package output

import (
	"fmt"
	"io"
)

// Severity icons for the fixed-meaning helpers. Statusf callers pick
// their own.
const (
	iconSuccess = "✅"
	iconWarning = "⚠️ "
	iconError   = "❌"
)

// Writer prints iconed status lines for one-shot commands.
type Writer struct {
	out io.Writer
}

// New wraps out in a Writer.
func New(out io.Writer) *Writer {
	return &Writer{out: out}
}

// Status prints a status message with an icon. An empty icon indents
// the message to align with iconed lines. Write errors are ignored for
// console output.
func (w *Writer) Status(icon, msg string) {
	if icon == "" {
		_, _ = fmt.Fprintf(w.out, "   %s\n", msg)
		return
	}
	_, _ = fmt.Fprintf(w.out, "%s %s\n", icon, msg)
}

// Statusf is Status with Printf-style formatting.
func (w *Writer) Statusf(icon, format string, args ...any) {
	w.Status(icon, fmt.Sprintf(format, args...))
}

// Success prints msg behind a checkmark.
func (w *Writer) Success(msg string) { w.Status(iconSuccess, msg) }

// Successf is the formatted variant of Success.
func (w *Writer) Successf(format string, args ...any) {
	w.Statusf(iconSuccess, format, args...)
}

// Warning prints msg behind a warning sign.
func (w *Writer) Warning(msg string) { w.Status(iconWarning, msg) }

// Warningf is the formatted variant of Warning.
func (w *Writer) Warningf(format string, args ...any) {
	w.Statusf(iconWarning, format, args...)
}

// Error prints msg behind a cross.
func (w *Writer) Error(msg string) { w.Status(iconError, msg) }

// Errorf is the formatted variant of Error.
func (w *Writer) Errorf(format string, args ...any) {
	w.Statusf(iconError, format, args...)
}

// Newline emits a blank separator line.
func (w *Writer) Newline() {
	_, _ = fmt.Fprintln(w.out)
}
