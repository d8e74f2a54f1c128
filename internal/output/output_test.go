package output

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func newWriterForTest() (*Writer, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	return New(buf), buf
}

func TestWriter_Status_PrintsIconAndMessage(t *testing.T) {
	// Given: a buffered writer
	w, buf := newWriterForTest()

	// When: printing an iconed status line
	w.Status("🔍", "Checking crawl roots...")

	// Then: both the icon and the message appear
	assert.Contains(t, buf.String(), "🔍")
	assert.Contains(t, buf.String(), "Checking crawl roots...")
}

func TestWriter_Status_EmptyIconIndents(t *testing.T) {
	w, buf := newWriterForTest()

	w.Status("", "~/Documents/notes")

	// The line lines up under iconed ones.
	assert.Equal(t, "   ~/Documents/notes\n", buf.String())
}

func TestWriter_SeverityIcons(t *testing.T) {
	tests := []struct {
		name  string
		print func(w *Writer)
		icon  string
		msg   string
	}{
		{"success", func(w *Writer) { w.Success("Crawl complete!") }, "✅", "Crawl complete!"},
		{"warning", func(w *Writer) { w.Warning("Root does not exist: ~/missing") }, "⚠️", "Root does not exist: ~/missing"},
		{"error", func(w *Writer) { w.Error("Another crawl is already running") }, "❌", "Another crawl is already running"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, buf := newWriterForTest()

			tt.print(w)

			assert.Contains(t, buf.String(), tt.icon)
			assert.Contains(t, buf.String(), tt.msg)
		})
	}
}

func TestWriter_Statusf_FormatsMessage(t *testing.T) {
	w, buf := newWriterForTest()

	w.Statusf("📂", "Found %d documents under %s", 42, "~/Documents")

	assert.Contains(t, buf.String(), "📂")
	assert.Contains(t, buf.String(), "Found 42 documents under ~/Documents")
}

func TestWriter_Warningf_FormatsMessage(t *testing.T) {
	w, buf := newWriterForTest()

	w.Warningf("%d files skipped", 3)

	assert.Contains(t, buf.String(), "3 files skipped")
}

func TestWriter_Newline_PrintsEmptyLine(t *testing.T) {
	w, buf := newWriterForTest()

	w.Newline()

	assert.Equal(t, "\n", buf.String())
}
