package watcher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testWindow = 30 * time.Millisecond

// awaitBatch waits for the next debounced batch.
func awaitBatch(t *testing.T, d *Debouncer) []FileEvent {
	t.Helper()
	select {
	case batch, ok := <-d.Output():
		require.True(t, ok, "output closed while waiting for batch")
		return batch
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for debounced batch")
		return nil
	}
}

// expectSilence asserts no batch arrives within the window.
func expectSilence(t *testing.T, d *Debouncer) {
	t.Helper()
	select {
	case batch := <-d.Output():
		t.Fatalf("expected no batch, got %d events", len(batch))
	case <-time.After(3 * testWindow):
	}
}

func event(path string, op Operation) FileEvent {
	return FileEvent{Path: path, Operation: op, Timestamp: time.Now()}
}

func TestDebouncer_EmitsAfterQuietPeriod(t *testing.T) {
	d := NewDebouncer(testWindow)
	defer d.Stop()

	d.Add(event("docs/a.md", OpCreate))

	batch := awaitBatch(t, d)
	require.Len(t, batch, 1)
	assert.Equal(t, "docs/a.md", batch[0].Path)
	assert.Equal(t, OpCreate, batch[0].Operation)
}

func TestDebouncer_CoalescesSamePath(t *testing.T) {
	tests := []struct {
		name string
		ops  []Operation
		want Operation
	}{
		{"create then modify stays create", []Operation{OpCreate, OpModify}, OpCreate},
		{"modify then modify", []Operation{OpModify, OpModify}, OpModify},
		{"modify then delete", []Operation{OpModify, OpDelete}, OpDelete},
		{"delete then create is replace", []Operation{OpDelete, OpCreate}, OpModify},
		{"create modify modify", []Operation{OpCreate, OpModify, OpModify}, OpCreate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDebouncer(testWindow)
			defer d.Stop()

			for _, op := range tt.ops {
				d.Add(event("docs/a.md", op))
			}

			batch := awaitBatch(t, d)
			require.Len(t, batch, 1)
			assert.Equal(t, tt.want, batch[0].Operation)
		})
	}
}

func TestDebouncer_CreateDeleteCancelsOut(t *testing.T) {
	d := NewDebouncer(testWindow)
	defer d.Stop()

	// A file that appears and vanishes within the window was never
	// worth indexing
	d.Add(event("docs/tmp.md", OpCreate))
	d.Add(event("docs/tmp.md", OpDelete))

	expectSilence(t, d)
}

func TestDebouncer_BatchesMultiplePaths(t *testing.T) {
	d := NewDebouncer(testWindow)
	defer d.Stop()

	d.Add(event("docs/a.md", OpCreate))
	d.Add(event("docs/b.md", OpModify))
	d.Add(event("docs/c.md", OpDelete))

	batch := awaitBatch(t, d)
	require.Len(t, batch, 3)

	byPath := make(map[string]Operation, len(batch))
	for _, e := range batch {
		byPath[e.Path] = e.Operation
	}
	assert.Equal(t, OpCreate, byPath["docs/a.md"])
	assert.Equal(t, OpModify, byPath["docs/b.md"])
	assert.Equal(t, OpDelete, byPath["docs/c.md"])
}

func TestDebouncer_NewEventExtendsQuietPeriod(t *testing.T) {
	d := NewDebouncer(4 * testWindow)
	defer d.Stop()

	d.Add(event("docs/a.md", OpModify))
	time.Sleep(2 * testWindow)
	// Still inside the window; this restarts it
	d.Add(event("docs/a.md", OpModify))

	select {
	case <-d.Output():
		t.Fatal("batch emitted before the extended window elapsed")
	case <-time.After(3 * testWindow):
	}

	batch := awaitBatch(t, d)
	assert.Len(t, batch, 1)
}

func TestDebouncer_StopIsIdempotent(t *testing.T) {
	d := NewDebouncer(testWindow)

	d.Stop()
	d.Stop()

	// Output is closed
	_, ok := <-d.Output()
	assert.False(t, ok)

	// Add after stop is a no-op, not a panic
	d.Add(event("docs/a.md", OpCreate))
}
