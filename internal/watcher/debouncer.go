package watcher

import (
	"log/slog"
	"sync"
	"time"
)

// Debouncer coalesces bursts of file events so a document being saved
// repeatedly costs one re-extraction, not ten. Events for the same path
// within the window merge:
//   - CREATE + MODIFY = CREATE (still a new file)
//   - CREATE + DELETE = nothing (never really existed)
//   - MODIFY + DELETE = DELETE
//   - DELETE + CREATE = MODIFY (file was replaced in place)
type Debouncer struct {
	window  time.Duration
	pending map[string]pendingEvent
	mu      sync.Mutex
	output  chan []FileEvent
	timer   *time.Timer
	stopped bool
}

type pendingEvent struct {
	event   FileEvent
	firstOp Operation
}

// NewDebouncer creates a debouncer that emits coalesced batches after
// the window elapses without further events.
func NewDebouncer(window time.Duration) *Debouncer {
	return &Debouncer{
		window:  window,
		pending: make(map[string]pendingEvent),
		output:  make(chan []FileEvent, 10),
	}
}

// Add feeds one event in, restarting the quiet-period timer.
func (d *Debouncer) Add(event FileEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	entry, ok := d.pending[event.Path]
	if !ok {
		d.pending[event.Path] = pendingEvent{event: event, firstOp: event.Operation}
		d.restartTimer()
		return
	}

	merged, keep := coalesce(entry, event)
	if keep {
		entry.event = merged
		d.pending[event.Path] = entry
	} else {
		delete(d.pending, event.Path)
	}
	d.restartTimer()
}

// coalesce merges the next event into a pending entry. The second
// return is false when the pair cancelled out.
func coalesce(entry pendingEvent, next FileEvent) (FileEvent, bool) {
	first := entry.firstOp
	switch {
	case first == OpCreate && next.Operation == OpModify:
		// Still a new file; keep the original create
		return entry.event, true
	case first == OpCreate && next.Operation == OpDelete:
		return FileEvent{}, false
	case first == OpDelete && next.Operation == OpCreate:
		// Replaced in place
		next.Operation = OpModify
		return next, true
	default:
		return next, true
	}
}

// restartTimer arms the quiet-period timer, cancelling any previous
// one.
func (d *Debouncer) restartTimer() {
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, d.flush)
}

// flush emits everything pending as one batch.
func (d *Debouncer) flush() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped || len(d.pending) == 0 {
		return
	}

	batch := make([]FileEvent, 0, len(d.pending))
	for _, entry := range d.pending {
		batch = append(batch, entry.event)
	}
	clear(d.pending)

	select {
	case d.output <- batch:
	default:
		slog.Warn("debouncer output full, dropping batch",
			slog.Int("batch_size", len(batch)))
	}
}

// Output returns the channel of debounced batches.
func (d *Debouncer) Output() <-chan []FileEvent {
	return d.output
}

// Stop shuts the debouncer down and closes its output. Idempotent.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
	close(d.output)
}
