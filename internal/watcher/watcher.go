package watcher

import (
	"cmp"
	"context"
	"time"
)

// Operation classifies a file system event.
type Operation int

const (
	// OpCreate indicates a new file or directory appeared.
	OpCreate Operation = iota
	// OpModify indicates an existing file changed.
	OpModify
	// OpDelete indicates a file or directory is gone. Renames surface
	// as a delete of the old path plus a create of the new one.
	OpDelete
	// OpGitignoreChange indicates a .gitignore file changed; cached
	// ignore rules must be rebuilt.
	OpGitignoreChange
	// OpConfigChange indicates a .docsmcp.yaml project config changed.
	OpConfigChange
)

var opNames = [...]string{
	OpCreate:          "CREATE",
	OpModify:          "MODIFY",
	OpDelete:          "DELETE",
	OpGitignoreChange: "GITIGNORE_CHANGE",
	OpConfigChange:    "CONFIG_CHANGE",
}

// String returns the event name used in logs.
func (op Operation) String() string {
	if op >= 0 && int(op) < len(opNames) {
		return opNames[op]
	}
	return "UNKNOWN"
}

// FileEvent is one observed file system change.
type FileEvent struct {
	// Path is relative to the watched root.
	Path string

	// Operation is the kind of change.
	Operation Operation

	// IsDir marks directory events.
	IsDir bool

	// Timestamp is when the event was observed.
	Timestamp time.Time
}

// Watcher watches one document root. Events arrive in debounced
// batches; a quiet period follows every burst of changes before
// anything is emitted.
type Watcher interface {
	// Start watches the directory recursively until Stop or context
	// cancellation. Blocks while running.
	Start(ctx context.Context, path string) error

	// Stop shuts the watcher down. Safe to call more than once.
	Stop() error

	// Events returns the channel of debounced event batches, closed on
	// stop.
	Events() <-chan []FileEvent

	// Errors returns non-fatal watcher errors, closed on stop.
	Errors() <-chan error
}

// Options configures a watcher.
type Options struct {
	// DebounceWindow is the quiet period before coalesced events are
	// emitted. Default: 500ms.
	DebounceWindow time.Duration

	// PollInterval is the scan period for polling mode. Default: 30s.
	PollInterval time.Duration

	// EventBufferSize bounds the outgoing event queue; batches beyond
	// it are dropped and counted. Default: 1024.
	EventBufferSize int

	// IgnorePatterns are extra gitignore-syntax patterns applied to
	// events.
	IgnorePatterns []string
}

// DefaultOptions is the stock watcher configuration.
func DefaultOptions() Options {
	return Options{
		DebounceWindow:  500 * time.Millisecond,
		PollInterval:    30 * time.Second,
		EventBufferSize: 1024,
	}
}

// WithDefaults fills zero values with defaults.
func (o Options) WithDefaults() Options {
	def := DefaultOptions()
	o.DebounceWindow = cmp.Or(o.DebounceWindow, def.DebounceWindow)
	o.PollInterval = cmp.Or(o.PollInterval, def.PollInterval)
	o.EventBufferSize = cmp.Or(o.EventBufferSize, def.EventBufferSize)
	return o
}
