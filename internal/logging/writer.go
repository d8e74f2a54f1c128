package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// RotatingWriter is an io.Writer that appends to a log file and rotates it
// once it would exceed the size limit. Every write is synced to disk so
// `docsmcp-logs -f` sees lines as they are written.
type RotatingWriter struct {
	path     string
	limit    int64
	maxFiles int

	mu   sync.Mutex
	file *os.File
	size int64
}

// NewRotatingWriter creates a rotating log writer. maxSizeMB is the size in
// megabytes at which the active file is rotated; maxFiles is how many
// numbered backups (docsmcp.log.1 .. .N) are kept. The log directory is
// created if it does not exist.
func NewRotatingWriter(path string, maxSizeMB, maxFiles int) (*RotatingWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	w := &RotatingWriter{
		path:     path,
		limit:    int64(maxSizeMB) << 20,
		maxFiles: maxFiles,
	}
	if err := w.open(); err != nil {
		return nil, err
	}
	return w, nil
}

// Write appends p to the active file, rotating first when the write
// would push it past the size limit.
func (w *RotatingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.size+int64(len(p)) > w.limit {
		if err := w.rotate(); err != nil {
			// Rotation failure is not fatal; keep appending to the old file
			_, _ = fmt.Fprintf(os.Stderr, "log rotation failed: %v\n", err)
		}
	}

	n, err := w.file.Write(p)
	w.size += int64(n)
	if err == nil {
		_ = w.file.Sync()
	}
	return n, err
}

// withFile runs fn under the lock when a file is open; a closed writer
// is a no-op.
func (w *RotatingWriter) withFile(fn func(*os.File) error) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return nil
	}
	return fn(w.file)
}

// Close releases the active file. Later writes will fail.
func (w *RotatingWriter) Close() error {
	return w.withFile(func(f *os.File) error {
		w.file = nil
		return f.Close()
	})
}

// Sync forces buffered log data out to disk.
func (w *RotatingWriter) Sync() error {
	return w.withFile((*os.File).Sync)
}

func (w *RotatingWriter) open() error {
	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to stat log file: %w", err)
	}
	w.file = f
	w.size = st.Size()
	return nil
}

// backup returns the path of the n-th numbered backup.
func (w *RotatingWriter) backup(n int) string {
	return fmt.Sprintf("%s.%d", w.path, n)
}

// rotate shifts the backup chain up by one and reopens a fresh active file:
// docsmcp.log becomes .1, .1 becomes .2, and the backup at maxFiles is
// dropped instead of renamed.
func (w *RotatingWriter) rotate() error {
	if w.file != nil {
		if err := w.file.Close(); err != nil {
			return fmt.Errorf("failed to close log file: %w", err)
		}
		w.file = nil
	}

	// Walk the chain from the top so no backup is overwritten
	_ = os.Remove(w.backup(w.maxFiles))
	for n := w.maxFiles - 1; n >= 1; n-- {
		if _, err := os.Stat(w.backup(n)); err != nil {
			continue
		}
		_ = os.Rename(w.backup(n), w.backup(n+1))
	}

	if _, err := os.Stat(w.path); err == nil {
		if err := os.Rename(w.path, w.backup(1)); err != nil {
			return fmt.Errorf("failed to rotate log file: %w", err)
		}
	}

	w.size = 0
	return w.open()
}
