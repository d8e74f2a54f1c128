package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ===== Test Helpers =====

func testOptions() Options {
	return Options{
		DebounceWindow: 40 * time.Millisecond,
		PollInterval:   50 * time.Millisecond,
	}
}

// startWatcher runs a hybrid watcher over root and waits for the
// recursive watch registration to settle.
func startWatcher(t *testing.T, root string, opts Options) *HybridWatcher {
	t.Helper()
	w, err := NewHybridWatcher(opts)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = w.Start(ctx, root) }()
	t.Cleanup(func() { _ = w.Stop() })

	time.Sleep(150 * time.Millisecond)
	return w
}

// awaitEvent scans batches until one event matches.
func awaitEvent(t *testing.T, w *HybridWatcher, match func(FileEvent) bool) FileEvent {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case batch, ok := <-w.Events():
			require.True(t, ok, "events channel closed while waiting")
			for _, e := range batch {
				if match(e) {
					return e
				}
			}
		case <-deadline:
			t.Fatal("timed out waiting for watcher event")
			return FileEvent{}
		}
	}
}

// collectUntil gathers every event seen before one matches the sentinel.
func collectUntil(t *testing.T, w *HybridWatcher, sentinel func(FileEvent) bool) []FileEvent {
	t.Helper()
	var seen []FileEvent
	deadline := time.After(3 * time.Second)
	for {
		select {
		case batch, ok := <-w.Events():
			require.True(t, ok, "events channel closed while collecting")
			for _, e := range batch {
				seen = append(seen, e)
				if sentinel(e) {
					return seen
				}
			}
		case <-deadline:
			t.Fatal("timed out waiting for sentinel event")
			return nil
		}
	}
}

func pathIs(rel string) func(FileEvent) bool {
	return func(e FileEvent) bool { return filepath.ToSlash(e.Path) == rel }
}

// ===== Event Detection =====

func TestHybridWatcher_DetectsCreate(t *testing.T) {
	root := t.TempDir()
	w := startWatcher(t, root, testOptions())

	require.NoError(t, os.WriteFile(filepath.Join(root, "new.md"), []byte("# New"), 0644))

	e := awaitEvent(t, w, pathIs("new.md"))
	assert.Equal(t, OpCreate, e.Operation)
}

func TestHybridWatcher_DetectsModify(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "doc.md")
	require.NoError(t, os.WriteFile(path, []byte("# v1"), 0644))

	w := startWatcher(t, root, testOptions())

	require.NoError(t, os.WriteFile(path, []byte("# v2"), 0644))

	e := awaitEvent(t, w, pathIs("doc.md"))
	assert.Equal(t, OpModify, e.Operation)
}

func TestHybridWatcher_DetectsDelete(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "doomed.md")
	require.NoError(t, os.WriteFile(path, []byte("# Doomed"), 0644))

	w := startWatcher(t, root, testOptions())

	require.NoError(t, os.Remove(path))

	e := awaitEvent(t, w, pathIs("doomed.md"))
	assert.Equal(t, OpDelete, e.Operation)
}

func TestHybridWatcher_RenameIsDeletePlusCreate(t *testing.T) {
	root := t.TempDir()
	oldPath := filepath.Join(root, "before.md")
	require.NoError(t, os.WriteFile(oldPath, []byte("# Doc"), 0644))

	w := startWatcher(t, root, testOptions())

	require.NoError(t, os.Rename(oldPath, filepath.Join(root, "after.md")))

	// The old identity disappears; the new one appears
	var sawDelete, sawCreate bool
	deadline := time.After(3 * time.Second)
	for !(sawDelete && sawCreate) {
		select {
		case batch, ok := <-w.Events():
			require.True(t, ok)
			for _, e := range batch {
				switch filepath.ToSlash(e.Path) {
				case "before.md":
					if e.Operation == OpDelete {
						sawDelete = true
					}
				case "after.md":
					if e.Operation == OpCreate {
						sawCreate = true
					}
				}
			}
		case <-deadline:
			t.Fatalf("rename events missing: delete=%v create=%v", sawDelete, sawCreate)
		}
	}
}

func TestHybridWatcher_WatchesNewSubdirectories(t *testing.T) {
	root := t.TempDir()
	w := startWatcher(t, root, testOptions())

	subdir := filepath.Join(root, "chapter2")
	require.NoError(t, os.Mkdir(subdir, 0755))

	// Give the watcher time to register the new directory
	awaitEvent(t, w, pathIs("chapter2"))
	time.Sleep(150 * time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(subdir, "notes.md"), []byte("# Notes"), 0644))

	e := awaitEvent(t, w, pathIs("chapter2/notes.md"))
	assert.Equal(t, OpCreate, e.Operation)
}

// ===== Filtering =====

func TestHybridWatcher_IgnoresConfiguredPatterns(t *testing.T) {
	root := t.TempDir()
	opts := testOptions()
	opts.IgnorePatterns = []string{"*.tmp"}
	w := startWatcher(t, root, opts)

	require.NoError(t, os.WriteFile(filepath.Join(root, "scratch.tmp"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "real.md"), []byte("# Real"), 0644))

	seen := collectUntil(t, w, pathIs("real.md"))
	for _, e := range seen {
		assert.NotEqual(t, "scratch.tmp", filepath.ToSlash(e.Path))
	}
}

func TestHybridWatcher_IgnoresOwnDataDirectory(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".docsmcp"), 0755))
	w := startWatcher(t, root, testOptions())

	require.NoError(t, os.WriteFile(filepath.Join(root, ".docsmcp", "index.db"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "doc.md"), []byte("# Doc"), 0644))

	seen := collectUntil(t, w, pathIs("doc.md"))
	for _, e := range seen {
		assert.NotContains(t, filepath.ToSlash(e.Path), ".docsmcp")
	}
}

func TestHybridWatcher_RespectsGitignoreRules(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, ".gitignore"), []byte("drafts/\n"), 0644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "drafts"), 0755))
	w := startWatcher(t, root, testOptions())

	require.NoError(t, os.WriteFile(filepath.Join(root, "drafts", "wip.md"), []byte("# WIP"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "final.md"), []byte("# Final"), 0644))

	seen := collectUntil(t, w, pathIs("final.md"))
	for _, e := range seen {
		assert.NotContains(t, filepath.ToSlash(e.Path), "drafts/")
	}
}

// ===== Special Events =====

func TestHybridWatcher_GitignoreChangeEvent(t *testing.T) {
	root := t.TempDir()
	w := startWatcher(t, root, testOptions())

	require.NoError(t, os.WriteFile(filepath.Join(root, ".gitignore"), []byte("*.tmp\n"), 0644))

	e := awaitEvent(t, w, func(e FileEvent) bool { return e.Operation == OpGitignoreChange })
	assert.Equal(t, ".gitignore", filepath.Base(e.Path))
}

func TestHybridWatcher_ConfigChangeEvent(t *testing.T) {
	root := t.TempDir()
	w := startWatcher(t, root, testOptions())

	require.NoError(t, os.WriteFile(filepath.Join(root, ".docsmcp.yaml"), []byte("version: 1\n"), 0644))

	e := awaitEvent(t, w, func(e FileEvent) bool { return e.Operation == OpConfigChange })
	assert.Equal(t, ".docsmcp.yaml", filepath.Base(e.Path))
}

// ===== Lifecycle =====

func TestHybridWatcher_StopIsIdempotent(t *testing.T) {
	w, err := NewHybridWatcher(testOptions())
	require.NoError(t, err)

	require.NoError(t, w.Stop())
	require.NoError(t, w.Stop())

	_, ok := <-w.Events()
	assert.False(t, ok, "events channel closes on stop")
	_, ok = <-w.Errors()
	assert.False(t, ok, "errors channel closes on stop")
}

func TestHybridWatcher_ReportsMode(t *testing.T) {
	w, err := NewHybridWatcher(testOptions())
	require.NoError(t, err)
	defer func() { _ = w.Stop() }()

	assert.Contains(t, []string{"fsnotify", "polling"}, w.Mode())
	assert.True(t, w.IsHealthy())

	require.NoError(t, w.Stop())
	assert.False(t, w.IsHealthy())
}
