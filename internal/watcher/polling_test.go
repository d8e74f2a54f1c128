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

const pollTestInterval = 30 * time.Millisecond

func startPoller(t *testing.T, root string) *PollingWatcher {
	t.Helper()
	p := NewPollingWatcher(pollTestInterval)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = p.Start(ctx, root) }()
	t.Cleanup(func() { _ = p.Stop() })

	// Let the baseline snapshot land before mutating the tree
	time.Sleep(3 * pollTestInterval)
	return p
}

// awaitPollEvent waits for an event matching the predicate.
func awaitPollEvent(t *testing.T, p *PollingWatcher, match func(FileEvent) bool) FileEvent {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case e, ok := <-p.Events():
			require.True(t, ok, "events channel closed while waiting")
			if match(e) {
				return e
			}
		case <-deadline:
			t.Fatal("timed out waiting for polling event")
			return FileEvent{}
		}
	}
}

func TestPollingWatcher_DetectsCreate(t *testing.T) {
	root := t.TempDir()
	p := startPoller(t, root)

	require.NoError(t, os.WriteFile(filepath.Join(root, "new.md"), []byte("# New"), 0644))

	e := awaitPollEvent(t, p, func(e FileEvent) bool { return e.Path == "new.md" })
	assert.Equal(t, OpCreate, e.Operation)
	assert.False(t, e.IsDir)
}

func TestPollingWatcher_DetectsModify(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "doc.md")
	require.NoError(t, os.WriteFile(path, []byte("# v1"), 0644))

	p := startPoller(t, root)

	// Size change guarantees detection even on coarse mtime filesystems
	require.NoError(t, os.WriteFile(path, []byte("# v2 with more text"), 0644))

	e := awaitPollEvent(t, p, func(e FileEvent) bool {
		return e.Path == "doc.md" && e.Operation == OpModify
	})
	assert.Equal(t, OpModify, e.Operation)
}

func TestPollingWatcher_DetectsDelete(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "doomed.md")
	require.NoError(t, os.WriteFile(path, []byte("# Doomed"), 0644))

	p := startPoller(t, root)

	require.NoError(t, os.Remove(path))

	e := awaitPollEvent(t, p, func(e FileEvent) bool { return e.Path == "doomed.md" })
	assert.Equal(t, OpDelete, e.Operation)
}

func TestPollingWatcher_NoEventsForUnchangedBaseline(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "stable.md"), []byte("# Stable"), 0644))

	p := startPoller(t, root)

	select {
	case e := <-p.Events():
		t.Fatalf("unexpected event for unchanged file: %+v", e)
	case <-time.After(4 * pollTestInterval):
	}
}

func TestPollingWatcher_SkipsGitDirectories(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".git"), 0755))

	p := startPoller(t, root)

	// Churn inside .git must not surface
	require.NoError(t, os.WriteFile(filepath.Join(root, ".git", "index"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "real.md"), []byte("# Real"), 0644))

	e := awaitPollEvent(t, p, func(e FileEvent) bool { return e.Path == "real.md" })
	assert.Equal(t, OpCreate, e.Operation)
}

func TestPollingWatcher_StopIsIdempotent(t *testing.T) {
	p := NewPollingWatcher(pollTestInterval)

	require.NoError(t, p.Stop())
	require.NoError(t, p.Stop())

	_, ok := <-p.Events()
	assert.False(t, ok, "events channel closes on stop")
}
