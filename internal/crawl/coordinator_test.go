package crawl

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/docsmcp/internal/config"
	"github.com/Aman-CERP/docsmcp/internal/extract"
	"github.com/Aman-CERP/docsmcp/internal/scanner"
	"github.com/Aman-CERP/docsmcp/internal/store"
	"github.com/Aman-CERP/docsmcp/internal/watcher"
)

func newTestCoordinator(t *testing.T, cfg *config.Config) (*Coordinator, *store.SQLiteStore) {
	t.Helper()

	s := newTestStore(t)
	sc, err := scanner.New()
	require.NoError(t, err)

	c := NewCoordinator(CoordinatorConfig{
		Store:     s,
		Extractor: extract.New(extract.DefaultOptions()),
		Scanner:   sc,
		Config:    cfg,
	})
	return c, s
}

func fileEvent(op watcher.Operation, relPath string) watcher.FileEvent {
	return watcher.FileEvent{Path: relPath, Operation: op, Timestamp: time.Now()}
}

func localID(absPath string) string {
	return store.DocumentID(SourceLocal, absPath)
}

func TestHandleEvents_CreateIndexesDocument(t *testing.T) {
	root := t.TempDir()
	c, s := newTestCoordinator(t, testConfig(root))
	ctx := context.Background()

	writeFile(t, filepath.Join(root, "notes.md"), "# Standup Notes\n\nblocked on the auth review")

	err := c.HandleEvents(ctx, root, []watcher.FileEvent{fileEvent(watcher.OpCreate, "notes.md")})
	require.NoError(t, err)

	doc, err := s.Get(ctx, localID(filepath.Join(root, "notes.md")))
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, "Standup Notes", doc.Title)
	assert.Contains(t, doc.Content, "auth review")
	assert.Equal(t, SourceLocal, doc.Source)
}

func TestHandleEvents_ModifyReplacesDocument(t *testing.T) {
	root := t.TempDir()
	c, s := newTestCoordinator(t, testConfig(root))
	ctx := context.Background()
	path := filepath.Join(root, "draft.md")

	writeFile(t, path, "# Draft\n\nfirst version")
	require.NoError(t, c.HandleEvents(ctx, root, []watcher.FileEvent{fileEvent(watcher.OpCreate, "draft.md")}))

	writeFile(t, path, "# Draft\n\nsecond version")
	require.NoError(t, c.HandleEvents(ctx, root, []watcher.FileEvent{fileEvent(watcher.OpModify, "draft.md")}))

	doc, err := s.Get(ctx, localID(path))
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Contains(t, doc.Content, "second version")
	assert.NotContains(t, doc.Content, "first version")

	// The identity is path-based, so the replacement is in place
	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalDocuments)
}

func TestHandleEvents_DeleteRemovesDocument(t *testing.T) {
	root := t.TempDir()
	c, s := newTestCoordinator(t, testConfig(root))
	ctx := context.Background()
	path := filepath.Join(root, "old.md")

	writeFile(t, path, "# Old\n\nabout to go away")
	require.NoError(t, c.HandleEvents(ctx, root, []watcher.FileEvent{fileEvent(watcher.OpCreate, "old.md")}))

	require.NoError(t, os.Remove(path))
	require.NoError(t, c.HandleEvents(ctx, root, []watcher.FileEvent{fileEvent(watcher.OpDelete, "old.md")}))

	doc, err := s.Get(ctx, localID(path))
	require.NoError(t, err)
	assert.Nil(t, doc)
}

func TestHandleEvents_DeleteOfUnknownPathIsNoOp(t *testing.T) {
	root := t.TempDir()
	c, _ := newTestCoordinator(t, testConfig(root))

	err := c.HandleEvents(context.Background(), root, []watcher.FileEvent{
		fileEvent(watcher.OpDelete, "never-indexed.md"),
	})
	require.NoError(t, err)
}

func TestHandleEvents_DeleteDirectorySweepsChildren(t *testing.T) {
	root := t.TempDir()
	c, s := newTestCoordinator(t, testConfig(root))
	ctx := context.Background()

	writeFile(t, filepath.Join(root, "reports", "q1.md"), "# Q1\n\nfirst quarter")
	writeFile(t, filepath.Join(root, "reports", "q2.md"), "# Q2\n\nsecond quarter")
	writeFile(t, filepath.Join(root, "keep.md"), "# Keep\n\nnot in the directory")

	require.NoError(t, c.HandleEvents(ctx, root, []watcher.FileEvent{
		fileEvent(watcher.OpCreate, filepath.Join("reports", "q1.md")),
		fileEvent(watcher.OpCreate, filepath.Join("reports", "q2.md")),
		fileEvent(watcher.OpCreate, "keep.md"),
	}))

	// A directory moved out of the tree yields one delete for its path
	require.NoError(t, os.RemoveAll(filepath.Join(root, "reports")))
	require.NoError(t, c.HandleEvents(ctx, root, []watcher.FileEvent{fileEvent(watcher.OpDelete, "reports")}))

	q1, err := s.Get(ctx, localID(filepath.Join(root, "reports", "q1.md")))
	require.NoError(t, err)
	assert.Nil(t, q1)
	q2, err := s.Get(ctx, localID(filepath.Join(root, "reports", "q2.md")))
	require.NoError(t, err)
	assert.Nil(t, q2)

	kept, err := s.Get(ctx, localID(filepath.Join(root, "keep.md")))
	require.NoError(t, err)
	require.NotNil(t, kept)
}

func TestHandleEvents_RenameIsDeletePlusCreate(t *testing.T) {
	root := t.TempDir()
	c, s := newTestCoordinator(t, testConfig(root))
	ctx := context.Background()
	oldPath := filepath.Join(root, "before.md")
	newPath := filepath.Join(root, "after.md")

	writeFile(t, oldPath, "# Doc\n\nstable content")
	require.NoError(t, c.HandleEvents(ctx, root, []watcher.FileEvent{fileEvent(watcher.OpCreate, "before.md")}))

	require.NoError(t, os.Rename(oldPath, newPath))
	require.NoError(t, c.HandleEvents(ctx, root, []watcher.FileEvent{
		fileEvent(watcher.OpDelete, "before.md"),
		fileEvent(watcher.OpCreate, "after.md"),
	}))

	// Identity follows the path even when the content did not change
	old, err := s.Get(ctx, localID(oldPath))
	require.NoError(t, err)
	assert.Nil(t, old)

	moved, err := s.Get(ctx, localID(newPath))
	require.NoError(t, err)
	require.NotNil(t, moved)
	assert.Contains(t, moved.Content, "stable content")

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalDocuments)
}

func TestHandleEvents_ExtractFailureKeepsExistingDocument(t *testing.T) {
	root := t.TempDir()
	c, s := newTestCoordinator(t, testConfig(root))
	ctx := context.Background()
	path := filepath.Join(root, "draft.md")

	writeFile(t, path, "# Draft\n\ngood content")
	require.NoError(t, c.HandleEvents(ctx, root, []watcher.FileEvent{fileEvent(watcher.OpCreate, "draft.md")}))

	// The file is emptied out; extraction now fails
	writeFile(t, path, "   \n\n  ")
	err := c.HandleEvents(ctx, root, []watcher.FileEvent{fileEvent(watcher.OpModify, "draft.md")})
	require.NoError(t, err)

	doc, err := s.Get(ctx, localID(path))
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Contains(t, doc.Content, "good content")
}

func TestHandleEvents_BinaryOverwriteRemovesDocument(t *testing.T) {
	root := t.TempDir()
	c, s := newTestCoordinator(t, testConfig(root))
	ctx := context.Background()
	path := filepath.Join(root, "notes.md")

	writeFile(t, path, "# Notes\n\nplain text for now")
	require.NoError(t, c.HandleEvents(ctx, root, []watcher.FileEvent{fileEvent(watcher.OpCreate, "notes.md")}))

	// Something clobbered the file with binary data; it no longer
	// qualifies for indexing
	writeFile(t, path, "PK\x03\x04\x00\x00\x00\x00binary payload")
	require.NoError(t, c.HandleEvents(ctx, root, []watcher.FileEvent{fileEvent(watcher.OpModify, "notes.md")}))

	doc, err := s.Get(ctx, localID(path))
	require.NoError(t, err)
	assert.Nil(t, doc)
}

func TestHandleEvents_OversizedFileSkippedNotRemoved(t *testing.T) {
	root := t.TempDir()
	cfg := testConfig(root)
	cfg.Limits.MaxFileSizeMB = 1
	c, s := newTestCoordinator(t, cfg)
	ctx := context.Background()
	path := filepath.Join(root, "log.txt")

	// An existing record for a file that later grew past the cap
	seeded := &store.Document{
		ID:       localID(path),
		Source:   SourceLocal,
		SourceID: path,
		Title:    "log",
		Content:  "contents from before the file grew",
	}
	require.NoError(t, s.Upsert(ctx, seeded))

	writeFile(t, path, strings.Repeat("x", 1536*1024))
	require.NoError(t, c.HandleEvents(ctx, root, []watcher.FileEvent{fileEvent(watcher.OpModify, "log.txt")}))

	doc, err := s.Get(ctx, localID(path))
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Contains(t, doc.Content, "before the file grew")
}

func TestHandleEvents_SymlinkSkipped(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks require elevated privileges on windows")
	}

	root := t.TempDir()
	c, s := newTestCoordinator(t, testConfig(root))
	ctx := context.Background()

	writeFile(t, filepath.Join(root, "target.md"), "# Target\n\nreal file")
	require.NoError(t, os.Symlink(filepath.Join(root, "target.md"), filepath.Join(root, "link.md")))

	require.NoError(t, c.HandleEvents(ctx, root, []watcher.FileEvent{fileEvent(watcher.OpCreate, "link.md")}))

	doc, err := s.Get(ctx, localID(filepath.Join(root, "link.md")))
	require.NoError(t, err)
	assert.Nil(t, doc)
}

func TestHandleEvents_DirectoryCreateIsIgnored(t *testing.T) {
	root := t.TempDir()
	c, s := newTestCoordinator(t, testConfig(root))
	ctx := context.Background()

	require.NoError(t, os.MkdirAll(filepath.Join(root, "chapter2"), 0o755))
	event := fileEvent(watcher.OpCreate, "chapter2")
	event.IsDir = true
	require.NoError(t, c.HandleEvents(ctx, root, []watcher.FileEvent{event}))

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.TotalDocuments)
}

func TestHandleEvents_ContainsPerEventFailures(t *testing.T) {
	root := t.TempDir()
	c, s := newTestCoordinator(t, testConfig(root))
	ctx := context.Background()

	writeFile(t, filepath.Join(root, "good.md"), "# Good\n\nstill processed")

	// The first event references a file that no longer exists
	err := c.HandleEvents(ctx, root, []watcher.FileEvent{
		fileEvent(watcher.OpCreate, "missing.md"),
		fileEvent(watcher.OpCreate, "good.md"),
	})
	require.NoError(t, err)

	doc, err := s.Get(ctx, localID(filepath.Join(root, "good.md")))
	require.NoError(t, err)
	require.NotNil(t, doc)
}

func TestHandleEvents_GitignoreChangeReconciles(t *testing.T) {
	root := t.TempDir()
	c, s := newTestCoordinator(t, testConfig(root))
	ctx := context.Background()

	writeFile(t, filepath.Join(root, "a.md"), "# A\n\nkept document")
	writeFile(t, filepath.Join(root, "drafts", "wip.md"), "# WIP\n\nsoon ignored")
	require.NoError(t, c.HandleEvents(ctx, root, []watcher.FileEvent{
		fileEvent(watcher.OpCreate, "a.md"),
		fileEvent(watcher.OpCreate, filepath.Join("drafts", "wip.md")),
	}))

	// A file that exists on disk but was never indexed
	writeFile(t, filepath.Join(root, "b.md"), "# B\n\npicked up by reconciliation")

	writeFile(t, filepath.Join(root, ".gitignore"), "drafts/\n")
	require.NoError(t, c.HandleEvents(ctx, root, []watcher.FileEvent{
		fileEvent(watcher.OpGitignoreChange, ".gitignore"),
	}))

	wip, err := s.Get(ctx, localID(filepath.Join(root, "drafts", "wip.md")))
	require.NoError(t, err)
	assert.Nil(t, wip, "newly-ignored document should be removed")

	a, err := s.Get(ctx, localID(filepath.Join(root, "a.md")))
	require.NoError(t, err)
	require.NotNil(t, a)

	b, err := s.Get(ctx, localID(filepath.Join(root, "b.md")))
	require.NoError(t, err)
	require.NotNil(t, b, "unindexed on-disk document should be added")
}

func TestHandleEvents_ConfigChangeReconciles(t *testing.T) {
	root := t.TempDir()
	c, s := newTestCoordinator(t, testConfig(root))
	ctx := context.Background()

	writeFile(t, filepath.Join(root, "a.md"), "# A\n\nindexed before the change")
	require.NoError(t, c.HandleEvents(ctx, root, []watcher.FileEvent{fileEvent(watcher.OpCreate, "a.md")}))

	writeFile(t, filepath.Join(root, "c.md"), "# C\n\nadded while nothing was watching")
	require.NoError(t, c.HandleEvents(ctx, root, []watcher.FileEvent{
		fileEvent(watcher.OpConfigChange, ".docsmcp.yaml"),
	}))

	doc, err := s.Get(ctx, localID(filepath.Join(root, "c.md")))
	require.NoError(t, err)
	require.NotNil(t, doc)
}

func TestHandleEvents_WithoutScannerSkipsReconciliation(t *testing.T) {
	root := t.TempDir()
	s := newTestStore(t)
	c := NewCoordinator(CoordinatorConfig{
		Store:     s,
		Extractor: extract.New(extract.DefaultOptions()),
		Config:    testConfig(root),
	})

	err := c.HandleEvents(context.Background(), root, []watcher.FileEvent{
		fileEvent(watcher.OpGitignoreChange, ".gitignore"),
		fileEvent(watcher.OpConfigChange, ".docsmcp.yaml"),
	})
	require.NoError(t, err)
}
