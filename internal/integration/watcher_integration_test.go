package integration

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/docsmcp/internal/config"
	"github.com/Aman-CERP/docsmcp/internal/crawl"
	"github.com/Aman-CERP/docsmcp/internal/extract"
	"github.com/Aman-CERP/docsmcp/internal/scanner"
	"github.com/Aman-CERP/docsmcp/internal/store"
)

// Watch Pipeline Integration Tests - These run real watchers against a
// temporary directory and verify events flow through the supervisor and
// coordinator into the store.

// newWatchPipeline wires a supervisor over the root with fast debounce
// and polling intervals so tests settle quickly.
func newWatchPipeline(t *testing.T, root string) (*crawl.Supervisor, *store.SQLiteStore, *config.Config) {
	t.Helper()

	st := newTestStore(t)
	cfg := testConfig(root)
	cfg.Watch.Debounce = "100ms"
	cfg.Watch.PollInterval = "500ms"

	sc, err := scanner.New()
	require.NoError(t, err)

	coordinator := crawl.NewCoordinator(crawl.CoordinatorConfig{
		Store:     st,
		Extractor: extract.New(extract.Options{MaxContentChars: cfg.Limits.MaxContentChars}),
		Scanner:   sc,
		Config:    cfg,
	})
	return crawl.NewSupervisor(cfg, coordinator), st, cfg
}

// startPipeline starts the supervisor and waits for the watchers to
// settle on their roots.
func startPipeline(t *testing.T, sup *crawl.Supervisor) {
	t.Helper()

	require.NoError(t, sup.Start(context.Background()))
	t.Cleanup(func() { _ = sup.Stop() })

	// Wait for watcher initialization
	time.Sleep(200 * time.Millisecond)
}

// TestWatchPipeline_NewFile_IsIndexed tests that creating a file under a
// watched root lands it in the store without a crawl.
func TestWatchPipeline_NewFile_IsIndexed(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	// Given: a running watch pipeline over an empty root
	dir := t.TempDir()
	sup, st, _ := newWatchPipeline(t, dir)
	startPipeline(t, sup)

	// When: creating a new document
	notesPath := filepath.Join(dir, "notes.md")
	require.NoError(t, os.WriteFile(notesPath,
		[]byte("# Standup Notes\n\nThe rollout finished ahead of schedule.\n"), 0644))

	// Then: the document appears in the store
	ctx := context.Background()
	docID := store.DocumentID("local", notesPath)
	require.Eventually(t, func() bool {
		doc, err := st.Get(ctx, docID)
		return err == nil && doc != nil
	}, 5*time.Second, 50*time.Millisecond, "new file should be indexed")

	doc, err := st.Get(ctx, docID)
	require.NoError(t, err)
	assert.Equal(t, "Standup Notes", doc.Title)
	assert.Contains(t, doc.Content, "rollout finished")
}

// TestWatchPipeline_EditedFile_IsReindexed tests that editing an indexed
// file replaces its stored content.
func TestWatchPipeline_EditedFile_IsReindexed(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	// Given: an indexed document under a running pipeline
	dir := t.TempDir()
	notesPath := filepath.Join(dir, "plan.md")
	require.NoError(t, os.WriteFile(notesPath,
		[]byte("# Plan\n\nShip the beta in August.\n"), 0644))

	sup, st, cfg := newWatchPipeline(t, dir)
	crawlRoots(t, st, cfg)
	startPipeline(t, sup)

	// When: editing the document
	require.NoError(t, os.WriteFile(notesPath,
		[]byte("# Plan\n\nShip the beta in November instead.\n"), 0644))

	// Then: the stored content is replaced
	ctx := context.Background()
	docID := store.DocumentID("local", notesPath)
	require.Eventually(t, func() bool {
		doc, err := st.Get(ctx, docID)
		return err == nil && doc != nil && strings.Contains(doc.Content, "November")
	}, 5*time.Second, 50*time.Millisecond, "edited file should be reindexed")

	doc, err := st.Get(ctx, docID)
	require.NoError(t, err)
	assert.NotContains(t, doc.Content, "August")
}

// TestWatchPipeline_RemovedFile_LeavesIndex tests that deleting a file
// removes its document from the store.
func TestWatchPipeline_RemovedFile_LeavesIndex(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	// Given: an indexed document under a running pipeline
	dir := t.TempDir()
	notesPath := filepath.Join(dir, "todelete.md")
	require.NoError(t, os.WriteFile(notesPath,
		[]byte("# Scratch\n\nTemporary working notes.\n"), 0644))

	sup, st, cfg := newWatchPipeline(t, dir)
	crawlRoots(t, st, cfg)
	startPipeline(t, sup)

	ctx := context.Background()
	docID := store.DocumentID("local", notesPath)
	doc, err := st.Get(ctx, docID)
	require.NoError(t, err)
	require.NotNil(t, doc, "document should be indexed before removal")

	// When: deleting the file
	require.NoError(t, os.Remove(notesPath))

	// Then: the document disappears from the store
	require.Eventually(t, func() bool {
		doc, err := st.Get(ctx, docID)
		return err == nil && doc == nil
	}, 5*time.Second, 50*time.Millisecond, "removed file should leave the index")
}

// TestWatchPipeline_RemovedDirectory_SweepsChildren tests that removing
// a directory removes the documents for everything under it.
func TestWatchPipeline_RemovedDirectory_SweepsChildren(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	// Given: indexed documents inside a subdirectory
	dir := t.TempDir()
	subDir := filepath.Join(dir, "archive")
	require.NoError(t, os.MkdirAll(subDir, 0755))

	firstPath := filepath.Join(subDir, "first.md")
	secondPath := filepath.Join(subDir, "second.md")
	require.NoError(t, os.WriteFile(firstPath, []byte("# First\n\nOld report.\n"), 0644))
	require.NoError(t, os.WriteFile(secondPath, []byte("# Second\n\nOlder report.\n"), 0644))

	sup, st, cfg := newWatchPipeline(t, dir)
	crawlRoots(t, st, cfg)
	startPipeline(t, sup)

	// When: removing the whole directory
	require.NoError(t, os.RemoveAll(subDir))

	// Then: both documents disappear from the store
	ctx := context.Background()
	require.Eventually(t, func() bool {
		first, err1 := st.Get(ctx, store.DocumentID("local", firstPath))
		second, err2 := st.Get(ctx, store.DocumentID("local", secondPath))
		return err1 == nil && err2 == nil && first == nil && second == nil
	}, 5*time.Second, 50*time.Millisecond, "documents under a removed directory should be swept")
}

// TestWatchPipeline_IgnoredDirectory_NotIndexed tests that gitignored
// paths never reach the store while sibling files do.
func TestWatchPipeline_IgnoredDirectory_NotIndexed(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	// Given: a root whose .gitignore excludes drafts/
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".gitignore"), []byte("drafts/\n"), 0644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "drafts"), 0755))

	sup, st, _ := newWatchPipeline(t, dir)
	startPipeline(t, sup)

	// When: creating an ignored and a regular document
	draftPath := filepath.Join(dir, "drafts", "wip.md")
	notesPath := filepath.Join(dir, "notes.md")
	require.NoError(t, os.WriteFile(draftPath, []byte("# WIP\n\nNot ready.\n"), 0644))
	require.NoError(t, os.WriteFile(notesPath, []byte("# Notes\n\nReady to share.\n"), 0644))

	// Then: the regular document is indexed
	ctx := context.Background()
	require.Eventually(t, func() bool {
		doc, err := st.Get(ctx, store.DocumentID("local", notesPath))
		return err == nil && doc != nil
	}, 5*time.Second, 50*time.Millisecond, "regular file should be indexed")

	// And: the ignored one never is
	doc, err := st.Get(ctx, store.DocumentID("local", draftPath))
	require.NoError(t, err)
	assert.Nil(t, doc, "gitignored file should not be indexed")
}

// TestWatchPipeline_ReportsModesAndHealth tests the supervisor's
// health and mode reporting across its lifecycle.
func TestWatchPipeline_ReportsModesAndHealth(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	// Given: a running pipeline
	dir := t.TempDir()
	sup, _, _ := newWatchPipeline(t, dir)
	startPipeline(t, sup)

	// Then: the supervisor reports healthy with a known mode
	assert.True(t, sup.Healthy(), "running supervisor should be healthy")

	modes := sup.Modes()
	require.Len(t, modes, 1)
	for _, mode := range modes {
		assert.Contains(t, []string{"fsnotify", "polling"}, mode)
	}

	// When: stopping
	require.NoError(t, sup.Stop())

	// Then: no longer healthy, and stopping again is safe
	assert.False(t, sup.Healthy(), "stopped supervisor should not be healthy")
	require.NoError(t, sup.Stop())
}
