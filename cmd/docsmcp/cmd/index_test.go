package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/docsmcp/internal/async"
	"github.com/Aman-CERP/docsmcp/internal/config"
	"github.com/Aman-CERP/docsmcp/internal/store"
)

func TestIndexCmd_CreatesIndexFile(t *testing.T) {
	// Given: a directory with documents
	tmpDir := isolateEnv(t)
	docsDir := filepath.Join(tmpDir, "docs")
	createDocsDir(t, docsDir)

	// When: running index
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"index", docsDir})

	err := cmd.Execute()

	// Then: the single-file index exists in the data dir
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(tmpDir, ".docsmcp", "index.db"))
}

func TestIndexCmd_IndexesSupportedFilesOnly(t *testing.T) {
	// Given: a directory with two documents and one unsupported file
	tmpDir := isolateEnv(t)
	docsDir := filepath.Join(tmpDir, "docs")
	createDocsDir(t, docsDir)

	// When: running index
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"index", docsDir})
	require.NoError(t, cmd.Execute())

	// Then: only the markdown and text files made it into the index
	st, err := store.New(filepath.Join(tmpDir, ".docsmcp", "index.db"), store.DefaultOptions())
	require.NoError(t, err)
	defer func() { _ = st.Close() }()

	stats, err := st.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalDocuments)
	assert.Equal(t, 2, stats.BySource["local"])
}

func TestIndexCmd_WritesReadyStatus(t *testing.T) {
	// Given: a directory with documents
	tmpDir := isolateEnv(t)
	docsDir := filepath.Join(tmpDir, "docs")
	createDocsDir(t, docsDir)

	// When: running index
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"index", docsDir})
	require.NoError(t, cmd.Execute())

	// Then: the status file reports a completed crawl
	status, err := async.ReadStatusFile(filepath.Join(tmpDir, ".docsmcp"))
	require.NoError(t, err)
	require.NotNil(t, status)
	assert.Equal(t, string(async.StatusReady), status.Status)
	assert.Equal(t, 2, status.Documents)
}

func TestIndexCmd_ReportsProgress(t *testing.T) {
	// Given: a directory with documents
	tmpDir := isolateEnv(t)
	docsDir := filepath.Join(tmpDir, "docs")
	createDocsDir(t, docsDir)

	// When: running index (buffer output selects the plain renderer)
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"index", docsDir})

	err := cmd.Execute()

	// Then: output reports the crawl summary
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Complete:", "Should report crawl summary")
}

func TestIndexCmd_FailsOnNonExistentPath(t *testing.T) {
	isolateEnv(t)

	// When: running index on a path that does not exist
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"index", "/nonexistent/path"})

	err := cmd.Execute()

	// Then: it should fail
	assert.Error(t, err)
}

func TestIndexCmd_FailsWithoutRoots(t *testing.T) {
	// Given: no configured roots and no path argument
	isolateEnv(t)

	// When: running index
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"index"})

	err := cmd.Execute()

	// Then: the error points at init
	require.Error(t, err)
	assert.Contains(t, err.Error(), "docsmcp init")
}

func TestIndexCmd_RespectsGitignore(t *testing.T) {
	// Given: a root where drafts/ is gitignored
	tmpDir := isolateEnv(t)
	docsDir := filepath.Join(tmpDir, "docs")
	require.NoError(t, os.MkdirAll(filepath.Join(docsDir, "drafts"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(docsDir, ".gitignore"), []byte("drafts/\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(docsDir, "final.md"), []byte("# Final\n\nShipped."), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(docsDir, "drafts", "wip.md"), []byte("# WIP\n\nNot yet."), 0644))

	// When: running index
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"index", docsDir})
	require.NoError(t, cmd.Execute())

	// Then: the ignored draft is not indexed
	st, err := store.New(filepath.Join(tmpDir, ".docsmcp", "index.db"), store.DefaultOptions())
	require.NoError(t, err)
	defer func() { _ = st.Close() }()

	stats, err := st.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalDocuments)
}

func TestIndexCmd_ForceRebuildsIndex(t *testing.T) {
	// Given: an existing index
	tmpDir := isolateEnv(t)
	docsDir := filepath.Join(tmpDir, "docs")
	createDocsDir(t, docsDir)

	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"index", docsDir})
	require.NoError(t, cmd.Execute())

	indexPath := filepath.Join(tmpDir, ".docsmcp", "index.db")
	require.FileExists(t, indexPath)

	// When: running index with --force
	cmd = NewRootCmd()
	buf = new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"index", "--force", docsDir})

	err := cmd.Execute()

	// Then: the index is cleared and rebuilt
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Clearing existing index")
	require.FileExists(t, indexPath)

	st, err := store.New(indexPath, store.DefaultOptions())
	require.NoError(t, err)
	defer func() { _ = st.Close() }()

	stats, err := st.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalDocuments)
}

func TestClearIndexData_RemovesIndexButKeepsLock(t *testing.T) {
	// Given: a data directory with index, sidecar, and status files
	dataDir := t.TempDir()
	cfg := config.NewConfig()
	cfg.DataDir = dataDir

	for _, name := range []string{"index.db", "index.db-wal", "index.db-shm", "status.json", "index.lock"} {
		require.NoError(t, os.WriteFile(filepath.Join(dataDir, name), []byte("x"), 0644))
	}

	// When: clearing index data
	err := clearIndexData(cfg)

	// Then: index and status are gone, the lock file stays
	require.NoError(t, err)
	assert.NoFileExists(t, filepath.Join(dataDir, "index.db"))
	assert.NoFileExists(t, filepath.Join(dataDir, "index.db-wal"))
	assert.NoFileExists(t, filepath.Join(dataDir, "index.db-shm"))
	assert.NoFileExists(t, filepath.Join(dataDir, "status.json"))
	assert.FileExists(t, filepath.Join(dataDir, "index.lock"))
}

func TestClearIndexData_IgnoresNonExistentFiles(t *testing.T) {
	// Given: an empty data directory
	cfg := config.NewConfig()
	cfg.DataDir = t.TempDir()

	// When: clearing index data
	err := clearIndexData(cfg)

	// Then: should succeed without error
	require.NoError(t, err)
}

// createDocsDir populates dir with two indexable documents and one
// file no extractor claims.
func createDocsDir(t *testing.T, dir string) {
	t.Helper()

	require.NoError(t, os.MkdirAll(dir, 0755))

	notes := `# Meeting Notes

Decisions from the quarterly planning session.

- Ship the importer in Q3
- Revisit retention policy
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.md"), []byte(notes), 0644))

	guide := `Onboarding guide

Welcome aboard. Start with the architecture overview,
then set up your local environment.
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "guide.txt"), []byte(guide), 0644))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "binary.bin"), []byte{0x00, 0x01, 0x02}, 0644))
}
