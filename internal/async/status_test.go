package async

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusFilePath(t *testing.T) {
	// Given/When: building the status file path
	path := StatusFilePath("/data/docsmcp")

	// Then: the file lives directly in the data dir
	assert.Equal(t, filepath.Join("/data/docsmcp", "status.json"), path)
}

func TestWriteStatusFile_RoundTrip(t *testing.T) {
	// Given: a status record for a completed crawl
	dataDir := t.TempDir()
	startedAt := time.Date(2026, 8, 25, 9, 30, 0, 0, time.UTC)
	status := &StatusFile{
		Status:         string(StatusReady),
		Stage:          string(StageCommitting),
		FilesTotal:     120,
		FilesProcessed: 120,
		Documents:      118,
		Errors:         0,
		Warnings:       2,
		StartedAt:      startedAt,
	}

	// When: writing and reading back
	require.NoError(t, WriteStatusFile(dataDir, status))
	got, err := ReadStatusFile(dataDir)
	require.NoError(t, err)
	require.NotNil(t, got)

	// Then: all fields survive the round trip
	assert.Equal(t, "ready", got.Status)
	assert.Equal(t, "committing", got.Stage)
	assert.Equal(t, 120, got.FilesTotal)
	assert.Equal(t, 120, got.FilesProcessed)
	assert.Equal(t, 118, got.Documents)
	assert.Equal(t, 0, got.Errors)
	assert.Equal(t, 2, got.Warnings)
	assert.True(t, got.StartedAt.Equal(startedAt))
}

func TestWriteStatusFile_StampsUpdatedAt(t *testing.T) {
	// Given: a status record with no update timestamp
	dataDir := t.TempDir()
	status := &StatusFile{Status: string(StatusCrawling)}

	// When: writing it
	before := time.Now()
	require.NoError(t, WriteStatusFile(dataDir, status))

	// Then: the write stamps the update time
	got, err := ReadStatusFile(dataDir)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.False(t, got.UpdatedAt.IsZero())
	assert.WithinDuration(t, before, got.UpdatedAt, 5*time.Second)
}

func TestWriteStatusFile_Overwrites(t *testing.T) {
	// Given: an existing status file from a crawl in progress
	dataDir := t.TempDir()
	require.NoError(t, WriteStatusFile(dataDir, &StatusFile{
		Status: string(StatusCrawling),
		Stage:  string(StageScanning),
	}))

	// When: the crawl completes and rewrites the file
	require.NoError(t, WriteStatusFile(dataDir, &StatusFile{
		Status:    string(StatusReady),
		Documents: 50,
	}))

	// Then: only the final state remains
	got, err := ReadStatusFile(dataDir)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "ready", got.Status)
	assert.Equal(t, 50, got.Documents)
}

func TestWriteStatusFile_CreatesDataDir(t *testing.T) {
	// Given: a data directory that does not exist yet
	dataDir := filepath.Join(t.TempDir(), "nested", "docsmcp")

	// When: writing the status file
	err := WriteStatusFile(dataDir, &StatusFile{Status: string(StatusCrawling)})

	// Then: the directory is created along the way
	require.NoError(t, err)
	_, statErr := os.Stat(StatusFilePath(dataDir))
	assert.NoError(t, statErr)
}

func TestReadStatusFile_AbsentReturnsNil(t *testing.T) {
	// Given: a data directory with no status file
	dataDir := t.TempDir()

	// When: reading
	got, err := ReadStatusFile(dataDir)

	// Then: no error, no status
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestReadStatusFile_CorruptReturnsError(t *testing.T) {
	// Given: a malformed status file
	dataDir := t.TempDir()
	require.NoError(t, os.WriteFile(StatusFilePath(dataDir), []byte("{not json"), 0644))

	// When: reading
	got, err := ReadStatusFile(dataDir)

	// Then: the parse failure surfaces
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse status file")
	assert.Nil(t, got)
}

func TestStatusFromSnapshot(t *testing.T) {
	// Given: a progress snapshot mid-crawl
	p := NewCrawlProgress()
	p.SetStage(StageExtracting, 80)
	p.UpdateFiles(40)
	p.SetDocuments(35)
	p.RecordWarning()
	startedAt := time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)

	// When: converting to the persisted shape
	status := statusFromSnapshot(p.Snapshot(), startedAt)

	// Then: fields carry over
	assert.Equal(t, "crawling", status.Status)
	assert.Equal(t, "extracting", status.Stage)
	assert.Equal(t, 80, status.FilesTotal)
	assert.Equal(t, 40, status.FilesProcessed)
	assert.Equal(t, 35, status.Documents)
	assert.Equal(t, 1, status.Warnings)
	assert.True(t, status.StartedAt.Equal(startedAt))
	assert.Empty(t, status.Error)
}
