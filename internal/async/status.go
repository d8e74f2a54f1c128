package async

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/renameio"
)

// StatusFileName is the crawl status file written into the data
// directory. Other processes (the status command, mainly) read it to
// report on crawls they did not run.
const StatusFileName = "status.json"

// StatusFile is the persisted record of the most recent crawl.
type StatusFile struct {
	Status         string    `json:"status"`
	Stage          string    `json:"stage,omitempty"`
	FilesTotal     int       `json:"files_total"`
	FilesProcessed int       `json:"files_processed"`
	Documents      int       `json:"documents"`
	Errors         int       `json:"errors"`
	Warnings       int       `json:"warnings"`
	StartedAt      time.Time `json:"started_at"`
	UpdatedAt      time.Time `json:"updated_at"`
	Error          string    `json:"error,omitempty"`
}

// StatusFilePath returns the status file location for a data directory.
func StatusFilePath(dataDir string) string {
	return filepath.Join(dataDir, StatusFileName)
}

// WriteStatusFile atomically replaces the status file via a temp-file
// rename, so a concurrent reader never observes a partial write. The
// update timestamp is stamped here.
func WriteStatusFile(dataDir string, status *StatusFile) error {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	status.UpdatedAt = time.Now()
	data, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal status: %w", err)
	}

	return renameio.WriteFile(StatusFilePath(dataDir), data, 0644)
}

// ReadStatusFile loads the status file, or (nil, nil) when no crawl has
// ever written one.
func ReadStatusFile(dataDir string) (*StatusFile, error) {
	data, err := os.ReadFile(StatusFilePath(dataDir))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read status file: %w", err)
	}

	var status StatusFile
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, fmt.Errorf("parse status file: %w", err)
	}
	return &status, nil
}

// statusFromSnapshot converts a progress snapshot into the persisted
// status shape.
func statusFromSnapshot(snap CrawlProgressSnapshot, startedAt time.Time) *StatusFile {
	return &StatusFile{
		Status:         snap.Status,
		Stage:          snap.Stage,
		FilesTotal:     snap.FilesTotal,
		FilesProcessed: snap.FilesProcessed,
		Documents:      snap.Documents,
		Errors:         snap.Errors,
		Warnings:       snap.Warnings,
		StartedAt:      startedAt,
		Error:          snap.ErrorMessage,
	}
}
