// Package scanner discovers document files under configured roots. It
// walks each root, applies the extension allow-list, exclusion
// patterns, .gitignore rules, and sensitive-file patterns, and streams
// matches over a channel for extraction.
package scanner

import (
	"path/filepath"
	"strings"
	"time"
)

// FileInfo describes one discovered document file.
type FileInfo struct {
	Path    string    // Relative to the scanned root
	AbsPath string    // Absolute path
	Size    int64     // File size in bytes
	ModTime time.Time // Last modification time
}

// ScanOptions configures a scan.
type ScanOptions struct {
	// RootDir is the directory to walk.
	RootDir string

	// Extensions is the allow-list of file extensions (with dot,
	// case-insensitive). Empty means the standard document set.
	Extensions []string

	// ExcludePatterns are glob patterns to skip, in addition to the
	// built-in exclusions.
	ExcludePatterns []string

	// RespectGitignore enables .gitignore parsing, including nested
	// files.
	RespectGitignore bool

	// MaxFileSize is the largest file to report in bytes (0 = 50MB).
	MaxFileSize int64

	// FollowSymlinks enables following symbolic links.
	FollowSymlinks bool
}

// ScanResult is one item streamed from the scan channel.
type ScanResult struct {
	File  *FileInfo
	Error error
}

// DefaultMaxFileSize is the file size ceiling when none is configured.
const DefaultMaxFileSize = 50 * 1024 * 1024

// defaultExtensions mirrors the config default; scans with no explicit
// allow-list pick up the standard document formats.
var defaultExtensions = []string{".txt", ".md", ".markdown", ".pdf", ".docx", ".pptx"}

// plainTextExtensions are the formats stored as raw text on disk.
// Only these get the binary-content sniff: pdf/docx/pptx are binary
// containers and must not be filtered for null bytes.
var plainTextExtensions = map[string]bool{
	".txt":      true,
	".md":       true,
	".markdown": true,
}

// extensionSet normalizes an allow-list into a lookup set.
func extensionSet(extensions []string) map[string]bool {
	if len(extensions) == 0 {
		extensions = defaultExtensions
	}
	set := make(map[string]bool, len(extensions))
	for _, ext := range extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		set[ext] = true
	}
	return set
}

// normalizedExt returns the lowercased extension of a path.
func normalizedExt(path string) string {
	return strings.ToLower(filepath.Ext(path))
}
