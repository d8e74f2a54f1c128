// Package extract converts document files into plain text suitable for
// indexing. Each supported format has a dedicated extractor; files with
// an unrecognized extension are treated as plain text.
package extract

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/Aman-CERP/docsmcp/internal/errors"
)

// TruncationMarker is appended to content that was cut at the length cap.
const TruncationMarker = "\n\n[content truncated]"

// DefaultMaxContentChars caps extracted content length in characters.
const DefaultMaxContentChars = 100000

// Result holds the indexable output of one extraction.
type Result struct {
	// Title is the document title. Empty until Extract applies the
	// per-format rule or the filename fallback.
	Title string
	// Content is the extracted plain text. Never empty on success.
	Content string
	// Metadata carries format-specific extras (page counts, truncation).
	Metadata map[string]any
}

// Options configures an Extractor.
type Options struct {
	// MaxContentChars caps content length; 0 means DefaultMaxContentChars.
	MaxContentChars int
}

// DefaultOptions returns the default extractor options.
func DefaultOptions() Options {
	return Options{MaxContentChars: DefaultMaxContentChars}
}

// Extractor converts raw document bytes into Results.
type Extractor struct {
	maxContentChars int
}

// New creates an Extractor.
func New(opts Options) *Extractor {
	maxChars := opts.MaxContentChars
	if maxChars <= 0 {
		maxChars = DefaultMaxContentChars
	}
	return &Extractor{maxContentChars: maxChars}
}

// ExtractFile reads and extracts a file from disk.
func (e *Extractor) ExtractFile(ctx context.Context, path string) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New(errors.ErrCodeFileNotFound, fmt.Sprintf("file not found: %s", path), err)
		}
		return nil, errors.IOError(fmt.Sprintf("failed to read %s", path), err)
	}
	return e.Extract(ctx, path, data)
}

// Extract converts raw file bytes into a Result. The filename selects the
// extractor by extension and seeds the title fallback. Extraction that
// yields no text at all is an error: documents are never stored empty.
func (e *Extractor) Extract(ctx context.Context, filename string, data []byte) (*Result, error) {
	var (
		res *Result
		err error
	)
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".md", ".markdown":
		res, err = extractMarkdown(data)
	case ".docx":
		res, err = extractDocx(data)
	case ".pptx":
		res, err = extractPptx(data)
	case ".pdf":
		res, err = extractPDF(ctx, data)
	default:
		res, err = extractPlainText(data)
	}
	if err != nil {
		return nil, err
	}

	res.Content = strings.TrimSpace(res.Content)
	if res.Content == "" {
		return nil, errors.ExtractError(
			fmt.Sprintf("no extractable text in %s", filepath.Base(filename)), nil)
	}

	if e.truncate(res) {
		res.Metadata["truncated"] = true
	}

	if res.Title == "" {
		res.Title = TitleFromFilename(filename)
	}

	return res, nil
}

// truncate cuts content at the character cap, rune-safe, and appends the
// truncation marker. Reports whether anything was cut.
func (e *Extractor) truncate(res *Result) bool {
	if utf8.RuneCountInString(res.Content) <= e.maxContentChars {
		return false
	}
	runes := []rune(res.Content)
	res.Content = strings.TrimRight(string(runes[:e.maxContentChars]), " \t\n") + TruncationMarker
	return true
}

// TitleFromFilename derives a title from the file name: extension dropped,
// separators turned into spaces.
func TitleFromFilename(path string) string {
	name := filepath.Base(path)
	if ext := filepath.Ext(name); ext != "" {
		name = strings.TrimSuffix(name, ext)
	}
	name = strings.ReplaceAll(name, "_", " ")
	name = strings.ReplaceAll(name, "-", " ")
	return strings.TrimSpace(name)
}

// extractPlainText handles .txt and any unrecognized extension. Invalid
// UTF-8 sequences and NUL bytes are dropped rather than failing the file;
// SQLite treats an embedded NUL as end of string.
func extractPlainText(data []byte) (*Result, error) {
	if !utf8.Valid(data) {
		data = bytes.ToValidUTF8(data, nil)
	}
	content := strings.ReplaceAll(string(data), "\x00", "")
	return &Result{
		Content:  normalizeNewlines(content),
		Metadata: map[string]any{"format": "text"},
	}, nil
}

func normalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}

// firstNonEmptyLine returns the first line with visible content, trimmed.
func firstNonEmptyLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
