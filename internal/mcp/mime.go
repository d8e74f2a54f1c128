package mcp

import (
	"path/filepath"
	"strings"
)

// mimeTypes maps source file extensions to the MIME type of the text the
// extractor produces for them. Opaque formats (pdf, docx, pptx) flatten to
// plain text during extraction; markdown and csv keep their structure.
var mimeTypes = map[string]string{
	".txt":      "text/plain",
	".text":     "text/plain",
	".md":       "text/markdown",
	".markdown": "text/markdown",
	".csv":      "text/csv",
	".pdf":      "text/plain",
	".docx":     "text/plain",
	".pptx":     "text/plain",
}

// MimeTypeForPath returns the MIME type of the extracted text for a source
// path. Unknown extensions default to text/plain.
func MimeTypeForPath(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if mime, ok := mimeTypes[ext]; ok {
		return mime
	}
	return "text/plain"
}
