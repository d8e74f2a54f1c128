// Package gdrive crawls Google Drive and produces documents for the
// index through the same write path as local files. Native Google
// formats are exported to text; regular files are downloaded and run
// through the extraction pipeline by extension.
package gdrive

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"

	"github.com/Aman-CERP/docsmcp/internal/config"
	"github.com/Aman-CERP/docsmcp/internal/errors"
	"github.com/Aman-CERP/docsmcp/internal/extract"
	"github.com/Aman-CERP/docsmcp/internal/store"
)

// Source is the tag stamped on every document this connector produces.
const Source = "gdrive"

// Native Google MIME types that require export.
const (
	MimeTypeGoogleDoc    = "application/vnd.google-apps.document"
	MimeTypeGoogleSheet  = "application/vnd.google-apps.spreadsheet"
	MimeTypeGoogleSlides = "application/vnd.google-apps.presentation"
	MimeTypeFolder       = "application/vnd.google-apps.folder"
)

// Export formats for native Google files.
const (
	ExportMimeText = "text/plain"
	ExportMimeCSV  = "text/csv"
)

// MaxExportBytes caps exported and downloaded content at 5MB. Larger
// regular files are skipped outright; larger exports are cut at the cap
// and the tail is lost to extraction.
const MaxExportBytes = 5 * 1024 * 1024

// Drive allows 10 requests/sec/user; stay under it.
const (
	driveRequestsPerSecond = 8.0
	driveBurst             = 10
)

// driveAPI is the narrow slice of the Drive v3 surface the connector
// uses. *driveService implements it over the real client; tests inject
// a fake.
type driveAPI interface {
	// ListPage returns one page of non-trashed files. An empty parentID
	// lists the entire corpus; otherwise only direct children of the
	// folder are returned.
	ListPage(ctx context.Context, parentID, pageToken string) (*drive.FileList, error)

	// Export converts a native Google file to the given MIME type.
	Export(ctx context.Context, fileID, mimeType string) (io.ReadCloser, error)

	// Download fetches a regular file's bytes.
	Download(ctx context.Context, fileID string) (io.ReadCloser, error)
}

// Connector fetches indexable documents from Google Drive.
type Connector struct {
	api       driveAPI
	extractor *extract.Extractor
	limiter   *RateLimiter
	retry     errors.RetryConfig
	folders   []string
	exts      map[string]bool
}

// New builds a Connector against the real Drive API using the OAuth
// credentials and cached token configured under sources.gdrive.
func New(ctx context.Context, cfg *config.Config) (*Connector, error) {
	if cfg == nil {
		return nil, errors.ConfigError("config is required", nil)
	}
	if !cfg.Sources.GDrive.IsEnabled() {
		return nil, errors.ConfigError("gdrive source is not enabled", nil).
			WithSuggestion("set sources.gdrive.enabled: true and configure credentials_file")
	}

	svc, err := newDriveService(ctx, cfg.Sources.GDrive)
	if err != nil {
		return nil, err
	}
	return newConnector(svc, cfg), nil
}

// newConnector wires a Connector over any driveAPI.
func newConnector(api driveAPI, cfg *config.Config) *Connector {
	exts := make(map[string]bool, len(config.DefaultExtensions))
	for _, ext := range config.DefaultExtensions {
		exts[ext] = true
	}
	retryCfg := errors.DefaultRetryConfig()
	retryCfg.Jitter = true
	return &Connector{
		api:       api,
		extractor: extract.New(extract.Options{MaxContentChars: cfg.Limits.MaxContentChars}),
		limiter:   NewRateLimiter(driveRequestsPerSecond, driveBurst),
		retry:     retryCfg,
		folders:   cfg.Sources.GDrive.Folders,
		exts:      exts,
	}
}

// Source returns the source tag for documents from this connector.
func (c *Connector) Source() string {
	return Source
}

// Fetch returns every indexable document currently visible under the
// configured folders, or the entire Drive when none are configured.
// Configured folders are walked recursively. A file that fails to
// export or extract costs that file, not the fetch; a listing failure
// aborts once retries are exhausted.
func (c *Connector) Fetch(ctx context.Context) ([]*store.Document, error) {
	log := slog.With(slog.String("source", Source))

	// With no folder scope a single unscoped listing covers everything,
	// so subfolders found along the way are not walked again.
	queue := append([]string{}, c.folders...)
	scoped := len(queue) > 0
	if !scoped {
		queue = []string{""}
	}

	var docs []*store.Document
	seen := make(map[string]bool, len(queue))
	for len(queue) > 0 {
		folderID := queue[0]
		queue = queue[1:]
		if seen[folderID] {
			continue
		}
		seen[folderID] = true

		pageToken := ""
		for {
			page, err := c.listPage(ctx, folderID, pageToken)
			if err != nil {
				return nil, err
			}

			for _, f := range page.Files {
				if f.Trashed {
					continue
				}
				if f.MimeType == MimeTypeFolder {
					if scoped {
						queue = append(queue, f.Id)
					}
					continue
				}

				doc, err := c.fileDocument(ctx, f)
				if err != nil {
					if ctx.Err() != nil {
						return nil, err
					}
					log.Warn("gdrive_file_skipped",
						slog.String("file", f.Name),
						slog.String("error", err.Error()))
					continue
				}
				if doc != nil {
					docs = append(docs, doc)
				}
			}

			if page.NextPageToken == "" {
				break
			}
			pageToken = page.NextPageToken
		}
	}

	log.Info("gdrive_fetch_complete", slog.Int("documents", len(docs)))
	return docs, nil
}

// listPage fetches one page of results, retrying so a transient listing
// failure does not abort a whole fetch. Every attempt goes through the
// limiter, which honors any Retry-After hint noted from the previous
// attempt.
func (c *Connector) listPage(ctx context.Context, folderID, pageToken string) (*drive.FileList, error) {
	page, err := errors.RetryWithResult(ctx, c.retry, func() (*drive.FileList, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		page, err := c.api.ListPage(ctx, folderID, pageToken)
		if err != nil {
			c.noteRateLimit(err)
		}
		return page, err
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		return nil, errors.NetworkError("failed to list drive files", err)
	}
	return page, nil
}

// fileDocument converts one Drive file to a document. Returns (nil, nil)
// for files that are skipped rather than failed.
func (c *Connector) fileDocument(ctx context.Context, f *drive.File) (*store.Document, error) {
	switch f.MimeType {
	case MimeTypeFolder:
		return nil, nil
	case MimeTypeGoogleDoc:
		return c.exportNative(ctx, f, ExportMimeText, "gdoc")
	case MimeTypeGoogleSheet:
		return c.exportNative(ctx, f, ExportMimeCSV, "gsheet")
	case MimeTypeGoogleSlides:
		return c.exportNative(ctx, f, ExportMimeText, "gslides")
	}
	return c.downloadRegular(ctx, f)
}

// exportNative exports a native Google file as text and shapes it into
// a document. The Drive name is the title; native files have no
// extension to derive one from.
func (c *Connector) exportNative(ctx context.Context, f *drive.File, mimeType, format string) (*store.Document, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	body, err := c.api.Export(ctx, f.Id, mimeType)
	if err != nil {
		c.noteRateLimit(err)
		return nil, errors.NetworkError(fmt.Sprintf("failed to export %s", f.Name), err)
	}
	defer body.Close()

	data, err := io.ReadAll(io.LimitReader(body, MaxExportBytes))
	if err != nil {
		return nil, errors.NetworkError(fmt.Sprintf("failed to read export of %s", f.Name), err)
	}

	// The synthetic extension routes the export through the plain-text
	// extractor, which handles normalization and the content cap.
	res, err := c.extractor.Extract(ctx, f.Name+exportExt(mimeType), data)
	if err != nil {
		return nil, err
	}

	res.Metadata["format"] = format
	res.Metadata["exported_as"] = mimeType
	return c.document(f, f.Name, res.Content, res.Metadata), nil
}

// downloadRegular downloads a non-native file and runs it through
// extraction. Unsupported extensions and oversized files are skipped.
func (c *Connector) downloadRegular(ctx context.Context, f *drive.File) (*store.Document, error) {
	if !c.exts[strings.ToLower(filepath.Ext(f.Name))] {
		return nil, nil
	}
	if f.Size > MaxExportBytes {
		return nil, nil
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	body, err := c.api.Download(ctx, f.Id)
	if err != nil {
		c.noteRateLimit(err)
		return nil, errors.NetworkError(fmt.Sprintf("failed to download %s", f.Name), err)
	}
	defer body.Close()

	data, err := io.ReadAll(io.LimitReader(body, MaxExportBytes))
	if err != nil {
		return nil, errors.NetworkError(fmt.Sprintf("failed to read %s", f.Name), err)
	}

	res, err := c.extractor.Extract(ctx, f.Name, data)
	if err != nil {
		return nil, err
	}
	return c.document(f, res.Title, res.Content, res.Metadata), nil
}

// document assembles a store document for a Drive file. The file ID is
// the source identity, so renames and edits keep the same document.
func (c *Connector) document(f *drive.File, title, content string, md map[string]any) *store.Document {
	if md == nil {
		md = map[string]any{}
	}
	md["mime_type"] = f.MimeType
	if f.WebViewLink != "" {
		md["web_link"] = f.WebViewLink
	}
	if f.ModifiedTime != "" {
		md["modified_time"] = f.ModifiedTime
	}
	return &store.Document{
		ID:       store.DocumentID(Source, f.Id),
		Source:   Source,
		SourceID: f.Id,
		Title:    title,
		Content:  content,
		Metadata: md,
	}
}

// noteRateLimit records a 429 so the limiter backs off before the next
// call. The error itself still propagates to the caller.
func (c *Connector) noteRateLimit(err error) {
	var gErr *googleapi.Error
	if !stderrors.As(err, &gErr) || gErr.Code != http.StatusTooManyRequests {
		return
	}
	retryAfter := 0
	if v := gErr.Header.Get("Retry-After"); v != "" {
		if n, convErr := strconv.Atoi(v); convErr == nil {
			retryAfter = n
		}
	}
	c.limiter.RecordRetryAfter(retryAfter)
}

// exportExt picks a synthetic extension for an export MIME type.
func exportExt(mimeType string) string {
	if mimeType == ExportMimeCSV {
		return ".csv"
	}
	return ".txt"
}
