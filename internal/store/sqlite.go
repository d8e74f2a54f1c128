package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/Aman-CERP/docsmcp/internal/errors"
)

// timeLayout is a fixed-width UTC format so that lexicographic order of
// stored timestamps matches chronological order. RFC3339Nano trims
// trailing zeros, which breaks that property.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Options configures a SQLiteStore.
type Options struct {
	// CacheSizeMB is the SQLite page cache size; 0 means 64.
	CacheSizeMB int
}

// DefaultOptions returns the default store options.
func DefaultOptions() Options {
	return Options{CacheSizeMB: 64}
}

// SQLiteStore implements DocumentStore on a single SQLite file using FTS5
// for ranked search. WAL mode allows a reader (the MCP server) and a
// writer (a crawl) to coexist across processes.
type SQLiteStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	path   string
	closed bool
}

// Verify interface implementation at compile time
var _ DocumentStore = (*SQLiteStore)(nil)

// validateIntegrity checks an existing index file before opening it for
// real. Returns nil if the file is healthy or absent.
func validateIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil // Will be created
	}

	db, err := sql.Open("sqlite", path+"?mode=ro")
	if err != nil {
		return fmt.Errorf("cannot open for validation: %w", err)
	}
	defer func() { _ = db.Close() }()

	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check failed: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("database corrupted: %s", result)
	}

	var count int
	err = db.QueryRow(`SELECT COUNT(*) FROM sqlite_master
                       WHERE type='table' AND name IN ('documents', 'fts_documents')`).Scan(&count)
	if err != nil {
		return fmt.Errorf("cannot query schema: %w", err)
	}
	if count != 0 && count != 2 {
		return fmt.Errorf("index schema incomplete (%d of 2 tables)", count)
	}

	return nil
}

// New opens (or creates) the document store at path. An empty path opens
// an in-memory store for testing. A corrupted index file is cleared and
// recreated empty; a crawl rebuilds it.
func New(path string, opts Options) (*SQLiteStore, error) {
	var dsn string
	if path == "" {
		dsn = ":memory:"
	} else {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, errors.New(errors.ErrCodeStoreOpen,
				fmt.Sprintf("failed to create directory %s", dir), err)
		}

		if validErr := validateIntegrity(path); validErr != nil {
			slog.Warn("index_corrupted",
				slog.String("path", path),
				slog.String("error", validErr.Error()))

			if removeErr := os.Remove(path); removeErr != nil && !os.IsNotExist(removeErr) {
				return nil, errors.New(errors.ErrCodeCorruptIndex,
					fmt.Sprintf("index corrupted at %s and cannot be removed", path), removeErr)
			}
			// WAL sidecar files go with it
			_ = os.Remove(path + "-wal")
			_ = os.Remove(path + "-shm")

			slog.Info("index_cleared",
				slog.String("path", path),
				slog.String("reason", "corruption detected, reindex required"))
		}

		// busy_timeout handles lock contention between the server and a crawl
		dsn = path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.New(errors.ErrCodeStoreOpen, "failed to open index", err)
	}

	// Single connection: SQLite allows one writer, and modernc's driver
	// serializes anyway. Avoids SQLITE_BUSY churn.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	cacheMB := opts.CacheSizeMB
	if cacheMB <= 0 {
		cacheMB = 64
	}

	// DSN params may be ignored by modernc.org/sqlite; set pragmas explicitly
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		fmt.Sprintf("PRAGMA cache_size = -%d", cacheMB*1024), // negative = KB
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, errors.New(errors.ErrCodeStoreOpen, "failed to set pragma", err)
		}
	}

	s := &SQLiteStore{
		db:   db,
		path: path,
	}

	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, errors.New(errors.ErrCodeStoreOpen, "failed to initialize schema", err)
	}

	return s, nil
}

// initSchema creates the document table and the FTS5 search table.
func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY
	);

	-- Primary document storage. id is the identity hash of
	-- (source, source_id); the UNIQUE constraint backs that up.
	CREATE TABLE IF NOT EXISTS documents (
		id          TEXT PRIMARY KEY,
		source      TEXT NOT NULL,
		source_id   TEXT NOT NULL,
		title       TEXT NOT NULL,
		content     TEXT NOT NULL,
		metadata    TEXT NOT NULL DEFAULT '{}',
		last_synced TEXT NOT NULL,
		UNIQUE(source, source_id)
	);

	CREATE INDEX IF NOT EXISTS idx_documents_source ON documents(source);
	CREATE INDEX IF NOT EXISTS idx_documents_last_synced ON documents(last_synced DESC);

	-- FTS5 search table, written in the same transaction as documents.
	-- doc_id is stored but not tokenized.
	CREATE VIRTUAL TABLE IF NOT EXISTS fts_documents USING fts5(
		doc_id UNINDEXED,
		title,
		content,
		tokenize='unicode61'
	);

	INSERT OR IGNORE INTO schema_version (version) VALUES (1);
	`

	_, err := s.db.Exec(schema)
	return err
}

// validateDoc fills derivable fields and rejects documents that would
// violate store invariants.
func validateDoc(doc *Document) error {
	if doc == nil {
		return errors.ValidationError("document is nil", nil)
	}
	if doc.Source == "" || doc.SourceID == "" {
		return errors.ValidationError("document source and source_id are required", nil)
	}
	if strings.TrimSpace(doc.Content) == "" {
		return errors.ValidationError(
			fmt.Sprintf("document %s/%s has empty content", doc.Source, doc.SourceID), nil)
	}
	if strings.TrimSpace(doc.Title) == "" {
		return errors.ValidationError(
			fmt.Sprintf("document %s/%s has empty title", doc.Source, doc.SourceID), nil)
	}
	if doc.ID == "" {
		doc.ID = DocumentID(doc.Source, doc.SourceID)
	}
	if doc.LastSynced.IsZero() {
		doc.LastSynced = time.Now().UTC()
	}
	return nil
}

// Upsert inserts or replaces one document.
func (s *SQLiteStore) Upsert(ctx context.Context, doc *Document) error {
	return s.UpsertBatch(ctx, []*Document{doc})
}

// UpsertBatch writes all documents in one transaction. Either the whole
// batch lands, or none of it does.
func (s *SQLiteStore) UpsertBatch(ctx context.Context, docs []*Document) error {
	if len(docs) == 0 {
		return nil
	}

	for _, doc := range docs {
		if err := validateDoc(doc); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errors.StoreError("store is closed", nil)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.StoreError("failed to begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	docStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO documents (id, source, source_id, title, content, metadata, last_synced)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			source      = excluded.source,
			source_id   = excluded.source_id,
			title       = excluded.title,
			content     = excluded.content,
			metadata    = excluded.metadata,
			last_synced = excluded.last_synced`)
	if err != nil {
		return errors.StoreError("failed to prepare document statement", err)
	}
	defer func() { _ = docStmt.Close() }()

	// FTS5 tables don't support REPLACE, so delete then insert
	ftsDelStmt, err := tx.PrepareContext(ctx, `DELETE FROM fts_documents WHERE doc_id = ?`)
	if err != nil {
		return errors.StoreError("failed to prepare FTS delete statement", err)
	}
	defer func() { _ = ftsDelStmt.Close() }()

	ftsInsStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO fts_documents (doc_id, title, content) VALUES (?, ?, ?)`)
	if err != nil {
		return errors.StoreError("failed to prepare FTS insert statement", err)
	}
	defer func() { _ = ftsInsStmt.Close() }()

	for _, doc := range docs {
		metadata, err := encodeMetadata(doc.Metadata)
		if err != nil {
			return errors.StoreError(fmt.Sprintf("failed to encode metadata for %s", doc.ID), err)
		}

		if _, err := docStmt.ExecContext(ctx,
			doc.ID, doc.Source, doc.SourceID, doc.Title, doc.Content,
			metadata, doc.LastSynced.UTC().Format(timeLayout)); err != nil {
			return errors.StoreError(fmt.Sprintf("failed to upsert document %s", doc.ID), err)
		}
		if _, err := ftsDelStmt.ExecContext(ctx, doc.ID); err != nil {
			return errors.StoreError(fmt.Sprintf("failed to clear FTS entry for %s", doc.ID), err)
		}
		if _, err := ftsInsStmt.ExecContext(ctx, doc.ID, doc.Title, doc.Content); err != nil {
			return errors.StoreError(fmt.Sprintf("failed to index document %s", doc.ID), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.StoreError("failed to commit batch", err)
	}
	return nil
}

// Get returns a document by ID, or (nil, nil) when it doesn't exist.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, errors.StoreError("store is closed", nil)
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, source, source_id, title, content, metadata, last_synced
		FROM documents WHERE id = ?`, id)

	doc, err := scanDocument(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.New(errors.ErrCodeStoreRead,
			fmt.Sprintf("failed to read document %s", id), err)
	}
	return doc, nil
}

// Delete removes a document. Deleting an absent ID is a no-op.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errors.StoreError("store is closed", nil)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.StoreError("failed to begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id); err != nil {
		return errors.StoreError(fmt.Sprintf("failed to delete document %s", id), err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM fts_documents WHERE doc_id = ?`, id); err != nil {
		return errors.StoreError(fmt.Sprintf("failed to delete FTS entry %s", id), err)
	}

	if err := tx.Commit(); err != nil {
		return errors.StoreError("failed to commit delete", err)
	}
	return nil
}

// Search returns ranked matches for the query. An empty or symbol-only
// query returns no results; query validation with a typed error lives in
// the search service, not here.
func (s *SQLiteStore) Search(ctx context.Context, query string, opts SearchOptions) ([]*SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, errors.StoreError("store is closed", nil)
	}

	match := sanitizeMatchQuery(query)
	if match == "" {
		return []*SearchResult{}, nil
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	// bm25() returns negative scores where lower is better; ORDER BY
	// score ascending puts the best match first
	sqlQuery := `
		SELECT d.id, d.source, d.source_id, d.title, d.content, d.metadata, d.last_synced,
		       bm25(fts_documents) AS score
		FROM fts_documents
		JOIN documents d ON d.id = fts_documents.doc_id
		WHERE fts_documents MATCH ?`
	args := []any{match}

	if opts.Source != "" {
		sqlQuery += ` AND d.source = ?`
		args = append(args, opts.Source)
	}
	sqlQuery += ` ORDER BY score LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, errors.New(errors.ErrCodeSearchFailed, "search query failed", err)
	}
	defer func() { _ = rows.Close() }()

	var results []*SearchResult
	for rows.Next() {
		var (
			doc        Document
			metadata   string
			lastSynced string
			score      float64
		)
		if err := rows.Scan(&doc.ID, &doc.Source, &doc.SourceID, &doc.Title,
			&doc.Content, &metadata, &lastSynced, &score); err != nil {
			return nil, errors.New(errors.ErrCodeStoreRead, "failed to scan search result", err)
		}
		if err := decodeDocumentFields(&doc, metadata, lastSynced); err != nil {
			return nil, err
		}
		results = append(results, &SearchResult{
			Document: &doc,
			Score:    -score, // flip so higher = better
		})
	}
	if err := rows.Err(); err != nil {
		return nil, errors.New(errors.ErrCodeSearchFailed, "search iteration failed", err)
	}
	return results, nil
}

// ListAll returns documents newest-synced first.
func (s *SQLiteStore) ListAll(ctx context.Context, opts ListOptions) ([]*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, errors.StoreError("store is closed", nil)
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}

	sqlQuery := `
		SELECT id, source, source_id, title, content, metadata, last_synced
		FROM documents`
	var args []any
	if opts.Source != "" {
		sqlQuery += ` WHERE source = ?`
		args = append(args, opts.Source)
	}
	sqlQuery += ` ORDER BY last_synced DESC, id LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, errors.New(errors.ErrCodeStoreRead, "failed to list documents", err)
	}
	defer func() { _ = rows.Close() }()

	var docs []*Document
	for rows.Next() {
		var (
			doc        Document
			metadata   string
			lastSynced string
		)
		if err := rows.Scan(&doc.ID, &doc.Source, &doc.SourceID, &doc.Title,
			&doc.Content, &metadata, &lastSynced); err != nil {
			return nil, errors.New(errors.ErrCodeStoreRead, "failed to scan document", err)
		}
		if err := decodeDocumentFields(&doc, metadata, lastSynced); err != nil {
			return nil, err
		}
		docs = append(docs, &doc)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.New(errors.ErrCodeStoreRead, "list iteration failed", err)
	}
	return docs, nil
}

// ListRefsBySource returns the identity rows for every document of one
// source. The crawler diffs these against the filesystem to find stale
// and orphaned documents without loading content.
func (s *SQLiteStore) ListRefsBySource(ctx context.Context, source string) ([]DocumentRef, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, errors.StoreError("store is closed", nil)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source_id, last_synced FROM documents WHERE source = ?`, source)
	if err != nil {
		return nil, errors.New(errors.ErrCodeStoreRead, "failed to list document refs", err)
	}
	defer func() { _ = rows.Close() }()

	var refs []DocumentRef
	for rows.Next() {
		var (
			ref        DocumentRef
			lastSynced string
		)
		if err := rows.Scan(&ref.ID, &ref.SourceID, &lastSynced); err != nil {
			return nil, errors.New(errors.ErrCodeStoreRead, "failed to scan document ref", err)
		}
		if t, err := time.Parse(timeLayout, lastSynced); err == nil {
			ref.LastSynced = t
		}
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.New(errors.ErrCodeStoreRead, "ref iteration failed", err)
	}
	return refs, nil
}

// Stats reports document counts per source and overall index shape.
func (s *SQLiteStore) Stats(ctx context.Context) (*Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, errors.StoreError("store is closed", nil)
	}

	stats := &Stats{BySource: make(map[string]int)}

	rows, err := s.db.QueryContext(ctx,
		`SELECT source, COUNT(*) FROM documents GROUP BY source`)
	if err != nil {
		return nil, errors.New(errors.ErrCodeStoreRead, "failed to count documents", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var (
			source string
			count  int
		)
		if err := rows.Scan(&source, &count); err != nil {
			return nil, errors.New(errors.ErrCodeStoreRead, "failed to scan counts", err)
		}
		stats.BySource[source] = count
		stats.TotalDocuments += count
	}
	if err := rows.Err(); err != nil {
		return nil, errors.New(errors.ErrCodeStoreRead, "stats iteration failed", err)
	}

	var lastSynced sql.NullString
	if err := s.db.QueryRowContext(ctx,
		`SELECT MAX(last_synced) FROM documents`).Scan(&lastSynced); err != nil {
		return nil, errors.New(errors.ErrCodeStoreRead, "failed to read last update time", err)
	}
	if lastSynced.Valid {
		if t, err := time.Parse(timeLayout, lastSynced.String); err == nil {
			stats.LastUpdated = t
		}
	}

	if s.path != "" {
		if info, err := os.Stat(s.path); err == nil {
			stats.IndexSizeBytes = info.Size()
		}
	}

	return stats, nil
}

// Optimize merges the FTS5 index segments. Worth calling after a full
// crawl; harmless otherwise.
func (s *SQLiteStore) Optimize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errors.StoreError("store is closed", nil)
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO fts_documents(fts_documents) VALUES('optimize')`)
	if err != nil {
		return errors.StoreError("failed to optimize FTS index", err)
	}
	return nil
}

// Path returns the index file path (empty for in-memory stores).
func (s *SQLiteStore) Path() string {
	return s.path
}

// DB exposes the underlying connection so the telemetry tables can live
// in the same index file. The store retains ownership; callers must not
// close it.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

// Close checkpoints the WAL and closes the database. Idempotent.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true
	if s.db != nil {
		// Fold the WAL into the main file so the index is a single file
		// at rest
		_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
		return s.db.Close()
	}
	return nil
}

// sanitizeMatchQuery turns free text into a safe FTS5 MATCH expression.
// Each alphanumeric token is double-quoted so user input can never invoke
// MATCH operators (AND, OR, NEAR, -, *); tokens are implicitly ANDed.
func sanitizeMatchQuery(query string) string {
	tokens := strings.FieldsFunc(query, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	if len(tokens) == 0 {
		return ""
	}
	quoted := make([]string, len(tokens))
	for i, tok := range tokens {
		quoted[i] = `"` + tok + `"`
	}
	return strings.Join(quoted, " ")
}

func encodeMetadata(m map[string]any) (string, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*Document, error) {
	var (
		doc        Document
		metadata   string
		lastSynced string
	)
	if err := row.Scan(&doc.ID, &doc.Source, &doc.SourceID, &doc.Title,
		&doc.Content, &metadata, &lastSynced); err != nil {
		return nil, err
	}
	if err := decodeDocumentFields(&doc, metadata, lastSynced); err != nil {
		return nil, err
	}
	return &doc, nil
}

func decodeDocumentFields(doc *Document, metadata, lastSynced string) error {
	if metadata != "" && metadata != "{}" {
		if err := json.Unmarshal([]byte(metadata), &doc.Metadata); err != nil {
			return errors.New(errors.ErrCodeStoreRead,
				fmt.Sprintf("corrupt metadata for document %s", doc.ID), err)
		}
	}
	t, err := time.Parse(timeLayout, lastSynced)
	if err != nil {
		return errors.New(errors.ErrCodeStoreRead,
			fmt.Sprintf("corrupt timestamp for document %s", doc.ID), err)
	}
	doc.LastSynced = t
	return nil
}
