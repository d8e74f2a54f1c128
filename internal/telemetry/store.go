package telemetry

import (
	"database/sql"
	"fmt"
	"time"
)

// Telemetry lives in the same SQLite file as the document index, in
// its own tables. Aggregates are additive so flushes from concurrent
// processes never clobber each other.
const telemetrySchema = `
-- Query counts per source filter, aggregated by day
CREATE TABLE IF NOT EXISTS query_source_stats (
	date   TEXT NOT NULL,
	source TEXT NOT NULL,
	count  INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (date, source)
);

-- Term frequencies across all queries
CREATE TABLE IF NOT EXISTS query_terms (
	term      TEXT PRIMARY KEY,
	count     INTEGER NOT NULL DEFAULT 1,
	last_seen TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_query_terms_count ON query_terms(count DESC);

-- Rolling window of queries that matched nothing
CREATE TABLE IF NOT EXISTS zero_result_queries (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	query     TEXT NOT NULL,
	timestamp TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

-- Daily latency histogram
CREATE TABLE IF NOT EXISTS query_latency_stats (
	date   TEXT NOT NULL,
	bucket TEXT NOT NULL,
	count  INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (date, bucket)
);
`

const (
	upsertSourceCountSQL = `INSERT INTO query_source_stats (date, source, count) VALUES (?, ?, ?)
		ON CONFLICT(date, source) DO UPDATE SET count = count + excluded.count`

	selectSourceCountsSQL = `SELECT source, SUM(count) FROM query_source_stats
		WHERE date BETWEEN ? AND ? GROUP BY source`

	upsertTermCountSQL = `INSERT INTO query_terms (term, count, last_seen) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(term) DO UPDATE SET count = count + excluded.count, last_seen = CURRENT_TIMESTAMP`

	selectTopTermsSQL = `SELECT term, count FROM query_terms ORDER BY count DESC LIMIT ?`

	insertZeroResultSQL = `INSERT INTO zero_result_queries (query, timestamp) VALUES (?, ?)`

	trimZeroResultsSQL = `DELETE FROM zero_result_queries WHERE id NOT IN
		(SELECT id FROM zero_result_queries ORDER BY id DESC LIMIT 100)`

	selectZeroResultsSQL = `SELECT query FROM zero_result_queries ORDER BY id DESC LIMIT ?`

	upsertLatencyCountSQL = `INSERT INTO query_latency_stats (date, bucket, count) VALUES (?, ?, ?)
		ON CONFLICT(date, bucket) DO UPDATE SET count = count + excluded.count`

	selectLatencyCountsSQL = `SELECT bucket, SUM(count) FROM query_latency_stats
		WHERE date BETWEEN ? AND ? GROUP BY bucket`
)

// SQLiteMetricsStore implements QueryMetricsStore on top of the index
// database. It does not own the connection; Close leaves it open.
type SQLiteMetricsStore struct {
	db *sql.DB
}

// NewSQLiteMetricsStore creates a metrics store over an existing
// connection and ensures the telemetry tables exist.
func NewSQLiteMetricsStore(db *sql.DB) (*SQLiteMetricsStore, error) {
	if db == nil {
		return nil, fmt.Errorf("nil database handle")
	}
	if err := InitSchema(db); err != nil {
		return nil, err
	}
	return &SQLiteMetricsStore{db: db}, nil
}

// InitSchema creates the telemetry tables if they don't exist. Safe to
// call repeatedly.
func InitSchema(db *sql.DB) error {
	if _, err := db.Exec(telemetrySchema); err != nil {
		return fmt.Errorf("create telemetry schema: %w", err)
	}
	return nil
}

// queryList runs a query and collects one scanned value per row.
func queryList[T any](db *sql.DB, scan func(*sql.Rows) (T, error), query string, args ...any) ([]T, error) {
	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// execBatch runs one statement per arg tuple inside a single transaction.
// The additive ON CONFLICT upserts all flow through here.
func (s *SQLiteMetricsStore) execBatch(query string, args [][]any) error {
	if len(args) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin batch: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(query)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}
	defer stmt.Close()

	for _, row := range args {
		if _, err := stmt.Exec(row...); err != nil {
			return fmt.Errorf("exec batch: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}

type keyTotal struct {
	key   string
	total int64
}

func scanKeyTotal(r *sql.Rows) (keyTotal, error) {
	var kt keyTotal
	err := r.Scan(&kt.key, &kt.total)
	return kt, err
}

// sumByKey runs a two-column aggregate over a date range and keys the
// totals by the first column.
func (s *SQLiteMetricsStore) sumByKey(query, from, to string) (map[string]int64, error) {
	pairs, err := queryList(s.db, scanKeyTotal, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("aggregate query: %w", err)
	}

	totals := make(map[string]int64, len(pairs))
	for _, kt := range pairs {
		totals[kt.key] = kt.total
	}
	return totals, nil
}

// SaveSourceCounts upserts daily per-source query counts.
func (s *SQLiteMetricsStore) SaveSourceCounts(date string, counts map[string]int64) error {
	args := make([][]any, 0, len(counts))
	for source, count := range counts {
		args = append(args, []any{date, source, count})
	}
	return s.execBatch(upsertSourceCountSQL, args)
}

// GetSourceCounts retrieves per-source counts for a date range.
func (s *SQLiteMetricsStore) GetSourceCounts(from, to string) (map[string]int64, error) {
	return s.sumByKey(selectSourceCountsSQL, from, to)
}

// UpsertTermCounts folds per-term deltas into the stored frequencies.
func (s *SQLiteMetricsStore) UpsertTermCounts(terms map[string]int64) error {
	args := make([][]any, 0, len(terms))
	for term, count := range terms {
		args = append(args, []any{term, count})
	}
	return s.execBatch(upsertTermCountSQL, args)
}

// GetTopTerms returns the most frequent search terms, up to limit.
func (s *SQLiteMetricsStore) GetTopTerms(limit int) ([]TermCount, error) {
	terms, err := queryList(s.db, func(r *sql.Rows) (TermCount, error) {
		var tc TermCount
		err := r.Scan(&tc.Term, &tc.Count)
		return tc, err
	}, selectTopTermsSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("query top terms: %w", err)
	}
	return terms, nil
}

// AddZeroResultQuery records one zero-result query, keeping only the
// most recent 100 entries.
func (s *SQLiteMetricsStore) AddZeroResultQuery(query string, timestamp time.Time) error {
	if _, err := s.db.Exec(insertZeroResultSQL, query, timestamp); err != nil {
		return fmt.Errorf("insert zero-result query: %w", err)
	}
	if _, err := s.db.Exec(trimZeroResultsSQL); err != nil {
		return fmt.Errorf("trim zero-result queries: %w", err)
	}
	return nil
}

// GetZeroResultQueries retrieves recent zero-result queries, most
// recent first.
func (s *SQLiteMetricsStore) GetZeroResultQueries(limit int) ([]string, error) {
	queries, err := queryList(s.db, func(r *sql.Rows) (string, error) {
		var q string
		err := r.Scan(&q)
		return q, err
	}, selectZeroResultsSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("query zero-result queries: %w", err)
	}
	return queries, nil
}

// SaveLatencyCounts merges the day's latency histogram into the store.
func (s *SQLiteMetricsStore) SaveLatencyCounts(date string, counts map[LatencyBucket]int64) error {
	args := make([][]any, 0, len(counts))
	for bucket, count := range counts {
		args = append(args, []any{date, string(bucket), count})
	}
	return s.execBatch(upsertLatencyCountSQL, args)
}

// GetLatencyCounts retrieves the latency distribution for a date range.
func (s *SQLiteMetricsStore) GetLatencyCounts(from, to string) (map[LatencyBucket]int64, error) {
	raw, err := s.sumByKey(selectLatencyCountsSQL, from, to)
	if err != nil {
		return nil, err
	}

	counts := make(map[LatencyBucket]int64, len(raw))
	for bucket, count := range raw {
		counts[LatencyBucket(bucket)] = count
	}
	return counts, nil
}

// Close releases resources. The shared database connection stays open.
func (s *SQLiteMetricsStore) Close() error {
	return nil
}
