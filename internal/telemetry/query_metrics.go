// Package telemetry collects local search query metrics: counts per
// source filter, top query terms, zero-result queries, and a latency
// histogram. Everything stays on the machine; aggregates are flushed
// into tables inside the index database and surfaced by the status
// command.
package telemetry

import (
	"cmp"
	"crypto/sha256"
	"encoding/hex"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// SourceAll is the source label recorded for unfiltered queries.
const SourceAll = "all"

// =============================================================================
// Latency histogram
// =============================================================================

// LatencyBucket is one bin of the query latency histogram.
type LatencyBucket string

const (
	BucketP10   LatencyBucket = "p10"   // under 10ms
	BucketP50   LatencyBucket = "p50"   // 10 to 50ms
	BucketP100  LatencyBucket = "p100"  // 50 to 100ms
	BucketP500  LatencyBucket = "p500"  // 100 to 500ms
	BucketP1000 LatencyBucket = "p1000" // 500ms and up
)

// latencyThresholds holds bucket upper bounds in ascending order.
var latencyThresholds = []struct {
	below  time.Duration
	bucket LatencyBucket
}{
	{10 * time.Millisecond, BucketP10},
	{50 * time.Millisecond, BucketP50},
	{100 * time.Millisecond, BucketP100},
	{500 * time.Millisecond, BucketP500},
}

// LatencyToBucket maps a query duration onto its histogram bin.
func LatencyToBucket(d time.Duration) LatencyBucket {
	for _, t := range latencyThresholds {
		if d < t.below {
			return t.bucket
		}
	}
	return BucketP1000
}

// =============================================================================
// Query events
// =============================================================================

// QueryEvent is one executed search, as seen by the read path.
type QueryEvent struct {
	Query       string
	Source      string // source filter, or empty for all sources
	ResultCount int
	Latency     time.Duration
	Timestamp   time.Time
}

// IsZeroResult reports whether the search came back empty.
func (e QueryEvent) IsZeroResult() bool {
	return e.ResultCount == 0
}

// =============================================================================
// Ring buffer
// =============================================================================

// CircularBuffer is a fixed-capacity FIFO buffer. The backing slice
// grows up to the limit, then wraps, overwriting the oldest entry.
type CircularBuffer[T any] struct {
	mu    sync.RWMutex
	limit int
	next  int // overwrite position once full
	items []T
}

// NewCircularBuffer creates a buffer with the given capacity.
func NewCircularBuffer[T any](capacity int) *CircularBuffer[T] {
	if capacity <= 0 {
		capacity = 100
	}
	return &CircularBuffer[T]{limit: capacity}
}

// Add appends an item, evicting the oldest when full.
func (b *CircularBuffer[T]) Add(item T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.items) < b.limit {
		b.items = append(b.items, item)
		return
	}
	b.items[b.next] = item
	b.next = (b.next + 1) % b.limit
}

// Items returns the buffer contents in FIFO order (oldest first).
func (b *CircularBuffer[T]) Items() []T {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]T, 0, len(b.items))
	out = append(out, b.items[b.next:]...)
	return append(out, b.items[:b.next]...)
}

// Size returns the current number of items.
func (b *CircularBuffer[T]) Size() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.items)
}

// Clear removes all items.
func (b *CircularBuffer[T]) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.items = b.items[:0]
	b.next = 0
}

// =============================================================================
// Term tracking
// =============================================================================

// Words shorter than this are too generic to track.
const minTermLength = 3

// ExtractTerms splits a query into trackable terms: lowercased,
// whitespace-delimited, minimum length 3. Returns nil when nothing
// qualifies.
func ExtractTerms(query string) []string {
	var terms []string
	for _, w := range strings.Fields(strings.ToLower(query)) {
		if len(w) >= minTermLength {
			terms = append(terms, w)
		}
	}
	return terms
}

// TermCount is a term and its frequency.
type TermCount struct {
	Term  string `json:"term"`
	Count int64  `json:"count"`
}

// =============================================================================
// Snapshot
// =============================================================================

// QueryMetricsSnapshot is an immutable view of collected metrics.
type QueryMetricsSnapshot struct {
	QueriesBySource     map[string]int64        `json:"queries_by_source"`
	TopTerms            []TermCount             `json:"top_terms"`
	ZeroResultQueries   []string                `json:"zero_result_queries"`
	LatencyDistribution map[LatencyBucket]int64 `json:"latency_distribution"`
	TotalQueries        int64                   `json:"total_queries"`
	ZeroResultCount     int64                   `json:"zero_result_count"`
	Since               time.Time               `json:"since"`

	// Repetition: how often users re-run the same query verbatim.
	ExactRepeatCount int64   `json:"exact_repeat_count"`
	ExactRepeatRate  float64 `json:"exact_repeat_rate"`
	UniqueQueryCount int64   `json:"unique_query_count"`
}

// ZeroResultPercentage returns the share of queries with no results,
// on a 0-100 scale.
func (s *QueryMetricsSnapshot) ZeroResultPercentage() float64 {
	if s.TotalQueries == 0 {
		return 0
	}
	return float64(s.ZeroResultCount) / float64(s.TotalQueries) * 100
}

// =============================================================================
// Persistence Interface
// =============================================================================

// QueryMetricsStore persists flushed aggregates.
type QueryMetricsStore interface {
	// SaveSourceCounts upserts daily per-source query counts.
	SaveSourceCounts(date string, counts map[string]int64) error

	// GetSourceCounts retrieves per-source counts for a date range.
	GetSourceCounts(from, to string) (map[string]int64, error)

	// UpsertTermCounts adds to the stored term frequencies.
	UpsertTermCounts(terms map[string]int64) error

	// GetTopTerms returns the most frequent terms, highest first.
	GetTopTerms(limit int) ([]TermCount, error)

	// AddZeroResultQuery records one zero-result query.
	AddZeroResultQuery(query string, timestamp time.Time) error

	// GetZeroResultQueries returns recent zero-result queries.
	GetZeroResultQueries(limit int) ([]string, error)

	// SaveLatencyCounts upserts one day of latency histogram counts.
	SaveLatencyCounts(date string, counts map[LatencyBucket]int64) error

	// GetLatencyCounts retrieves the latency distribution for a date range.
	GetLatencyCounts(from, to string) (map[LatencyBucket]int64, error)

	// Close releases any held resources.
	Close() error
}

// =============================================================================
// Collector
// =============================================================================

// QueryMetricsConfig configures the collector.
type QueryMetricsConfig struct {
	TopTermsCapacity      int           // max terms tracked (default 100)
	ZeroResultsCapacity   int           // max zero-result queries kept (default 100)
	RecentQueriesCapacity int           // max query hashes kept for repeat detection (default 500)
	FlushInterval         time.Duration // auto-flush period (default 60s, 0 disables)
}

// DefaultQueryMetricsConfig returns the default collector configuration.
func DefaultQueryMetricsConfig() QueryMetricsConfig {
	return QueryMetricsConfig{
		TopTermsCapacity:      100,
		ZeroResultsCapacity:   100,
		RecentQueriesCapacity: 500,
		FlushInterval:         60 * time.Second,
	}
}

// withDefaults fills unset or invalid capacities. FlushInterval is left
// alone: zero and negative both mean no auto-flush.
func (cfg QueryMetricsConfig) withDefaults() QueryMetricsConfig {
	if cfg.TopTermsCapacity <= 0 {
		cfg.TopTermsCapacity = 100
	}
	if cfg.ZeroResultsCapacity <= 0 {
		cfg.ZeroResultsCapacity = 100
	}
	if cfg.RecentQueriesCapacity <= 0 {
		cfg.RecentQueriesCapacity = 500
	}
	return cfg
}

// zeroQuery is one zero-result query awaiting flush.
type zeroQuery struct {
	query string
	at    time.Time
}

// pendingDeltas holds the aggregates accumulated since the last flush.
type pendingDeltas struct {
	sources   map[string]int64
	terms     map[string]int64
	latencies map[LatencyBucket]int64
	zeros     []zeroQuery
}

func newPendingDeltas() pendingDeltas {
	return pendingDeltas{
		sources:   make(map[string]int64),
		terms:     make(map[string]int64),
		latencies: make(map[LatencyBucket]int64),
	}
}

// QueryMetrics collects query telemetry. Safe for concurrent use.
type QueryMetrics struct {
	mu sync.RWMutex

	bySource        map[string]int64
	topTerms        *lru.Cache[string, int64]
	zeroResults     *CircularBuffer[string]
	latencies       map[LatencyBucket]int64
	totalQueries    int64
	zeroResultCount int64
	startTime       time.Time

	// Exact-repeat detection over an LRU of normalized query hashes.
	recentQueries    *lru.Cache[string, struct{}]
	exactRepeatCount int64

	// The DB upserts are additive, so flushing the lifetime aggregates
	// again would double count. Only the deltas go to the store.
	pending pendingDeltas

	store       QueryMetricsStore
	flushTicker *time.Ticker
	stopCh      chan struct{}
	closed      bool
}

// NewQueryMetrics creates a collector with default configuration. A nil
// store keeps metrics in memory only.
func NewQueryMetrics(store QueryMetricsStore) *QueryMetrics {
	return NewQueryMetricsWithConfig(store, DefaultQueryMetricsConfig())
}

// NewQueryMetricsWithConfig creates a collector with custom configuration.
func NewQueryMetricsWithConfig(store QueryMetricsStore, cfg QueryMetricsConfig) *QueryMetrics {
	cfg = cfg.withDefaults()

	topTerms, _ := lru.New[string, int64](cfg.TopTermsCapacity)
	recent, _ := lru.New[string, struct{}](cfg.RecentQueriesCapacity)

	m := &QueryMetrics{
		bySource:      make(map[string]int64),
		topTerms:      topTerms,
		zeroResults:   NewCircularBuffer[string](cfg.ZeroResultsCapacity),
		latencies:     make(map[LatencyBucket]int64),
		startTime:     time.Now(),
		recentQueries: recent,
		pending:       newPendingDeltas(),
		store:         store,
		stopCh:        make(chan struct{}),
	}

	if cfg.FlushInterval > 0 && store != nil {
		m.flushTicker = time.NewTicker(cfg.FlushInterval)
		go m.flushLoop()
	}

	return m
}

func (m *QueryMetrics) flushLoop() {
	for {
		select {
		case <-m.flushTicker.C:
			_ = m.Flush()
		case <-m.stopCh:
			return
		}
	}
}

// bump increments a key in both the lifetime aggregate and the pending
// flush delta.
func bump[K comparable](lifetime, pending map[K]int64, key K) {
	lifetime[key]++
	pending[key]++
}

// Record captures one search query. Non-blocking and safe to call from
// the search hot path.
func (m *QueryMetrics) Record(event QueryEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}

	bump(m.bySource, m.pending.sources, cmp.Or(event.Source, SourceAll))
	m.totalQueries++

	for _, term := range ExtractTerms(event.Query) {
		count, _ := m.topTerms.Get(term)
		m.topTerms.Add(term, count+1)
		m.pending.terms[term]++
	}

	if event.IsZeroResult() {
		m.recordZeroResult(event)
	}

	bump(m.latencies, m.pending.latencies, LatencyToBucket(event.Latency))

	hash := hashQuery(event.Query)
	if _, seen := m.recentQueries.Get(hash); seen {
		m.exactRepeatCount++
	}
	m.recentQueries.Add(hash, struct{}{})
}

func (m *QueryMetrics) recordZeroResult(event QueryEvent) {
	m.zeroResults.Add(event.Query)
	m.zeroResultCount++

	at := event.Timestamp
	if at.IsZero() {
		at = time.Now()
	}
	m.pending.zeros = append(m.pending.zeros, zeroQuery{query: event.Query, at: at})
}

// hashQuery normalizes a query for repeat detection: case- and
// whitespace-insensitive.
func hashQuery(query string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(query))))
	return hex.EncodeToString(sum[:16])
}

// Snapshot returns the current metrics for reporting.
func (m *QueryMetrics) Snapshot() *QueryMetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var topTerms []TermCount
	for _, term := range m.topTerms.Keys() {
		if count, ok := m.topTerms.Peek(term); ok {
			topTerms = append(topTerms, TermCount{Term: term, Count: count})
		}
	}
	slices.SortFunc(topTerms, func(a, b TermCount) int {
		return cmp.Compare(b.Count, a.Count)
	})

	var repeatRate float64
	if m.totalQueries > 0 {
		repeatRate = float64(m.exactRepeatCount) / float64(m.totalQueries)
	}

	return &QueryMetricsSnapshot{
		QueriesBySource:     maps.Clone(m.bySource),
		TopTerms:            topTerms,
		ZeroResultQueries:   m.zeroResults.Items(),
		LatencyDistribution: maps.Clone(m.latencies),
		TotalQueries:        m.totalQueries,
		ZeroResultCount:     m.zeroResultCount,
		Since:               m.startTime,
		ExactRepeatCount:    m.exactRepeatCount,
		ExactRepeatRate:     repeatRate,
		UniqueQueryCount:    int64(m.recentQueries.Len()),
	}
}

// takePending swaps out the accumulated deltas under the lock.
func (m *QueryMetrics) takePending() pendingDeltas {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := m.pending
	m.pending = newPendingDeltas()
	return out
}

// Flush persists the deltas accumulated since the previous flush. Safe
// to call with no store configured. Deltas are dropped on persistence
// failure rather than re-merged; telemetry is best-effort.
func (m *QueryMetrics) Flush() error {
	if m.store == nil {
		return nil
	}

	p := m.takePending()
	today := time.Now().Format("2006-01-02")

	if len(p.sources) > 0 {
		if err := m.store.SaveSourceCounts(today, p.sources); err != nil {
			return err
		}
	}
	if err := m.store.UpsertTermCounts(p.terms); err != nil {
		return err
	}
	for _, zq := range p.zeros {
		if err := m.store.AddZeroResultQuery(zq.query, zq.at); err != nil {
			return err
		}
	}
	if len(p.latencies) > 0 {
		if err := m.store.SaveLatencyCounts(today, p.latencies); err != nil {
			return err
		}
	}
	return nil
}

// Close flushes and releases resources. Record becomes a no-op after.
func (m *QueryMetrics) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	if m.flushTicker != nil {
		m.flushTicker.Stop()
		close(m.stopCh)
	}

	return m.Flush()
}
