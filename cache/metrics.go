package cache

import "sync/atomic"

// EvictReason explains why an entry left the cache, mirroring the
// teacher's EvictReason (there: EvictPolicy/EvictTTL/EvictCapacity).
type EvictReason int

const (
	// EvictRank — removed by trim() because it ranked among the oldest
	// age-shield candidates and lost the ranker comparison.
	EvictRank EvictReason = iota
	// EvictStale — removed because its weak key no longer upgraded
	// (the key became unreachable and was reclaimed).
	EvictStale
	// EvictTrimBy — removed by an explicit TrimValues/TrimOutcomes/TrimStats call.
	EvictTrimBy
	// EvictClear — removed by Clear().
	EvictClear
)

// Metrics exposes cache-level observability hooks. A NoopMetrics
// implementation is used by default; plug in metrics/prom.Adapter (or
// any other Metrics implementation) to export real counters.
type Metrics interface {
	Hit()
	Miss()
	Evict(reason EvictReason)
	Size(entries int)
}

// NoopMetrics is a drop-in Metrics implementation that does nothing.
// Safe for concurrent use; it is the default when no Metrics is
// configured via WithMetrics.
type NoopMetrics struct{}

func (NoopMetrics) Hit()              {}
func (NoopMetrics) Miss()             {}
func (NoopMetrics) Evict(EvictReason) {}
func (NoopMetrics) Size(entries int)  {}

var _ Metrics = NoopMetrics{}

// aggStats tracks cache-wide hit/miss/eviction totals independently of
// whatever Metrics implementation the caller configured, so Cache.Stats
// always has something to report even with the default NoopMetrics.
type aggStats struct {
	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

func (s *aggStats) hit()   { s.hits.Add(1) }
func (s *aggStats) miss()  { s.misses.Add(1) }
func (s *aggStats) evict() { s.evictions.Add(1) }

func (s *aggStats) snapshot() Snapshot {
	return Snapshot{
		Hits:      s.hits.Load(),
		Misses:    s.misses.Load(),
		Evictions: s.evictions.Load(),
	}
}

// Snapshot is a point-in-time copy of a Cache's aggregate counters,
// distinct from the per-entry Stats tracked on each cached result.
type Snapshot struct {
	Hits      int64
	Misses    int64
	Evictions int64
}

// HitRate returns hits/(hits+misses), or 0 if there have been no
// GetOrAdd calls yet.
func (s Snapshot) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}
