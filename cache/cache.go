package cache

import (
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"weak"

	"golang.org/x/exp/constraints"

	"github.com/IvanBrykalov/rankcache/internal/weakmap"
)

// Cache is a weak-keyed memoizing cache (C5). It wraps an
// internal/weakmap.Map for reference-identity lookup with an entrySet
// that holds the strong side of every live entry, and applies ranked,
// age-guarded eviction once the entry count reaches maxCapacity.
//
// A Cache takes no lock for a pure hit: internal/weakmap.Map guards its
// own bucket and every entry's Stats is updated with atomics. The
// cache's own mutex is only taken around trimLocked's scan/evict pass
// and the final registration of a freshly-produced entry — never
// across the caller's compute function, which runs with no cache-level
// lock held at all (see SPEC_FULL.md's "Lock realization").
type Cache[K any, V any, M constraints.Ordered] struct {
	mu       sync.Mutex
	weak     *weakmap.Map[K, entry[K, V]]
	entries  *entrySet[K, V]
	seq      atomic.Uint64
	disposed atomic.Bool
	stats    aggStats

	compute func(*K) (V, error)
	fcfg    factoryConfig[K, M]
	cfg     config[K, V]
}

// New creates a Cache from a Factory's shared ranking/capacity
// configuration and a compute function. Go methods cannot add type
// parameters beyond the receiver's, so the source's
// "factory.create_cache(compute)" is realized as a package-level
// function parameterized over V rather than a Factory method.
func New[K any, V any, M constraints.Ordered](
	f *Factory[K, M],
	compute func(*K) (V, error),
	opts ...Option[K, V],
) (*Cache[K, V, M], error) {
	if f == nil || compute == nil {
		return nil, ErrInvalidArgument
	}

	cfg := defaultConfig[K, V]()
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Cache[K, V, M]{
		weak:    weakmap.New[K, entry[K, V]](),
		entries: newEntrySet[K, V](),
		compute: compute,
		fcfg:    f.cfg,
		cfg:     cfg,
	}, nil
}

// GetOrAdd returns the memoized result for key, invoking the cache's
// compute function at most once per live key (I2). key's reference
// identity, not its contents, is what the cache keys on (I1) — the
// cache never keeps key reachable on its own behalf.
func (c *Cache[K, V, M]) GetOrAdd(key *K) (V, error) {
	var zero V
	if key == nil {
		return zero, ErrInvalidArgument
	}
	if c.disposed.Load() {
		return zero, ErrDisposed
	}

	t0 := c.fcfg.clock.Now()

	var missed bool
	e, err := c.weak.GetOrAdd(key, func(k *K) (*entry[K, V], error) {
		missed = true
		if c.cfg.onMiss != nil {
			c.cfg.onMiss(k)
		}
		return c.produce(k)
	})
	if err != nil {
		return zero, err
	}

	now := c.fcfg.clock.Now()
	e.stats.recordHit(now.Sub(t0), now)

	if missed {
		c.cfg.metrics.Miss()
		c.stats.miss()
	} else {
		c.cfg.metrics.Hit()
		c.stats.hit()
	}

	if v, ok := e.outcome.Value(); ok {
		if !missed && c.cfg.onHit != nil {
			c.cfg.onHit(key, v)
		}
		return v, nil
	}
	errv, _ := e.outcome.Err()
	return zero, errv
}

// produce takes mu to trim, runs the compute function with no
// cache-level lock held, then takes mu again only to register the
// resulting entry. It is called from inside internal/weakmap.Map's
// singleflight group, so it runs at most once per key even under
// concurrent misses.
func (c *Cache[K, V, M]) produce(k *K) (*entry[K, V], error) {
	c.mu.Lock()
	c.trimLocked()
	c.mu.Unlock()

	start := c.fcfg.clock.Now()
	v, cerr := c.compute(k)
	invokeDuration := c.fcfg.clock.Now().Sub(start)

	if cerr != nil && !c.cfg.cacheError {
		return nil, cerr
	}

	e := &entry[K, V]{
		key: weak.Make(k),
		seq: c.seq.Add(1),
	}
	initStats(&e.stats, start, invokeDuration)
	if cerr != nil {
		e.outcome = Outcome[V]{err: cerr, isErr: true}
	} else {
		e.outcome = Outcome[V]{value: v}
	}

	c.mu.Lock()
	c.entries.add(e)
	c.cfg.metrics.Size(c.entries.len())
	c.mu.Unlock()

	return e, nil
}

// trimLocked must be called with mu held. It first drops every entry
// whose weak key has already been reclaimed (EvictStale), then, if the
// surviving count has reached maxCapacity, ranks the oldest
// max(1, floor(maxCapacity × ageThreshold)) entries by the configured
// Ranker and evicts enough of them to bring the count back under the
// cap, never more than that candidate set holds (EvictRank).
//
// The age shield exists so a ranker cannot starve entries that are
// merely young: only the oldest slice of the population is ever up for
// ranked eviction, regardless of how it ranks.
func (c *Cache[K, V, M]) trimLocked() {
	all := c.entries.snapshot()
	live := make([]*entry[K, V], 0, len(all))
	for _, e := range all {
		if _, ok := e.upgrade(); ok {
			live = append(live, e)
			continue
		}
		c.removeLocked(e, EvictStale)
	}

	if len(live) < c.fcfg.maxCapacity {
		return
	}

	sort.Slice(live, func(i, j int) bool {
		return entryOlder(live[i], live[j])
	})

	candidateCount := int(math.Floor(float64(c.fcfg.maxCapacity) * c.fcfg.ageThreshold))
	if candidateCount < 1 {
		candidateCount = 1
	}
	if candidateCount > len(live) {
		candidateCount = len(live)
	}
	candidates := live[:candidateCount]

	sort.Slice(candidates, func(i, j int) bool {
		mi := c.fcfg.ranker(&candidates[i].stats)
		mj := c.fcfg.ranker(&candidates[j].stats)
		if mi != mj {
			if c.fcfg.descending {
				return mi > mj
			}
			return mi < mj
		}
		return entryOlder(candidates[i], candidates[j])
	})

	evictCount := len(live) - c.fcfg.maxCapacity + 1
	if evictCount < 1 {
		evictCount = 1
	}
	if evictCount > len(candidates) {
		evictCount = len(candidates)
	}
	for _, e := range candidates[:evictCount] {
		c.removeLocked(e, EvictRank)
	}
}

// entryOlder orders by creation time, tiebroken by the monotonic
// insertion sequence (Design Notes, "candidate set").
func entryOlder[K any, V any](a, b *entry[K, V]) bool {
	ca, cb := a.stats.CreationTime(), b.stats.CreationTime()
	if !ca.Equal(cb) {
		return ca.Before(cb)
	}
	return a.seq < b.seq
}

// removeLocked drops e from both the entrySet and the weak map, and
// reports the removal through metrics and the onEvict callback. A no-op
// if e is not currently in the entrySet, guarding against reporting the
// same eviction twice. Must be called with mu held.
func (c *Cache[K, V, M]) removeLocked(e *entry[K, V], reason EvictReason) {
	if !c.entries.contains(e) {
		return
	}
	c.entries.remove(e)
	k, ok := e.upgrade()
	if ok {
		c.weak.Remove(k)
	}
	c.cfg.metrics.Evict(reason)
	c.stats.evict()
	if c.cfg.onEvict != nil {
		c.cfg.onEvict(k, e.outcome, reason)
	}
}

// Stats returns a point-in-time snapshot of the cache's aggregate
// hit/miss/eviction counters. Available regardless of which Metrics
// implementation (if any) was configured via WithMetrics.
func (c *Cache[K, V, M]) Stats() Snapshot {
	return c.stats.snapshot()
}

// Count reports the number of live entries.
func (c *Cache[K, V, M]) Count() (int, error) {
	if c.disposed.Load() {
		return 0, ErrDisposed
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.len(), nil
}

// Clear removes every entry, reporting EvictClear for each through
// metrics and onEvict.
func (c *Cache[K, V, M]) Clear() error {
	if c.disposed.Load() {
		return ErrDisposed
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, e := range c.entries.snapshot() {
		c.cfg.metrics.Evict(EvictClear)
		c.stats.evict()
		if c.cfg.onEvict != nil {
			k, _ := e.upgrade()
			c.cfg.onEvict(k, e.outcome, EvictClear)
		}
	}
	c.entries.clear()
	c.weak.Clear()
	c.cfg.metrics.Size(0)
	return nil
}

// Dispose permanently retires the cache. It never blocks: if mu is
// held (a trim or entry registration inside GetOrAdd, or a Count,
// Clear or Trim* call), Dispose returns ErrLockContention immediately
// and the caller may retry. A GetOrAdd on its lock-free hit path or
// running the compute function does not hold mu, so Dispose does not
// detect it and succeeds while it is in flight. A disposed cache
// rejects every further operation with ErrDisposed.
func (c *Cache[K, V, M]) Dispose() error {
	if !c.mu.TryLock() {
		return ErrLockContention
	}
	defer c.mu.Unlock()

	if c.disposed.Load() {
		return ErrDisposed
	}
	c.disposed.Store(true)
	c.entries.clear()
	c.weak.Clear()
	return nil
}

// TrimValues is the Trimmable<(K, V)> view: it removes every entry
// whose outcome is a value (cached errors are left untouched) for
// which pred(key, value) holds. Any entry encountered whose weak key
// has already died is removed along the way regardless of pred, same
// as a stale sweep during trim. It returns the total number of entries
// removed, including those stale ones.
func (c *Cache[K, V, M]) TrimValues(pred func(key *K, value V) bool) (int, error) {
	if c.disposed.Load() {
		return 0, ErrDisposed
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for _, e := range c.entries.snapshot() {
		k, ok := e.upgrade()
		if !ok {
			c.removeLocked(e, EvictStale)
			n++
			continue
		}
		if v, ok := e.outcome.Value(); ok && pred(k, v) {
			c.removeLocked(e, EvictTrimBy)
			n++
		}
	}
	c.cfg.metrics.Size(c.entries.len())
	return n, nil
}

// TrimOutcomes is the Trimmable<(K, Outcome[V])> view: it removes
// every entry (value or cached error alike) for which
// pred(key, outcome) holds, plus any stale entry encountered along the
// way. It requires the cache to have been built with
// WithCacheError(true); otherwise it returns ErrNotCachingErrors
// without touching anything, since no Error outcome is ever stored.
func (c *Cache[K, V, M]) TrimOutcomes(pred func(key *K, outcome Outcome[V]) bool) (int, error) {
	if c.disposed.Load() {
		return 0, ErrDisposed
	}
	if !c.cfg.cacheError {
		return 0, ErrNotCachingErrors
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for _, e := range c.entries.snapshot() {
		k, ok := e.upgrade()
		if !ok {
			c.removeLocked(e, EvictStale)
			n++
			continue
		}
		if pred(k, e.outcome) {
			c.removeLocked(e, EvictTrimBy)
			n++
		}
	}
	c.cfg.metrics.Size(c.entries.len())
	return n, nil
}

// TrimStats is the Trimmable<EntryStats> view: a manual escape hatch
// for eviction policies the Ranker/age-shield combination doesn't
// express directly (for example, "drop anything untouched for the
// last hour" on demand rather than waiting for capacity pressure). It
// removes every entry for which pred(key, stats) holds, plus any stale
// entry encountered along the way.
func (c *Cache[K, V, M]) TrimStats(pred func(key *K, stats *Stats) bool) (int, error) {
	if c.disposed.Load() {
		return 0, ErrDisposed
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for _, e := range c.entries.snapshot() {
		k, ok := e.upgrade()
		if !ok {
			c.removeLocked(e, EvictStale)
			n++
			continue
		}
		if pred(k, &e.stats) {
			c.removeLocked(e, EvictTrimBy)
			n++
		}
	}
	c.cfg.metrics.Size(c.entries.len())
	return n, nil
}
