// Package cache provides a weak-keyed, generic memoizing cache with
// ranked, age-guarded eviction and an optional broadcast side-channel
// (see the sibling broadcast package).
//
// # Overview
//
//   - Identity: entries are keyed by the reference identity of a *K,
//     held weakly via the standard weak package. The cache never keeps
//     a key reachable on its own behalf — once nothing else references
//     it, the key (and its entry) becomes eligible for reclamation.
//
//   - Memoization: GetOrAdd invokes the cache's compute function at
//     most once per live key, coalescing concurrent misses on the same
//     key through a singleflight group (internal/weakmap).
//
//   - Eviction: once the live entry count reaches maxCapacity, trim
//     ranks the oldest ageThreshold share of entries by a caller-supplied
//     Ranker[M] and evicts enough of the worst-ranked ones to fit. The
//     age shield keeps a ranker from starving entries that are merely
//     young rather than genuinely unwanted.
//
//   - Stats: every entry tracks hit count, accumulated lookup duration,
//     last access time, creation time, and the duration of the compute
//     call that produced it — the inputs a Ranker reads.
//
//   - Concurrency: a pure hit takes no cache-level lock; the cache's
//     mutex is only held around trim's scan/evict pass and the final
//     registration of a freshly-produced entry. The compute function
//     itself always runs with no cache-level lock held.
//
// # Basic usage
//
//	f, err := cache.NewFactory[User](
//		func(s *cache.Stats) int64 { return s.HitCount() }, // evict least-hit first
//		10_000, // maxCapacity
//		0.25,   // ageThreshold
//		false,  // descending
//	)
//	c, err := cache.New[User, Profile](f, func(u *User) (Profile, error) {
//		return fetchProfile(u)
//	})
//	p, err := c.GetOrAdd(user)
//
// # Caching errors
//
//	c, err := cache.New[User, Profile](f, fetchProfile,
//		cache.WithCacheError[User, Profile](true))
//
// With WithCacheError enabled, a failed compute call is cached as an
// Error outcome and replayed on subsequent GetOrAdd calls for the same
// key instead of re-invoking compute; TrimOutcomes can then be used to
// purge cached errors explicitly.
//
// # Exporting metrics
//
//	m := prom.New(nil, "rankcache", "demo", nil)
//	c, err := cache.New[User, Profile](f, fetchProfile,
//		cache.WithMetrics[User, Profile](m))
//
// See metrics/prom for a Prometheus Metrics adapter, and package
// broadcast for the companion C6 publish/subscribe component.
package cache
