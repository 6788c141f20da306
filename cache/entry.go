package cache

import "weak"

// Outcome is the sum type a compute call produces: either a value or,
// when the cache is configured with WithCacheError, a captured error.
type Outcome[V any] struct {
	value V
	err   error
	isErr bool
}

// Value reports the cached value and whether this outcome is a value
// (as opposed to a cached error).
func (o Outcome[V]) Value() (V, bool) {
	return o.value, !o.isErr
}

// Err reports the cached error and whether this outcome is an error.
func (o Outcome[V]) Err() (error, bool) {
	return o.err, o.isErr
}

// entry is the cache's unit of storage: a weakly-held key, the
// computed outcome, and the statistics a Ranker reads. entry.key is a
// weak.Pointer rather than *K itself — that is the entire mechanism by
// which the cache avoids keeping K reachable (I1).
type entry[K any, V any] struct {
	key     weak.Pointer[K]
	outcome Outcome[V]
	stats   Stats

	// seq is a monotonic insertion sequence number, assigned once by
	// the owning Cache and never reused. It is the deterministic
	// tiebreak the source requires when ranker(stats) and creation
	// time both tie (Design Notes, "candidate set").
	seq uint64
}

// upgrade resolves the entry's weak key back to a strong reference, or
// reports false if the key has already been reclaimed (a "stale"
// entry, per the GLOSSARY).
func (e *entry[K, V]) upgrade() (*K, bool) {
	k := e.key.Value()
	return k, k != nil
}
