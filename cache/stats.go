package cache

import (
	"time"

	"github.com/IvanBrykalov/rankcache/internal/util"
)

// Stats holds the per-entry counters and timestamps a Ranker reads to
// decide eviction order. Counters are atomic (padded to a cache line,
// the same discipline the teacher repo applies to its per-shard
// hit/miss/evict counters) rather than mutex-protected: readers never
// observe a torn field, which is all the source contract requires.
type Stats struct {
	hitCount   util.PaddedAtomicInt64
	durationNs util.PaddedAtomicInt64 // total wall time saved across all hits, nanoseconds
	lastAccess util.PaddedAtomicInt64 // UnixNano

	// Immutable after entry construction: written once, before the
	// entry is published into the EntrySet, so no synchronization is
	// needed to read them afterward.
	creation       time.Time
	invokeDuration time.Duration
}

// HitCount returns the number of GetOrAdd calls that have returned
// this entry, whether or not the call invoked the compute function
// (the producing call itself counts as the first hit, per the source's
// I5 invariant).
func (s *Stats) HitCount() int64 { return s.hitCount.Load() }

// TotalDuration returns the accumulated lookup time recorded across
// every hit against this entry.
func (s *Stats) TotalDuration() time.Duration { return time.Duration(s.durationNs.Load()) }

// LastAccessTime returns the timestamp of the most recent hit (or the
// creation time, for an entry that has never been hit again).
func (s *Stats) LastAccessTime() time.Time {
	return time.Unix(0, s.lastAccess.Load())
}

// CreationTime returns when the entry was produced.
func (s *Stats) CreationTime() time.Time { return s.creation }

// InvokeDuration returns how long the single compute call that
// produced this entry took.
func (s *Stats) InvokeDuration() time.Duration { return s.invokeDuration }

// recordHit applies the per-hit update contract from the source: bump
// hitCount, accumulate lookupDuration, and advance lastAccess to
// accessTime. Safe for concurrent use by many goroutines hitting the
// same entry; fields never tear, though two concurrent hits may be
// reordered relative to each other (approximate ordering, as the
// source explicitly allows).
func (s *Stats) recordHit(lookupDuration time.Duration, accessTime time.Time) {
	s.hitCount.Add(1)
	s.durationNs.Add(int64(lookupDuration))
	s.lastAccess.Store(accessTime.UnixNano())
}

// initStats fills in the stats for a freshly-produced entry in place.
// Stats embeds atomic.Int64 fields (via util.PaddedAtomicInt64), which
// must never be copied after first use, so this takes a pointer into
// the entry being built rather than constructing and returning a Stats
// by value — the teacher applies the same discipline to its own
// per-shard padded atomics, only ever addressing them through a
// pointer.
//
// hitCount starts at zero: the GetOrAdd call that triggered production
// still runs its own recordHit after produce returns (the source's
// step 4-5 apply unconditionally to both the hit and miss paths),
// which is what brings hitCount to 1 and satisfies I5 ("hit_count ≥ 1
// after insertion — the producing call counts").
func initStats(s *Stats, now time.Time, invokeDuration time.Duration) {
	s.creation = now
	s.lastAccess.Store(now.UnixNano())
	s.invokeDuration = invokeDuration
}
