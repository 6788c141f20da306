// Package weakmap implements the cache's C3 component: a mapping
// keyed by the reference identity of a weakly-held *K, where
// get-or-insert invokes the producer outside the map's own lock.
//
// Reference identity is expressed natively in Go via pointer equality;
// weak retention is expressed via the standard weak package
// (weak.Pointer[K]), so this package needs no simulated weak reference
// of the kind non-GC languages require.
package weakmap

import (
	"strconv"
	"sync"
	"unsafe"
	"weak"

	"golang.org/x/sync/singleflight"

	"github.com/IvanBrykalov/rankcache/internal/util"
)

// slot pairs a weakly-held key with the strongly-held value produced
// for it. A slot whose key no longer upgrades is "stale" per the
// source's GLOSSARY.
type slot[K any, V any] struct {
	key weak.Pointer[K]
	val *V
}

// Map is the weak-keyed mapping from *K to *V. The zero value is not
// usable; construct with New.
type Map[K any, V any] struct {
	mu    sync.Mutex
	m     map[uintptr]*slot[K, V]
	group singleflight.Group
}

// New constructs an empty Map.
func New[K any, V any]() *Map[K, V] {
	return &Map[K, V]{m: make(map[uintptr]*slot[K, V])}
}

func identity[K any](key *K) uintptr {
	return uintptr(unsafe.Pointer(key))
}

// GetOrAdd returns the live entry for key, producing one via produce
// on a miss. produce is guaranteed to run with Map's internal lock
// released — the load-bearing property the source calls out, since
// produce runs the caller's f and (in the owning Cache) takes the
// cache's own write lock to register the result in its EntrySet;
// holding this map's lock across that call would invite deadlock and
// latency spikes.
//
// Concurrent GetOrAdd calls that race on the very same key identity
// are coalesced through a singleflight.Group keyed by the pointer's
// identity, so produce runs at most once per live key even when many
// goroutines miss on it simultaneously — a stronger guarantee than the
// source strictly requires, but one its own GetOrLoad path already
// relies on for the analogous thundering-herd problem.
func (m *Map[K, V]) GetOrAdd(key *K, produce func(*K) (*V, error)) (*V, error) {
	id := identity(key)

	if v, ok := m.lookup(id, key); ok {
		return v, nil
	}

	groupKey := strconv.FormatUint(util.Fnv64a(id), 16)
	v, err, _ := m.group.Do(groupKey, func() (any, error) {
		if v, ok := m.lookup(id, key); ok {
			return v, nil
		}

		val, perr := produce(key)
		if perr != nil {
			return nil, perr
		}

		m.mu.Lock()
		m.m[id] = &slot[K, V]{key: weak.Make(key), val: val}
		m.mu.Unlock()
		return val, nil
	})
	if err != nil {
		var zero *V
		return zero, err
	}
	return v.(*V), nil
}

// lookup returns the live value stored for key, opportunistically
// evicting a stale mapping (one whose weak key no longer upgrades to
// this exact pointer) found along the way.
func (m *Map[K, V]) lookup(id uintptr, key *K) (*V, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.m[id]
	if !ok {
		return nil, false
	}
	if k := s.key.Value(); k == key {
		return s.val, true
	}
	// The address was reused by an unrelated key, or the original key
	// has been collected: the mapping is stale, drop it now rather
	// than waiting for the next trim sweep.
	delete(m.m, id)
	return nil, false
}

// Remove erases the mapping for key, if any. It is a no-op if key is
// already absent or the slot at its address belongs to a different,
// newer key.
func (m *Map[K, V]) Remove(key *K) {
	id := identity(key)
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.m[id]
	if !ok {
		return
	}
	if k := s.key.Value(); k == nil || k == key {
		delete(m.m, id)
	}
}

// Clear empties the map.
func (m *Map[K, V]) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.m = make(map[uintptr]*slot[K, V])
}
