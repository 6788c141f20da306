package weakmap

import (
	"errors"
	"fmt"
	"runtime"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"
)

type key struct{ name string }

// A miss invokes produce; a second GetOrAdd for the same pointer
// identity is a hit and does not invoke produce again.
func TestMap_GetOrAddMemoizesByIdentity(t *testing.T) {
	t.Parallel()

	m := New[key, string]()
	var calls int64
	produce := func(k *key) (*string, error) {
		atomic.AddInt64(&calls, 1)
		v := "v:" + k.name
		return &v, nil
	}

	k := &key{name: "a"}
	v1, err := m.GetOrAdd(k, produce)
	if err != nil {
		t.Fatalf("GetOrAdd: %v", err)
	}
	v2, err := m.GetOrAdd(k, produce)
	if err != nil {
		t.Fatalf("GetOrAdd: %v", err)
	}
	if v1 != v2 {
		t.Fatal("second GetOrAdd must return the same value pointer")
	}
	if got := atomic.LoadInt64(&calls); got != 1 {
		t.Fatalf("produce called %d times, want 1", got)
	}
}

// Two distinct pointers are distinct identities even with equal contents.
func TestMap_DistinctPointersAreDistinctKeys(t *testing.T) {
	t.Parallel()

	m := New[key, string]()
	produce := func(k *key) (*string, error) {
		v := "v:" + k.name
		return &v, nil
	}

	a, b := &key{name: "x"}, &key{name: "x"}
	va, err := m.GetOrAdd(a, produce)
	if err != nil {
		t.Fatal(err)
	}
	vb, err := m.GetOrAdd(b, produce)
	if err != nil {
		t.Fatal(err)
	}
	if va == vb {
		t.Fatal("distinct key pointers must not share a value pointer")
	}
}

// Concurrent misses on the same key identity coalesce: produce runs
// at most once.
func TestMap_ConcurrentMissesCoalesce(t *testing.T) {
	t.Parallel()

	m := New[key, string]()
	var calls int64
	produce := func(k *key) (*string, error) {
		atomic.AddInt64(&calls, 1)
		time.Sleep(5 * time.Millisecond)
		v := "v:" + k.name
		return &v, nil
	}

	k := &key{name: "shared"}
	const n = 32
	var g errgroup.Group
	for i := 0; i < n; i++ {
		g.Go(func() error {
			v, err := m.GetOrAdd(k, produce)
			if err != nil {
				return err
			}
			if *v != "v:shared" {
				return fmt.Errorf("got %q", *v)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
	if got := atomic.LoadInt64(&calls); got != 1 {
		t.Fatalf("produce called %d times, want 1", got)
	}
}

// A produce error is propagated and nothing is stored for the key.
func TestMap_ProduceError(t *testing.T) {
	t.Parallel()

	m := New[key, string]()
	wantErr := errors.New("boom")
	calls := 0
	produce := func(k *key) (*string, error) {
		calls++
		return nil, wantErr
	}

	k := &key{name: "a"}
	if _, err := m.GetOrAdd(k, produce); !errors.Is(err, wantErr) {
		t.Fatalf("GetOrAdd err = %v, want %v", err, wantErr)
	}
	if _, err := m.GetOrAdd(k, produce); !errors.Is(err, wantErr) {
		t.Fatalf("GetOrAdd err = %v, want %v", err, wantErr)
	}
	if calls != 2 {
		t.Fatalf("produce called %d times, want 2 (errors are never stored)", calls)
	}
}

// Remove erases a live mapping; a subsequent GetOrAdd misses again.
func TestMap_Remove(t *testing.T) {
	t.Parallel()

	m := New[key, string]()
	var calls int64
	produce := func(k *key) (*string, error) {
		atomic.AddInt64(&calls, 1)
		v := "v:" + k.name
		return &v, nil
	}

	k := &key{name: "a"}
	if _, err := m.GetOrAdd(k, produce); err != nil {
		t.Fatal(err)
	}
	m.Remove(k)
	if _, err := m.GetOrAdd(k, produce); err != nil {
		t.Fatal(err)
	}
	if got := atomic.LoadInt64(&calls); got != 2 {
		t.Fatalf("produce called %d times, want 2 after Remove", got)
	}
}

// Once a key becomes unreachable and is collected, a lookup for it
// must not resurrect a stale slot; an unrelated key that happens to be
// allocated at the same freed address is treated as a genuine miss.
func TestMap_StaleIdentityIsNotResurrected(t *testing.T) {
	produce := func(k *key) (*string, error) {
		v := "v:" + k.name
		return &v, nil
	}
	m := New[key, string]()

	func() {
		k := &key{name: "transient"}
		if _, err := m.GetOrAdd(k, produce); err != nil {
			t.Fatal(err)
		}
	}()

	runtime.GC()
	runtime.GC()
	time.Sleep(10 * time.Millisecond)

	// Whether or not the GC reused the old address, this must behave
	// as a correct miss-then-hit for the new, distinct key.
	var calls int64
	counted := func(k *key) (*string, error) {
		atomic.AddInt64(&calls, 1)
		return produce(k)
	}
	k2 := &key{name: "fresh"}
	v, err := m.GetOrAdd(k2, counted)
	if err != nil {
		t.Fatal(err)
	}
	if *v != "v:fresh" {
		t.Fatalf("got %q, want v:fresh", *v)
	}
	if _, err := m.GetOrAdd(k2, counted); err != nil {
		t.Fatal(err)
	}
	if got := atomic.LoadInt64(&calls); got != 1 {
		t.Fatalf("produce called %d times, want 1", got)
	}
}

// Clear empties the map; every key misses again afterward.
func TestMap_Clear(t *testing.T) {
	t.Parallel()

	m := New[key, string]()
	var calls int64
	produce := func(k *key) (*string, error) {
		atomic.AddInt64(&calls, 1)
		v := "v:" + k.name
		return &v, nil
	}

	k := &key{name: "a"}
	if _, err := m.GetOrAdd(k, produce); err != nil {
		t.Fatal(err)
	}
	m.Clear()
	if _, err := m.GetOrAdd(k, produce); err != nil {
		t.Fatal(err)
	}
	if got := atomic.LoadInt64(&calls); got != 2 {
		t.Fatalf("produce called %d times, want 2 after Clear", got)
	}
}
