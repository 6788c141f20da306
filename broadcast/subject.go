// Package broadcast implements the cache's C6 component: a fan-out
// publish/subscribe channel, independent of any particular Cache, that
// lets callers observe values produced elsewhere (for example, wiring
// a Cache's WithOnEvict callback to a Subject so other parts of a
// program can react to evictions as they happen).
package broadcast

import (
	"sync"
	"sync/atomic"
)

// Sink receives the three notification kinds a Subject can deliver: a
// value, a terminal error, or a terminal completion. Once OnError or
// OnCompleted has been delivered to a Sink, its Subscription is
// retired and receives nothing further — same as an explicit Dispose.
type Sink[V any] interface {
	OnNext(v V)
	OnError(err error)
	OnCompleted()
}

type funcSink[V any] struct {
	onNext func(V)
}

func (f funcSink[V]) OnNext(v V)    { f.onNext(v) }
func (f funcSink[V]) OnError(error) {}
func (f funcSink[V]) OnCompleted()  {}

// OnNext adapts a plain callback into a Sink whose OnError and
// OnCompleted are no-ops, for callers who only care about values.
func OnNext[V any](fn func(V)) Sink[V] {
	return funcSink[V]{onNext: fn}
}

// Subject is a fan-out channel: every notification given to its
// Producer is delivered to every live Subscription, walked in
// registration order. Subject is safe for concurrent use.
//
// Dispatch never holds Subject's lock while calling a sink: the
// subscriber slice is copied under a read lock and walked afterward,
// mirroring the discipline internal/weakmap uses to keep its own lock
// from being held across caller-supplied code.
type Subject[V any] struct {
	mu       sync.RWMutex
	subs     []*Subscription[V]
	disposed bool
	producer Producer[V]
}

// New constructs an empty Subject.
func New[V any]() *Subject[V] {
	s := &Subject[V]{}
	s.producer.subject = s
	return s
}

// Producer returns the subject's write-side handle. The returned
// pointer is stable across calls — the same *Producer[V] every time —
// so callers can compare producer identity (e.g. to confirm two
// handles publish to the same subject) without the Subject itself
// needing to expose its dispatch methods directly.
func (s *Subject[V]) Producer() *Producer[V] {
	return &s.producer
}

// Subscribe registers sink to receive every notification published
// from this point on, in the order it was registered relative to other
// live subscribers. sink must not be nil. The returned Subscription can
// be disposed independently of the Subject it came from.
func (s *Subject[V]) Subscribe(sink Sink[V]) (*Subscription[V], error) {
	if sink == nil {
		return nil, ErrInvalidArgument
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return nil, ErrDisposed
	}

	sub := &Subscription[V]{subject: s, sink: sink}
	s.subs = append(s.subs, sub)
	return sub, nil
}

// Dispose retires the subject: every current and future Subscription
// is disposed, and OnNext/OnError/OnCompleted/Subscribe start returning
// ErrDisposed. Idempotent — disposing an already-disposed subject is a
// no-op.
func (s *Subject[V]) Dispose() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return nil
	}
	s.disposed = true
	for _, sub := range s.subs {
		sub.disposed.Store(true)
	}
	s.subs = nil
	return nil
}

// dispatch snapshots the current subscriber set, in registration order,
// under a read lock, then applies deliver to each subscriber with the
// lock released.
func (s *Subject[V]) dispatch(deliver func(*Subscription[V])) error {
	s.mu.RLock()
	if s.disposed {
		s.mu.RUnlock()
		return ErrDisposed
	}
	snapshot := make([]*Subscription[V], len(s.subs))
	copy(snapshot, s.subs)
	s.mu.RUnlock()

	for _, sub := range snapshot {
		deliver(sub)
	}
	return nil
}

// remove drops sub from the subscriber slice, preserving the
// registration order of everything that remains.
func (s *Subject[V]) remove(sub *Subscription[V]) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, cur := range s.subs {
		if cur == sub {
			s.subs = append(s.subs[:i], s.subs[i+1:]...)
			return
		}
	}
}

// Producer is a Subject's write-side handle, obtained via Subject.Producer.
type Producer[V any] struct {
	subject *Subject[V]
}

// OnNext delivers v to every subscription currently live on the owning
// subject, in registration order.
func (p *Producer[V]) OnNext(v V) error {
	return p.subject.dispatch(func(sub *Subscription[V]) { sub.deliverNext(v) })
}

// OnError delivers a terminal error to every subscription currently
// live on the owning subject. Each delivered-to subscription is
// retired afterward, same as an explicit Dispose.
func (p *Producer[V]) OnError(err error) error {
	return p.subject.dispatch(func(sub *Subscription[V]) {
		sub.deliverTerminal(func() { sub.sink.OnError(err) })
	})
}

// OnCompleted delivers a terminal completion to every subscription
// currently live on the owning subject. Each delivered-to subscription
// is retired afterward, same as an explicit Dispose.
func (p *Producer[V]) OnCompleted() error {
	return p.subject.dispatch(func(sub *Subscription[V]) {
		sub.deliverTerminal(func() { sub.sink.OnCompleted() })
	})
}

// Subscription is a live registration on a Subject, returned by
// Subscribe. Safe for concurrent use; Dispose may be called from any
// goroutine, including from within the subscription's own sink.
type Subscription[V any] struct {
	subject  *Subject[V]
	sink     Sink[V]
	disposed atomic.Bool
}

func (sub *Subscription[V]) deliverNext(v V) {
	if sub.disposed.Load() {
		return
	}
	sub.sink.OnNext(v)
}

// deliverTerminal retires the subscription and invokes notify, but only
// if the subscription was still live: if an explicit Dispose or an
// earlier terminal retired it first (including a Dispose racing this
// call), notify is not invoked. notify therefore runs at most once per
// subscription.
func (sub *Subscription[V]) deliverTerminal(notify func()) {
	if !sub.disposed.CompareAndSwap(false, true) {
		return
	}
	notify()
	sub.subject.remove(sub)
}

// Dispose unregisters the subscription so it no longer receives
// published values. Idempotent: disposing an already-disposed (or
// already subject-disposed, or already terminated) subscription is a
// no-op that returns nil.
func (sub *Subscription[V]) Dispose() error {
	if !sub.disposed.CompareAndSwap(false, true) {
		return nil
	}
	sub.subject.remove(sub)
	return nil
}
