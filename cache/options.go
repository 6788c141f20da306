package cache

import "golang.org/x/exp/constraints"

// Ranker projects an entry's Stats onto a totally-ordered metric M
// used to order eviction candidates. M is constrained by
// constraints.Ordered (golang.org/x/exp/constraints), the same
// ordering constraint the retrieval pack's luxfi-cache module already
// depends on.
type Ranker[M constraints.Ordered] func(*Stats) M

// factoryConfig holds the parameters shared by every Cache a Factory
// stamps out: the ranker, capacity, age shield, sort direction, and
// clock.
type factoryConfig[K any, M constraints.Ordered] struct {
	ranker       Ranker[M]
	maxCapacity  int
	ageThreshold float64
	descending   bool
	clock        Clock
}

// FactoryOption configures a Factory.
type FactoryOption[K any, M constraints.Ordered] func(*factoryConfig[K, M])

// WithFactoryClock overrides the clock used to stamp entries and
// measure invoke/lookup durations. Useful in tests that need to
// control the age shield deterministically.
func WithFactoryClock[K any, M constraints.Ordered](c Clock) FactoryOption[K, M] {
	return func(cfg *factoryConfig[K, M]) {
		if c != nil {
			cfg.clock = c
		}
	}
}

// Factory holds the shared ranking/capacity/age-shield configuration
// used to create Cache instances for different value types V via the
// package-level New function — Go methods cannot introduce additional
// type parameters, so "factory.create_cache" from the external
// interface is realized as New(factory, ...) rather than a method.
type Factory[K any, M constraints.Ordered] struct {
	cfg factoryConfig[K, M]
}

// NewFactory validates and constructs a Factory. maxCapacity must be
// positive and ageThreshold must lie in [0, 1]; either violation
// returns ErrInvalidArgument, matching the source's InvalidArgument
// error kind.
func NewFactory[K any, M constraints.Ordered](
	ranker Ranker[M],
	maxCapacity int,
	ageThreshold float64,
	descending bool,
	opts ...FactoryOption[K, M],
) (*Factory[K, M], error) {
	if ranker == nil || maxCapacity <= 0 || ageThreshold < 0 || ageThreshold > 1 {
		return nil, ErrInvalidArgument
	}

	cfg := factoryConfig[K, M]{
		ranker:       ranker,
		maxCapacity:  maxCapacity,
		ageThreshold: ageThreshold,
		descending:   descending,
		clock:        realClock{},
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Factory[K, M]{cfg: cfg}, nil
}

// config holds the per-Cache options layered on top of a Factory's
// shared configuration.
type config[K any, V any] struct {
	cacheError bool
	metrics    Metrics
	onHit      func(*K, V)
	onMiss     func(*K)
	onEvict    func(*K, Outcome[V], EvictReason)
}

func defaultConfig[K any, V any]() config[K, V] {
	return config[K, V]{metrics: NoopMetrics{}}
}

// Option configures a Cache.
type Option[K any, V any] func(*config[K, V])

// WithCacheError enables capturing errors returned by the compute
// function into cached Error outcomes (source: cache_error). When
// disabled (the default), a compute error is returned to the caller
// but never cached — the next GetOrAdd for the same key re-invokes the
// compute function.
func WithCacheError[K any, V any](enabled bool) Option[K, V] {
	return func(c *config[K, V]) {
		c.cacheError = enabled
	}
}

// WithMetrics plugs in a Metrics sink. Nil is ignored (NoopMetrics
// stays active), matching the teacher's "nil Metrics => NoopMetrics"
// default behavior.
func WithMetrics[K any, V any](m Metrics) Option[K, V] {
	return func(c *config[K, V]) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithOnHit sets a callback invoked after a cache hit, mirroring
// bjaus-stash's OnHit option.
func WithOnHit[K any, V any](fn func(key *K, value V)) Option[K, V] {
	return func(c *config[K, V]) {
		c.onHit = fn
	}
}

// WithOnMiss sets a callback invoked before the compute function runs
// on a miss, mirroring bjaus-stash's OnMiss option.
func WithOnMiss[K any, V any](fn func(key *K)) Option[K, V] {
	return func(c *config[K, V]) {
		c.onMiss = fn
	}
}

// WithOnEvict sets a callback invoked for every entry removed from the
// cache, whether by trim's ranked eviction, a stale sweep, an explicit
// TrimValues/TrimOutcomes/TrimStats call, or Clear. It is called while
// the cache's write lock is held — keep it lightweight, exactly as the
// teacher's Options.OnEvict doc already warns.
func WithOnEvict[K any, V any](fn func(key *K, outcome Outcome[V], reason EvictReason)) Option[K, V] {
	return func(c *config[K, V]) {
		c.onEvict = fn
	}
}
