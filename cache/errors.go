package cache

import "errors"

var (
	// ErrInvalidArgument is returned by NewFactory/New for a nil
	// compute function, a non-positive maxCapacity, or an ageThreshold
	// outside [0, 1].
	ErrInvalidArgument = errors.New("rankcache: invalid argument")

	// ErrDisposed is returned by any cache operation invoked after a
	// successful Dispose.
	ErrDisposed = errors.New("rankcache: cache is disposed")

	// ErrLockContention is returned by Dispose when the cache's mutex
	// is currently held (a trim, an entry registration, or a Count,
	// Clear or Trim* call is in progress). The caller may retry;
	// Dispose never blocks waiting for the lock.
	ErrLockContention = errors.New("rankcache: cache is in use, retry dispose")

	// ErrNotCachingErrors is returned by TrimOutcomes when the cache
	// was constructed without WithCacheError(true), so no Error
	// outcomes are ever stored to trim.
	ErrNotCachingErrors = errors.New("rankcache: cache does not cache errors")
)
