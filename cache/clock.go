package cache

import "time"

// Clock provides time operations for the cache.
// The default implementation uses time.Now(), whose monotonic reading
// guarantees Clock.Now().Sub(earlier) never goes backward within a
// process, even across NTP adjustments.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now()
}
