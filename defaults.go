package fetchcache

import "time"

const (
	// defaultSweepDelay is the quiet period between the last settle and a sweep.
	defaultSweepDelay   = 30 * time.Second
	defaultGenRetention = 24 * time.Hour
	defaultGenCleanup   = time.Hour
)

// coalesce returns def when v is the zero value of T - otherwise v.
func coalesce[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}
