package fetchcache

import "time"

// Hooks lightweight callbacks for high-signal events.
// Implementations MUST be cheap and non-blocking. They run on the goroutine
// that caused the event, after the store lock is released, so they may read
// the cache.
type Hooks interface {
	// A fetch was started for key; revalidate is true when a stale value is
	// being served meanwhile.
	FetchStarted(key string, revalidate bool)

	// A read joined an in-flight fetch instead of starting one.
	Deduplicated(key string)

	// A fetch settled. status is StatusSuccess or StatusError.
	Settled(key string, status Status, took time.Duration)

	// A settled fetch was dropped because a newer fetch or an invalidation
	// moved the key's generation.
	Superseded(key string)

	// An entry was removed.
	// reason ∈ {"unused", "sweep", "invalidate"}
	Evicted(key, reason string)

	// A sweep finished.
	Swept(removed int)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) FetchStarted(string, bool)             {}
func (NopHooks) Deduplicated(string)                   {}
func (NopHooks) Settled(string, Status, time.Duration) {}
func (NopHooks) Superseded(string)                     {}
func (NopHooks) Evicted(string, string)                {}
func (NopHooks) Swept(int)                             {}
