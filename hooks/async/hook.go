// usage:
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{
//	    DedupEvery: 100, // sample logs: ~every 100th joined fetch
//	})
//
//	hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
//	defer hooks.Close()
//
//	cache, _ := fetchcache.New(fetchcache.Options{
//	    Fetcher: fetcher.NewHTTP(),
//	    Hooks:   hooks, // or `raw` if you don't want async
//	})
package asynchook

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/unkn0wn-root/fetchcache"
)

// Hooks forwards events to inner on worker goroutines. Events that do not
// fit in the queue are dropped.
type Hooks struct {
	inner   fetchcache.Hooks
	q       chan func()
	wg      sync.WaitGroup
	once    sync.Once
	mu      sync.RWMutex
	closed  bool
	dropped atomic.Uint64
}

var _ fetchcache.Hooks = (*Hooks)(nil)

func New(inner fetchcache.Hooks, workers, qlen int) *Hooks {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

// Close drains the queue and stops the workers. Events after Close are dropped.
func (h *Hooks) Close() {
	h.once.Do(func() {
		h.mu.Lock()
		h.closed = true
		close(h.q)
		h.mu.Unlock()
		h.wg.Wait()
	})
}

// Dropped is the number of events lost to a full queue or a closed hook.
func (h *Hooks) Dropped() uint64 { return h.dropped.Load() }

func (h *Hooks) try(f func()) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		h.dropped.Add(1)
		return
	}
	select {
	case h.q <- f:
	default: // drop
		h.dropped.Add(1)
	}
}

func (h *Hooks) FetchStarted(k string, rv bool) { h.try(func() { h.inner.FetchStarted(k, rv) }) }
func (h *Hooks) Deduplicated(k string)          { h.try(func() { h.inner.Deduplicated(k) }) }
func (h *Hooks) Superseded(k string)            { h.try(func() { h.inner.Superseded(k) }) }
func (h *Hooks) Evicted(k, r string)            { h.try(func() { h.inner.Evicted(k, r) }) }
func (h *Hooks) Swept(n int)                    { h.try(func() { h.inner.Swept(n) }) }
func (h *Hooks) Settled(k string, s fetchcache.Status, d time.Duration) {
	h.try(func() { h.inner.Settled(k, s, d) })
}
