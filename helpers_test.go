package fetchcache

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/unkn0wn-root/fetchcache/fetcher"
)

// stubFetcher counts calls and, when gate is set, holds every fetch until the
// gate is closed or the fetch context ends.
type stubFetcher struct {
	calls atomic.Int32
	gate  chan struct{}
	fn    func(n int32, req fetcher.Request) (any, Meta, error)
}

func (f *stubFetcher) Fetch(ctx context.Context, req fetcher.Request) (any, Meta, error) {
	n := f.calls.Add(1)
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, Meta{}, ctx.Err()
		}
	}
	if f.fn != nil {
		return f.fn(n, req)
	}
	return fmt.Sprintf("v%d", n), Meta{Status: 200, Time: time.Now()}, nil
}

// hookRecorder keeps every event as a string.
type hookRecorder struct {
	mu     sync.Mutex
	events []string
}

func (h *hookRecorder) add(format string, args ...any) {
	h.mu.Lock()
	h.events = append(h.events, fmt.Sprintf(format, args...))
	h.mu.Unlock()
}

func (h *hookRecorder) FetchStarted(k string, rv bool) { h.add("start %s %v", k, rv) }
func (h *hookRecorder) Deduplicated(k string)          { h.add("dedup %s", k) }
func (h *hookRecorder) Superseded(k string)            { h.add("superseded %s", k) }
func (h *hookRecorder) Evicted(k, reason string)       { h.add("evict %s %s", k, reason) }
func (h *hookRecorder) Swept(n int)                    { h.add("swept %d", n) }
func (h *hookRecorder) Settled(k string, s Status, _ time.Duration) {
	h.add("settled %s %s", k, s)
}

func (h *hookRecorder) has(ev string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, e := range h.events {
		if e == ev {
			return true
		}
	}
	return false
}

func (h *hookRecorder) count(ev string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, e := range h.events {
		if e == ev {
			n++
		}
	}
	return n
}

func newTestCache(t *testing.T, f fetcher.Fetcher, mods ...func(*Options)) *Cache {
	t.Helper()
	opts := Options{Fetcher: f, SweepDelay: time.Hour}
	for _, m := range mods {
		m(&opts)
	}
	c, err := New(opts)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = c.Close(ctx)
	})
	return c
}

func waitSettled(t *testing.T, c *Cache, key string) Snapshot {
	t.Helper()
	var s Snapshot
	require.Eventually(t, func() bool {
		var ok bool
		s, ok = c.Peek(key)
		return !ok || s.Status != StatusLoading
	}, 2*time.Second, time.Millisecond)
	return s
}

func userQuery(id string) Query {
	return Query{Request: fetcher.Request{URL: "https://api.example.com/users/" + id}}
}
