package fetchcache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/unkn0wn-root/fetchcache/fetcher"
	gen "github.com/unkn0wn-root/fetchcache/genstore"
	pr "github.com/unkn0wn-root/fetchcache/provider"
)

const preloadConcurrency = 8

// Options tune the cache. The zero value is usable: an HTTP fetcher, a 30s
// sweep delay and in-process generations.
//
// GenStore is consulted under the store lock and must answer without I/O.
type Options struct {
	Fetcher      fetcher.Fetcher // nil => fetcher.NewHTTP()
	Logger       Logger          // nil => NopLogger
	Hooks        Hooks           // nil => NopHooks
	SweepDelay   time.Duration   // quiet period after the last settle; 0 => 30s
	FetchTimeout time.Duration   // per fetch; 0 => none
	GenStore     gen.GenStore    // nil => LocalGenStore
	GenRetention time.Duration   // local generations idle longer are pruned; 0 => 24h

	// Responses enables ETag revalidation on the HTTP fetcher: stored
	// validators and bodies live here (see provider/bigcache, provider/ristretto,
	// provider/redis). It needs the HTTP fetcher and is closed by Cache.Close.
	Responses   pr.Provider
	ResponseTTL time.Duration // 0 => provider default
}

// Cache is the consumer façade: it derives keys, attaches consumers and maps
// read outcomes onto blocking or non-blocking calls.
type Cache struct {
	store *Store
	coord *Coordinator
	sched *Scheduler
	log   Logger

	responses pr.Provider

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

func New(opts Options) (*Cache, error) {
	if opts.SweepDelay < 0 {
		return nil, fmt.Errorf("fetchcache: negative sweep delay: %v", opts.SweepDelay)
	}
	if opts.FetchTimeout < 0 {
		return nil, fmt.Errorf("fetchcache: negative fetch timeout: %v", opts.FetchTimeout)
	}
	if opts.GenRetention < 0 {
		return nil, fmt.Errorf("fetchcache: negative generation retention: %v", opts.GenRetention)
	}
	if opts.ResponseTTL < 0 {
		return nil, fmt.Errorf("fetchcache: negative response ttl: %v", opts.ResponseTTL)
	}

	log := coalesce[Logger](opts.Logger, NopLogger{})
	hooks := coalesce[Hooks](opts.Hooks, NopHooks{})

	gens := opts.GenStore
	if gens == nil {
		retention := coalesce(opts.GenRetention, defaultGenRetention)
		gens = gen.NewLocalGenStore(defaultGenCleanup, retention)
	}
	var f fetcher.Fetcher = fetcher.NewHTTP()
	if opts.Fetcher != nil {
		f = opts.Fetcher
	}
	if opts.Responses != nil {
		h, ok := f.(*fetcher.HTTP)
		if !ok {
			return nil, fmt.Errorf("fetchcache: response store needs the HTTP fetcher, have %T", f)
		}
		h.Responses, h.ResponseTTL = opts.Responses, opts.ResponseTTL
	}

	store := NewStore(gens)
	store.log, store.hooks = log, hooks

	sched := NewScheduler(opts.SweepDelay, store.Sweep)
	sched.log = log

	coord := NewCoordinator(store, f, sched)
	coord.log, coord.hooks = log, hooks
	coord.timeout = opts.FetchTimeout

	return &Cache{store: store, coord: coord, sched: sched, log: log, responses: opts.Responses}, nil
}

func nop() {}

// Read reports the current outcome for q without attaching a consumer and
// without blocking. It starts or joins a fetch as needed. A query without URL
// is Ready with a nil value, whatever its Key.
func (c *Cache) Read(q Query) Result {
	if c.closed.Load() {
		return Result{Outcome: OutcomeFailed, Err: ErrClosed}
	}
	if q.Request.URL == "" {
		return Result{Outcome: OutcomeReady}
	}
	return c.coord.Read(q.CacheKey(), q)
}

// Observe reads q and attaches one consumer to its entry. The returned
// release detaches it; it is idempotent. A query without target is Ready
// with a nil value and attaches nothing.
func (c *Cache) Observe(q Query) (Result, func()) {
	res := c.Read(q)
	if q.Request.URL == "" || c.closed.Load() {
		return res, nop
	}
	key := q.CacheKey()
	if err := c.coord.MarkUsed(key); err != nil {
		// entry already gone again; nothing to hold
		return res, nop
	}
	var once sync.Once
	return res, func() {
		once.Do(func() {
			if err := c.coord.MarkUnused(key); err != nil && !errors.Is(err, ErrNotFound) {
				c.log.Warn("release failed", Fields{"key": key, "err": err})
			}
		})
	}
}

// Use blocks until q is ready and returns its value with the release of the
// consumer it attached. A stale kept value is returned immediately while it
// refreshes. On error nothing stays attached.
func (c *Cache) Use(ctx context.Context, q Query) (any, func(), error) {
	res, release := c.Observe(q)
	for res.Outcome == OutcomePending {
		if _, err := res.Pending.Wait(ctx); err != nil && ctx.Err() != nil {
			release()
			return nil, nop, ctx.Err()
		}
		res = c.Read(q)
	}
	if res.Outcome == OutcomeFailed {
		release()
		return nil, nop, res.Err
	}
	return res.Value, release, nil
}

// Fetch is the on-demand form: it runs a fresh fetch for q (joining one in
// flight) outside consumer tracking and waits for it.
func (c *Cache) Fetch(ctx context.Context, q Query) (any, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}
	if q.Request.URL == "" {
		return nil, ErrNoTarget
	}
	return c.coord.Refresh(q.CacheKey(), q).Wait(ctx)
}

// Preload fetches all queries concurrently and waits for them.
func (c *Cache) Preload(ctx context.Context, qs ...Query) error {
	var (
		mu   sync.Mutex
		errs map[string]error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(preloadConcurrency)
	for _, q := range qs {
		q := q // per-iteration copy; go directive is 1.21 (pre-1.22 loopvar semantics)
		g.Go(func() error {
			if _, err := c.Fetch(gctx, q); err != nil {
				mu.Lock()
				if errs == nil {
					errs = make(map[string]error)
				}
				errs[q.CacheKey()] = err
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	if len(errs) > 0 {
		return &PreloadError{Errs: errs}
	}
	return nil
}

// Meta returns the response metadata of a settled successful key.
func (c *Cache) Meta(key string) (Meta, bool) {
	s, ok := c.store.Peek(key)
	if !ok || s.Status != StatusSuccess {
		return Meta{}, false
	}
	return s.Meta, true
}

// Peek returns a copy of the entry for key without side effects.
func (c *Cache) Peek(key string) (Snapshot, bool) { return c.store.Peek(key) }

// Keys returns all cached keys, sorted.
func (c *Cache) Keys() []string { return c.store.Keys() }

// Len is the number of entries.
func (c *Cache) Len() int { return c.store.Len() }

// Subscribe calls fn with the key of every state change.
func (c *Cache) Subscribe(fn func(key string)) (cancel func()) { return c.store.Subscribe(fn) }

// Invalidate drops key, kept or not. A fetch in flight for it still settles
// its waiters but is not stored.
func (c *Cache) Invalidate(key string) bool { return c.store.Invalidate(key) }

// Sweep runs the cleanup pass now.
func (c *Cache) Sweep() int { return c.store.Sweep() }

// Close stops the scheduler, cancels in-flight fetches and releases the
// generation store. Safe to call multiple times.
func (c *Cache) Close(ctx context.Context) error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		c.sched.Stop()
		err := c.coord.Close(ctx)
		errs := []error{err, c.store.Close(ctx)}
		if c.responses != nil {
			errs = append(errs, c.responses.Close(ctx))
		}
		c.closeErr = errors.Join(errs...)
	})
	return c.closeErr
}
