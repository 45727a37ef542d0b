package fetchcache

import (
	"context"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/unkn0wn-root/fetchcache/fetcher"
)

// Outcome of a read.
type Outcome uint8

const (
	// OutcomeReady: Value is servable now.
	OutcomeReady Outcome = iota
	// OutcomePending: wait on Pending, then read again.
	OutcomePending
	// OutcomeFailed: Err is the stored fetch error.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeReady:
		return "ready"
	case OutcomePending:
		return "pending"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result is the tri-state answer of a read.
type Result struct {
	Outcome Outcome
	Value   any
	Meta    Meta
	Pending *Pending
	Err     error
	// Revalidating is set when Value is stale and a refresh was started.
	Revalidating bool
}

// Coordinator decides, per read, whether to serve, join, fail or fetch, and
// runs fetches in the background. At most one fetch per key is in flight.
type Coordinator struct {
	store   *Store
	fetcher fetcher.Fetcher
	sched   *Scheduler
	log     Logger
	hooks   Hooks
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewCoordinator(store *Store, f fetcher.Fetcher, sched *Scheduler) *Coordinator {
	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator{
		store:   store,
		fetcher: f,
		sched:   sched,
		log:     NopLogger{},
		hooks:   NopHooks{},
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Read never blocks. An idle key starts a fetch and reports pending; a
// loading key reports the shared handle; a failed key reports its error; a
// success key reports its value and, when stale, refreshes it meanwhile.
func (c *Coordinator) Read(key string, q Query) Result {
	prev, p, g, started := c.store.acquire(key, false)
	if started {
		c.run(key, q, p, g, prev.Status == StatusSuccess)
	}

	switch prev.Status {
	case StatusIdle:
		return Result{Outcome: OutcomePending, Pending: p}
	case StatusLoading:
		c.hooks.Deduplicated(key)
		c.log.Debug("joined in-flight fetch", Fields{"key": key})
		return Result{Outcome: OutcomePending, Pending: prev.Pending}
	case StatusError:
		return Result{Outcome: OutcomeFailed, Err: prev.Err}
	default:
		return Result{
			Outcome:      OutcomeReady,
			Value:        prev.Value,
			Meta:         prev.Meta,
			Revalidating: started,
		}
	}
}

// Refresh starts a fetch for key even if a settled entry exists. A fetch
// already in flight is joined instead.
func (c *Coordinator) Refresh(key string, q Query) *Pending {
	prev, p, g, started := c.store.acquire(key, true)
	if !started {
		c.hooks.Deduplicated(key)
		return prev.Pending
	}
	c.run(key, q, p, g, false)
	return p
}

// MarkUsed attaches one consumer to key.
func (c *Coordinator) MarkUsed(key string) error { return c.store.Use(key) }

// MarkUnused detaches one consumer from key.
func (c *Coordinator) MarkUnused(key string) error { return c.store.Unuse(key) }

func (c *Coordinator) run(key string, q Query, p *Pending, g uint64, revalidate bool) {
	c.mu.RLock()
	if c.closed {
		c.mu.RUnlock()
		c.store.CompleteError(key, g, ErrClosed)
		p.settle(nil, Meta{}, ErrClosed)
		return
	}
	c.wg.Add(1)
	c.mu.RUnlock()

	c.hooks.FetchStarted(key, revalidate)
	c.log.Debug("fetch started", Fields{"key": key, "url": q.Request.URL, "gen": g, "revalidate": revalidate})

	go func() {
		defer c.wg.Done()

		ctx := c.ctx
		if c.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, c.timeout)
			defer cancel()
		}

		begin := time.Now()
		v, meta, err := c.fetcher.Fetch(ctx, q.Request)
		took := time.Since(begin)

		if err != nil {
			v, meta = nil, Meta{}
			c.store.CompleteError(key, g, err)
			c.hooks.Settled(key, StatusError, took)
			c.log.Debug("fetch failed", Fields{
				"key": key, "status": fetcher.StatusOf(err), "took": took, "err": err,
			})
		} else {
			c.store.CompleteSuccess(key, g, v, meta, q.Keep)
			c.hooks.Settled(key, StatusSuccess, took)
			c.log.Debug("fetch settled", Fields{
				"key": key, "status": meta.Status, "size": humanize.Bytes(uint64(meta.Size)), "took": took,
			})
		}

		// the store is updated first so a woken waiter reads the settled entry
		p.settle(v, meta, err)
		c.sched.Arm()
	}()
}

// Close cancels in-flight fetches and waits for them to settle.
func (c *Coordinator) Close(ctx context.Context) error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.cancel()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
