package fetchcache

import (
	"context"
	"sync"
)

// Pending is the shared handle of one in-flight fetch. Every reader that
// finds the key loading receives the same handle.
type Pending struct {
	key  string
	done chan struct{}
	once sync.Once

	value any
	meta  Meta
	err   error
}

func newPending(key string) *Pending {
	return &Pending{key: key, done: make(chan struct{})}
}

// Key is the cache key the fetch belongs to.
func (p *Pending) Key() string { return p.key }

// Done is closed once the fetch settled.
func (p *Pending) Done() <-chan struct{} { return p.done }

// Wait blocks until the fetch settles or ctx is done. Canceling ctx only stops
// waiting; the fetch itself keeps running.
func (p *Pending) Wait(ctx context.Context) (any, error) {
	select {
	case <-p.done:
		return p.value, p.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Settled reports whether the fetch finished.
func (p *Pending) Settled() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// Result returns the outcome of a settled fetch; zero values before that.
func (p *Pending) Result() (any, Meta, error) {
	if !p.Settled() {
		return nil, Meta{}, nil
	}
	return p.value, p.meta, p.err
}

func (p *Pending) settle(value any, meta Meta, err error) {
	p.once.Do(func() {
		p.value, p.meta, p.err = value, meta, err
		close(p.done)
	})
}
