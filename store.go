package fetchcache

import (
	"context"
	"sort"
	"sync"

	gen "github.com/unkn0wn-root/fetchcache/genstore"
)

// Store owns every entry and is the only place entries change. Each
// operation is atomic with respect to the others; subscribers are notified
// after the mutation is visible and outside the lock.
type Store struct {
	mu      sync.Mutex
	entries map[string]*entry
	gens    gen.GenStore

	subMu  sync.RWMutex
	subs   map[uint64]func(key string)
	nextID uint64

	log   Logger
	hooks Hooks
}

// NewStore returns an empty store. A nil gens uses an in-process generation
// store without background cleanup.
// gens is called with the store lock held.
func NewStore(gens gen.GenStore) *Store {
	if gens == nil {
		gens = gen.NewLocalGenStore(0, 0)
	}
	return &Store{
		entries: make(map[string]*entry),
		gens:    gens,
		subs:    make(map[uint64]func(string)),
		log:     NopLogger{},
		hooks:   NopHooks{},
	}
}

// Subscribe registers fn to be called with the key of every mutation.
// The returned func unregisters it.
func (s *Store) Subscribe(fn func(key string)) (cancel func()) {
	s.subMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			s.subMu.Unlock()
		})
	}
}

func (s *Store) notify(key string) {
	s.subMu.RLock()
	fns := make([]func(string), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.RUnlock()
	for _, fn := range fns {
		fn(key)
	}
}

// BeginLoading creates or overwrites the entry for key as loading on p.
// The use count survives; keep and stale are cleared. It returns the
// generation the fetch must present when it completes.
func (s *Store) BeginLoading(key string, p *Pending) uint64 {
	s.mu.Lock()
	g := s.beginLoadingLocked(key, p)
	s.mu.Unlock()
	s.notify(key)
	return g
}

func (s *Store) beginLoadingLocked(key string, p *Pending) uint64 {
	g, err := s.gens.Bump(context.Background(), key)
	if err != nil {
		s.log.Warn("gen bump error", Fields{"key": key, "err": err})
	}
	uses := 0
	if e, ok := s.entries[key]; ok {
		uses = e.uses
	}
	s.entries[key] = &entry{state: loadingState{pending: p}, uses: uses}
	return g
}

// CompleteSuccess settles key with value. It reports false, leaving the store
// untouched, when g is no longer the key's generation.
func (s *Store) CompleteSuccess(key string, g uint64, value any, meta Meta, keep bool) bool {
	return s.complete(key, g, successState{value: value, meta: meta}, keep)
}

// CompleteError settles key with err. Failed entries are never kept.
func (s *Store) CompleteError(key string, g uint64, err error) bool {
	return s.complete(key, g, errorState{err: err}, false)
}

func (s *Store) complete(key string, g uint64, st state, keep bool) bool {
	s.mu.Lock()
	if !s.currentLocked(key, g) {
		s.mu.Unlock()
		s.hooks.Superseded(key)
		s.log.Debug("dropped superseded result", Fields{"key": key, "gen": g})
		return false
	}
	e, ok := s.entries[key]
	if !ok {
		// all consumers left while the fetch ran; the next sweep reclaims it
		e = &entry{}
		s.entries[key] = e
	}
	e.state = st
	e.keep = keep
	e.stale = false
	s.mu.Unlock()

	s.notify(key)
	return true
}

func (s *Store) currentLocked(key string, g uint64) bool {
	cur, err := s.gens.Snapshot(context.Background(), key)
	if err != nil {
		// cannot tell; last writer wins
		s.log.Warn("gen snapshot error", Fields{"key": key, "err": err})
		return true
	}
	return cur == g
}

func (s *Store) generationLocked(key string) uint64 {
	g, _ := s.gens.Snapshot(context.Background(), key)
	return g
}

// Use adds one consumer to key. The entry must exist.
func (s *Store) Use(key string) error {
	s.mu.Lock()
	e, ok := s.entries[key]
	if !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	e.uses++
	s.mu.Unlock()

	s.notify(key)
	return nil
}

// Unuse releases one consumer of key. Releasing the last consumer deletes a
// non-kept entry right away; a kept success entry stays and turns stale.
func (s *Store) Unuse(key string) error {
	s.mu.Lock()
	e, ok := s.entries[key]
	if !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	if e.uses < 2 && !e.keep {
		delete(s.entries, key)
		s.mu.Unlock()

		s.hooks.Evicted(key, "unused")
		s.notify(key)
		return nil
	}
	if e.uses < 2 && e.status() == StatusSuccess {
		e.stale = true
	}
	if e.uses > 0 {
		e.uses--
	}
	s.mu.Unlock()

	s.notify(key)
	return nil
}

// Sweep deletes every settled entry that has no consumer and is not kept,
// and returns how many it removed.
func (s *Store) Sweep() int {
	var removed []string
	s.mu.Lock()
	for k, e := range s.entries {
		if e.terminal() && e.uses == 0 && !e.keep {
			delete(s.entries, k)
			removed = append(removed, k)
		}
	}
	s.mu.Unlock()

	for _, k := range removed {
		s.hooks.Evicted(k, "sweep")
		s.notify(k)
	}
	s.hooks.Swept(len(removed))
	return len(removed)
}

// Invalidate removes key regardless of uses or keep and moves its generation
// so a fetch still in flight cannot bring it back.
func (s *Store) Invalidate(key string) bool {
	s.mu.Lock()
	_, ok := s.entries[key]
	delete(s.entries, key)
	if _, err := s.gens.Bump(context.Background(), key); err != nil {
		s.log.Warn("gen bump error", Fields{"key": key, "err": err})
	}
	s.mu.Unlock()

	if ok {
		s.hooks.Evicted(key, "invalidate")
		s.notify(key)
	}
	return ok
}

// acquire is the atomic read decision of the Coordinator. It returns the
// entry as it was before the call and, when a fetch has to run, the new
// pending handle and its generation. A fetch starts when the key is idle,
// when a success entry is stale, or when force is set and the key is not
// already loading.
func (s *Store) acquire(key string, force bool) (prev Snapshot, p *Pending, g uint64, started bool) {
	s.mu.Lock()
	e, ok := s.entries[key]
	if ok {
		prev = e.snapshot(key, s.generationLocked(key))
	} else {
		prev = Snapshot{Key: key, Status: StatusIdle}
	}

	switch {
	case !ok:
		started = true
	case e.status() == StatusLoading:
	case force:
		started = true
	case e.status() == StatusSuccess && e.stale:
		started = true
	}
	if !started {
		s.mu.Unlock()
		return prev, nil, 0, false
	}

	p = newPending(key)
	g = s.beginLoadingLocked(key, p)
	s.mu.Unlock()

	s.notify(key)
	return prev, p, g, true
}

// Peek returns a copy of the entry for key.
func (s *Store) Peek(key string) (Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return Snapshot{Key: key, Status: StatusIdle}, false
	}
	return e.snapshot(key, s.generationLocked(key)), true
}

// Len is the number of entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Keys returns the keys of all entries, sorted.
func (s *Store) Keys() []string {
	s.mu.Lock()
	keys := make([]string, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	s.mu.Unlock()
	sort.Strings(keys)
	return keys
}

// Close releases the generation store.
func (s *Store) Close(ctx context.Context) error {
	return s.gens.Close(ctx)
}
