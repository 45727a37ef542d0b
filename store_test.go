package fetchcache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreLoadingToSuccess(t *testing.T) {
	s := NewStore(nil)
	p := newPending("u1")

	g := s.BeginLoading("u1", p)
	snap, ok := s.Peek("u1")
	require.True(t, ok)
	assert.Equal(t, StatusLoading, snap.Status)
	assert.Same(t, p, snap.Pending)
	assert.Equal(t, g, snap.Generation)

	require.True(t, s.CompleteSuccess("u1", g, "Alice", Meta{Status: 200}, false))
	snap, _ = s.Peek("u1")
	assert.Equal(t, StatusSuccess, snap.Status)
	assert.Equal(t, "Alice", snap.Value)
	assert.Equal(t, 200, snap.Meta.Status)
	assert.Nil(t, snap.Pending)
	assert.Nil(t, snap.Err)
}

func TestStoreLoadingToError(t *testing.T) {
	s := NewStore(nil)
	g := s.BeginLoading("u1", newPending("u1"))
	boom := errors.New("boom")

	require.True(t, s.CompleteError("u1", g, boom))
	snap, _ := s.Peek("u1")
	assert.Equal(t, StatusError, snap.Status)
	assert.Equal(t, boom, snap.Err)
	assert.Nil(t, snap.Value)
	assert.False(t, snap.Keep)
}

func TestStoreBeginLoadingKeepsUses(t *testing.T) {
	s := NewStore(nil)
	g := s.BeginLoading("k", newPending("k"))
	s.CompleteSuccess("k", g, 1, Meta{}, true)
	require.NoError(t, s.Use("k"))
	require.NoError(t, s.Use("k"))

	s.BeginLoading("k", newPending("k"))
	snap, _ := s.Peek("k")
	assert.Equal(t, 2, snap.Uses)
	assert.False(t, snap.Keep)
	assert.False(t, snap.Stale)
}

func TestStoreUseUnuseBalance(t *testing.T) {
	s := NewStore(nil)
	g := s.BeginLoading("k", newPending("k"))
	s.CompleteSuccess("k", g, "v", Meta{}, false)

	for i := 0; i < 3; i++ {
		require.NoError(t, s.Use("k"))
	}
	for i := 0; i < 2; i++ {
		require.NoError(t, s.Unuse("k"))
	}
	snap, ok := s.Peek("k")
	require.True(t, ok)
	assert.Equal(t, 1, snap.Uses)

	require.NoError(t, s.Unuse("k"))
	_, ok = s.Peek("k")
	assert.False(t, ok, "last release of an unkept entry deletes it")
}

func TestStoreUnuseKeptTurnsStale(t *testing.T) {
	s := NewStore(nil)
	g := s.BeginLoading("k", newPending("k"))
	s.CompleteSuccess("k", g, "v", Meta{}, true)
	require.NoError(t, s.Use("k"))

	require.NoError(t, s.Unuse("k"))
	snap, ok := s.Peek("k")
	require.True(t, ok)
	assert.Equal(t, 0, snap.Uses)
	assert.True(t, snap.Stale)
	assert.Equal(t, "v", snap.Value)

	// a further release never goes negative
	require.NoError(t, s.Unuse("k"))
	snap, _ = s.Peek("k")
	assert.Equal(t, 0, snap.Uses)
}

func TestStoreMissingKey(t *testing.T) {
	s := NewStore(nil)
	assert.ErrorIs(t, s.Use("nope"), ErrNotFound)
	assert.ErrorIs(t, s.Unuse("nope"), ErrNotFound)
	_, ok := s.Peek("nope")
	assert.False(t, ok)
}

func TestStoreSweep(t *testing.T) {
	rec := &hookRecorder{}
	s := NewStore(nil)
	s.hooks = rec

	settle := func(key string, ok, keep bool, uses int) {
		g := s.BeginLoading(key, newPending(key))
		if ok {
			s.CompleteSuccess(key, g, key, Meta{}, keep)
		} else {
			s.CompleteError(key, g, errors.New(key))
		}
		for i := 0; i < uses; i++ {
			require.NoError(t, s.Use(key))
		}
	}
	settle("ok-unused", true, false, 0)
	settle("ok-used", true, false, 1)
	settle("ok-kept", true, true, 0)
	settle("err-unused", false, false, 0)
	settle("err-used", false, false, 2)
	s.BeginLoading("loading", newPending("loading"))

	assert.Equal(t, 2, s.Sweep())
	assert.Equal(t, []string{"err-used", "loading", "ok-kept", "ok-used"}, s.Keys())
	assert.True(t, rec.has("evict ok-unused sweep"))
	assert.True(t, rec.has("evict err-unused sweep"))
	assert.True(t, rec.has("swept 2"))

	assert.Zero(t, s.Sweep())
}

func TestStoreSupersededCompletionIsDropped(t *testing.T) {
	rec := &hookRecorder{}
	s := NewStore(nil)
	s.hooks = rec

	g1 := s.BeginLoading("k", newPending("k"))
	g2 := s.BeginLoading("k", newPending("k"))
	require.Greater(t, g2, g1)

	assert.False(t, s.CompleteSuccess("k", g1, "old", Meta{}, false))
	snap, _ := s.Peek("k")
	assert.Equal(t, StatusLoading, snap.Status)
	assert.True(t, rec.has("superseded k"))

	assert.True(t, s.CompleteSuccess("k", g2, "new", Meta{}, false))
	snap, _ = s.Peek("k")
	assert.Equal(t, "new", snap.Value)
}

func TestStoreInvalidateBlocksInFlightResult(t *testing.T) {
	s := NewStore(nil)
	g := s.BeginLoading("k", newPending("k"))
	require.NoError(t, s.Use("k"))

	assert.True(t, s.Invalidate("k"))
	assert.False(t, s.CompleteSuccess("k", g, "late", Meta{}, true))
	assert.Zero(t, s.Len())
	assert.False(t, s.Invalidate("k"))
}

func TestStoreOrphanCompletionIsSwept(t *testing.T) {
	s := NewStore(nil)
	g := s.BeginLoading("k", newPending("k"))
	require.NoError(t, s.Use("k"))
	require.NoError(t, s.Unuse("k")) // last consumer left mid-fetch

	_, ok := s.Peek("k")
	require.False(t, ok)

	require.True(t, s.CompleteSuccess("k", g, "v", Meta{}, false))
	snap, ok := s.Peek("k")
	require.True(t, ok)
	assert.Equal(t, 0, snap.Uses)

	assert.Equal(t, 1, s.Sweep())
	assert.Zero(t, s.Len())
}

func TestStoreSubscribe(t *testing.T) {
	s := NewStore(nil)
	var (
		mu   sync.Mutex
		seen []string
	)
	cancel := s.Subscribe(func(k string) {
		mu.Lock()
		seen = append(seen, k)
		mu.Unlock()
	})

	g := s.BeginLoading("a", newPending("a"))
	s.CompleteSuccess("a", g, 1, Meta{}, false)
	require.NoError(t, s.Use("a"))
	require.NoError(t, s.Unuse("a"))

	cancel()
	cancel()
	s.BeginLoading("b", newPending("b"))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"a", "a", "a", "a"}, seen)
}

func TestStoreAcquire(t *testing.T) {
	s := NewStore(nil)

	prev, p, g, started := s.acquire("k", false)
	require.True(t, started)
	assert.Equal(t, StatusIdle, prev.Status)

	// loading: never starts a second fetch, even when forced
	prev, p2, _, started := s.acquire("k", true)
	assert.False(t, started)
	assert.Nil(t, p2)
	assert.Same(t, p, prev.Pending)

	s.CompleteSuccess("k", g, "v", Meta{}, false)
	_, _, _, started = s.acquire("k", false)
	assert.False(t, started, "fresh success is served")

	prev, _, _, started = s.acquire("k", true)
	assert.True(t, started)
	assert.Equal(t, StatusSuccess, prev.Status)
}

// brokenGens fails every call without blocking.
type brokenGens struct{ calls int }

func (g *brokenGens) Snapshot(context.Context, string) (uint64, error) {
	g.calls++
	return 0, errors.New("gens down")
}

func (g *brokenGens) Bump(context.Context, string) (uint64, error) {
	g.calls++
	return 0, errors.New("gens down")
}

func (g *brokenGens) Cleanup(time.Duration)       {}
func (g *brokenGens) Close(context.Context) error { return nil }

func TestStoreGenStoreErrorsLetLastWriterWin(t *testing.T) {
	gens := &brokenGens{}
	s := NewStore(gens)

	g := s.BeginLoading("k", newPending("k"))
	assert.True(t, s.CompleteSuccess("k", g, "v", Meta{}, false))
	snap, ok := s.Peek("k")
	require.True(t, ok)
	assert.Equal(t, "v", snap.Value)
	assert.NotZero(t, gens.calls)
}
