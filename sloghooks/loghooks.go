package sloghooks

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/unkn0wn-root/fetchcache"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	DedupEvery uint64
	EvictEvery uint64
	// Optional key redactor. Defaults to SHA-256 prefix.
	Redact func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	dedupCtr atomic.Uint64
	evictCtr atomic.Uint64
}

var _ fetchcache.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) redact(k string) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(k)
	}
	sum := sha256.Sum256([]byte(k))
	return hex.EncodeToString(sum[:8])
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) FetchStarted(key string, revalidate bool) {
	if h.l == nil {
		return
	}
	h.l.Debug("fetchcache.fetch_started",
		"key", h.redact(key),
		"revalidate", revalidate)
}

func (h *Hooks) Deduplicated(key string) {
	if h.l == nil || !sample(h.opts.DedupEvery, &h.dedupCtr) {
		return
	}
	h.l.Debug("fetchcache.deduplicated",
		"key", h.redact(key))
}

func (h *Hooks) Settled(key string, status fetchcache.Status, took time.Duration) {
	if h.l == nil {
		return
	}
	level := slog.LevelDebug
	if status == fetchcache.StatusError {
		level = slog.LevelWarn
	}
	h.l.Log(context.Background(), level, "fetchcache.settled",
		"key", h.redact(key),
		"status", status.String(),
		"took", took.String())
}

func (h *Hooks) Superseded(key string) {
	if h.l == nil {
		return
	}
	h.l.Info("fetchcache.superseded",
		"key", h.redact(key))
}

func (h *Hooks) Evicted(key, reason string) {
	if h.l == nil || !sample(h.opts.EvictEvery, &h.evictCtr) {
		return
	}
	h.l.Debug("fetchcache.evicted",
		"key", h.redact(key),
		"reason", reason)
}

func (h *Hooks) Swept(removed int) {
	if h.l == nil || removed == 0 {
		return
	}
	h.l.Info("fetchcache.swept",
		"removed", removed)
}
