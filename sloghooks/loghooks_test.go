package sloghooks

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/unkn0wn-root/fetchcache"
)

func newTestHooks(opts Options) (*Hooks, *bytes.Buffer) {
	var buf bytes.Buffer
	l := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return New(l, opts), &buf
}

func TestKeysAreRedactedByDefault(t *testing.T) {
	h, buf := newTestHooks(Options{})
	h.FetchStarted("https://api.example.com/users/1?token=secret", true)

	out := buf.String()
	assert.NotContains(t, out, "secret")
	assert.Contains(t, out, "fetchcache.fetch_started")
	assert.Contains(t, out, "revalidate=true")
}

func TestCustomRedactor(t *testing.T) {
	h, buf := newTestHooks(Options{Redact: func(k string) string { return "<" + k + ">" }})
	h.Evicted("u1", "sweep")
	assert.Contains(t, buf.String(), "key=<u1> reason=sweep")
}

func TestSettledErrorIsWarn(t *testing.T) {
	h, buf := newTestHooks(Options{})
	h.Settled("u1", fetchcache.StatusError, 5*time.Millisecond)
	assert.Contains(t, buf.String(), "level=WARN")
	assert.Contains(t, buf.String(), "status=error")
}

func TestDedupSampling(t *testing.T) {
	h, buf := newTestHooks(Options{DedupEvery: 3})
	for i := 0; i < 9; i++ {
		h.Deduplicated("k")
	}
	assert.Equal(t, 3, strings.Count(buf.String(), "fetchcache.deduplicated"))
}

func TestNilLoggerIsSilent(t *testing.T) {
	h := New(nil, Options{})
	h.FetchStarted("k", false)
	h.Swept(2)
	h.Superseded("k")
}
