// Package fetcher performs the network call behind a cache entry.
//
// A Fetcher is stateless per call: it runs the request, parses the body and
// reports either (value, Meta) or an error. Caching, deduplication and
// reference counting live in the fetchcache package.
package fetcher

import (
	"context"
	"net/http"
	"time"
)

// Request is the target of a fetch plus its transport options.
// The cache treats everything but URL/Method/Body (for key derivation) as opaque.
type Request struct {
	URL    string
	Method string // "" => GET
	Header http.Header

	// Body is sent as-is for []byte, string and io.Reader. Any other value is
	// encoded with the codec registered for the request's Content-Type
	// (application/json when unset).
	Body any

	// Select is an optional gjson path applied to JSON response bodies before
	// decoding, e.g. "data.user" to unwrap an envelope.
	Select string
}

// Meta describes a settled successful response.
type Meta struct {
	Status      int
	Header      http.Header // snapshot; safe to keep
	Time        time.Time   // completion
	Size        int         // body bytes
	ETag        string
	Revalidated bool // body reused after a 304
}

// Fetcher is the network boundary of the cache.
type Fetcher interface {
	Fetch(ctx context.Context, req Request) (value any, meta Meta, err error)
}

// Func adapts a plain function to Fetcher.
type Func func(ctx context.Context, req Request) (any, Meta, error)

func (f Func) Fetch(ctx context.Context, req Request) (any, Meta, error) { return f(ctx, req) }
