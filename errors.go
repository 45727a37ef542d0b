package fetchcache

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/unkn0wn-root/fetchcache/fetcher"
)

var (
	ErrClosed   = errors.New("fetchcache: cache is closed")
	ErrNotFound = errors.New("fetchcache: no entry for key")
	// ErrNoTarget is returned by Fetch for a query without URL.
	ErrNoTarget = fetcher.ErrNoURL
)

// ResponseError is the error stored for a response that indicates failure.
type ResponseError = fetcher.ResponseError

// PreloadError lists the keys Preload failed to fetch.
type PreloadError struct {
	Errs map[string]error
}

func (e *PreloadError) Error() string {
	keys := make([]string, 0, len(e.Errs))
	for k := range e.Errs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	fmt.Fprintf(&b, "preload: %d of the requested keys failed", len(keys))
	for _, k := range keys {
		fmt.Fprintf(&b, "; %s: %v", k, e.Errs[k])
	}
	return b.String()
}

func (e *PreloadError) Unwrap() []error {
	errs := make([]error, 0, len(e.Errs))
	for _, err := range e.Errs {
		errs = append(errs, err)
	}
	return errs
}
