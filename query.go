package fetchcache

import (
	"encoding/json"
	"fmt"

	"github.com/unkn0wn-root/fetchcache/fetcher"
	"github.com/unkn0wn-root/fetchcache/internal/util"
)

// Query is what a consumer asks the cache for.
type Query struct {
	// Key names the cached resource. Empty => derived from Request: the URL
	// for GET/HEAD, method+URL+body hash otherwise. Two targets sharing a Key
	// share an entry.
	Key     string
	Request fetcher.Request
	// Keep retains the value after its last consumer leaves. It is then served
	// stale and refreshed on the next read.
	Keep bool
}

// CacheKey returns the key q is stored under. Without URL nothing is stored,
// whatever Key says.
func (q Query) CacheKey() string {
	if q.Key != "" {
		return q.Key
	}
	if q.Request.URL == "" {
		return ""
	}
	return util.TargetKey(q.Request.Method, q.Request.URL, bodyBytes(q.Request.Body))
}

func bodyBytes(body any) []byte {
	switch b := body.(type) {
	case nil:
		return nil
	case []byte:
		return b
	case string:
		return []byte(b)
	}
	if raw, err := json.Marshal(body); err == nil {
		return raw
	}
	return []byte(fmt.Sprintf("%#v", body))
}
