package util

import (
	"crypto/sha256"
	"fmt"
	"net/http"
	"strings"
)

// TargetKey derives a cache key from a request target. Safe methods key by
// URL alone; other methods key by method, URL and a short hash of the body so
// two different payloads to the same endpoint never share an entry.
func TargetKey(method, url string, body []byte) string {
	m := strings.ToUpper(method)
	if m == "" || m == http.MethodGet || m == http.MethodHead {
		return url
	}
	sum := sha256.Sum256(body)
	return fmt.Sprintf("%s %s#%x", m, url, sum[:8])
}
