package fetcher

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/unkn0wn-root/fetchcache/codec"
	"github.com/unkn0wn-root/fetchcache/internal/wire"
	pr "github.com/unkn0wn-root/fetchcache/provider"
)

// HTTP is the default Fetcher. The zero value is not usable; construct with
// NewHTTP and adjust the exported fields before the first Fetch.
//
// A body is decoded with the codec registered for the response's media type
// (JSON, CBOR and msgpack by default; any "+json" suffix counts as JSON).
// application/octet-stream bodies are returned as []byte, everything else
// as a string.
type HTTP struct {
	Client *http.Client
	// Header is applied to every request before Request.Header.
	Header http.Header
	// MaxBody caps response bodies in bytes; 0 => unlimited.
	MaxBody int64

	// Responses, when set, keeps GET/HEAD responses that carry an ETag. A later
	// fetch of the same target sends If-None-Match and reuses the stored body
	// on 304 Not Modified.
	Responses   pr.Provider
	ResponseTTL time.Duration // 0 => provider default / no expiry

	decoders map[string]codec.Codec[any]
	now      func() time.Time
}

var _ Fetcher = (*HTTP)(nil)

func NewHTTP() *HTTP {
	return &HTTP{
		Client:   &http.Client{},
		decoders: defaultDecoders(),
		now:      time.Now,
	}
}

// Register binds a codec to a media type (e.g. MediaProtobuf). Registration
// must happen before the fetcher is shared.
func (h *HTTP) Register(mediaType string, c codec.Codec[any]) {
	h.decoders[strings.ToLower(mediaType)] = c
}

func (h *HTTP) Fetch(ctx context.Context, r Request) (any, Meta, error) {
	if r.URL == "" {
		return nil, Meta{}, ErrNoURL
	}
	method := strings.ToUpper(r.Method)
	if method == "" {
		method = http.MethodGet
	}

	req, err := h.newRequest(ctx, method, r)
	if err != nil {
		return nil, Meta{}, fmt.Errorf("fetch %s: %w", r.URL, err)
	}

	rec, cached := h.loadRecord(ctx, method, r.URL)
	if cached && rec.ETag != "" && req.Header.Get("If-None-Match") == "" {
		req.Header.Set("If-None-Match", rec.ETag)
	}

	resp, err := h.Client.Do(req)
	if err != nil {
		return nil, Meta{}, fmt.Errorf("fetch %s: %w", r.URL, err)
	}
	defer resp.Body.Close()

	raw, err := h.readBody(resp.Body)
	if err != nil {
		return nil, Meta{}, fmt.Errorf("fetch %s: read body: %w", r.URL, err)
	}
	// checked before decoding; a select would only see part of a cut body
	if h.MaxBody > 0 && int64(len(raw)) > h.MaxBody {
		return nil, Meta{}, fmt.Errorf("fetch %s: %w: more than %d bytes", r.URL, ErrBodyTooLarge, h.MaxBody)
	}

	status := resp.StatusCode
	contentType := resp.Header.Get("Content-Type")
	etag := resp.Header.Get("ETag")
	revalidated := false
	if status == http.StatusNotModified && cached {
		raw, contentType, status = rec.Body, rec.ContentType, rec.Status
		if etag == "" {
			etag = rec.ETag
		}
		revalidated = true
	}

	value, err := h.decode(contentType, raw, r.Select)
	if err != nil {
		return nil, Meta{}, fmt.Errorf("fetch %s: parse body: %w", r.URL, err)
	}
	if status < 200 || status > 299 {
		return nil, Meta{}, newResponseError(status, value)
	}

	meta := Meta{
		Status:      status,
		Header:      resp.Header.Clone(),
		Time:        h.now(),
		Size:        len(raw),
		ETag:        etag,
		Revalidated: revalidated,
	}
	if etag != "" {
		h.storeRecord(ctx, method, r.URL, wire.Record{
			Status:      status,
			ETag:        etag,
			ContentType: contentType,
			StoredAt:    meta.Time,
			Body:        raw,
		})
	}
	return value, meta, nil
}

func (h *HTTP) newRequest(ctx context.Context, method string, r Request) (*http.Request, error) {
	body, contentType, err := h.encodeBody(r)
	if err != nil {
		return nil, fmt.Errorf("encode body: %w", err)
	}
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, r.URL, rd)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, vs := range h.Header {
		req.Header[k] = append([]string(nil), vs...)
	}
	for k, vs := range r.Header {
		req.Header[k] = append([]string(nil), vs...)
	}
	if contentType != "" && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", contentType)
	}
	return req, nil
}

// encodeBody returns the request payload and the Content-Type it implies
// ("" when the caller's header should be left alone).
func (h *HTTP) encodeBody(r Request) ([]byte, string, error) {
	switch b := r.Body.(type) {
	case nil:
		return nil, "", nil
	case []byte:
		return b, "", nil
	case string:
		return []byte(b), "", nil
	case io.Reader:
		raw, err := io.ReadAll(b)
		return raw, "", err
	}

	contentType := r.Header.Get("Content-Type")
	if contentType == "" {
		contentType = MediaJSON
	}
	c, ok := h.lookup(mediaType(contentType))
	if !ok {
		return nil, "", fmt.Errorf("no codec for request content type %q", contentType)
	}
	raw, err := c.Encode(r.Body)
	return raw, contentType, err
}

func (h *HTTP) readBody(body io.Reader) ([]byte, error) {
	if h.MaxBody > 0 {
		// one byte over the cap lets the decoder report the overflow
		body = io.LimitReader(body, h.MaxBody+1)
	}
	return io.ReadAll(body)
}

func (h *HTTP) maxDecode() int {
	if h.MaxBody <= 0 {
		return 0
	}
	return int(h.MaxBody)
}

func responseKey(method, url string) string {
	return "resp:" + method + " " + url
}

func revalidatable(method string) bool {
	return method == http.MethodGet || method == http.MethodHead
}

func (h *HTTP) loadRecord(ctx context.Context, method, url string) (wire.Record, bool) {
	if h.Responses == nil || !revalidatable(method) {
		return wire.Record{}, false
	}
	k := responseKey(method, url)
	raw, ok, err := h.Responses.Get(ctx, k)
	if err != nil || !ok {
		return wire.Record{}, false
	}
	rec, err := wire.Decode(raw)
	if err != nil {
		_ = h.Responses.Del(ctx, k) // self-heal corrupt
		return wire.Record{}, false
	}
	return rec, true
}

func (h *HTTP) storeRecord(ctx context.Context, method, url string, rec wire.Record) {
	if h.Responses == nil || !revalidatable(method) {
		return
	}
	b := wire.Encode(rec)
	_, _ = h.Responses.Set(ctx, responseKey(method, url), b, int64(len(b)), h.ResponseTTL)
}
