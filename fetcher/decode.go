package fetcher

import (
	"mime"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/unkn0wn-root/fetchcache/codec"
)

const (
	MediaJSON     = "application/json"
	MediaCBOR     = "application/cbor"
	MediaMsgpack  = "application/msgpack"
	MediaXMsgpack = "application/x-msgpack"
	MediaProtobuf = "application/x-protobuf"
	MediaOctet    = "application/octet-stream"
)

func defaultDecoders() map[string]codec.Codec[any] {
	return map[string]codec.Codec[any]{
		MediaJSON:     codec.JSON[any]{},
		MediaCBOR:     codec.MustCBOR[any](false),
		MediaMsgpack:  codec.Msgpack[any]{},
		MediaXMsgpack: codec.Msgpack[any]{},
		MediaOctet:    codec.Any[[]byte](codec.Bytes{}),
	}
}

// mediaType returns the lowercased media type of a Content-Type header value.
func mediaType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		// tolerate sloppy headers like "application/json;"
		mt = strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0])
	}
	return strings.ToLower(mt)
}

func isJSON(mt string) bool {
	return mt == MediaJSON || strings.HasSuffix(mt, "+json")
}

// lookup finds the structured codec for a media type; ok=false means the
// body is raw text.
func (h *HTTP) lookup(mt string) (codec.Codec[any], bool) {
	if c, ok := h.decoders[mt]; ok {
		return c, true
	}
	if isJSON(mt) {
		c, ok := h.decoders[MediaJSON]
		return c, ok
	}
	return nil, false
}

func (h *HTTP) decode(contentType string, body []byte, sel string) (any, error) {
	mt := mediaType(contentType)
	c, ok := h.lookup(mt)
	if !ok {
		text, err := codec.Limit[string]{Inner: codec.String{}, MaxDecode: h.maxDecode()}.Decode(body)
		if err != nil {
			return nil, err
		}
		return text, nil
	}
	if sel != "" && isJSON(mt) {
		res := gjson.GetBytes(body, sel)
		if !res.Exists() {
			return nil, nil
		}
		body = []byte(res.Raw)
	}
	return codec.Limit[any]{Inner: c, MaxDecode: h.maxDecode()}.Decode(body)
}
