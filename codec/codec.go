// Package codec converts values to and from response/request bodies.
//
// The fetcher keeps a registry of Codec[any] keyed by media type. Typed codecs
// (e.g. Protobuf[*pb.User]) are registered through Any.
package codec

// Codec encodes/decodes values V to []byte.
type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
}
