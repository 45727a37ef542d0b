package codec

import "fmt"

// Any erases the value type of a typed codec so it can sit in a
// Codec[any] registry. Encode fails when handed a value that is not a T.
func Any[T any](inner Codec[T]) Codec[any] {
	return anyCodec[T]{inner: inner}
}

type anyCodec[T any] struct {
	inner Codec[T]
}

func (c anyCodec[T]) Encode(v any) ([]byte, error) {
	t, ok := v.(T)
	if !ok {
		var zero T
		return nil, fmt.Errorf("codec: cannot encode %T as %T", v, zero)
	}
	return c.inner.Encode(t)
}

func (c anyCodec[T]) Decode(b []byte) (any, error) {
	return c.inner.Decode(b)
}
