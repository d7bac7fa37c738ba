// Package codec turns cached values into bytes and back. Every Codec here is
// safe for concurrent use.
package codec

// Codec encodes and decodes values of type V.
type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
}
