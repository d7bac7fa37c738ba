package codec

import (
	"github.com/fxamacker/cbor/v2"
)

// Upper bounds applied when decoding, so a damaged entry cannot ask for a
// huge allocation. Alias and metadata records stay far below them.
const (
	cborMaxArray = 1 << 16
	cborMaxMap   = 1 << 12
)

// CBOR serializes values with fxamacker/cbor. Build it with NewCBOR or
// MustCBOR; the zero value has no modes and panics.
//
// With deterministic=true the Core Deterministic encoding of RFC 8949 is used,
// so equal values always produce equal bytes. Times are written as
// RFC3339Nano strings either way.
type CBOR[V any] struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

var _ Codec[struct{}] = CBOR[struct{}]{}

func NewCBOR[V any](deterministic bool) (CBOR[V], error) {
	eo := cbor.PreferredUnsortedEncOptions()
	if deterministic {
		eo = cbor.CoreDetEncOptions()
	}
	eo.Time = cbor.TimeRFC3339Nano

	em, err := eo.EncMode()
	if err != nil {
		return CBOR[V]{}, err
	}
	dm, err := cbor.DecOptions{
		DupMapKey:        cbor.DupMapKeyEnforcedAPF,
		MaxArrayElements: cborMaxArray,
		MaxMapPairs:      cborMaxMap,
	}.DecMode()
	if err != nil {
		return CBOR[V]{}, err
	}
	return CBOR[V]{enc: em, dec: dm}, nil
}

// MustCBOR is NewCBOR for package-level variables; it panics on error.
func MustCBOR[V any](deterministic bool) CBOR[V] {
	c, err := NewCBOR[V](deterministic)
	if err != nil {
		panic(err)
	}
	return c
}

func (c CBOR[V]) Encode(v V) ([]byte, error) { return c.enc.Marshal(v) }

func (c CBOR[V]) Decode(b []byte) (V, error) {
	var v V
	err := c.dec.Unmarshal(b, &v)
	return v, err
}
