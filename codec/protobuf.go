package codec

import "google.golang.org/protobuf/proto"

// Protobuf is a Codec for generated protobuf messages.
// Construct with NewProtobuf; the zero value has no message constructor.
type Protobuf[T proto.Message] struct {
	new func() T // constructor for a concrete message (e.g., func() *timestamppb.Timestamp { return &timestamppb.Timestamp{} })
}

func NewProtobuf[T proto.Message](ctor func() T) Protobuf[T] {
	return Protobuf[T]{new: ctor}
}

func (c Protobuf[T]) Encode(v T) ([]byte, error) {
	return proto.Marshal(v)
}
func (c Protobuf[T]) Decode(b []byte) (T, error) {
	m := c.new()
	err := proto.Unmarshal(b, m)
	return m, err
}
