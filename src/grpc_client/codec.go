package grpc_client

import (
	"fmt"

	"google.golang.org/grpc"
)

// codecName matches the content-subtype a MarketStore server registers for
// its protobuf messages.
const codecName = "proto"

// Codec is a grpc encoding.Codec for the hand-written Message types. It is
// forced per connection rather than registered globally, so it never
// replaces the default protobuf codec for other services in the process.
type Codec struct{}

func (Codec) Name() string {
	return codecName
}

func (Codec) Marshal(v any) ([]byte, error) {
	m, ok := v.(Message)
	if !ok {
		return nil, fmt.Errorf("grpc_client: cannot marshal %T", v)
	}
	return m.MarshalWire(), nil
}

func (Codec) Unmarshal(data []byte, v any) error {
	m, ok := v.(Message)
	if !ok {
		return fmt.Errorf("grpc_client: cannot unmarshal into %T", v)
	}
	return m.UnmarshalWire(data)
}

// -----------------------------------------------------------------------------

// ServerCodecOption installs Codec on a grpc.Server.
func ServerCodecOption() grpc.ServerOption {
	return grpc.ForceServerCodec(Codec{})
}
