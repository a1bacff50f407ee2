package grpc

import (
	"encoding/json"
)

// JSONCodec encodes messages as JSON. Clients must force the same codec,
// e.g. grpc.WithDefaultCallOptions(grpc.ForceCodec(JSONCodec{})).
type JSONCodec struct{}

func (JSONCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (JSONCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func (JSONCodec) Name() string {
	return "json"
}
