package aifs

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

// jsonCodecName is registered as a gRPC content-subtype so asset-service
// calls marshal messages as JSON rather than requiring real protoc-generated
// wire types.
const jsonCodecName = "json"

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

type jsonCodec struct{}

func (jsonCodec) Name() string { return jsonCodecName }

func (jsonCodec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
