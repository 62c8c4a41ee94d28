package codec

import "encoding/json"

// JSON is the standard-library JSON codec. It always encodes the small,
// structured snapshot header (codec name, bucket count, payload size,
// checksum); as codec.Default it also encodes the region payload, which
// encoding/json writes as a base64 string.
type JSON struct{}

func (JSON) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (JSON) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (JSON) Name() string                       { return "json" }
