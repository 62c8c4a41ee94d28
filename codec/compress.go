package codec

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// Compressed wraps another Codec's output in zstd compression. Snapshot
// payloads are mostly zero-filled, unused arena space, so compression
// ratios on an export are typically large.
type Compressed struct {
	Codec Codec
}

func (c Compressed) Marshal(v any) ([]byte, error) {
	raw, err := c.Codec.Marshal(v)
	if err != nil {
		return nil, err
	}

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, err
	}
	defer enc.Close()

	return enc.EncodeAll(raw, nil), nil
}

func (c Compressed) Unmarshal(data []byte, v any) error {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return err
	}
	defer dec.Close()

	raw, err := dec.DecodeAll(data, nil)
	if err != nil {
		return err
	}
	return c.Codec.Unmarshal(raw, v)
}

func (c Compressed) Name() string {
	return fmt.Sprintf("%s+zstd", c.Codec.Name())
}
