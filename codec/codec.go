// Package codec centralizes the encoding used for snapshot/backup
// payloads written through a blobstore.Store. A snapshot header always
// records its codec's name, so a restore path can select the matching
// codec rather than assuming a fixed format.
package codec

import "fmt"

// Codec encodes/decodes values. Implementations must be safe for
// concurrent use.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
	Name() string
}

// ByName returns a built-in codec by its stable name, for selecting the
// codec a snapshot header says it was written with.
func ByName(name string) (Codec, bool) {
	switch name {
	case "json":
		return JSON{}, true
	case "json+zstd":
		return Compressed{Codec: JSON{}}, true
	default:
		return nil, false
	}
}

// MustMarshal is a helper for tests/benchmarks.
func MustMarshal(c Codec, v any) []byte {
	if c == nil {
		c = Default
	}
	b, err := c.Marshal(v)
	if err != nil {
		panic(fmt.Errorf("codec %s marshal failed: %w", c.Name(), err))
	}
	return b
}

// Default is the codec ExportSnapshot uses unless a caller overrides it.
var Default Codec = JSON{}
