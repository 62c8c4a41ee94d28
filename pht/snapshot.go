package pht

import (
	"context"
	"fmt"
	"io"

	"github.com/coredb/nvmds/blobstore"
	"github.com/coredb/nvmds/codec"
	"github.com/coredb/nvmds/internal/hash"
)

// snapshotHeader is the small, self-describing prefix written before the
// region payload in every snapshot blob. It lets a restore path pick the
// right codec and catch a truncated or bit-rotted upload before ever
// touching the bucket table.
type snapshotHeader struct {
	Codec       string `json:"codec"`
	BucketCount uint64 `json:"bucket_count"`
	PayloadSize int    `json:"payload_size"`
	Checksum    uint32 `json:"checksum"`
}

const snapshotHeaderLen = 4 // uint32 length prefix for the JSON header itself

// ExportSnapshot uploads a read-quiescent copy of the region's live bytes
// (root header and arena, bucket table included) to store under name,
// encoded with c. Callers are responsible for quiescing mutators for the
// duration of the call; ExportSnapshot takes no locks of its own, matching
// the table's lock-free design, so a copy taken while writers are still
// running is not guaranteed to be consistent.
// A nil c uses codec.Default.
func (t *PHT) ExportSnapshot(ctx context.Context, store blobstore.Store, name string, c codec.Codec) error {
	if t.closed.Load() {
		return ErrClosed
	}
	if c == nil {
		c = codec.Default
	}

	raw := t.region.Bytes()
	payload, err := c.Marshal(raw)
	if err != nil {
		return fmt.Errorf("pht: encode snapshot payload: %w", err)
	}

	root, err := t.region.Root()
	if err != nil {
		return fmt.Errorf("pht: read root header for snapshot: %w", err)
	}

	header := snapshotHeader{
		Codec:       c.Name(),
		BucketCount: root.BucketCount,
		PayloadSize: len(payload),
		Checksum:    hash.CRC32C(payload),
	}
	headerBytes, err := codec.JSON{}.Marshal(header)
	if err != nil {
		return fmt.Errorf("pht: encode snapshot header: %w", err)
	}

	blob := make([]byte, 0, snapshotHeaderLen+len(headerBytes)+len(payload))
	blob = appendUint32(blob, uint32(len(headerBytes)))
	blob = append(blob, headerBytes...)
	blob = append(blob, payload...)

	if err := t.controller.AcquireIO(ctx, len(blob)); err != nil {
		return fmt.Errorf("pht: io rate limit: %w", err)
	}

	err = store.Put(ctx, name, blob)
	t.logger.LogSnapshotExport(ctx, name, int64(len(blob)), err)
	return err
}

// RestoreSnapshot reads back a blob written by ExportSnapshot and returns
// its decoded region bytes, verified against the header's checksum. It does
// not itself re-attach the bytes to a pmem.Region; callers write them into
// a freshly opened region's backing store and then call Recover.
func RestoreSnapshot(ctx context.Context, store blobstore.Store, name string) ([]byte, error) {
	r, err := store.Open(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("pht: open snapshot blob: %w", err)
	}
	defer r.Close()

	blob, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("pht: read snapshot blob: %w", err)
	}

	if len(blob) < snapshotHeaderLen {
		return nil, fmt.Errorf("pht: snapshot blob truncated before header length")
	}
	headerLen := readUint32(blob)
	blob = blob[snapshotHeaderLen:]
	if len(blob) < int(headerLen) {
		return nil, fmt.Errorf("pht: snapshot blob truncated within header")
	}

	var header snapshotHeader
	if err := (codec.JSON{}).Unmarshal(blob[:headerLen], &header); err != nil {
		return nil, fmt.Errorf("pht: decode snapshot header: %w", err)
	}
	payload := blob[headerLen:]
	if len(payload) != header.PayloadSize {
		return nil, fmt.Errorf("pht: snapshot payload size mismatch: header says %d, got %d", header.PayloadSize, len(payload))
	}
	if hash.CRC32C(payload) != header.Checksum {
		return nil, fmt.Errorf("pht: snapshot payload checksum mismatch")
	}

	c, ok := codec.ByName(header.Codec)
	if !ok {
		return nil, fmt.Errorf("pht: unknown snapshot codec %q", header.Codec)
	}

	var raw []byte
	if err := c.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("pht: decode snapshot payload: %w", err)
	}
	return raw, nil
}

func appendUint32(b []byte, v uint32) []byte {
	return append(b, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}

func readUint32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
