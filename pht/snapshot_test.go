package pht

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/coredb/nvmds/blobstore"
	"github.com/coredb/nvmds/codec"
	"github.com/coredb/nvmds/pht/pmem"
)

func TestExportSnapshotRoundTripsThroughMemoryStore(t *testing.T) {
	tbl := newTestTable(t, 1)

	ok, err := tbl.Insert(0, []byte("k1"), []byte("v1"))
	require.NoError(t, err)
	require.True(t, ok)

	store := blobstore.NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, tbl.ExportSnapshot(ctx, store, "snap-1", codec.Default))

	raw, err := RestoreSnapshot(ctx, store, "snap-1")
	require.NoError(t, err)
	require.Equal(t, tbl.region.Bytes(), raw)
}

func TestExportSnapshotWithCompressedCodec(t *testing.T) {
	tbl := newTestTable(t, 1)

	ok, err := tbl.Insert(0, []byte("k1"), []byte("v1"))
	require.NoError(t, err)
	require.True(t, ok)

	store := blobstore.NewMemoryStore()
	ctx := context.Background()

	zstdCodec := codec.Compressed{Codec: codec.JSON{}}
	require.NoError(t, tbl.ExportSnapshot(ctx, store, "snap-2", zstdCodec))

	raw, err := RestoreSnapshot(ctx, store, "snap-2")
	require.NoError(t, err)
	require.Equal(t, tbl.region.Bytes(), raw)
}

func TestExportSnapshotRejectsClosedTable(t *testing.T) {
	region, err := pmem.OpenAnon(4 << 20)
	require.NoError(t, err)
	defer region.Close()

	tbl, err := New(region, WithBucketCount(16))
	require.NoError(t, err)
	require.NoError(t, tbl.Close())

	store := blobstore.NewMemoryStore()
	err = tbl.ExportSnapshot(context.Background(), store, "snap-3", nil)
	require.ErrorIs(t, err, ErrClosed)
}

func TestRestoreSnapshotDetectsCorruption(t *testing.T) {
	tbl := newTestTable(t, 1)
	store := blobstore.NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, tbl.ExportSnapshot(ctx, store, "snap-4", codec.Default))

	r, err := store.Open(ctx, "snap-4")
	require.NoError(t, err)
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	require.NoError(t, r.Close())

	data[len(data)-1] ^= 0xFF
	require.NoError(t, store.Delete(ctx, "snap-4"))
	require.NoError(t, store.Put(ctx, "snap-4", data))

	_, err = RestoreSnapshot(ctx, store, "snap-4")
	require.Error(t, err)
}
