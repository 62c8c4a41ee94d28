package pmem

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegionOpenAnonWriteRootAndRoot(t *testing.T) {
	r, err := OpenAnon(4096)
	require.NoError(t, err)
	defer r.Close()

	require.NoError(t, r.WriteRoot(1024))

	h, err := r.Root()
	require.NoError(t, err)
	require.Equal(t, uint64(1024), h.BucketCount)
	require.Equal(t, rootFormatVersion, h.Version)
}

func TestRegionRootRejectsCorruptHeader(t *testing.T) {
	r, err := OpenAnon(4096)
	require.NoError(t, err)
	defer r.Close()

	require.NoError(t, r.WriteRoot(64))
	r.Bytes()[0] ^= 0xFF // corrupt the magic

	_, err = r.Root()
	require.Error(t, err)
}

func TestRegionOpenFileBackedPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "region.db")

	r1, err := Open(path, 8192)
	require.NoError(t, err)
	require.NoError(t, r1.WriteRoot(256))

	arena := NewArena(r1.ArenaBytes())
	off, buf, err := arena.Alloc(16)
	require.NoError(t, err)
	copy(buf, []byte("hello-persistent"))
	require.NoError(t, r1.CachelineWriteback(arena.Get(off), 16))
	StoreFence()
	require.NoError(t, r1.Close())

	r2, err := Open(path, 8192)
	require.NoError(t, err)
	defer r2.Close()

	h, err := r2.Root()
	require.NoError(t, err)
	require.Equal(t, uint64(256), h.BucketCount)

	got := r2.ArenaBytes()[off : off+16]
	require.Equal(t, "hello-persistent", string(got))
}

func TestArenaAllocExhausted(t *testing.T) {
	r, err := OpenAnon(rootHeaderSize + 64)
	require.NoError(t, err)
	defer r.Close()

	arena := NewArena(r.ArenaBytes())
	_, _, err = arena.Alloc(1000)
	require.ErrorIs(t, err, ErrExhausted)
}

func TestArenaReservesNullOffset(t *testing.T) {
	r, err := OpenAnon(4096)
	require.NoError(t, err)
	defer r.Close()

	arena := NewArena(r.ArenaBytes())
	off, _, err := arena.Alloc(8)
	require.NoError(t, err)
	require.NotZero(t, off)
}
