package pht

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/coredb/nvmds/pht/pmem"
	"github.com/coredb/nvmds/resource"
)

func newTestTable(t *testing.T, threadCount int) *PHT {
	t.Helper()
	region, err := pmem.OpenAnon(16 << 20)
	require.NoError(t, err)
	t.Cleanup(func() { _ = region.Close() })

	tbl, err := New(region, WithBucketCount(64), WithThreadCount(threadCount))
	require.NoError(t, err)
	return tbl
}

// S1: single-thread trace of Insert, Get, Put, Replace, Remove against the
// same key, each checked against the return value the table's contract
// promises.
func TestSingleThreadTrace(t *testing.T) {
	tbl := newTestTable(t, 1)

	ok, err := tbl.Insert(0, []byte("k1"), []byte("v1"))
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = tbl.Insert(0, []byte("k1"), []byte("v1-again"))
	require.NoError(t, err)
	require.False(t, ok, "Insert must not overwrite an existing key")

	val, found := tbl.Get(0, []byte("k1"))
	require.True(t, found)
	require.Equal(t, "v1", string(val))

	prev, err := tbl.Put(0, []byte("k1"), []byte("v2"))
	require.NoError(t, err)
	require.Equal(t, "v1", string(prev))

	val, found = tbl.Get(0, []byte("k1"))
	require.True(t, found)
	require.Equal(t, "v2", string(val))

	prev, ok, err = tbl.Replace(0, []byte("k1"), []byte("v3"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "v2", string(prev))

	removed, ok, err := tbl.Remove(0, []byte("k1"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "v3", string(removed))

	_, found = tbl.Get(0, []byte("k1"))
	require.False(t, found)

	_, ok, err = tbl.Remove(0, []byte("k1"))
	require.NoError(t, err)
	require.False(t, ok, "removing an absent key is a no-op")
}

// S2: two threads race a Put against the same key; the table must end up
// holding exactly one of the two values, and neither Put may observe the
// other's write as a torn or partial value.
func TestTwoThreadRacingPut(t *testing.T) {
	tbl := newTestTable(t, 2)
	key := []byte("race")

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, err := tbl.Put(0, key, []byte("from-thread-0"))
		require.NoError(t, err)
	}()
	go func() {
		defer wg.Done()
		_, err := tbl.Put(1, key, []byte("from-thread-1"))
		require.NoError(t, err)
	}()
	wg.Wait()

	val, found := tbl.Get(0, key)
	require.True(t, found)
	require.Contains(t, []string{"from-thread-0", "from-thread-1"}, string(val))
}

// S3: eight threads each insert and then remove their own disjoint set of
// keys concurrently; once all threads finish, every key must be absent and
// no key from one thread's set may have been disturbed by another's.
func TestEightThreadInterleavedInsertRemove(t *testing.T) {
	tbl := newTestTable(t, 8)
	const perThread = 200

	var wg sync.WaitGroup
	for tid := 0; tid < 8; tid++ {
		wg.Add(1)
		go func(tid int) {
			defer wg.Done()
			for i := 0; i < perThread; i++ {
				key := []byte(fmt.Sprintf("t%d-k%d", tid, i))
				val := []byte(fmt.Sprintf("t%d-v%d", tid, i))

				ok, err := tbl.Insert(tid, key, val)
				require.NoError(t, err)
				require.True(t, ok)

				got, found := tbl.Get(tid, key)
				require.True(t, found)
				require.Equal(t, val, got)

				removed, ok, err := tbl.Remove(tid, key)
				require.NoError(t, err)
				require.True(t, ok)
				require.Equal(t, val, removed)
			}
		}(tid)
	}
	wg.Wait()

	for tid := 0; tid < 8; tid++ {
		for i := 0; i < perThread; i++ {
			key := []byte(fmt.Sprintf("t%d-k%d", tid, i))
			_, found := tbl.Get(0, key)
			require.False(t, found)
		}
	}
}

func TestResourceControllerDeniesOversizedArena(t *testing.T) {
	region, err := pmem.OpenAnon(16 << 20)
	require.NoError(t, err)
	defer region.Close()

	ctrl := resource.NewController(resource.Config{MemoryLimitBytes: 1024})
	_, err = New(region, WithBucketCount(64), WithResourceController(ctrl))
	require.Error(t, err)
}

func TestResourceControllerReleasedOnClose(t *testing.T) {
	region, err := pmem.OpenAnon(16 << 20)
	require.NoError(t, err)
	defer region.Close()

	ctrl := resource.NewController(resource.Config{MemoryLimitBytes: 16 << 20})
	tbl, err := New(region, WithBucketCount(64), WithResourceController(ctrl))
	require.NoError(t, err)
	require.Positive(t, ctrl.MemoryUsage())

	require.NoError(t, tbl.Close())
	require.Zero(t, ctrl.MemoryUsage())
}

func TestRecoverReattachesWithoutRescan(t *testing.T) {
	region, err := pmem.OpenAnon(4 << 20)
	require.NoError(t, err)
	defer region.Close()

	tbl, err := New(region, WithBucketCount(16))
	require.NoError(t, err)

	ok, err := tbl.Insert(0, []byte("persisted"), []byte("value"))
	require.NoError(t, err)
	require.True(t, ok)

	recovered, err := Recover(region)
	require.NoError(t, err)

	val, found := recovered.Get(0, []byte("persisted"))
	require.True(t, found)
	require.Equal(t, "value", string(val))
}
