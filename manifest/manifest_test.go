package manifest

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegisterThenLoadRoundTrips(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)

	require.NoError(t, s.Register("primary", RegionInfo{
		Path:        dir + "/primary.db",
		SizeBytes:   1 << 20,
		BucketCount: 64,
	}))

	m, err := s.Load()
	require.NoError(t, err)
	require.Len(t, m.Regions, 1)
	require.Equal(t, "primary", m.Regions[0].Name)
	require.EqualValues(t, 64, m.Regions[0].BucketCount)
}

func TestRegisterReplacesExistingEntry(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)

	require.NoError(t, s.Register("primary", RegionInfo{BucketCount: 64}))
	require.NoError(t, s.Register("primary", RegionInfo{BucketCount: 128}))

	m, err := s.Load()
	require.NoError(t, err)
	require.Len(t, m.Regions, 1)
	require.EqualValues(t, 128, m.Regions[0].BucketCount)
}

func TestForgetRemovesEntry(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)

	require.NoError(t, s.Register("a", RegionInfo{BucketCount: 1}))
	require.NoError(t, s.Register("b", RegionInfo{BucketCount: 2}))
	require.NoError(t, s.Forget("a"))

	m, err := s.Load()
	require.NoError(t, err)
	require.Len(t, m.Regions, 1)
	require.Equal(t, "b", m.Regions[0].Name)
}

func TestLoadOnEmptyDirReturnsEmptyManifest(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)

	m, err := s.Load()
	require.NoError(t, err)
	require.Empty(t, m.Regions)
}
