// Package container implements small fixed-size, cache-conscious layout
// helpers shared by the reservation slots (reclaim) and vertex table
// (tgraph). pht's bucket heads do not use it: they are packed 8 bytes
// apart with no padding.
package container

// CacheLineSize is the assumed cache line size used to pad hot,
// concurrently-written slots so independent slots never share a line.
const CacheLineSize = 64

// Padded wraps a value with CacheLineSize bytes of trailing padding so
// that, when placed in an array, the Value fields of adjacent elements
// never share a cache line. This prevents false sharing between adjacent
// reservation slots (reclaim) or vertex slots (tgraph) that are mutated by
// different threads.
//
// The padding is a fixed CacheLineSize bytes, not computed from T, and
// elements are not aligned to cache-line boundaries: each element is
// sizeof(T)+CacheLineSize bytes (rounded up to T's alignment).
type Padded[T any] struct {
	Value T
	_     [CacheLineSize]byte
}
