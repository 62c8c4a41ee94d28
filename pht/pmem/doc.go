// Package pmem provides a minimal persistent-memory region abstraction for
// the persistent lock-free hash table: a memory-mapped, file-backed region,
// a lock-free bump allocator over that region, and the two persistence
// primitives every durable mutation needs — a cacheline writeback and a
// store fence — plus lifecycle hooks for attaching to, and recovering from,
// an existing region.
//
// # Why not real CLWB/SFENCE
//
// Go exposes no portable intrinsic for the x86 CLWB or SFENCE instructions
// without cgo or inline assembly. CachelineWriteback instead calls
// unix.Msync over the containing page range, which is the closest portable
// operation that guarantees the written bytes have reached durable storage
// before it returns. StoreFence documents the fact that every
// golang.org/x/sys/unix and sync/atomic call in this module already acts as
// a full memory barrier; it exists as a named call site so the ordering
// rules read the same as the structures built on top of this package.
//
// # Layout
//
// A Region begins with a fixed-size RootHeader (magic, format version,
// bucket count, checksum) followed by an arena the caller allocates from
// for everything else — bucket heads and nodes alike. Region does not know
// what a bucket or a node is; that is pht's concern.
package pmem
