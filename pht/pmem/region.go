package pmem

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

var (
	// ErrRegionClosed is returned by any Region operation after Close.
	ErrRegionClosed = errors.New("pmem: region is closed")
	// ErrRegionTooSmall is returned when a region's backing file or
	// requested size cannot hold a RootHeader.
	ErrRegionTooSmall = errors.New("pmem: region smaller than root header")
)

// Region is a memory-mapped, fixed-size persistent memory region.
// Region itself owns only the mapping and the root header; everything past
// the header belongs to an Arena built on top of it.
type Region struct {
	path   string // empty for anonymous regions
	data   []byte
	closed bool
	anon   bool
}

// Open maps the first size bytes of the file at path into memory
// read-write, creating the file or growing it to size bytes if it is
// smaller (a larger file is left as it is). Reopening a file written by a previous process
// re-attaches to its existing root header and arena contents unchanged —
// this is the recovery path (see Region.Root and Recover).
func Open(path string, size int) (*Region, error) {
	if size < rootHeaderSize {
		return nil, ErrRegionTooSmall
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("pmem: open %s: %w", path, err)
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("pmem: stat %s: %w", path, err)
	}
	if fi.Size() < int64(size) {
		if err := f.Truncate(int64(size)); err != nil {
			return nil, fmt.Errorf("pmem: truncate %s: %w", path, err)
		}
	}

	data, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("pmem: mmap %s: %w", path, err)
	}

	return &Region{path: path, data: data}, nil
}

// OpenAnon creates an anonymous, off-heap read-write mapping of size bytes.
// It behaves exactly like Open for allocation and fencing purposes but has
// no backing file — CachelineWriteback still succeeds (msync on an
// anonymous mapping is a harmless no-op) but there is nothing to recover
// after the process exits. Useful for tests and for benchmark runs that do
// not care about crash-replay.
func OpenAnon(size int) (*Region, error) {
	if size < rootHeaderSize {
		return nil, ErrRegionTooSmall
	}

	data, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, fmt.Errorf("pmem: anonymous mmap: %w", err)
	}

	return &Region{data: data, anon: true}, nil
}

// Bytes returns the full mapped byte slice, root header included.
func (r *Region) Bytes() []byte {
	return r.data
}

// Size returns the size of the region in bytes.
func (r *Region) Size() int {
	return len(r.data)
}

// Path returns the backing file path, or "" for an anonymous region.
func (r *Region) Path() string {
	return r.path
}

// Close unmaps the region. It is idempotent.
func (r *Region) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	if r.data == nil {
		return nil
	}
	return unix.Munmap(r.data)
}
