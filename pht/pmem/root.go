package pmem

import (
	"encoding/binary"
	"errors"
	"fmt"
	"runtime"
	"unsafe"

	"github.com/coredb/nvmds/internal/hash"
)

const (
	rootMagic         uint64 = 0x504d454d54424c45 // "PMEMTBLE"
	rootFormatVersion uint32 = 1
	rootHeaderSize           = 32 // magic(8) + version(4) + bucketCount(8) + arenaOffset(8) + checksum(4)
)

var (
	// ErrBadMagic is returned by Root when the header doesn't look like a
	// region this package ever wrote.
	ErrBadMagic = errors.New("pmem: root header magic mismatch")
	// ErrBadChecksum is returned by Root when the header's checksum does
	// not match its contents, indicating torn or corrupt metadata.
	ErrBadChecksum = errors.New("pmem: root header checksum mismatch")
	// ErrUnsupportedVersion is returned by Root for a header written by an
	// incompatible format version.
	ErrUnsupportedVersion = errors.New("pmem: unsupported root header version")

	// ErrUnsupportedArchitecture is returned when running on a CPU
	// architecture this package's alignment assumptions were not
	// validated against.
	ErrUnsupportedArchitecture = errors.New("pmem: unsupported architecture: only amd64 and arm64 are supported")
	// ErrBigEndian is returned on big-endian systems, where the tagged
	// low-bit mark used by pht's bucket chains would not be the bit the
	// code thinks it is without byte-order-aware masking.
	ErrBigEndian = errors.New("pmem: big-endian systems are not supported")
)

// RootHeader is the fixed-offset header at the start of every region,
// recording the region's format version, bucket count, and a checksum over
// the rest of the header so a reopened region can be validated before any
// bucket chain is traversed.
type RootHeader struct {
	Magic       uint64
	Version     uint32
	BucketCount uint64
	ArenaOffset uint64
	Checksum    uint32
}

func (h RootHeader) encode() [rootHeaderSize]byte {
	var buf [rootHeaderSize]byte
	binary.LittleEndian.PutUint64(buf[0:8], h.Magic)
	binary.LittleEndian.PutUint32(buf[8:12], h.Version)
	binary.LittleEndian.PutUint64(buf[12:20], h.BucketCount)
	binary.LittleEndian.PutUint64(buf[20:28], h.ArenaOffset)
	binary.LittleEndian.PutUint32(buf[28:32], hash.CRC32C(buf[0:28]))
	return buf
}

func decodeRootHeader(buf []byte) (RootHeader, error) {
	var h RootHeader
	if len(buf) < rootHeaderSize {
		return h, ErrRegionTooSmall
	}
	h.Magic = binary.LittleEndian.Uint64(buf[0:8])
	h.Version = binary.LittleEndian.Uint32(buf[8:12])
	h.BucketCount = binary.LittleEndian.Uint64(buf[12:20])
	h.ArenaOffset = binary.LittleEndian.Uint64(buf[20:28])
	h.Checksum = binary.LittleEndian.Uint32(buf[28:32])

	if h.Magic != rootMagic {
		return h, ErrBadMagic
	}
	if h.Version != rootFormatVersion {
		return h, ErrUnsupportedVersion
	}
	want := hash.CRC32C(buf[0:28])
	if want != h.Checksum {
		return h, ErrBadChecksum
	}
	return h, nil
}

// InitProcess validates platform assumptions (architecture, endianness)
// that the tagged-pointer mark bit and this header's fixed little-endian
// encoding depend on. Call it once per process before touching any region.
func InitProcess() error {
	arch := runtime.GOARCH
	if arch != "amd64" && arch != "arm64" {
		return fmt.Errorf("%w: %s", ErrUnsupportedArchitecture, arch)
	}
	if !isLittleEndian() {
		return ErrBigEndian
	}
	return nil
}

func isLittleEndian() bool {
	var x uint16 = 1
	return *(*byte)(unsafe.Pointer(&x)) == 1
}

// InitThread assigns no per-thread state today; it exists so callers have
// a stable hook to pair with FinalizeProcess and so the lifecycle matches
// the one the hash table's reclamation domain expects (StartOp requires a
// tid that InitThread could in the future validate or register).
func InitThread(tid int) error {
	if tid < 0 {
		return fmt.Errorf("pmem: invalid thread id %d", tid)
	}
	return nil
}

// FinalizeProcess flushes and closes the region. Call it once per process
// at shutdown, after every thread has called reclaim.Domain.EndOp for the
// last time.
func FinalizeProcess(r *Region) error {
	if r.anon {
		return r.Close()
	}
	if err := r.CachelineWriteback(unsafe.Pointer(&r.data[0]), len(r.data)); err != nil {
		return err
	}
	return r.Close()
}

// WriteRoot installs a fresh root header for bucketCount buckets, with the
// arena beginning immediately after the header. It must only be called
// once, when a region is first formatted.
func (r *Region) WriteRoot(bucketCount uint64) error {
	h := RootHeader{
		Magic:       rootMagic,
		Version:     rootFormatVersion,
		BucketCount: bucketCount,
		ArenaOffset: rootHeaderSize,
	}
	buf := h.encode()
	copy(r.data[0:rootHeaderSize], buf[:])
	if err := r.CachelineWriteback(unsafe.Pointer(&r.data[0]), rootHeaderSize); err != nil {
		return err
	}
	StoreFence()
	return nil
}

// Root reads and validates the region's root header. Callers use this both
// right after WriteRoot and when reattaching to a region written by a
// previous process (recovery): a region whose root header is intact is, by
// construction, a region whose bucket table is intact, since every
// installing CAS into that table was persisted before it was made visible.
func (r *Region) Root() (RootHeader, error) {
	return decodeRootHeader(r.data[0:rootHeaderSize])
}

// ArenaBytes returns the portion of the region available to an Arena,
// i.e. everything after the root header.
func (r *Region) ArenaBytes() []byte {
	return r.data[rootHeaderSize:]
}
