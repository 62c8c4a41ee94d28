// Package blobstore provides a storage abstraction for PHT snapshot
// export/backup targets. Unlike pht/pmem's durable-linearizability
// contract, a blobstore upload is an offline backup path: it runs while no
// writer holds the region and participates in no crash-recovery guarantee.
package blobstore

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned when a blob does not exist.
var ErrNotFound = errors.New("blobstore: blob not found")

// Store is a minimal read/write blob abstraction: Put an entire named
// payload, Open it back as a stream, List names under a prefix, Delete by
// name. It is the common surface every backend (local filesystem,
// in-memory, S3, MinIO) implements, sized to what a single full-region
// snapshot export/restore needs rather than to a general object-storage
// client.
type Store interface {
	// Put writes data atomically under name, replacing any existing blob
	// with that name.
	Put(ctx context.Context, name string, data []byte) error
	// Open returns a reader for the named blob's full contents.
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	// Delete removes the named blob. It is not an error to delete a
	// name that does not exist.
	Delete(ctx context.Context, name string) error
	// List returns every blob name with the given prefix.
	List(ctx context.Context, prefix string) ([]string, error)
}
