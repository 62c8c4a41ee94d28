// Package manifest tracks which pmem regions a harness has formatted or
// recovered, independent of any single PHT instance's in-process lifetime.
// A region's own root header (pht/pmem/root.go) is sufficient to recover
// that region by itself; the manifest exists for the level above a single
// region — a harness juggling several named tables across runs wants one
// place to learn what exists on disk before calling pmem.Open on any of
// them.
package manifest

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/coredb/nvmds/internal/fs"
)

const (
	manifestFileName = "MANIFEST"
	currentFileName  = "CURRENT"
	currentVersion   = 1
)

// Manifest describes every pmem region a harness has registered, as of a
// specific atomically-published revision.
type Manifest struct {
	Version int          `json:"version"`
	ID      uint64       `json:"id"`
	Regions []RegionInfo `json:"regions"`
}

// RegionInfo records enough about one registered region to decide whether
// to pmem.Open + pht.Recover it or to format it fresh with pht.New.
type RegionInfo struct {
	Name        string `json:"name"`
	Path        string `json:"path"`
	SizeBytes   int64  `json:"size_bytes"`
	BucketCount uint64 `json:"bucket_count"`
}

// Store manages the manifest file and its atomic updates, in the directory
// that holds a set of sibling pmem region files.
type Store struct {
	fs  fs.FileSystem
	dir string
	mu  sync.Mutex
}

// NewStore creates a manifest store rooted at dir on the local filesystem.
func NewStore(dir string) *Store {
	return &Store{fs: fs.Default, dir: dir}
}

// NewStoreFS creates a manifest store against an arbitrary fs.FileSystem,
// for tests that substitute an in-memory filesystem.
func NewStoreFS(dir string, fsys fs.FileSystem) *Store {
	return &Store{fs: fsys, dir: dir}
}

// Load loads the current manifest, or an empty one if none has been saved
// yet.
func (s *Store) Load() (*Manifest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	readFile := func(path string) ([]byte, error) {
		f, err := s.fs.OpenFile(path, os.O_RDONLY, 0)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return io.ReadAll(f)
	}

	currentPath := filepath.Join(s.dir, currentFileName)
	content, err := readFile(currentPath)
	if os.IsNotExist(err) {
		return &Manifest{Version: currentVersion}, nil
	}
	if err != nil {
		return nil, err
	}

	manifestPath := filepath.Join(s.dir, string(content))
	data, err := readFile(manifestPath)
	if err != nil {
		return nil, err
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	if m.Version != currentVersion {
		return nil, fmt.Errorf("manifest: unsupported version %d (expected %d)", m.Version, currentVersion)
	}
	return &m, nil
}

// Register adds or replaces the RegionInfo for name and atomically
// publishes the updated manifest.
func (s *Store) Register(name string, info RegionInfo) error {
	m, err := s.Load()
	if err != nil {
		return err
	}

	info.Name = name
	replaced := false
	for i := range m.Regions {
		if m.Regions[i].Name == name {
			m.Regions[i] = info
			replaced = true
			break
		}
	}
	if !replaced {
		m.Regions = append(m.Regions, info)
	}

	return s.save(m)
}

// Forget removes name's RegionInfo, if present, and atomically publishes
// the updated manifest.
func (s *Store) Forget(name string) error {
	m, err := s.Load()
	if err != nil {
		return err
	}

	kept := m.Regions[:0]
	for _, r := range m.Regions {
		if r.Name != name {
			kept = append(kept, r)
		}
	}
	m.Regions = kept

	return s.save(m)
}

// save atomically writes a new manifest revision and repoints CURRENT at
// it: write-to-temp, fsync, rename, fsync-directory, same discipline twice
// (once for the manifest file, once for the CURRENT pointer) so a crash
// between the two leaves CURRENT pointing at either the old or the new
// manifest, never at a half-written one.
func (s *Store) save(m *Manifest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m.Version = currentVersion
	m.ID++

	filename := fmt.Sprintf("%s-%06d.json", manifestFileName, m.ID)
	path := filepath.Join(s.dir, filename)

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}

	if err := s.writeAtomic(path, data); err != nil {
		return err
	}
	if err := s.syncDir(); err != nil {
		return err
	}
	if err := s.writeAtomic(filepath.Join(s.dir, currentFileName), []byte(filename)); err != nil {
		return err
	}
	return s.syncDir()
}

func (s *Store) writeAtomic(path string, data []byte) error {
	tmpPath := path + ".tmp"
	f, err := s.fs.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		s.fs.Remove(tmpPath)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		s.fs.Remove(tmpPath)
		return err
	}
	if err := f.Close(); err != nil {
		s.fs.Remove(tmpPath)
		return err
	}
	if err := s.fs.Rename(tmpPath, path); err != nil {
		s.fs.Remove(tmpPath)
		return err
	}
	return nil
}

func (s *Store) syncDir() error {
	f, err := s.fs.OpenFile(s.dir, os.O_RDONLY, 0)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}
