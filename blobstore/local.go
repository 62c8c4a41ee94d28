package blobstore

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/coredb/nvmds/internal/fs"
)

// LocalStore implements Store over an internal/fs.FileSystem, defaulting
// to the real local filesystem. Using the fs abstraction rather than the
// os package directly lets tests substitute another fs.FileSystem.
type LocalStore struct {
	root string
	fs   fs.FileSystem
}

// NewLocalStore creates a LocalStore rooted at dir on the real filesystem.
func NewLocalStore(dir string) *LocalStore {
	return &LocalStore{root: dir, fs: fs.Default}
}

// NewLocalStoreFS creates a LocalStore rooted at dir on a caller-supplied
// filesystem, for tests.
func NewLocalStoreFS(dir string, fsys fs.FileSystem) *LocalStore {
	return &LocalStore{root: dir, fs: fsys}
}

func (s *LocalStore) path(name string) string {
	return filepath.Join(s.root, name)
}

func (s *LocalStore) Put(_ context.Context, name string, data []byte) error {
	if err := s.fs.MkdirAll(s.root, 0o755); err != nil {
		return err
	}
	tmpPath := s.path(name) + ".tmp"
	f, err := s.fs.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = s.fs.Remove(tmpPath)
		return err
	}
	if err := f.Close(); err != nil {
		_ = s.fs.Remove(tmpPath)
		return err
	}
	return s.fs.Rename(tmpPath, s.path(name))
}

func (s *LocalStore) Open(_ context.Context, name string) (io.ReadCloser, error) {
	f, err := s.fs.OpenFile(s.path(name), os.O_RDONLY, 0)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return f, nil
}

func (s *LocalStore) Delete(_ context.Context, name string) error {
	err := s.fs.Remove(s.path(name))
	if err != nil && errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

func (s *LocalStore) List(_ context.Context, prefix string) ([]string, error) {
	entries, err := s.fs.ReadDir(s.root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	var names []string
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), prefix) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}
