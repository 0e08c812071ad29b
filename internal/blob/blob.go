// Package blob persists uploaded files on an afero filesystem, keyed by the
// relative path returned from Save. Production uses the OS filesystem; tests
// swap in an in-memory one.
package blob

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"

	"github.com/google/uuid"
	"github.com/spf13/afero"
)

const uploadPrefix = "csv_uploads"

// Store is a file store rooted at a base directory.
type Store struct {
	fs   afero.Fs
	base string
}

// NewOS returns a store backed by the real filesystem under base.
func NewOS(base string) *Store {
	return &Store{fs: afero.NewOsFs(), base: base}
}

// NewMem returns an in-memory store for tests.
func NewMem() *Store {
	return &Store{fs: afero.NewMemMapFs(), base: "uploads"}
}

// Save writes the stream under a fresh unique key derived from the original
// filename and returns that key. Uploads of the same filename never collide.
func (s *Store) Save(name string, r io.Reader) (string, error) {
	key := path.Join(uploadPrefix, uuid.NewString()+"_"+path.Base(name))
	full := path.Join(s.base, key)
	if err := s.fs.MkdirAll(path.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("mkdir: %w", err)
	}
	f, err := s.fs.Create(full)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", key, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return "", fmt.Errorf("write %s: %w", key, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", key, err)
	}
	return key, nil
}

// Open returns the stored file for reading.
func (s *Store) Open(key string) (io.ReadCloser, error) {
	return s.fs.Open(path.Join(s.base, key))
}

// Delete removes a stored file. A missing file is not an error; the record
// pointing at it is what matters.
func (s *Store) Delete(key string) error {
	err := s.fs.Remove(path.Join(s.base, key))
	if err != nil && errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}
