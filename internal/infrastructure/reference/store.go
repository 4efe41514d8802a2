// Package reference stores recorded reference coverage in a JSON file keyed
// by repository URL and branch.
package reference

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/felixgeelhaar/covstatus/internal/domain"
)

// FileStore provides JSON file-based storage for reference coverage.
type FileStore struct {
	Path string
}

// NewFileStore creates a store backed by path.
func NewFileStore(path string) *FileStore {
	return &FileStore{Path: path}
}

// Load reads every recorded entry. A missing file is an empty store.
func (s *FileStore) Load() (domain.References, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return domain.References{Entries: map[string]domain.ReferenceEntry{}}, nil
		}
		return domain.References{}, err
	}

	var refs domain.References
	if err := json.Unmarshal(data, &refs); err != nil {
		return domain.References{}, fmt.Errorf("decode %s: %w", s.Path, err)
	}
	if refs.Entries == nil {
		refs.Entries = map[string]domain.ReferenceEntry{}
	}
	return refs, nil
}

// Save replaces the file content with refs.
func (s *FileStore) Save(refs domain.References) error {
	dir := filepath.Dir(s.Path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return err
	}

	data, err := json.MarshalIndent(refs, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.Path)+".*.tmp")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), s.Path)
}

// Put stores entry under its key, replacing any previous value. The
// read-modify-write runs under an exclusive file lock so concurrent builds
// recording different branches do not lose each other's entries.
func (s *FileStore) Put(entry domain.ReferenceEntry) error {
	if entry.Key == "" {
		return errors.New("reference key is empty")
	}

	lock, err := s.acquireLock()
	if err != nil {
		return err
	}
	defer lock.release()

	refs, err := s.Load()
	if err != nil {
		return err
	}
	refs.Put(entry)
	return s.Save(refs)
}
