package artifact

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// ErrBadName rejects names that would escape the content root.
var ErrBadName = errors.New("invalid artifact name")

// FileStore keeps artifact files under one content root on local disk.
type FileStore struct {
	root string
}

// NewFileStore creates the root directory if needed.
func NewFileStore(root string) (*FileStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &FileStore{root: root}, nil
}

// Save writes data to name inside the root, overwriting any previous file.
func (f *FileStore) Save(name string, data []byte) error {
	path, err := f.resolve(name)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Remove deletes a stored file. Removing a file that is already gone is
// not an error.
func (f *FileStore) Remove(name string) error {
	path, err := f.resolve(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Abs returns the absolute on-disk path for serving a stored file.
func (f *FileStore) Abs(name string) (string, error) {
	return f.resolve(name)
}

func (f *FileStore) resolve(name string) (string, error) {
	if name == "" || strings.Contains(name, "..") || filepath.IsAbs(name) {
		return "", ErrBadName
	}
	return filepath.Join(f.root, filepath.Clean(name)), nil
}
