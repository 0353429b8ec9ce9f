package store

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Disk resolves tile storage keys to files under a root directory.
type Disk struct {
	root string
}

// NewDisk creates a Disk store rooted at dir.
func NewDisk(dir string) *Disk {
	return &Disk{root: dir}
}

// Root returns the directory keys are resolved against.
func (d *Disk) Root() string {
	return d.root
}

// Path returns the file path for key.
func (d *Disk) Path(key string) string {
	return filepath.Join(d.root, filepath.FromSlash(key))
}

// Exists reports whether a file is stored under key.
func (d *Disk) Exists(key string) bool {
	info, err := os.Stat(d.Path(key))
	return err == nil && info.Mode().IsRegular()
}

// Open opens the file stored under key. A missing file yields an error
// matching fs.ErrNotExist.
func (d *Disk) Open(key string) (*os.File, error) {
	return os.Open(d.Path(key))
}

// ReadFile returns the contents stored under key.
func (d *Disk) ReadFile(key string) ([]byte, error) {
	return os.ReadFile(d.Path(key))
}

// WriteFile atomically replaces the file stored under key with data.
func (d *Disk) WriteFile(key string, data []byte) error {
	return d.WriteWith(key, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}

// WriteWith streams content produced by write into a temporary file next to
// the destination and renames it into place. Readers observe either the old
// file or the complete new one.
func (d *Disk) WriteWith(key string, write func(w io.Writer) error) error {
	tmp, err := d.CreateTemp(key)
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	if err := write(tmp); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return d.Publish(tmpName, key)
}

// CreateTemp creates an empty temporary file in the directory of key. The
// caller owns the file and must either Publish or remove it.
func (d *Disk) CreateTemp(key string) (*os.File, error) {
	path := d.Path(key)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create %s: %w", dir, err)
	}
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return os.CreateTemp(dir, "."+base+".tmp.*"+filepath.Ext(path))
}

// Publish moves tmpPath into place as key.
func (d *Disk) Publish(tmpPath, key string) error {
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, d.Path(key)); err != nil {
		return fmt.Errorf("publish %s: %w", key, err)
	}
	return nil
}

// IsNotExist reports whether err means the key has no stored file.
func IsNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
