package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// File is the handle the pipeline stages work against: sequential reads and
// writes plus seeking, so the normalizer can patch the record count after
// streaming.
type File interface {
	io.Reader
	io.Writer
	io.Seeker
	io.Closer
}

// Volume abstracts the byte storage the server runs on top of. Paths are
// rooted, slash-separated and logical ("/meshes/part.stl"); the
// implementation decides where the bytes live. Rename is atomic within one
// volume.
type Volume interface {
	Open(path string) (File, error)
	Create(path string) (File, error)
	Stat(path string) (int64, error)
	Remove(path string) error
	Rename(oldPath, newPath string) error
	Exists(path string) bool
}

// DiskVolume maps the logical namespace onto a directory tree.
type DiskVolume struct {
	root string
}

func NewDiskVolume(root string) (*DiskVolume, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, err
	}
	return &DiskVolume{root: abs}, nil
}

// Root returns the directory backing the volume.
func (dv *DiskVolume) Root() string {
	return dv.root
}

// resolve turns a logical path into a path under the volume root, refusing
// anything that would escape it.
func (dv *DiskVolume) resolve(path string) (string, error) {
	clean := filepath.Clean("/" + strings.TrimPrefix(path, "/"))
	full := filepath.Join(dv.root, filepath.FromSlash(clean))
	if full != dv.root && !strings.HasPrefix(full, dv.root+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes volume root", path)
	}
	return full, nil
}

func (dv *DiskVolume) Open(path string) (File, error) {
	full, err := dv.resolve(path)
	if err != nil {
		return nil, err
	}
	return os.Open(full)
}

func (dv *DiskVolume) Create(path string) (File, error) {
	full, err := dv.resolve(path)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return nil, err
	}
	return os.Create(full)
}

func (dv *DiskVolume) Stat(path string) (int64, error) {
	full, err := dv.resolve(path)
	if err != nil {
		return 0, err
	}
	info, err := os.Stat(full)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

func (dv *DiskVolume) Remove(path string) error {
	full, err := dv.resolve(path)
	if err != nil {
		return err
	}
	return os.Remove(full)
}

func (dv *DiskVolume) Rename(oldPath, newPath string) error {
	oldFull, err := dv.resolve(oldPath)
	if err != nil {
		return err
	}
	newFull, err := dv.resolve(newPath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(newFull), 0o755); err != nil {
		return err
	}
	return os.Rename(oldFull, newFull)
}

func (dv *DiskVolume) Exists(path string) bool {
	full, err := dv.resolve(path)
	if err != nil {
		return false
	}
	_, statErr := os.Stat(full)
	return statErr == nil
}

// EnsureDir creates the logical directory (and parents) if missing.
func (dv *DiskVolume) EnsureDir(path string) error {
	full, err := dv.resolve(path)
	if err != nil {
		return err
	}
	return os.MkdirAll(full, 0o755)
}

// List returns the names of regular files directly under the given logical
// directory, sorted by the OS directory order.
func (dv *DiskVolume) List(path string) ([]string, error) {
	full, err := dv.resolve(path)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(full)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}
