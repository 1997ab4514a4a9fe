// Package vfs provides read-only virtual file and directory handles shared
// between format identifiers and loaders.
package vfs

import (
	"io"
	"path"
	"strings"

	"github.com/pkg/errors"
)

// File is a read-only view of a named blob. Implementations must be safe for
// concurrent ReadAt calls.
type File interface {
	io.ReaderAt
	Name() string
	Size() int64
	// ContainingDir returns the directory holding this file, or nil.
	ContainingDir() Dir
	FullPath() string
}

// Dir is a read-only directory of Files and subdirectories.
type Dir interface {
	Name() string
	File(name string) File
	Subdir(name string) Dir
	Files() []File
	Subdirs() []Dir
	// Parent returns the enclosing directory, or nil at the root.
	Parent() Dir
	FullPath() string
}

var ErrShortRead = errors.New("short read")

// ReadAll reads the full contents of f.
func ReadAll(f File) ([]byte, error) {
	return ReadBytes(f, 0, f.Size())
}

// ReadBytes reads exactly n bytes at off.
func ReadBytes(f File, off, n int64) ([]byte, error) {
	if off < 0 || n < 0 || off+n > f.Size() {
		return nil, errors.Wrapf(ErrShortRead, "%s: read %#x bytes at %#x, size %#x", f.Name(), n, off, f.Size())
	}
	p := make([]byte, n)
	got, err := f.ReadAt(p, off)
	if got == len(p) {
		return p, nil
	}
	if err == nil || err == io.EOF {
		err = ErrShortRead
	}
	return nil, errors.Wrapf(err, "%s: read %#x bytes at %#x", f.Name(), n, off)
}

// Extension returns the lower-cased text after the last dot in name.
func Extension(name string) string {
	i := strings.LastIndexByte(name, '.')
	if i < 0 {
		return ""
	}
	return strings.ToLower(name[i+1:])
}

// IsExeFS reports whether d looks like an extracted ExeFS: it holds both the
// main executable and its program metadata.
func IsExeFS(d Dir) bool {
	if d == nil {
		return false
	}
	return d.File("main") != nil && d.File("main.npdm") != nil
}

// Section returns a File spanning [off, off+size) of base.
func Section(base File, name string, off, size int64) File {
	return &OffsetFile{base: base, name: name, off: off, size: size}
}

func joinPath(parent Dir, name string) string {
	if parent == nil {
		return name
	}
	return path.Join(parent.FullPath(), name)
}

// parented is implemented by handles whose parent is assigned when a MemDir
// adopts them.
type parented interface {
	setParent(Dir)
}
