package vfs

import (
	"bytes"
	"io"
)

// BytesFile is an in-memory File.
type BytesFile struct {
	name   string
	r      *bytes.Reader
	size   int64
	parent Dir
}

func NewBytesFile(name string, data []byte) *BytesFile {
	return &BytesFile{name: name, r: bytes.NewReader(data), size: int64(len(data))}
}

func (b *BytesFile) Name() string       { return b.name }
func (b *BytesFile) Size() int64        { return b.size }
func (b *BytesFile) ContainingDir() Dir { return b.parent }
func (b *BytesFile) FullPath() string   { return joinPath(b.parent, b.name) }
func (b *BytesFile) setParent(d Dir)    { b.parent = d }

func (b *BytesFile) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, io.EOF
	}
	return b.r.ReadAt(p, off)
}

// OffsetFile exposes a window of another File.
type OffsetFile struct {
	base      File
	name      string
	off, size int64
	parent    Dir
}

func (o *OffsetFile) Name() string       { return o.name }
func (o *OffsetFile) Size() int64        { return o.size }
func (o *OffsetFile) ContainingDir() Dir { return o.parent }
func (o *OffsetFile) FullPath() string   { return joinPath(o.parent, o.name) }
func (o *OffsetFile) setParent(d Dir)    { o.parent = d }

// Base returns the underlying file and the window offset.
func (o *OffsetFile) Base() (File, int64) { return o.base, o.off }

func (o *OffsetFile) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off >= o.size {
		return 0, io.EOF
	}
	want := len(p)
	if rem := o.size - off; int64(want) > rem {
		p = p[:rem]
	}
	n, err := o.base.ReadAt(p, o.off+off)
	if err == nil && n < want {
		err = io.EOF
	}
	return n, err
}

// MemDir is an immutable in-memory directory.
type MemDir struct {
	name    string
	files   []File
	subdirs []Dir
	parent  Dir
}

// NewMemDir builds a directory, adopting files and subdirectories that came
// from this package.
func NewMemDir(name string, files []File, subdirs []Dir) *MemDir {
	d := &MemDir{name: name, files: files, subdirs: subdirs}
	for _, f := range files {
		if p, ok := f.(parented); ok {
			p.setParent(d)
		}
	}
	for _, s := range subdirs {
		if p, ok := s.(parented); ok {
			p.setParent(d)
		}
	}
	return d
}

func (m *MemDir) Name() string     { return m.name }
func (m *MemDir) Parent() Dir      { return m.parent }
func (m *MemDir) FullPath() string { return joinPath(m.parent, m.name) }
func (m *MemDir) Files() []File    { return m.files }
func (m *MemDir) Subdirs() []Dir   { return m.subdirs }
func (m *MemDir) setParent(d Dir)  { m.parent = d }

func (m *MemDir) File(name string) File {
	for _, f := range m.files {
		if f.Name() == name {
			return f
		}
	}
	return nil
}

func (m *MemDir) Subdir(name string) Dir {
	for _, s := range m.subdirs {
		if s.Name() == name {
			return s
		}
	}
	return nil
}
