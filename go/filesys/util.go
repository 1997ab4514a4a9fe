// Package filesys parses the container formats executables are shipped in:
// partition filesystems, content archives, game card images and the metadata
// files inside them.
package filesys

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/lunixbochs/struc"
	"github.com/pkg/errors"

	"github.com/lunixbochs/nxcorn/go/vfs"
)

func unpackAt(r io.ReaderAt, i interface{}, at int64) (int, error) {
	size, err := struc.Sizeof(i)
	if err != nil {
		return 0, err
	}
	if err := struc.UnpackWithOrder(io.NewSectionReader(r, at, int64(size)), i, binary.LittleEndian); err != nil {
		return 0, errors.Wrap(err, "unpack failed")
	}
	return size, nil
}

// unpackFile unpacks a header at off, failing if it would run past the end
// of f.
func unpackFile(f vfs.File, i interface{}, off int64) (int, error) {
	size, err := struc.Sizeof(i)
	if err != nil {
		return 0, err
	}
	if off < 0 || off+int64(size) > f.Size() {
		return 0, errors.Wrapf(vfs.ErrShortRead, "%s: header at %#x", f.Name(), off)
	}
	return unpackAt(f, i, off)
}

// MagicAt reports whether f holds magic at off.
func MagicAt(f vfs.File, off int64, magic []byte) bool {
	if f == nil || off < 0 || off+int64(len(magic)) > f.Size() {
		return false
	}
	p := make([]byte, len(magic))
	n, _ := f.ReadAt(p, off)
	return n == len(p) && bytes.Equal(p, magic)
}

// cstring trims a NUL-padded field.
func cstring(p []byte) string {
	if i := bytes.IndexByte(p, 0); i >= 0 {
		p = p[:i]
	}
	return string(p)
}
