package filesys

import (
	"github.com/pkg/errors"

	"github.com/lunixbochs/nxcorn/go/models"
	"github.com/lunixbochs/nxcorn/go/vfs"
)

const romfsEmpty = 0xffffffff

// maximum directory nesting followed when extracting a RomFS
const romfsMaxDepth = 64

type romfsHeader struct {
	HeaderSize   uint64
	DirHashOff   uint64
	DirHashSize  uint64
	DirMetaOff   uint64
	DirMetaSize  uint64
	FileHashOff  uint64
	FileHashSize uint64
	FileMetaOff  uint64
	FileMetaSize uint64
	DataOff      uint64
}

type romfsDirEntry struct {
	Parent    uint32
	Sibling   uint32
	ChildDir  uint32
	ChildFile uint32
	Hash      uint32
	NameSize  uint32
}

type romfsFileEntry struct {
	Parent   uint32
	Sibling  uint32
	DataOff  uint64
	DataSize uint64
	Hash     uint32
	NameSize uint32
}

var ErrRomFSLoop = errors.New("romfs: entry loop")

type romfsReader struct {
	f        vfs.File
	hdr      romfsHeader
	dirMeta  vfs.File
	fileMeta vfs.File
	seen     map[uint64]bool
}

// ExtractRomFS returns the directory tree stored in a RomFS image. File
// contents are windows of f.
func ExtractRomFS(f vfs.File) (vfs.Dir, error) {
	if f == nil {
		return nil, models.StatusErr(models.ErrorNullFile, nil)
	}
	r := &romfsReader{f: f, seen: make(map[uint64]bool)}
	if _, err := unpackFile(f, &r.hdr, 0); err != nil {
		return nil, err
	}
	h := &r.hdr
	size := uint64(f.Size())
	for _, span := range [][2]uint64{
		{h.DirMetaOff, h.DirMetaSize},
		{h.FileMetaOff, h.FileMetaSize},
	} {
		if span[0] > size || span[1] > size-span[0] {
			return nil, errors.Errorf("romfs: metadata table [%#x, +%#x) outside image", span[0], span[1])
		}
	}
	if h.DataOff > size {
		return nil, errors.Errorf("romfs: data offset %#x outside image", h.DataOff)
	}
	r.dirMeta = vfs.Section(f, "dirmeta", int64(h.DirMetaOff), int64(h.DirMetaSize))
	r.fileMeta = vfs.Section(f, "filemeta", int64(h.FileMetaOff), int64(h.FileMetaSize))
	return r.dir(0, "", 0)
}

func (r *romfsReader) name(meta vfs.File, off int64, n uint32) (string, error) {
	p, err := vfs.ReadBytes(meta, off, int64(n))
	if err != nil {
		return "", err
	}
	return string(p), nil
}

func (r *romfsReader) dir(off uint32, name string, depth int) (*vfs.MemDir, error) {
	if depth > romfsMaxDepth {
		return nil, errors.Wrap(ErrRomFSLoop, "romfs: directories nested too deep")
	}
	var e romfsDirEntry
	size, err := unpackFile(r.dirMeta, &e, int64(off))
	if err != nil {
		return nil, err
	}
	if depth > 0 {
		if name, err = r.name(r.dirMeta, int64(off)+int64(size), e.NameSize); err != nil {
			return nil, err
		}
	}

	var files []vfs.File
	for fo := e.ChildFile; fo != romfsEmpty; {
		if err := r.visit(1, fo); err != nil {
			return nil, err
		}
		var fe romfsFileEntry
		n, err := unpackFile(r.fileMeta, &fe, int64(fo))
		if err != nil {
			return nil, err
		}
		fname, err := r.name(r.fileMeta, int64(fo)+int64(n), fe.NameSize)
		if err != nil {
			return nil, err
		}
		start := r.hdr.DataOff + fe.DataOff
		if start < r.hdr.DataOff || start > uint64(r.f.Size()) || fe.DataSize > uint64(r.f.Size())-start {
			return nil, errors.Errorf("romfs: %s data outside image", fname)
		}
		files = append(files, vfs.Section(r.f, fname, int64(start), int64(fe.DataSize)))
		fo = fe.Sibling
	}

	var subdirs []vfs.Dir
	for do := e.ChildDir; do != romfsEmpty; {
		if err := r.visit(0, do); err != nil {
			return nil, err
		}
		sub, err := r.dir(do, "", depth+1)
		if err != nil {
			return nil, err
		}
		subdirs = append(subdirs, sub)
		var se romfsDirEntry
		if _, err := unpackFile(r.dirMeta, &se, int64(do)); err != nil {
			return nil, err
		}
		do = se.Sibling
	}
	return vfs.NewMemDir(name, files, subdirs), nil
}

// visit marks an entry of table kind as walked, failing on revisits.
func (r *romfsReader) visit(kind uint64, off uint32) error {
	key := kind<<32 | uint64(off)
	if r.seen[key] {
		return errors.Wrapf(ErrRomFSLoop, "offset %#x", off)
	}
	r.seen[key] = true
	return nil
}
