package filesys

import (
	"github.com/lunixbochs/struc"

	"github.com/lunixbochs/nxcorn/go/models"
	"github.com/lunixbochs/nxcorn/go/vfs"
)

var (
	PFS0Magic = []byte("PFS0")
	HFS0Magic = []byte("HFS0")
)

type pfsHeader struct {
	Magic           [4]byte
	NumEntries      uint32
	StringTableSize uint32
	Reserved        uint32
}

type pfsEntry struct {
	Offset    uint64
	Size      uint64
	StrOffset uint32
	Reserved  uint32
}

type hfsEntry struct {
	Offset         uint64
	Size           uint64
	StrOffset      uint32
	HashRegionSize uint32
	Reserved       uint64
	Hash           [0x20]byte
}

// PartitionFilesystem is a flat PFS0 or HFS0 archive.
type PartitionFilesystem struct {
	*vfs.MemDir
	Hashed bool
}

// ParsePartitionFilesystem reads a PFS0/HFS0 archive. Child files are windows
// of f and are never copied.
func ParsePartitionFilesystem(f vfs.File) (*PartitionFilesystem, error) {
	if f == nil {
		return nil, models.StatusErr(models.ErrorNullFile, nil)
	}
	var hdr pfsHeader
	hdrSize, err := unpackFile(f, &hdr, 0)
	if err != nil {
		return nil, models.StatusErr(models.ErrorBadPFSHeader, err)
	}
	magic := hdr.Magic[:]
	hashed := string(magic) == string(HFS0Magic)
	if !hashed && string(magic) != string(PFS0Magic) {
		return nil, models.StatusErr(models.ErrorBadPFSHeader, nil)
	}

	entrySize := 0
	if hashed {
		entrySize, _ = struc.Sizeof(&hfsEntry{})
	} else {
		entrySize, _ = struc.Sizeof(&pfsEntry{})
	}
	// computed in uint64 so a hostile entry count cannot wrap
	metaSize := uint64(hdrSize) + uint64(hdr.NumEntries)*uint64(entrySize) + uint64(hdr.StringTableSize)
	if metaSize > uint64(f.Size()) {
		return nil, models.StatusErr(models.ErrorIncorrectPFSFileSize, nil)
	}
	strtabOff := int64(hdrSize) + int64(hdr.NumEntries)*int64(entrySize)
	strtab, err := vfs.ReadBytes(f, strtabOff, int64(hdr.StringTableSize))
	if err != nil {
		return nil, models.StatusErr(models.ErrorIncorrectPFSFileSize, err)
	}
	contentOff := uint64(metaSize)

	files := make([]vfs.File, 0, hdr.NumEntries)
	for i := int64(0); i < int64(hdr.NumEntries); i++ {
		var off, size uint64
		var strOff uint32
		at := int64(hdrSize) + i*int64(entrySize)
		if hashed {
			var e hfsEntry
			if _, err := unpackAt(f, &e, at); err != nil {
				return nil, models.StatusErr(models.ErrorBadPFSHeader, err)
			}
			off, size, strOff = e.Offset, e.Size, e.StrOffset
		} else {
			var e pfsEntry
			if _, err := unpackAt(f, &e, at); err != nil {
				return nil, models.StatusErr(models.ErrorBadPFSHeader, err)
			}
			off, size, strOff = e.Offset, e.Size, e.StrOffset
		}
		if strOff >= uint32(len(strtab)) {
			return nil, models.StatusErr(models.ErrorBadPFSHeader, nil)
		}
		start := contentOff + off
		if start < contentOff || start+size < start || start+size > uint64(f.Size()) {
			return nil, models.StatusErr(models.ErrorIncorrectPFSFileSize, nil)
		}
		name := cstring(strtab[strOff:])
		files = append(files, vfs.Section(f, name, int64(start), int64(size)))
	}
	return &PartitionFilesystem{
		MemDir: vfs.NewMemDir(f.Name(), files, nil),
		Hashed: hashed,
	}, nil
}

// IsExtracted reports whether the partition is an ExeFS rather than a
// package of content archives.
func (p *PartitionFilesystem) IsExtracted() bool {
	return vfs.IsExeFS(p)
}
