package testutil

import (
	"bytes"
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

func partition(magic string, files []Entry) []byte {
	var strtab []byte
	var offs []uint32
	for _, f := range files {
		offs = append(offs, uint32(len(strtab)))
		strtab = append(append(strtab, f.Name...), 0)
	}
	strtab = pad(strtab, 0x10)

	var b bytes.Buffer
	hdr := pfsHeader{NumEntries: uint32(len(files)), StringTableSize: uint32(len(strtab))}
	copy(hdr.Magic[:], magic)
	pack(&b, &hdr)
	var off uint64
	for i, f := range files {
		if magic == "HFS0" {
			pack(&b, &hfsEntry{Offset: off, Size: uint64(len(f.Data)), StrOffset: offs[i]})
		} else {
			pack(&b, &pfsEntry{Offset: off, Size: uint64(len(f.Data)), StrOffset: offs[i]})
		}
		off += uint64(len(f.Data))
	}
	b.Write(strtab)
	for _, f := range files {
		b.Write(f.Data)
	}
	return b.Bytes()
}

// PFS0 builds a partition filesystem image.
func PFS0(files ...Entry) []byte { return partition("PFS0", files) }

// HFS0 builds a hashed partition filesystem image. Hashes are left zero.
func HFS0(files ...Entry) []byte { return partition("HFS0", files) }

// RomFSDir is a directory of a RomFS fixture.
type RomFSDir struct {
	Name  string
	Files []Entry
	Dirs  []*RomFSDir
}

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

const romfsEmpty = 0xffffffff

// RomFS builds a RomFS image of root. Hash tables are left empty.
func RomFS(root *RomFSDir) []byte {
	// assign metadata offsets in pre-order
	dirOff := map[*RomFSDir]uint32{}
	fileOff := map[*RomFSDir][]uint32{}
	var dirs []*RomFSDir
	var dirCur, fileCur uint32
	var walk func(d *RomFSDir)
	walk = func(d *RomFSDir) {
		dirOff[d] = dirCur
		dirs = append(dirs, d)
		name := d.Name
		if d == root {
			name = ""
		}
		dirCur += uint32(0x18 + align(len(name), 4))
		for _, f := range d.Files {
			fileOff[d] = append(fileOff[d], fileCur)
			fileCur += uint32(0x20 + align(len(f.Name), 4))
		}
		for _, s := range d.Dirs {
			walk(s)
		}
	}
	walk(root)

	parents := map[*RomFSDir]*RomFSDir{}
	for _, d := range dirs {
		for _, s := range d.Dirs {
			parents[s] = d
		}
	}

	var data bytes.Buffer
	var dirMeta, fileMeta bytes.Buffer
	for _, d := range dirs {
		e := romfsDirEntry{Sibling: romfsEmpty, ChildDir: romfsEmpty, ChildFile: romfsEmpty}
		name := d.Name
		if p := parents[d]; p != nil {
			e.Parent = dirOff[p]
			for i, s := range p.Dirs {
				if s == d && i+1 < len(p.Dirs) {
					e.Sibling = dirOff[p.Dirs[i+1]]
				}
			}
		} else {
			name = ""
		}
		if len(d.Dirs) > 0 {
			e.ChildDir = dirOff[d.Dirs[0]]
		}
		if len(d.Files) > 0 {
			e.ChildFile = fileOff[d][0]
		}
		e.NameSize = uint32(len(name))
		pack(&dirMeta, &e)
		dirMeta.Write(pad([]byte(name), 4))

		for i, f := range d.Files {
			fe := romfsFileEntry{
				Parent:   dirOff[d],
				Sibling:  romfsEmpty,
				DataOff:  uint64(data.Len()),
				DataSize: uint64(len(f.Data)),
				NameSize: uint32(len(f.Name)),
			}
			if i+1 < len(d.Files) {
				fe.Sibling = fileOff[d][i+1]
			}
			pack(&fileMeta, &fe)
			fileMeta.Write(pad([]byte(f.Name), 4))
			data.Write(pad(append([]byte(nil), f.Data...), 0x10))
		}
	}

	const dataOff = 0x200
	dirMetaOff := align(dataOff+data.Len(), 4)
	fileMetaOff := dirMetaOff + dirMeta.Len()
	hdr := romfsHeader{
		HeaderSize:   0x50,
		DirHashOff:   uint64(dirMetaOff),
		DirMetaOff:   uint64(dirMetaOff),
		DirMetaSize:  uint64(dirMeta.Len()),
		FileHashOff:  uint64(fileMetaOff),
		FileMetaOff:  uint64(fileMetaOff),
		FileMetaSize: uint64(fileMeta.Len()),
		DataOff:      dataOff,
	}
	out := make([]byte, fileMetaOff+fileMeta.Len())
	packAt(out, 0, &hdr)
	copy(out[dataOff:], data.Bytes())
	copy(out[dirMetaOff:], dirMeta.Bytes())
	copy(out[fileMetaOff:], fileMeta.Bytes())
	return out
}

// NCA section filesystem and encryption types.
const (
	NCARomFS = 0
	NCAPFS0  = 1

	NCAEncryptionNone = 1
	NCAEncryptionCTR  = 3
)

// NCA content types.
const (
	NCAProgram = 0
	NCAMeta    = 1
	NCAControl = 2
)

// NCASection is one filesystem section of an NCA fixture.
type NCASection struct {
	FilesystemType uint8
	// Encryption defaults to none.
	Encryption uint8
	Data       []byte
}

// NCA describes a plaintext content archive fixture.
type NCA struct {
	Magic       string
	ContentType uint8
	TitleID     uint64
	CryptoType  uint8
	RightsID    [0x10]byte
	Sections    []NCASection
}

type ncaHeader struct {
	Signature1       [0x100]byte
	Signature2       [0x100]byte
	Magic            [4]byte
	DistributionType uint8
	ContentType      uint8
	CryptoType       uint8
	KeyIndex         uint8
	Size             uint64
	TitleID          uint64
	ContentIndex     uint32
	SDKVersion       uint32
	CryptoType2      uint8
	Padding          [0xf]byte
	RightsID         [0x10]byte
}

type ncaSectionEntry struct {
	MediaStart uint32
	MediaEnd   uint32
	Unknown    [8]byte
}

type ncaSectionHeader struct {
	Version        uint16
	FilesystemType uint8
	HashType       uint8
	EncryptionType uint8
	Padding        [3]byte
}

type pfsSuperblock struct {
	MasterHash    [0x20]byte
	BlockSize     uint32
	Always2       uint32
	HashTableOff  uint64
	HashTableSize uint64
	PFS0Off       uint64
	PFS0Size      uint64
}

type ivfcHeader struct {
	Magic          [4]byte
	MagicNumber    uint32
	MasterHashSize uint32
	NumLevels      uint32
}

type ivfcLevel struct {
	Offset    uint64
	Size      uint64
	BlockLog2 uint32
	Reserved  uint32
}

// Build returns the archive image with its header in plaintext.
func (n *NCA) Build() []byte {
	out := make([]byte, 0xc00)
	off := 0xc00
	for i, s := range n.Sections {
		data := pad(append([]byte(nil), s.Data...), 0x200)
		packAt(out, 0x240+i*0x10, &ncaSectionEntry{
			MediaStart: uint32(off / 0x200),
			MediaEnd:   uint32((off + len(data)) / 0x200),
		})
		enc := s.Encryption
		if enc == 0 {
			enc = NCAEncryptionNone
		}
		shOff := 0x400 + i*0x200
		sh := ncaSectionHeader{Version: 2, FilesystemType: s.FilesystemType, EncryptionType: enc}
		if s.FilesystemType == NCAPFS0 {
			sh.HashType = 2
			packAt(out, shOff, &sh)
			packAt(out, shOff+8, &pfsSuperblock{BlockSize: 0x1000, Always2: 2, PFS0Size: uint64(len(s.Data))})
		} else {
			sh.HashType = 3
			packAt(out, shOff, &sh)
			packAt(out, shOff+8, &ivfcHeader{Magic: [4]byte{'I', 'V', 'F', 'C'}, MagicNumber: 0x20000, NumLevels: 7})
			packAt(out, shOff+8+0x10+5*0x18, &ivfcLevel{Size: uint64(len(s.Data)), BlockLog2: 0xe})
		}
		out = append(out, data...)
		off += len(data)
	}
	magic := n.Magic
	if magic == "" {
		magic = "NCA3"
	}
	hdr := ncaHeader{
		ContentType: n.ContentType,
		CryptoType:  n.CryptoType,
		Size:        uint64(len(out)),
		TitleID:     n.TitleID,
		RightsID:    n.RightsID,
	}
	copy(hdr.Magic[:], magic)
	packAt(out, 0, &hdr)
	return out
}

type xciHeader struct {
	Signature      [0x100]byte
	Magic          [4]byte
	Reserved       [0x2c]byte
	HFS0Offset     uint64
	HFS0HeaderSize uint64
}

// XCI builds a game card image whose root partition holds the given
// partitions, each stored as HFS0.
func XCI(partitions ...Entry) []byte {
	var root []Entry
	for _, p := range partitions {
		root = append(root, Entry{Name: p.Name, Data: p.Data})
	}
	out := make([]byte, 0x200)
	hfs := HFS0(root...)
	hdr := xciHeader{HFS0Offset: 0x200, HFS0HeaderSize: uint64(len(hfs))}
	copy(hdr.Magic[:], "HEAD")
	packAt(out, 0, &hdr)
	return append(out, hfs...)
}

// Partition wraps files into a named HFS0 partition for XCI.
func Partition(name string, files ...Entry) Entry {
	return Entry{Name: name, Data: HFS0(files...)}
}

type naxHeader struct {
	HMAC     [0x20]byte
	Magic    [8]byte
	KeyArea  [0x20]byte
	FileSize uint64
	Padding  [0x30]byte
}

// NAX builds an SD card wrapper declaring fileSize bytes of payload.
func NAX(fileSize uint64, payload []byte) []byte {
	out := make([]byte, 0x4000)
	hdr := naxHeader{FileSize: fileSize}
	copy(hdr.Magic[:], "NAX0")
	packAt(out, 0, &hdr)
	return append(out, payload...)
}
