package testutil

import (
	"bytes"
	"debug/elf"

	"github.com/pierrec/lz4/v4"
)

type nsoHeader struct {
	Magic          [4]byte
	Version        uint32
	Reserved       uint32
	Flags          uint32
	TextOff        uint32
	TextAddr       uint32
	TextSize       uint32
	ModuleNameOff  uint32
	RoOff          uint32
	RoAddr         uint32
	RoSize         uint32
	ModuleNameSize uint32
	DataOff        uint32
	DataAddr       uint32
	DataSize       uint32
	BSSSize        uint32
	BuildID        [0x20]byte
	TextFileSize   uint32
	RoFileSize     uint32
	DataFileSize   uint32
	Reserved2      [0x1c]byte
	APIInfoOff     uint32
	APIInfoSize    uint32
	DynStrOff      uint32
	DynStrSize     uint32
	DynSymOff      uint32
	DynSymSize     uint32
	Hashes         [0x60]byte
}

// Program is the three loadable segments of an executable fixture.
type Program struct {
	Text, RoData, Data []byte
	BSS                uint32
}

// Sample returns a small program with recognizable segment contents.
func Sample() Program {
	return Program{
		Text:   bytes.Repeat([]byte{0x1f, 0x20, 0x03, 0xd5}, 0x400),
		RoData: bytes.Repeat([]byte("rodata\x00\x00"), 0x80),
		Data:   bytes.Repeat([]byte{0xda}, 0x100),
		BSS:    0x2000,
	}
}

// NSO builds an NSO with segments laid out page-aligned in memory. With
// compress set, every segment LZ4 can shrink is stored compressed.
func NSO(p Program, compress bool) []byte {
	segs := [][]byte{p.Text, p.RoData, p.Data}
	var addrs [3]uint32
	var addr uint32
	for i, s := range segs {
		addrs[i] = addr
		addr = uint32(align(int(addr)+len(s), 0x1000))
	}

	hdr := nsoHeader{
		TextAddr: addrs[0], TextSize: uint32(len(p.Text)),
		RoAddr: addrs[1], RoSize: uint32(len(p.RoData)),
		DataAddr: addrs[2], DataSize: uint32(len(p.Data)),
		BSSSize: p.BSS,
	}
	copy(hdr.Magic[:], "NSO0")
	copy(hdr.BuildID[:], "nxcorn-fixture")

	var body bytes.Buffer
	var offs, fileSizes [3]uint32
	for i, s := range segs {
		stored := s
		if compress {
			dst := make([]byte, lz4.CompressBlockBound(len(s)))
			n, err := lz4.CompressBlock(s, dst, nil)
			if err != nil {
				panic(err)
			}
			if n > 0 && n < len(s) {
				stored = dst[:n]
				hdr.Flags |= 1 << uint(i)
			}
		}
		offs[i] = uint32(0x100 + body.Len())
		fileSizes[i] = uint32(len(stored))
		body.Write(stored)
	}
	hdr.TextOff, hdr.RoOff, hdr.DataOff = offs[0], offs[1], offs[2]
	hdr.TextFileSize, hdr.RoFileSize, hdr.DataFileSize = fileSizes[0], fileSizes[1], fileSizes[2]

	var out bytes.Buffer
	pack(&out, &hdr)
	out.Write(body.Bytes())
	return out.Bytes()
}

type nroHeader struct {
	Start     uint32
	ModOffset uint32
	Padding   [8]byte
	Magic     [4]byte
	Version   uint32
	Size      uint32
	Flags     uint32
	TextOff   uint32
	TextSize  uint32
	RoOff     uint32
	RoSize    uint32
	DataOff   uint32
	DataSize  uint32
	BSSSize   uint32
	Reserved  uint32
	BuildID   [0x20]byte
	Reserved2 [0x20]byte
}

type asetHeader struct {
	Magic     [4]byte
	Version   uint32
	IconOff   uint64
	IconSize  uint64
	NACPOff   uint64
	NACPSize  uint64
	RomFSOff  uint64
	RomFSSize uint64
}

// Assets are the optional icon, control and RomFS sections of a homebrew
// executable.
type Assets struct {
	Icon, NACP, RomFS []byte
}

// NRO builds a homebrew executable, appending an asset section when assets
// is non-nil. The header sits inside the first page of text.
func NRO(p Program, assets *Assets) []byte {
	text := append(make([]byte, 0x80), p.Text...)
	textSize := align(len(text), 0x1000)
	roSize := align(len(p.RoData), 0x1000)
	dataSize := align(len(p.Data), 0x1000)
	image := make([]byte, textSize+roSize+dataSize)
	copy(image, text)
	copy(image[textSize:], p.RoData)
	copy(image[textSize+roSize:], p.Data)

	hdr := nroHeader{
		Size:     uint32(len(image)),
		TextOff:  0,
		TextSize: uint32(textSize),
		RoOff:    uint32(textSize),
		RoSize:   uint32(roSize),
		DataOff:  uint32(textSize + roSize),
		DataSize: uint32(dataSize),
		BSSSize:  p.BSS,
	}
	copy(hdr.Magic[:], "NRO0")
	packAt(image, 0, &hdr)
	if assets == nil {
		return image
	}

	var b bytes.Buffer
	off := uint64(0x38)
	aset := asetHeader{Version: 0}
	copy(aset.Magic[:], "ASET")
	aset.IconOff, aset.IconSize = off, uint64(len(assets.Icon))
	off += aset.IconSize
	aset.NACPOff, aset.NACPSize = off, uint64(len(assets.NACP))
	off += aset.NACPSize
	aset.RomFSOff, aset.RomFSSize = off, uint64(len(assets.RomFS))
	pack(&b, &aset)
	b.Write(assets.Icon)
	b.Write(assets.NACP)
	b.Write(assets.RomFS)
	return append(image, b.Bytes()...)
}

type kipHeader struct {
	Magic    [4]byte
	Name     [0xc]byte
	TitleID  uint64
	Category uint32
	Priority uint8
	Core     uint8
	Reserved uint8
	Flags    uint8
	Sections [6 * 4]uint32
	Caps     [0x20]uint32
}

// KIP describes an initial process fixture.
type KIP struct {
	Name      string
	TitleID   uint64
	Priority  uint8
	Core      uint8
	Is64Bit   bool
	Is39Bit   bool
	StackSize uint32
	Compress  bool
	Caps      []uint32
	Program
}

// Build returns the KIP image. Segments are placed page-aligned from 0.
func (k *KIP) Build() []byte {
	hdr := kipHeader{TitleID: k.TitleID, Priority: k.Priority, Core: k.Core}
	copy(hdr.Magic[:], "KIP1")
	copy(hdr.Name[:], k.Name)
	if k.Is64Bit {
		hdr.Flags |= 1 << 3
	}
	if k.Is39Bit {
		hdr.Flags |= 1 << 4
	}
	for i := range hdr.Caps {
		hdr.Caps[i] = 0xffffffff
	}
	copy(hdr.Caps[:], k.Caps)

	var body bytes.Buffer
	var addr uint32
	for i, s := range [][]byte{k.Text, k.RoData, k.Data} {
		stored := s
		if k.Compress {
			stored = BLZ(s)
			hdr.Flags |= 1 << uint(i)
		}
		hdr.Sections[i*4+0] = addr
		hdr.Sections[i*4+1] = uint32(len(s))
		hdr.Sections[i*4+2] = uint32(len(stored))
		body.Write(stored)
		addr = uint32(align(int(addr)+len(s), 0x1000))
	}
	hdr.Sections[1*4+3] = k.StackSize
	hdr.Sections[3*4+0] = addr
	hdr.Sections[3*4+1] = k.BSS

	var out bytes.Buffer
	pack(&out, &hdr)
	out.Write(body.Bytes())
	return out.Bytes()
}

// BLZ compresses d with the backwards LZ scheme used by KIPs. Leading bytes
// are left uncompressed until the rest can be decompressed in place. It
// panics if d does not compress, so fixtures should be repetitive.
func BLZ(d []byte) []byte {
	for k := 0; k < len(d); k++ {
		region, ok := blzEncode(d[k:])
		if !ok {
			continue
		}
		compressed := len(region) + 12
		if k+compressed >= len(d) {
			break
		}
		var footer bytes.Buffer
		pack(&footer, &struct {
			CompressedSize uint32
			HeaderSize     uint32
			AdditionalSize uint32
		}{uint32(compressed), 12, uint32(len(d) - k - compressed)})
		out := append([]byte(nil), d[:k]...)
		out = append(out, region...)
		return append(out, footer.Bytes()...)
	}
	panic("testutil: data does not compress")
}

// blzEncode returns the compressed region for d, and false when the decoder
// would overwrite stream bytes it has not read yet.
func blzEncode(d []byte) ([]byte, bool) {
	// stream bytes in the order the decoder reads them
	var r []byte
	// decoder position after each token
	type mark struct{ read, out int }
	var marks []mark
	p := len(d)
	for p > 0 {
		ctrl := len(r)
		r = append(r, 0)
		for i := 0; i < 8 && p > 0; i++ {
			size, ofs := blzMatch(d, p)
			if size >= 3 {
				r[ctrl] |= 0x80 >> uint(i)
				v := uint16(size-3)<<12 | uint16(ofs-3)
				r = append(r, byte(v>>8), byte(v))
				p -= size
			} else {
				r = append(r, d[p-1])
				p--
			}
			marks = append(marks, mark{len(r), p})
		}
	}
	for _, m := range marks {
		if m.out < len(r)-m.read {
			return nil, false
		}
	}
	region := make([]byte, len(r))
	for i, b := range r {
		region[len(r)-1-i] = b
	}
	return region, true
}

// blzMatch finds the longest back reference ending at p whose source has
// already been produced by the decoder.
func blzMatch(d []byte, p int) (size, ofs int) {
	maxSize := 18
	if p < maxSize {
		maxSize = p
	}
	for sz := maxSize; sz >= 3; sz-- {
		for o := sz; o <= 0x1002 && p-1+o < len(d); o++ {
			if bytes.Equal(d[p-sz:p], d[p-sz+o:p+o]) {
				return sz, o
			}
		}
	}
	return 0, 0
}

// ELFSegment is one PT_LOAD of an ELF fixture. A zero Memsz means
// len(Data).
type ELFSegment struct {
	Flags elf.ProgFlag
	Vaddr uint64
	Data  []byte
	Memsz uint64
}

// ELF builds a 64-bit executable with a single text segment at 0x1000.
func ELF(machine elf.Machine, text []byte) []byte {
	return ELFSegments(machine, 0x1000, ELFSegment{
		Flags: elf.PF_R | elf.PF_X,
		Vaddr: 0x1000,
		Data:  text,
		Memsz: uint64(len(text)) + 0x100,
	})
}

// ELFSegments builds a 64-bit executable from segs. File data starts at
// 0x1000 with each segment page-aligned.
func ELFSegments(machine elf.Machine, entry uint64, segs ...ELFSegment) []byte {
	const hdrSize, phSize = 64, 56
	hdr := elf.Header64{
		Type:      uint16(elf.ET_EXEC),
		Machine:   uint16(machine),
		Version:   uint32(elf.EV_CURRENT),
		Entry:     entry,
		Phoff:     hdrSize,
		Ehsize:    hdrSize,
		Phentsize: phSize,
		Phnum:     uint16(len(segs)),
	}
	copy(hdr.Ident[:], elf.ELFMAG)
	hdr.Ident[elf.EI_CLASS] = byte(elf.ELFCLASS64)
	hdr.Ident[elf.EI_DATA] = byte(elf.ELFDATA2LSB)
	hdr.Ident[elf.EI_VERSION] = byte(elf.EV_CURRENT)

	var b bytes.Buffer
	pack(&b, &hdr)
	offs := make([]int, len(segs))
	off := 0x1000
	for i, seg := range segs {
		offs[i] = off
		memsz := seg.Memsz
		if memsz == 0 {
			memsz = uint64(len(seg.Data))
		}
		pack(&b, &elf.Prog64{
			Type:   uint32(elf.PT_LOAD),
			Flags:  uint32(seg.Flags),
			Off:    uint64(off),
			Vaddr:  seg.Vaddr,
			Paddr:  seg.Vaddr,
			Filesz: uint64(len(seg.Data)),
			Memsz:  memsz,
			Align:  0x1000,
		})
		if i < len(segs)-1 {
			off += align(len(seg.Data), 0x1000)
		} else {
			off += len(seg.Data)
		}
	}
	out := make([]byte, off)
	copy(out, b.Bytes())
	for i, seg := range segs {
		copy(out[offs[i]:], seg.Data)
	}
	return out
}
