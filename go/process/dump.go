package process

import (
	"encoding/binary"
	"io"
	"strings"

	"github.com/golang/snappy"
	"github.com/lunixbochs/struc"
	"github.com/pkg/errors"

	"github.com/lunixbochs/nxcorn/go/models"
)

const DumpMagic = "NXIM"

const maxDumpModule = 1 << 32

// DumpHeader starts an image dump. The module table follows it, then a
// snappy stream of module memory.
type DumpHeader struct {
	Magic   string `struc:"[4]byte"`
	Version uint32

	Name         string `struc:"[32]byte"`
	TitleID      uint64
	Is64Bit      bool
	AddressSpace uint8
	Priority     uint8
	Pad          uint8
	Entry        uint64
	StackSize    uint64
	NumModules   uint32
}

// moduleHeader is followed by NumSegments segment headers.
type moduleHeader struct {
	Name        string `struc:"[32]byte"`
	Base        uint64
	Size        uint64
	NumSegments uint32
}

type segmentHeader struct {
	Addr uint64
	Size uint64
	Prot uint32
}

var order = &struc.Options{Order: binary.LittleEndian}

// Dump writes the image: the header and module table uncompressed, then
// each module's memory in address order through snappy.
func (i *Image) Dump(w io.Writer) error {
	if i.main == nil {
		return errors.New("process is not running")
	}
	hdr := &DumpHeader{
		Magic:        DumpMagic,
		Version:      1,
		Name:         i.meta.Name,
		TitleID:      i.meta.TitleID,
		Is64Bit:      i.meta.Is64Bit,
		AddressSpace: uint8(i.meta.AddressSpace),
		Priority:     i.main.Priority,
		Entry:        i.main.Entry,
		StackSize:    i.main.StackSize,
		NumModules:   uint32(len(i.modules)),
	}
	if err := struc.PackWithOptions(w, hdr, order); err != nil {
		return errors.Wrap(err, "failed to pack header")
	}
	for _, m := range i.modules {
		mh := &moduleHeader{Name: m.Name, Base: m.Base, Size: m.Size, NumSegments: uint32(len(m.Segments))}
		if err := struc.PackWithOptions(w, mh, order); err != nil {
			return errors.Wrap(err, "failed to pack module header")
		}
		for _, s := range m.Segments {
			sh := &segmentHeader{Addr: s.Addr, Size: s.Size, Prot: uint32(s.Prot)}
			if err := struc.PackWithOptions(w, sh, order); err != nil {
				return errors.Wrap(err, "failed to pack segment header")
			}
		}
	}
	zw := snappy.NewBufferedWriter(w)
	for _, m := range i.modules {
		if _, err := zw.Write(m.Memory); err != nil {
			return errors.Wrapf(err, "failed to write %s", m.Name)
		}
	}
	return errors.Wrap(zw.Close(), "failed to flush image")
}

// ReadDump reconstructs an Image written by Dump.
func ReadDump(r io.Reader) (*Image, error) {
	var hdr DumpHeader
	if err := struc.UnpackWithOptions(r, &hdr, order); err != nil {
		return nil, errors.Wrap(err, "failed to unpack header")
	}
	if hdr.Magic != DumpMagic {
		return nil, errors.New("invalid image dump magic")
	}
	img := &Image{
		meta: &models.ProgramMetadata{
			Name:               strings.TrimRight(hdr.Name, "\x00"),
			TitleID:            hdr.TitleID,
			Is64Bit:            hdr.Is64Bit,
			AddressSpace:       models.AddressSpace(hdr.AddressSpace),
			MainThreadPriority: hdr.Priority,
		},
		main: &MainThread{Entry: hdr.Entry, Priority: hdr.Priority, StackSize: hdr.StackSize},
	}
	for n := uint32(0); n < hdr.NumModules; n++ {
		var mh moduleHeader
		if err := struc.UnpackWithOptions(r, &mh, order); err != nil {
			return nil, errors.Wrap(err, "failed to unpack module header")
		}
		if mh.Size > maxDumpModule {
			return nil, errors.Errorf("module size %#x too large", mh.Size)
		}
		m := &Module{
			Name:   strings.TrimRight(mh.Name, "\x00"),
			Base:   mh.Base,
			Size:   mh.Size,
			Memory: make([]byte, mh.Size),
		}
		for k := uint32(0); k < mh.NumSegments; k++ {
			var s segmentHeader
			if err := struc.UnpackWithOptions(r, &s, order); err != nil {
				return nil, errors.Wrap(err, "failed to unpack segment header")
			}
			m.Segments = append(m.Segments, models.CodeSegment{Addr: s.Addr, Off: s.Addr - mh.Base, Size: s.Size, Prot: int(s.Prot)})
		}
		img.modules = append(img.modules, m)
	}
	zr := snappy.NewReader(r)
	for _, m := range img.modules {
		if _, err := io.ReadFull(zr, m.Memory); err != nil {
			return nil, errors.Wrapf(err, "failed to read %s", m.Name)
		}
	}
	return img, nil
}
