package loader

import (
	"github.com/pkg/errors"

	"github.com/lunixbochs/nxcorn/go/filesys"
	"github.com/lunixbochs/nxcorn/go/models"
	"github.com/lunixbochs/nxcorn/go/vfs"
)

var kipMagic = []byte("KIP1")

const kipHeaderSize = 0x100

var kipSectionNames = [3]string{".text", ".rodata", ".data"}

type kipHeader struct {
	Magic    [4]byte
	Name     [0xc]byte
	TitleID  uint64
	Category uint32
	Priority uint8
	Core     uint8
	Reserved uint8
	Flags    uint8
	// six {offset, decompressed size, compressed size, attribute} records
	Sections [6 * 4]uint32
	Caps     [0x20]uint32
}

func (h *kipHeader) section(i int) (offset, size, stored, attr uint32) {
	s := h.Sections[i*4 : i*4+4]
	return s[0], s[1], s[2], s[3]
}

// KIP is a parsed initial process binary with its sections expanded.
type KIP struct {
	header   kipHeader
	sections [3][]byte
}

// IdentifyKIP matches the KIP1 magic.
func IdentifyKIP(f vfs.File) models.FileType {
	if filesys.MagicAt(f, 0, kipMagic) {
		return models.FileTypeKIP
	}
	return models.FileTypeError
}

// ParseKIP reads the header and decompresses the text, rodata and data
// sections.
func ParseKIP(f vfs.File) (*KIP, error) {
	if f == nil {
		return nil, models.StatusErr(models.ErrorNullFile, nil)
	}
	k := &KIP{}
	if err := readHeader(f, &k.header); err != nil {
		return nil, models.StatusErr(models.ErrorBadKIPHeader, err)
	}
	if string(k.header.Magic[:]) != string(kipMagic) {
		return nil, models.StatusErr(models.ErrorBadKIPHeader, nil)
	}
	off := int64(kipHeaderSize)
	for i := range k.sections {
		_, size, stored, _ := k.header.section(i)
		if size > maxSegmentSize {
			return nil, models.StatusErr(models.ErrorBadKIPHeader, errors.Errorf("section %d too large", i))
		}
		raw, err := vfs.ReadBytes(f, off, int64(stored))
		if err != nil {
			return nil, models.StatusErr(models.ErrorBadKIPHeader, err)
		}
		off += int64(stored)
		if k.header.Flags&(1<<uint(i)) != 0 {
			if raw, err = DecompressBLZ(raw); err != nil {
				return nil, models.StatusErr(models.ErrorBLZDecompressionFailed, err)
			}
			if len(raw) != int(size) {
				return nil, models.StatusErr(models.ErrorBLZDecompressionFailed, errors.Errorf("section %d: %#x bytes, want %#x", i, len(raw), size))
			}
		}
		offset, _, _, _ := k.header.section(i)
		if err := checkSpan(kipSectionNames[i], uint64(offset), uint64(len(raw))); err != nil {
			return nil, models.StatusErr(models.ErrorBadKIPHeader, err)
		}
		k.sections[i] = raw
	}
	end := uint64(0)
	for i, raw := range k.sections {
		offset, _, _, _ := k.header.section(i)
		end = max(end, uint64(offset)+uint64(len(raw)))
	}
	_, bss, _, _ := k.header.section(3)
	if err := checkSpan(".bss", end, uint64(bss)); err != nil {
		return nil, models.StatusErr(models.ErrorBadKIPHeader, err)
	}
	return k, nil
}

func (k *KIP) Name() string    { return cstring(k.header.Name[:]) }
func (k *KIP) TitleID() uint64 { return k.header.TitleID }
func (k *KIP) Is64Bit() bool   { return k.header.Flags&(1<<3) != 0 }
func (k *KIP) Is39Bit() bool   { return k.header.Flags&(1<<4) != 0 }

func (k *KIP) MainThreadStackSize() uint32 {
	_, _, _, attr := k.header.section(1)
	return attr
}

// KernelCapabilities returns the capability descriptors, dropping unused
// all-ones slots.
func (k *KIP) KernelCapabilities() []uint32 {
	var caps []uint32
	for _, c := range k.header.Caps {
		if c != 0xffffffff {
			caps = append(caps, c)
		}
	}
	return caps
}

func (k *KIP) Metadata() models.ProgramMetadata {
	space := models.AddressSpace32Bit
	if k.Is64Bit() {
		space = models.AddressSpace36Bit
		if k.Is39Bit() {
			space = models.AddressSpace39Bit
		}
	}
	return models.ProgramMetadata{
		Name:               k.Name(),
		TitleID:            k.TitleID(),
		Is64Bit:            k.Is64Bit(),
		AddressSpace:       space,
		MainThreadPriority: k.header.Priority,
		MainThreadCore:     k.header.Core,
		MainStackSize:      k.MainThreadStackSize(),
		ProcessCategory:    k.header.Category,
		FilesystemAccess:   ^uint64(0),
		KernelCapabilities: k.KernelCapabilities(),
	}
}

// CodeSet lays the sections out at their recorded offsets followed by bss.
func (k *KIP) CodeSet() *models.CodeSet {
	var img image
	prots := []int{models.PROT_READ | models.PROT_EXEC, models.PROT_READ, models.PROT_READ | models.PROT_WRITE}
	for i, name := range kipSectionNames {
		offset, _, _, _ := k.header.section(i)
		img.place(name, uint64(offset), k.sections[i], prots[i])
	}
	_, bss, _, _ := k.header.section(3)
	img.addBSS(uint64(bss))
	return img.codeSet(k.Name())
}

// KipLoader loads an initial process binary using the metadata in its
// own header.
type KipLoader struct {
	LoaderBase
	kip *KIP
	err error
}

// NewKipLoader parses f up front; header errors surface from every method.
func NewKipLoader(f vfs.File, opts *Options) models.Loader {
	l := &KipLoader{LoaderBase: LoaderBase{file: f}}
	l.kip, l.err = ParseKIP(f)
	return l
}

func (l *KipLoader) FileType() models.FileType { return models.FileTypeKIP }

func (l *KipLoader) Load(p models.Process) models.ResultStatus {
	if l.loaded {
		return models.ErrorAlreadyLoaded
	}
	if l.err != nil {
		return l.finish(l.err, models.ErrorBadKIPHeader)
	}
	return l.finish(loadExecutable(p, l.kip.Metadata(), l.kip.CodeSet()), models.ErrorBadKIPHeader)
}

func (l *KipLoader) ReadProgramID() (uint64, models.ResultStatus) {
	if l.err != nil {
		return 0, models.StatusOf(l.err, models.ErrorBadKIPHeader)
	}
	return l.kip.TitleID(), models.Success
}

func (l *KipLoader) ReadTitle() (string, models.ResultStatus) {
	if l.err != nil {
		return "", models.StatusOf(l.err, models.ErrorBadKIPHeader)
	}
	return l.kip.Name(), models.Success
}

func (l *KipLoader) Is64Bit() (bool, models.ResultStatus) {
	if l.err != nil {
		return false, models.StatusOf(l.err, models.ErrorBadKIPHeader)
	}
	return l.kip.Is64Bit(), models.Success
}
