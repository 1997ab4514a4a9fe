package loader

import (
	"github.com/pierrec/lz4/v4"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/lunixbochs/nxcorn/go/filesys"
	"github.com/lunixbochs/nxcorn/go/models"
	"github.com/lunixbochs/nxcorn/go/vfs"
)

var nsoMagic = []byte("NSO0")

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

type nsoSegment struct {
	name                     string
	off, addr, size, fileLen uint32
	prot                     int
}

func (h *nsoHeader) segments() []nsoSegment {
	return []nsoSegment{
		{".text", h.TextOff, h.TextAddr, h.TextSize, h.TextFileSize, models.PROT_READ | models.PROT_EXEC},
		{".rodata", h.RoOff, h.RoAddr, h.RoSize, h.RoFileSize, models.PROT_READ},
		{".data", h.DataOff, h.DataAddr, h.DataSize, h.DataFileSize, models.PROT_READ | models.PROT_WRITE},
	}
}

// IdentifyNSO matches the NSO0 magic.
func IdentifyNSO(f vfs.File) models.FileType {
	if filesys.MagicAt(f, 0, nsoMagic) {
		return models.FileTypeNSO
	}
	return models.FileTypeError
}

// ReadNSO decodes an NSO into a module image based at zero.
func ReadNSO(f vfs.File) (*models.CodeSet, error) {
	if f == nil {
		return nil, models.StatusErr(models.ErrorNullFile, nil)
	}
	var hdr nsoHeader
	if err := readHeader(f, &hdr); err != nil {
		return nil, models.StatusErr(models.ErrorLoadingNSO, err)
	}
	if string(hdr.Magic[:]) != string(nsoMagic) {
		return nil, models.StatusErr(models.ErrorLoadingNSO, errors.New("bad NSO magic"))
	}
	var img image
	for i, seg := range hdr.segments() {
		if seg.size > maxSegmentSize {
			return nil, models.StatusErr(models.ErrorLoadingNSO, errors.Errorf("%s: segment too large", seg.name))
		}
		if err := checkSpan(seg.name, uint64(seg.addr), uint64(seg.size)); err != nil {
			return nil, models.StatusErr(models.ErrorLoadingNSO, err)
		}
		compressed := hdr.Flags&(1<<uint(i)) != 0
		stored := seg.size
		if compressed {
			stored = seg.fileLen
			// an LZ4 block expands at most 255 times
			if uint64(seg.size) > uint64(stored)*255+16 {
				return nil, models.StatusErr(models.ErrorLoadingNSO, errors.Errorf("%s: %#x bytes cannot expand to %#x", seg.name, stored, seg.size))
			}
		}
		raw, err := vfs.ReadBytes(f, int64(seg.off), int64(stored))
		if err != nil {
			return nil, models.StatusErr(models.ErrorLoadingNSO, err)
		}
		data := raw
		if compressed {
			data = make([]byte, seg.size)
			n, err := lz4.UncompressBlock(raw, data)
			if err != nil {
				return nil, models.StatusErr(models.ErrorLoadingNSO, errors.Wrapf(err, "%s: lz4", seg.name))
			}
			if n != int(seg.size) {
				return nil, models.StatusErr(models.ErrorLoadingNSO, errors.Errorf("%s: decompressed %#x of %#x bytes", seg.name, n, seg.size))
			}
		}
		img.place(seg.name, uint64(seg.addr), data, seg.prot)
	}
	if err := checkSpan(".bss", uint64(len(img.cs.Memory)), uint64(hdr.BSSSize)); err != nil {
		return nil, models.StatusErr(models.ErrorLoadingNSO, err)
	}
	img.addBSS(uint64(hdr.BSSSize))
	return img.codeSet(f.Name()), nil
}

// loadNSO maps the NSO in f at base and returns the address following it.
func loadNSO(p models.Process, f vfs.File, base uint64) (uint64, error) {
	cs, err := ReadNSO(f)
	if err != nil {
		return 0, err
	}
	if err := p.LoadModule(cs, base); err != nil {
		return 0, models.StatusErr(models.ErrorLoadingNSO, err)
	}
	next := base + cs.ImageSize()
	log.Debug().Str("module", f.Name()).Str("base", hexAddr(base)).Str("end", hexAddr(next)).Msg("loaded module")
	return next, nil
}

// NsoLoader loads a single NSO as the only module of a default process.
type NsoLoader struct {
	LoaderBase
}

// NewNsoLoader binds an NsoLoader to f.
func NewNsoLoader(f vfs.File, opts *Options) models.Loader {
	return &NsoLoader{LoaderBase: LoaderBase{file: f}}
}

func (l *NsoLoader) FileType() models.FileType { return models.FileTypeNSO }

func (l *NsoLoader) Load(p models.Process) models.ResultStatus {
	if l.loaded {
		return models.ErrorAlreadyLoaded
	}
	cs, err := ReadNSO(l.file)
	if err != nil {
		return l.finish(err, models.ErrorLoadingNSO)
	}
	return l.finish(loadExecutable(p, models.DefaultMetadata(), cs), models.ErrorLoadingNSO)
}

func (l *NsoLoader) Is64Bit() (bool, models.ResultStatus) { return true, models.Success }
