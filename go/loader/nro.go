package loader

import (
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/lunixbochs/nxcorn/go/filesys"
	"github.com/lunixbochs/nxcorn/go/models"
	"github.com/lunixbochs/nxcorn/go/vfs"
)

var (
	nroMagic  = []byte("NRO0")
	asetMagic = []byte("ASET")
)

const nroMagicOff = 0x10

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

// IdentifyNRO matches the NRO0 magic in the header after the first branch.
func IdentifyNRO(f vfs.File) models.FileType {
	var hdr nroHeader
	if f == nil || readHeader(f, &hdr) != nil {
		return models.FileTypeError
	}
	if string(hdr.Magic[:]) == string(nroMagic) {
		return models.FileTypeNRO
	}
	return models.FileTypeError
}

// ReadNRO decodes an NRO into a module image based at zero.
func ReadNRO(f vfs.File) (*models.CodeSet, error) {
	if f == nil {
		return nil, models.StatusErr(models.ErrorNullFile, nil)
	}
	var hdr nroHeader
	if err := readHeader(f, &hdr); err != nil {
		return nil, models.StatusErr(models.ErrorLoadingNRO, err)
	}
	if string(hdr.Magic[:]) != string(nroMagic) {
		return nil, models.StatusErr(models.ErrorLoadingNRO, errors.New("bad NRO magic"))
	}
	var img image
	for _, seg := range []struct {
		name      string
		off, size uint32
		prot      int
	}{
		{".text", hdr.TextOff, hdr.TextSize, models.PROT_READ | models.PROT_EXEC},
		{".rodata", hdr.RoOff, hdr.RoSize, models.PROT_READ},
		{".data", hdr.DataOff, hdr.DataSize, models.PROT_READ | models.PROT_WRITE},
	} {
		if seg.size > maxSegmentSize {
			return nil, models.StatusErr(models.ErrorLoadingNRO, errors.Errorf("%s: segment too large", seg.name))
		}
		data, err := vfs.ReadBytes(f, int64(seg.off), int64(seg.size))
		if err != nil {
			return nil, models.StatusErr(models.ErrorLoadingNRO, err)
		}
		img.place(seg.name, uint64(seg.off), data, seg.prot)
	}
	if err := checkSpan(".bss", uint64(len(img.cs.Memory)), uint64(hdr.BSSSize)); err != nil {
		return nil, models.StatusErr(models.ErrorLoadingNRO, err)
	}
	img.addBSS(uint64(hdr.BSSSize))
	return img.codeSet(f.Name()), nil
}

// NroLoader loads homebrew executables, which may carry an asset section
// with an icon, control data and a RomFS after the image.
type NroLoader struct {
	LoaderBase
	control *controlSource
	romfs   vfs.File
}

// NewNroLoader binds an NroLoader to f and reads its assets, if any.
func NewNroLoader(f vfs.File, opts *Options) models.Loader {
	l := &NroLoader{LoaderBase: LoaderBase{file: f}, control: &controlSource{lang: opts.Language}}
	if f != nil {
		l.readAssets()
	}
	return l
}

func (l *NroLoader) readAssets() {
	var hdr nroHeader
	if readHeader(l.file, &hdr) != nil {
		return
	}
	off := int64(hdr.Size)
	if !filesys.MagicAt(l.file, off, asetMagic) {
		return
	}
	var aset asetHeader
	if _, err := unpackAt(l.file, &aset, off); err != nil {
		return
	}
	section := func(name string, o, size uint64) vfs.File {
		start := off + int64(o)
		if size == 0 || o > uint64(l.file.Size()) || start+int64(size) > l.file.Size() || start < off {
			return nil
		}
		return vfs.Section(l.file, name, start, int64(size))
	}
	if icon := section("icon", aset.IconOff, aset.IconSize); icon != nil {
		if p, err := vfs.ReadAll(icon); err == nil {
			l.control.icon = p
		}
	}
	if nacp := section(controlFile, aset.NACPOff, aset.NACPSize); nacp != nil {
		cd, err := filesys.ParseNACP(nacp)
		if err != nil {
			log.Debug().Err(err).Str("file", l.file.Name()).Msg("bad nro control data")
		}
		l.control.nacp = cd
	}
	l.romfs = section("romfs", aset.RomFSOff, aset.RomFSSize)
}

func (l *NroLoader) FileType() models.FileType { return models.FileTypeNRO }

func (l *NroLoader) Load(p models.Process) models.ResultStatus {
	if l.loaded {
		return models.ErrorAlreadyLoaded
	}
	cs, err := ReadNRO(l.file)
	if err != nil {
		return l.finish(err, models.ErrorLoadingNRO)
	}
	return l.finish(loadExecutable(p, models.DefaultMetadata(), cs), models.ErrorLoadingNRO)
}

func (l *NroLoader) ReadIcon() ([]byte, models.ResultStatus) { return l.control.readIcon() }

func (l *NroLoader) ReadProgramID() (uint64, models.ResultStatus) {
	nacp, status := l.control.controlData()
	if status != models.Success {
		return 0, status
	}
	return nacp.PresenceGroupID, models.Success
}

func (l *NroLoader) ReadRomFS() (vfs.File, models.ResultStatus) {
	if l.romfs == nil {
		return nil, models.ErrorNoRomFS
	}
	return l.romfs, models.Success
}

func (l *NroLoader) ReadTitle() (string, models.ResultStatus)     { return l.control.title() }
func (l *NroLoader) ReadDeveloper() (string, models.ResultStatus) { return l.control.developer() }

func (l *NroLoader) ReadControlData() (*models.ControlData, models.ResultStatus) {
	return l.control.controlData()
}

func (l *NroLoader) Is64Bit() (bool, models.ResultStatus) { return true, models.Success }
