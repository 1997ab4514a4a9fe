package loader

import (
	"github.com/lunixbochs/nxcorn/go/filesys"
	"github.com/lunixbochs/nxcorn/go/keys"
	"github.com/lunixbochs/nxcorn/go/models"
	"github.com/lunixbochs/nxcorn/go/vfs"
)

// IdentifyXCI matches a card header with a readable root partition table.
func IdentifyXCI(f vfs.File) models.FileType {
	if !filesys.MagicAt(f, 0x100, filesys.XCIMagic) {
		return models.FileTypeError
	}
	if _, err := filesys.ParseXCI(f, nil); err != nil {
		return models.FileTypeError
	}
	return models.FileTypeXCI
}

// programLoader is the part of a package that holds code: a program
// archive or an extracted ExeFS.
type programLoader interface {
	Load(p models.Process) models.ResultStatus
	ReadRomFS() (vfs.File, models.ResultStatus)
	ReadProgramID() (uint64, models.ResultStatus)
	Is64Bit() (bool, models.ResultStatus)
	Modules() []Module
}

// packageLoader is shared by the card image and submission package loaders:
// both hold a program plus a control archive.
type packageLoader struct {
	LoaderBase
	keys    *keys.Manager
	err     error
	program programLoader
	control *controlSource
}

// container is what packageLoader needs from a parsed package.
type container interface {
	ProgramStatus() models.ResultStatus
	Unreadable() int
}

// status reports why the package cannot be loaded. Archives that could not
// be opened without production keys are reported as missing keys.
func (l *packageLoader) status(c container) models.ResultStatus {
	if l.err != nil {
		return models.StatusOf(l.err, models.ErrorBadPFSHeader)
	}
	s := c.ProgramStatus()
	if s != models.Success && l.program == nil && c.Unreadable() > 0 && !l.keys.HasProductionKeys() {
		return models.ErrorMissingProductionKeyFile
	}
	return s
}

func (l *packageLoader) loadProgram(p models.Process, c container) models.ResultStatus {
	if l.loaded {
		return models.ErrorAlreadyLoaded
	}
	if s := l.status(c); s != models.Success {
		return s
	}
	s := l.program.Load(p)
	if s == models.Success {
		l.loaded = true
	}
	return s
}

// Modules lists the modules mapped by a successful Load.
func (l *packageLoader) Modules() []Module {
	if l.program == nil {
		return nil
	}
	return l.program.Modules()
}

func (l *packageLoader) ReadRomFS() (vfs.File, models.ResultStatus) {
	if l.program == nil {
		return nil, models.ErrorNoRomFS
	}
	return l.program.ReadRomFS()
}

func (l *packageLoader) ReadProgramID() (uint64, models.ResultStatus) {
	if l.program == nil {
		return 0, models.ErrorNotInitialized
	}
	return l.program.ReadProgramID()
}

func (l *packageLoader) ReadIcon() ([]byte, models.ResultStatus) {
	if l.control == nil {
		return nil, models.ErrorNoControl
	}
	return l.control.readIcon()
}

func (l *packageLoader) ReadTitle() (string, models.ResultStatus) { return l.control.title() }

func (l *packageLoader) ReadDeveloper() (string, models.ResultStatus) {
	return l.control.developer()
}

func (l *packageLoader) ReadControlData() (*models.ControlData, models.ResultStatus) {
	return l.control.controlData()
}

func (l *packageLoader) Is64Bit() (bool, models.ResultStatus) {
	if l.program == nil {
		return false, models.ErrorNotInitialized
	}
	return l.program.Is64Bit()
}

// XciLoader loads the program archive in the secure partition of a card
// image.
type XciLoader struct {
	packageLoader
	xci *filesys.XCI
}

// NewXciLoader parses the card header and its partitions.
func NewXciLoader(f vfs.File, opts *Options) models.Loader {
	l := &XciLoader{packageLoader: packageLoader{LoaderBase: LoaderBase{file: f}, keys: opts.Keys}}
	l.xci, l.err = filesys.ParseXCI(f, opts.Keys)
	if l.err != nil {
		return l
	}
	if nca := l.xci.Program(); nca != nil {
		l.program = newNcaLoaderFrom(nca, opts)
	}
	if nca := l.xci.Control(); nca != nil {
		l.control = controlFromNCA(nca, opts.Language)
	}
	return l
}

func (l *XciLoader) FileType() models.FileType { return models.FileTypeXCI }

func (l *XciLoader) Load(p models.Process) models.ResultStatus {
	if l.err != nil {
		return models.StatusOf(l.err, models.ErrorBadXCIHeader)
	}
	return l.loadProgram(p, l.xci)
}
