package loader

import (
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/lunixbochs/nxcorn/go/filesys"
	"github.com/lunixbochs/nxcorn/go/models"
	"github.com/lunixbochs/nxcorn/go/vfs"
)

// modules of an ExeFS, in load order
var exefsModules = []string{
	"rtld", "main",
	"subsdk0", "subsdk1", "subsdk2", "subsdk3",
	"subsdk4", "subsdk5", "subsdk6", "subsdk7",
	"sdk",
}

// IdentifyDirectory matches any file whose directory is an extracted ExeFS.
func IdentifyDirectory(f vfs.File) models.FileType {
	if f != nil && vfs.IsExeFS(f.ContainingDir()) {
		return models.FileTypeDeconstructedRomDirectory
	}
	return models.FileTypeError
}

// DirectoryLoader loads an extracted ExeFS: main.npdm describes the process
// and every present module is mapped back to back from the code region
// start.
type DirectoryLoader struct {
	LoaderBase
	dir     vfs.Dir
	control *controlSource
	romfs   vfs.File
	npdm    *filesys.NPDM
	// modules records where each module was mapped
	modules []Module
}

// Module is one mapped executable of a loaded program.
type Module struct {
	Name       string
	Base, Size uint64
}

// NewDirectoryLoader loads the ExeFS directory containing f.
func NewDirectoryLoader(f vfs.File, opts *Options) models.Loader {
	var dir vfs.Dir
	if f != nil {
		dir = f.ContainingDir()
	}
	l := newDirectoryLoader(dir, opts)
	l.file = f
	if dir != nil {
		l.control = controlFromDir(dir, opts.Language)
		l.romfs = findRomFS(dir)
	}
	return l
}

// newDirectoryLoader wraps an ExeFS found inside a container; the container
// supplies control data and RomFS itself.
func newDirectoryLoader(dir vfs.Dir, opts *Options) *DirectoryLoader {
	return &DirectoryLoader{dir: dir, control: &controlSource{lang: opts.Language}}
}

func findRomFS(dir vfs.Dir) vfs.File {
	for _, f := range dir.Files() {
		if strings.HasSuffix(strings.ToLower(f.Name()), ".romfs") {
			return f
		}
	}
	return nil
}

func (l *DirectoryLoader) FileType() models.FileType {
	return models.FileTypeDeconstructedRomDirectory
}

func (l *DirectoryLoader) metadata() (*filesys.NPDM, error) {
	if l.npdm != nil {
		return l.npdm, nil
	}
	if l.dir == nil {
		return nil, models.StatusErr(models.ErrorNullFile, nil)
	}
	f := l.dir.File("main.npdm")
	if f == nil {
		return nil, models.StatusErr(models.ErrorMissingNPDM, nil)
	}
	npdm, err := filesys.ParseNPDM(f)
	if err != nil {
		return nil, err
	}
	l.npdm = npdm
	return npdm, nil
}

func (l *DirectoryLoader) Load(p models.Process) models.ResultStatus {
	if l.loaded {
		return models.ErrorAlreadyLoaded
	}
	return l.finish(l.load(p), models.ErrorLoadingNSO)
}

func (l *DirectoryLoader) load(p models.Process) error {
	npdm, err := l.metadata()
	if err != nil {
		return err
	}
	switch npdm.AddressSpace() {
	case models.AddressSpace32Bit, models.AddressSpace32BitNoMap:
		return models.StatusErr(models.Error32BitISA, nil)
	}
	meta := npdm.Metadata()
	if err := p.LoadFromMetadata(meta); err != nil {
		return models.StatusErr(models.ErrorUnableToParseKernelMetadata, err)
	}

	base := p.CodeRegionStart()
	next := base
	var modules []Module
	for _, name := range exefsModules {
		f := l.dir.File(name)
		if f == nil {
			continue
		}
		start := next
		if next, err = loadNSO(p, f, start); err != nil {
			return err
		}
		modules = append(modules, Module{Name: name, Base: start, Size: next - start})
	}
	if len(modules) == 0 {
		return models.StatusErr(models.ErrorLoadingNSO, nil)
	}
	log.Debug().Str("name", meta.Name).Int("modules", len(modules)).Msg("mapped exefs")
	if err := p.Run(base, meta.MainThreadPriority, uint64(meta.MainStackSize)); err != nil {
		return err
	}
	l.modules = modules
	return nil
}

// Modules lists the modules mapped by a successful Load.
func (l *DirectoryLoader) Modules() []Module { return l.modules }

func (l *DirectoryLoader) ReadProgramID() (uint64, models.ResultStatus) {
	npdm, err := l.metadata()
	if err != nil {
		return 0, models.StatusOf(err, models.ErrorBadNPDMHeader)
	}
	return npdm.TitleID(), models.Success
}

func (l *DirectoryLoader) Is64Bit() (bool, models.ResultStatus) {
	npdm, err := l.metadata()
	if err != nil {
		return false, models.StatusOf(err, models.ErrorBadNPDMHeader)
	}
	return npdm.Is64Bit(), models.Success
}

func (l *DirectoryLoader) ReadIcon() ([]byte, models.ResultStatus) { return l.control.readIcon() }

// ReadTitle falls back to the process name from main.npdm when there is no
// control file.
func (l *DirectoryLoader) ReadTitle() (string, models.ResultStatus) {
	if title, status := l.control.title(); status == models.Success {
		return title, status
	}
	npdm, err := l.metadata()
	if err != nil {
		return "", models.ErrorNoControl
	}
	return npdm.Name(), models.Success
}

func (l *DirectoryLoader) ReadDeveloper() (string, models.ResultStatus) {
	return l.control.developer()
}

func (l *DirectoryLoader) ReadControlData() (*models.ControlData, models.ResultStatus) {
	return l.control.controlData()
}

func (l *DirectoryLoader) ReadRomFS() (vfs.File, models.ResultStatus) {
	if l.romfs == nil {
		return nil, models.ErrorNoRomFS
	}
	return l.romfs, models.Success
}
