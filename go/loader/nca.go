package loader

import (
	"github.com/lunixbochs/nxcorn/go/filesys"
	"github.com/lunixbochs/nxcorn/go/keys"
	"github.com/lunixbochs/nxcorn/go/models"
	"github.com/lunixbochs/nxcorn/go/vfs"
)

// NCAIdentifier matches program content archives, decrypting the header
// through Keys when it is not stored in plaintext.
type NCAIdentifier struct {
	Keys *keys.Manager
}

func (n NCAIdentifier) Identify(f vfs.File) models.FileType {
	if f == nil || f.Size() < filesys.NCAHeaderSize {
		return models.FileTypeError
	}
	nca, err := filesys.ParseNCA(f, n.Keys)
	if err != nil || nca.ContentType() != filesys.NCAContentProgram {
		return models.FileTypeError
	}
	return models.FileTypeNCA
}

// NcaLoader loads the ExeFS of a program content archive.
type NcaLoader struct {
	LoaderBase
	nca *filesys.NCA
	err error
	dir *DirectoryLoader
}

// NewNcaLoader parses the archive header of f.
func NewNcaLoader(f vfs.File, opts *Options) models.Loader {
	l := &NcaLoader{LoaderBase: LoaderBase{file: f}}
	if f == nil {
		l.err = models.StatusErr(models.ErrorNullFile, nil)
		return l
	}
	l.nca, l.err = filesys.ParseNCA(f, opts.Keys)
	l.setup(opts)
	return l
}

func newNcaLoaderFrom(nca *filesys.NCA, opts *Options) *NcaLoader {
	l := &NcaLoader{LoaderBase: LoaderBase{file: nca.File()}, nca: nca}
	l.setup(opts)
	return l
}

func (l *NcaLoader) setup(opts *Options) {
	if l.err != nil {
		return
	}
	if exefs := l.nca.ExeFS(); exefs != nil {
		l.dir = newDirectoryLoader(exefs, opts)
	}
}

func (l *NcaLoader) FileType() models.FileType { return models.FileTypeNCA }

// status is why the archive cannot be loaded, or Success.
func (l *NcaLoader) status() models.ResultStatus {
	if l.err != nil {
		return models.StatusOf(l.err, models.ErrorBadNCAHeader)
	}
	if l.nca.ContentType() != filesys.NCAContentProgram {
		return models.ErrorNCANotProgram
	}
	if l.dir == nil {
		if s := l.nca.SectionStatus(); s != models.Success {
			return s
		}
		return models.ErrorNoExeFS
	}
	return models.Success
}

func (l *NcaLoader) Load(p models.Process) models.ResultStatus {
	if l.loaded {
		return models.ErrorAlreadyLoaded
	}
	if s := l.status(); s != models.Success {
		return s
	}
	s := l.dir.Load(p)
	if s == models.Success {
		l.loaded = true
	}
	return s
}

// Modules lists the modules mapped by a successful Load.
func (l *NcaLoader) Modules() []Module {
	if l.dir == nil {
		return nil
	}
	return l.dir.Modules()
}

func (l *NcaLoader) ReadRomFS() (vfs.File, models.ResultStatus) {
	if l.err != nil {
		return nil, models.StatusOf(l.err, models.ErrorBadNCAHeader)
	}
	romfs := l.nca.RomFS()
	if romfs == nil || romfs.Size() == 0 {
		return nil, models.ErrorNoRomFS
	}
	return romfs, models.Success
}

func (l *NcaLoader) ReadProgramID() (uint64, models.ResultStatus) {
	if l.err != nil {
		return 0, models.ErrorNotInitialized
	}
	return l.nca.TitleID(), models.Success
}

func (l *NcaLoader) Is64Bit() (bool, models.ResultStatus) {
	if s := l.status(); s != models.Success {
		return false, s
	}
	return l.dir.Is64Bit()
}
