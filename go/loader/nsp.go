package loader

import (
	"github.com/lunixbochs/nxcorn/go/filesys"
	"github.com/lunixbochs/nxcorn/go/keys"
	"github.com/lunixbochs/nxcorn/go/models"
	"github.com/lunixbochs/nxcorn/go/vfs"
)

// NSPIdentifier matches a PFS0 that is either an extracted ExeFS or holds a
// program content archive.
type NSPIdentifier struct {
	Keys *keys.Manager
}

func (n NSPIdentifier) Identify(f vfs.File) models.FileType {
	if !filesys.MagicAt(f, 0, filesys.PFS0Magic) {
		return models.FileTypeError
	}
	// tickets are not registered while identifying
	pfs, err := filesys.ParsePartitionFilesystem(f)
	if err != nil {
		return models.FileTypeError
	}
	if pfs.IsExtracted() {
		return models.FileTypeNSP
	}
	ncas, _ := filesys.OpenNCAs(pfs, n.Keys)
	if filesys.FindNCA(ncas, filesys.NCAContentProgram) != nil {
		return models.FileTypeNSP
	}
	return models.FileTypeError
}

// NspLoader loads a submission package, either an extracted ExeFS or a
// PFS0 holding program and control archives.
type NspLoader struct {
	packageLoader
	nsp *filesys.NSP
}

// NewNspLoader parses the PFS0 in f.
func NewNspLoader(f vfs.File, opts *Options) models.Loader {
	l := &NspLoader{packageLoader: packageLoader{LoaderBase: LoaderBase{file: f}, keys: opts.Keys}}
	if f == nil {
		l.err = models.StatusErr(models.ErrorNullFile, nil)
		return l
	}
	l.nsp, l.err = filesys.ParseNSP(f, opts.Keys)
	if l.err != nil {
		return l
	}
	if l.nsp.IsExtracted() {
		// an extracted ExeFS carries no control data
		l.program = newDirectoryLoader(l.nsp.ExeFS(), opts)
		l.control = &controlSource{lang: opts.Language}
		return l
	}
	if nca := l.nsp.Program(); nca != nil {
		l.program = newNcaLoaderFrom(nca, opts)
	}
	l.control = controlFromNCA(l.nsp.Control(), opts.Language)
	return l
}

func (l *NspLoader) FileType() models.FileType { return models.FileTypeNSP }

func (l *NspLoader) Load(p models.Process) models.ResultStatus {
	if l.err != nil {
		return models.StatusOf(l.err, models.ErrorBadPFSHeader)
	}
	return l.loadProgram(p, l.nsp)
}
