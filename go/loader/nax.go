package loader

import (
	"github.com/lunixbochs/nxcorn/go/filesys"
	"github.com/lunixbochs/nxcorn/go/models"
	"github.com/lunixbochs/nxcorn/go/vfs"
)

// IdentifyNAX matches the wrapper header and declared size. Whether the
// archive inside can be decrypted is left to the loader.
func IdentifyNAX(f vfs.File) models.FileType {
	if !filesys.MagicAt(f, 0x20, filesys.NAXMagic) || f.Size() < filesys.NAXDataOff {
		return models.FileTypeError
	}
	if _, err := filesys.ParseNAX(f); err != nil {
		return models.FileTypeError
	}
	return models.FileTypeNAX
}

// NaxLoader loads a program archive stored encrypted on the SD card.
type NaxLoader struct {
	LoaderBase
	err error
	nca *NcaLoader
}

// NewNaxLoader checks the SD path and keys and unwraps the inner archive.
func NewNaxLoader(f vfs.File, opts *Options) models.Loader {
	l := &NaxLoader{LoaderBase: LoaderBase{file: f}}
	nax, err := filesys.ParseNAX(f)
	if err != nil {
		l.err = err
		return l
	}
	nca, err := nax.Decrypt(opts.Keys)
	if err != nil {
		l.err = err
		return l
	}
	l.nca = newNcaLoaderFrom(nca, opts)
	return l
}

func (l *NaxLoader) FileType() models.FileType { return models.FileTypeNAX }

func (l *NaxLoader) Load(p models.Process) models.ResultStatus {
	if l.loaded {
		return models.ErrorAlreadyLoaded
	}
	if l.err != nil {
		return models.StatusOf(l.err, models.ErrorNAXInconvertibleToNCA)
	}
	s := l.nca.Load(p)
	if s == models.Success {
		l.loaded = true
	}
	return s
}

func (l *NaxLoader) Modules() []Module {
	if l.nca == nil {
		return nil
	}
	return l.nca.Modules()
}

func (l *NaxLoader) ReadRomFS() (vfs.File, models.ResultStatus) {
	if l.err != nil {
		return nil, models.StatusOf(l.err, models.ErrorNAXInconvertibleToNCA)
	}
	return l.nca.ReadRomFS()
}

func (l *NaxLoader) ReadProgramID() (uint64, models.ResultStatus) {
	if l.err != nil {
		return 0, models.StatusOf(l.err, models.ErrorNAXInconvertibleToNCA)
	}
	return l.nca.ReadProgramID()
}

func (l *NaxLoader) Is64Bit() (bool, models.ResultStatus) {
	if l.err != nil {
		return false, models.StatusOf(l.err, models.ErrorNAXInconvertibleToNCA)
	}
	return l.nca.Is64Bit()
}
