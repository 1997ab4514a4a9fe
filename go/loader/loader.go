package loader

import (
	"github.com/lunixbochs/nxcorn/go/models"
	"github.com/lunixbochs/nxcorn/go/vfs"
)

// LoaderBase holds what every loader shares: the bound file and whether
// Load has succeeded. Metadata queries default to ErrorNotImplemented.
type LoaderBase struct {
	file   vfs.File
	loaded bool
}

func (l *LoaderBase) File() vfs.File { return l.file }
func (l *LoaderBase) IsLoaded() bool { return l.loaded }

func (l *LoaderBase) ReadProgramID() (uint64, models.ResultStatus) {
	return 0, models.ErrorNotImplemented
}

func (l *LoaderBase) ReadIcon() ([]byte, models.ResultStatus) {
	return nil, models.ErrorNotImplemented
}

func (l *LoaderBase) ReadTitle() (string, models.ResultStatus) {
	return "", models.ErrorNotImplemented
}

func (l *LoaderBase) ReadDeveloper() (string, models.ResultStatus) {
	return "", models.ErrorNotImplemented
}

func (l *LoaderBase) ReadControlData() (*models.ControlData, models.ResultStatus) {
	return nil, models.ErrorNotImplemented
}

func (l *LoaderBase) ReadRomFS() (vfs.File, models.ResultStatus) {
	return nil, models.ErrorNotImplemented
}

func (l *LoaderBase) Is64Bit() (bool, models.ResultStatus) {
	return false, models.ErrorNotImplemented
}

// finish records the outcome of a Load.
func (l *LoaderBase) finish(err error, fallback models.ResultStatus) models.ResultStatus {
	status := models.StatusOf(err, fallback)
	if status == models.Success {
		l.loaded = true
	}
	return status
}
