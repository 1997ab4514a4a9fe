package models

import "github.com/lunixbochs/nxcorn/go/vfs"

// Loader materializes one file into a Process and answers metadata queries
// about it. A Loader is bound to a single file and is not safe for
// concurrent use.
type Loader interface {
	FileType() FileType
	// Load maps the executable into p. It succeeds at most once per Loader;
	// later calls return ErrorAlreadyLoaded.
	Load(p Process) ResultStatus
	IsLoaded() bool

	ReadProgramID() (uint64, ResultStatus)
	ReadIcon() ([]byte, ResultStatus)
	ReadTitle() (string, ResultStatus)
	ReadDeveloper() (string, ResultStatus)
	ReadControlData() (*ControlData, ResultStatus)
	ReadRomFS() (vfs.File, ResultStatus)
	// Is64Bit reports whether the program targets the 64-bit instruction set.
	Is64Bit() (bool, ResultStatus)
}
