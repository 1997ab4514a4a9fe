package models

// AddressSpace is the width of a process's virtual address space.
type AddressSpace uint8

const (
	AddressSpace32Bit AddressSpace = iota
	AddressSpace36Bit
	AddressSpace32BitNoMap
	AddressSpace39Bit
)

func (a AddressSpace) String() string {
	switch a {
	case AddressSpace32Bit:
		return "32-bit"
	case AddressSpace36Bit:
		return "36-bit"
	case AddressSpace32BitNoMap:
		return "32-bit (no map)"
	case AddressSpace39Bit:
		return "39-bit"
	}
	return "invalid"
}

const (
	DefaultThreadPriority = 44
	DefaultStackSize      = 0x100000
)

// ProgramMetadata is what a process needs to know before modules are mapped.
type ProgramMetadata struct {
	Name               string
	TitleID            uint64
	Is64Bit            bool
	AddressSpace       AddressSpace
	MainThreadPriority uint8
	MainThreadCore     uint8
	MainStackSize      uint32
	ProcessCategory    uint32
	FilesystemAccess   uint64
	KernelCapabilities []uint32
}

// DefaultMetadata describes a 64-bit program with no metadata file of its own.
func DefaultMetadata() ProgramMetadata {
	return ProgramMetadata{
		Is64Bit:            true,
		AddressSpace:       AddressSpace39Bit,
		MainThreadPriority: DefaultThreadPriority,
		MainStackSize:      DefaultStackSize,
		FilesystemAccess:   ^uint64(0),
	}
}

// Process is the process bring-up collaborator loaders map executables into.
type Process interface {
	LoadFromMetadata(meta ProgramMetadata) error
	// CodeRegionStart is where the first module of the process is mapped.
	CodeRegionStart() uint64
	LoadModule(cs *CodeSet, base uint64) error
	Run(entry uint64, priority uint8, stackSize uint64) error
}
