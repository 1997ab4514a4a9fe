package filesys

import (
	"encoding/binary"

	"github.com/lunixbochs/nxcorn/go/models"
	"github.com/lunixbochs/nxcorn/go/vfs"
)

type npdmHeader struct {
	Magic              [4]byte
	Reserved           [8]byte
	Flags              uint8
	Reserved2          uint8
	MainThreadPriority uint8
	MainThreadCore     uint8
	Reserved3          [4]byte
	SystemResourceSize uint32
	ProcessCategory    uint32
	MainStackSize      uint32
	Name               [0x10]byte
	Reserved4          [0x40]byte
	ACIOffset          uint32
	ACISize            uint32
	ACIDOffset         uint32
	ACIDSize           uint32
}

type acidHeader struct {
	Signature  [0x100]byte
	NCAModulus [0x100]byte
	Magic      [4]byte
	NCASize    uint32
	Reserved   uint32
	Flags      uint32
	TitleIDMin uint64
	TitleIDMax uint64
	FACOffset  uint32
	FACSize    uint32
	SACOffset  uint32
	SACSize    uint32
	KACOffset  uint32
	KACSize    uint32
	Padding    uint64
}

type aciHeader struct {
	Magic     [4]byte
	Reserved  [0xc]byte
	TitleID   uint64
	Reserved2 uint64
	FAHOffset uint32
	FAHSize   uint32
	SACOffset uint32
	SACSize   uint32
	KACOffset uint32
	KACSize   uint32
	Padding   uint64
}

type fileAccessControl struct {
	Version     uint8
	Reserved    [3]byte
	Permissions uint64
	Unknown     [0x20]byte
}

type fileAccessHeader struct {
	Version     uint8
	Reserved    [3]byte
	Permissions uint64
	Unknown     [0x10]byte
}

// NPDM is a parsed program metadata file (main.npdm).
type NPDM struct {
	header  npdmHeader
	acid    acidHeader
	aci     aciHeader
	fac     fileAccessControl
	fah     fileAccessHeader
	kernCap []uint32
}

// ParseNPDM reads the META header and its ACID/ACI0 sections.
func ParseNPDM(f vfs.File) (*NPDM, error) {
	if f == nil {
		return nil, models.StatusErr(models.ErrorMissingNPDM, nil)
	}
	n := &NPDM{}
	if _, err := unpackFile(f, &n.header, 0); err != nil {
		return nil, models.StatusErr(models.ErrorBadNPDMHeader, err)
	}
	if string(n.header.Magic[:]) != "META" {
		return nil, models.StatusErr(models.ErrorBadNPDMHeader, nil)
	}
	acidOff := int64(n.header.ACIDOffset)
	if _, err := unpackFile(f, &n.acid, acidOff); err != nil || string(n.acid.Magic[:]) != "ACID" {
		return nil, models.StatusErr(models.ErrorBadACIDHeader, err)
	}
	aciOff := int64(n.header.ACIOffset)
	if _, err := unpackFile(f, &n.aci, aciOff); err != nil || string(n.aci.Magic[:]) != "ACI0" {
		return nil, models.StatusErr(models.ErrorBadACIHeader, err)
	}
	if _, err := unpackFile(f, &n.fac, acidOff+int64(n.acid.FACOffset)); err != nil {
		return nil, models.StatusErr(models.ErrorBadFileAccessControl, err)
	}
	if _, err := unpackFile(f, &n.fah, aciOff+int64(n.aci.FAHOffset)); err != nil {
		return nil, models.StatusErr(models.ErrorBadFileAccessHeader, err)
	}
	caps, err := vfs.ReadBytes(f, aciOff+int64(n.aci.KACOffset), int64(n.aci.KACSize&^3))
	if err != nil {
		return nil, models.StatusErr(models.ErrorBadKernelCapabilityDescriptors, err)
	}
	n.kernCap = make([]uint32, len(caps)/4)
	for i := range n.kernCap {
		n.kernCap[i] = binary.LittleEndian.Uint32(caps[i*4:])
	}
	return n, nil
}

func (n *NPDM) Is64Bit() bool { return n.header.Flags&1 != 0 }

func (n *NPDM) AddressSpace() models.AddressSpace {
	return models.AddressSpace(n.header.Flags >> 1 & 7)
}

func (n *NPDM) Name() string    { return cstring(n.header.Name[:]) }
func (n *NPDM) TitleID() uint64 { return n.aci.TitleID }

func (n *NPDM) KernelCapabilities() []uint32 { return n.kernCap }

// Metadata converts the file into what process bring-up consumes.
func (n *NPDM) Metadata() models.ProgramMetadata {
	return models.ProgramMetadata{
		Name:               n.Name(),
		TitleID:            n.TitleID(),
		Is64Bit:            n.Is64Bit(),
		AddressSpace:       n.AddressSpace(),
		MainThreadPriority: n.header.MainThreadPriority,
		MainThreadCore:     n.header.MainThreadCore,
		MainStackSize:      n.header.MainStackSize,
		ProcessCategory:    n.header.ProcessCategory,
		FilesystemAccess:   n.fah.Permissions,
		KernelCapabilities: n.kernCap,
	}
}
