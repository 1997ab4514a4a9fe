package testutil

import (
	"bytes"

	"github.com/lunixbochs/nxcorn/go/models"
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

// NPDM builds a main.npdm describing meta. The ACI0 section starts at 0x80
// and the ACID section follows it.
func NPDM(meta models.ProgramMetadata) []byte {
	var aci bytes.Buffer
	ah := aciHeader{
		TitleID:   meta.TitleID,
		FAHOffset: 0x40,
		FAHSize:   0x1c,
		KACOffset: 0x5c,
		KACSize:   uint32(4 * len(meta.KernelCapabilities)),
	}
	copy(ah.Magic[:], "ACI0")
	pack(&aci, &ah)
	pack(&aci, &fileAccessHeader{Version: 1, Permissions: meta.FilesystemAccess})
	for _, c := range meta.KernelCapabilities {
		var v struct{ V uint32 }
		v.V = c
		pack(&aci, &v)
	}
	aciBytes := pad(aci.Bytes(), 0x10)

	var acid bytes.Buffer
	dh := acidHeader{FACOffset: 0x240, FACSize: 0x2c, TitleIDMin: meta.TitleID, TitleIDMax: meta.TitleID}
	copy(dh.Magic[:], "ACID")
	pack(&acid, &dh)
	pack(&acid, &fileAccessControl{Version: 1, Permissions: meta.FilesystemAccess})
	acidBytes := pad(acid.Bytes(), 0x10)

	flags := uint8(meta.AddressSpace) << 1
	if meta.Is64Bit {
		flags |= 1
	}
	hdr := npdmHeader{
		Flags:              flags,
		MainThreadPriority: meta.MainThreadPriority,
		MainThreadCore:     meta.MainThreadCore,
		ProcessCategory:    meta.ProcessCategory,
		MainStackSize:      meta.MainStackSize,
		ACIOffset:          0x80,
		ACISize:            uint32(len(aciBytes)),
		ACIDOffset:         uint32(0x80 + len(aciBytes)),
		ACIDSize:           uint32(len(acidBytes)),
	}
	copy(hdr.Magic[:], "META")
	copy(hdr.Name[:], meta.Name)

	var out bytes.Buffer
	pack(&out, &hdr)
	out.Write(aciBytes)
	out.Write(acidBytes)
	return out.Bytes()
}

// Metadata returns a 64-bit program description suitable for NPDM.
func Metadata(name string, titleID uint64) models.ProgramMetadata {
	meta := models.DefaultMetadata()
	meta.Name = name
	meta.TitleID = titleID
	meta.MainThreadPriority = 0x2c
	meta.MainThreadCore = 0
	meta.KernelCapabilities = []uint32{0x3ffff7ff, 0x0000a7f7}
	return meta
}

type nacpProperties struct {
	ISBN                           [0x25]byte
	StartupUserAccount             uint8
	TouchScreenUsage               uint8
	AddOnContentRegistrationType   uint8
	Attribute                      uint32
	SupportedLanguages             uint32
	ParentalControl                uint32
	Screenshot                     uint8
	VideoCapture                   uint8
	DataLossConfirmation           uint8
	PlayLogPolicy                  uint8
	PresenceGroupID                uint64
	RatingAge                      [0x20]byte
	DisplayVersion                 [0x10]byte
	AddOnContentBaseID             uint64
	SaveDataOwnerID                uint64
	UserAccountSaveDataSize        uint64
	UserAccountSaveDataJournalSize uint64
	DeviceSaveDataSize             uint64
	DeviceSaveDataJournalSize      uint64
}

// NACP builds a control property file holding c.
func NACP(c *models.ControlData) []byte {
	out := make([]byte, 0x4000)
	for i, t := range c.Titles {
		copy(out[i*0x300:i*0x300+0x200], t.Name)
		copy(out[i*0x300+0x200:(i+1)*0x300], t.Developer)
	}
	props := nacpProperties{
		SupportedLanguages:      c.SupportedLanguages,
		PresenceGroupID:         c.PresenceGroupID,
		AddOnContentBaseID:      c.AddOnContentBaseID,
		SaveDataOwnerID:         c.SaveDataOwnerID,
		UserAccountSaveDataSize: c.UserSaveDataSize,
		DeviceSaveDataSize:      c.DeviceSaveDataSize,
	}
	copy(props.ISBN[:], c.ISBN)
	copy(props.DisplayVersion[:], c.DisplayVersion)
	packAt(out, 0x3000, &props)
	return out
}

// Control returns control data titled name in American English.
func Control(name, developer, version string) *models.ControlData {
	c := &models.ControlData{DisplayVersion: version, SupportedLanguages: 1}
	c.Titles[models.AmericanEnglish] = models.ApplicationTitle{Name: name, Developer: developer}
	return c
}
