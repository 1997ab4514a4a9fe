package filesys

import (
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/lunixbochs/nxcorn/go/keys"
	"github.com/lunixbochs/nxcorn/go/models"
	"github.com/lunixbochs/nxcorn/go/vfs"
)

const (
	NCAHeaderSize = 0xc00
	ncaMediaUnit  = 0x200
	ncaSections   = 4
	ncaSectionOff = 0x400
	ncaTableOff   = 0x240
	ncaKeyAreaOff = 0x300
)

type NCAContentType uint8

const (
	NCAContentProgram NCAContentType = iota
	NCAContentMeta
	NCAContentControl
	NCAContentManual
	NCAContentData
	NCAContentPublicData
)

var ncaContentNames = []string{"Program", "Meta", "Control", "Manual", "Data", "PublicData"}

func (t NCAContentType) String() string {
	if int(t) < len(ncaContentNames) {
		return ncaContentNames[t]
	}
	return "Unknown"
}

const (
	NCAFilesystemRomFS = 0
	NCAFilesystemPFS0  = 1

	NCAEncryptionNone = 1
	NCAEncryptionXTS  = 2
	NCAEncryptionCTR  = 3
	NCAEncryptionBKTR = 4
)

type ncaHeader struct {
	Signature1       [0x100]byte
	Signature2       [0x100]byte
	Magic            [4]byte
	DistributionType uint8
	ContentType      uint8
	CryptoType       uint8
	KeyIndex         uint8
	Size             uint64
	TitleID          uint64
	ContentIndex     uint32
	SDKVersion       uint32
	CryptoType2      uint8
	Padding          [0xf]byte
	RightsID         [0x10]byte
}

type ncaSectionEntry struct {
	MediaStart uint32
	MediaEnd   uint32
	Unknown    [8]byte
}

type ncaSectionHeader struct {
	Version        uint16
	FilesystemType uint8
	HashType       uint8
	EncryptionType uint8
	Padding        [3]byte
}

type pfsSuperblock struct {
	MasterHash    [0x20]byte
	BlockSize     uint32
	Always2       uint32
	HashTableOff  uint64
	HashTableSize uint64
	PFS0Off       uint64
	PFS0Size      uint64
}

type ivfcHeader struct {
	Magic          [4]byte
	MagicNumber    uint32
	MasterHashSize uint32
	NumLevels      uint32
}

type ivfcLevel struct {
	Offset    uint64
	Size      uint64
	BlockLog2 uint32
	Reserved  uint32
}

// NCASection describes one filesystem section of a content archive.
type NCASection struct {
	Index          int
	Offset, Size   int64
	FilesystemType uint8
	EncryptionType uint8
	// Status is Success when the section could be opened.
	Status models.ResultStatus
}

// NCA is a parsed content archive. Only sections stored without encryption
// are exposed; the rest carry the status that prevented opening them.
type NCA struct {
	file     vfs.File
	header   ncaHeader
	keyArea  []byte
	sections []NCASection

	exefs      *PartitionFilesystem
	romfs      vfs.File
	partitions []*PartitionFilesystem
}

func ncaMagicStatus(magic []byte) models.ResultStatus {
	switch string(magic) {
	case "NCA3":
		return models.Success
	case "NCA2":
		return models.ErrorNCA2
	case "NCA0":
		return models.ErrorNCA0
	}
	return models.ErrorBadNCAHeader
}

// ParseNCA reads a content archive header and opens its sections. A header
// that is not plaintext is handed to the key manager's decrypter.
func ParseNCA(f vfs.File, km *keys.Manager) (*NCA, error) {
	if f == nil {
		return nil, models.StatusErr(models.ErrorNullFile, nil)
	}
	raw, err := vfs.ReadBytes(f, 0, NCAHeaderSize)
	if err != nil {
		return nil, models.StatusErr(models.ErrorBadNCAHeader, err)
	}
	if status := ncaMagicStatus(raw[0x200:0x204]); status != models.Success {
		if status != models.ErrorBadNCAHeader {
			return nil, models.StatusErr(status, nil)
		}
		dec := km.HeaderDecrypter()
		if dec == nil {
			return nil, models.StatusErr(models.ErrorMissingHeaderKey, nil)
		}
		plain, err := dec.DecryptNCAHeader(raw)
		if err != nil {
			return nil, models.StatusErr(models.ErrorIncorrectHeaderKey, err)
		}
		if len(plain) < NCAHeaderSize {
			return nil, models.StatusErr(models.ErrorIncorrectHeaderKey, errors.Errorf("decrypted header is %#x bytes", len(plain)))
		}
		switch status := ncaMagicStatus(plain[0x200:0x204]); status {
		case models.Success:
			raw = plain
		case models.ErrorBadNCAHeader:
			return nil, models.StatusErr(models.ErrorIncorrectHeaderKey, nil)
		default:
			return nil, models.StatusErr(status, nil)
		}
	}

	hdr := vfs.NewBytesFile(f.Name(), raw)
	n := &NCA{file: f, keyArea: raw[ncaKeyAreaOff : ncaKeyAreaOff+0x40]}
	if _, err := unpackAt(hdr, &n.header, 0); err != nil {
		return nil, models.StatusErr(models.ErrorBadNCAHeader, err)
	}
	for i := 0; i < ncaSections; i++ {
		var entry ncaSectionEntry
		var sh ncaSectionHeader
		if _, err := unpackAt(hdr, &entry, ncaTableOff+int64(i)*0x10); err != nil {
			return nil, models.StatusErr(models.ErrorBadNCAHeader, err)
		}
		if entry.MediaEnd <= entry.MediaStart {
			continue
		}
		shOff := int64(ncaSectionOff + i*0x200)
		if _, err := unpackAt(hdr, &sh, shOff); err != nil {
			return nil, models.StatusErr(models.ErrorBadNCAHeader, err)
		}
		sec := NCASection{
			Index:          i,
			Offset:         int64(entry.MediaStart) * ncaMediaUnit,
			Size:           int64(entry.MediaEnd-entry.MediaStart) * ncaMediaUnit,
			FilesystemType: sh.FilesystemType,
			EncryptionType: sh.EncryptionType,
		}
		sec.Status = n.openSection(hdr, shOff, &sec, km)
		if sec.Status != models.Success {
			log.Debug().Str("file", f.Name()).Int("section", i).Stringer("status", sec.Status).Msg("nca section unavailable")
		}
		n.sections = append(n.sections, sec)
	}
	return n, nil
}

func (n *NCA) openSection(hdr vfs.File, shOff int64, sec *NCASection, km *keys.Manager) models.ResultStatus {
	if sec.Offset+sec.Size > n.file.Size() {
		return models.ErrorBadNCAHeader
	}
	if sec.EncryptionType != NCAEncryptionNone {
		return n.sectionKeyStatus(km)
	}
	data := vfs.Section(n.file, n.file.Name(), sec.Offset, sec.Size)
	switch sec.FilesystemType {
	case NCAFilesystemPFS0:
		var sb pfsSuperblock
		if _, err := unpackAt(hdr, &sb, shOff+8); err != nil {
			return models.ErrorBadNCAHeader
		}
		if sb.PFS0Off > uint64(sec.Size) || sb.PFS0Size > uint64(sec.Size)-sb.PFS0Off {
			return models.ErrorBadPFSHeader
		}
		pfs, err := ParsePartitionFilesystem(vfs.Section(data, "exefs", int64(sb.PFS0Off), int64(sb.PFS0Size)))
		if err != nil {
			return models.StatusOf(err, models.ErrorBadPFSHeader)
		}
		if pfs.File("main.npdm") != nil && n.exefs == nil {
			n.exefs = pfs
		} else {
			n.partitions = append(n.partitions, pfs)
		}
	case NCAFilesystemRomFS:
		var ivfc ivfcHeader
		if _, err := unpackAt(hdr, &ivfc, shOff+8); err != nil || string(ivfc.Magic[:]) != "IVFC" {
			return models.ErrorNoRomFS
		}
		var level ivfcLevel
		if _, err := unpackAt(hdr, &level, shOff+8+0x10+5*0x18); err != nil {
			return models.ErrorNoRomFS
		}
		if level.Offset > uint64(sec.Size) || level.Size > uint64(sec.Size)-level.Offset {
			return models.ErrorNoRomFS
		}
		if n.romfs == nil {
			n.romfs = vfs.Section(data, "romfs", int64(level.Offset), int64(level.Size))
		}
	default:
		return models.ErrorBadNCAHeader
	}
	return models.Success
}

// sectionKeyStatus explains why an encrypted section stays closed.
func (n *NCA) sectionKeyStatus(km *keys.Manager) models.ResultStatus {
	if n.HasRightsID() {
		if _, ok := km.TitleKey(n.header.RightsID); !ok {
			return models.ErrorMissingTitlekey
		}
	} else if !km.Has(keys.KeyAreaKeyApplication(n.KeyGeneration())) {
		return models.ErrorMissingKeyAreaKey
	}
	return models.ErrorNotImplemented
}

func (n *NCA) Name() string                       { return n.file.Name() }
func (n *NCA) File() vfs.File                     { return n.file }
func (n *NCA) ContentType() NCAContentType        { return NCAContentType(n.header.ContentType) }
func (n *NCA) TitleID() uint64                    { return n.header.TitleID }
func (n *NCA) RightsID() [0x10]byte               { return n.header.RightsID }
func (n *NCA) SDKVersion() uint32                 { return n.header.SDKVersion }
func (n *NCA) Sections() []NCASection             { return n.sections }
func (n *NCA) Partitions() []*PartitionFilesystem { return n.partitions }

func (n *NCA) HasRightsID() bool {
	return n.header.RightsID != [0x10]byte{}
}

// KeyGeneration is the zero-based master key revision the archive needs.
func (n *NCA) KeyGeneration() uint8 {
	gen := n.header.CryptoType
	if n.header.CryptoType2 > gen {
		gen = n.header.CryptoType2
	}
	if gen > 0 {
		gen--
	}
	return gen
}

// ExeFS returns the code partition, or nil when the archive has none.
func (n *NCA) ExeFS() vfs.Dir {
	if n.exefs == nil {
		return nil
	}
	return n.exefs
}

// RomFS returns the raw RomFS image, or nil.
func (n *NCA) RomFS() vfs.File { return n.romfs }

// SectionStatus is the first failure among the archive's sections, or
// Success.
func (n *NCA) SectionStatus() models.ResultStatus {
	for _, s := range n.sections {
		if s.Status != models.Success {
			return s.Status
		}
	}
	return models.Success
}
