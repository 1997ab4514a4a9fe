package filesys

import (
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/lunixbochs/nxcorn/go/keys"
	"github.com/lunixbochs/nxcorn/go/models"
	"github.com/lunixbochs/nxcorn/go/vfs"
)

var XCIMagic = []byte("HEAD")

const (
	XCIHeaderSize = 0x200
	xciMagicOff   = 0x100
)

type XCIPartition string

const (
	XCIUpdate XCIPartition = "update"
	XCINormal XCIPartition = "normal"
	XCISecure XCIPartition = "secure"
	XCILogo   XCIPartition = "logo"
)

type xciHeader struct {
	Signature       [0x100]byte
	Magic           [4]byte
	SecureAreaStart uint32
	BackupAreaStart uint32
	TitleKEKIndex   uint8
	CardSize        uint8
	HeaderVersion   uint8
	Flags           uint8
	PackageID       uint64
	ValidDataEnd    uint64
	IV              [0x10]byte
	HFS0Offset      uint64
	HFS0HeaderSize  uint64
	HFS0HeaderHash  [0x20]byte
	InitialDataHash [0x20]byte
	SelSec          uint32
	SelT1Key        uint32
	SelKey          uint32
	LimArea         uint32
	Encrypted       [0x70]byte
}

// XCI is a parsed game card image.
type XCI struct {
	file       vfs.File
	header     xciHeader
	partitions map[XCIPartition]*PartitionFilesystem
	ncas       []*NCA
	skipped    int
	program    *NCA

	programStatus models.ResultStatus
}

// ParseXCI reads the card header and the root partition table and opens
// every content archive in the secure partition.
func ParseXCI(f vfs.File, km *keys.Manager) (*XCI, error) {
	if f == nil {
		return nil, models.StatusErr(models.ErrorNullFile, nil)
	}
	x := &XCI{file: f, partitions: make(map[XCIPartition]*PartitionFilesystem)}
	if _, err := unpackFile(f, &x.header, 0); err != nil || string(x.header.Magic[:]) != string(XCIMagic) {
		return nil, models.StatusErr(models.ErrorBadXCIHeader, err)
	}
	off := int64(x.header.HFS0Offset)
	if off <= 0 || off >= f.Size() {
		return nil, models.StatusErr(models.ErrorXCIMissingPartition, nil)
	}
	root, err := ParsePartitionFilesystem(vfs.Section(f, "root", off, f.Size()-off))
	if err != nil || !root.Hashed {
		return nil, models.StatusErr(models.ErrorXCIMissingPartition, err)
	}
	for _, pf := range root.Files() {
		part, err := ParsePartitionFilesystem(pf)
		if err != nil {
			log.Debug().Err(err).Str("partition", pf.Name()).Msg("skipping xci partition")
			continue
		}
		x.partitions[XCIPartition(pf.Name())] = part
	}
	secure := x.partitions[XCISecure]
	if secure == nil {
		return nil, models.StatusErr(models.ErrorXCIMissingPartition, nil)
	}
	x.ncas, x.skipped = OpenNCAs(secure, km)
	x.program = FindNCA(x.ncas, NCAContentProgram)
	x.programStatus = programStatus(x.program, models.ErrorXCIMissingProgramNCA)
	return x, nil
}

func programStatus(program *NCA, missing models.ResultStatus) models.ResultStatus {
	if program == nil {
		return missing
	}
	if program.ExeFS() == nil {
		if s := program.SectionStatus(); s != models.Success {
			return s
		}
		return models.ErrorNoExeFS
	}
	return models.Success
}

func (x *XCI) Partition(p XCIPartition) *PartitionFilesystem { return x.partitions[p] }

func (x *XCI) NCAs() []*NCA { return x.ncas }

// Unreadable counts archives that failed to open.
func (x *XCI) Unreadable() int { return x.skipped }

// Program returns the program archive, or nil.
func (x *XCI) Program() *NCA { return x.program }

// ProgramStatus reports whether Program has a usable ExeFS.
func (x *XCI) ProgramStatus() models.ResultStatus { return x.programStatus }

func (x *XCI) Control() *NCA { return FindNCA(x.ncas, NCAContentControl) }

// OpenNCAs parses every *.nca file in d, skipping and counting ones that
// fail.
func OpenNCAs(d vfs.Dir, km *keys.Manager) (out []*NCA, skipped int) {
	for _, f := range d.Files() {
		if !strings.HasSuffix(strings.ToLower(f.Name()), ".nca") {
			continue
		}
		nca, err := ParseNCA(f, km)
		if err != nil {
			log.Debug().Err(err).Str("file", f.Name()).Msg("skipping nca")
			skipped++
			continue
		}
		out = append(out, nca)
	}
	return out, skipped
}

// FindNCA returns the first archive of content type t.
func FindNCA(ncas []*NCA, t NCAContentType) *NCA {
	for _, n := range ncas {
		if n.ContentType() == t {
			return n
		}
	}
	return nil
}
