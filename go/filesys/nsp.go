package filesys

import (
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/lunixbochs/nxcorn/go/keys"
	"github.com/lunixbochs/nxcorn/go/models"
	"github.com/lunixbochs/nxcorn/go/vfs"
)

// common tickets signed with RSA-2048
const (
	ticketTitleKeyOff = 0x180
	ticketRightsIDOff = 0x2a0
)

// NSP is a parsed submission package: either an extracted ExeFS or a
// partition filesystem of content archives and tickets.
type NSP struct {
	pfs     *PartitionFilesystem
	ncas    []*NCA
	skipped int
	program *NCA

	programStatus models.ResultStatus
}

// ParseNSP reads the package's partition filesystem. Title keys found in
// tickets are registered with km before content archives are opened.
func ParseNSP(f vfs.File, km *keys.Manager) (*NSP, error) {
	pfs, err := ParsePartitionFilesystem(f)
	if err != nil {
		return nil, err
	}
	if pfs.Hashed {
		return nil, models.StatusErr(models.ErrorBadPFSHeader, nil)
	}
	n := &NSP{pfs: pfs}
	if pfs.IsExtracted() {
		n.programStatus = models.Success
		return n, nil
	}
	if km != nil {
		ReadTickets(pfs, km)
	}
	n.ncas, n.skipped = OpenNCAs(pfs, km)
	n.program = FindNCA(n.ncas, NCAContentProgram)
	n.programStatus = programStatus(n.program, models.ErrorNSPMissingProgramNCA)
	return n, nil
}

// ReadTickets registers the title key of every *.tik file in d.
func ReadTickets(d vfs.Dir, km *keys.Manager) {
	for _, f := range d.Files() {
		if !strings.HasSuffix(strings.ToLower(f.Name()), ".tik") {
			continue
		}
		key, err := vfs.ReadBytes(f, ticketTitleKeyOff, 0x10)
		if err != nil {
			log.Debug().Err(err).Str("file", f.Name()).Msg("bad ticket")
			continue
		}
		rid, err := vfs.ReadBytes(f, ticketRightsIDOff, 0x10)
		if err != nil {
			log.Debug().Err(err).Str("file", f.Name()).Msg("bad ticket")
			continue
		}
		var rights [0x10]byte
		copy(rights[:], rid)
		km.SetTitleKey(rights, key)
	}
}

func (n *NSP) IsExtracted() bool { return n.pfs.IsExtracted() }

func (n *NSP) Partition() *PartitionFilesystem { return n.pfs }

func (n *NSP) NCAs() []*NCA { return n.ncas }

// Unreadable counts archives that failed to open.
func (n *NSP) Unreadable() int { return n.skipped }

func (n *NSP) Program() *NCA { return n.program }

func (n *NSP) ProgramStatus() models.ResultStatus { return n.programStatus }

func (n *NSP) Control() *NCA { return FindNCA(n.ncas, NCAContentControl) }

// ExeFS is the code partition: the package itself when extracted, otherwise
// the program archive's.
func (n *NSP) ExeFS() vfs.Dir {
	if n.IsExtracted() {
		return n.pfs
	}
	if n.program == nil {
		return nil
	}
	return n.program.ExeFS()
}
