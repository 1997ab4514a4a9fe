package loader

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/lunixbochs/struc"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/lunixbochs/nxcorn/go/models"
	"github.com/lunixbochs/nxcorn/go/vfs"
)

func unpackAt(r io.ReaderAt, i interface{}, at int64) (int, error) {
	size, err := struc.Sizeof(i)
	if err != nil {
		return 0, err
	}
	return size, struc.UnpackWithOrder(io.NewSectionReader(r, at, int64(size)), i, binary.LittleEndian)
}

// readHeader unpacks a fixed header at the start of f. Short files fail
// without reading.
func readHeader(f vfs.File, i interface{}) error {
	size, err := struc.Sizeof(i)
	if err != nil {
		return err
	}
	if f.Size() < int64(size) {
		return errors.Wrapf(vfs.ErrShortRead, "%s: %#x byte header", f.Name(), size)
	}
	_, err = unpackAt(f, i, 0)
	return errors.Wrap(err, "unpack failed")
}

// image accumulates the memory of a module as segments are placed.
type image struct {
	cs models.CodeSet
}

// place copies data to addr and records a page-aligned segment there.
func (m *image) place(name string, addr uint64, data []byte, prot int) {
	end := addr + uint64(len(data))
	if uint64(len(m.cs.Memory)) < end {
		m.cs.Memory = append(m.cs.Memory, make([]byte, end-uint64(len(m.cs.Memory)))...)
	}
	copy(m.cs.Memory[addr:], data)
	m.cs.Segments = append(m.cs.Segments, models.CodeSegment{
		Name: name,
		Off:  addr,
		Addr: addr,
		Size: models.PageAlign(uint64(len(data))),
		Prot: prot,
	})
}

// addBSS extends the last segment by size bytes of zeroes and pads the
// image to a page boundary.
func (m *image) addBSS(size uint64) {
	if n := len(m.cs.Segments); n > 0 {
		last := &m.cs.Segments[n-1]
		last.Size = models.PageAlign(last.Size + size)
	}
	total := models.PageAlign(uint64(len(m.cs.Memory)) + size)
	if end := m.cs.ImageSize(); end > total {
		total = end
	}
	m.cs.Memory = append(m.cs.Memory, make([]byte, total-uint64(len(m.cs.Memory)))...)
}

func (m *image) codeSet(name string) *models.CodeSet {
	m.cs.Name = name
	return &m.cs
}

// maxSegmentSize bounds the decompressed size of a single segment, and
// maxImageSize the span of a whole module.
const (
	maxSegmentSize = 1 << 30
	maxImageSize   = 1 << 30
)

var errImageSpan = errors.New("module image too large")

// checkSpan rejects a segment at addr of size bytes that would end past
// maxImageSize.
func checkSpan(name string, addr, size uint64) error {
	if addr > maxImageSize || size > maxImageSize-addr {
		return errors.Wrapf(errImageSpan, "%s: %#x bytes at %#x", name, size, addr)
	}
	return nil
}

func hexAddr(addr uint64) string { return fmt.Sprintf("%#x", addr) }

// loadExecutable brings up a process for a single module: apply meta, map
// cs at the start of the code region and start the main thread at its entry.
func loadExecutable(p models.Process, meta models.ProgramMetadata, cs *models.CodeSet) error {
	if err := p.LoadFromMetadata(meta); err != nil {
		return models.StatusErr(models.ErrorUnableToParseKernelMetadata, err)
	}
	base := p.CodeRegionStart()
	if err := p.LoadModule(cs, base); err != nil {
		return err
	}
	log.Debug().Str("module", cs.Name).Str("base", hexAddr(base)).Msg("loaded module")
	return p.Run(base+cs.Entry, meta.MainThreadPriority, uint64(meta.MainStackSize))
}

// cstring trims a NUL-padded field.
func cstring(p []byte) string {
	if i := bytes.IndexByte(p, 0); i >= 0 {
		p = p[:i]
	}
	return string(p)
}
