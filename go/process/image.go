// Package process is an in-memory process image. Loaders map modules into
// it the way a kernel would, and the result can be inspected or dumped.
package process

import (
	"fmt"
	"sort"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/lunixbochs/nxcorn/go/models"
)

const (
	codeRegion32 = 0x200000
	codeRegion64 = 0x8000000

	maxPriority = 63
)

var (
	ErrNoMetadata     = errors.New("process metadata not loaded")
	ErrMetadataLoaded = errors.New("process metadata already loaded")
	ErrRunning        = errors.New("process already running")
	ErrNoModules      = errors.New("no modules mapped")
	ErrUnaligned      = errors.New("module base is not page aligned")
	ErrOverlap        = errors.New("module overlaps a mapped module")
	ErrOutOfRange     = errors.New("address outside the address space")
	ErrUnmapped       = errors.New("address is not mapped")
)

// Module is a CodeSet mapped at Base.
type Module struct {
	Name     string
	Base     uint64
	Size     uint64
	Segments []models.CodeSegment
	Memory   []byte
}

func (m *Module) segment() *models.Segment {
	return &models.Segment{Start: m.Base, End: m.Base + m.Size}
}

func (m *Module) String() string {
	return fmt.Sprintf("%#x-%#x %s", m.Base, m.Base+m.Size, m.Name)
}

// MainThread is the thread Run starts.
type MainThread struct {
	Entry     uint64
	Priority  uint8
	StackSize uint64
}

// Image implements models.Process without executing anything.
type Image struct {
	meta    *models.ProgramMetadata
	modules []*Module
	main    *MainThread
}

var _ models.Process = (*Image)(nil)

func NewImage() *Image {
	return &Image{}
}

func (i *Image) LoadFromMetadata(meta models.ProgramMetadata) error {
	if i.meta != nil {
		return ErrMetadataLoaded
	}
	if meta.AddressSpace > models.AddressSpace39Bit {
		return errors.Errorf("invalid address space %d", meta.AddressSpace)
	}
	if meta.MainThreadPriority > maxPriority {
		return errors.Errorf("invalid main thread priority %d", meta.MainThreadPriority)
	}
	i.meta = &meta
	log.Debug().Str("name", meta.Name).Stringer("address_space", meta.AddressSpace).Msg("applied metadata")
	return nil
}

// Metadata returns the applied metadata, or nil.
func (i *Image) Metadata() *models.ProgramMetadata { return i.meta }

// CodeRegionStart depends on the address space width; it is the 64-bit
// region when no metadata has been applied.
func (i *Image) CodeRegionStart() uint64 {
	if i.meta != nil {
		switch i.meta.AddressSpace {
		case models.AddressSpace32Bit, models.AddressSpace32BitNoMap:
			return codeRegion32
		}
	}
	return codeRegion64
}

// addressBits is the width of the virtual address space.
func (i *Image) addressBits() uint {
	switch i.meta.AddressSpace {
	case models.AddressSpace36Bit:
		return 36
	case models.AddressSpace39Bit:
		return 39
	}
	return 32
}

func (i *Image) LoadModule(cs *models.CodeSet, base uint64) error {
	if i.meta == nil {
		return ErrNoMetadata
	}
	if i.main != nil {
		return ErrRunning
	}
	if base%models.PageSize != 0 {
		return errors.Wrapf(ErrUnaligned, "%#x", base)
	}
	size := cs.ImageSize()
	if size == 0 {
		return errors.Errorf("module %q is empty", cs.Name)
	}
	limit := uint64(1) << i.addressBits()
	if base >= limit || size > limit-base {
		return errors.Wrapf(ErrOutOfRange, "%#x+%#x", base, size)
	}
	mod := &Module{
		Name:     cs.Name,
		Base:     base,
		Size:     size,
		Segments: make([]models.CodeSegment, len(cs.Segments)),
		Memory:   make([]byte, size),
	}
	for _, m := range i.modules {
		if mod.segment().Overlaps(m.segment()) {
			return errors.Wrapf(ErrOverlap, "%s and %s", mod, m)
		}
	}
	for n := range cs.Segments {
		seg := cs.Segments[n]
		copy(mod.Memory[seg.Addr:], cs.Data(&seg))
		seg.Addr += base
		mod.Segments[n] = seg
	}
	i.modules = append(i.modules, mod)
	sort.Slice(i.modules, func(a, b int) bool { return i.modules[a].Base < i.modules[b].Base })
	return nil
}

// Modules returns the mapped modules in address order.
func (i *Image) Modules() []*Module { return i.modules }

func (i *Image) findModule(addr uint64) *Module {
	for _, m := range i.modules {
		if addr >= m.Base && addr < m.Base+m.Size {
			return m
		}
	}
	return nil
}

func (i *Image) Run(entry uint64, priority uint8, stackSize uint64) error {
	if i.main != nil {
		return ErrRunning
	}
	if len(i.modules) == 0 {
		return ErrNoModules
	}
	if priority > maxPriority {
		return errors.Errorf("invalid main thread priority %d", priority)
	}
	if i.findModule(entry) == nil {
		return errors.Wrapf(ErrUnmapped, "entry %#x", entry)
	}
	i.main = &MainThread{
		Entry:     entry,
		Priority:  priority,
		StackSize: models.PageAlign(stackSize),
	}
	log.Debug().Str("entry", fmt.Sprintf("%#x", entry)).Uint8("priority", priority).Msg("started main thread")
	return nil
}

// MainThread returns the thread started by Run, or nil.
func (i *Image) MainThread() *MainThread { return i.main }

func (i *Image) Running() bool { return i.main != nil }

// MemRead copies size bytes at addr. Reads may not cross a module boundary.
func (i *Image) MemRead(addr, size uint64) ([]byte, error) {
	m := i.findModule(addr)
	if m == nil {
		return nil, errors.Wrapf(ErrUnmapped, "%#x", addr)
	}
	off := addr - m.Base
	if size > m.Size-off {
		return nil, errors.Wrapf(ErrUnmapped, "%#x+%#x", addr, size)
	}
	out := make([]byte, size)
	copy(out, m.Memory[off:])
	return out, nil
}

// Prot returns the protection of the segment containing addr.
func (i *Image) Prot(addr uint64) (int, error) {
	m := i.findModule(addr)
	if m == nil {
		return 0, errors.Wrapf(ErrUnmapped, "%#x", addr)
	}
	for n := range m.Segments {
		if m.Segments[n].ContainsVirt(addr) {
			return m.Segments[n].Prot, nil
		}
	}
	return models.PROT_NONE, nil
}
