package models

const (
	PROT_NONE  = 0
	PROT_READ  = 1
	PROT_WRITE = 2
	PROT_EXEC  = 4
	PROT_ALL   = PROT_READ | PROT_WRITE | PROT_EXEC
)

const PageSize = 0x1000

func PageAlign(n uint64) uint64 {
	return (n + PageSize - 1) &^ (PageSize - 1)
}

// CodeSegment is a window of a CodeSet's memory. Addr is relative to the
// module base.
type CodeSegment struct {
	Name       string
	Off        uint64
	Addr, Size uint64
	Prot       int
}

// CodeSet is a module image ready to be mapped.
type CodeSet struct {
	Name     string
	Memory   []byte
	Segments []CodeSegment
	// Entry is relative to the module base.
	Entry uint64
}

// Data returns the bytes backing seg, zero-extended to its size.
func (c *CodeSet) Data(seg *CodeSegment) []byte {
	out := make([]byte, seg.Size)
	if seg.Off < uint64(len(c.Memory)) {
		copy(out, c.Memory[seg.Off:])
	}
	return out
}

// ImageSize is the page-aligned span covered by all segments.
func (c *CodeSet) ImageSize() uint64 {
	var end uint64
	for _, s := range c.Segments {
		if e := s.Addr + s.Size; e > end {
			end = e
		}
	}
	return PageAlign(end)
}

func (s *CodeSegment) ContainsVirt(addr uint64) bool {
	return s.Addr <= addr && addr < s.Addr+s.Size
}

type Segment struct {
	Start, End uint64
}

func (s *Segment) Overlaps(o *Segment) bool {
	return (s.Start >= o.Start && s.Start < o.End) || (o.Start >= s.Start && o.Start < s.End)
}

func (s *Segment) Merge(o *Segment) {
	if s.Start > o.Start {
		s.Start = o.Start
	}
	if s.End < o.End {
		s.End = o.End
	}
}
