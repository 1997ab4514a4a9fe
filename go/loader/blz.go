package loader

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

var ErrBLZ = errors.New("blz: corrupt stream")

// DecompressBLZ expands a backwards-LZ compressed section. The last 12 bytes
// are a footer of compressed size, footer size and additional output size;
// decoding runs from the end of the buffer towards its start.
func DecompressBLZ(data []byte) ([]byte, error) {
	if len(data) < 0xc {
		return nil, errors.Wrap(ErrBLZ, "missing footer")
	}
	footer := data[len(data)-0xc:]
	compressed := int(binary.LittleEndian.Uint32(footer[0:]))
	headerSize := int(binary.LittleEndian.Uint32(footer[4:]))
	additional := int(binary.LittleEndian.Uint32(footer[8:]))
	if compressed > len(data) || headerSize > compressed || headerSize < 0xc || additional > maxSegmentSize || additional > 9*compressed {
		return nil, errors.Wrapf(ErrBLZ, "bad footer %#x/%#x/%#x", compressed, headerSize, additional)
	}

	out := make([]byte, len(data)+additional)
	copy(out, data)
	base := out[len(data)-compressed:]
	in := compressed - headerSize
	pos := compressed + additional
	for pos > 0 {
		if in < 1 {
			return nil, errors.Wrap(ErrBLZ, "truncated control byte")
		}
		in--
		control := base[in]
		for i := 0; i < 8 && pos > 0; i++ {
			if control&0x80 != 0 {
				if in < 2 {
					return nil, errors.Wrap(ErrBLZ, "truncated back reference")
				}
				in -= 2
				ref := int(base[in]) | int(base[in+1])<<8
				size := (ref>>12)&0xf + 3
				off := ref&0xfff + 3
				if size > pos {
					size = pos
				}
				pos -= size
				if pos+size+off > len(base) {
					return nil, errors.Wrap(ErrBLZ, "back reference out of range")
				}
				for j := 0; j < size; j++ {
					base[pos+j] = base[pos+j+off]
				}
			} else {
				if in < 1 {
					return nil, errors.Wrap(ErrBLZ, "truncated literal")
				}
				in--
				pos--
				base[pos] = base[in]
			}
			control <<= 1
		}
	}
	return out, nil
}
