package testutil

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/lunixbochs/nxcorn/go/vfs"
)

// XORDecrypter stands in for real key handling: NCA headers are "encrypted"
// by XOR with Key and NAX payloads are stored in plaintext after the header.
type XORDecrypter struct {
	Key byte
	// NAXPaths records every SD path DecryptNAX was called with.
	NAXPaths []string
}

// XOR returns a copy of p with the first n bytes XORed with key.
func XOR(p []byte, key byte, n int) []byte {
	out := append([]byte(nil), p...)
	for i := 0; i < n && i < len(out); i++ {
		out[i] ^= key
	}
	return out
}

func (x *XORDecrypter) DecryptNCAHeader(raw []byte) ([]byte, error) {
	if x.Key == 0 {
		return nil, errors.New("no header key")
	}
	return XOR(raw, x.Key, len(raw)), nil
}

func (x *XORDecrypter) DecryptNAX(f vfs.File, sdPath string) (vfs.File, error) {
	x.NAXPaths = append(x.NAXPaths, sdPath)
	p, err := vfs.ReadBytes(f, 0x48, 8)
	if err != nil {
		return nil, err
	}
	size := int64(binary.LittleEndian.Uint64(p))
	return vfs.Section(f, f.Name(), 0x4000, size), nil
}
