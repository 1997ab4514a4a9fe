// Package testutil builds small, well-formed images of every container and
// executable format the loaders understand, for use as test fixtures.
package testutil

import (
	"bytes"
	"encoding/binary"

	"github.com/lunixbochs/struc"
)

// Entry is one named file of a fixture container.
type Entry struct {
	Name string
	Data []byte
}

func pack(w *bytes.Buffer, v interface{}) {
	if err := struc.PackWithOrder(w, v, binary.LittleEndian); err != nil {
		panic(err)
	}
}

// packAt overwrites buf at off with the packed form of v.
func packAt(buf []byte, off int, v interface{}) {
	var b bytes.Buffer
	pack(&b, v)
	copy(buf[off:], b.Bytes())
}

func align(n, a int) int {
	return (n + a - 1) &^ (a - 1)
}

func pad(p []byte, a int) []byte {
	return append(p, make([]byte, align(len(p), a)-len(p))...)
}

func fixed(s string, n int) []byte {
	p := make([]byte, n)
	copy(p, s)
	return p
}
