package process

import (
	"bytes"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lunixbochs/nxcorn/go/models"
)

func codeSet(name string, size int, fill byte) *models.CodeSet {
	return &models.CodeSet{
		Name:   name,
		Memory: bytes.Repeat([]byte{fill}, size),
		Segments: []models.CodeSegment{
			{Name: ".text", Off: 0, Addr: 0, Size: models.PageAlign(uint64(size)), Prot: models.PROT_READ | models.PROT_EXEC},
		},
	}
}

func running(t *testing.T) *Image {
	img := NewImage()
	require.NoError(t, img.LoadFromMetadata(models.DefaultMetadata()))
	base := img.CodeRegionStart()
	require.NoError(t, img.LoadModule(codeSet("main", 0x1800, 0xaa), base))
	require.NoError(t, img.LoadModule(codeSet("sdk", 0x1000, 0xbb), base+0x2000))
	require.NoError(t, img.Run(base, 44, 0x1800))
	return img
}

func TestCodeRegionStart(t *testing.T) {
	t.Parallel()
	for _, tc := range []struct {
		space models.AddressSpace
		want  uint64
	}{
		{models.AddressSpace32Bit, 0x200000},
		{models.AddressSpace32BitNoMap, 0x200000},
		{models.AddressSpace36Bit, 0x8000000},
		{models.AddressSpace39Bit, 0x8000000},
	} {
		img := NewImage()
		meta := models.DefaultMetadata()
		meta.AddressSpace = tc.space
		require.NoError(t, img.LoadFromMetadata(meta))
		assert.Equal(t, tc.want, img.CodeRegionStart(), tc.space.String())
	}
}

func TestLoadFromMetadata(t *testing.T) {
	t.Parallel()
	img := NewImage()
	meta := models.DefaultMetadata()
	meta.AddressSpace = 7
	assert.Error(t, img.LoadFromMetadata(meta))

	meta = models.DefaultMetadata()
	meta.MainThreadPriority = 64
	assert.Error(t, img.LoadFromMetadata(meta))

	require.NoError(t, img.LoadFromMetadata(models.DefaultMetadata()))
	assert.Equal(t, ErrMetadataLoaded, img.LoadFromMetadata(models.DefaultMetadata()))
	assert.True(t, img.Metadata().Is64Bit)
}

func TestLoadModule(t *testing.T) {
	t.Parallel()
	img := NewImage()
	base := img.CodeRegionStart()
	assert.Equal(t, ErrNoMetadata, img.LoadModule(codeSet("main", 0x1000, 1), base))

	require.NoError(t, img.LoadFromMetadata(models.DefaultMetadata()))
	assert.True(t, errors.Is(img.LoadModule(codeSet("main", 0x1000, 1), base+1), ErrUnaligned))
	assert.Error(t, img.LoadModule(&models.CodeSet{Name: "empty"}, base))
	assert.True(t, errors.Is(img.LoadModule(codeSet("high", 0x1000, 1), 1<<39), ErrOutOfRange))

	require.NoError(t, img.LoadModule(codeSet("main", 0x2000, 1), base))
	assert.True(t, errors.Is(img.LoadModule(codeSet("over", 0x1000, 2), base+0x1000), ErrOverlap))
	require.NoError(t, img.LoadModule(codeSet("below", 0x1000, 3), base-0x1000))

	mods := img.Modules()
	require.Len(t, mods, 2)
	assert.Equal(t, "below", mods[0].Name)
	assert.Equal(t, base, mods[1].Base)
	assert.Equal(t, base, mods[1].Segments[0].Addr)
}

func TestLoadModule32Bit(t *testing.T) {
	t.Parallel()
	img := NewImage()
	meta := models.DefaultMetadata()
	meta.Is64Bit = false
	meta.AddressSpace = models.AddressSpace32Bit
	require.NoError(t, img.LoadFromMetadata(meta))
	assert.True(t, errors.Is(img.LoadModule(codeSet("main", 0x2000, 1), 1<<32-0x1000), ErrOutOfRange))
	assert.NoError(t, img.LoadModule(codeSet("main", 0x1000, 1), 1<<32-0x1000))
}

func TestRun(t *testing.T) {
	t.Parallel()
	img := NewImage()
	require.NoError(t, img.LoadFromMetadata(models.DefaultMetadata()))
	assert.Equal(t, ErrNoModules, img.Run(0, 44, 0x1000))

	base := img.CodeRegionStart()
	require.NoError(t, img.LoadModule(codeSet("main", 0x1000, 1), base))
	assert.True(t, errors.Is(img.Run(base+0x1000, 44, 0x1000), ErrUnmapped))
	assert.Error(t, img.Run(base, 64, 0x1000))
	assert.False(t, img.Running())

	require.NoError(t, img.Run(base+0x10, 44, 0x1001))
	assert.True(t, img.Running())
	assert.Equal(t, &MainThread{Entry: base + 0x10, Priority: 44, StackSize: 0x2000}, img.MainThread())
	assert.Equal(t, ErrRunning, img.Run(base, 44, 0x1000))
	assert.Equal(t, ErrRunning, img.LoadModule(codeSet("late", 0x1000, 1), base+0x1000))
}

func TestMemRead(t *testing.T) {
	t.Parallel()
	img := running(t)
	base := img.CodeRegionStart()

	p, err := img.MemRead(base+0x17fe, 4)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xaa, 0xaa, 0, 0}, p)

	p, err = img.MemRead(base+0x2000, 2)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xbb, 0xbb}, p)

	_, err = img.MemRead(base+0x1ffe, 4)
	assert.True(t, errors.Is(err, ErrUnmapped))
	_, err = img.MemRead(0, 1)
	assert.True(t, errors.Is(err, ErrUnmapped))

	prot, err := img.Prot(base)
	require.NoError(t, err)
	assert.Equal(t, models.PROT_READ|models.PROT_EXEC, prot)
}

func TestDump(t *testing.T) {
	t.Parallel()
	assert.Error(t, NewImage().Dump(&bytes.Buffer{}))

	img := running(t)
	var buf bytes.Buffer
	require.NoError(t, img.Dump(&buf))
	assert.Equal(t, DumpMagic, buf.String()[:4])

	out, err := ReadDump(&buf)
	require.NoError(t, err)
	assert.Equal(t, img.MainThread(), out.MainThread())
	require.Len(t, out.Modules(), 2)
	for n, m := range img.Modules() {
		got := out.Modules()[n]
		assert.Equal(t, m.Name, got.Name)
		assert.Equal(t, m.Base, got.Base)
		assert.Equal(t, m.Memory, got.Memory)
		assert.Equal(t, m.Segments[0].Addr, got.Segments[0].Addr)
	}
}

func TestReadDumpBadMagic(t *testing.T) {
	t.Parallel()
	_, err := ReadDump(bytes.NewReader(make([]byte, 0x100)))
	assert.Error(t, err)
}
