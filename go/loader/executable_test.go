package loader

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lunixbochs/nxcorn/go/models"
	"github.com/lunixbochs/nxcorn/go/process"
	"github.com/lunixbochs/nxcorn/go/testutil"
	"github.com/lunixbochs/nxcorn/go/vfs"
)

func TestReadNSO(t *testing.T) {
	t.Parallel()
	p := testutil.Sample()
	for _, compress := range []bool{false, true} {
		cs, err := ReadNSO(mem("main", testutil.NSO(p, compress)))
		require.NoError(t, err)
		assert.Equal(t, "main", cs.Name)
		assert.Equal(t, uint64(nsoSpan), cs.ImageSize())
		require.Len(t, cs.Segments, 3)
		assert.Equal(t, models.CodeSegment{Name: ".text", Off: 0, Addr: 0, Size: 0x1000, Prot: models.PROT_READ | models.PROT_EXEC}, cs.Segments[0])
		assert.Equal(t, uint64(0x1000), cs.Segments[1].Addr)
		assert.Equal(t, uint64(0x3000), cs.Segments[2].Size)
		assert.Equal(t, p.Text, cs.Memory[:len(p.Text)])
		assert.Equal(t, p.RoData, cs.Memory[0x1000:0x1000+len(p.RoData)])
		assert.Equal(t, p.Data, cs.Memory[0x2000:0x2000+len(p.Data)])
	}
}

func TestReadNSOErrors(t *testing.T) {
	t.Parallel()
	_, err := ReadNSO(nil)
	assert.Equal(t, models.ErrorNullFile, models.StatusOf(err, models.Success))

	_, err = ReadNSO(mem("main", []byte("NSO0")))
	assert.Equal(t, models.ErrorLoadingNSO, models.StatusOf(err, models.Success))

	img := testutil.NSO(testutil.Sample(), true)
	_, err = ReadNSO(mem("main", img[:len(img)-8]))
	assert.Equal(t, models.ErrorLoadingNSO, models.StatusOf(err, models.Success))

	// a flagged segment whose stored bytes are not lz4
	raw := testutil.NSO(testutil.Sample(), false)
	raw[0xc] |= 1
	_, err = ReadNSO(mem("main", raw))
	assert.Equal(t, models.ErrorLoadingNSO, models.StatusOf(err, models.Success))
}

func TestReadNSOBadLayout(t *testing.T) {
	t.Parallel()
	for _, tc := range []struct {
		name     string
		compress bool
		off      int
		val      uint32
	}{
		{"data far away", false, 0x34, 0xfffff000},
		{"huge bss", false, 0x3c, 0xffffffff},
		{"bss past image limit", true, 0x3c, maxImageSize},
		{"text expands too far", true, 0x18, 0x3fff0000},
	} {
		raw := testutil.NSO(testutil.Sample(), tc.compress)
		binary.LittleEndian.PutUint32(raw[tc.off:], tc.val)
		_, err := ReadNSO(mem("main", raw))
		assert.Equal(t, models.ErrorLoadingNSO, models.StatusOf(err, models.Success), tc.name)
	}
}

func TestReadNROHugeBSS(t *testing.T) {
	t.Parallel()
	raw := testutil.NRO(testutil.Sample(), nil)
	binary.LittleEndian.PutUint32(raw[0x38:], 0xffffffff)
	_, err := ReadNRO(mem("app.nro", raw))
	assert.Equal(t, models.ErrorLoadingNRO, models.StatusOf(err, models.Success))
}

func TestNsoLoader(t *testing.T) {
	t.Parallel()
	l := NewNsoLoader(mem("app.nso", testutil.NSO(testutil.Sample(), true)), opts())
	p := newImage()
	requireLoaded(t, l, p)
	assert.Equal(t, models.ErrorAlreadyLoaded, l.Load(newImage()))
	assert.True(t, l.IsLoaded())

	assert.Equal(t, uint64(codeBase), p.MainThread().Entry)
	assert.Equal(t, uint8(models.DefaultThreadPriority), p.MainThread().Priority)
	code, err := p.MemRead(codeBase, 4)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x1f, 0x20, 0x03, 0xd5}, code)

	is64, status := l.Is64Bit()
	assert.Equal(t, models.Success, status)
	assert.True(t, is64)

	_, status = l.ReadIcon()
	assert.Equal(t, models.ErrorNotImplemented, status)
	_, status = l.ReadProgramID()
	assert.Equal(t, models.ErrorNotImplemented, status)
	_, status = l.ReadRomFS()
	assert.Equal(t, models.ErrorNotImplemented, status)
}

func TestNsoLoaderFailedLoadCanRetry(t *testing.T) {
	t.Parallel()
	l := NewNsoLoader(mem("app.nso", testutil.NSO(testutil.Sample(), false)), opts())

	busy := newImage()
	require.NoError(t, busy.LoadFromMetadata(models.DefaultMetadata()))
	assert.Equal(t, models.ErrorUnableToParseKernelMetadata, l.Load(busy))
	assert.False(t, l.IsLoaded())

	requireLoaded(t, l, newImage())
}

func assets() *testutil.Assets {
	c := testutil.Control("Homebrew", "Author", "2.1")
	c.PresenceGroupID = 0x0500000000000001
	return &testutil.Assets{
		Icon:  []byte("icon-jpeg"),
		NACP:  testutil.NACP(c),
		RomFS: []byte("romfs-bytes"),
	}
}

func TestNroLoader(t *testing.T) {
	t.Parallel()
	l := NewNroLoader(mem("hb.nro", testutil.NRO(testutil.Sample(), assets())), opts())
	assert.Equal(t, models.FileTypeNRO, l.FileType())

	icon, status := l.ReadIcon()
	assert.Equal(t, models.Success, status)
	assert.Equal(t, []byte("icon-jpeg"), icon)

	title, status := l.ReadTitle()
	assert.Equal(t, models.Success, status)
	assert.Equal(t, "Homebrew", title)
	dev, _ := l.ReadDeveloper()
	assert.Equal(t, "Author", dev)
	cd, status := l.ReadControlData()
	require.Equal(t, models.Success, status)
	assert.Equal(t, "2.1", cd.DisplayVersion)
	id, status := l.ReadProgramID()
	assert.Equal(t, models.Success, status)
	assert.Equal(t, uint64(0x0500000000000001), id)

	romfs, status := l.ReadRomFS()
	require.Equal(t, models.Success, status)
	data, err := vfs.ReadAll(romfs)
	require.NoError(t, err)
	assert.Equal(t, []byte("romfs-bytes"), data)

	p := newImage()
	requireLoaded(t, l, p)
	magic, err := p.MemRead(codeBase+0x10, 4)
	require.NoError(t, err)
	assert.Equal(t, []byte("NRO0"), magic)
	code, err := p.MemRead(codeBase+0x80, 4)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x1f, 0x20, 0x03, 0xd5}, code)
	assert.Equal(t, models.ErrorAlreadyLoaded, l.Load(newImage()))
}

func TestNroLoaderWithoutAssets(t *testing.T) {
	t.Parallel()
	l := NewNroLoader(mem("hb.nro", testutil.NRO(testutil.Sample(), nil)), opts())
	_, status := l.ReadIcon()
	assert.Equal(t, models.ErrorNoIcon, status)
	_, status = l.ReadTitle()
	assert.Equal(t, models.ErrorNoControl, status)
	_, status = l.ReadProgramID()
	assert.Equal(t, models.ErrorNoControl, status)
	_, status = l.ReadRomFS()
	assert.Equal(t, models.ErrorNoRomFS, status)
	requireLoaded(t, l, newImage())
}

func TestNroLoaderErrors(t *testing.T) {
	t.Parallel()
	assert.Equal(t, models.ErrorNullFile, NewNroLoader(nil, opts()).Load(newImage()))

	img := testutil.NRO(testutil.Sample(), nil)
	l := NewNroLoader(mem("hb.nro", img[:0x1000]), opts())
	assert.Equal(t, models.ErrorLoadingNRO, l.Load(newImage()))
	assert.False(t, l.IsLoaded())
}

func TestElfLoader(t *testing.T) {
	t.Parallel()
	text := testutil.Sample().Text
	f := mem("app.elf", testutil.ELF(elf.EM_AARCH64, text))
	assert.Equal(t, models.FileTypeELF, IdentifyELF(f))

	cs, is64, err := ReadELF(f)
	require.NoError(t, err)
	assert.True(t, is64)
	assert.Equal(t, uint64(0), cs.Entry)
	require.Len(t, cs.Segments, 1)
	assert.Equal(t, ".text", cs.Segments[0].Name)
	assert.Equal(t, models.PROT_READ|models.PROT_EXEC, cs.Segments[0].Prot)
	assert.Equal(t, uint64(0x2000), cs.ImageSize())

	l := NewElfLoader(f, opts())
	ok, status := l.Is64Bit()
	assert.Equal(t, models.Success, status)
	assert.True(t, ok)
	p := newImage()
	requireLoaded(t, l, p)
	code, err := p.MemRead(codeBase, uint64(len(text)))
	require.NoError(t, err)
	assert.Equal(t, text, code)
	assert.Equal(t, uint64(codeBase), p.MainThread().Entry)
}

func TestElfIdentifyMachine(t *testing.T) {
	t.Parallel()
	assert.Equal(t, models.FileTypeELF, IdentifyELF(mem("a", testutil.ELF(elf.EM_ARM, []byte{1, 2, 3, 4}))))
	assert.Equal(t, models.FileTypeError, IdentifyELF(mem("a", testutil.ELF(elf.EM_X86_64, []byte{1, 2, 3, 4}))))
	assert.Equal(t, models.FileTypeError, IdentifyELF(mem("a", []byte("\x7fELF"))))
	assert.Equal(t, models.FileTypeError, IdentifyELF(nil))
}

func TestElfLoaderErrors(t *testing.T) {
	t.Parallel()
	img := testutil.ELF(elf.EM_AARCH64, testutil.Sample().Text)
	l := NewElfLoader(mem("app.elf", img[:0x800]), opts())
	assert.Equal(t, models.ErrorIncorrectELFFileSize, l.Load(newImage()))

	l = NewElfLoader(mem("x86.elf", testutil.ELF(elf.EM_X86_64, []byte{1})), opts())
	assert.Equal(t, models.ErrorIncorrectELFFileSize, l.Load(newImage()))

	_, status := NewElfLoader(mem("junk.elf", []byte("junk")), opts()).Is64Bit()
	assert.Equal(t, models.ErrorIncorrectELFFileSize, status)
}

func TestElfLoaderSegments(t *testing.T) {
	t.Parallel()
	text := testutil.Sample().Text
	rodata := testutil.Sample().RoData
	data := testutil.Sample().Data
	textSeg := testutil.ELFSegment{Flags: elf.PF_R | elf.PF_X, Vaddr: 0x1000, Data: text}
	for _, tc := range []struct {
		name   string
		segs   []testutil.ELFSegment
		status models.ResultStatus
		check  func(t *testing.T, p *process.Image)
	}{
		{
			name: "bss only",
			segs: []testutil.ELFSegment{textSeg, {Flags: elf.PF_R | elf.PF_W, Vaddr: 0x2000, Memsz: 0x10}},
			check: func(t *testing.T, p *process.Image) {
				bss, err := p.MemRead(codeBase+0x1000, 0x10)
				require.NoError(t, err)
				assert.Equal(t, make([]byte, 0x10), bss)
				prot, err := p.Prot(codeBase + 0x1000)
				require.NoError(t, err)
				assert.Equal(t, models.PROT_READ|models.PROT_WRITE, prot)
			},
		},
		{
			name: "text rodata data",
			segs: []testutil.ELFSegment{
				textSeg,
				{Flags: elf.PF_R, Vaddr: 0x2000, Data: rodata},
				{Flags: elf.PF_R | elf.PF_W, Vaddr: 0x3000, Data: data, Memsz: 0x1000},
			},
			check: func(t *testing.T, p *process.Image) {
				got, err := p.MemRead(codeBase+0x1000, uint64(len(rodata)))
				require.NoError(t, err)
				assert.Equal(t, rodata, got)
				got, err = p.MemRead(codeBase+0x2000, uint64(len(data)))
				require.NoError(t, err)
				assert.Equal(t, data, got)
				prot, err := p.Prot(codeBase + 0x1000)
				require.NoError(t, err)
				assert.Equal(t, models.PROT_READ, prot)
			},
		},
		{
			name:   "far vaddr",
			segs:   []testutil.ELFSegment{textSeg, {Flags: elf.PF_R, Vaddr: 1 << 62, Data: []byte{1, 2, 3, 4}}},
			status: models.ErrorIncorrectELFFileSize,
		},
		{
			name:   "past image limit",
			segs:   []testutil.ELFSegment{textSeg, {Flags: elf.PF_R, Vaddr: 0x1000 + maxImageSize, Data: []byte{1, 2, 3, 4}}},
			status: models.ErrorIncorrectELFFileSize,
		},
		{
			name:   "huge bss",
			segs:   []testutil.ELFSegment{textSeg, {Flags: elf.PF_R | elf.PF_W, Vaddr: 0x2000, Memsz: 1 << 40}},
			status: models.ErrorIncorrectELFFileSize,
		},
	} {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			l := NewElfLoader(mem("app.elf", testutil.ELFSegments(elf.EM_AARCH64, 0x1000, tc.segs...)), opts())
			p := newImage()
			assert.Equal(t, tc.status, l.Load(p))
			if tc.check != nil {
				code, err := p.MemRead(codeBase, uint64(len(text)))
				require.NoError(t, err)
				assert.Equal(t, text, code)
				tc.check(t, p)
			}
		})
	}
}

func TestBLZ(t *testing.T) {
	t.Parallel()
	for _, d := range [][]byte{
		testutil.Sample().Text,
		testutil.Sample().RoData,
		bytes.Repeat([]byte("abcdefgh"), 0x300),
		append([]byte("unique prefix!"), bytes.Repeat([]byte{0}, 0x200)...),
	} {
		out, err := DecompressBLZ(testutil.BLZ(d))
		require.NoError(t, err)
		assert.Equal(t, d, out)
	}
}

func TestBLZErrors(t *testing.T) {
	t.Parallel()
	_, err := DecompressBLZ([]byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrBLZ)

	// compressed size larger than the buffer
	_, err = DecompressBLZ([]byte{0xff, 0, 0, 0, 0xc, 0, 0, 0, 0, 0, 0, 0})
	assert.ErrorIs(t, err, ErrBLZ)

	// a back reference past the end of the output
	bad := []byte{0xff, 0xff, 0x80, 0x0f, 0, 0, 0, 0xc, 0, 0, 0, 0x10, 0, 0, 0}
	_, err = DecompressBLZ(bad)
	assert.ErrorIs(t, err, ErrBLZ)

	c := testutil.BLZ(bytes.Repeat([]byte("abcd"), 0x100))
	c[len(c)-0xc+3] = 0x10
	_, err = DecompressBLZ(c)
	// a footer claiming more output than the format can encode
	c = testutil.BLZ(bytes.Repeat([]byte("abcd"), 0x100))
	binary.LittleEndian.PutUint32(c[len(c)-4:], 0x3fffffff)
	_, err = DecompressBLZ(c)
	assert.ErrorIs(t, err, ErrBLZ)
}

func TestKipLoader(t *testing.T) {
	t.Parallel()
	fixture := kipFixture()
	f := mem("FS.kip", fixture.Build())
	k, err := ParseKIP(f)
	require.NoError(t, err)
	assert.Equal(t, "FS", k.Name())
	assert.True(t, k.Is64Bit())
	assert.True(t, k.Is39Bit())
	assert.Equal(t, uint32(0x4000), k.MainThreadStackSize())
	assert.Equal(t, []uint32{0x3ffff7ff, 0x0000a7f7}, k.KernelCapabilities())

	meta := k.Metadata()
	assert.Equal(t, models.AddressSpace39Bit, meta.AddressSpace)
	assert.Equal(t, uint8(0x1c), meta.MainThreadPriority)
	assert.Equal(t, uint8(3), meta.MainThreadCore)

	cs := k.CodeSet()
	assert.Equal(t, uint64(nsoSpan), cs.ImageSize())
	assert.Equal(t, fixture.Text, cs.Memory[:len(fixture.Text)])
	assert.Equal(t, fixture.RoData, cs.Memory[0x1000:0x1000+len(fixture.RoData)])

	l := NewKipLoader(f, opts())
	id, status := l.ReadProgramID()
	assert.Equal(t, models.Success, status)
	assert.Equal(t, uint64(0x0100000000000000), id)
	title, _ := l.ReadTitle()
	assert.Equal(t, "FS", title)

	p := newImage()
	requireLoaded(t, l, p)
	assert.Equal(t, "FS", p.Metadata().Name)
	assert.Equal(t, uint64(0x4000), p.MainThread().StackSize)
	assert.Equal(t, uint8(0x1c), p.MainThread().Priority)
}

func TestKipAddressSpace(t *testing.T) {
	t.Parallel()
	for _, tc := range []struct {
		is64, is39 bool
		want       models.AddressSpace
	}{
		{true, true, models.AddressSpace39Bit},
		{true, false, models.AddressSpace36Bit},
		{false, false, models.AddressSpace32Bit},
	} {
		fixture := kipFixture()
		fixture.Is64Bit, fixture.Is39Bit, fixture.Compress = tc.is64, tc.is39, false
		k, err := ParseKIP(mem("x.kip", fixture.Build()))
		require.NoError(t, err)
		assert.Equal(t, tc.want, k.Metadata().AddressSpace)
	}
}

func TestKipLoaderErrors(t *testing.T) {
	t.Parallel()
	l := NewKipLoader(mem("x.kip", []byte("KIP1")), opts())
	assert.Equal(t, models.ErrorBadKIPHeader, l.Load(newImage()))
	_, status := l.ReadProgramID()
	assert.Equal(t, models.ErrorBadKIPHeader, status)

	// corrupt the first compressed section's footer
	img := kipFixture().Build()
	img[0x20+4*2] += 0x40
	_, err := ParseKIP(mem("x.kip", img))
	assert.Error(t, err)

	img = kipFixture().Build()
	textStored := int(img[0x20+4*2]) | int(img[0x20+4*2+1])<<8
	footer := 0x100 + textStored - 0xc
	img[footer] = 0xff
	img[footer+1] = 0xff
	_, err = ParseKIP(mem("x.kip", img))
	assert.Equal(t, models.ErrorBLZDecompressionFailed, models.StatusOf(err, models.Success))
}

func TestKipBadLayout(t *testing.T) {
	t.Parallel()
	for _, tc := range []struct {
		name string
		off  int
		val  uint32
	}{
		{"data far away", 0x20 + 2*16, 0xfffff000},
		{"huge bss", 0x54, 0xffffffff},
		{"bss past image limit", 0x54, maxImageSize},
	} {
		fixture := kipFixture()
		fixture.Compress = false
		img := fixture.Build()
		binary.LittleEndian.PutUint32(img[tc.off:], tc.val)
		_, err := ParseKIP(mem("x.kip", img))
		assert.Equal(t, models.ErrorBadKIPHeader, models.StatusOf(err, models.Success), tc.name)
		assert.Equal(t, models.ErrorBadKIPHeader, NewKipLoader(mem("x.kip", img), opts()).Load(newImage()), tc.name)
	}
}
