package loader

import (
	"debug/elf"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"github.com/lunixbochs/nxcorn/go/keys"
	"github.com/lunixbochs/nxcorn/go/models"
	"github.com/lunixbochs/nxcorn/go/process"
	"github.com/lunixbochs/nxcorn/go/testutil"
	"github.com/lunixbochs/nxcorn/go/vfs"
)

const (
	appTitleID = 0x0100000000001000
	naxID      = "0123456789ABCDEF0123456789ABCDEF"
	codeBase   = 0x8000000
	// Sample NSOs span text, rodata and data plus 0x2000 bytes of bss
	nsoSpan = 0x5000
)

func mem(name string, data []byte) vfs.File {
	return vfs.NewBytesFile(name, data)
}

func opts() *Options {
	return &Options{Language: language.AmericanEnglish}
}

func exefsEntries(meta models.ProgramMetadata) []testutil.Entry {
	return []testutil.Entry{
		{Name: "rtld", Data: testutil.NSO(testutil.Sample(), true)},
		{Name: "main", Data: testutil.NSO(testutil.Sample(), false)},
		{Name: "sdk", Data: testutil.NSO(testutil.Sample(), true)},
		{Name: "main.npdm", Data: testutil.NPDM(meta)},
	}
}

func appMeta() models.ProgramMetadata {
	return testutil.Metadata("app", appTitleID)
}

func memDir(name string, entries []testutil.Entry, extra ...vfs.File) *vfs.MemDir {
	var files []vfs.File
	for _, e := range entries {
		files = append(files, mem(e.Name, e.Data))
	}
	return vfs.NewMemDir(name, append(files, extra...), nil)
}

func exefsDir(extra ...vfs.File) *vfs.MemDir {
	return memDir("exefs", exefsEntries(appMeta()), extra...)
}

func programNCA() *testutil.NCA {
	return &testutil.NCA{
		ContentType: testutil.NCAProgram,
		TitleID:     appTitleID,
		Sections: []testutil.NCASection{
			{FilesystemType: testutil.NCAPFS0, Data: testutil.PFS0(exefsEntries(appMeta())...)},
			{FilesystemType: testutil.NCARomFS, Data: testutil.RomFS(&testutil.RomFSDir{
				Files: []testutil.Entry{{Name: "asset", Data: []byte("romfs data")}},
			})},
		},
	}
}

func controlNCA() *testutil.NCA {
	return &testutil.NCA{
		ContentType: testutil.NCAControl,
		TitleID:     appTitleID,
		Sections: []testutil.NCASection{
			{FilesystemType: testutil.NCARomFS, Data: testutil.RomFS(&testutil.RomFSDir{
				Files: []testutil.Entry{
					{Name: "control.nacp", Data: testutil.NACP(testutil.Control("Game", "Dev", "1.0"))},
					{Name: "icon_AmericanEnglish.dat", Data: []byte("jpeg")},
				},
			})},
		},
	}
}

func xciImage() []byte {
	return testutil.XCI(
		testutil.Partition("update"),
		testutil.Partition("secure",
			testutil.Entry{Name: "0123.nca", Data: programNCA().Build()},
			testutil.Entry{Name: "4567.nca", Data: controlNCA().Build()},
		),
	)
}

func nspImage() []byte {
	return testutil.PFS0(
		testutil.Entry{Name: "0123.nca", Data: programNCA().Build()},
		testutil.Entry{Name: "4567.nca", Data: controlNCA().Build()},
		testutil.Entry{Name: "0123.cnmt.xml", Data: []byte("<ContentMeta/>")},
	)
}

func kipFixture() *testutil.KIP {
	return &testutil.KIP{
		Name:      "FS",
		TitleID:   0x0100000000000000,
		Priority:  0x1c,
		Core:      3,
		Is64Bit:   true,
		Is39Bit:   true,
		StackSize: 0x4000,
		Compress:  true,
		Caps:      []uint32{0x3ffff7ff, 0x0000a7f7},
		Program:   testutil.Sample(),
	}
}

// naxFile places a NAX-wrapped program archive at an SD card content path.
func naxFile(dir string) vfs.File {
	payload := programNCA().Build()
	return vfs.NewMemDir(dir, []vfs.File{
		mem("00", testutil.NAX(uint64(len(payload)), payload)),
	}, nil).File("00")
}

func sdKeys() *keys.Manager {
	km := keys.NewManager()
	for _, name := range []string{
		keys.SDSeed, keys.SDCardKEKSource, keys.AESKEKGenerationSource,
		keys.AESKeyGenerationSource, keys.SDCardSaveKeySource, keys.SDCardNCAKeySource,
	} {
		km.SetKey(name, make([]byte, 0x10))
	}
	km.Decrypter = &testutil.XORDecrypter{}
	return km
}

// samples returns one well-formed file of every registered format.
func samples() map[models.FileType]vfs.File {
	return map[models.FileType]vfs.File{
		models.FileTypeDeconstructedRomDirectory: exefsDir().File("main"),
		models.FileTypeELF:                       mem("app.elf", testutil.ELF(elf.EM_AARCH64, testutil.Sample().Text)),
		models.FileTypeNSO:                       mem("app.nso", testutil.NSO(testutil.Sample(), true)),
		models.FileTypeNRO:                       mem("app.nro", testutil.NRO(testutil.Sample(), nil)),
		models.FileTypeNCA:                       mem("app.nca", programNCA().Build()),
		models.FileTypeXCI:                       mem("app.xci", xciImage()),
		models.FileTypeNAX:                       naxFile("/registered/000000ab/" + naxID + ".nca"),
		models.FileTypeNSP:                       mem("app.nsp", nspImage()),
		models.FileTypeKIP:                       mem("app.kip", kipFixture().Build()),
	}
}

func newImage() *process.Image {
	return process.NewImage()
}

func requireLoaded(t *testing.T, l models.Loader, p *process.Image) {
	t.Helper()
	require.NotNil(t, l)
	require.Equal(t, models.Success, l.Load(p))
	require.True(t, l.IsLoaded())
	require.True(t, p.Running())
}
