package loader

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lunixbochs/nxcorn/go/models"
	"github.com/lunixbochs/nxcorn/go/testutil"
	"github.com/lunixbochs/nxcorn/go/vfs"
)

func TestDirectoryLoader(t *testing.T) {
	t.Parallel()
	dir := exefsDir(
		mem("control.nacp", testutil.NACP(testutil.Control("Game", "Dev", "1.0"))),
		mem("icon_AmericanEnglish.dat", []byte("us icon")),
		mem("game.romfs", []byte("romfs")),
	)
	l := NewDirectoryLoader(dir.File("main"), opts())
	assert.Equal(t, models.FileTypeDeconstructedRomDirectory, l.FileType())

	id, status := l.ReadProgramID()
	assert.Equal(t, models.Success, status)
	assert.Equal(t, uint64(appTitleID), id)
	title, _ := l.ReadTitle()
	assert.Equal(t, "Game", title)
	dev, _ := l.ReadDeveloper()
	assert.Equal(t, "Dev", dev)
	icon, status := l.ReadIcon()
	assert.Equal(t, models.Success, status)
	assert.Equal(t, []byte("us icon"), icon)
	romfs, status := l.ReadRomFS()
	require.Equal(t, models.Success, status)
	assert.Equal(t, "game.romfs", romfs.Name())
	is64, _ := l.Is64Bit()
	assert.True(t, is64)

	p := newImage()
	requireLoaded(t, l, p)
	assert.Equal(t, []Module{
		{Name: "rtld", Base: codeBase, Size: nsoSpan},
		{Name: "main", Base: codeBase + nsoSpan, Size: nsoSpan},
		{Name: "sdk", Base: codeBase + 2*nsoSpan, Size: nsoSpan},
	}, l.(*DirectoryLoader).Modules())
	assert.Len(t, p.Modules(), 3)
	assert.Equal(t, uint64(codeBase), p.MainThread().Entry)
	assert.Equal(t, "app", p.Metadata().Name)
	assert.Equal(t, []uint32{0x3ffff7ff, 0x0000a7f7}, p.Metadata().KernelCapabilities)
	assert.Equal(t, models.ErrorAlreadyLoaded, l.Load(newImage()))
}

func TestDirectoryLoaderMissingControl(t *testing.T) {
	t.Parallel()
	l := NewDirectoryLoader(exefsDir().File("main"), opts())
	title, status := l.ReadTitle()
	assert.Equal(t, models.Success, status)
	assert.Equal(t, "app", title)
	_, status = l.ReadDeveloper()
	assert.Equal(t, models.ErrorNoControl, status)
	_, status = l.ReadIcon()
	assert.Equal(t, models.ErrorNoIcon, status)
	_, status = l.ReadRomFS()
	assert.Equal(t, models.ErrorNoRomFS, status)
}

func TestDirectoryLoaderIconFallback(t *testing.T) {
	t.Parallel()
	l := NewDirectoryLoader(exefsDir(mem("icon_Japanese.dat", []byte("jp icon"))).File("main"), opts())
	icon, status := l.ReadIcon()
	assert.Equal(t, models.Success, status)
	assert.Equal(t, []byte("jp icon"), icon)
}

func TestDirectoryLoaderErrors(t *testing.T) {
	t.Parallel()
	noMeta := memDir("exefs", []testutil.Entry{{Name: "main", Data: testutil.NSO(testutil.Sample(), false)}})
	l := NewDirectoryLoader(noMeta.File("main"), opts())
	assert.Equal(t, models.ErrorMissingNPDM, l.Load(newImage()))
	_, status := l.ReadProgramID()
	assert.Equal(t, models.ErrorMissingNPDM, status)

	meta := appMeta()
	meta.AddressSpace = models.AddressSpace32Bit
	meta.Is64Bit = false
	l = NewDirectoryLoader(memDir("exefs", exefsEntries(meta)).File("main"), opts())
	assert.Equal(t, models.Error32BitISA, l.Load(newImage()))
	assert.False(t, l.IsLoaded())
	is64, status := l.Is64Bit()
	assert.Equal(t, models.Success, status)
	assert.False(t, is64)

	meta.AddressSpace = models.AddressSpace32BitNoMap
	l = NewDirectoryLoader(memDir("exefs", exefsEntries(meta)).File("main"), opts())
	assert.Equal(t, models.Error32BitISA, l.Load(newImage()))

	badNPDM := memDir("exefs", []testutil.Entry{
		{Name: "main", Data: testutil.NSO(testutil.Sample(), false)},
		{Name: "main.npdm", Data: []byte("META but far too short")},
	})
	l = NewDirectoryLoader(badNPDM.File("main"), opts())
	assert.Equal(t, models.ErrorBadNPDMHeader, l.Load(newImage()))

	badNSO := memDir("exefs", []testutil.Entry{
		{Name: "main", Data: []byte("NSO0")},
		{Name: "main.npdm", Data: testutil.NPDM(appMeta())},
	})
	l = NewDirectoryLoader(badNSO.File("main"), opts())
	assert.Equal(t, models.ErrorLoadingNSO, l.Load(newImage()))

	assert.Equal(t, models.ErrorNullFile, NewDirectoryLoader(nil, opts()).Load(newImage()))
}

func TestIdentifyDirectory(t *testing.T) {
	t.Parallel()
	dir := exefsDir()
	for _, f := range dir.Files() {
		assert.Equal(t, models.FileTypeDeconstructedRomDirectory, IdentifyDirectory(f), f.Name())
	}
	loose := vfs.NewMemDir("loose", []vfs.File{mem("main", testutil.NSO(testutil.Sample(), false))}, nil)
	assert.Equal(t, models.FileTypeError, IdentifyDirectory(loose.File("main")))
	assert.Equal(t, models.FileTypeError, IdentifyDirectory(mem("main", nil)))
	assert.Equal(t, models.FileTypeError, IdentifyDirectory(nil))
}
