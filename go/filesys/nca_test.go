package filesys

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lunixbochs/nxcorn/go/keys"
	"github.com/lunixbochs/nxcorn/go/models"
	"github.com/lunixbochs/nxcorn/go/testutil"
	"github.com/lunixbochs/nxcorn/go/vfs"
)

func exefsImage() []byte {
	return testutil.PFS0(
		testutil.Entry{Name: "main", Data: testutil.NSO(testutil.Sample(), false)},
		testutil.Entry{Name: "main.npdm", Data: testutil.NPDM(testutil.Metadata("app", 0x0100000000001000))},
	)
}

func programNCA() *testutil.NCA {
	return &testutil.NCA{
		ContentType: testutil.NCAProgram,
		TitleID:     0x0100000000001000,
		Sections: []testutil.NCASection{
			{FilesystemType: testutil.NCAPFS0, Data: exefsImage()},
			{FilesystemType: testutil.NCARomFS, Data: testutil.RomFS(&testutil.RomFSDir{
				Files: []testutil.Entry{{Name: "asset", Data: []byte("romfs data")}},
			})},
		},
	}
}

func TestParseNCA(t *testing.T) {
	t.Parallel()

	nca, err := ParseNCA(mem("program.nca", programNCA().Build()), nil)
	require.NoError(t, err)
	assert.Equal(t, NCAContentProgram, nca.ContentType())
	assert.Equal(t, uint64(0x0100000000001000), nca.TitleID())
	assert.False(t, nca.HasRightsID())
	assert.Equal(t, models.Success, nca.SectionStatus())
	require.Len(t, nca.Sections(), 2)

	exefs := nca.ExeFS()
	require.NotNil(t, exefs)
	assert.True(t, vfs.IsExeFS(exefs))

	require.NotNil(t, nca.RomFS())
	root, err := ExtractRomFS(nca.RomFS())
	require.NoError(t, err)
	p, err := vfs.ReadAll(root.File("asset"))
	require.NoError(t, err)
	assert.Equal(t, []byte("romfs data"), p)
}

func TestParseNCAVersions(t *testing.T) {
	t.Parallel()

	for magic, want := range map[string]models.ResultStatus{
		"NCA2": models.ErrorNCA2,
		"NCA0": models.ErrorNCA0,
	} {
		n := programNCA()
		n.Magic = magic
		_, err := ParseNCA(mem("old.nca", n.Build()), nil)
		requireStatus(t, want, err)
	}
}

func TestParseNCAEncryptedHeader(t *testing.T) {
	t.Parallel()

	img := programNCA().Build()
	enc := testutil.XOR(img, 0x5a, NCAHeaderSize)

	_, err := ParseNCA(mem("enc.nca", enc), nil)
	requireStatus(t, models.ErrorMissingHeaderKey, err)

	km := keys.NewManager()
	km.Decrypter = &testutil.XORDecrypter{Key: 0x5a}
	_, err = ParseNCA(mem("enc.nca", enc), km)
	requireStatus(t, models.ErrorMissingHeaderKey, err)

	km.SetKey(keys.HeaderKey, make([]byte, 0x20))
	nca, err := ParseNCA(mem("enc.nca", enc), km)
	require.NoError(t, err)
	assert.NotNil(t, nca.ExeFS())

	km.Decrypter = &testutil.XORDecrypter{Key: 0x33}
	_, err = ParseNCA(mem("enc.nca", enc), km)
	requireStatus(t, models.ErrorIncorrectHeaderKey, err)
}

func TestParseNCAEncryptedSections(t *testing.T) {
	t.Parallel()

	n := programNCA()
	n.Sections[0].Encryption = testutil.NCAEncryptionCTR
	n.CryptoType = 2
	nca, err := ParseNCA(mem("enc.nca", n.Build()), nil)
	require.NoError(t, err)
	assert.Nil(t, nca.ExeFS())
	assert.Equal(t, models.ErrorMissingKeyAreaKey, nca.SectionStatus())
	assert.Equal(t, uint8(1), nca.KeyGeneration())

	n.RightsID[0] = 1
	nca, err = ParseNCA(mem("enc.nca", n.Build()), nil)
	require.NoError(t, err)
	assert.Equal(t, models.ErrorMissingTitlekey, nca.SectionStatus())
}

func TestParseNCATruncated(t *testing.T) {
	t.Parallel()

	_, err := ParseNCA(mem("short.nca", make([]byte, 0x200)), nil)
	requireStatus(t, models.ErrorBadNCAHeader, err)

	img := programNCA().Build()
	nca, err := ParseNCA(mem("cut.nca", img[:0xc00+0x200]), nil)
	require.NoError(t, err)
	assert.Nil(t, nca.ExeFS())
	assert.Equal(t, models.ErrorBadNCAHeader, nca.SectionStatus())
}
