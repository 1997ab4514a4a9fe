package filesys

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lunixbochs/nxcorn/go/models"
	"github.com/lunixbochs/nxcorn/go/testutil"
	"github.com/lunixbochs/nxcorn/go/vfs"
)

func mem(name string, data []byte) vfs.File {
	return vfs.NewBytesFile(name, data)
}

func requireStatus(t *testing.T, want models.ResultStatus, err error) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, want, models.StatusOf(err, models.ErrorNotImplemented), "%v", err)
}

func TestPartitionFilesystem(t *testing.T) {
	t.Parallel()

	img := testutil.PFS0(
		testutil.Entry{Name: "main", Data: []byte("code")},
		testutil.Entry{Name: "main.npdm", Data: []byte("meta!")},
	)
	pfs, err := ParsePartitionFilesystem(mem("exefs.nsp", img))
	require.NoError(t, err)
	assert.False(t, pfs.Hashed)
	assert.True(t, pfs.IsExtracted())
	require.Len(t, pfs.Files(), 2)

	data, err := vfs.ReadAll(pfs.File("main.npdm"))
	require.NoError(t, err)
	assert.Equal(t, []byte("meta!"), data)
	assert.Equal(t, "exefs.nsp/main", pfs.File("main").FullPath())
}

func TestHashedPartitionFilesystem(t *testing.T) {
	t.Parallel()

	img := testutil.HFS0(testutil.Entry{Name: "a.nca", Data: []byte("x")})
	pfs, err := ParsePartitionFilesystem(mem("secure", img))
	require.NoError(t, err)
	assert.True(t, pfs.Hashed)
	assert.False(t, pfs.IsExtracted())
	assert.NotNil(t, pfs.File("a.nca"))
}

func TestPartitionFilesystemErrors(t *testing.T) {
	t.Parallel()

	_, err := ParsePartitionFilesystem(mem("x", []byte("PFS")))
	requireStatus(t, models.ErrorBadPFSHeader, err)

	_, err = ParsePartitionFilesystem(mem("x", []byte("XXXX\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00")))
	requireStatus(t, models.ErrorBadPFSHeader, err)

	img := testutil.PFS0(testutil.Entry{Name: "big", Data: make([]byte, 0x100)})
	_, err = ParsePartitionFilesystem(mem("x", img[:len(img)-1]))
	requireStatus(t, models.ErrorIncorrectPFSFileSize, err)

	// entry count far beyond the file
	hdr := []byte("PFS0\xff\xff\xff\x0f\x00\x00\x00\x00\x00\x00\x00\x00")
	_, err = ParsePartitionFilesystem(mem("x", hdr))
	requireStatus(t, models.ErrorIncorrectPFSFileSize, err)

	_, err = ParsePartitionFilesystem(nil)
	requireStatus(t, models.ErrorNullFile, err)
}
