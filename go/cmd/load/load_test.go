package load

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lunixbochs/nxcorn/go/cmd"
	"github.com/lunixbochs/nxcorn/go/models"
	"github.com/lunixbochs/nxcorn/go/process"
	"github.com/lunixbochs/nxcorn/go/testutil"
)

func setup(t *testing.T) (dir string, run func(args ...string) (int, string, string)) {
	dir = t.TempDir()
	config := filepath.Join(dir, models.ConfigFile)
	require.NoError(t, os.WriteFile(config, []byte("keys_dir = \"keys\"\n"), 0o600))
	run = func(args ...string) (int, string, string) {
		var stdout, stderr bytes.Buffer
		base := cmd.New("nxcorn load", "<file>")
		base.Stdout, base.Stderr = &stdout, &stderr
		base.Flags.SetOutput(&stderr)
		c := newLoadCmd(base)
		argv := append([]string{"nxcorn load", "-config", config, "-nocolor"}, args...)
		code := c.Run(argv, 1, c.load)
		return code, stdout.String(), stderr.String()
	}
	return dir, run
}

func TestLoadNSO(t *testing.T) {
	dir, run := setup(t)
	path := filepath.Join(dir, "app.nso")
	require.NoError(t, os.WriteFile(path, testutil.NSO(testutil.Sample(), true), 0o644))
	out := filepath.Join(dir, "app.img")

	code, stdout, stderr := run("-dump", out, path)
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "NSO")
	assert.Contains(t, stdout, "  0x8000000-0x8005000 app.nso\n")
	assert.Contains(t, stdout, "    0x8000000+0x1000 r-x .text\n")
	assert.Contains(t, stdout, "    0x8001000+0x1000 r-- .rodata\n")
	assert.NotContains(t, stdout, "0x10000000")
	assert.Contains(t, stdout, "entry 0x8000000")

	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()
	img, err := process.ReadDump(f)
	require.NoError(t, err)
	require.Len(t, img.Modules(), 1)
	assert.Equal(t, "app.nso", img.Modules()[0].Name)
	assert.Equal(t, uint64(0x8000000), img.MainThread().Entry)
}

func TestLoadFailures(t *testing.T) {
	dir, run := setup(t)
	kip := filepath.Join(dir, "broken.kip")
	require.NoError(t, os.WriteFile(kip, []byte("not a kip"), 0o644))
	code, _, stderr := run(kip)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, models.ErrorBadKIPHeader.Message())

	txt := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(txt, []byte("hello"), 0o644))
	code, _, stderr = run(txt)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "unrecognized file format")

	code, _, _ = run(filepath.Join(dir, "missing.nso"))
	assert.Equal(t, 1, code)

	code, _, stderr = run()
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "-dump")
}

func TestProt(t *testing.T) {
	assert.Equal(t, "r-x", prot(models.PROT_READ|models.PROT_EXEC))
	assert.Equal(t, "rw-", prot(models.PROT_READ|models.PROT_WRITE))
	assert.Equal(t, "---", prot(models.PROT_NONE))
}
