package filesys

import (
	"regexp"
	"strings"

	"github.com/lunixbochs/nxcorn/go/keys"
	"github.com/lunixbochs/nxcorn/go/models"
	"github.com/lunixbochs/nxcorn/go/vfs"
)

var NAXMagic = []byte("NAX0")

const (
	NAXHeaderSize = 0x80
	// the encrypted NCA starts after the padded header
	NAXDataOff  = 0x4000
	naxMagicOff = 0x20
)

var (
	naxPath       = regexp.MustCompile(`(?i)/registered/(000000[0-9A-F]{2})/([0-9A-F]{32})\.nca`)
	naxPathTwoDir = regexp.MustCompile(`(?i)/registered/([0-9A-F]{2})/([0-9A-F]{32})\.nca`)
)

type naxHeader struct {
	HMAC     [0x20]byte
	Magic    [4]byte
	Magic2   [4]byte
	KeyArea  [0x20]byte
	FileSize uint64
	Padding  [0x30]byte
}

// NAX is an SD-card content archive wrapper.
type NAX struct {
	file   vfs.File
	header naxHeader
}

// ParseNAX validates the wrapper header and size. It does not look at keys.
func ParseNAX(f vfs.File) (*NAX, error) {
	if f == nil {
		return nil, models.StatusErr(models.ErrorNullFile, nil)
	}
	n := &NAX{file: f}
	if _, err := unpackFile(f, &n.header, 0); err != nil {
		return nil, models.StatusErr(models.ErrorBadNAXHeader, err)
	}
	if string(n.header.Magic[:]) != string(NAXMagic) || n.header.Magic2 != [4]byte{} {
		return nil, models.StatusErr(models.ErrorBadNAXHeader, nil)
	}
	if n.header.FileSize > uint64(f.Size()) || uint64(f.Size())-n.header.FileSize < NAXDataOff {
		return nil, models.StatusErr(models.ErrorIncorrectNAXFileSize, nil)
	}
	return n, nil
}

// FileSize is the size of the wrapped archive.
func (n *NAX) FileSize() uint64 { return n.header.FileSize }

// SDPath returns the path the archive was registered under on the SD card,
// normalized to /registered/<dir>/<id>.nca.
func SDPath(fullPath string) (string, error) {
	p := strings.ReplaceAll(fullPath, "\\", "/")
	m := naxPath.FindStringSubmatch(p)
	if m == nil {
		m = naxPathTwoDir.FindStringSubmatch(p)
	}
	if m == nil {
		return "", models.StatusErr(models.ErrorBadNAXFilePath, nil)
	}
	return "/registered/" + strings.ToUpper(m[1]) + "/" + strings.ToUpper(m[2]) + ".nca", nil
}

// sdKeyChecks are the keys SD card content needs, in the order they are
// required.
var sdKeyChecks = []struct {
	name   string
	status models.ResultStatus
}{
	{keys.SDSeed, models.ErrorMissingSDSeed},
	{keys.SDCardKEKSource, models.ErrorMissingSDKEKSource},
	{keys.AESKEKGenerationSource, models.ErrorMissingAESKEKGenerationSource},
	{keys.AESKeyGenerationSource, models.ErrorMissingAESKeyGenerationSource},
	{keys.SDCardSaveKeySource, models.ErrorMissingSDSaveKeySource},
	{keys.SDCardNCAKeySource, models.ErrorMissingSDNCAKeySource},
}

// Decrypt returns the wrapped content archive. The path, the key set and
// the decrypter are checked in that order.
func (n *NAX) Decrypt(km *keys.Manager) (*NCA, error) {
	sdPath, err := SDPath(n.file.FullPath())
	if err != nil {
		return nil, err
	}
	for _, c := range sdKeyChecks {
		if !km.Has(c.name) {
			return nil, models.StatusErr(c.status, nil)
		}
	}
	if km.Decrypter == nil {
		return nil, models.StatusErr(models.ErrorNotImplemented, nil)
	}
	plain, err := km.Decrypter.DecryptNAX(n.file, sdPath)
	if err != nil {
		return nil, models.StatusErr(models.StatusOf(err, models.ErrorNAXKeyDerivationFailed), err)
	}
	nca, err := ParseNCA(plain, km)
	if err != nil {
		return nil, models.StatusErr(models.ErrorNAXInconvertibleToNCA, err)
	}
	return nca, nil
}
