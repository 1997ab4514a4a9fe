// Package keys tracks which console keys are available. It does not derive
// or apply keys itself: decryption is delegated to a Decrypter.
package keys

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"gopkg.in/ini.v1"

	"github.com/lunixbochs/nxcorn/go/vfs"
)

const (
	HeaderKey              = "header_key"
	SDSeed                 = "sd_seed"
	SDCardKEKSource        = "sd_card_kek_source"
	AESKEKGenerationSource = "aes_kek_generation_source"
	AESKeyGenerationSource = "aes_key_generation_source"
	SDCardSaveKeySource    = "sd_card_save_key_source"
	SDCardNCAKeySource     = "sd_card_nca_key_source"
)

const (
	ProdKeysFile    = "prod.keys"
	TitleKeysFile   = "title.keys"
	ConsoleKeysFile = "console.keys"
)

var ErrMissingKeyFile = errors.New("production key file not found")

// KeyAreaKeyApplication names the application key area key for a key generation.
func KeyAreaKeyApplication(generation uint8) string {
	return fmt.Sprintf("key_area_key_application_%02x", generation)
}

// Decrypter applies keys on behalf of the loaders.
type Decrypter interface {
	// DecryptNCAHeader returns the plaintext of a raw 0xc00-byte NCA header.
	DecryptNCAHeader(raw []byte) ([]byte, error)
	// DecryptNAX returns the NCA wrapped by a NAX0 file stored at sdPath.
	DecryptNAX(f vfs.File, sdPath string) (vfs.File, error)
}

type Manager struct {
	keys      map[string][]byte
	titleKeys map[string][]byte
	prodKeys  bool

	Decrypter Decrypter
}

func NewManager() *Manager {
	return &Manager{
		keys:      make(map[string][]byte),
		titleKeys: make(map[string][]byte),
	}
}

func parseKeyFile(path string) (map[string][]byte, error) {
	cfg, err := ini.LoadSources(ini.LoadOptions{
		Insensitive:             true,
		SkipUnrecognizableLines: true,
	}, path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", path)
	}
	out := make(map[string][]byte)
	for _, k := range cfg.Section(ini.DefaultSection).Keys() {
		val, err := hex.DecodeString(strings.TrimSpace(k.String()))
		if err != nil {
			log.Warn().Str("file", path).Str("key", k.Name()).Msg("skipping key with invalid hex value")
			continue
		}
		out[strings.ToLower(k.Name())] = val
	}
	return out, nil
}

// LoadFile merges a "name = hex" key file.
func (m *Manager) LoadFile(path string) error {
	keys, err := parseKeyFile(path)
	if err != nil {
		return err
	}
	for name, val := range keys {
		m.keys[name] = val
	}
	return nil
}

// LoadTitleKeys merges a "rights_id = titlekey" file.
func (m *Manager) LoadTitleKeys(path string) error {
	keys, err := parseKeyFile(path)
	if err != nil {
		return err
	}
	for id, val := range keys {
		m.titleKeys[id] = val
	}
	return nil
}

// LoadDir loads the standard key files from dir. Only prod.keys is required.
func (m *Manager) LoadDir(dir string) error {
	prod := filepath.Join(dir, ProdKeysFile)
	if _, err := os.Stat(prod); err != nil {
		return errors.Wrap(ErrMissingKeyFile, dir)
	}
	if err := m.LoadFile(prod); err != nil {
		return err
	}
	m.prodKeys = true
	for _, name := range []string{ConsoleKeysFile, TitleKeysFile} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		load := m.LoadFile
		if name == TitleKeysFile {
			load = m.LoadTitleKeys
		}
		if err := load(path); err != nil {
			return err
		}
	}
	log.Debug().Str("dir", dir).Int("keys", len(m.keys)).Int("title_keys", len(m.titleKeys)).Msg("loaded keys")
	return nil
}

// HasProductionKeys reports whether LoadDir found a prod.keys file.
func (m *Manager) HasProductionKeys() bool {
	return m != nil && m.prodKeys
}

func (m *Manager) Has(name string) bool {
	if m == nil {
		return false
	}
	_, ok := m.keys[strings.ToLower(name)]
	return ok
}

func (m *Manager) Key(name string) ([]byte, bool) {
	if m == nil {
		return nil, false
	}
	k, ok := m.keys[strings.ToLower(name)]
	return k, ok
}

func (m *Manager) SetKey(name string, key []byte) {
	m.keys[strings.ToLower(name)] = key
}

// TitleKey looks up the title key for a rights ID.
func (m *Manager) TitleKey(rightsID [16]byte) ([]byte, bool) {
	if m == nil {
		return nil, false
	}
	k, ok := m.titleKeys[hex.EncodeToString(rightsID[:])]
	return k, ok
}

func (m *Manager) SetTitleKey(rightsID [16]byte, key []byte) {
	m.titleKeys[hex.EncodeToString(rightsID[:])] = key
}

// HeaderDecrypter returns the configured decrypter when a header key is
// available to it.
func (m *Manager) HeaderDecrypter() Decrypter {
	if m == nil || m.Decrypter == nil || !m.Has(HeaderKey) {
		return nil
	}
	return m.Decrypter
}
