package models

import (
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
	"github.com/shibukawa/configdir"
	"golang.org/x/text/language"
)

const ConfigFile = "config.toml"

type Config struct {
	KeysDir     string `toml:"keys_dir"`
	Language    string `toml:"language"`
	LogLevel    string `toml:"log_level"`
	Color       bool   `toml:"color"`
	ScanWorkers int    `toml:"scan_workers"`

	// directory the config was read from, for resolving relative paths
	dir string
}

func DefaultConfig() *Config {
	return &Config{
		Language:    "en-US",
		LogLevel:    "info",
		Color:       true,
		ScanWorkers: 4,
	}
}

func configDirs() configdir.ConfigDir {
	return configdir.New("nxcorn", "loader")
}

// LoadConfig reads a TOML config on top of the defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config")
	}
	c := DefaultConfig()
	if err := toml.Unmarshal(data, c); err != nil {
		return nil, errors.Wrapf(err, "failed to parse %s", path)
	}
	c.dir = filepath.Dir(path)
	return c, nil
}

// FindConfig loads the first config.toml found in the user or system config
// folders, or returns the defaults when there is none.
func FindConfig() (*Config, error) {
	folder := configDirs().QueryFolderContainsFile(ConfigFile)
	if folder == nil {
		return DefaultConfig(), nil
	}
	return LoadConfig(filepath.Join(folder.Path, ConfigFile))
}

// ResolvePath interprets a relative path against the config's directory.
func (c *Config) ResolvePath(path string) string {
	if path == "" || filepath.IsAbs(path) || c.dir == "" {
		return path
	}
	return filepath.Join(c.dir, path)
}

// KeysPath is the directory holding prod.keys and title.keys.
func (c *Config) KeysPath() string {
	if c.KeysDir != "" {
		return c.ResolvePath(c.KeysDir)
	}
	folders := configDirs().QueryFolders(configdir.Global)
	if len(folders) == 0 {
		return ""
	}
	return filepath.Join(folders[0].Path, "keys")
}

// LanguageTag parses Language, falling back to American English.
func (c *Config) LanguageTag() language.Tag {
	tag, err := language.Parse(c.Language)
	if err != nil {
		return language.AmericanEnglish
	}
	return tag
}
