package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/haivivi/audioprint/pkg/storage"
)

const (
	// DefaultBaseDir is created under the user's home directory.
	DefaultBaseDir = ".audioprint"
	// DefaultConfigFile is the file name inside DefaultBaseDir.
	DefaultConfigFile = "config.yaml"
	// MemoryCatalog selects a throwaway in-memory catalog.
	MemoryCatalog = "memory"
)

// Config is the audioprint configuration file.
type Config struct {
	// Engine names the FFT engine ("gonum", "godsp", "fftw").
	Engine string `yaml:"engine,omitempty" json:"engine,omitempty"`

	// SampleRate is the analysis rate inputs are resampled to. Zero keeps
	// the source rate.
	SampleRate int `yaml:"sample_rate,omitempty" json:"sample_rate,omitempty"`

	Mode        string `yaml:"mode,omitempty" json:"mode,omitempty"`
	Bands       int    `yaml:"bands,omitempty" json:"bands,omitempty"`
	Interpolate bool   `yaml:"interpolate,omitempty" json:"interpolate,omitempty"`
	HashBits    int    `yaml:"hash_bits,omitempty" json:"hash_bits,omitempty"`

	// Catalog is a badger directory or MemoryCatalog.
	Catalog string `yaml:"catalog,omitempty" json:"catalog,omitempty"`

	Storage storage.Config `yaml:"storage,omitempty" json:"storage,omitempty"`

	path string
}

// DefaultConfig returns the settings used when no file exists. Directory
// defaults are resolved against base.
func DefaultConfig(base string) *Config {
	return &Config{
		Engine:     "gonum",
		SampleRate: 11025,
		Mode:       "chroma",
		Bands:      32,
		HashBits:   16,
		Catalog:    filepath.Join(base, "catalog"),
		Storage:    storage.Config{Kind: "local", Dir: filepath.Join(base, "images")},
	}
}

// LoadConfig reads ~/.audioprint/config.yaml.
func LoadConfig() (*Config, error) {
	return LoadConfigWithPath("")
}

// LoadConfigWithPath reads the config at path, or the default location if
// path is empty. A missing file yields DefaultConfig without creating it.
func LoadConfigWithPath(path string) (*Config, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("cli: home directory: %w", err)
		}
		path = filepath.Join(home, DefaultBaseDir, DefaultConfigFile)
	}
	cfg := DefaultConfig(filepath.Dir(path))
	cfg.path = path

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cli: read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("cli: parse config %s: %w", path, err)
	}
	cfg.path = path
	cfg.Catalog = expandHome(cfg.Catalog)
	cfg.Storage.Dir = expandHome(cfg.Storage.Dir)
	return cfg, nil
}

// Save writes the config back to its path, creating the directory.
func (c *Config) Save() error {
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("cli: create config dir: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("cli: marshal config: %w", err)
	}
	if err := os.WriteFile(c.path, data, 0o600); err != nil {
		return fmt.Errorf("cli: write config: %w", err)
	}
	return nil
}

// Path returns the file the config was loaded from.
func (c *Config) Path() string { return c.path }

// Dir returns the directory holding the config file.
func (c *Config) Dir() string { return filepath.Dir(c.path) }

// Keys lists the names accepted by Set.
func Keys() []string {
	return []string{
		"engine", "sample_rate", "mode", "bands", "interpolate", "hash_bits", "catalog",
		"storage.kind", "storage.dir", "storage.bucket", "storage.prefix",
		"storage.region", "storage.endpoint",
	}
}

// Set assigns one field by its YAML name, e.g. "storage.bucket".
func (c *Config) Set(key, value string) error {
	var err error
	switch key {
	case "engine":
		c.Engine = value
	case "sample_rate":
		c.SampleRate, err = strconv.Atoi(value)
	case "mode":
		c.Mode = value
	case "bands":
		c.Bands, err = strconv.Atoi(value)
	case "interpolate":
		c.Interpolate, err = strconv.ParseBool(value)
	case "hash_bits":
		c.HashBits, err = strconv.Atoi(value)
	case "catalog":
		c.Catalog = expandHome(value)
	case "storage.kind":
		c.Storage.Kind = value
	case "storage.dir":
		c.Storage.Dir = expandHome(value)
	case "storage.bucket":
		c.Storage.Bucket = value
	case "storage.prefix":
		c.Storage.Prefix = value
	case "storage.region":
		c.Storage.Region = value
	case "storage.endpoint":
		c.Storage.Endpoint = value
	default:
		return fmt.Errorf("cli: unknown config key %q (known: %s)", key, strings.Join(Keys(), ", "))
	}
	if err != nil {
		return fmt.Errorf("cli: config %s: %w", key, err)
	}
	return nil
}

func expandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, p[1:])
}
