package cli

import (
	"os"
	"path/filepath"
)

// Paths locates files under the audioprint base directory.
type Paths struct {
	Base string
}

// NewPaths returns Paths rooted at ~/.audioprint.
func NewPaths() (*Paths, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	return &Paths{Base: filepath.Join(home, DefaultBaseDir)}, nil
}

// ConfigFile returns the config file path.
func (p *Paths) ConfigFile() string { return filepath.Join(p.Base, DefaultConfigFile) }

// CatalogDir returns the default badger directory.
func (p *Paths) CatalogDir() string { return filepath.Join(p.Base, "catalog") }

// ImagesDir returns the default local storage root.
func (p *Paths) ImagesDir() string { return filepath.Join(p.Base, "images") }
