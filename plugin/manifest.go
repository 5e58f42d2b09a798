package plugin

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"
)

// Manifest is the optional metadata file shipped next to an entry point.
//
//	name: audit
//	version: 1.2.0
//	description: Records every saved order
//	disabled: false
type Manifest struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Description string `yaml:"description"`
	Disabled    bool   `yaml:"disabled"`
}

// LoadManifest reads the manifest at path. A missing file is not an error
// and yields a nil manifest.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %w", ErrManifest, err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrManifest, path, err)
	}
	return &m, nil
}
